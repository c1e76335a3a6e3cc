// Package bt implements the behaviour-tree node hierarchy and its tick
// semantics.
//
// A tree is built from Nodes: leaves (Actions and Conditions supplied by the
// host through a Registry), composites (Sequence, Selector, Parallel) and
// decorators (Inverter, Repeat, Retry, Timeout). The root is ticked once per
// control cycle by calling Execute; a node that cannot finish within one call
// returns Running and resumes from its own state on the next call.
package bt

import (
	"errors"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/cory-johannsen/behave/internal/bt/blackboard"
)

// Result is the outcome of one Execute call.
type Result int

const (
	// Success means the node finished and achieved its goal.
	Success Result = iota
	// Failure means the node finished without achieving its goal.
	Failure
	// Running means the node must be executed again on the next tick.
	Running
)

// String returns the lowercase name of r.
func (r Result) String() string {
	switch r {
	case Success:
		return "success"
	case Failure:
		return "failure"
	case Running:
		return "running"
	default:
		return "unknown"
	}
}

// ErrNilChild is returned by AddChild when given a nil node.
var ErrNilChild = errors.New("bt: child must not be nil")

// Owner is the host context a tree runs on behalf of.
type Owner interface {
	// Name identifies the owner in logs.
	Name() string
	// DeltaTime is the number of seconds since the previous tick.
	DeltaTime() float64
	// Logger is the logger nodes report diagnostics to.
	Logger() *zap.Logger
}

// Node is the capability shared by every tree element.
//
// Lifecycle: SetProperty may be called any number of times before
// Initialize; Initialize must be called before Execute; Execute may be called
// repeatedly across ticks; Reset abandons any in-progress state.
type Node interface {
	Name() string
	SetName(name string)
	SetProperty(key, value string)
	Initialize(owner Owner, bb *blackboard.Blackboard)
	Execute() Result
	Reset()
	Children() []Node
}

// Parent is a Node that accepts children.
type Parent interface {
	Node
	AddChild(child Node) error
}

// BaseNode carries the name, raw properties and runtime binding common to all
// nodes. Leaf implementations embed it and supply Execute.
type BaseNode struct {
	name       string
	properties map[string]string
	owner      Owner
	bb         *blackboard.Blackboard
	logger     *zap.Logger
}

// Name returns the node name.
func (n *BaseNode) Name() string { return n.name }

// SetName replaces the node name.
func (n *BaseNode) SetName(name string) { n.name = name }

// SetProperty records a raw property; later values for the same key win.
func (n *BaseNode) SetProperty(key, value string) {
	if n.properties == nil {
		n.properties = make(map[string]string)
	}
	n.properties[key] = value
}

// Property returns the raw value of key.
func (n *BaseNode) Property(key string) (string, bool) {
	v, ok := n.properties[key]
	return v, ok
}

// Properties returns a copy of all raw properties.
func (n *BaseNode) Properties() map[string]string {
	out := make(map[string]string, len(n.properties))
	for k, v := range n.properties {
		out[k] = v
	}
	return out
}

// Initialize binds the node to owner and bb.
func (n *BaseNode) Initialize(owner Owner, bb *blackboard.Blackboard) {
	n.owner = owner
	n.bb = bb
	n.logger = nil
}

// Owner returns the bound owner, or nil before Initialize.
func (n *BaseNode) Owner() Owner { return n.owner }

// Blackboard returns the bound blackboard, or nil before Initialize.
func (n *BaseNode) Blackboard() *blackboard.Blackboard { return n.bb }

// Initialized reports whether Initialize has bound a blackboard.
func (n *BaseNode) Initialized() bool { return n.bb != nil }

// DeltaTime returns the owner's tick delta, or 0 when unbound.
func (n *BaseNode) DeltaTime() float64 {
	if n.owner == nil {
		return 0
	}
	return n.owner.DeltaTime()
}

// Logger returns the owner's logger tagged with this node's name.
//
// Postcondition: never nil.
func (n *BaseNode) Logger() *zap.Logger {
	if n.logger != nil {
		return n.logger
	}
	if n.owner == nil || n.owner.Logger() == nil {
		return zap.NewNop()
	}
	n.logger = n.owner.Logger().With(zap.String("node", n.name))
	return n.logger
}

// Reset is a no-op for stateless nodes.
func (n *BaseNode) Reset() {}

// Children returns nil; leaves have no children.
func (n *BaseNode) Children() []Node { return nil }

// IntProperty parses key as an int, returning def when absent or invalid.
// Invalid values are logged at Warn level.
func (n *BaseNode) IntProperty(key string, def int) int {
	raw, ok := n.properties[key]
	if !ok {
		return def
	}
	v, err := ParseIntProperty(raw)
	if err != nil {
		n.warnProperty(key, raw, err)
		return def
	}
	return v
}

// FloatProperty parses key as a float64, returning def when absent or invalid.
func (n *BaseNode) FloatProperty(key string, def float64) float64 {
	raw, ok := n.properties[key]
	if !ok {
		return def
	}
	v, err := ParseFloatProperty(raw)
	if err != nil {
		n.warnProperty(key, raw, err)
		return def
	}
	return v
}

// BoolProperty parses key as a bool, returning def when absent or invalid.
func (n *BaseNode) BoolProperty(key string, def bool) bool {
	raw, ok := n.properties[key]
	if !ok {
		return def
	}
	v, err := ParseBoolProperty(raw)
	if err != nil {
		n.warnProperty(key, raw, err)
		return def
	}
	return v
}

// StringProperty returns key with surrounding quotes removed, or def.
func (n *BaseNode) StringProperty(key, def string) string {
	raw, ok := n.properties[key]
	if !ok {
		return def
	}
	return Unquote(raw)
}

func (n *BaseNode) warnProperty(key, raw string, err error) {
	n.Logger().Warn("bt: invalid property value",
		zap.String("key", key),
		zap.String("value", raw),
		zap.Error(err),
	)
}

// Unquote strips one pair of surrounding double quotes and outer whitespace.
func Unquote(raw string) string {
	s := strings.TrimSpace(raw)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}

// ParseIntProperty parses a quoted or bare integer.
func ParseIntProperty(raw string) (int, error) {
	return strconv.Atoi(Unquote(raw))
}

// ParseFloatProperty parses a quoted or bare float.
func ParseFloatProperty(raw string) (float64, error) {
	return strconv.ParseFloat(Unquote(raw), 64)
}

// ParseBoolProperty parses a quoted or bare boolean.
func ParseBoolProperty(raw string) (bool, error) {
	return strconv.ParseBool(Unquote(raw))
}

// Walk calls fn for n and every descendant in depth-first pre-order.
// Returning false from fn skips that node's children.
func Walk(n Node, fn func(Node, int) bool) {
	walk(n, 0, fn)
}

func walk(n Node, depth int, fn func(Node, int) bool) {
	if n == nil || !fn(n, depth) {
		return
	}
	for _, c := range n.Children() {
		walk(c, depth+1, fn)
	}
}
