package leaf

import (
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/cory-johannsen/behave/internal/bt"
	"github.com/cory-johannsen/behave/internal/bt/blackboard"
)

// Wait returns Running until the owner's accumulated tick deltas reach
// duration seconds, then Success.
//
// Properties: duration (seconds, default 1).
type Wait struct {
	bt.BaseNode
	duration float64
	elapsed  float64
}

// Initialize binds the node and reads duration.
func (w *Wait) Initialize(owner bt.Owner, bb *blackboard.Blackboard) {
	w.BaseNode.Initialize(owner, bb)
	w.duration = w.FloatProperty("duration", 1)
	w.elapsed = 0
}

// Execute advances the clock by one tick.
func (w *Wait) Execute() bt.Result {
	w.elapsed += w.DeltaTime()
	if w.elapsed >= w.duration {
		w.elapsed = 0
		return bt.Success
	}
	return bt.Running
}

// Elapsed returns the seconds counted so far.
func (w *Wait) Elapsed() float64 { return w.elapsed }

// Reset restarts the clock.
func (w *Wait) Reset() { w.elapsed = 0 }

// Value types accepted by SetValue's type property.
const (
	TypeString = "string"
	TypeInt    = "int"
	TypeFloat  = "float"
	TypeBool   = "bool"
)

// SetValue writes a typed value to the blackboard.
//
// Properties: key, value, type (string|int|float|bool, default string).
type SetValue struct {
	bt.BaseNode
	key   string
	value any
	err   error
}

// Initialize binds the node and converts value according to type.
func (s *SetValue) Initialize(owner bt.Owner, bb *blackboard.Blackboard) {
	s.BaseNode.Initialize(owner, bb)
	s.key = s.StringProperty("key", "")
	s.value, s.err = ConvertValue(s.StringProperty("type", TypeString), s.StringProperty("value", ""))
	if s.err != nil {
		s.Logger().Warn("leaf: invalid SetValue value", zap.String("key", s.key), zap.Error(s.err))
	}
}

// Execute writes the value.
//
// Postcondition: Failure when key is empty or the value did not convert.
func (s *SetValue) Execute() bt.Result {
	if s.key == "" || s.err != nil || s.Blackboard() == nil {
		s.Logger().Warn("leaf: SetValue is misconfigured", zap.String("key", s.key))
		return bt.Failure
	}
	s.Blackboard().SetValue(s.key, s.value)
	return bt.Success
}

// ConvertValue parses raw as the named type.
func ConvertValue(typ, raw string) (any, error) {
	switch strings.ToLower(typ) {
	case "", TypeString:
		return raw, nil
	case TypeInt:
		return bt.ParseIntProperty(raw)
	case TypeFloat:
		return bt.ParseFloatProperty(raw)
	case TypeBool:
		return bt.ParseBoolProperty(raw)
	default:
		return nil, fmt.Errorf("leaf.ConvertValue: unknown type %q", typ)
	}
}

// ClearValue removes a key from the blackboard. Removing an absent key
// succeeds.
//
// Properties: key.
type ClearValue struct {
	bt.BaseNode
}

// Execute removes the key.
func (c *ClearValue) Execute() bt.Result {
	key := c.StringProperty("key", "")
	if key == "" || c.Blackboard() == nil {
		c.Logger().Warn("leaf: ClearValue is misconfigured")
		return bt.Failure
	}
	c.Blackboard().RemoveValue(key)
	return bt.Success
}

// Log writes message to the owner's logger and succeeds. A message
// containing {key} placeholders is expanded from the blackboard.
//
// Properties: message, level (debug|info|warn|error, default info).
type Log struct {
	bt.BaseNode
	level zapcore.Level
}

// Initialize binds the node and reads level.
func (l *Log) Initialize(owner bt.Owner, bb *blackboard.Blackboard) {
	l.BaseNode.Initialize(owner, bb)
	l.level = zapcore.InfoLevel
	if raw := l.StringProperty("level", ""); raw != "" {
		if err := l.level.UnmarshalText([]byte(raw)); err != nil {
			l.Logger().Warn("leaf: invalid log level", zap.String("level", raw))
			l.level = zapcore.InfoLevel
		}
	}
}

// Execute logs the expanded message.
func (l *Log) Execute() bt.Result {
	msg := l.expand(l.StringProperty("message", ""))
	if ce := l.Logger().Check(l.level, msg); ce != nil {
		ce.Write()
	}
	return bt.Success
}

var placeholder = regexp.MustCompile(`\{([^{}]+)\}`)

// expand substitutes placeholders in one pass over msg, so substituted values
// are never expanded again. Placeholders naming absent keys are kept as is.
func (l *Log) expand(msg string) string {
	bb := l.Blackboard()
	if bb == nil || !strings.Contains(msg, "{") {
		return msg
	}
	return placeholder.ReplaceAllStringFunc(msg, func(m string) string {
		key := m[1 : len(m)-1]
		if !bb.HasKey(key) {
			return m
		}
		return bb.ValueAsString(key)
	})
}

// Constant always returns Result.
type Constant struct {
	bt.BaseNode
	Result bt.Result
}

// Execute returns c.Result.
func (c *Constant) Execute() bt.Result { return c.Result }

// HasKey succeeds when key is present on the blackboard, even if its value
// is nil.
//
// Properties: key.
type HasKey struct {
	bt.BaseNode
}

// Execute checks the key.
func (h *HasKey) Execute() bt.Result {
	bb := h.Blackboard()
	if bb == nil {
		return bt.Failure
	}
	if bb.HasKey(h.StringProperty("key", "")) {
		return bt.Success
	}
	return bt.Failure
}
