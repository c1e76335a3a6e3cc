package bt

import (
	"go.uber.org/zap"

	"github.com/cory-johannsen/behave/internal/bt/blackboard"
)

// Composite holds the ordered children shared by Sequence, Selector and
// Parallel.
type Composite struct {
	BaseNode
	children []Node
}

// AddChild appends child to the ordered child list.
func (c *Composite) AddChild(child Node) error {
	if child == nil {
		return ErrNilChild
	}
	c.children = append(c.children, child)
	return nil
}

// Children returns the ordered children.
func (c *Composite) Children() []Node { return c.children }

// Initialize binds the composite and every child.
func (c *Composite) Initialize(owner Owner, bb *blackboard.Blackboard) {
	c.BaseNode.Initialize(owner, bb)
	for _, child := range c.children {
		child.Initialize(owner, bb)
	}
}

// Reset resets every child.
func (c *Composite) Reset() {
	for _, child := range c.children {
		child.Reset()
	}
}

// Sequence runs its children in order until one fails.
//
// Invariant: 0 <= current <= len(children); children before current
// succeeded during the pass in progress.
type Sequence struct {
	Composite
	current int
}

// NewSequence returns an empty Sequence named name.
func NewSequence(name string) *Sequence {
	s := &Sequence{}
	s.SetName(name)
	return s
}

// Execute resumes at the remembered child.
//
// Postcondition: Success when every child succeeded in this pass (including
// the empty case); Failure on the first failing child; Running with the
// position kept otherwise.
func (s *Sequence) Execute() Result {
	for s.current < len(s.children) {
		switch s.children[s.current].Execute() {
		case Running:
			return Running
		case Failure:
			s.current = 0
			return Failure
		default:
			s.current++
		}
	}
	s.current = 0
	return Success
}

// Current returns the index of the child the next Execute resumes at.
func (s *Sequence) Current() int { return s.current }

// Reset rewinds to the first child and resets every child.
func (s *Sequence) Reset() {
	s.current = 0
	s.Composite.Reset()
}

// Selector runs its children in order until one succeeds.
type Selector struct {
	Composite
	current int
}

// NewSelector returns an empty Selector named name.
func NewSelector(name string) *Selector {
	s := &Selector{}
	s.SetName(name)
	return s
}

// Execute resumes at the remembered child.
//
// Postcondition: Success on the first succeeding child; Failure when every
// child failed (including the empty case); Running with the position kept
// otherwise.
func (s *Selector) Execute() Result {
	for s.current < len(s.children) {
		switch s.children[s.current].Execute() {
		case Running:
			return Running
		case Success:
			s.current = 0
			return Success
		default:
			s.current++
		}
	}
	s.current = 0
	return Failure
}

// Current returns the index of the child the next Execute resumes at.
func (s *Selector) Current() int { return s.current }

// Reset rewinds to the first child and resets every child.
func (s *Selector) Reset() {
	s.current = 0
	s.Composite.Reset()
}

// Parallel policy property values.
const (
	PolicyRequireAll = "require_all"
	PolicyRequireOne = "require_one"
)

// Parallel executes every child once per tick and succeeds when a threshold
// of children succeed in the same tick.
//
// Properties: success_threshold (int, default all children) or policy
// (require_all | require_one). Both are read at Initialize.
type Parallel struct {
	Composite
	threshold int // 0 means all children
}

// NewParallel returns an empty Parallel named name requiring all children.
func NewParallel(name string) *Parallel {
	p := &Parallel{}
	p.SetName(name)
	return p
}

// Initialize binds the node and reads the success policy.
func (p *Parallel) Initialize(owner Owner, bb *blackboard.Blackboard) {
	p.Composite.Initialize(owner, bb)
	if policy, ok := p.Property("policy"); ok {
		switch Unquote(policy) {
		case PolicyRequireOne:
			p.threshold = 1
		case PolicyRequireAll:
			p.threshold = 0
		default:
			p.Logger().Warn("bt: unknown parallel policy", zap.String("policy", policy))
		}
	}
	if _, ok := p.Property("success_threshold"); ok {
		p.threshold = p.IntProperty("success_threshold", 0)
	}
}

// SetThreshold sets the number of children that must succeed; values <= 0
// mean all children.
func (p *Parallel) SetThreshold(n int) { p.threshold = n }

// Threshold returns the effective success threshold for the current children.
func (p *Parallel) Threshold() int {
	n := len(p.children)
	if p.threshold <= 0 || p.threshold > n {
		return n
	}
	return p.threshold
}

// Execute ticks every child once.
//
// Postcondition: Success when successes >= threshold (including the empty
// case); Failure once failures make the threshold unreachable; Running
// otherwise. Children are reset after a terminal result.
func (p *Parallel) Execute() Result {
	n := len(p.children)
	if n == 0 {
		return Success
	}
	threshold := p.Threshold()
	succeeded, failed := 0, 0
	for _, child := range p.children {
		switch child.Execute() {
		case Success:
			succeeded++
		case Failure:
			failed++
		}
	}
	switch {
	case succeeded >= threshold:
		p.Composite.Reset()
		return Success
	case failed > n-threshold:
		p.Composite.Reset()
		return Failure
	default:
		return Running
	}
}
