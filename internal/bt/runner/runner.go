// Package runner owns a behaviour tree and its blackboard and drives it one
// tick at a time.
package runner

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/behave/internal/bt"
	"github.com/cory-johannsen/behave/internal/bt/blackboard"
	"github.com/cory-johannsen/behave/internal/bt/dsl"
)

// Runner holds one root node and one Blackboard and implements bt.Owner for
// the nodes it drives.
//
// Invariant: at most one Execute is in flight on the tree at any time.
type Runner struct {
	id     string
	name   string
	parser *dsl.Parser
	logger *zap.Logger
	bb     *blackboard.Blackboard

	mu    sync.Mutex
	root  bt.Node
	delta float64
	ticks int64
}

// Option configures a Runner.
type Option func(*Runner)

// WithName sets the owner name reported to nodes. Defaults to the runner ID.
func WithName(name string) Option {
	return func(r *Runner) { r.name = name }
}

// WithBlackboard shares bb instead of creating a fresh Blackboard.
func WithBlackboard(bb *blackboard.Blackboard) Option {
	return func(r *Runner) { r.bb = bb }
}

// New constructs a Runner with no root.
//
// Precondition: parser must not be nil.
// Postcondition: the Runner has a unique ID and an empty Blackboard.
func New(parser *dsl.Parser, logger *zap.Logger, opts ...Option) *Runner {
	if parser == nil {
		panic("runner.New: parser must not be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Runner{id: uuid.NewString(), parser: parser}
	for _, opt := range opts {
		opt(r)
	}
	if r.name == "" {
		r.name = r.id
	}
	r.logger = logger.With(zap.String("runner", r.name))
	if r.bb == nil {
		r.bb = blackboard.New(r.logger)
	}
	return r
}

// ID returns the unique runner identifier.
func (r *Runner) ID() string { return r.id }

// Parser returns the parser used by LoadBehaviourTree.
func (r *Runner) Parser() *dsl.Parser { return r.parser }

// Name implements bt.Owner.
func (r *Runner) Name() string { return r.name }

// DeltaTime implements bt.Owner. It is the delta passed to the current Tick.
func (r *Runner) DeltaTime() float64 { return r.delta }

// Logger implements bt.Owner.
func (r *Runner) Logger() *zap.Logger { return r.logger }

// Blackboard returns the runner's Blackboard.
func (r *Runner) Blackboard() *blackboard.Blackboard { return r.bb }

// Root returns the current root node, or nil.
func (r *Runner) Root() bt.Node {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.root
}

// Ticks returns the number of ExecuteOnce calls made against a non-nil root.
func (r *Runner) Ticks() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ticks
}

// LoadBehaviourTree parses path and installs the result as the root.
//
// Postcondition: on error the root is nil and the error is returned.
func (r *Runner) LoadBehaviourTree(path string) error {
	root, err := r.parser.ParseFile(path)
	if err != nil {
		r.mu.Lock()
		r.root = nil
		r.mu.Unlock()
		r.logger.Error("failed to load behaviour tree", zap.String("path", path), zap.Error(err))
		return fmt.Errorf("runner.LoadBehaviourTree: %w", err)
	}
	r.SetRootNode(root)
	r.logger.Info("behaviour tree loaded",
		zap.String("path", path),
		zap.String("root", root.Name()),
	)
	return nil
}

// SetRootNode replaces the root and initializes it against this runner.
// A nil root clears the tree.
func (r *Runner) SetRootNode(root bt.Node) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.root = root
	r.ticks = 0
	if root != nil {
		root.Initialize(r, r.bb)
	}
}

// ExecuteOnce executes the root once using the current delta.
//
// Postcondition: returns Failure when no root is set.
func (r *Runner) ExecuteOnce() bt.Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.executeLocked()
}

// Tick records delta seconds as the elapsed time and executes the root once.
func (r *Runner) Tick(delta float64) bt.Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delta = delta
	return r.executeLocked()
}

func (r *Runner) executeLocked() bt.Result {
	if r.root == nil {
		r.logger.Debug("execute with no root")
		return bt.Failure
	}
	r.ticks++
	result := r.root.Execute()
	r.logger.Debug("tick",
		zap.Int64("tick", r.ticks),
		zap.Float64("delta", r.delta),
		zap.Stringer("result", result),
	)
	return result
}

// ResetTreeState clears the Blackboard and resets every node in the tree.
func (r *Runner) ResetTreeState() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bb.Clear()
	if r.root != nil {
		r.root.Reset()
	}
	r.logger.Debug("tree state reset")
}
