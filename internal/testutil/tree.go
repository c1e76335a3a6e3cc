// Package testutil provides fakes shared by the behaviour-tree tests.
package testutil

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/cory-johannsen/behave/internal/bt"
	"github.com/cory-johannsen/behave/internal/bt/blackboard"
)

// Owner is a bt.Owner with a settable tick delta.
type Owner struct {
	OwnerName string
	Delta     float64
	Log       *zap.Logger
}

// Name implements bt.Owner.
func (o *Owner) Name() string { return o.OwnerName }

// DeltaTime implements bt.Owner.
func (o *Owner) DeltaTime() float64 { return o.Delta }

// Logger implements bt.Owner.
func (o *Owner) Logger() *zap.Logger { return o.Log }

// NewObservedOwner returns an Owner whose logger records every entry.
//
// Postcondition: the returned logs capture Debug level and above.
func NewObservedOwner(t testing.TB, delta float64) (*Owner, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	return &Owner{OwnerName: t.Name(), Delta: delta, Log: zap.New(core)}, logs
}

// ScriptedLeaf returns Results from a script, one per Execute. Once the
// script is exhausted the last entry repeats.
type ScriptedLeaf struct {
	bt.BaseNode
	Script     []bt.Result
	Executions int
	Resets     int
	pos        int
}

// NewScriptedLeaf returns a ScriptedLeaf named name.
//
// Precondition: script must contain at least one Result.
func NewScriptedLeaf(name string, script ...bt.Result) *ScriptedLeaf {
	if len(script) == 0 {
		panic("testutil.NewScriptedLeaf: script must not be empty")
	}
	l := &ScriptedLeaf{Script: script}
	l.SetName(name)
	return l
}

// Execute returns the next scripted Result.
func (l *ScriptedLeaf) Execute() bt.Result {
	l.Executions++
	r := l.Script[l.pos]
	if l.pos < len(l.Script)-1 {
		l.pos++
	}
	return r
}

// Reset counts the call and rewinds the script.
func (l *ScriptedLeaf) Reset() {
	l.Resets++
	l.pos = 0
}

// Init initializes n with a fresh blackboard and owner, returning both.
func Init(t testing.TB, n bt.Node, delta float64) (*Owner, *blackboard.Blackboard) {
	t.Helper()
	owner := &Owner{OwnerName: t.Name(), Delta: delta, Log: zap.NewNop()}
	bb := blackboard.New(nil)
	n.Initialize(owner, bb)
	return owner, bb
}
