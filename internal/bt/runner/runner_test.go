package runner_test

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/cory-johannsen/behave/internal/bt"
	"github.com/cory-johannsen/behave/internal/bt/dsl"
	"github.com/cory-johannsen/behave/internal/bt/runner"
	"github.com/cory-johannsen/behave/internal/testutil"
)

func newParser(t *testing.T) *dsl.Parser {
	t.Helper()
	reg := bt.NewRegistry()
	require.NoError(t, reg.RegisterAction("Work", func() bt.Node {
		return testutil.NewScriptedLeaf("", bt.Running, bt.Success)
	}))
	require.NoError(t, reg.RegisterAction("Fail", func() bt.Node {
		return testutil.NewScriptedLeaf("", bt.Failure)
	}))
	return dsl.NewParser(reg, zap.NewNop())
}

func writeTree(t *testing.T, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tree.bt")
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	return path
}

func TestRunner_ExecuteOnceWithoutRoot(t *testing.T) {
	r := runner.New(newParser(t), nil)
	assert.Nil(t, r.Root())
	assert.Equal(t, bt.Failure, r.ExecuteOnce())
	assert.Equal(t, int64(0), r.Ticks())
}

func TestRunner_NewAssignsUniqueIDs(t *testing.T) {
	p := newParser(t)
	a := runner.New(p, nil)
	b := runner.New(p, nil, runner.WithName("guard"))
	assert.NotEqual(t, a.ID(), b.ID())
	assert.Equal(t, a.ID(), a.Name())
	assert.Equal(t, "guard", b.Name())
	assert.NotNil(t, a.Blackboard())
	assert.NotSame(t, a.Blackboard(), b.Blackboard())
}

func TestRunner_LoadAndTick(t *testing.T) {
	r := runner.New(newParser(t), nil)
	path := writeTree(t, `tree T { Sequence S { Action Work { } } }`)
	require.NoError(t, r.LoadBehaviourTree(path))
	require.NotNil(t, r.Root())
	assert.Equal(t, "S", r.Root().Name())

	assert.Equal(t, bt.Running, r.Tick(0.1))
	assert.InDelta(t, 0.1, r.DeltaTime(), 1e-9)
	assert.Equal(t, bt.Success, r.ExecuteOnce())
	assert.Equal(t, int64(2), r.Ticks())
}

func TestRunner_LoadFailureClearsRoot(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	r := runner.New(newParser(t), zap.New(core))
	require.NoError(t, r.LoadBehaviourTree(writeTree(t, `tree T { Action Work { } }`)))
	require.NotNil(t, r.Root())

	err := r.LoadBehaviourTree(writeTree(t, `tree T { Action Missing { } }`))
	require.Error(t, err)
	assert.ErrorIs(t, err, dsl.ErrUnknownScript)
	assert.Nil(t, r.Root())
	assert.Equal(t, bt.Failure, r.ExecuteOnce())
	assert.Equal(t, 1, logs.FilterMessage("failed to load behaviour tree").Len())

	err = r.LoadBehaviourTree(filepath.Join(t.TempDir(), "absent.bt"))
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestRunner_SetRootNodeInitializes(t *testing.T) {
	r := runner.New(newParser(t), nil)
	leaf := testutil.NewScriptedLeaf("Action:Probe", bt.Success)
	r.SetRootNode(leaf)
	assert.Same(t, r.Blackboard(), leaf.Blackboard())
	assert.Equal(t, r, leaf.Owner())
	assert.Equal(t, bt.Success, r.ExecuteOnce())

	r.SetRootNode(nil)
	assert.Equal(t, bt.Failure, r.ExecuteOnce())
}

func TestRunner_ResetTreeState(t *testing.T) {
	r := runner.New(newParser(t), nil)
	require.NoError(t, r.LoadBehaviourTree(writeTree(t,
		`tree T { Retry R { max_retries: 5 Action Fail { } } }`)))
	retry, ok := r.Root().(*bt.Retry)
	require.True(t, ok)

	r.Blackboard().SetValue("target", "orc")
	assert.Equal(t, bt.Running, r.Tick(0))
	assert.Equal(t, bt.Running, r.Tick(0))
	assert.Equal(t, 2, retry.CurrentRetries())

	r.ResetTreeState()
	assert.Equal(t, 0, retry.CurrentRetries())
	assert.False(t, retry.IsWaitingForRetry())
	assert.False(t, r.Blackboard().HasKey("target"))
	assert.Equal(t, 0, r.Blackboard().Len())
}

func TestRunner_SharedBlackboard(t *testing.T) {
	p := newParser(t)
	a := runner.New(p, nil)
	b := runner.New(p, nil, runner.WithBlackboard(a.Blackboard()))
	a.Blackboard().SetValue("alarm", true)
	assert.True(t, b.Blackboard().HasKey("alarm"))
}

func TestNew_NilParserPanics(t *testing.T) {
	assert.Panics(t, func() { runner.New(nil, nil) })
}
