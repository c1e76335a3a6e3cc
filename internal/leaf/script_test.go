package leaf_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/cory-johannsen/behave/internal/bt"
	"github.com/cory-johannsen/behave/internal/bt/blackboard"
	"github.com/cory-johannsen/behave/internal/leaf"
	"github.com/cory-johannsen/behave/internal/scripting"
	"github.com/cory-johannsen/behave/internal/testutil"
)

func newScripts(t *testing.T, src string) (*scripting.Manager, *observer.ObservedLogs) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hooks.lua"), []byte(src), 0644))
	core, logs := observer.New(zap.DebugLevel)
	mgr := scripting.NewManager(zap.New(core))
	t.Cleanup(mgr.Close)
	require.NoError(t, mgr.LoadGlobal(dir, 0))
	return mgr, logs
}

func value(bb *blackboard.Blackboard, key string) any {
	v, _ := bb.Value(key)
	return v
}

const hooks = `
function open_door(node, owner, props)
	engine.blackboard.set("door", "open")
	engine.blackboard.set("opened_by", owner)
	return true
end
function is_open(node, owner, props)
	return engine.blackboard.get("door") == "open"
end
function charge(node, owner, props)
	local n = engine.blackboard.get("charge", 0) + props.step
	engine.blackboard.set("charge", n)
	if n >= props.full then return "success" end
	return "running"
end
function confused() return 7 end
function boom() error("boom") end
`

func TestScript_ActionAndCondition(t *testing.T) {
	mgr, _ := newScripts(t, hooks)
	reg := builtins(t, leaf.Deps{Scripts: mgr})

	open := build(t, reg, bt.CategoryAction, "Script", map[string]string{"hook": "open_door"})
	owner, bb := testutil.Init(t, open, 0)
	owner.OwnerName = "guard-1"
	check := build(t, reg, bt.CategoryCondition, "Script", map[string]string{"hook": "is_open"})
	check.Initialize(owner, bb)

	assert.Equal(t, bt.Failure, check.Execute())
	assert.Equal(t, bt.Success, open.Execute())
	assert.Equal(t, "guard-1", value(bb, "opened_by"))
	assert.Equal(t, bt.Success, check.Execute())
}

func TestScript_StringResultsAndProps(t *testing.T) {
	mgr, _ := newScripts(t, hooks)
	reg := builtins(t, leaf.Deps{Scripts: mgr})
	n := build(t, reg, bt.CategoryAction, "Script", map[string]string{"hook": "charge", "step": "2", "full": "5"})
	_, bb := testutil.Init(t, n, 0)
	bb.SetValue("charge", 0)

	assert.Equal(t, bt.Running, n.Execute())
	assert.Equal(t, bt.Running, n.Execute())
	assert.Equal(t, bt.Success, n.Execute())
	assert.Equal(t, 6, value(bb, "charge"))
}

func TestScript_ConditionNeverRuns(t *testing.T) {
	mgr, _ := newScripts(t, hooks)
	reg := builtins(t, leaf.Deps{Scripts: mgr})
	n := build(t, reg, bt.CategoryCondition, "Script", map[string]string{"hook": "charge", "step": "1", "full": "10"})
	testutil.Init(t, n, 0)
	assert.Equal(t, bt.Failure, n.Execute())
}

func TestScript_Failures(t *testing.T) {
	mgr, logs := newScripts(t, hooks)
	reg := builtins(t, leaf.Deps{Scripts: mgr})
	for _, hook := range []string{"confused", "boom", "missing"} {
		n := build(t, reg, bt.CategoryAction, "Script", map[string]string{"hook": hook})
		testutil.Init(t, n, 0)
		assert.Equal(t, bt.Failure, n.Execute(), hook)
	}
	assert.Equal(t, 1, logs.FilterMessage("scripting: Lua runtime error").Len())

	disabled := build(t, builtins(t, leaf.Deps{}), bt.CategoryAction, "Script", map[string]string{"hook": "open_door"})
	testutil.Init(t, disabled, 0)
	assert.Equal(t, bt.Failure, disabled.Execute())
}

func TestResultFromLua(t *testing.T) {
	cases := map[lua.LValue]bt.Result{
		lua.LTrue:              bt.Success,
		lua.LFalse:             bt.Failure,
		lua.LString("Running"): bt.Running,
		lua.LString("success"): bt.Success,
		lua.LString("failure"): bt.Failure,
	}
	for in, want := range cases {
		got, ok := leaf.ResultFromLua(in)
		assert.True(t, ok, in.String())
		assert.Equal(t, want, got, in.String())
	}
	_, ok := leaf.ResultFromLua(lua.LNumber(1))
	assert.False(t, ok)
	_, ok = leaf.ResultFromLua(lua.LNil)
	assert.False(t, ok)
}
