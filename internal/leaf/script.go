package leaf

import (
	"strings"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/cory-johannsen/behave/internal/bt"
	"github.com/cory-johannsen/behave/internal/scripting"
)

// Script delegates to a Lua hook. The hook is called as
// hook(node_name, owner_name, props) with the tree's blackboard bound to
// engine.blackboard; props holds the node's properties, numbers and booleans
// already converted.
// It may return a boolean, or one of "success", "failure" and "running".
//
// Properties: hook.
type Script struct {
	bt.BaseNode
	scripts   *scripting.Manager
	vm        string
	condition bool
}

// Hook returns the configured hook name.
func (s *Script) Hook() string { return s.StringProperty("hook", "") }

// Execute calls the hook.
//
// Postcondition: Failure when no manager is configured, the hook is missing,
// the call errors, or the return value is not recognised. A Condition never
// reports Running; "running" from a condition hook is treated as Failure.
func (s *Script) Execute() bt.Result {
	hook := s.Hook()
	if s.scripts == nil || hook == "" {
		s.Logger().Warn("leaf: script leaf has no hook or scripting is disabled", zap.String("hook", hook))
		return bt.Failure
	}
	owner := ""
	if o := s.Owner(); o != nil {
		owner = o.Name()
	}
	props := make(map[string]any)
	for k, v := range s.Properties() {
		props[k] = coerce(v)
	}
	ret, err := s.scripts.CallHookWith(s.vm, hook, s.Blackboard(), s.Name(), owner, props)
	if err != nil {
		s.Logger().Warn("leaf: script hook failed", zap.String("hook", hook), zap.Error(err))
		return bt.Failure
	}
	result, ok := ResultFromLua(ret)
	if !ok {
		s.Logger().Warn("leaf: script hook returned an unrecognised value",
			zap.String("hook", hook),
			zap.String("value", ret.String()),
		)
		return bt.Failure
	}
	if s.condition && result == bt.Running {
		return bt.Failure
	}
	return result
}

// ResultFromLua maps a hook return value to a Result.
func ResultFromLua(v lua.LValue) (bt.Result, bool) {
	switch x := v.(type) {
	case lua.LBool:
		if x {
			return bt.Success, true
		}
		return bt.Failure, true
	case lua.LString:
		switch strings.ToLower(string(x)) {
		case "success":
			return bt.Success, true
		case "failure":
			return bt.Failure, true
		case "running":
			return bt.Running, true
		}
	}
	return bt.Failure, false
}
