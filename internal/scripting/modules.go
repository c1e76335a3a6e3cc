package scripting

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"sort"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/cory-johannsen/behave/internal/bt/blackboard"
)

// registerModules registers all engine.* Lua tables into v's state.
//
// Postcondition: engine.log and engine.blackboard are defined.
func (m *Manager) registerModules(v *vm) {
	L := v.L
	engine := L.NewTable()
	L.SetField(engine, "log", m.newLogModule(L))
	L.SetField(engine, "blackboard", m.newBlackboardModule(L, v))
	L.SetGlobal("engine", engine)
}

func (m *Manager) newLogModule(L *lua.LState) *lua.LTable {
	mod := L.NewTable()
	levels := map[string]func(string, ...zap.Field){
		"debug": m.logger.Debug,
		"info":  m.logger.Info,
		"warn":  m.logger.Warn,
		"error": m.logger.Error,
	}
	for name, logFn := range levels {
		logFn := logFn
		L.SetField(mod, name, L.NewFunction(func(L *lua.LState) int {
			logFn(L.CheckString(1), zap.String("source", "lua"))
			return 0
		}))
	}
	return mod
}

// newBlackboardModule exposes the blackboard bound to v for the current call:
//
//	engine.blackboard.get(key [, default]) -> value
//	engine.blackboard.set(key, value)
//	engine.blackboard.has(key) -> bool
//	engine.blackboard.remove(key)
//	engine.blackboard.keys() -> {key, ...}
//
// Outside a call with a bound blackboard get returns the default, has returns
// false and writes are dropped with a Warn log.
func (m *Manager) newBlackboardModule(L *lua.LState, v *vm) *lua.LTable {
	mod := L.NewTable()
	L.SetField(mod, "get", L.NewFunction(func(L *lua.LState) int {
		key := L.CheckString(1)
		def := L.Get(2)
		if v.bb == nil {
			L.Push(def)
			return 1
		}
		val, ok := v.bb.Value(key)
		if !ok {
			L.Push(def)
			return 1
		}
		L.Push(ToLua(L, val))
		return 1
	}))
	L.SetField(mod, "set", L.NewFunction(func(L *lua.LState) int {
		key := L.CheckString(1)
		if v.bb == nil {
			m.logger.Warn("scripting: blackboard write with no blackboard bound", zap.String("key", key))
			return 0
		}
		old, _ := v.bb.Value(key)
		val, err := FromLua(L.Get(2), old)
		if err != nil {
			L.RaiseError("engine.blackboard.set(%q): %s", key, err.Error())
			return 0
		}
		v.bb.SetValue(key, val)
		return 0
	}))
	L.SetField(mod, "has", L.NewFunction(func(L *lua.LState) int {
		key := L.CheckString(1)
		L.Push(lua.LBool(v.bb != nil && v.bb.HasKey(key)))
		return 1
	}))
	L.SetField(mod, "remove", L.NewFunction(func(L *lua.LState) int {
		key := L.CheckString(1)
		if v.bb != nil {
			v.bb.RemoveValue(key)
		}
		return 0
	}))
	L.SetField(mod, "keys", L.NewFunction(func(L *lua.LState) int {
		out := L.NewTable()
		if v.bb != nil {
			keys := v.bb.Keys()
			sort.Strings(keys)
			for _, k := range keys {
				out.Append(lua.LString(k))
			}
		}
		L.Push(out)
		return 1
	}))
	return mod
}

// ErrCyclicTable is returned by FromLua for a table that contains itself.
var ErrCyclicTable = errors.New("scripting: cyclic table")

// ToLua converts a blackboard value to a Lua value. Vectors become tables
// with x, y (and z) fields; slices become arrays; string-keyed maps become
// tables; unsupported types are passed as their display string. A slice or
// map nested inside itself converts to nil at the point of recursion.
func ToLua(L *lua.LState, val any) lua.LValue {
	return toLua(L, val, make(map[uintptr]struct{}))
}

func toLua(L *lua.LState, val any, path map[uintptr]struct{}) lua.LValue {
	switch x := val.(type) {
	case nil:
		return lua.LNil
	case lua.LValue:
		return x
	case bool:
		return lua.LBool(x)
	case string:
		return lua.LString(x)
	case int:
		return lua.LNumber(x)
	case int32:
		return lua.LNumber(x)
	case int64:
		return lua.LNumber(x)
	case float32:
		return lua.LNumber(x)
	case float64:
		return lua.LNumber(x)
	case blackboard.Vec2:
		t := L.NewTable()
		L.SetField(t, "x", lua.LNumber(x.X))
		L.SetField(t, "y", lua.LNumber(x.Y))
		return t
	case blackboard.Vec3:
		t := L.NewTable()
		L.SetField(t, "x", lua.LNumber(x.X))
		L.SetField(t, "y", lua.LNumber(x.Y))
		L.SetField(t, "z", lua.LNumber(x.Z))
		return t
	case []any:
		id, ok := enter(path, x)
		if !ok {
			return lua.LNil
		}
		defer delete(path, id)
		t := L.NewTable()
		for _, e := range x {
			t.Append(toLua(L, e, path))
		}
		return t
	case map[string]any:
		id, ok := enter(path, x)
		if !ok {
			return lua.LNil
		}
		defer delete(path, id)
		t := L.NewTable()
		for k, e := range x {
			L.SetField(t, k, toLua(L, e, path))
		}
		return t
	case fmt.Stringer:
		return lua.LString(x.String())
	default:
		return lua.LString(fmt.Sprint(x))
	}
}

// enter records the backing pointer of a slice or map on the conversion path.
// It reports false when the value is already being converted further up.
func enter(path map[uintptr]struct{}, container any) (uintptr, bool) {
	id := reflect.ValueOf(container).Pointer()
	if id == 0 {
		return 0, true
	}
	if _, seen := path[id]; seen {
		return 0, false
	}
	path[id] = struct{}{}
	return id, true
}

// FromLua converts a Lua value for storage on the blackboard. Numbers are
// stored as float64 unless prev is an int and the number is integral, so
// scripts can update integer counters without changing their stored type.
// Tables with only array entries become []any; other tables become
// map[string]any.
//
// Postcondition: returns ErrCyclicTable if a table contains itself.
// Tables shared between siblings convert normally.
func FromLua(val lua.LValue, prev any) (any, error) {
	return fromLua(val, prev, make(map[*lua.LTable]struct{}))
}

func fromLua(val lua.LValue, prev any, path map[*lua.LTable]struct{}) (any, error) {
	switch x := val.(type) {
	case *lua.LNilType:
		return nil, nil
	case lua.LBool:
		return bool(x), nil
	case lua.LString:
		return string(x), nil
	case lua.LNumber:
		f := float64(x)
		if _, isInt := prev.(int); isInt && f == math.Trunc(f) && !math.IsInf(f, 0) {
			return int(f), nil
		}
		return f, nil
	case *lua.LTable:
		if _, seen := path[x]; seen {
			return nil, ErrCyclicTable
		}
		path[x] = struct{}{}
		defer delete(path, x)
		return tableToGo(x, path)
	default:
		return val.String(), nil
	}
}

func tableToGo(t *lua.LTable, path map[*lua.LTable]struct{}) (any, error) {
	n := t.Len()
	isArray := true
	count := 0
	t.ForEach(func(k, _ lua.LValue) {
		count++
		if num, ok := k.(lua.LNumber); !ok || float64(num) < 1 || float64(num) > float64(n) || float64(num) != math.Trunc(float64(num)) {
			isArray = false
		}
	})
	if isArray && count == n && n > 0 {
		out := make([]any, 0, n)
		for i := 1; i <= n; i++ {
			e, err := fromLua(t.RawGetInt(i), nil, path)
			if err != nil {
				return nil, err
			}
			out = append(out, e)
		}
		return out, nil
	}
	out := make(map[string]any, count)
	var err error
	t.ForEach(func(k, e lua.LValue) {
		if err != nil {
			return
		}
		var conv any
		if conv, err = fromLua(e, nil, path); err == nil {
			out[k.String()] = conv
		}
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
