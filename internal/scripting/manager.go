package scripting

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/cory-johannsen/behave/internal/bt/blackboard"
)

// GlobalVM is the reserved ID for shared scripts loaded via LoadGlobal.
// CallHook falls back to this VM when no VM is registered under the requested ID.
const GlobalVM = "__global__"

// vm is one sandboxed LState and the blackboard bound for the call in flight.
//
// Invariant: mu is held for the whole of every call into L.
type vm struct {
	mu    sync.Mutex
	L     *lua.LState
	limit int
	bb    *blackboard.Blackboard
}

// Manager owns one sandboxed LState per VM ID and exposes hook dispatch.
//
// Manager is safe for concurrent CallHook. Each LState is single-threaded;
// calls into the same VM are serialized while different VMs run concurrently.
type Manager struct {
	mu     sync.RWMutex
	vms    map[string]*vm
	logger *zap.Logger
}

// NewManager creates a Manager.
//
// Precondition: logger must be non-nil.
// Postcondition: Returns a non-nil Manager with no VMs.
func NewManager(logger *zap.Logger) *Manager {
	if logger == nil {
		panic("scripting.NewManager: logger must not be nil")
	}
	return &Manager{
		vms:    make(map[string]*vm),
		logger: logger,
	}
}

// LoadVM creates a sandboxed VM for id, registers all engine.* modules,
// then executes every *.lua file in scriptDir in lexicographic order.
//
// Precondition: id must be non-empty; scriptDir must be a readable directory.
// Postcondition: the VM replaces any previous VM with the same id; returns
// error on Lua load failure.
func (m *Manager) LoadVM(id, scriptDir string, instLimit int) error {
	if id == "" {
		return fmt.Errorf("scripting.LoadVM: id must not be empty")
	}
	return m.loadInto(id, scriptDir, instLimit)
}

// LoadGlobal creates the GlobalVM used as the CallHook fallback.
//
// Precondition: scriptDir must be a readable directory.
// Postcondition: Global VM is registered; returns error on Lua load failure.
func (m *Manager) LoadGlobal(scriptDir string, instLimit int) error {
	return m.loadInto(GlobalVM, scriptDir, instLimit)
}

func (m *Manager) loadInto(id, scriptDir string, instLimit int) error {
	entries, err := os.ReadDir(scriptDir)
	if err != nil {
		return fmt.Errorf("scripting: reading script dir %q for %q: %w", scriptDir, id, err)
	}

	var luaFiles []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".lua" {
			luaFiles = append(luaFiles, filepath.Join(scriptDir, e.Name()))
		}
	}
	sort.Strings(luaFiles)

	v := &vm{L: NewSandboxedState(instLimit), limit: instLimit}
	m.registerModules(v)

	for _, path := range luaFiles {
		cancel := armBudget(v.L, v.limit)
		err := v.L.DoFile(path)
		cancel()
		if err != nil {
			v.L.Close()
			return fmt.Errorf("scripting: loading %q for %q: %w", path, id, err)
		}
	}

	m.mu.Lock()
	old := m.vms[id]
	m.vms[id] = v
	m.mu.Unlock()
	if old != nil {
		old.mu.Lock()
		old.L.Close()
		old.mu.Unlock()
	}
	m.logger.Info("scripting: VM loaded",
		zap.String("vm", id),
		zap.String("dir", scriptDir),
		zap.Int("files", len(luaFiles)),
	)
	return nil
}

// HasVM reports whether a VM is registered under id.
func (m *Manager) HasVM(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.vms[id]
	return ok
}

// HasHook reports whether hook is a function in the VM CallHook would use for id.
func (m *Manager) HasHook(id, hook string) bool {
	v := m.lookup(id)
	if v == nil {
		return false
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.L.GetGlobal(hook).Type() == lua.LTFunction
}

func (m *Manager) lookup(id string) *vm {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if v, ok := m.vms[id]; ok {
		return v
	}
	return m.vms[GlobalVM]
}

// CallHook calls the named Lua global function in id's VM with no blackboard
// bound. See CallHookWith.
func (m *Manager) CallHook(id, hook string, args ...lua.LValue) (lua.LValue, error) {
	vals := make([]any, len(args))
	for i, a := range args {
		vals[i] = a
	}
	return m.CallHookWith(id, hook, nil, vals...)
}

// CallHookWith calls the named Lua global function in id's VM with bb bound
// to the engine.blackboard module for the duration of the call. If id has no
// VM, the GlobalVM is tried as a fallback. Returns (LNil, nil) if the hook is
// not defined or no VM exists. Lua runtime errors, including an exhausted
// instruction budget, are logged at Warn level and never propagated.
//
// Args are converted with ToLua inside the VM, so Go maps and slices arrive
// as tables.
//
// Postcondition: Returns the first return value of the hook, or LNil.
func (m *Manager) CallHookWith(id, hook string, bb *blackboard.Blackboard, args ...any) (lua.LValue, error) {
	v := m.lookup(id)
	if v == nil {
		m.logger.Info("scripting: no VM",
			zap.String("vm", id),
			zap.String("hook", hook),
		)
		return lua.LNil, nil
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	fn := v.L.GetGlobal(hook)
	if fn == lua.LNil {
		return lua.LNil, nil
	}

	largs := make([]lua.LValue, len(args))
	for i, a := range args {
		largs[i] = ToLua(v.L, a)
	}
	v.bb = bb
	cancel := armBudget(v.L, v.limit)
	err := v.L.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, largs...)
	cancel()
	v.bb = nil
	if err != nil {
		m.logger.Warn("scripting: Lua runtime error",
			zap.String("vm", id),
			zap.String("hook", hook),
			zap.Error(err),
		)
		return lua.LNil, nil
	}

	ret := v.L.Get(-1)
	v.L.Pop(1)
	return ret, nil
}

// Close releases every VM.
//
// Postcondition: subsequent CallHook calls return LNil.
func (m *Manager) Close() {
	m.mu.Lock()
	vms := m.vms
	m.vms = make(map[string]*vm)
	m.mu.Unlock()
	for _, v := range vms {
		v.mu.Lock()
		v.L.Close()
		v.mu.Unlock()
	}
}
