package scripting

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/google/uuid"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/cory-johannsen/combatcore/internal/game/damage"
	"github.com/cory-johannsen/combatcore/internal/game/stats"
)

// Hook names looked up as Lua globals.
const (
	HookDamage  = "on_damage"
	HookDeath   = "on_death"
	HookRespawn = "on_respawn"
)

// Manager owns one sandboxed LState holding the combat hooks and implements
// damage.Observer.
//
// The LState is single-threaded; calls are serialized by mu.
type Manager struct {
	mu        sync.Mutex
	L         *lua.LState
	cancel    context.CancelFunc
	instLimit int
	logger    *zap.Logger

	// LookupState backs engine.combat.stats. nil makes it return nil.
	LookupState func(id uuid.UUID) (stats.State, bool)
}

var _ damage.Observer = (*Manager)(nil)

// NewManager creates a Manager with no scripts loaded.
//
// Precondition: logger must be non-nil; instLimit <= 0 uses DefaultInstructionLimit.
func NewManager(logger *zap.Logger, instLimit int) *Manager {
	if logger == nil {
		panic("scripting.NewManager: logger must not be nil")
	}
	return &Manager{
		instLimit: normalizeLimit(instLimit),
		logger:    logger,
	}
}

// Load creates a fresh VM, registers the engine.* modules, then executes every
// *.lua file in scriptDir in lexicographic order. A previously loaded VM is
// replaced only when every file loads.
//
// Postcondition: returns an error on a missing directory or a Lua load failure.
func (m *Manager) Load(scriptDir string) error {
	entries, err := os.ReadDir(scriptDir)
	if err != nil {
		return fmt.Errorf("scripting: reading script dir %q: %w", scriptDir, err)
	}
	var luaFiles []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".lua" {
			luaFiles = append(luaFiles, filepath.Join(scriptDir, e.Name()))
		}
	}
	sort.Strings(luaFiles)

	L, cancel := NewSandboxedState(m.instLimit)
	m.RegisterModules(L)
	for _, path := range luaFiles {
		cancel()
		cancel = refill(L, m.instLimit)
		if err := L.DoFile(path); err != nil {
			cancel()
			L.Close()
			return fmt.Errorf("scripting: loading %q: %w", path, err)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeLocked()
	m.L = L
	m.cancel = cancel
	m.logger.Info("combat scripts loaded", zap.String("dir", scriptDir), zap.Int("files", len(luaFiles)))
	return nil
}

// CallHook calls the named Lua global with a fresh opcode budget. Returns
// (LNil, nil) if no VM is loaded or the hook is not defined. Lua runtime errors
// are logged at Warn level and never propagated.
//
// Postcondition: Returns the first return value of the hook, or LNil.
func (m *Manager) CallHook(hook string, args ...lua.LValue) (lua.LValue, error) {
	return m.call(hook, func(*lua.LState) []lua.LValue { return args })
}

// call resolves hook and builds its arguments against the live VM under mu.
func (m *Manager) call(hook string, args func(L *lua.LState) []lua.LValue) (lua.LValue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.L == nil {
		m.logger.Debug("scripting: no VM loaded", zap.String("hook", hook))
		return lua.LNil, nil
	}
	fn := m.L.GetGlobal(hook)
	if fn == lua.LNil {
		return lua.LNil, nil
	}

	m.cancel()
	m.cancel = refill(m.L, m.instLimit)
	if err := m.L.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, args(m.L)...); err != nil {
		m.logger.Warn("scripting: Lua runtime error",
			zap.String("hook", hook),
			zap.Error(err),
		)
		return lua.LNil, nil
	}

	ret := m.L.Get(-1)
	m.L.Pop(1)
	return ret, nil
}

// Loaded reports whether a VM is installed.
func (m *Manager) Loaded() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.L != nil
}

// Close releases the VM. Later hook calls are no-ops.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeLocked()
}

func (m *Manager) closeLocked() {
	if m.L == nil {
		return
	}
	m.cancel()
	m.L.Close()
	m.L = nil
	m.cancel = nil
}

// OnDamage calls on_damage with a table describing r.
func (m *Manager) OnDamage(r damage.Resolution) {
	m.callResolution(HookDamage, r)
}

// OnDeath calls on_death with a table describing the killing blow.
func (m *Manager) OnDeath(r damage.Resolution) {
	m.callResolution(HookDeath, r)
}

// OnRespawn calls on_respawn(player, health).
func (m *Manager) OnRespawn(id uuid.UUID, health float64) {
	_, _ = m.CallHook(HookRespawn, lua.LString(id.String()), lua.LNumber(health))
}

func (m *Manager) callResolution(hook string, r damage.Resolution) {
	_, _ = m.call(hook, func(L *lua.LState) []lua.LValue {
		return []lua.LValue{resolutionTable(L, r)}
	})
}

func resolutionTable(L *lua.LState, r damage.Resolution) *lua.LTable {
	t := L.NewTable()
	t.RawSetString("victim", lua.LString(r.Victim.String()))
	if r.Attacker != uuid.Nil {
		t.RawSetString("attacker", lua.LString(r.Attacker.String()))
	}
	t.RawSetString("source", lua.LString(string(r.Source)))
	t.RawSetString("cause", lua.LString(r.Cause))
	t.RawSetString("raw", lua.LNumber(r.Raw))
	t.RawSetString("damage", lua.LNumber(r.Damage))
	t.RawSetString("reduction", lua.LNumber(r.Reduction))
	t.RawSetString("shield_before", lua.LNumber(r.ShieldBefore))
	t.RawSetString("shield_after", lua.LNumber(r.ShieldAfter))
	t.RawSetString("health_before", lua.LNumber(r.HealthBefore))
	t.RawSetString("health_after", lua.LNumber(r.HealthAfter))
	t.RawSetString("rapid", lua.LBool(r.Rapid))
	t.RawSetString("killed", lua.LBool(r.Killed))
	return t
}
