package scripting

import (
	"github.com/google/uuid"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// RegisterModules registers the engine.log and engine.combat tables into L.
//
// Precondition: L must be from NewSandboxedState.
// Postcondition: engine global is defined in L.
func (m *Manager) RegisterModules(L *lua.LState) {
	engine := L.NewTable()
	L.SetField(engine, "log", m.newLogModule(L))
	L.SetField(engine, "combat", m.newCombatModule(L))
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
		L.SetField(mod, name, L.NewFunction(func(L *lua.LState) int {
			logFn(L.CheckString(1), zap.String("source", "lua"))
			return 0
		}))
	}
	return mod
}

func (m *Manager) newCombatModule(L *lua.LState) *lua.LTable {
	mod := L.NewTable()
	L.SetField(mod, "stats", L.NewFunction(m.luaStats))
	return mod
}

// luaStats implements engine.combat.stats(player_id). It returns nil for an
// unparseable or untracked id.
func (m *Manager) luaStats(L *lua.LState) int {
	id, err := uuid.Parse(L.CheckString(1))
	if err != nil || m.LookupState == nil {
		L.Push(lua.LNil)
		return 1
	}
	st, ok := m.LookupState(id)
	if !ok {
		L.Push(lua.LNil)
		return 1
	}
	t := L.NewTable()
	t.RawSetString("health", lua.LNumber(st.Health))
	t.RawSetString("max_health", lua.LNumber(st.MaxHealth))
	t.RawSetString("shield", lua.LNumber(st.Shield))
	t.RawSetString("max_shield", lua.LNumber(st.MaxShield))
	t.RawSetString("mana", lua.LNumber(st.Mana))
	t.RawSetString("max_mana", lua.LNumber(st.MaxMana))
	t.RawSetString("armor", lua.LNumber(st.Armor))
	t.RawSetString("strength", lua.LNumber(st.Strength))
	t.RawSetString("dexterity", lua.LNumber(st.Dexterity))
	t.RawSetString("intelligence", lua.LNumber(st.Intelligence))
	t.RawSetString("wisdom", lua.LNumber(st.Wisdom))
	t.RawSetString("race", lua.LString(st.Race))
	L.Push(t)
	return 1
}
