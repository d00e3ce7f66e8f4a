package scripting_test

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/combatcore/internal/game/damage"
	"github.com/cory-johannsen/combatcore/internal/game/stats"
	"github.com/cory-johannsen/combatcore/internal/scripting"
)

func newTestManager(t testing.TB) (*scripting.Manager, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	mgr := scripting.NewManager(zap.New(core), 0)
	t.Cleanup(mgr.Close)
	return mgr, logs
}

func writeTempLua(t testing.TB, filename, src string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, filename), []byte(src), 0644))
	return dir
}

func TestManager_Load_CallsHook(t *testing.T) {
	mgr, _ := newTestManager(t)
	require.NoError(t, mgr.Load(writeTempLua(t, "hooks.lua", `
		function add(a, b)
			return a + b
		end
	`)))
	ret, err := mgr.CallHook("add", lua.LNumber(3), lua.LNumber(4))
	require.NoError(t, err)
	assert.Equal(t, lua.LNumber(7), ret)
	assert.True(t, mgr.Loaded())
}

func TestManager_CallHook_MissingHookIsNoOp(t *testing.T) {
	mgr, _ := newTestManager(t)
	require.NoError(t, mgr.Load(writeTempLua(t, "empty.lua", `-- nothing`)))
	ret, err := mgr.CallHook("nonexistent_hook")
	require.NoError(t, err)
	assert.Equal(t, lua.LNil, ret)
}

func TestManager_CallHook_NoVMReturnsNil(t *testing.T) {
	mgr, _ := newTestManager(t)
	ret, err := mgr.CallHook(scripting.HookDamage)
	require.NoError(t, err)
	assert.Equal(t, lua.LNil, ret)
	assert.False(t, mgr.Loaded())
}

func TestManager_CallHook_RuntimeErrorLogsWarn(t *testing.T) {
	mgr, logs := newTestManager(t)
	require.NoError(t, mgr.Load(writeTempLua(t, "bad.lua", `
		function bad_hook()
			error("intentional error")
		end
	`)))
	ret, err := mgr.CallHook("bad_hook")
	require.NoError(t, err)
	assert.Equal(t, lua.LNil, ret)
	assert.Equal(t, 1, logs.FilterLevelExact(zap.WarnLevel).FilterMessage("scripting: Lua runtime error").Len())
}

func TestManager_InstructionBudgetIsPerCall(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	mgr := scripting.NewManager(zap.New(core), 500)
	defer mgr.Close()
	require.NoError(t, mgr.Load(writeTempLua(t, "budget.lua", `
		function spin() while true do end end
		function small(n)
			local total = 0
			for i = 1, n do total = total + i end
			return total
		end
	`)))

	_, err := mgr.CallHook("spin")
	require.NoError(t, err)
	assert.Equal(t, 1, logs.FilterLevelExact(zap.WarnLevel).Len())

	for i := 0; i < 20; i++ {
		ret, err := mgr.CallHook("small", lua.LNumber(10))
		require.NoError(t, err)
		assert.Equal(t, lua.LNumber(55), ret)
	}
}

func TestManager_Load_MultipleFilesOrderedByName(t *testing.T) {
	mgr, _ := newTestManager(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.lua"), []byte(`base_val = 10`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.lua"), []byte(`function get_val() return base_val end`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte(`not lua`), 0644))
	require.NoError(t, mgr.Load(dir))

	ret, err := mgr.CallHook("get_val")
	require.NoError(t, err)
	assert.Equal(t, lua.LNumber(10), ret)
}

func TestManager_Load_Errors(t *testing.T) {
	mgr, _ := newTestManager(t)
	assert.Error(t, mgr.Load(filepath.Join(t.TempDir(), "missing")))
	assert.Error(t, mgr.Load(writeTempLua(t, "bad.lua", `this is not valid lua @@@@`)))
	assert.False(t, mgr.Loaded())
}

func TestManager_Load_FailureKeepsPreviousVM(t *testing.T) {
	mgr, _ := newTestManager(t)
	require.NoError(t, mgr.Load(writeTempLua(t, "ok.lua", `function v() return 1 end`)))
	require.Error(t, mgr.Load(writeTempLua(t, "bad.lua", `@@@`)))

	ret, err := mgr.CallHook("v")
	require.NoError(t, err)
	assert.Equal(t, lua.LNumber(1), ret)
}

func TestManager_Close_ReleasesVM(t *testing.T) {
	mgr, _ := newTestManager(t)
	require.NoError(t, mgr.Load(writeTempLua(t, "init.lua", `function get_x() return 1 end`)))
	mgr.Close()
	mgr.Close()
	ret, err := mgr.CallHook("get_x")
	assert.NoError(t, err)
	assert.Equal(t, lua.LNil, ret)
}

func TestManager_NewManagerPanicsOnNilLogger(t *testing.T) {
	assert.Panics(t, func() { scripting.NewManager(nil, 0) })
}

const observerScript = `
	damage_calls = 0
	function on_damage(r)
		damage_calls = damage_calls + 1
		last_victim = r.victim
		last_attacker = r.attacker
		last_source = r.source
		last_damage = r.damage
		last_health = r.health_after
		last_rapid = r.rapid
	end
	function on_death(r)
		dead = r.victim
	end
	function on_respawn(player, health)
		respawned = player
		respawn_health = health
	end
	function get(name) return _G[name] end
`

func global(t *testing.T, mgr *scripting.Manager, name string) lua.LValue {
	t.Helper()
	ret, err := mgr.CallHook("get", lua.LString(name))
	require.NoError(t, err)
	return ret
}

func TestManager_ObserverHooksReceiveResolution(t *testing.T) {
	mgr, _ := newTestManager(t)
	require.NoError(t, mgr.Load(writeTempLua(t, "observer.lua", observerScript)))

	victim, attacker := uuid.New(), uuid.New()
	res := damage.Resolution{
		Victim:      victim,
		Attacker:    attacker,
		Source:      damage.SourceEntity,
		Damage:      5,
		HealthAfter: 0,
		Rapid:       true,
		Killed:      true,
	}
	mgr.OnDamage(res)
	mgr.OnDeath(res)
	mgr.OnRespawn(victim, 28)

	assert.Equal(t, lua.LNumber(1), global(t, mgr, "damage_calls"))
	assert.Equal(t, lua.LString(victim.String()), global(t, mgr, "last_victim"))
	assert.Equal(t, lua.LString(attacker.String()), global(t, mgr, "last_attacker"))
	assert.Equal(t, lua.LString("entity"), global(t, mgr, "last_source"))
	assert.Equal(t, lua.LNumber(5), global(t, mgr, "last_damage"))
	assert.Equal(t, lua.LNumber(0), global(t, mgr, "last_health"))
	assert.Equal(t, lua.LTrue, global(t, mgr, "last_rapid"))
	assert.Equal(t, lua.LString(victim.String()), global(t, mgr, "dead"))
	assert.Equal(t, lua.LString(victim.String()), global(t, mgr, "respawned"))
	assert.Equal(t, lua.LNumber(28), global(t, mgr, "respawn_health"))
}

func TestManager_GenericDamageHasNoAttacker(t *testing.T) {
	mgr, _ := newTestManager(t)
	require.NoError(t, mgr.Load(writeTempLua(t, "observer.lua", observerScript)))

	mgr.OnDamage(damage.Resolution{Victim: uuid.New(), Source: damage.SourceGeneric, Cause: "fall"})
	assert.Equal(t, lua.LNil, global(t, mgr, "last_attacker"))
	assert.Equal(t, lua.LString("generic"), global(t, mgr, "last_source"))
}

func TestEngineLog_AllLevels(t *testing.T) {
	mgr, logs := newTestManager(t)
	require.NoError(t, mgr.Load(writeTempLua(t, "log.lua", `
		function do_logs()
			engine.log.debug("d")
			engine.log.info("i")
			engine.log.warn("w")
			engine.log.error("e")
		end
	`)))
	_, err := mgr.CallHook("do_logs")
	require.NoError(t, err)

	for msg, level := range map[string]zapcore.Level{
		"d": zapcore.DebugLevel,
		"i": zapcore.InfoLevel,
		"w": zapcore.WarnLevel,
		"e": zapcore.ErrorLevel,
	} {
		entries := logs.FilterMessage(msg).All()
		require.Len(t, entries, 1, msg)
		assert.Equal(t, level, entries[0].Level)
		assert.Equal(t, "lua", entries[0].ContextMap()["source"])
	}
}

func TestEngineCombatStats(t *testing.T) {
	mgr, _ := newTestManager(t)
	tracked := uuid.New()
	mgr.LookupState = func(id uuid.UUID) (stats.State, bool) {
		if id != tracked {
			return stats.State{}, false
		}
		st := stats.Defaults()
		st.Strength = 12
		return st, true
	}
	require.NoError(t, mgr.Load(writeTempLua(t, "stats.lua", `
		function strength(id)
			local s = engine.combat.stats(id)
			if s == nil then return -1 end
			return s.strength
		end
		function race(id) return engine.combat.stats(id).race end
	`)))

	ret, err := mgr.CallHook("strength", lua.LString(tracked.String()))
	require.NoError(t, err)
	assert.Equal(t, lua.LNumber(12), ret)

	ret, err = mgr.CallHook("race", lua.LString(tracked.String()))
	require.NoError(t, err)
	assert.Equal(t, lua.LString(stats.DefaultRace), ret)

	ret, err = mgr.CallHook("strength", lua.LString(uuid.NewString()))
	require.NoError(t, err)
	assert.Equal(t, lua.LNumber(-1), ret)

	ret, err = mgr.CallHook("strength", lua.LString("not-a-uuid"))
	require.NoError(t, err)
	assert.Equal(t, lua.LNumber(-1), ret)
}

func TestProperty_CallHookConcurrent_NoRace(t *testing.T) {
	mgr, _ := newTestManager(t)
	require.NoError(t, mgr.Load(writeTempLua(t, "hooks.lua", `
		function concurrent_hook(a, b) return a + b end
	`)))

	const goroutines = 10
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < 5; j++ {
				ret, err := mgr.CallHook("concurrent_hook", lua.LNumber(1), lua.LNumber(2))
				assert.NoError(t, err)
				assert.Equal(t, lua.LNumber(3), ret)
				mgr.OnDamage(damage.Resolution{Victim: uuid.New()})
			}
		}()
	}
	wg.Wait()
}

func TestProperty_CallHookUnknownNeverPanics(t *testing.T) {
	mgr, _ := newTestManager(t)
	require.NoError(t, mgr.Load(t.TempDir()))
	rapid.Check(t, func(rt *rapid.T) {
		hook := rapid.StringMatching(`hook_[a-z]{1,8}`).Draw(rt, "hook")
		ret, err := mgr.CallHook(hook)
		if err != nil || ret != lua.LNil {
			rt.Fatalf("hook %q: ret=%v err=%v", hook, ret, err)
		}
	})
}
