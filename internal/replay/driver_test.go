package replay_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cory-johannsen/combatcore/internal/game/damage"
	"github.com/cory-johannsen/combatcore/internal/game/event"
	"github.com/cory-johannsen/combatcore/internal/game/mana"
	"github.com/cory-johannsen/combatcore/internal/game/profile"
	"github.com/cory-johannsen/combatcore/internal/game/regen"
	"github.com/cory-johannsen/combatcore/internal/game/session"
	"github.com/cory-johannsen/combatcore/internal/game/stats"
	"github.com/cory-johannsen/combatcore/internal/gameserver"
	"github.com/cory-johannsen/combatcore/internal/replay"
	"github.com/cory-johannsen/combatcore/internal/storage/yamlstore"
)

type rig struct {
	driver *replay.Driver
	host   *gameserver.LoggingHost
	stats  *stats.Store
}

func newRig(t *testing.T) *rig {
	t.Helper()
	logger := zap.NewNop()
	store, err := yamlstore.New(t.TempDir())
	require.NoError(t, err)

	clock := replay.NewClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	st := stats.NewStore()
	sessions := session.NewManager()
	host := gameserver.NewLoggingHost(logger)
	adapter := profile.NewAdapter(store, st, sessions, host, logger)
	pipeline := damage.NewPipeline(st, adapter, host, host, sessions, logger, damage.Options{Now: clock.Now})
	scheduler := regen.NewScheduler(st, sessions, sessions, 0, logger)
	bus := event.NewBus()
	gameserver.NewCombatService(bus, sessions, adapter, pipeline, scheduler, logger).Register()
	ledger := mana.NewLedger(st, adapter, logger)

	return &rig{
		driver: replay.NewDriver(bus, st, ledger, scheduler, sessions, clock, logger),
		host:   host,
		stats:  st,
	}
}

const duelScenario = `
name: duel
steps:
  - join: alice
  - join: bob
  - expect: {player: alice, health: 40, shield: 0, mana: 100, online: true}
  - tick: 1
  - expect: {player: alice, health: 40, shield: 0.75, mana: 100}
  - set: {player: bob, strength: 8}
  - attack: {victim: alice, attacker: bob, raw: 5, yaw: 45}
  - expect: {player: alice, health: 38.75, shield: 0}
  - wait: 1s
  - hurt: {victim: alice, cause: fall, raw: 10}
  - expect: {player: alice, health: 30.25}
  - spend: {player: alice, amount: 30}
  - spend: {player: alice, amount: 80, want_error: not_enough_mana}
  - spend: {player: alice, amount: -1, want_error: out_of_bounds}
  - expect: {player: alice, mana: 70}
  - set: {player: bob, dexterity: 20}
  - attack: {victim: alice, attacker: bob, projectile: true, weapon: bow, raw: 3}
  - expect: {player: alice, health: 25.25}
  - attack: {victim: alice, attacker: bob, projectile: true, weapon: sword, raw: 3}
  - attack: {victim: alice, raw: 100}
  - expect: {player: alice, health: 25.25}
  - set: {player: alice, armor: 400}
  - hurt: {victim: alice, cause: lava, raw: 1000}
  - expect: {player: alice, health: 25.25}
  - set: {player: alice, armor: 0, health: 1}
  - hurt: {victim: alice, cause: void, raw: 100}
  - expect: {player: alice, health: 1}
  - set: {player: bob, strength: 400}
  - attack: {victim: alice, attacker: bob, raw: 1}
  - expect: {player: alice, health: 0}
  - respawn: alice
  - expect: {player: alice, health: 28}
  - quit: alice
  - expect: {player: alice, online: false}
  - expect: {player: bob, online: true}
`

func TestDriver_DuelScenario(t *testing.T) {
	r := newRig(t)
	sc, err := replay.LoadBytes([]byte(duelScenario))
	require.NoError(t, err)

	rep, err := r.driver.Run(context.Background(), sc)
	require.NoError(t, err)
	assert.Empty(t, rep.Failures)
	assert.True(t, rep.OK())
	assert.Equal(t, len(sc.Steps), rep.Steps)

	alice := sc.PlayerID("alice")
	assert.Equal(t, 2, r.host.Count(gameserver.ActionKill, alice))
	_, tracked := r.stats.Lookup(alice)
	assert.False(t, tracked)
}

func TestDriver_ReportsMismatches(t *testing.T) {
	r := newRig(t)
	sc, err := replay.LoadBytes([]byte(`
name: wrong
steps:
  - join: carol
  - expect: {player: carol, health: 39}
  - spend: {player: carol, amount: 500}
  - expect: {player: dave, mana: 100}
  - set: {player: dave, strength: 1}
`))
	require.NoError(t, err)

	rep, err := r.driver.Run(context.Background(), sc)
	require.NoError(t, err)
	require.Len(t, rep.Failures, 4)
	assert.Contains(t, rep.Failures[0], "step 1: carol health: want 39, got 40")
	assert.Contains(t, rep.Failures[1], "step 2: spend 500 by carol")
	assert.Contains(t, rep.Failures[2], "dave is not tracked")
	assert.Contains(t, rep.Failures[3], "set dave")
	assert.False(t, rep.OK())
}

func TestDriver_NoSubscribersIsAFailure(t *testing.T) {
	logger := zap.NewNop()
	st := stats.NewStore()
	clock := replay.NewClock(time.Now())
	d := replay.NewDriver(event.NewBus(), st, mana.NewLedger(st, nil, logger), regen.NewScheduler(st, nil, nil, 0, logger), session.NewManager(), clock, logger)

	rep, err := d.Run(context.Background(), &replay.Scenario{Steps: []replay.Step{{Join: "erin"}}})
	require.NoError(t, err)
	require.Len(t, rep.Failures, 1)
	assert.Contains(t, rep.Failures[0], "no handler subscribed")
}

func TestDriver_WaitAdvancesClock(t *testing.T) {
	clock := replay.NewClock(time.Unix(0, 0))
	logger := zap.NewNop()
	st := stats.NewStore()
	d := replay.NewDriver(event.NewBus(), st, mana.NewLedger(st, nil, logger), regen.NewScheduler(st, nil, nil, 0, logger), session.NewManager(), clock, logger)

	_, err := d.Run(context.Background(), &replay.Scenario{Steps: []replay.Step{{Wait: 250 * time.Millisecond}, {Wait: time.Second}}})
	require.NoError(t, err)
	assert.Equal(t, time.Unix(0, 0).Add(1250*time.Millisecond), clock.Now())
}

func TestDriver_CancelledContextStops(t *testing.T) {
	r := newRig(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rep, err := r.driver.Run(ctx, &replay.Scenario{Name: "stopped", Steps: []replay.Step{{Join: "frank"}}})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, rep.Steps)
}
