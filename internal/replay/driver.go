package replay

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/combatcore/internal/game/event"
	"github.com/cory-johannsen/combatcore/internal/game/mana"
	"github.com/cory-johannsen/combatcore/internal/game/stats"
)

// tolerance is the allowed difference for expected resource values.
const tolerance = 1e-6

// Clock is a manually advanced time source shared with the damage pipeline so
// that waits and debounce windows are deterministic.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock creates a Clock reading start.
func NewClock(start time.Time) *Clock {
	return &Clock{now: start}
}

// Now returns the current virtual time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Ticker runs one regeneration pass.
type Ticker interface {
	Tick()
}

// Presence reports whether a player holds a live session.
type Presence interface {
	IsOnline(id uuid.UUID) bool
}

// Report summarizes a scenario run.
type Report struct {
	Scenario string
	Steps    int
	Failures []string
}

// OK reports whether every expectation held.
func (r Report) OK() bool {
	return len(r.Failures) == 0
}

// Driver feeds scenario steps to the bus and checks expectations against the
// live stats store.
type Driver struct {
	bus      *event.Bus
	stats    *stats.Store
	ledger   *mana.Ledger
	ticker   Ticker
	presence Presence
	clock    *Clock
	logger   *zap.Logger
}

// NewDriver creates a Driver.
//
// Precondition: all arguments must be non-nil. clock must be the time source of
// the damage pipeline subscribed on bus.
func NewDriver(bus *event.Bus, st *stats.Store, ledger *mana.Ledger, ticker Ticker, presence Presence, clock *Clock, logger *zap.Logger) *Driver {
	return &Driver{
		bus:      bus,
		stats:    st,
		ledger:   ledger,
		ticker:   ticker,
		presence: presence,
		clock:    clock,
		logger:   logger,
	}
}

// Run executes every step of sc in order. Expectation mismatches are collected
// in the report; an error is returned only when ctx ends the run early.
func (d *Driver) Run(ctx context.Context, sc *Scenario) (Report, error) {
	rep := Report{Scenario: sc.Name}
	start := time.Now()
	for i, st := range sc.Steps {
		if err := ctx.Err(); err != nil {
			return rep, fmt.Errorf("scenario %q interrupted at step %d: %w", sc.Name, i, err)
		}
		if msg := d.step(sc, st); msg != "" {
			rep.Failures = append(rep.Failures, fmt.Sprintf("step %d: %s", i, msg))
		}
		rep.Steps++
	}
	d.logger.Info("scenario finished",
		zap.String("scenario", sc.Name),
		zap.Int("steps", rep.Steps),
		zap.Int("failures", len(rep.Failures)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return rep, nil
}

func (d *Driver) step(sc *Scenario, st Step) string {
	switch {
	case st.Join != "":
		return d.dispatch(&event.Join{Player: sc.PlayerID(st.Join), Name: st.Join})
	case st.Quit != "":
		return d.dispatch(&event.Quit{Player: sc.PlayerID(st.Quit)})
	case st.Respawn != "":
		return d.dispatch(&event.Respawn{Player: sc.PlayerID(st.Respawn)})
	case st.Attack != nil:
		return d.dispatch(attackEvent(sc, st.Attack))
	case st.Hurt != nil:
		return d.dispatch(&event.EntityDamaged{
			Victim:    event.Entity{ID: sc.PlayerID(st.Hurt.Victim), Kind: event.KindPlayer, Yaw: st.Hurt.Yaw},
			Cause:     st.Hurt.Cause,
			RawDamage: st.Hurt.Raw,
		})
	case st.Spend != nil:
		return d.spend(sc, st.Spend)
	case st.Set != nil:
		return d.set(sc, st.Set)
	case st.Tick > 0:
		for range st.Tick {
			d.ticker.Tick()
		}
		return ""
	case st.Wait > 0:
		d.clock.Advance(st.Wait)
		return ""
	case st.Expect != nil:
		return d.expect(sc, st.Expect)
	}
	return "empty step"
}

func attackEvent(sc *Scenario, a *Attack) *event.EntityDamagedByEntity {
	ev := &event.EntityDamagedByEntity{
		Victim:    event.Entity{ID: sc.PlayerID(a.Victim), Kind: event.KindPlayer},
		RawDamage: a.Raw,
	}
	switch {
	case a.Attacker == "":
		ev.Damager = event.Entity{ID: uuid.New(), Kind: event.KindMob, Yaw: a.Yaw}
	case a.Projectile:
		ev.Damager = event.Entity{
			ID:   uuid.New(),
			Kind: event.KindProjectile,
			Yaw:  a.Yaw,
			Shooter: &event.Entity{
				ID:       sc.PlayerID(a.Attacker),
				Kind:     event.KindPlayer,
				MainHand: a.Weapon,
			},
		}
	default:
		ev.Damager = event.Entity{ID: sc.PlayerID(a.Attacker), Kind: event.KindPlayer, Yaw: a.Yaw, MainHand: a.Weapon}
	}
	return ev
}

func (d *Driver) dispatch(ev any) string {
	var n int
	switch e := ev.(type) {
	case *event.Join:
		n = event.Dispatch(d.bus, e)
	case *event.Quit:
		n = event.Dispatch(d.bus, e)
	case *event.Respawn:
		n = event.Dispatch(d.bus, e)
	case *event.EntityDamagedByEntity:
		n = event.Dispatch(d.bus, e)
	case *event.EntityDamaged:
		n = event.Dispatch(d.bus, e)
	}
	if n == 0 {
		return fmt.Sprintf("no handler subscribed for %T", ev)
	}
	return ""
}

func (d *Driver) spend(sc *Scenario, s *Spend) string {
	err := d.ledger.Spend(sc.PlayerID(s.Player), s.Amount)
	var want error
	switch s.WantError {
	case SpendErrNotEnoughMana:
		want = mana.ErrNotEnoughMana
	case SpendErrOutOfBounds:
		want = mana.ErrManaOutOfBounds
	}
	switch {
	case want == nil && err != nil:
		return fmt.Sprintf("spend %v by %s: unexpected error: %v", s.Amount, s.Player, err)
	case want != nil && !errors.Is(err, want):
		return fmt.Sprintf("spend %v by %s: want %v, got %v", s.Amount, s.Player, want, err)
	}
	return ""
}

func (d *Driver) set(sc *Scenario, s *Set) string {
	err := d.stats.Update(sc.PlayerID(s.Player), func(st *stats.State) error {
		if s.Strength != nil {
			st.Strength = *s.Strength
		}
		if s.Dexterity != nil {
			st.Dexterity = *s.Dexterity
		}
		if s.Armor != nil {
			st.Armor = *s.Armor
		}
		if s.Health != nil {
			st.Health = *s.Health
		}
		if s.Shield != nil {
			st.Shield = *s.Shield
		}
		if s.Mana != nil {
			st.Mana = *s.Mana
		}
		st.Clamp()
		return nil
	})
	if err != nil {
		return fmt.Sprintf("set %s: %v", s.Player, err)
	}
	return ""
}

func (d *Driver) expect(sc *Scenario, e *Expect) string {
	id := sc.PlayerID(e.Player)
	if e.Online != nil && d.presence.IsOnline(id) != *e.Online {
		return fmt.Sprintf("%s online: want %t", e.Player, *e.Online)
	}
	if e.Health == nil && e.Shield == nil && e.Mana == nil {
		return ""
	}
	st, ok := d.stats.Lookup(id)
	if !ok {
		return fmt.Sprintf("%s is not tracked", e.Player)
	}
	for _, c := range []struct {
		name string
		want *float64
		got  float64
	}{
		{"health", e.Health, st.Health},
		{"shield", e.Shield, st.Shield},
		{"mana", e.Mana, st.Mana},
	} {
		if c.want != nil && math.Abs(*c.want-c.got) > tolerance {
			return fmt.Sprintf("%s %s: want %v, got %v", e.Player, c.name, *c.want, c.got)
		}
	}
	return ""
}
