// Package damage replaces the host's native damage and healing with the combat
// formulas: attribute-scaled entity damage, armor-mitigated generic damage and
// respawn restoration.
package damage

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/combatcore/internal/game/event"
	"github.com/cory-johannsen/combatcore/internal/game/stats"
	"github.com/cory-johannsen/combatcore/internal/observability"
)

const (
	// DefaultDebounceWindow flags hits closer together than this as rapid.
	DefaultDebounceWindow = 250 * time.Millisecond
	// DefaultRespawnFraction is the share of maxHealth restored on respawn.
	DefaultRespawnFraction = 0.7
)

// Host performs actions on the host engine's native entity.
type Host interface {
	// Kill hands the player to the host's native zero-health handling.
	Kill(id uuid.UUID)
}

// Animator plays the hurt reaction for a player.
type Animator interface {
	HurtAnimation(id uuid.UUID, yaw float32)
}

// Messenger delivers a chat line to a player.
type Messenger interface {
	SendMessage(id uuid.UUID, text string)
}

// Profiles is the durable side needed on respawn.
type Profiles interface {
	ReloadMaxHealth(ctx context.Context, id uuid.UUID) (float64, error)
	Flush(ctx context.Context, id uuid.UUID) error
}

// Observer receives every resolved outcome. Implementations must not block.
type Observer interface {
	OnDamage(r Resolution)
	OnDeath(r Resolution)
	OnRespawn(id uuid.UUID, health float64)
}

// Source distinguishes the two damage entry points.
type Source string

const (
	SourceEntity  Source = "entity"
	SourceGeneric Source = "generic"
)

// Resolution describes one applied damage signal.
type Resolution struct {
	Victim uuid.UUID
	// Attacker is the player credited with the hit, or uuid.Nil.
	Attacker uuid.UUID
	Source   Source
	Cause    string
	// Raw is the host's native damage figure.
	Raw float64
	// Damage is the amount computed by the combat formulas.
	Damage       float64
	Reduction    float64
	ShieldBefore float64
	ShieldAfter  float64
	HealthBefore float64
	HealthAfter  float64
	// Rapid is set when the hit landed inside the debounce window.
	Rapid  bool
	Killed bool
}

// Options tunes a Pipeline. Zero fields select the defaults.
type Options struct {
	Coefficients    Coefficients
	DebounceWindow  time.Duration
	RespawnFraction float64
	Debug           bool
	// Now overrides the clock in tests.
	Now func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Coefficients == (Coefficients{}) {
		o.Coefficients = DefaultCoefficients()
	}
	if o.DebounceWindow <= 0 {
		o.DebounceWindow = DefaultDebounceWindow
	}
	if o.RespawnFraction <= 0 {
		o.RespawnFraction = DefaultRespawnFraction
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Pipeline is the sole writer of health from combat and environmental sources.
type Pipeline struct {
	stats     *stats.Store
	profiles  Profiles
	host      Host
	animator  Animator
	messenger Messenger
	logger    *zap.Logger
	opts      Options

	debug    atomic.Bool
	observer atomic.Pointer[observerBox]
}

type observerBox struct{ Observer }

// NewPipeline creates a Pipeline.
//
// Precondition: st, profiles, host and logger must be non-nil; animator and
// messenger may be nil.
func NewPipeline(st *stats.Store, profiles Profiles, host Host, animator Animator, messenger Messenger, logger *zap.Logger, opts Options) *Pipeline {
	p := &Pipeline{
		stats:     st,
		profiles:  profiles,
		host:      host,
		animator:  animator,
		messenger: messenger,
		logger:    logger,
		opts:      opts.withDefaults(),
	}
	p.debug.Store(opts.Debug)
	return p
}

// SetObserver installs o; nil removes the current observer.
func (p *Pipeline) SetObserver(o Observer) {
	if o == nil {
		p.observer.Store(nil)
		return
	}
	p.observer.Store(&observerBox{o})
}

// SetDebug toggles per-hit debug messages.
func (p *Pipeline) SetDebug(on bool) {
	p.debug.Store(on)
}

// Coefficients returns the active coefficients.
func (p *Pipeline) Coefficients() Coefficients {
	return p.opts.Coefficients
}

// Register subscribes the pipeline's handlers on bus.
func (p *Pipeline) Register(bus *event.Bus) {
	event.Subscribe(bus, func(ev *event.EntityDamagedByEntity) { p.OnEntityDamage(ev) })
	event.Subscribe(bus, func(ev *event.EntityDamaged) { p.OnGenericDamage(ev) })
	event.Subscribe(bus, p.OnPassiveRegen)
}

// OnPassiveRegen suppresses native healing for players.
func (p *Pipeline) OnPassiveRegen(ev *event.PassiveRegen) {
	if ev.Entity.IsPlayer() {
		ev.Cancel()
	}
}

// OnEntityDamage resolves damage dealt by one entity to a player. Native
// handling is always cancelled.
//
// Postcondition: returns (resolution, true) when the victim is a tracked player;
// shield and health are written as one unit.
func (p *Pipeline) OnEntityDamage(ev *event.EntityDamagedByEntity) (Resolution, bool) {
	ev.Cancel()
	if !ev.Victim.IsPlayer() {
		return Resolution{}, false
	}

	attacker, total := p.contribution(ev.Damager)
	res := Resolution{
		Victim:   ev.Victim.ID,
		Attacker: attacker,
		Source:   SourceEntity,
		Cause:    string(ev.Damager.Kind),
		Raw:      ev.RawDamage,
		Damage:   total,
	}

	now := p.opts.Now()
	err := p.stats.Update(ev.Victim.ID, func(st *stats.State) error {
		res.Rapid = p.rapid(st, now)
		st.LastDamage = now
		res.ShieldBefore, res.HealthBefore = st.Shield, st.Health
		st.Shield, st.Health = Absorb(st.Shield, st.Health, st.MaxHealth, total)
		res.ShieldAfter, res.HealthAfter = st.Shield, st.Health
		return nil
	})
	if err != nil {
		p.logger.Debug("entity damage for untracked player ignored", observability.Player(ev.Victim.ID))
		return Resolution{}, false
	}

	res.Killed = res.HealthAfter <= 0
	p.finish(res, ev.Damager.Yaw)
	return res, true
}

// OnGenericDamage resolves environmental damage to a player. Native handling is
// always cancelled. A lethal hit is forwarded to Host.Kill and health is left
// as it was.
//
// Postcondition: returns (resolution, true) when the victim is a tracked player.
func (p *Pipeline) OnGenericDamage(ev *event.EntityDamaged) (Resolution, bool) {
	ev.Cancel()
	if !ev.Victim.IsPlayer() {
		return Resolution{}, false
	}

	res := Resolution{
		Victim: ev.Victim.ID,
		Source: SourceGeneric,
		Cause:  ev.Cause,
		Raw:    ev.RawDamage,
	}
	now := p.opts.Now()
	err := p.stats.Update(ev.Victim.ID, func(st *stats.State) error {
		res.Rapid = p.rapid(st, now)
		st.LastDamage = now
		res.Reduction = p.opts.Coefficients.Reduction(st.Armor, st.Strength)
		res.Damage = ev.RawDamage * (1 - res.Reduction)
		res.ShieldBefore, res.ShieldAfter = st.Shield, st.Shield
		res.HealthBefore = st.Health
		res.HealthAfter = stats.ClampRange(st.Health-res.Damage, 0, st.MaxHealth)
		if res.HealthAfter <= 0 {
			res.Killed = true
			return nil
		}
		st.Health = res.HealthAfter
		return nil
	})
	if err != nil {
		p.logger.Debug("generic damage for untracked player ignored", observability.Player(ev.Victim.ID))
		return Resolution{}, false
	}

	p.finish(res, ev.Victim.Yaw)
	return res, true
}

// Respawn restores a dead player to RespawnFraction of the persisted maxHealth
// and flushes the profile.
//
// Postcondition: live health = maxHealth * RespawnFraction; returns an error
// wrapping stats.ErrInvalidPlayerReference if id is not tracked, or the flush error.
func (p *Pipeline) Respawn(ctx context.Context, id uuid.UUID) (float64, error) {
	maxHealth, err := p.profiles.ReloadMaxHealth(ctx, id)
	if err != nil {
		st, ok := p.stats.Lookup(id)
		if !ok {
			return 0, fmt.Errorf("respawning %s: %w", id, stats.ErrInvalidPlayerReference)
		}
		p.logger.Warn("reloading max health failed, using live value",
			observability.Player(id),
			zap.Float64("max_health", st.MaxHealth),
			zap.Error(err),
		)
		maxHealth = st.MaxHealth
	}

	var health float64
	err = p.stats.Update(id, func(st *stats.State) error {
		st.MaxHealth = maxHealth
		st.Health = stats.ClampRange(maxHealth*p.opts.RespawnFraction, 0, maxHealth)
		health = st.Health
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("respawning %s: %w", id, err)
	}

	p.logger.Info("player respawned", observability.Player(id), zap.Float64("health", health))
	if o := p.observer.Load(); o != nil {
		o.OnRespawn(id, health)
	}
	if err := p.profiles.Flush(ctx, id); err != nil {
		return health, fmt.Errorf("respawning %s: %w", id, err)
	}
	return health, nil
}

// contribution sums the attribute bonuses of the damaging entity. Untracked
// players contribute zero.
func (p *Pipeline) contribution(damager event.Entity) (uuid.UUID, float64) {
	c := p.opts.Coefficients
	switch {
	case damager.IsPlayer():
		st, ok := p.stats.Lookup(damager.ID)
		if !ok {
			p.logger.Debug("attacker not tracked, strength bonus is zero", observability.Player(damager.ID))
			return damager.ID, 0
		}
		return damager.ID, float64(st.Strength) * c.StrengthDamage
	case damager.Kind == event.KindProjectile:
		shooter := damager.Shooter
		if shooter == nil || !shooter.IsPlayer() || !shooter.MainHand.IsBowClass() {
			return uuid.Nil, 0
		}
		st, ok := p.stats.Lookup(shooter.ID)
		if !ok {
			p.logger.Debug("shooter not tracked, dexterity bonus is zero", observability.Player(shooter.ID))
			return shooter.ID, 0
		}
		return shooter.ID, float64(st.Dexterity) * c.DexDamage
	default:
		return uuid.Nil, 0
	}
}

func (p *Pipeline) rapid(st *stats.State, now time.Time) bool {
	return !st.LastDamage.IsZero() && now.Sub(st.LastDamage) < p.opts.DebounceWindow
}

func (p *Pipeline) finish(res Resolution, yaw float32) {
	if res.Rapid {
		p.logger.Debug("rapid hit inside debounce window", observability.Player(res.Victim), zap.String("source", string(res.Source)))
	}
	if res.Killed {
		p.host.Kill(res.Victim)
		p.logger.Info("player killed",
			observability.Player(res.Victim),
			zap.String("source", string(res.Source)),
			zap.String("cause", res.Cause),
		)
	}
	if p.animator != nil {
		p.animator.HurtAnimation(res.Victim, yaw)
	}
	if p.debug.Load() && p.messenger != nil {
		p.messenger.SendMessage(res.Victim, fmt.Sprintf("Your health is %d", int(res.HealthAfter)))
	}
	o := p.observer.Load()
	if o == nil {
		return
	}
	o.OnDamage(res)
	if res.Killed {
		o.OnDeath(res)
	}
}
