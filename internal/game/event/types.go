package event

import "github.com/google/uuid"

// Kind classifies an entity taking part in a damage signal.
type Kind string

const (
	KindPlayer     Kind = "player"
	KindMob        Kind = "mob"
	KindProjectile Kind = "projectile"
)

// Weapon is the item class held in an entity's main hand.
type Weapon string

const (
	WeaponNone     Weapon = ""
	WeaponSword    Weapon = "sword"
	WeaponBow      Weapon = "bow"
	WeaponCrossbow Weapon = "crossbow"
)

// IsBowClass reports whether w fires projectiles that scale with dexterity.
func (w Weapon) IsBowClass() bool {
	return w == WeaponBow || w == WeaponCrossbow
}

// Entity is the part of a host entity the combat core reads.
type Entity struct {
	ID   uuid.UUID `yaml:"id"`
	Kind Kind      `yaml:"kind"`
	// Yaw is the facing angle in degrees.
	Yaw      float32 `yaml:"yaw"`
	MainHand Weapon  `yaml:"main_hand"`
	// Shooter is set for projectiles; nil when the source is unknown.
	Shooter *Entity `yaml:"shooter,omitempty"`
}

// IsPlayer reports whether e is a player.
func (e Entity) IsPlayer() bool {
	return e.Kind == KindPlayer
}

// Cancellable is embedded by events whose native handling can be suppressed.
type Cancellable struct {
	cancelled bool
}

// Cancel suppresses the host's native handling.
func (c *Cancellable) Cancel() { c.cancelled = true }

// Cancelled reports whether Cancel was called.
func (c *Cancellable) Cancelled() bool { return c.cancelled }

// Join is delivered when a player connects.
type Join struct {
	Player uuid.UUID
	Name   string
}

// Quit is delivered when a player disconnects.
type Quit struct {
	Player uuid.UUID
}

// Respawn is delivered when a dead player respawns.
type Respawn struct {
	Player uuid.UUID
}

// EntityDamagedByEntity is delivered when Damager hurts Victim.
type EntityDamagedByEntity struct {
	Cancellable
	Victim    Entity
	Damager   Entity
	RawDamage float64
}

// EntityDamaged is delivered for damage with no attacking entity (falls, fire, drowning).
type EntityDamaged struct {
	Cancellable
	Victim    Entity
	Cause     string
	RawDamage float64
}

// PassiveRegen is delivered when the host would heal an entity on its own.
type PassiveRegen struct {
	Cancellable
	Entity Entity
	Amount float64
}
