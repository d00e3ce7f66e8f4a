// Package stats holds the live per-player combat state and the in-memory store
// that owns it.
package stats

import (
	"errors"
	"time"
)

// ErrInvalidPlayerReference is returned when an operation addresses a player id
// that has no live entry.
var ErrInvalidPlayerReference = errors.New("invalid player reference")

// Canonical defaults applied to absent players and to newly created profiles.
const (
	DefaultHealth       = 40.0
	DefaultMaxHealth    = 40.0
	DefaultHealthRegen  = 2.0
	DefaultShield       = 0.0
	DefaultMaxShield    = 100.0
	DefaultShieldRegen  = 0.75
	DefaultMana         = 100.0
	DefaultMaxMana      = 100.0
	DefaultManaRegen    = 5.0
	DefaultArmor        = 40.0
	DefaultRace         = "Human"
	DefaultAttributeVal = 0
)

// State is the combat record of one online player.
//
// Invariant: 0 <= Health <= MaxHealth, 0 <= Shield <= MaxShield, 0 <= Mana <= MaxMana
// once any write has been clamped via Clamp.
type State struct {
	Health      float64
	MaxHealth   float64
	HealthRegen float64

	Shield      float64
	MaxShield   float64
	ShieldRegen float64

	Mana      float64
	MaxMana   float64
	ManaRegen float64

	Armor        float64
	Strength     int
	Dexterity    int
	Intelligence int
	Wisdom       int
	Race         string

	// LastDamage is the debounce marker written on every damage signal.
	LastDamage time.Time
}

// Defaults returns the canonical default state.
//
// Postcondition: the returned State satisfies all cap invariants.
func Defaults() State {
	return State{
		Health:       DefaultHealth,
		MaxHealth:    DefaultMaxHealth,
		HealthRegen:  DefaultHealthRegen,
		Shield:       DefaultShield,
		MaxShield:    DefaultMaxShield,
		ShieldRegen:  DefaultShieldRegen,
		Mana:         DefaultMana,
		MaxMana:      DefaultMaxMana,
		ManaRegen:    DefaultManaRegen,
		Armor:        DefaultArmor,
		Strength:     DefaultAttributeVal,
		Dexterity:    DefaultAttributeVal,
		Intelligence: DefaultAttributeVal,
		Wisdom:       DefaultAttributeVal,
		Race:         DefaultRace,
	}
}

// Clamp pins health, shield and mana into [0, cap].
//
// Postcondition: all three live resources satisfy their cap invariants.
func (s *State) Clamp() {
	s.Health = ClampRange(s.Health, 0, s.MaxHealth)
	s.Shield = ClampRange(s.Shield, 0, s.MaxShield)
	s.Mana = ClampRange(s.Mana, 0, s.MaxMana)
}

// ClampRange returns v limited to [lo, hi]. If hi < lo, lo wins.
func ClampRange(v, lo, hi float64) float64 {
	if v > hi {
		v = hi
	}
	if v < lo {
		v = lo
	}
	return v
}
