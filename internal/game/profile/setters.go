package profile

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/cory-johannsen/combatcore/internal/game/stats"
)

// ErrInvalidValue is returned when a durable field would be set to a value
// outside its domain.
var ErrInvalidValue = errors.New("invalid profile value")

// Attribute names one of the durable attributes under "attributes.".
type Attribute string

// Durable attributes.
const (
	AttributeStrength     Attribute = "strength"
	AttributeDexterity    Attribute = "dexterity"
	AttributeIntelligence Attribute = "intelligence"
	AttributeWisdom       Attribute = "wisdom"
)

func (a Attribute) field(st *stats.State) (*int, bool) {
	switch a {
	case AttributeStrength:
		return &st.Strength, true
	case AttributeDexterity:
		return &st.Dexterity, true
	case AttributeIntelligence:
		return &st.Intelligence, true
	case AttributeWisdom:
		return &st.Wisdom, true
	}
	return nil, false
}

// SetAttribute sets one durable attribute and persists it.
//
// Postcondition: Returns ErrInvalidValue for an unknown attribute; the live
// state and the store are unchanged on error.
func (a *Adapter) SetAttribute(ctx context.Context, id uuid.UUID, attr Attribute, value int) error {
	if _, ok := attr.field(&stats.State{}); !ok {
		return fmt.Errorf("attribute %q: %w", attr, ErrInvalidValue)
	}
	return a.Persist(ctx, id, func(st *stats.State) error {
		f, _ := attr.field(st)
		*f = value
		return nil
	})
}

// SetMaxHealth sets the health cap, clamps live health to it, persists the
// change and pushes it to the host's native attribute.
//
// Precondition: maxHealth must be > 0.
func (a *Adapter) SetMaxHealth(ctx context.Context, id uuid.UUID, maxHealth float64) error {
	if maxHealth <= 0 {
		return fmt.Errorf("max health %g: %w", maxHealth, ErrInvalidValue)
	}
	err := a.Persist(ctx, id, func(st *stats.State) error {
		st.MaxHealth = maxHealth
		st.Clamp()
		return nil
	})
	if err != nil {
		return err
	}
	a.syncMaxHealth(id, maxHealth)
	return nil
}

// SetMaxShield sets the shield cap and clamps live shield to it.
func (a *Adapter) SetMaxShield(ctx context.Context, id uuid.UUID, maxShield float64) error {
	if maxShield < 0 {
		return fmt.Errorf("max shield %g: %w", maxShield, ErrInvalidValue)
	}
	return a.Persist(ctx, id, func(st *stats.State) error {
		st.MaxShield = maxShield
		st.Clamp()
		return nil
	})
}

// SetHealthRegen sets the per-tick health regeneration.
func (a *Adapter) SetHealthRegen(ctx context.Context, id uuid.UUID, regen float64) error {
	return a.setRate(ctx, id, "health regen", regen, func(st *stats.State) { st.HealthRegen = regen })
}

// SetShieldRegen sets the per-tick shield regeneration.
func (a *Adapter) SetShieldRegen(ctx context.Context, id uuid.UUID, regen float64) error {
	return a.setRate(ctx, id, "shield regen", regen, func(st *stats.State) { st.ShieldRegen = regen })
}

// SetArmor sets the armor value used by generic damage reduction.
func (a *Adapter) SetArmor(ctx context.Context, id uuid.UUID, armor float64) error {
	return a.setRate(ctx, id, "armor", armor, func(st *stats.State) { st.Armor = armor })
}

// SetRace sets the player's race.
func (a *Adapter) SetRace(ctx context.Context, id uuid.UUID, race string) error {
	if race == "" {
		return fmt.Errorf("race: %w", ErrInvalidValue)
	}
	return a.Persist(ctx, id, func(st *stats.State) error {
		st.Race = race
		return nil
	})
}

func (a *Adapter) setRate(ctx context.Context, id uuid.UUID, what string, v float64, apply func(*stats.State)) error {
	if v < 0 {
		return fmt.Errorf("%s %g: %w", what, v, ErrInvalidValue)
	}
	return a.Persist(ctx, id, func(st *stats.State) error {
		apply(st)
		return nil
	})
}
