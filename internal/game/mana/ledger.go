// Package mana validates and applies mana spends and writes for ability logic.
package mana

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/combatcore/internal/game/stats"
	"github.com/cory-johannsen/combatcore/internal/observability"
)

// ErrNotEnoughMana is returned when a spend exceeds the player's balance.
var ErrNotEnoughMana = errors.New("not enough mana")

// ErrManaOutOfBounds is returned when a write would leave mana outside [0, maxMana].
var ErrManaOutOfBounds = errors.New("mana out of bounds")

// Persister makes cap and rate changes durable.
type Persister interface {
	Persist(ctx context.Context, id uuid.UUID, mutate func(*stats.State) error) error
}

// Ledger is the only writer of live mana outside the regen loop.
type Ledger struct {
	stats     *stats.Store
	persister Persister
	logger    *zap.Logger
}

// NewLedger creates a Ledger.
//
// Precondition: st, persister and logger must be non-nil.
func NewLedger(st *stats.Store, persister Persister, logger *zap.Logger) *Ledger {
	return &Ledger{stats: st, persister: persister, logger: logger}
}

// Mana returns the live mana of id, or stats.DefaultMana when id is not tracked.
func (l *Ledger) Mana(id uuid.UUID) float64 {
	return l.stats.Get(id).Mana
}

// MaxMana returns the mana cap of id.
func (l *Ledger) MaxMana(id uuid.UUID) float64 {
	return l.stats.Get(id).MaxMana
}

// ManaRegen returns the per-tick mana regeneration of id.
func (l *Ledger) ManaRegen(id uuid.UUID) float64 {
	return l.stats.Get(id).ManaRegen
}

// CanSpend reports whether id holds at least cost mana.
func (l *Ledger) CanSpend(id uuid.UUID, cost float64) bool {
	return l.Mana(id) >= cost
}

// SetMana sets the live mana of id.
//
// Postcondition: on error mana is unchanged; returns ErrManaOutOfBounds when
// amount > maxMana or amount < 0.
func (l *Ledger) SetMana(id uuid.UUID, amount float64) error {
	return l.stats.Update(id, func(st *stats.State) error {
		if amount > st.MaxMana || amount < 0 {
			return fmt.Errorf("cannot set mana of %s to %g, max mana is %g: %w", id, amount, st.MaxMana, ErrManaOutOfBounds)
		}
		st.Mana = amount
		return nil
	})
}

// Spend deducts amount from id's mana in one step.
//
// Postcondition: on error mana is unchanged; returns ErrNotEnoughMana when
// mana < amount and ErrManaOutOfBounds for a negative amount.
func (l *Ledger) Spend(id uuid.UUID, amount float64) error {
	err := l.stats.Update(id, func(st *stats.State) error {
		if amount < 0 {
			return fmt.Errorf("cannot spend %g mana: %w", amount, ErrManaOutOfBounds)
		}
		if st.Mana < amount {
			return fmt.Errorf("%s has %g mana, needs %g: %w", id, st.Mana, amount, ErrNotEnoughMana)
		}
		st.Mana -= amount
		return nil
	})
	if err != nil {
		l.logger.Debug("mana spend rejected", observability.Player(id), zap.Float64("amount", amount), zap.Error(err))
	}
	return err
}

// SetMaxMana updates the mana cap and persists it. Live mana above the new cap
// is lowered to it.
//
// Postcondition: returns ErrManaOutOfBounds for a negative cap.
func (l *Ledger) SetMaxMana(ctx context.Context, id uuid.UUID, maxMana float64) error {
	if maxMana < 0 {
		return fmt.Errorf("max mana %g: %w", maxMana, ErrManaOutOfBounds)
	}
	err := l.persister.Persist(ctx, id, func(st *stats.State) error {
		st.MaxMana = maxMana
		st.Mana = stats.ClampRange(st.Mana, 0, maxMana)
		return nil
	})
	if err != nil {
		return fmt.Errorf("setting max mana: %w", err)
	}
	l.logger.Info("max mana changed", observability.Player(id), zap.Float64("max_mana", maxMana))
	return nil
}

// SetManaRegen updates the per-tick mana regeneration and persists it.
func (l *Ledger) SetManaRegen(ctx context.Context, id uuid.UUID, regen float64) error {
	err := l.persister.Persist(ctx, id, func(st *stats.State) error {
		st.ManaRegen = regen
		return nil
	})
	if err != nil {
		return fmt.Errorf("setting mana regen: %w", err)
	}
	l.logger.Info("mana regen changed", observability.Player(id), zap.Float64("mana_regen", regen))
	return nil
}

// UserMessage renders a ledger error for the ability or command layer.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotEnoughMana):
		return "You don't have enough mana."
	case errors.Is(err, ErrManaOutOfBounds):
		return "That would exceed your maximum mana."
	case errors.Is(err, stats.ErrInvalidPlayerReference):
		return "You are not connected."
	default:
		return "Something went wrong with your mana."
	}
}
