// Package regen runs the periodic regeneration of shield, health and mana for
// every tracked player.
package regen

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/combatcore/internal/game/stats"
	"github.com/cory-johannsen/combatcore/internal/observability"
)

// DefaultInterval is one second of game time (20 host ticks).
const DefaultInterval = time.Second

// Display shows the per-tick status line to a player.
type Display interface {
	ShowStatus(id uuid.UUID, line string)
}

// Messenger delivers a chat line to a player.
type Messenger interface {
	SendMessage(id uuid.UUID, text string)
}

// Scheduler regenerates all tracked players on a fixed interval.
//
// Invariant: at most one Tick runs at a time.
type Scheduler struct {
	stats     *stats.Store
	display   Display
	messenger Messenger
	interval  time.Duration
	debug     atomic.Bool
	logger    *zap.Logger

	tickMu sync.Mutex
	ticks  atomic.Uint64
}

// NewScheduler creates a Scheduler.
//
// Precondition: st and logger must be non-nil; interval <= 0 selects
// DefaultInterval. display and messenger may be nil.
func NewScheduler(st *stats.Store, display Display, messenger Messenger, interval time.Duration, logger *zap.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{
		stats:     st,
		display:   display,
		messenger: messenger,
		interval:  interval,
		logger:    logger,
	}
}

// SetDebug toggles the per-tick debug message.
func (s *Scheduler) SetDebug(on bool) {
	s.debug.Store(on)
}

// Ticks returns the number of completed ticks.
func (s *Scheduler) Ticks() uint64 {
	return s.ticks.Load()
}

// Step returns current advanced by rate and saturated at limit. A negative rate
// is treated as zero; a current value above limit is pulled down to limit.
func Step(current, rate, limit float64) float64 {
	next := current + max(rate, 0)
	if next > limit {
		return limit
	}
	return next
}

// Tick runs one regeneration pass over every tracked player.
//
// Postcondition: each tracked player's shield, health and mana have advanced
// by one step in a single store update; a failing player is logged and skipped.
func (s *Scheduler) Tick() {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	for _, id := range s.stats.IDs() {
		s.tickPlayer(id)
	}
	s.ticks.Add(1)
}

func (s *Scheduler) tickPlayer(id uuid.UUID) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("regen panicked for player, skipping",
				observability.Player(id),
				zap.Any("panic", r),
			)
		}
	}()

	var after stats.State
	err := s.stats.Update(id, func(st *stats.State) error {
		st.Shield = Step(st.Shield, st.ShieldRegen, st.MaxShield)
		st.Health = Step(st.Health, st.HealthRegen, st.MaxHealth)
		st.Mana = Step(st.Mana, st.ManaRegen, st.MaxMana)
		after = *st
		return nil
	})
	if errors.Is(err, stats.ErrInvalidPlayerReference) {
		// Quit between IDs() and Update.
		return
	}
	if err != nil {
		s.logger.Warn("regen update failed, skipping", observability.Player(id), zap.Error(err))
		return
	}

	if s.display != nil {
		s.display.ShowStatus(id, StatusLine(after))
	}
	if s.debug.Load() && s.messenger != nil {
		s.messenger.SendMessage(id, DebugLine(after))
	}
}

// Start runs Tick every interval until ctx is cancelled or stop is called.
//
// Postcondition: stop is idempotent and returns after the loop has exited.
func (s *Scheduler) Start(ctx context.Context) (stop func()) {
	done := make(chan struct{})
	exited := make(chan struct{})
	var once sync.Once

	go func() {
		defer close(exited)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		s.logger.Info("regen loop started", zap.Duration("interval", s.interval))
		for {
			select {
			case <-ticker.C:
				s.Tick()
			case <-ctx.Done():
				s.logger.Info("regen loop stopped", zap.Uint64("ticks", s.Ticks()))
				return
			case <-done:
				s.logger.Info("regen loop stopped", zap.Uint64("ticks", s.Ticks()))
				return
			}
		}
	}()

	return func() {
		once.Do(func() { close(done) })
		<-exited
	}
}

// StatusLine formats the action-bar line for st.
func StatusLine(st stats.State) string {
	return fmt.Sprintf("♥ %s/%s S: %s/%s M: %s/%s A: %s",
		num(st.Health), num(st.MaxHealth),
		num(st.Shield), num(st.MaxShield),
		num(st.Mana), num(st.MaxMana),
		num(st.Armor),
	)
}

// DebugLine formats the debug-mode chat line for st.
func DebugLine(st stats.State) string {
	return fmt.Sprintf("Your new health is: %d, shield is: %d, and mana is: %d",
		int(st.Health), int(st.Shield), int(st.Mana))
}

// num renders v rounded to two decimals without trailing zeros.
func num(v float64) string {
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64)
}
