// Package gameserver binds host-engine signals to the combat components and
// owns their runtime lifecycle.
package gameserver

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/combatcore/internal/game/damage"
	"github.com/cory-johannsen/combatcore/internal/game/event"
	"github.com/cory-johannsen/combatcore/internal/game/profile"
	"github.com/cory-johannsen/combatcore/internal/game/regen"
	"github.com/cory-johannsen/combatcore/internal/game/session"
	"github.com/cory-johannsen/combatcore/internal/observability"
)

// CombatService routes join, quit and respawn signals and runs the regen loop.
//
// Invariant: a player's stats entry exists only while the player holds a session.
type CombatService struct {
	bus      *event.Bus
	sessions *session.Manager
	adapter  *profile.Adapter
	pipeline *damage.Pipeline
	regen    *regen.Scheduler
	logger   *zap.Logger

	mu        sync.Mutex
	baseCtx   context.Context
	stopRegen func()
}

// NewCombatService creates a CombatService. Call Register before dispatching
// any event on bus.
//
// Precondition: all arguments must be non-nil.
func NewCombatService(
	bus *event.Bus,
	sessions *session.Manager,
	adapter *profile.Adapter,
	pipeline *damage.Pipeline,
	scheduler *regen.Scheduler,
	logger *zap.Logger,
) *CombatService {
	return &CombatService{
		bus:      bus,
		sessions: sessions,
		adapter:  adapter,
		pipeline: pipeline,
		regen:    scheduler,
		logger:   logger,
		baseCtx:  context.Background(),
	}
}

// Register subscribes the service and the damage pipeline on the bus.
func (s *CombatService) Register() {
	event.Subscribe(s.bus, func(ev *event.Join) { s.logFailure("join", ev.Player, s.OnJoin(ev)) })
	event.Subscribe(s.bus, func(ev *event.Quit) { s.logFailure("quit", ev.Player, s.OnQuit(ev)) })
	event.Subscribe(s.bus, func(ev *event.Respawn) { s.logFailure("respawn", ev.Player, s.OnRespawn(ev)) })
	s.pipeline.Register(s.bus)
}

func (s *CombatService) logFailure(signal string, id uuid.UUID, err error) {
	if err != nil {
		s.logger.Error("handling signal failed",
			zap.String("signal", signal),
			observability.Player(id),
			zap.Error(err),
		)
	}
}

func (s *CombatService) ctx() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.baseCtx
}

// OnJoin opens a session and loads the player's combat profile.
//
// Postcondition: on success the player is online and tracked; on failure
// neither holds.
func (s *CombatService) OnJoin(ev *event.Join) error {
	if _, err := s.sessions.AddPlayer(ev.Player, ev.Name); err != nil {
		return fmt.Errorf("join %s: %w", ev.Player, err)
	}
	st, err := s.adapter.Join(s.ctx(), ev.Player)
	if err != nil {
		_ = s.sessions.RemovePlayer(ev.Player)
		return fmt.Errorf("join %s: %w", ev.Player, err)
	}
	s.logger.Info("player joined",
		observability.Player(ev.Player),
		zap.String("name", ev.Name),
		zap.Float64("health", st.Health),
		zap.Float64("mana", st.Mana),
		zap.Int("online", s.sessions.PlayerCount()),
	)
	return nil
}

// OnQuit flushes the player's profile, then drops the stats entry and the
// session. The session is closed even when the flush fails.
func (s *CombatService) OnQuit(ev *event.Quit) error {
	flushErr := s.adapter.Release(s.ctx(), ev.Player)
	if err := s.sessions.RemovePlayer(ev.Player); err != nil {
		s.logger.Debug("quit for player without session", observability.Player(ev.Player))
	}
	if flushErr != nil {
		return fmt.Errorf("quit %s: %w", ev.Player, flushErr)
	}
	s.logger.Info("player quit", observability.Player(ev.Player), zap.Int("online", s.sessions.PlayerCount()))
	return nil
}

// OnRespawn restores the player's health through the damage pipeline.
func (s *CombatService) OnRespawn(ev *event.Respawn) error {
	if _, err := s.pipeline.Respawn(s.ctx(), ev.Player); err != nil {
		return fmt.Errorf("respawn: %w", err)
	}
	return nil
}

// Start runs the regen loop until ctx is cancelled. Signal handlers keep using
// a context detached from ctx so quits during shutdown still flush.
func (s *CombatService) Start(ctx context.Context) error {
	s.mu.Lock()
	s.baseCtx = context.WithoutCancel(ctx)
	s.stopRegen = s.regen.Start(ctx)
	s.mu.Unlock()

	<-ctx.Done()
	return nil
}

// Stop halts the regen loop and flushes every tracked player.
//
// Postcondition: no regen tick runs after Stop begins flushing.
func (s *CombatService) Stop(ctx context.Context) {
	start := time.Now()
	s.mu.Lock()
	stop := s.stopRegen
	s.stopRegen = nil
	s.mu.Unlock()
	if stop != nil {
		stop()
	}

	if err := s.adapter.FlushAll(ctx); err != nil {
		s.logger.Error("flushing combat profiles on shutdown", zap.Error(err))
		return
	}
	s.logger.Info("combat profiles flushed",
		zap.Int("players", s.sessions.PlayerCount()),
		zap.Duration("elapsed", time.Since(start)),
	)
}
