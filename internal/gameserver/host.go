package gameserver

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/combatcore/internal/observability"
)

// ActionKind names a native action forwarded to the host engine.
type ActionKind string

const (
	ActionKill         ActionKind = "kill"
	ActionHurt         ActionKind = "hurt"
	ActionSetMaxHealth ActionKind = "set_max_health"
)

// NativeAction is one call made into the host engine.
type NativeAction struct {
	Kind      ActionKind
	Player    uuid.UUID
	Yaw       float32
	MaxHealth float64
}

// maxRecordedActions caps the action history kept by LoggingHost.
const maxRecordedActions = 1024

// LoggingHost stands in for the host engine when the daemon runs headless. It
// logs every native action and keeps the most recent ones for inspection.
// All methods are safe for concurrent use.
type LoggingHost struct {
	logger  *zap.Logger
	mu      sync.Mutex
	actions []NativeAction
}

// NewLoggingHost creates a LoggingHost.
//
// Precondition: logger must be non-nil.
func NewLoggingHost(logger *zap.Logger) *LoggingHost {
	return &LoggingHost{logger: logger}
}

// Kill records a native zero-health kill.
func (h *LoggingHost) Kill(id uuid.UUID) {
	h.logger.Info("host kill", observability.Player(id))
	h.record(NativeAction{Kind: ActionKill, Player: id})
}

// HurtAnimation records a hurt reaction at yaw.
func (h *LoggingHost) HurtAnimation(id uuid.UUID, yaw float32) {
	h.logger.Debug("host hurt animation", observability.Player(id), zap.Float32("yaw", yaw))
	h.record(NativeAction{Kind: ActionHurt, Player: id, Yaw: yaw})
}

// SetMaxHealth records a native max-health synchronization.
func (h *LoggingHost) SetMaxHealth(id uuid.UUID, maxHealth float64) {
	h.logger.Debug("host max health synced", observability.Player(id), zap.Float64("max_health", maxHealth))
	h.record(NativeAction{Kind: ActionSetMaxHealth, Player: id, MaxHealth: maxHealth})
}

func (h *LoggingHost) record(a NativeAction) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.actions) == maxRecordedActions {
		h.actions = append(h.actions[:0], h.actions[1:]...)
	}
	h.actions = append(h.actions, a)
}

// Actions returns a copy of the recorded actions, oldest first.
func (h *LoggingHost) Actions() []NativeAction {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]NativeAction(nil), h.actions...)
}

// Count returns how many recorded actions match kind and player.
func (h *LoggingHost) Count(kind ActionKind, id uuid.UUID) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, a := range h.actions {
		if a.Kind == kind && a.Player == id {
			n++
		}
	}
	return n
}
