package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cory-johannsen/combatcore/internal/game/stats"
)

// outboxSize bounds queued display lines per player; a slow reader loses the oldest lines
// rather than stalling the regen loop.
const outboxSize = 32

// PlayerSession is one live connection.
type PlayerSession struct {
	// ID is the stable player id.
	ID uuid.UUID
	// Name is the display name (for logging).
	Name string
	// JoinedAt is when the session was registered.
	JoinedAt time.Time
	// Outbox carries display lines to the host.
	Outbox *Outbox
}

// Manager tracks all live sessions.
// All methods are safe for concurrent use.
type Manager struct {
	mu      sync.RWMutex
	players map[uuid.UUID]*PlayerSession
	now     func() time.Time
}

// NewManager creates an empty session Manager.
func NewManager() *Manager {
	return &Manager{
		players: make(map[uuid.UUID]*PlayerSession),
		now:     time.Now,
	}
}

// AddPlayer registers a live session.
//
// Precondition: id must not be uuid.Nil.
// Postcondition: Returns the new session, or an error if id is nil or already connected.
func (m *Manager) AddPlayer(id uuid.UUID, name string) (*PlayerSession, error) {
	if id == uuid.Nil {
		return nil, fmt.Errorf("player id must not be nil: %w", stats.ErrInvalidPlayerReference)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.players[id]; exists {
		return nil, fmt.Errorf("player %s already connected", id)
	}
	sess := &PlayerSession{
		ID:       id,
		Name:     name,
		JoinedAt: m.now(),
		Outbox:   NewOutbox(id, outboxSize),
	}
	m.players[id] = sess
	return sess, nil
}

// RemovePlayer closes and forgets the session for id.
//
// Postcondition: Returns an error wrapping stats.ErrInvalidPlayerReference if id is not connected.
func (m *Manager) RemovePlayer(id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, exists := m.players[id]
	if !exists {
		return fmt.Errorf("player %s: %w", id, stats.ErrInvalidPlayerReference)
	}
	sess.Outbox.Close()
	delete(m.players, id)
	return nil
}

// GetPlayer returns the session for id.
//
// Postcondition: Returns (session, true) if found, or (nil, false) otherwise.
func (m *Manager) GetPlayer(id uuid.UUID) (*PlayerSession, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.players[id]
	return sess, ok
}

// IsOnline reports whether id has a live session.
func (m *Manager) IsOnline(id uuid.UUID) bool {
	_, ok := m.GetPlayer(id)
	return ok
}

// PlayerCount returns the number of connected players.
func (m *Manager) PlayerCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.players)
}

// ShowStatus queues line on the player's outbox. Lines for offline players are
// dropped; a full outbox evicts its oldest line.
func (m *Manager) ShowStatus(id uuid.UUID, line string) {
	sess, ok := m.GetPlayer(id)
	if !ok {
		return
	}
	_ = sess.Outbox.Push(line)
}

// SendMessage queues a chat line for id with the same drop rules as ShowStatus.
func (m *Manager) SendMessage(id uuid.UUID, text string) {
	m.ShowStatus(id, text)
}
