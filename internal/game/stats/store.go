package stats

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// entry guards one player's State. Read-modify-write on a single player is
// serialized by mu so the regen loop and damage handlers never lose an update.
type entry struct {
	mu    sync.Mutex
	state State
}

// Store tracks the live State of every online player.
// All methods are safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]*entry
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{entries: make(map[uuid.UUID]*entry)}
}

func (s *Store) lookupEntry(id uuid.UUID) (*entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	return e, ok
}

// Get returns a copy of the State for id, or Defaults() if id is not tracked.
//
// Postcondition: never returns a zero State for an absent player.
func (s *Store) Get(id uuid.UUID) State {
	st, ok := s.Lookup(id)
	if !ok {
		return Defaults()
	}
	return st
}

// Lookup returns a copy of the State for id.
//
// Postcondition: Returns (state, true) if tracked, or (zero, false) otherwise.
func (s *Store) Lookup(id uuid.UUID) (State, bool) {
	e, ok := s.lookupEntry(id)
	if !ok {
		return State{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state, true
}

// Set stores st for id, creating the entry if needed. No validation is applied.
func (s *Store) Set(id uuid.UUID, st State) {
	s.mu.Lock()
	e, ok := s.entries[id]
	if !ok {
		e = &entry{}
		s.entries[id] = e
	}
	s.mu.Unlock()

	e.mu.Lock()
	e.state = st
	e.mu.Unlock()
}

// Remove drops id from the store. Removing an absent id is a no-op.
func (s *Store) Remove(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, id)
}

// Update applies fn to a working copy of id's State under the player's lock and
// commits the copy only when fn returns nil.
//
// Precondition: fn must not call back into the Store for the same id.
// Postcondition: Returns ErrInvalidPlayerReference if id is not tracked; on any
// error from fn the stored State is unchanged.
func (s *Store) Update(id uuid.UUID, fn func(*State) error) error {
	e, ok := s.lookupEntry(id)
	if !ok {
		return fmt.Errorf("player %s: %w", id, ErrInvalidPlayerReference)
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	working := e.state
	if err := fn(&working); err != nil {
		return err
	}
	e.state = working
	return nil
}

// IDs returns a snapshot of tracked player ids in unspecified order.
func (s *Store) IDs() []uuid.UUID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]uuid.UUID, 0, len(s.entries))
	for id := range s.entries {
		ids = append(ids, id)
	}
	return ids
}

// Len returns the number of tracked players.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
