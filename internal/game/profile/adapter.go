package profile

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cory-johannsen/combatcore/internal/game/stats"
)

// flushConcurrency bounds parallel writes during FlushAll.
const flushConcurrency = 8

// Sessions reports whether a player holds a live connection.
type Sessions interface {
	IsOnline(id uuid.UUID) bool
}

// HealthSync pushes the durable max health into the host engine's native
// max-health attribute.
type HealthSync interface {
	SetMaxHealth(id uuid.UUID, maxHealth float64)
}

// Adapter is the only component that reconciles the live stats.Store with the
// durable Store. Writes for one player are serialized from the live snapshot
// through the store save, so a stale snapshot never lands after a newer one.
type Adapter struct {
	store      Store
	stats      *stats.Store
	sessions   Sessions
	healthSync HealthSync
	logger     *zap.Logger

	locksMu sync.Mutex
	locks   map[uuid.UUID]*sync.Mutex
}

// NewAdapter creates an Adapter.
//
// Precondition: store, st, sessions and logger must be non-nil; healthSync may be
// nil, in which case native max-health is never synchronized.
func NewAdapter(store Store, st *stats.Store, sessions Sessions, healthSync HealthSync, logger *zap.Logger) *Adapter {
	return &Adapter{
		store:      store,
		stats:      st,
		sessions:   sessions,
		healthSync: healthSync,
		logger:     logger,
		locks:      make(map[uuid.UUID]*sync.Mutex),
	}
}

// lockFor returns id's write lock, creating it on first use.
func (a *Adapter) lockFor(id uuid.UUID) *sync.Mutex {
	a.locksMu.Lock()
	defer a.locksMu.Unlock()
	mu, ok := a.locks[id]
	if !ok {
		mu = &sync.Mutex{}
		a.locks[id] = mu
	}
	return mu
}

// Join loads (or creates) the player's profile and populates the stats store.
// Store faults other than a missing profile degrade to the default profile so a
// login is never blocked.
//
// Precondition: id must have a live session.
// Postcondition: the stats store holds a State with health = maxHealth, shield = 0
// and mana = maxMana; returns ErrProfileNotFound (wrapping
// stats.ErrInvalidPlayerReference) when id is not connected.
func (a *Adapter) Join(ctx context.Context, id uuid.UUID) (stats.State, error) {
	if !a.sessions.IsOnline(id) {
		return stats.State{}, fmt.Errorf("joining %s: %w: %w", id, ErrProfileNotFound, stats.ErrInvalidPlayerReference)
	}

	p := a.load(ctx, id)
	st := stats.Defaults()
	p.Apply(&st)
	st.Health = p.MaxHealth
	st.Shield = 0
	st.Mana = p.MaxMana
	st.Clamp()

	a.stats.Set(id, st)
	a.logger.Debug("combat profile loaded",
		zap.String("player", id.String()),
		zap.Float64("max_health", p.MaxHealth),
		zap.Float64("armor", p.Armor),
		zap.String("race", p.Race),
	)
	return st, nil
}

func (a *Adapter) load(ctx context.Context, id uuid.UUID) Profile {
	name := Name(id)
	rec, err := a.store.Get(ctx, name)
	if err == nil {
		p := FromRecord(id, rec)
		a.syncMaxHealth(id, p.MaxHealth)
		return p
	}
	if !errors.Is(err, ErrProfileNotFound) {
		a.logger.Warn("loading combat profile failed, using defaults",
			zap.String("profile", name),
			zap.Error(err),
		)
		return DefaultProfile(id)
	}

	p := DefaultProfile(id)
	err = a.store.Create(ctx, p.ToRecord())
	switch {
	case err == nil:
		return p
	case errors.Is(err, ErrProfileAlreadyExists):
		// A prior session created it between our read and write.
		rec, err := a.store.Reload(ctx, name)
		if err != nil {
			a.logger.Warn("re-reading existing combat profile failed, using defaults",
				zap.String("profile", name),
				zap.Error(err),
			)
			return p
		}
		p = FromRecord(id, rec)
		a.syncMaxHealth(id, p.MaxHealth)
		return p
	default:
		a.logger.Warn("creating combat profile failed, using defaults",
			zap.String("profile", name),
			zap.Error(err),
		)
		return p
	}
}

func (a *Adapter) syncMaxHealth(id uuid.UUID, maxHealth float64) {
	if a.healthSync != nil {
		a.healthSync.SetMaxHealth(id, maxHealth)
	}
}

// Flush writes the durable fields of id's live state to the store and returns
// once the write is complete. Properties the adapter does not own are preserved.
//
// Postcondition: Returns an error wrapping stats.ErrInvalidPlayerReference if id
// is not tracked, or the store's error.
func (a *Adapter) Flush(ctx context.Context, id uuid.UUID) error {
	mu := a.lockFor(id)
	mu.Lock()
	defer mu.Unlock()
	return a.flushLocked(ctx, id)
}

func (a *Adapter) flushLocked(ctx context.Context, id uuid.UUID) error {
	st, ok := a.stats.Lookup(id)
	if !ok {
		return fmt.Errorf("flushing %s: %w", id, stats.ErrInvalidPlayerReference)
	}
	p := FromState(id, st)
	name := Name(id)

	rec, err := a.store.Get(ctx, name)
	if errors.Is(err, ErrProfileNotFound) {
		if err := a.store.Create(ctx, p.ToRecord()); err != nil {
			return fmt.Errorf("flushing %s: %w", name, err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("flushing %s: %w", name, err)
	}
	p.Write(rec.Properties)
	if err := a.store.Save(ctx, rec); err != nil {
		return fmt.Errorf("flushing %s: %w", name, err)
	}
	return nil
}

// Persist applies mutate to id's live state and flushes the result before
// returning. Nothing is written when mutate fails.
//
// Postcondition: Returns mutate's error, an error wrapping
// stats.ErrInvalidPlayerReference if id is not tracked, or the flush error.
func (a *Adapter) Persist(ctx context.Context, id uuid.UUID, mutate func(*stats.State) error) error {
	mu := a.lockFor(id)
	mu.Lock()
	defer mu.Unlock()
	if err := a.stats.Update(id, mutate); err != nil {
		return err
	}
	return a.flushLocked(ctx, id)
}

// Release flushes id and then drops it from the stats store and from any
// quick-access cache. The entry is removed even when the flush fails; the flush
// error is returned.
func (a *Adapter) Release(ctx context.Context, id uuid.UUID) error {
	mu := a.lockFor(id)
	mu.Lock()
	defer mu.Unlock()

	err := a.flushLocked(ctx, id)
	a.stats.Remove(id)
	if ev, ok := a.store.(Evicter); ok {
		ev.Evict(Name(id))
	}
	a.locksMu.Lock()
	delete(a.locks, id)
	a.locksMu.Unlock()
	return err
}

// ReloadMaxHealth re-reads the durable profile and returns its maxHealth, or
// stats.DefaultMaxHealth when the property is absent.
//
// Postcondition: Returns ErrProfileNotFound if the player has no profile.
func (a *Adapter) ReloadMaxHealth(ctx context.Context, id uuid.UUID) (float64, error) {
	rec, err := a.store.Reload(ctx, Name(id))
	if err != nil {
		return 0, fmt.Errorf("reloading max health for %s: %w", id, err)
	}
	if v, ok := rec.Properties.Float(KeyMaxHealth); ok {
		return v, nil
	}
	return stats.DefaultMaxHealth, nil
}

// FlushAll flushes every tracked player concurrently.
//
// Postcondition: Returns the first flush error; remaining flushes still run.
func (a *Adapter) FlushAll(ctx context.Context) error {
	var g errgroup.Group
	g.SetLimit(flushConcurrency)
	for _, id := range a.stats.IDs() {
		g.Go(func() error {
			return a.Flush(ctx, id)
		})
	}
	return g.Wait()
}
