// Package profile owns the durable combat profile of a player and the adapter
// that reconciles it with the live stats.Store.
package profile

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
)

// ErrProfileNotFound is returned when no durable profile exists for a name, or
// the addressed player is not connected.
var ErrProfileNotFound = errors.New("profile not found")

// ErrProfileAlreadyExists is returned by Store.Create when the name is taken.
var ErrProfileAlreadyExists = errors.New("profile already exists")

// NamePrefix prefixes every combat profile name.
const NamePrefix = "Combat-"

// Name returns the durable record name for a player.
func Name(id uuid.UUID) string {
	return NamePrefix + id.String()
}

// Properties is a nested property map addressed by dotted paths ("attributes.strength").
type Properties map[string]any

// GetProperty walks path through nested maps.
//
// Postcondition: Returns (value, true) if every segment resolves, or (nil, false).
func (p Properties) GetProperty(path string) (any, bool) {
	var cur any = map[string]any(p)
	for _, key := range strings.Split(path, ".") {
		m, ok := asMap(cur)
		if !ok {
			return nil, false
		}
		cur, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// SetProperty writes value at path, creating intermediate maps. A non-map value
// sitting on an intermediate segment is replaced.
//
// Precondition: path must be non-empty.
func (p Properties) SetProperty(path string, value any) {
	keys := strings.Split(path, ".")
	cur := map[string]any(p)
	for _, key := range keys[:len(keys)-1] {
		next, ok := asMap(cur[key])
		if !ok {
			next = make(map[string]any)
			cur[key] = next
		}
		cur = next
	}
	cur[keys[len(keys)-1]] = value
}

// Float returns the numeric value at path as float64.
func (p Properties) Float(path string) (float64, bool) {
	v, ok := p.GetProperty(path)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

// Int returns the numeric value at path truncated to int.
func (p Properties) Int(path string) (int, bool) {
	f, ok := p.Float(path)
	if !ok {
		return 0, false
	}
	return int(f), true
}

// String returns the string value at path.
func (p Properties) String(path string) (string, bool) {
	v, ok := p.GetProperty(path)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Clone returns a deep copy of the nested maps. Leaf values are shared.
func (p Properties) Clone() Properties {
	out := make(Properties, len(p))
	for k, v := range p {
		if m, ok := asMap(v); ok {
			out[k] = map[string]any(Properties(m).Clone())
			continue
		}
		out[k] = v
	}
	return out
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case Properties:
		return m, true
	default:
		return nil, false
	}
}

// Record is one durable key/value document.
type Record struct {
	Name       string
	Properties Properties
}

// NewRecord creates an empty Record.
func NewRecord(name string) *Record {
	return &Record{Name: name, Properties: make(Properties)}
}

// Store is the durable config-store collaborator.
//
// Get may serve a cached copy (quick-access profile); Reload always re-reads
// the backing storage. Implementations return copies, never shared maps.
type Store interface {
	// Get returns the record named name or ErrProfileNotFound.
	Get(ctx context.Context, name string) (*Record, error)
	// Create persists a new record or returns ErrProfileAlreadyExists.
	Create(ctx context.Context, rec *Record) error
	// Save overwrites an existing record or returns ErrProfileNotFound.
	Save(ctx context.Context, rec *Record) error
	// Reload re-reads name from backing storage, refreshing any cache.
	Reload(ctx context.Context, name string) (*Record, error)
}

// Evicter is implemented by stores that keep quick-access records resident and
// can drop one when its player leaves.
type Evicter interface {
	Evict(name string)
}
