// Package yamlstore persists combat profiles as one YAML document per record,
// keeping loaded records resident in memory for the rest of the session.
package yamlstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/combatcore/internal/game/profile"
)

const fileExt = ".yml"

// Store is a directory of <name>.yml files with a read-through cache.
// All methods are safe for concurrent use.
type Store struct {
	dir   string
	mu    sync.Mutex
	cache map[string]profile.Properties
}

// New creates a Store rooted at dir, creating the directory if needed.
//
// Precondition: dir must be non-empty.
// Postcondition: Returns a usable Store or an error if dir cannot be created.
func New(dir string) (*Store, error) {
	if dir == "" {
		return nil, errors.New("yamlstore: dir must not be empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("yamlstore: creating %q: %w", dir, err)
	}
	return &Store{dir: dir, cache: make(map[string]profile.Properties)}, nil
}

func (s *Store) path(name string) (string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", fmt.Errorf("yamlstore: invalid record name %q", name)
	}
	return filepath.Join(s.dir, name+fileExt), nil
}

// Get returns the cached record, loading it from disk on first access.
func (s *Store) Get(_ context.Context, name string) (*profile.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if props, ok := s.cache[name]; ok {
		return &profile.Record{Name: name, Properties: props.Clone()}, nil
	}
	props, err := s.readLocked(name)
	if err != nil {
		return nil, err
	}
	s.cache[name] = props
	return &profile.Record{Name: name, Properties: props.Clone()}, nil
}

// Create writes a new file. Fails with profile.ErrProfileAlreadyExists when the
// file exists on disk.
func (s *Store) Create(_ context.Context, rec *profile.Record) error {
	path, err := s.path(rec.Name)
	if err != nil {
		return err
	}
	data, err := encode(rec.Properties)
	if err != nil {
		return fmt.Errorf("yamlstore: encoding %q: %w", rec.Name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%s: %w", rec.Name, profile.ErrProfileAlreadyExists)
		}
		return fmt.Errorf("yamlstore: creating %q: %w", path, err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("yamlstore: writing %q: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("yamlstore: closing %q: %w", path, err)
	}
	s.cache[rec.Name] = rec.Properties.Clone()
	return nil
}

// Save overwrites an existing file atomically (write to temp, rename).
func (s *Store) Save(_ context.Context, rec *profile.Record) error {
	path, err := s.path(rec.Name)
	if err != nil {
		return err
	}
	data, err := encode(rec.Properties)
	if err != nil {
		return fmt.Errorf("yamlstore: encoding %q: %w", rec.Name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%s: %w", rec.Name, profile.ErrProfileNotFound)
		}
		return fmt.Errorf("yamlstore: stat %q: %w", path, err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("yamlstore: writing %q: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("yamlstore: replacing %q: %w", path, err)
	}
	s.cache[rec.Name] = rec.Properties.Clone()
	return nil
}

// Reload discards the cached copy and re-reads name from disk.
func (s *Store) Reload(_ context.Context, name string) (*profile.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.cache, name)
	props, err := s.readLocked(name)
	if err != nil {
		return nil, err
	}
	s.cache[name] = props
	return &profile.Record{Name: name, Properties: props.Clone()}, nil
}

// Evict drops name from the cache without touching disk. Used when a player
// leaves so the record is not kept resident.
func (s *Store) Evict(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cache, name)
}

func (s *Store) readLocked(name string) (profile.Properties, error) {
	path, err := s.path(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", name, profile.ErrProfileNotFound)
		}
		return nil, fmt.Errorf("yamlstore: reading %q: %w", path, err)
	}
	props := make(profile.Properties)
	if err := yaml.NewDecoder(bytes.NewReader(data)).Decode(&props); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("yamlstore: parsing %q: %w", path, err)
	}
	return props, nil
}

func encode(props profile.Properties) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(map[string]any(props)); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
