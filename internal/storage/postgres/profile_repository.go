package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/cory-johannsen/combatcore/internal/game/profile"
)

// ProfileRepository stores combat profiles as JSONB documents in combat_profiles.
// It keeps no cache: Get and Reload both read the row.
type ProfileRepository struct {
	db *pgxpool.Pool
}

// NewProfileRepository creates a ProfileRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewProfileRepository(db *pgxpool.Pool) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// Get retrieves the profile document named name.
//
// Postcondition: Returns the record or an error wrapping profile.ErrProfileNotFound.
func (r *ProfileRepository) Get(ctx context.Context, name string) (*profile.Record, error) {
	var raw []byte
	err := r.db.QueryRow(ctx,
		`SELECT properties FROM combat_profiles WHERE name = $1`, name,
	).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", name, profile.ErrProfileNotFound)
		}
		return nil, fmt.Errorf("querying profile %s: %w", name, err)
	}
	props, err := decodeProperties(raw)
	if err != nil {
		return nil, fmt.Errorf("decoding profile %s: %w", name, err)
	}
	return &profile.Record{Name: name, Properties: props}, nil
}

// Create inserts a new profile row.
//
// Postcondition: Returns nil, or an error wrapping profile.ErrProfileAlreadyExists on duplicate name.
func (r *ProfileRepository) Create(ctx context.Context, rec *profile.Record) error {
	raw, err := encodeProperties(rec.Properties)
	if err != nil {
		return fmt.Errorf("encoding profile %s: %w", rec.Name, err)
	}
	_, err = r.db.Exec(ctx,
		`INSERT INTO combat_profiles (name, properties) VALUES ($1, $2)`,
		rec.Name, raw,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return fmt.Errorf("%s: %w", rec.Name, profile.ErrProfileAlreadyExists)
		}
		return fmt.Errorf("inserting profile %s: %w", rec.Name, err)
	}
	return nil
}

// Save replaces the document of an existing profile.
//
// Postcondition: Returns nil, or an error wrapping profile.ErrProfileNotFound if no row was updated.
func (r *ProfileRepository) Save(ctx context.Context, rec *profile.Record) error {
	raw, err := encodeProperties(rec.Properties)
	if err != nil {
		return fmt.Errorf("encoding profile %s: %w", rec.Name, err)
	}
	tag, err := r.db.Exec(ctx, `
		UPDATE combat_profiles SET properties = $2, updated_at = NOW()
		WHERE name = $1`,
		rec.Name, raw,
	)
	if err != nil {
		return fmt.Errorf("saving profile %s: %w", rec.Name, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", rec.Name, profile.ErrProfileNotFound)
	}
	return nil
}

// Reload is Get; the repository has nothing to refresh.
func (r *ProfileRepository) Reload(ctx context.Context, name string) (*profile.Record, error) {
	return r.Get(ctx, name)
}

func encodeProperties(props profile.Properties) ([]byte, error) {
	s, err := structpb.NewStruct(map[string]any(props.Clone()))
	if err != nil {
		return nil, err
	}
	return protojson.Marshal(s)
}

func decodeProperties(raw []byte) (profile.Properties, error) {
	if len(raw) == 0 {
		return make(profile.Properties), nil
	}
	var s structpb.Struct
	if err := protojson.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	return profile.Properties(s.AsMap()), nil
}
