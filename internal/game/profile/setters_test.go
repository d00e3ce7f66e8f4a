package profile_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/combatcore/internal/game/profile"
	"github.com/cory-johannsen/combatcore/internal/game/stats"
)

func joined(t *testing.T) (*fixture, uuid.UUID) {
	t.Helper()
	f := newFixture(t)
	id := f.connect()
	_, err := f.adapter.Join(context.Background(), id)
	require.NoError(t, err)
	return f, id
}

func (f *fixture) durable(t *testing.T, id uuid.UUID) profile.Properties {
	t.Helper()
	rec, err := f.store.Get(context.Background(), profile.Name(id))
	require.NoError(t, err)
	return rec.Properties
}

func TestAdapter_SetAttribute(t *testing.T) {
	f, id := joined(t)
	ctx := context.Background()

	require.NoError(t, f.adapter.SetAttribute(ctx, id, profile.AttributeStrength, 20))
	require.NoError(t, f.adapter.SetAttribute(ctx, id, profile.AttributeWisdom, 3))

	live, _ := f.stats.Lookup(id)
	assert.Equal(t, 20, live.Strength)
	assert.Equal(t, 3, live.Wisdom)
	v, ok := f.durable(t, id).Int(profile.KeyStrength)
	require.True(t, ok)
	assert.Equal(t, 20, v)
	v, _ = f.durable(t, id).Int(profile.KeyWisdom)
	assert.Equal(t, 3, v)
}

func TestAdapter_SetAttribute_Unknown(t *testing.T) {
	f, id := joined(t)
	err := f.adapter.SetAttribute(context.Background(), id, profile.Attribute("luck"), 7)
	assert.ErrorIs(t, err, profile.ErrInvalidValue)
}

func TestAdapter_SetMaxHealth_ClampsAndSyncsHost(t *testing.T) {
	f, id := joined(t)
	ctx := context.Background()

	require.NoError(t, f.adapter.SetMaxHealth(ctx, id, 25))
	live, _ := f.stats.Lookup(id)
	assert.Equal(t, 25.0, live.MaxHealth)
	assert.Equal(t, 25.0, live.Health)
	assert.Equal(t, 25.0, f.sync.calls[id])
	v, _ := f.durable(t, id).Float(profile.KeyMaxHealth)
	assert.Equal(t, 25.0, v)

	assert.ErrorIs(t, f.adapter.SetMaxHealth(ctx, id, 0), profile.ErrInvalidValue)
	live, _ = f.stats.Lookup(id)
	assert.Equal(t, 25.0, live.MaxHealth)
}

func TestAdapter_SetMaxShield_ClampsLiveShield(t *testing.T) {
	f, id := joined(t)
	ctx := context.Background()
	require.NoError(t, f.stats.Update(id, func(st *stats.State) error {
		st.Shield = 80
		return nil
	}))

	require.NoError(t, f.adapter.SetMaxShield(ctx, id, 50))
	live, _ := f.stats.Lookup(id)
	assert.Equal(t, 50.0, live.Shield)
	v, _ := f.durable(t, id).Float(profile.KeyMaxShield)
	assert.Equal(t, 50.0, v)
}

func TestAdapter_SetRatesArmorAndRace(t *testing.T) {
	f, id := joined(t)
	ctx := context.Background()

	require.NoError(t, f.adapter.SetHealthRegen(ctx, id, 4))
	require.NoError(t, f.adapter.SetShieldRegen(ctx, id, 1.5))
	require.NoError(t, f.adapter.SetArmor(ctx, id, 60))
	require.NoError(t, f.adapter.SetRace(ctx, id, "Dwarf"))

	props := f.durable(t, id)
	hr, _ := props.Float(profile.KeyHealthRegen)
	sr, _ := props.Float(profile.KeyShieldRegen)
	armor, _ := props.Float(profile.KeyArmor)
	race, _ := props.String(profile.KeyRace)
	assert.Equal(t, 4.0, hr)
	assert.Equal(t, 1.5, sr)
	assert.Equal(t, 60.0, armor)
	assert.Equal(t, "Dwarf", race)

	assert.ErrorIs(t, f.adapter.SetArmor(ctx, id, -1), profile.ErrInvalidValue)
	assert.ErrorIs(t, f.adapter.SetHealthRegen(ctx, id, -1), profile.ErrInvalidValue)
	assert.ErrorIs(t, f.adapter.SetRace(ctx, id, ""), profile.ErrInvalidValue)
}

func TestAdapter_Setters_UntrackedPlayer(t *testing.T) {
	f := newFixture(t)
	err := f.adapter.SetArmor(context.Background(), uuid.New(), 10)
	assert.ErrorIs(t, err, stats.ErrInvalidPlayerReference)
}

func TestProperty_SetAttributeRoundTrips(t *testing.T) {
	f, id := joined(t)
	attrs := []profile.Attribute{
		profile.AttributeStrength, profile.AttributeDexterity,
		profile.AttributeIntelligence, profile.AttributeWisdom,
	}
	keys := map[profile.Attribute]string{
		profile.AttributeStrength:     profile.KeyStrength,
		profile.AttributeDexterity:    profile.KeyDexterity,
		profile.AttributeIntelligence: profile.KeyIntelligence,
		profile.AttributeWisdom:       profile.KeyWisdom,
	}
	rapid.Check(t, func(rt *rapid.T) {
		attr := rapid.SampledFrom(attrs).Draw(rt, "attr")
		value := rapid.IntRange(0, 1000).Draw(rt, "value")
		require.NoError(rt, f.adapter.SetAttribute(context.Background(), id, attr, value))
		rec, err := f.store.Get(context.Background(), profile.Name(id))
		require.NoError(rt, err)
		got, ok := rec.Properties.Int(keys[attr])
		require.True(rt, ok)
		assert.Equal(rt, value, got)
	})
}
