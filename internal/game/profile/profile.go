package profile

import (
	"github.com/google/uuid"

	"github.com/cory-johannsen/combatcore/internal/game/stats"
)

// Property paths inside a combat profile record.
const (
	KeyUUID         = "uuid"
	KeyMaxHealth    = "maxHealth"
	KeyHealthRegen  = "healthRegen"
	KeyMaxMana      = "maxMana"
	KeyManaRegen    = "manaRegen"
	KeyMaxShield    = "maxShield"
	KeyShieldRegen  = "shieldRegen"
	KeyArmor        = "armor"
	KeyRace         = "race"
	KeyStrength     = "attributes.strength"
	KeyDexterity    = "attributes.dexterity"
	KeyIntelligence = "attributes.intelligence"
	KeyWisdom       = "attributes.wisdom"
)

// Profile is the durable part of a player's combat state: caps, rates, armor,
// race and attributes. Live health, shield and mana are never persisted.
type Profile struct {
	ID           uuid.UUID
	MaxHealth    float64
	HealthRegen  float64
	MaxMana      float64
	ManaRegen    float64
	MaxShield    float64
	ShieldRegen  float64
	Armor        float64
	Race         string
	Strength     int
	Dexterity    int
	Intelligence int
	Wisdom       int
}

// DefaultProfile returns the canonical profile for a new player.
func DefaultProfile(id uuid.UUID) Profile {
	return FromState(id, stats.Defaults())
}

// FromState extracts the durable fields of st.
func FromState(id uuid.UUID, st stats.State) Profile {
	return Profile{
		ID:           id,
		MaxHealth:    st.MaxHealth,
		HealthRegen:  st.HealthRegen,
		MaxMana:      st.MaxMana,
		ManaRegen:    st.ManaRegen,
		MaxShield:    st.MaxShield,
		ShieldRegen:  st.ShieldRegen,
		Armor:        st.Armor,
		Race:         st.Race,
		Strength:     st.Strength,
		Dexterity:    st.Dexterity,
		Intelligence: st.Intelligence,
		Wisdom:       st.Wisdom,
	}
}

// Apply copies the durable fields onto st, leaving live fields untouched.
func (p Profile) Apply(st *stats.State) {
	st.MaxHealth = p.MaxHealth
	st.HealthRegen = p.HealthRegen
	st.MaxMana = p.MaxMana
	st.ManaRegen = p.ManaRegen
	st.MaxShield = p.MaxShield
	st.ShieldRegen = p.ShieldRegen
	st.Armor = p.Armor
	st.Race = p.Race
	st.Strength = p.Strength
	st.Dexterity = p.Dexterity
	st.Intelligence = p.Intelligence
	st.Wisdom = p.Wisdom
}

// Write stores every durable field into props.
func (p Profile) Write(props Properties) {
	props.SetProperty(KeyUUID, p.ID.String())
	props.SetProperty(KeyMaxHealth, p.MaxHealth)
	props.SetProperty(KeyHealthRegen, p.HealthRegen)
	props.SetProperty(KeyMaxMana, p.MaxMana)
	props.SetProperty(KeyManaRegen, p.ManaRegen)
	props.SetProperty(KeyMaxShield, p.MaxShield)
	props.SetProperty(KeyShieldRegen, p.ShieldRegen)
	props.SetProperty(KeyArmor, p.Armor)
	props.SetProperty(KeyRace, p.Race)
	props.SetProperty(KeyStrength, p.Strength)
	props.SetProperty(KeyDexterity, p.Dexterity)
	props.SetProperty(KeyIntelligence, p.Intelligence)
	props.SetProperty(KeyWisdom, p.Wisdom)
}

// ToRecord builds the durable record for p.
func (p Profile) ToRecord() *Record {
	rec := NewRecord(Name(p.ID))
	p.Write(rec.Properties)
	return rec
}

// FromRecord reads a Profile out of rec. Missing or mistyped properties fall
// back to the canonical defaults.
func FromRecord(id uuid.UUID, rec *Record) Profile {
	p := DefaultProfile(id)
	props := rec.Properties
	floatOr(props, KeyMaxHealth, &p.MaxHealth)
	floatOr(props, KeyHealthRegen, &p.HealthRegen)
	floatOr(props, KeyMaxMana, &p.MaxMana)
	floatOr(props, KeyManaRegen, &p.ManaRegen)
	floatOr(props, KeyMaxShield, &p.MaxShield)
	floatOr(props, KeyShieldRegen, &p.ShieldRegen)
	floatOr(props, KeyArmor, &p.Armor)
	if race, ok := props.String(KeyRace); ok {
		p.Race = race
	}
	intOr(props, KeyStrength, &p.Strength)
	intOr(props, KeyDexterity, &p.Dexterity)
	intOr(props, KeyIntelligence, &p.Intelligence)
	intOr(props, KeyWisdom, &p.Wisdom)
	return p
}

func floatOr(props Properties, path string, dst *float64) {
	if v, ok := props.Float(path); ok {
		*dst = v
	}
}

func intOr(props Properties, path string, dst *int) {
	if v, ok := props.Int(path); ok {
		*dst = v
	}
}
