package damage

import "github.com/cory-johannsen/combatcore/internal/game/stats"

// Coefficients scale attributes into damage and mitigation.
type Coefficients struct {
	// StrengthDamage is bonus damage per attacker strength point.
	StrengthDamage float64
	// DexDamage is bonus damage per shooter dexterity point for bow-class weapons.
	DexDamage float64
	// Armor is mitigation per armor point.
	Armor float64
	// StrengthArmor is mitigation per victim strength point.
	StrengthArmor float64
}

// DefaultCoefficients returns the canonical coefficients.
func DefaultCoefficients() Coefficients {
	return Coefficients{
		StrengthDamage: 0.25,
		DexDamage:      0.25,
		Armor:          0.00375,
		StrengthArmor:  0.0025,
	}
}

// Reduction returns the fraction of generic damage mitigated by armor and
// strength.
//
// Postcondition: result is in [0, 1].
func (c Coefficients) Reduction(armor float64, strength int) float64 {
	return stats.ClampRange(armor*c.Armor+float64(strength)*c.StrengthArmor, 0, 1)
}

// Mitigate returns raw scaled by (1 - Reduction).
func (c Coefficients) Mitigate(raw, armor float64, strength int) float64 {
	return raw * (1 - c.Reduction(armor, strength))
}

// Absorb applies damage to shield first and passes the remainder to health.
//
// Postcondition: shieldAfter >= 0; healthAfter is in [0, maxHealth]; when
// shield >= damage, healthAfter equals health clamped to [0, maxHealth].
func Absorb(shield, health, maxHealth, damage float64) (shieldAfter, healthAfter float64) {
	damage = max(damage, 0)
	shieldAfter = max(0, shield-damage)
	remainder := max(0, damage-shield)
	healthAfter = stats.ClampRange(health-remainder, 0, maxHealth)
	return shieldAfter, healthAfter
}
