package damage_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/combatcore/internal/game/damage"
)

func TestReduction_Canonical(t *testing.T) {
	c := damage.DefaultCoefficients()
	assert.InDelta(t, 0.15, c.Reduction(40, 0), 1e-12)
	assert.InDelta(t, 0.2, c.Reduction(40, 20), 1e-12)
	assert.Equal(t, 1.0, c.Reduction(400, 0))
	assert.Equal(t, 0.0, c.Reduction(0, 0))
	assert.Equal(t, 0.0, c.Reduction(-50, 0))
}

func TestMitigate(t *testing.T) {
	c := damage.DefaultCoefficients()
	assert.InDelta(t, 8.5, c.Mitigate(10, 40, 0), 1e-12)
	assert.Equal(t, 0.0, c.Mitigate(10, 1000, 0))
}

func TestAbsorb(t *testing.T) {
	s, h := damage.Absorb(3, 40, 40, 5)
	assert.Equal(t, 0.0, s)
	assert.Equal(t, 38.0, h)

	s, h = damage.Absorb(10, 40, 40, 4)
	assert.Equal(t, 6.0, s)
	assert.Equal(t, 40.0, h)

	s, h = damage.Absorb(0, 5, 40, 100)
	assert.Equal(t, 0.0, s)
	assert.Equal(t, 0.0, h)

	s, h = damage.Absorb(2, 40, 40, -3)
	assert.Equal(t, 2.0, s)
	assert.Equal(t, 40.0, h)
}

func TestProperty_ShieldAbsorbsFirst(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		maxHealth := rapid.Float64Range(1, 10000).Draw(rt, "max_health")
		health := rapid.Float64Range(0, maxHealth).Draw(rt, "health")
		shield := rapid.Float64Range(0, 10000).Draw(rt, "shield")
		dmg := rapid.Float64Range(0, 20000).Draw(rt, "damage")

		shieldAfter, healthAfter := damage.Absorb(shield, health, maxHealth, dmg)
		assert.GreaterOrEqual(rt, shieldAfter, 0.0)
		assert.GreaterOrEqual(rt, healthAfter, 0.0)
		assert.LessOrEqual(rt, healthAfter, maxHealth)
		if shield >= dmg {
			assert.Equal(rt, health, healthAfter)
			assert.InDelta(rt, shield-dmg, shieldAfter, 1e-9)
		} else {
			assert.Equal(rt, 0.0, shieldAfter)
		}
	})
}

func TestProperty_ReductionMonotonicAndClamped(t *testing.T) {
	c := damage.DefaultCoefficients()
	rapid.Check(t, func(rt *rapid.T) {
		armor := rapid.Float64Range(0, 1000).Draw(rt, "armor")
		strength := rapid.IntRange(0, 1000).Draw(rt, "strength")
		moreArmor := armor + rapid.Float64Range(0, 500).Draw(rt, "extra_armor")
		moreStrength := strength + rapid.IntRange(0, 500).Draw(rt, "extra_strength")

		r := c.Reduction(armor, strength)
		assert.GreaterOrEqual(rt, r, 0.0)
		assert.LessOrEqual(rt, r, 1.0)
		assert.GreaterOrEqual(rt, c.Reduction(moreArmor, strength), r)
		assert.GreaterOrEqual(rt, c.Reduction(armor, moreStrength), r)

		raw := rapid.Float64Range(0, 1000).Draw(rt, "raw")
		reduced := c.Mitigate(raw, armor, strength)
		assert.GreaterOrEqual(rt, reduced, 0.0)
		assert.LessOrEqual(rt, reduced, raw)
	})
}
