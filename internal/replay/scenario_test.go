package replay_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/combatcore/internal/game/event"
	"github.com/cory-johannsen/combatcore/internal/replay"
)

func TestLoadBytes_ParsesSteps(t *testing.T) {
	id := uuid.New()
	sc, err := replay.LoadBytes([]byte(`
name: parse
players:
  alice: ` + id.String() + `
steps:
  - join: alice
  - attack: {victim: alice, attacker: bob, projectile: true, weapon: crossbow, raw: 2.5, yaw: 90}
  - wait: 250ms
  - tick: 3
`))
	require.NoError(t, err)
	assert.Equal(t, "parse", sc.Name)
	require.Len(t, sc.Steps, 4)
	assert.Equal(t, event.WeaponCrossbow, sc.Steps[1].Attack.Weapon)
	assert.Equal(t, float32(90), sc.Steps[1].Attack.Yaw)
	assert.Equal(t, 250*time.Millisecond, sc.Steps[2].Wait)
	assert.Equal(t, 3, sc.Steps[3].Tick)
	assert.Equal(t, id, sc.PlayerID("alice"))
}

func TestLoadBytes_RejectsUnknownFields(t *testing.T) {
	_, err := replay.LoadBytes([]byte(`
steps:
  - jion: alice
`))
	require.Error(t, err)
}

func TestLoadBytes_ValidationCollectsEveryProblem(t *testing.T) {
	_, err := replay.LoadBytes([]byte(`
players:
  alice: not-a-uuid
steps:
  - {}
  - {join: a, quit: b}
  - attack: {raw: 1}
  - hurt: {victim: a, raw: -1}
  - spend: {player: a, amount: 1, want_error: broke}
  - attack: {victim: a, projectile: true}
`))
	require.ErrorIs(t, err, replay.ErrInvalidScenario)
	for _, want := range []string{
		`player "alice": invalid id`,
		"step 0: want exactly one action, got 0",
		"step 1: want exactly one action, got 2",
		"step 2: attack needs a victim",
		"step 3: hurt raw damage must be >= 0",
		`step 4: unknown want_error "broke"`,
		"step 5: projectile attack needs a shooter",
	} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: file\nsteps:\n  - join: a\n"), 0644))
	sc, err := replay.LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "file", sc.Name)

	_, err = replay.LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadFile_ShippedScenarios(t *testing.T) {
	matches, err := filepath.Glob("../../scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, matches)
	for _, path := range matches {
		_, err := replay.LoadFile(path)
		assert.NoError(t, err, path)
	}
}

func TestProperty_PlayerIDIsStablePerAlias(t *testing.T) {
	sc := &replay.Scenario{}
	rapid.Check(t, func(rt *rapid.T) {
		a := rapid.StringMatching(`[a-z]{1,12}`).Draw(rt, "a")
		b := rapid.StringMatching(`[a-z]{1,12}`).Draw(rt, "b")
		assert.Equal(rt, sc.PlayerID(a), sc.PlayerID(a))
		assert.NotEqual(rt, uuid.Nil, sc.PlayerID(a))
		if a != b {
			assert.NotEqual(rt, sc.PlayerID(a), sc.PlayerID(b))
		}
	})
}
