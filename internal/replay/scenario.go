// Package replay drives the combat core from a scripted YAML scenario. It
// stands in for the host engine in development and operational checks.
package replay

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/combatcore/internal/game/event"
)

// playerNamespace derives stable ids for aliases without an explicit id.
var playerNamespace = uuid.MustParse("6f1c63f5-2a55-4cbe-9b1e-5d6a7a1f0c11")

// Scenario is a named, ordered list of host signals and checks.
type Scenario struct {
	Name string `yaml:"name"`
	// Players maps aliases used by steps to player ids. Aliases absent from the
	// map get an id derived from the alias.
	Players map[string]string `yaml:"players"`
	Steps   []Step            `yaml:"steps"`
}

// Step is one scenario entry. Exactly one action field must be set.
type Step struct {
	Join    string        `yaml:"join,omitempty"`
	Quit    string        `yaml:"quit,omitempty"`
	Respawn string        `yaml:"respawn,omitempty"`
	Attack  *Attack       `yaml:"attack,omitempty"`
	Hurt    *Hurt         `yaml:"hurt,omitempty"`
	Spend   *Spend        `yaml:"spend,omitempty"`
	Set     *Set          `yaml:"set,omitempty"`
	Tick    int           `yaml:"tick,omitempty"`
	Wait    time.Duration `yaml:"wait,omitempty"`
	Expect  *Expect       `yaml:"expect,omitempty"`
}

// Attack is an entity-vs-entity damage signal. Attacker is a player alias, or
// empty for a mob.
type Attack struct {
	Victim     string       `yaml:"victim"`
	Attacker   string       `yaml:"attacker"`
	Projectile bool         `yaml:"projectile"`
	Weapon     event.Weapon `yaml:"weapon"`
	Raw        float64      `yaml:"raw"`
	Yaw        float32      `yaml:"yaw"`
}

// Hurt is a generic (environmental) damage signal.
type Hurt struct {
	Victim string  `yaml:"victim"`
	Cause  string  `yaml:"cause"`
	Raw    float64 `yaml:"raw"`
	Yaw    float32 `yaml:"yaw"`
}

// Spend asks the mana ledger to debit a player. WantError is "",
// "not_enough_mana" or "out_of_bounds".
type Spend struct {
	Player    string  `yaml:"player"`
	Amount    float64 `yaml:"amount"`
	WantError string  `yaml:"want_error"`
}

// Set overrides attributes of a tracked player's live state. Unset fields are
// left alone.
type Set struct {
	Player    string   `yaml:"player"`
	Strength  *int     `yaml:"strength"`
	Dexterity *int     `yaml:"dexterity"`
	Armor     *float64 `yaml:"armor"`
	Health    *float64 `yaml:"health"`
	Shield    *float64 `yaml:"shield"`
	Mana      *float64 `yaml:"mana"`
}

// Expect asserts a player's live resources.
type Expect struct {
	Player string   `yaml:"player"`
	Health *float64 `yaml:"health"`
	Shield *float64 `yaml:"shield"`
	Mana   *float64 `yaml:"mana"`
	Online *bool    `yaml:"online"`
}

// Spend error names accepted in WantError.
const (
	SpendErrNotEnoughMana = "not_enough_mana"
	SpendErrOutOfBounds   = "out_of_bounds"
)

// ErrInvalidScenario is wrapped by every validation failure.
var ErrInvalidScenario = errors.New("invalid scenario")

// LoadFile reads and validates a scenario file.
//
// Postcondition: Returns a validated Scenario or a non-nil error.
func LoadFile(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario %s: %w", path, err)
	}
	return LoadBytes(data)
}

// LoadBytes parses and validates a scenario. Unknown keys are rejected.
func LoadBytes(data []byte) (*Scenario, error) {
	var sc Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&sc); err != nil {
		return nil, fmt.Errorf("parsing scenario YAML: %w", err)
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

// Validate reports every malformed step.
func (s *Scenario) Validate() error {
	var errs []string
	for alias, raw := range s.Players {
		if _, err := uuid.Parse(raw); err != nil {
			errs = append(errs, fmt.Sprintf("player %q: invalid id %q", alias, raw))
		}
	}
	for i, st := range s.Steps {
		if n := st.actions(); n != 1 {
			errs = append(errs, fmt.Sprintf("step %d: want exactly one action, got %d", i, n))
			continue
		}
		if msg := st.validate(); msg != "" {
			errs = append(errs, fmt.Sprintf("step %d: %s", i, msg))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidScenario, strings.Join(errs, "; "))
	}
	return nil
}

func (st Step) actions() int {
	n := 0
	for _, set := range []bool{
		st.Join != "", st.Quit != "", st.Respawn != "",
		st.Attack != nil, st.Hurt != nil, st.Spend != nil, st.Set != nil,
		st.Tick > 0, st.Wait > 0, st.Expect != nil,
	} {
		if set {
			n++
		}
	}
	return n
}

func (st Step) validate() string {
	switch {
	case st.Attack != nil:
		if st.Attack.Victim == "" {
			return "attack needs a victim"
		}
		if st.Attack.Raw < 0 {
			return "attack raw damage must be >= 0"
		}
		if st.Attack.Projectile && st.Attack.Attacker == "" {
			return "projectile attack needs a shooter"
		}
	case st.Hurt != nil:
		if st.Hurt.Victim == "" {
			return "hurt needs a victim"
		}
		if st.Hurt.Raw < 0 {
			return "hurt raw damage must be >= 0"
		}
	case st.Spend != nil:
		if st.Spend.Player == "" {
			return "spend needs a player"
		}
		switch st.Spend.WantError {
		case "", SpendErrNotEnoughMana, SpendErrOutOfBounds:
		default:
			return fmt.Sprintf("unknown want_error %q", st.Spend.WantError)
		}
	case st.Set != nil:
		if st.Set.Player == "" {
			return "set needs a player"
		}
	case st.Expect != nil:
		if st.Expect.Player == "" {
			return "expect needs a player"
		}
	}
	return ""
}

// PlayerID resolves alias to a player id.
func (s *Scenario) PlayerID(alias string) uuid.UUID {
	if raw, ok := s.Players[alias]; ok {
		if id, err := uuid.Parse(raw); err == nil {
			return id
		}
	}
	return uuid.NewSHA1(playerNamespace, []byte(alias))
}
