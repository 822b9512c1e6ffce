package engine

import (
	"errors"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

// ErrConfig marks a malformed profile. It is fatal at load time: an engine is
// never constructed (and no Decide accepted) with a bad weight table.
var ErrConfig = errors.New("invalid profile")

// Profile is the externally supplied configuration for one game session:
// one named weight per evaluator, the completion cap for the structural veto,
// and the declarative modifier table. Loaded once and treated as immutable;
// replacing it goes through Engine.Swap, which compiles first.
type Profile struct {
	Name    string             `yaml:"name" json:"name"`
	Weights map[string]float64 `yaml:"weights" json:"weights"`

	// MaxTurns is the veto threshold: any candidate whose cost exceeds
	// MaxTurns × current production rate is dropped entirely.
	MaxTurns float64 `yaml:"max_turns" json:"maxTurns"`

	Modifiers []ModifierRule `yaml:"modifiers" json:"modifiers,omitempty"`
}

// ModifierRule scales one evaluator's weighted contribution when its
// condition holds for the (snapshot, candidate) pair under evaluation.
// Conditions are expr source over ScoreEnv; they replace the scattered
// "if scientific victory then science ×2" branching of hand-rolled AIs with
// a table the aggregator applies uniformly.
type ModifierRule struct {
	Name      string  `yaml:"name" json:"name"`
	When      string  `yaml:"when" json:"when"`
	Evaluator string  `yaml:"evaluator" json:"evaluator"`
	Factor    float64 `yaml:"factor" json:"factor"`
}

// DefaultProfile is a balanced baseline so the engine is usable without a
// profile file. Hosts tune by shipping their own YAML or a hello override.
func DefaultProfile() Profile {
	return Profile{
		Name: "balanced",
		Weights: map[string]float64{
			EvalGrowth:         1.0,
			EvalProduction:     0.8,
			EvalEconomy:        0.7,
			EvalHappiness:      0.6,
			EvalDefense:        1.0,
			EvalWonder:         0.5,
			EvalVictory:        1.0,
			EvalCostEfficiency: 1.0,
		},
		MaxTurns: 30,
		Modifiers: []ModifierRule{
			{
				Name:      "war-defense",
				When:      `AtWar()`,
				Evaluator: EvalDefense,
				Factor:    2.0,
			},
			{
				Name:      "science-victory-economy",
				When:      `PursuingVictory("science")`,
				Evaluator: EvalEconomy,
				Factor:    2.0,
			},
			{
				Name:      "culture-victory-economy",
				When:      `PursuingVictory("culture")`,
				Evaluator: EvalEconomy,
				Factor:    1.5,
			},
			{
				Name:      "domination-units",
				When:      `PursuingVictory("domination") && IsKind("unit")`,
				Evaluator: EvalDefense,
				Factor:    1.5,
			},
			{
				Name:      "peacetime-wonders",
				When:      `!AtWar() && IsWonder()`,
				Evaluator: EvalWonder,
				Factor:    1.25,
			},
		},
	}
}

// LoadProfile reads a YAML profile file.
func LoadProfile(path string) (Profile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("read profile: %w", err)
	}
	var p Profile
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return Profile{}, fmt.Errorf("%w: parse: %v", ErrConfig, err)
	}
	return p, nil
}

// validate checks the weight table against the evaluator set. Every evaluator
// must have exactly one finite, non-negative weight; unknown names are
// rejected rather than ignored so typos fail loudly.
func (p Profile) validate(evals []Evaluator) error {
	known := make(map[string]bool, len(evals))
	for _, ev := range evals {
		known[ev.Name] = true
		w, ok := p.Weights[ev.Name]
		if !ok {
			return fmt.Errorf("%w: missing weight for evaluator %q", ErrConfig, ev.Name)
		}
		if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 {
			return fmt.Errorf("%w: weight for %q must be finite and non-negative, got %v", ErrConfig, ev.Name, w)
		}
	}
	for name := range p.Weights {
		if !known[name] {
			return fmt.Errorf("%w: weight for unknown evaluator %q", ErrConfig, name)
		}
	}
	if math.IsNaN(p.MaxTurns) || math.IsInf(p.MaxTurns, 0) || p.MaxTurns <= 0 {
		return fmt.Errorf("%w: max_turns must be a positive finite number, got %v", ErrConfig, p.MaxTurns)
	}
	for i, m := range p.Modifiers {
		if m.Name == "" {
			return fmt.Errorf("%w: modifier %d: empty name", ErrConfig, i)
		}
		if !known[m.Evaluator] {
			return fmt.Errorf("%w: modifier %q targets unknown evaluator %q", ErrConfig, m.Name, m.Evaluator)
		}
		if math.IsNaN(m.Factor) || math.IsInf(m.Factor, 0) || m.Factor < 0 {
			return fmt.Errorf("%w: modifier %q: factor must be finite and non-negative, got %v", ErrConfig, m.Name, m.Factor)
		}
	}
	return nil
}
