package engine

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// compiledRule is a modifier rule with its condition compiled to bytecode.
type compiledRule struct {
	rule    ModifierRule
	program *vm.Program
}

// compiledProfile is the immutable runtime form of a profile: weights aligned
// with the evaluator registration order, conditions pre-compiled. Compilation
// happens once at load or swap, never inside Decide.
type compiledProfile struct {
	profile Profile
	weights []float64 // indexed like the evaluator slice
	rules   []compiledRule
}

// compileProfile validates the profile against the evaluator set and compiles
// every modifier condition. All failures are ErrConfig; a profile that fails
// here never becomes active.
func compileProfile(p Profile, evals []Evaluator) (*compiledProfile, error) {
	if err := p.validate(evals); err != nil {
		return nil, err
	}

	cp := &compiledProfile{
		profile: p,
		weights: make([]float64, len(evals)),
	}
	for i, ev := range evals {
		cp.weights[i] = p.Weights[ev.Name]
	}

	for _, m := range p.Modifiers {
		program, err := expr.Compile(m.When, expr.Env(ScoreEnv{}), expr.AsBool())
		if err != nil {
			return nil, fmt.Errorf("%w: modifier %q: compile %q: %v", ErrConfig, m.Name, m.When, err)
		}
		cp.rules = append(cp.rules, compiledRule{rule: m, program: program})
	}
	return cp, nil
}
