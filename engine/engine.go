package engine

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/expr-lang/expr/vm"

	"github.com/polis-engine/polis/catalog"
	"github.com/polis-engine/polis/model"
)

// Engine is the per-session decision engine. It holds only immutable inputs:
// the item catalog and a compiled profile. Decide writes nothing shared, so
// decisions for different cities can run concurrently on the same Engine.
type Engine struct {
	mu      sync.RWMutex
	catalog *catalog.Catalog
	evals   []Evaluator
	profile *compiledProfile
}

// New builds an engine from a catalog and a profile. A profile that fails
// validation or compilation is rejected up front; no Decide call is accepted
// without a valid configuration.
func New(cat *catalog.Catalog, p Profile) (*Engine, error) {
	evals := Evaluators()
	cp, err := compileProfile(p, evals)
	if err != nil {
		return nil, err
	}
	return &Engine{
		catalog: cat,
		evals:   evals,
		profile: cp,
	}, nil
}

// Swap atomically replaces the active profile. Compiles first; if compilation
// fails the old profile remains active and the error is returned.
func (e *Engine) Swap(p Profile) error {
	cp, err := compileProfile(p, e.evals)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.profile = cp
	e.mu.Unlock()
	slog.Info("profile swapped", "profile", p.Name, "modifiers", len(p.Modifiers))
	return nil
}

// Profile returns the active profile.
func (e *Engine) Profile() Profile {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.profile.profile
}

// Decide picks what the city should produce next. It is a pure function of
// the snapshot and the engine's static configuration: one pass over the
// candidate set, no randomness, no I/O, no retained state. Identical
// snapshots always yield identical decisions.
//
// The ranked candidates are returned alongside the decision for
// explainability; callers that only need the decision can ignore them.
func (e *Engine) Decide(snap *model.CitySnapshot) (model.Decision, []model.ScoredCandidate, error) {
	if err := snap.Validate(); err != nil {
		return model.Decision{}, nil, err
	}

	e.mu.RLock()
	cp := e.profile
	e.mu.RUnlock()

	candidates := e.catalog.Eligible(snap)
	ranked := e.rank(cp, snap, candidates)
	if len(ranked) == 0 {
		return model.NoViableCandidate(), nil, nil
	}
	return model.Build(ranked[0].Key), ranked, nil
}

// rank applies the structural veto, then scores and sorts the survivors.
// The veto comes first on purpose: an item that would never complete in
// reasonable time is wrong regardless of how a dominant evaluator skews the
// weighted sum, so it is removed rather than merely down-weighted.
func (e *Engine) rank(cp *compiledProfile, snap *model.CitySnapshot, candidates []*catalog.Item) []model.ScoredCandidate {
	ranked := make([]model.ScoredCandidate, 0, len(candidates))
	for _, item := range candidates {
		turns, ok := turnsToComplete(snap, item)
		if !ok || turns > cp.profile.MaxTurns {
			slog.Debug("candidate vetoed", "city", snap.CityID, "item", item.Key, "turns", turns, "cap", cp.profile.MaxTurns)
			continue
		}
		ranked = append(ranked, e.score(cp, snap, item))
	}

	// Total descending, then cost ascending (cheaper progress first), then
	// key ascending for full replay determinism.
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Total != ranked[j].Total {
			return ranked[i].Total > ranked[j].Total
		}
		if ranked[i].Cost != ranked[j].Cost {
			return ranked[i].Cost < ranked[j].Cost
		}
		return ranked[i].Key < ranked[j].Key
	})
	return ranked
}

// score sums the weighted evaluator contributions for one candidate,
// applying matching modifier rules to their target evaluator.
func (e *Engine) score(cp *compiledProfile, snap *model.CitySnapshot, item *catalog.Item) model.ScoredCandidate {
	env := ScoreEnv{Snapshot: snap, Item: item}

	// Resolve modifier factors once per candidate.
	factors := make(map[string]float64, len(cp.rules))
	for _, cr := range cp.rules {
		result, err := vm.Run(cr.program, env)
		if err != nil {
			slog.Warn("modifier condition error", "modifier", cr.rule.Name, "error", err)
			continue
		}
		if match, ok := result.(bool); ok && match {
			if _, seen := factors[cr.rule.Evaluator]; !seen {
				factors[cr.rule.Evaluator] = 1.0
			}
			factors[cr.rule.Evaluator] *= cr.rule.Factor
		}
	}

	sc := model.ScoredCandidate{
		Key:       item.Key,
		Cost:      item.Cost,
		Breakdown: make(map[string]float64, len(e.evals)),
	}
	for i, ev := range e.evals {
		contribution := cp.weights[i] * ev.Score(snap, item)
		if f, ok := factors[ev.Name]; ok {
			contribution *= f
		}
		sc.Breakdown[ev.Name] = contribution
		sc.Total += contribution
	}
	return sc
}

// turnsToComplete is the item's cost divided by the city's production rate.
// ok is false when the rate is zero or negative: the item would never
// complete, which the veto treats as exceeding any cap.
func turnsToComplete(snap *model.CitySnapshot, item *catalog.Item) (float64, bool) {
	if snap.Yields.Production <= 0 {
		return 0, false
	}
	return item.Cost / snap.Yields.Production, true
}

// Describe formats a ranked candidate for debug logs.
func Describe(sc model.ScoredCandidate) string {
	return fmt.Sprintf("%s (score %.2f, cost %.0f)", sc.Key, sc.Total, sc.Cost)
}
