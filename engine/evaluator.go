// Package engine turns a city snapshot into a single production decision:
// eligible candidates are scored by independent evaluators, weighted by the
// active profile, vetoed on completion time, and ranked deterministically.
package engine

import (
	"github.com/polis-engine/polis/catalog"
	"github.com/polis-engine/polis/model"
)

// Evaluator scores one strategic concern for one candidate. Score functions
// are pure: no state, no side effects, always a finite number, exactly 0 when
// the concern does not apply to the item. That makes them safe to run in any
// order, or concurrently, against the same snapshot.
type Evaluator struct {
	Name  string
	Score func(snap *model.CitySnapshot, item *catalog.Item) float64
}

// Evaluator names. These are the keys of the profile weight table and the
// targets of modifier rules.
const (
	EvalGrowth         = "growth"
	EvalProduction     = "production"
	EvalEconomy        = "economy"
	EvalHappiness      = "happiness"
	EvalDefense        = "defense"
	EvalWonder         = "wonder"
	EvalVictory        = "victory"
	EvalCostEfficiency = "costefficiency"
)

// Scoring constants. The relative importance of whole concerns lives in the
// profile weight table; these only shape each evaluator's internal curve.
const (
	// growthTaper controls diminishing returns on food: the growth scale is
	// 1/(1+population/growthTaper), halving around population 8.
	growthTaper = 8.0

	// starvationFactor boosts food when the city is shrinking (food < 0).
	starvationFactor = 8.0

	lowGoldThreshold      = 10.0
	lowCultureThreshold   = 2.0
	lowHappinessThreshold = 10.0
	shortfallBoost        = 2.0
	happinessCrisisBoost  = 5.0

	// defenseFloor guarantees defensive value never reaches zero, so every
	// city builds at least minimal defense over time even with no threat.
	defenseFloor = 0.15

	// wonderBase is the full wonder bonus at zero race pressure.
	wonderBase = 10.0

	// victoryBonus rewards items directly advancing the pursued victory.
	victoryBonus = 10.0

	// costHorizon and costPenaltyCap shape the cost-efficiency penalty:
	// a build taking costHorizon turns costs costPenaltyScale points, capped
	// so the value stays finite whatever the production rate.
	costHorizon      = 30.0
	costPenaltyScale = 5.0
	costPenaltyCap   = 20.0
)

// Evaluators returns the full evaluator set in its fixed registration order.
// The order is part of the engine's deterministic behavior.
func Evaluators() []Evaluator {
	return []Evaluator{
		{EvalGrowth, scoreGrowth},
		{EvalProduction, scoreProduction},
		{EvalEconomy, scoreEconomy},
		{EvalHappiness, scoreHappiness},
		{EvalDefense, scoreDefense},
		{EvalWonder, scoreWonder},
		{EvalVictory, scoreVictory},
		{EvalCostEfficiency, scoreCostEfficiency},
	}
}

// yieldGain resolves an item's flat + percent contribution to one yield.
func yieldGain(flat, pct, current float64) float64 {
	return flat + pct/100.0*current
}

// scoreGrowth rewards food gains, scaled down as the city grows and sharply
// up while the city is starving.
func scoreGrowth(snap *model.CitySnapshot, item *catalog.Item) float64 {
	gain := yieldGain(item.Effects.Food, item.Effects.FoodPct, snap.Yields.Food)
	if gain == 0 {
		return 0
	}
	if snap.Yields.Food < 0 {
		// Starving: food first, get back to zero.
		gain *= starvationFactor
	}
	return gain / (1.0 + float64(snap.Population)/growthTaper)
}

func scoreProduction(snap *model.CitySnapshot, item *catalog.Item) float64 {
	return yieldGain(item.Effects.Production, item.Effects.ProductionPct, snap.Yields.Production)
}

// scoreEconomy rewards gold, science and culture gains. Shortfall boosts are
// snapshot-derived; strategic-flag scaling (e.g. science ×2 when pursuing a
// scientific victory) belongs to the profile's modifier table instead.
func scoreEconomy(snap *model.CitySnapshot, item *catalog.Item) float64 {
	gold := yieldGain(item.Effects.Gold, item.Effects.GoldPct, snap.Yields.Gold)
	science := yieldGain(item.Effects.Science, item.Effects.SciencePct, snap.Yields.Science)
	culture := yieldGain(item.Effects.Culture, item.Effects.CulturePct, snap.Yields.Culture)

	if snap.Yields.Gold < lowGoldThreshold {
		gold *= shortfallBoost
	}
	if snap.Yields.Culture < lowCultureThreshold {
		// Borders grow on culture; a city producing almost none needs a push.
		culture *= shortfallBoost
	}
	return gold + science + culture
}

func scoreHappiness(snap *model.CitySnapshot, item *catalog.Item) float64 {
	h := item.Effects.Happiness
	if h == 0 {
		return 0
	}
	if snap.Happiness < lowHappinessThreshold {
		h *= happinessCrisisBoost
	}
	return h
}

// scoreDefense scales defensive value linearly with threat above a floor.
// At-war doubling is a modifier rule, not hardcoded here.
func scoreDefense(snap *model.CitySnapshot, item *catalog.Item) float64 {
	d := item.Effects.Defense
	if d == 0 {
		return 0
	}
	return d * (defenseFloor + (1.0-defenseFloor)*snap.Threat)
}

// scoreWonder rewards world-limited items, decaying to zero as rival progress
// toward the same item approaches completion. Strictly decreasing in
// pressure, so a contested wonder always scores below an uncontested one.
func scoreWonder(snap *model.CitySnapshot, item *catalog.Item) float64 {
	if !item.IsWonder() {
		return 0
	}
	return wonderBase * (1.0 - snap.Pressure(item.Key))
}

func scoreVictory(snap *model.CitySnapshot, item *catalog.Item) float64 {
	if item.Victory == "" || item.Victory != snap.Flags.Victory {
		return 0
	}
	return victoryBonus
}

// scoreCostEfficiency penalizes items that would occupy the queue for many
// turns at the city's current production rate. A zero or negative production
// rate returns the full cap rather than dividing by zero; such items are
// normally vetoed outright by the aggregator anyway.
func scoreCostEfficiency(snap *model.CitySnapshot, item *catalog.Item) float64 {
	if snap.Yields.Production <= 0 {
		return -costPenaltyCap
	}
	turns := item.Cost / snap.Yields.Production
	penalty := turns / costHorizon * costPenaltyScale
	if penalty > costPenaltyCap {
		penalty = costPenaltyCap
	}
	return -penalty
}
