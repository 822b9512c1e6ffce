package engine

import (
	"errors"
	"reflect"
	"testing"

	"github.com/polis-engine/polis/catalog"
	"github.com/polis-engine/polis/model"
)

func newTestEngine(t *testing.T, p Profile, items ...catalog.Item) (*Engine, *catalog.Catalog) {
	t.Helper()
	cat, err := catalog.New(items)
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	eng, err := New(cat, p)
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	return eng, cat
}

func granary() catalog.Item {
	return catalog.Item{Key: "granary", Kind: catalog.KindBuilding, Cost: 60, Effects: catalog.Effects{Food: 2}}
}

func warrior() catalog.Item {
	return catalog.Item{Key: "warrior", Kind: catalog.KindUnit, Cost: 60, Effects: catalog.Effects{Defense: 6}}
}

func library() catalog.Item {
	return catalog.Item{Key: "library", Kind: catalog.KindBuilding, Cost: 80, Effects: catalog.Effects{Science: 3}}
}

func colossus() catalog.Item {
	return catalog.Item{Key: "colossus", Kind: catalog.KindBuilding, Cost: 200, Unique: catalog.UniqueWorld, Effects: catalog.Effects{Gold: 3}}
}

func TestDecideDeterministic(t *testing.T) {
	eng, _ := newTestEngine(t, DefaultProfile(), granary(), warrior(), library(), colossus())
	snap := testSnapshot()

	first, firstRanked, err := eng.Decide(snap)
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	for i := 0; i < 10; i++ {
		got, ranked, err := eng.Decide(snap)
		if err != nil {
			t.Fatalf("Decide: %v", err)
		}
		if got != first {
			t.Fatalf("decision changed between identical calls: %v vs %v", got, first)
		}
		if !reflect.DeepEqual(ranked, firstRanked) {
			t.Fatal("ranking changed between identical calls")
		}
	}
}

func TestDecideReturnsEligibleItem(t *testing.T) {
	eng, cat := newTestEngine(t, DefaultProfile(), granary(), warrior(), library(), colossus())
	snap := testSnapshot()

	decision, _, err := eng.Decide(snap)
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if !decision.IsBuild() {
		t.Fatal("expected a build decision")
	}
	for _, item := range cat.Eligible(snap) {
		if item.Key == decision.Item {
			return
		}
	}
	t.Fatalf("decision %q is not in the candidate set", decision.Item)
}

func TestDecideEmptyUniverse(t *testing.T) {
	eng, _ := newTestEngine(t, DefaultProfile())
	decision, _, err := eng.Decide(testSnapshot())
	if err != nil {
		t.Fatalf("empty universe must not error: %v", err)
	}
	if decision.Outcome != model.OutcomeNoViableCandidate {
		t.Fatalf("decision = %v, want NoViableCandidate", decision)
	}
}

func TestDecideRejectsInvalidSnapshot(t *testing.T) {
	eng, _ := newTestEngine(t, DefaultProfile(), granary())
	snap := testSnapshot()
	snap.Population = 0

	_, _, err := eng.Decide(snap)
	if !errors.Is(err, model.ErrInvalidSnapshot) {
		t.Fatalf("got %v, want ErrInvalidSnapshot", err)
	}
}

func TestVetoDropsSlowBuilds(t *testing.T) {
	epic := catalog.Item{Key: "epic", Kind: catalog.KindBuilding, Cost: 1000, Effects: catalog.Effects{Gold: 50}}
	eng, _ := newTestEngine(t, DefaultProfile(), granary(), epic)

	snap := testSnapshot() // production 10, cap 30 → epic needs 100 turns
	decision, ranked, err := eng.Decide(snap)
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if decision.Item == "epic" {
		t.Fatal("vetoed item was chosen")
	}
	for _, sc := range ranked {
		if sc.Key == "epic" {
			t.Fatal("vetoed item present in ranking")
		}
	}
}

func TestVetoZeroProduction(t *testing.T) {
	eng, _ := newTestEngine(t, DefaultProfile(), granary(), warrior())
	snap := testSnapshot()
	snap.Yields.Production = 0 // nothing can ever complete

	decision, _, err := eng.Decide(snap)
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if decision.Outcome != model.OutcomeNoViableCandidate {
		t.Fatalf("decision = %v, want NoViableCandidate", decision)
	}
}

func TestTieBreakByKey(t *testing.T) {
	// Identical effects, identical cost → totals tie → lexicographic key.
	a := catalog.Item{Key: "aqueduct", Kind: catalog.KindBuilding, Cost: 60}
	b := catalog.Item{Key: "bathhouse", Kind: catalog.KindBuilding, Cost: 60}
	eng, _ := newTestEngine(t, DefaultProfile(), b, a)

	decision, ranked, err := eng.Decide(testSnapshot())
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if ranked[0].Total != ranked[1].Total {
		t.Fatalf("expected a tie, got %v vs %v", ranked[0].Total, ranked[1].Total)
	}
	if decision.Item != "aqueduct" {
		t.Fatalf("tie resolved to %q, want aqueduct", decision.Item)
	}
}

func TestTieBreakByCost(t *testing.T) {
	// Neutralize the cost-efficiency evaluator so equal-effect items with
	// different costs produce a genuine score tie.
	p := DefaultProfile()
	p.Weights[EvalCostEfficiency] = 0

	cheap := catalog.Item{Key: "zealot-shrine", Kind: catalog.KindBuilding, Cost: 30}
	dear := catalog.Item{Key: "amphitheater", Kind: catalog.KindBuilding, Cost: 90}
	eng, _ := newTestEngine(t, p, dear, cheap)

	decision, ranked, err := eng.Decide(testSnapshot())
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if ranked[0].Total != ranked[1].Total {
		t.Fatalf("expected a tie, got %v vs %v", ranked[0].Total, ranked[1].Total)
	}
	if decision.Item != "zealot-shrine" {
		t.Fatalf("tie resolved to %q, want the cheaper zealot-shrine", decision.Item)
	}
}

func TestScenarioGrowthBias(t *testing.T) {
	eng, _ := newTestEngine(t, DefaultProfile(), granary(), warrior())

	snap := testSnapshot()
	snap.Population = 1
	snap.Threat = 0

	decision, _, err := eng.Decide(snap)
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if decision.Item != "granary" {
		t.Fatalf("small peaceful city chose %q, want granary", decision.Item)
	}
}

func TestScenarioThreatOverride(t *testing.T) {
	eng, _ := newTestEngine(t, DefaultProfile(), granary(), warrior())

	snap := testSnapshot()
	snap.Population = 1
	snap.Threat = 1.0

	decision, _, err := eng.Decide(snap)
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if decision.Item != "warrior" {
		t.Fatalf("threatened city chose %q, want warrior", decision.Item)
	}
}

func TestScenarioWonderRaceDecay(t *testing.T) {
	eng, _ := newTestEngine(t, DefaultProfile(), library(), colossus())

	uncontested := testSnapshot()
	uncontested.RacePressure = map[string]float64{"colossus": 0.1}
	contested := testSnapshot()
	contested.RacePressure = map[string]float64{"colossus": 0.95}

	first, firstRanked, err := eng.Decide(uncontested)
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	second, secondRanked, err := eng.Decide(contested)
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}

	if first.Item != "colossus" {
		t.Fatalf("uncontested wonder lost to %q", first.Item)
	}
	if second.Item != "library" {
		t.Fatalf("near-complete rival, still chose %q", second.Item)
	}

	score := func(ranked []model.ScoredCandidate, key string) float64 {
		for _, sc := range ranked {
			if sc.Key == key {
				return sc.Total
			}
		}
		t.Fatalf("%s missing from ranking", key)
		return 0
	}
	if score(secondRanked, "colossus") >= score(firstRanked, "colossus") {
		t.Error("wonder score did not decrease with race pressure")
	}
}

func TestModifierRuleFlipsRanking(t *testing.T) {
	p := DefaultProfile()
	p.Modifiers = append(p.Modifiers, ModifierRule{
		Name:      "unit-rush",
		When:      `IsKind("unit")`,
		Evaluator: EvalDefense,
		Factor:    6.0,
	})

	snap := testSnapshot()
	snap.Population = 1
	snap.Threat = 0

	baseline, _ := newTestEngine(t, DefaultProfile(), granary(), warrior())
	decision, _, err := baseline.Decide(snap)
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if decision.Item != "granary" {
		t.Fatalf("baseline chose %q, want granary", decision.Item)
	}

	modified, _ := newTestEngine(t, p, granary(), warrior())
	decision, _, err = modified.Decide(snap)
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if decision.Item != "warrior" {
		t.Fatalf("unit-rush profile chose %q, want warrior", decision.Item)
	}
}

func TestSwapKeepsOldProfileOnFailure(t *testing.T) {
	eng, _ := newTestEngine(t, DefaultProfile(), granary(), warrior())

	bad := DefaultProfile()
	bad.Name = "broken"
	bad.MaxTurns = 0
	if err := eng.Swap(bad); !errors.Is(err, ErrConfig) {
		t.Fatalf("Swap: got %v, want ErrConfig", err)
	}
	if eng.Profile().Name != "balanced" {
		t.Fatalf("active profile %q, want balanced", eng.Profile().Name)
	}

	// Engine must keep deciding on the old profile.
	if _, _, err := eng.Decide(testSnapshot()); err != nil {
		t.Fatalf("Decide after failed swap: %v", err)
	}
}

func TestSwapAppliesNewProfile(t *testing.T) {
	eng, _ := newTestEngine(t, DefaultProfile(), granary(), warrior())

	aggressive := DefaultProfile()
	aggressive.Name = "warmonger"
	aggressive.Weights[EvalDefense] = 10
	if err := eng.Swap(aggressive); err != nil {
		t.Fatalf("Swap: %v", err)
	}

	snap := testSnapshot()
	snap.Population = 1
	decision, _, err := eng.Decide(snap)
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if decision.Item != "warrior" {
		t.Fatalf("warmonger profile chose %q, want warrior", decision.Item)
	}
}

func TestNewRejectsBadProfile(t *testing.T) {
	cat, err := catalog.New([]catalog.Item{granary()})
	if err != nil {
		t.Fatal(err)
	}
	bad := DefaultProfile()
	delete(bad.Weights, EvalWonder)
	if _, err := New(cat, bad); !errors.Is(err, ErrConfig) {
		t.Fatalf("New: got %v, want ErrConfig", err)
	}
}

func TestBreakdownSumsToTotal(t *testing.T) {
	eng, _ := newTestEngine(t, DefaultProfile(), granary(), warrior(), library())

	_, ranked, err := eng.Decide(testSnapshot())
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	for _, sc := range ranked {
		sum := 0.0
		for _, v := range sc.Breakdown {
			sum += v
		}
		if diff := sum - sc.Total; diff > 1e-9 || diff < -1e-9 {
			t.Errorf("%s: breakdown sums to %v, total %v", sc.Key, sum, sc.Total)
		}
	}
}
