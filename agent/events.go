package agent

import (
	"fmt"

	"github.com/polis-engine/polis/model"
)

// EventKind identifies a notable turn-over-turn transition in a city's state.
type EventKind string

const (
	EventStarvationOnset EventKind = "starvation_onset"
	EventThreatSpike     EventKind = "threat_spike"
	EventPopulationDrop  EventKind = "population_drop"
	EventWarStarted      EventKind = "war_started"
	EventWonderRaceLost  EventKind = "wonder_race_lost"
)

// threatSpikeDelta is the per-turn threat jump that counts as a spike.
const threatSpikeDelta = 0.3

// wonderLostPressure is the rival progress past which a contested wonder is
// considered effectively gone.
const wonderLostPressure = 0.9

// Event is a detected transition. Events feed diagnostics logging only; they
// never influence decisions, which depend on the snapshot alone.
type Event struct {
	Kind   EventKind
	City   string
	Turn   int
	Detail string
}

// cityMemo captures the diffable fields from one city's snapshot. The tracker
// keeps one per city and compares against the next turn.
type cityMemo struct {
	turn       int
	population int
	food       float64
	threat     float64
	atWar      bool
	pressure   map[string]float64
}

// Tracker detects events by diffing consecutive snapshots per city. It is
// driven sequentially by the agent after each batch; it is not safe for
// concurrent use and does not need to be.
type Tracker struct {
	cities map[string]cityMemo
}

func NewTracker() *Tracker {
	return &Tracker{cities: make(map[string]cityMemo)}
}

// Observe compares the snapshot against the city's previous one and records
// the new state. The first sighting of a city produces no events.
func (t *Tracker) Observe(snap *model.CitySnapshot) []Event {
	prev, seen := t.cities[snap.CityID]
	t.cities[snap.CityID] = memo(snap)
	if !seen {
		return nil
	}

	var events []Event
	add := func(kind EventKind, detail string) {
		events = append(events, Event{Kind: kind, City: snap.CityID, Turn: snap.Turn, Detail: detail})
	}

	if prev.food >= 0 && snap.Yields.Food < 0 {
		add(EventStarvationOnset, fmt.Sprintf("food yield %.1f → %.1f", prev.food, snap.Yields.Food))
	}
	if snap.Threat-prev.threat > threatSpikeDelta {
		add(EventThreatSpike, fmt.Sprintf("threat %.2f → %.2f", prev.threat, snap.Threat))
	}
	if snap.Population < prev.population {
		add(EventPopulationDrop, fmt.Sprintf("population %d → %d", prev.population, snap.Population))
	}
	if !prev.atWar && snap.Flags.AtWar {
		add(EventWarStarted, "civilization is now at war")
	}
	for key, p := range snap.RacePressure {
		if p >= wonderLostPressure && prev.pressure[key] < wonderLostPressure {
			add(EventWonderRaceLost, fmt.Sprintf("rival at %.0f%% on %s", p*100, key))
		}
	}
	return events
}

func memo(snap *model.CitySnapshot) cityMemo {
	m := cityMemo{
		turn:       snap.Turn,
		population: snap.Population,
		food:       snap.Yields.Food,
		threat:     snap.Threat,
		atWar:      snap.Flags.AtWar,
		pressure:   make(map[string]float64, len(snap.RacePressure)),
	}
	for k, v := range snap.RacePressure {
		m.pressure[k] = v
	}
	return m
}
