package engine

import (
	"github.com/polis-engine/polis/catalog"
	"github.com/polis-engine/polis/model"
)

// ScoreEnv is the environment modifier conditions evaluate against: one
// snapshot plus one candidate. Helper methods are what profile authors call
// from `when` clauses.
type ScoreEnv struct {
	Snapshot *model.CitySnapshot
	Item     *catalog.Item
}

func (e ScoreEnv) AtWar() bool { return e.Snapshot.Flags.AtWar }

func (e ScoreEnv) PursuingVictory(kind string) bool {
	return e.Snapshot.Flags.Victory == kind
}

func (e ScoreEnv) Threat() float64 { return e.Snapshot.Threat }

func (e ScoreEnv) Population() int { return e.Snapshot.Population }

// Starving reports a negative food yield.
func (e ScoreEnv) Starving() bool { return e.Snapshot.Yields.Food < 0 }

func (e ScoreEnv) HasBuilding(key string) bool { return e.Snapshot.HasBuilding(key) }

func (e ScoreEnv) HasTech(key string) bool { return e.Snapshot.HasTech(key) }

func (e ScoreEnv) ItemKey() string { return e.Item.Key }

func (e ScoreEnv) IsKind(kind string) bool { return string(e.Item.Kind) == kind }

func (e ScoreEnv) IsWonder() bool { return e.Item.IsWonder() }

func (e ScoreEnv) RequiresResource() bool { return e.Item.Requires.Resource != "" }

// RacePressure returns rival progress toward the candidate, 0 when unknown.
func (e ScoreEnv) RacePressure() float64 { return e.Snapshot.Pressure(e.Item.Key) }
