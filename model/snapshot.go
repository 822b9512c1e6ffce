package model

import (
	"errors"
	"fmt"
	"math"
	"slices"
)

// ErrInvalidSnapshot marks snapshots the engine refuses to decide on.
// A missing or out-of-range field gets an explicit rejection instead of an
// implicit default — a silently defaulted field would bias build choices.
var ErrInvalidSnapshot = errors.New("invalid snapshot")

// Victory focus values carried on StrategicFlags.
const (
	VictoryScience    = "science"
	VictoryCulture    = "culture"
	VictoryDomination = "domination"
)

// Yields are per-turn city outputs.
type Yields struct {
	Food       float64 `json:"food"`
	Production float64 `json:"production"`
	Gold       float64 `json:"gold"`
	Science    float64 `json:"science"`
	Culture    float64 `json:"culture"`
}

// StrategicFlags are civilization-wide signals the host computes once per turn.
type StrategicFlags struct {
	AtWar   bool   `json:"atWar"`
	Victory string `json:"victory,omitempty"` // pursued victory type, empty if none
}

// CitySnapshot is the read-only view of one city at decision time.
// The host populates every field fresh each turn; the engine never mutates a
// snapshot and never retains one past the Decide call that received it, which
// is what makes per-city decisions safe to run in parallel without locks.
type CitySnapshot struct {
	CityID       string  `json:"cityId"`
	Turn         int     `json:"turn"`
	Population   int     `json:"population"`
	Yields       Yields  `json:"yields"`
	Happiness    float64 `json:"happiness"`
	Buildings    []string `json:"buildings"`    // item keys already present in this city
	Technologies []string `json:"technologies"` // researched tech keys
	Completed    []string `json:"completed"`    // civ- or world-unique keys finished anywhere

	// Resources maps strategic resource keys to unused units available to
	// this city. Items requiring a resource need at least one unused unit.
	Resources map[string]int `json:"resources"`

	// Threat is the host's distance-to-nearest-hostile metric, normalized to
	// [0,1] where 1 means hostile forces at the gates.
	Threat float64 `json:"threat"`

	// RacePressure maps world-unique item keys to rival progress in [0,1].
	// Keys absent from the map mean no known rival progress.
	RacePressure map[string]float64 `json:"racePressure"`

	// QueueHead is the item currently in production, empty when idle.
	QueueHead string `json:"queueHead"`

	// CanPlaceUnits is precomputed by the host; the engine does not reason
	// about tile placement itself.
	CanPlaceUnits bool `json:"canPlaceUnits"`

	Flags StrategicFlags `json:"flags"`
}

func (s *CitySnapshot) HasBuilding(key string) bool {
	return slices.Contains(s.Buildings, key)
}

func (s *CitySnapshot) HasTech(key string) bool {
	return slices.Contains(s.Technologies, key)
}

func (s *CitySnapshot) HasCompleted(key string) bool {
	return slices.Contains(s.Completed, key)
}

// Pressure returns the known rival progress toward a world-unique item.
func (s *CitySnapshot) Pressure(key string) float64 {
	if s.RacePressure == nil {
		return 0
	}
	return s.RacePressure[key]
}

// Validate checks every field the engine reads. All failures wrap
// ErrInvalidSnapshot and name the offending field.
func (s *CitySnapshot) Validate() error {
	if s == nil {
		return fmt.Errorf("%w: nil snapshot", ErrInvalidSnapshot)
	}
	if s.CityID == "" {
		return fmt.Errorf("%w: cityId is required", ErrInvalidSnapshot)
	}
	if s.Turn < 0 {
		return fmt.Errorf("%w: %s: negative turn %d", ErrInvalidSnapshot, s.CityID, s.Turn)
	}
	if s.Population < 1 {
		return fmt.Errorf("%w: %s: population %d, a live city has at least one citizen", ErrInvalidSnapshot, s.CityID, s.Population)
	}
	for _, y := range []struct {
		name string
		v    float64
	}{
		{"yields.food", s.Yields.Food},
		{"yields.production", s.Yields.Production},
		{"yields.gold", s.Yields.Gold},
		{"yields.science", s.Yields.Science},
		{"yields.culture", s.Yields.Culture},
		{"happiness", s.Happiness},
	} {
		if !finite(y.v) {
			return fmt.Errorf("%w: %s: %s is not finite", ErrInvalidSnapshot, s.CityID, y.name)
		}
	}
	if !finite(s.Threat) || s.Threat < 0 || s.Threat > 1 {
		return fmt.Errorf("%w: %s: threat %v outside [0,1]", ErrInvalidSnapshot, s.CityID, s.Threat)
	}
	for key, p := range s.RacePressure {
		if !finite(p) || p < 0 || p > 1 {
			return fmt.Errorf("%w: %s: racePressure[%s] = %v outside [0,1]", ErrInvalidSnapshot, s.CityID, key, p)
		}
	}
	for key, n := range s.Resources {
		if n < 0 {
			return fmt.Errorf("%w: %s: resources[%s] = %d is negative", ErrInvalidSnapshot, s.CityID, key, n)
		}
	}
	switch s.Flags.Victory {
	case "", VictoryScience, VictoryCulture, VictoryDomination:
	default:
		return fmt.Errorf("%w: %s: unknown victory focus %q", ErrInvalidSnapshot, s.CityID, s.Flags.Victory)
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
