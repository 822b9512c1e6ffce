// Package catalog holds the static universe of constructible items and the
// eligibility filter that turns it into a per-city candidate set.
package catalog

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/polis-engine/polis/model"
)

// Kind classifies what a constructible item is.
type Kind string

const (
	KindBuilding    Kind = "building"
	KindUnit        Kind = "unit"
	KindImprovement Kind = "improvement"
	KindOther       Kind = "other"
)

// Uniqueness restricts how many copies of an item may ever exist.
type Uniqueness string

const (
	UniqueNone  Uniqueness = ""      // repeatable
	UniqueCity  Uniqueness = "city"  // one per city
	UniqueCiv   Uniqueness = "civ"   // one per civilization
	UniqueWorld Uniqueness = "world" // one in the whole game (wonders)
)

// Effects describe what an item contributes once completed. Flat values add
// to the city's per-turn yields; the *Pct values are percentages of the
// city's current yield. Defense is flat strength (buildings) or unit strength.
type Effects struct {
	Food       float64 `yaml:"food" json:"food"`
	Production float64 `yaml:"production" json:"production"`
	Gold       float64 `yaml:"gold" json:"gold"`
	Science    float64 `yaml:"science" json:"science"`
	Culture    float64 `yaml:"culture" json:"culture"`
	Happiness  float64 `yaml:"happiness" json:"happiness"`
	Defense    float64 `yaml:"defense" json:"defense"`

	FoodPct       float64 `yaml:"food_pct" json:"foodPct"`
	ProductionPct float64 `yaml:"production_pct" json:"productionPct"`
	GoldPct       float64 `yaml:"gold_pct" json:"goldPct"`
	SciencePct    float64 `yaml:"science_pct" json:"sciencePct"`
	CulturePct    float64 `yaml:"culture_pct" json:"culturePct"`
}

// Requirements gate when an item becomes buildable.
type Requirements struct {
	Techs     []string `yaml:"techs" json:"techs,omitempty"`
	Buildings []string `yaml:"buildings" json:"buildings,omitempty"`
	Resource  string   `yaml:"resource" json:"resource,omitempty"` // strategic resource, one unused unit needed
}

// Item is one constructible. Immutable once loaded.
type Item struct {
	Key      string       `yaml:"key" json:"key"`
	Kind     Kind         `yaml:"kind" json:"kind"`
	Cost     float64      `yaml:"cost" json:"cost"`
	Requires Requirements `yaml:"requires" json:"requires"`
	Unique   Uniqueness   `yaml:"unique" json:"unique,omitempty"`
	Effects  Effects      `yaml:"effects" json:"effects"`

	// Victory names the victory type this item directly advances
	// (e.g. spaceship parts → "science"). Empty for ordinary items.
	Victory string `yaml:"victory" json:"victory,omitempty"`
}

// IsWonder reports whether the item is world-limited.
func (i *Item) IsWonder() bool { return i.Unique == UniqueWorld }

// Catalog is the immutable item universe for one game session.
type Catalog struct {
	items []Item
	byKey map[string]*Item
}

type catalogFile struct {
	Items []Item `yaml:"items"`
}

// Load reads a YAML catalog file.
func Load(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	var f catalogFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	return New(f.Items)
}

// New validates the item universe and freezes it.
func New(items []Item) (*Catalog, error) {
	c := &Catalog{
		items: make([]Item, len(items)),
		byKey: make(map[string]*Item, len(items)),
	}
	copy(c.items, items)
	for idx := range c.items {
		item := &c.items[idx]
		if item.Key == "" {
			return nil, fmt.Errorf("catalog item %d: empty key", idx)
		}
		if _, dup := c.byKey[item.Key]; dup {
			return nil, fmt.Errorf("catalog item %q: duplicate key", item.Key)
		}
		switch item.Kind {
		case KindBuilding, KindUnit, KindImprovement, KindOther:
		default:
			return nil, fmt.Errorf("catalog item %q: unknown kind %q", item.Key, item.Kind)
		}
		switch item.Unique {
		case UniqueNone, UniqueCity, UniqueCiv, UniqueWorld:
		default:
			return nil, fmt.Errorf("catalog item %q: unknown uniqueness %q", item.Key, item.Unique)
		}
		if item.Cost <= 0 || math.IsNaN(item.Cost) || math.IsInf(item.Cost, 0) {
			return nil, fmt.Errorf("catalog item %q: cost %v must be a positive finite number", item.Key, item.Cost)
		}
		c.byKey[item.Key] = item
	}
	return c, nil
}

func (c *Catalog) Len() int { return len(c.items) }

// Item looks up a definition by key.
func (c *Catalog) Item(key string) (*Item, bool) {
	item, ok := c.byKey[key]
	return item, ok
}

// Eligible filters the universe down to what the city can start this turn.
// An empty result is a legitimate state, not an error — the aggregator maps
// it to NoViableCandidate.
func (c *Catalog) Eligible(snap *model.CitySnapshot) []*Item {
	var out []*Item
	for idx := range c.items {
		item := &c.items[idx]
		if c.eligible(item, snap) {
			out = append(out, item)
		}
	}
	return out
}

func (c *Catalog) eligible(item *Item, snap *model.CitySnapshot) bool {
	// Buildings are one-per-city regardless of declared uniqueness.
	if item.Kind == KindBuilding && snap.HasBuilding(item.Key) {
		return false
	}
	switch item.Unique {
	case UniqueCity:
		if snap.HasBuilding(item.Key) {
			return false
		}
	case UniqueCiv, UniqueWorld:
		if snap.HasCompleted(item.Key) {
			return false
		}
	}
	for _, tech := range item.Requires.Techs {
		if !snap.HasTech(tech) {
			return false
		}
	}
	for _, b := range item.Requires.Buildings {
		if !snap.HasBuilding(b) {
			return false
		}
	}
	if res := item.Requires.Resource; res != "" && snap.Resources[res] < 1 {
		return false
	}
	// Placement validity is the host's call, delivered as a snapshot flag.
	if item.Kind == KindUnit && !snap.CanPlaceUnits {
		return false
	}
	return true
}
