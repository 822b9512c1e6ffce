package model

// Outcome is the terminal result kind of one decision.
type Outcome string

const (
	OutcomeBuild             Outcome = "build"
	OutcomeNoViableCandidate Outcome = "no_viable_candidate"
)

// Decision is the single value the engine emits per invocation. Ownership
// transfers to the caller; the engine keeps nothing.
type Decision struct {
	Outcome Outcome `json:"outcome"`
	Item    string  `json:"item,omitempty"` // set when Outcome == OutcomeBuild
}

// Build commits the city to producing item.
func Build(item string) Decision {
	return Decision{Outcome: OutcomeBuild, Item: item}
}

// NoViableCandidate signals the caller must apply its own fallback policy.
// It is a legitimate decision, not an error.
func NoViableCandidate() Decision {
	return Decision{Outcome: OutcomeNoViableCandidate}
}

func (d Decision) IsBuild() bool { return d.Outcome == OutcomeBuild }

// ScoredCandidate pairs a candidate with its total and per-evaluator
// contributions. The breakdown exists for explainability logging only and is
// never persisted.
type ScoredCandidate struct {
	Key       string             `json:"key"`
	Cost      float64            `json:"cost"`
	Total     float64            `json:"total"`
	Breakdown map[string]float64 `json:"breakdown,omitempty"`
}
