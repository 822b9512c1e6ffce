package ipc

import (
	"encoding/json"

	"github.com/polis-engine/polis/model"
)

// Message type constants — must stay in sync with the game host.
const (
	TypeHello     = "hello"
	TypeAck       = "ack"
	TypeTurn      = "turn"
	TypeDecisions = "decisions"
)

// HelloMessage opens a session. Profile optionally carries a weight profile
// for this session; when absent the engine keeps its startup profile. It is
// raw JSON here so the ipc layer stays ignorant of engine configuration.
type HelloMessage struct {
	Host    string          `json:"host"`
	Game    string          `json:"game"`
	Profile json.RawMessage `json:"profile,omitempty"`
}

type AckMessage struct {
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// TurnMessage carries one turn's batch of automated cities. Each snapshot is
// a private copy for the duration of the call; the host must not alias them.
type TurnMessage struct {
	Turn   int                  `json:"turn"`
	Cities []model.CitySnapshot `json:"cities"`
}

// CityDecision is the per-city outcome. Exactly one of three shapes:
// a build (Viable true, Build set), no viable candidate (Viable false,
// Error empty), or a refused snapshot (Viable false, Error set).
type CityDecision struct {
	CityID string `json:"cityId"`
	Build  string `json:"build,omitempty"`
	Viable bool   `json:"viable"`
	Error  string `json:"error,omitempty"`
}

// DecisionsMessage answers a TurnMessage. Decisions appear in the same order
// as the cities in the request, regardless of internal scheduling.
type DecisionsMessage struct {
	Turn      int            `json:"turn"`
	Decisions []CityDecision `json:"decisions"`
}
