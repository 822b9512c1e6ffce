// Package agent owns one host session: it decodes turn batches, fans the
// per-city decisions out across workers, and replies in request order.
package agent

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/polis-engine/polis/engine"
	"github.com/polis-engine/polis/ipc"
	"github.com/polis-engine/polis/model"
)

// Agent owns the decision-making for a single game session.
type Agent struct {
	Conn    *ipc.Connection
	Session string
	Host    string
	Game    string
	Engine  *engine.Engine

	tracker *Tracker
}

func New(conn *ipc.Connection, eng *engine.Engine) *Agent {
	return &Agent{
		Conn:    conn,
		Session: uuid.NewString(),
		Engine:  eng,
		tracker: NewTracker(),
	}
}

// HandleHello completes the handshake. A profile carried in the hello is
// compiled and swapped in before any turn is accepted; if it doesn't compile
// the session is refused rather than silently running on the wrong weights.
func (a *Agent) HandleHello(env ipc.Envelope) (*ipc.Envelope, error) {
	var hello ipc.HelloMessage
	if err := json.Unmarshal(env.Data, &hello); err != nil {
		return nil, fmt.Errorf("unmarshal hello: %w", err)
	}

	a.Host = hello.Host
	a.Game = hello.Game
	if a.Conn != nil {
		a.Conn.Session = a.Session
	}

	if len(hello.Profile) > 0 {
		var p engine.Profile
		if err := json.Unmarshal(hello.Profile, &p); err != nil {
			return reject(fmt.Sprintf("profile: %v", err))
		}
		if err := a.Engine.Swap(p); err != nil {
			return reject(err.Error())
		}
	}

	slog.Info("session opened", "session", a.Session, "host", a.Host, "game", a.Game,
		"profile", a.Engine.Profile().Name)

	ack, err := ipc.NewEnvelope(ipc.TypeAck, ipc.AckMessage{Status: "ok"})
	if err != nil {
		return nil, err
	}
	return &ack, nil
}

func reject(detail string) (*ipc.Envelope, error) {
	ack, err := ipc.NewEnvelope(ipc.TypeAck, ipc.AckMessage{Status: "rejected", Detail: detail})
	if err != nil {
		return nil, err
	}
	return &ack, nil
}

// HandleTurn runs one decision per automated city and replies with the batch.
func (a *Agent) HandleTurn(env ipc.Envelope) (*ipc.Envelope, error) {
	var turn ipc.TurnMessage
	if err := json.Unmarshal(env.Data, &turn); err != nil {
		return nil, fmt.Errorf("unmarshal turn: %w", err)
	}

	slog.Info("turn received", "session", a.Session, "turn", turn.Turn, "cities", len(turn.Cities))

	decisions := a.decideBatch(turn.Cities)

	for i := range turn.Cities {
		for _, event := range a.tracker.Observe(&turn.Cities[i]) {
			slog.Info("city event", "session", a.Session, "city", event.City,
				"turn", event.Turn, "kind", event.Kind, "detail", event.Detail)
		}
	}

	resp, err := ipc.NewEnvelope(ipc.TypeDecisions, ipc.DecisionsMessage{
		Turn:      turn.Turn,
		Decisions: decisions,
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// decideBatch fans the batch out across workers. Each snapshot is a private
// copy and Decide touches no shared state, so the only coordination needed
// is the indexed result slice — decisions land in request order no matter
// which goroutine finishes first.
func (a *Agent) decideBatch(cities []model.CitySnapshot) []ipc.CityDecision {
	out := make([]ipc.CityDecision, len(cities))

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := range cities {
		i := i
		g.Go(func() error {
			snap := &cities[i]
			cd := ipc.CityDecision{CityID: snap.CityID}

			decision, ranked, err := a.Engine.Decide(snap)
			switch {
			case err != nil:
				cd.Error = err.Error()
				slog.Warn("snapshot refused", "session", a.Session, "city", snap.CityID, "error", err)
			case decision.IsBuild():
				cd.Viable = true
				cd.Build = decision.Item
				slog.Info("decision", "session", a.Session, "city", snap.CityID,
					"build", decision.Item, "top", engine.Describe(ranked[0]), "candidates", len(ranked))
				if len(ranked) > 0 {
					slog.Debug("breakdown", "city", snap.CityID, "scores", ranked[0].Breakdown)
				}
			default:
				slog.Info("decision", "session", a.Session, "city", snap.CityID, "build", "none")
			}

			out[i] = cd
			return nil
		})
	}
	g.Wait() // workers never return errors; per-city failures ride in the result

	return out
}
