package orch

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dkeye/relay/internal/app"
	"github.com/dkeye/relay/internal/core"
	"github.com/dkeye/relay/internal/domain"
	"github.com/rs/zerolog/log"
)

var ErrMalformedMessage = errors.New("malformed message")

// Orchestrator ties connection events to the registry. It is the only path
// peer frames take between two connections.
type Orchestrator struct {
	Registry *app.Registry
	Metrics  *app.Metrics
}

func New(reg *app.Registry, m *app.Metrics) *Orchestrator {
	return &Orchestrator{Registry: reg, Metrics: m}
}

// Join admits conn to the room. On error the connection was never admitted.
func (o *Orchestrator) Join(roomID domain.RoomID, conn core.SignalConnection) (domain.ClientID, error) {
	return o.Registry.Admit(roomID, conn)
}

// Leave removes the peer. Callers invoke it once per admitted connection.
func (o *Orchestrator) Leave(roomID domain.RoomID, id domain.ClientID) {
	o.Registry.Remove(roomID, id)
}

// Route stamps raw with the sender id and hands it to the peer named in "to".
// Only malformed input is an error; anything undeliverable is dropped.
func (o *Orchestrator) Route(roomID domain.RoomID, sender domain.ClientID, raw []byte) error {
	var msg map[string]json.RawMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		o.Metrics.MessageDropped(app.ReasonMalformed)
		return fmt.Errorf("%w: %w", ErrMalformedMessage, err)
	}
	if msg == nil {
		o.Metrics.MessageDropped(app.ReasonMalformed)
		return fmt.Errorf("%w: not an object", ErrMalformedMessage)
	}

	from, _ := json.Marshal(string(sender))
	msg["from"] = from

	rawTo, ok := msg["to"]
	if !ok {
		o.drop(roomID, sender, "", app.ReasonNoTarget)
		return nil
	}
	var to string
	if err := json.Unmarshal(rawTo, &to); err != nil {
		o.drop(roomID, sender, "", app.ReasonUnknownTarget)
		return nil
	}
	target, ok := o.Registry.Lookup(roomID, domain.ClientID(to))
	if !ok {
		o.drop(roomID, sender, to, app.ReasonUnknownTarget)
		return nil
	}

	out, err := json.Marshal(msg)
	if err != nil {
		o.Metrics.MessageDropped(app.ReasonMalformed)
		return fmt.Errorf("%w: %w", ErrMalformedMessage, err)
	}
	if err := target.TrySend(out); err != nil {
		o.Registry.HandleDropped(roomID, []core.Dropped{{ID: domain.ClientID(to), Conn: target, Err: err}})
		o.drop(roomID, sender, to, app.ReasonSendFailed)
		return nil
	}

	o.Metrics.MessageRouted()
	return nil
}

func (o *Orchestrator) drop(roomID domain.RoomID, sender domain.ClientID, to, reason string) {
	o.Metrics.MessageDropped(reason)
	log.Debug().
		Str("module", "orch").
		Str("room", string(roomID)).
		Str("client", string(sender)).
		Str("to", to).
		Str("reason", reason).
		Msg("message dropped")
}
