// Package websocket streams scene mutation commands to a remote viewer.
package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/stratsim/engine/internal/scene"
	"github.com/stratsim/engine/pkg/core"
	"github.com/stratsim/engine/pkg/streaming"
)

var (
	_ scene.Presenter = (*Presenter)(nil)
	_ scene.Announcer = (*Presenter)(nil)
)

// Config holds WebSocket presenter configuration.
type Config struct {
	URL    string
	Secret string
}

// Presenter implements scene.Presenter over a WebSocket connection.
// Commands are fire-and-forget; only session start waits for an ack.
type Presenter struct {
	conn *connection
	cfg  Config
}

// New creates a new WebSocket presenter.
func New(cfg Config, logger *slog.Logger) *Presenter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Presenter{
		conn: newConnection(logger),
		cfg:  cfg,
	}
}

// Connect dials the viewer.
func (p *Presenter) Connect() error {
	return p.conn.dial(p.cfg.URL, p.cfg.Secret)
}

// Close disconnects from the viewer.
func (p *Presenter) Close() error {
	return p.conn.close()
}

// marshalEnvelope builds a JSON-encoded Envelope from a message type and payload.
func marshalEnvelope(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	env := streaming.Envelope{Type: msgType, Payload: raw}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}

func (p *Presenter) sendEnvelope(msgType string, payload any) error {
	data, err := marshalEnvelope(msgType, payload)
	if err != nil {
		return err
	}
	p.conn.send(data)
	return nil
}

// StartSession announces the loaded timeline and waits for the viewer ack.
// The message is cached for replay after a reconnect.
func (p *Presenter) StartSession(timeline, encounter, arenaName string) error {
	data, err := marshalEnvelope(streaming.TypeSessionStart, streaming.SessionStartPayload{
		Timeline:  timeline,
		Encounter: encounter,
		Arena:     arenaName,
	})
	if err != nil {
		return err
	}
	p.conn.mu.Lock()
	p.conn.cachedStartMsg = data
	p.conn.mu.Unlock()
	return p.conn.sendAndWait(data, streaming.TypeSessionStart, ackTimeout)
}

// EndSession tells the viewer the session is over.
func (p *Presenter) EndSession() error {
	return p.sendEnvelope(streaming.TypeSessionEnd, struct{}{})
}

// Spawn implements scene.Presenter.
func (p *Presenter) Spawn(id core.EntityID, initial core.PropertyState) error {
	return p.sendEnvelope(streaming.TypeSpawn, streaming.SpawnPayload{Entity: id, State: initial})
}

// Despawn implements scene.Presenter.
func (p *Presenter) Despawn(id core.EntityID) error {
	return p.sendEnvelope(streaming.TypeDespawn, streaming.DespawnPayload{Entity: id})
}

// SetState implements scene.Presenter.
func (p *Presenter) SetState(id core.EntityID, state core.PropertyState) error {
	return p.sendEnvelope(streaming.TypeSetState, streaming.SetStatePayload{Entity: id, State: state})
}
