// Package streaming defines the wire messages the websocket presenter
// sends to a remote scene viewer.
package streaming

import (
	"encoding/json"

	"github.com/stratsim/engine/pkg/core"
)

// Message type constants matching the streaming protocol.
const (
	TypeSessionStart = "session_start"
	TypeSessionEnd   = "session_end"
	TypeSpawn        = "spawn"
	TypeDespawn      = "despawn"
	TypeSetState     = "set_state"
)

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// AckMessage is the viewer's acknowledgement response.
type AckMessage struct {
	Type string `json:"type"` // always "ack"
	For  string `json:"for"`  // the message type being acknowledged
}

// SessionStartPayload announces the loaded timeline and arena.
type SessionStartPayload struct {
	Timeline  string `json:"timeline"`
	Encounter string `json:"encounter"`
	Arena     string `json:"arena"`
}

// SpawnPayload carries a spawned entity and its initial state.
type SpawnPayload struct {
	Entity core.EntityID      `json:"entity"`
	State  core.PropertyState `json:"state"`
}

// DespawnPayload names a despawned entity.
type DespawnPayload struct {
	Entity core.EntityID `json:"entity"`
}

// SetStatePayload carries an entity's updated state.
type SetStatePayload struct {
	Entity core.EntityID      `json:"entity"`
	State  core.PropertyState `json:"state"`
}
