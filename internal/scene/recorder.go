package scene

import (
	"sync"

	"github.com/stratsim/engine/pkg/core"
)

// CommandKind names a recorded presenter command.
type CommandKind string

const (
	CmdSpawn    CommandKind = "spawn"
	CmdDespawn  CommandKind = "despawn"
	CmdSetState CommandKind = "set_state"
)

// Command is one recorded presenter call.
type Command struct {
	Kind   CommandKind
	Entity core.EntityID
	State  core.PropertyState
}

// Recorder is a Presenter that records every command. Used by tests and
// by the CLI's dry-run playback.
type Recorder struct {
	mu       sync.Mutex
	commands []Command
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Spawn(id core.EntityID, initial core.PropertyState) error {
	r.record(Command{Kind: CmdSpawn, Entity: id, State: initial})
	return nil
}

func (r *Recorder) Despawn(id core.EntityID) error {
	r.record(Command{Kind: CmdDespawn, Entity: id})
	return nil
}

func (r *Recorder) SetState(id core.EntityID, state core.PropertyState) error {
	r.record(Command{Kind: CmdSetState, Entity: id, State: state})
	return nil
}

func (r *Recorder) record(c Command) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands = append(r.commands, c)
}

// Commands returns a copy of all recorded commands in order.
func (r *Recorder) Commands() []Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Command(nil), r.commands...)
}

// Reset clears the recording.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands = nil
}
