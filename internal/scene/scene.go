// Package scene owns the scene projection: the transient set of live
// entities and their resolved states at the current timestamp, plus the
// presenter boundary the host applies without reinterpreting timing.
package scene

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/stratsim/engine/pkg/core"
)

// Presenter receives scene mutation commands from the timeline manager.
// Implementations must apply them as-is.
type Presenter interface {
	Spawn(id core.EntityID, initial core.PropertyState) error
	Despawn(id core.EntityID) error
	SetState(id core.EntityID, state core.PropertyState) error
}

// Announcer is implemented by presenters that carry a session lifecycle
// alongside the mutation stream. StartSession is sent once per loaded
// timeline, before any mutation command for it.
type Announcer interface {
	StartSession(timeline, encounter, arenaName string) error
}

// Projection is rebuilt or incrementally patched on every timestamp
// change and never persisted.
type Projection struct {
	mu        sync.RWMutex
	presenter Presenter
	logger    *slog.Logger
	live      map[core.EntityID]core.PropertyState
}

// NewProjection creates an empty projection emitting to presenter.
func NewProjection(p Presenter, logger *slog.Logger) *Projection {
	if logger == nil {
		logger = slog.Default()
	}
	return &Projection{
		presenter: p,
		logger:    logger,
		live:      make(map[core.EntityID]core.PropertyState),
	}
}

// Live returns the ids of currently-live entities, sorted.
func (p *Projection) Live() []core.EntityID {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]core.EntityID, 0, len(p.live))
	for id := range p.live {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// IsLive reports whether an entity currently has a live counterpart.
func (p *Projection) IsLive(id core.EntityID) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.live[id]
	return ok
}

// State returns the projected state of a live entity.
func (p *Projection) State(id core.EntityID) (core.PropertyState, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	st, ok := p.live[id]
	return st, ok
}

// Count returns the number of live entities.
func (p *Projection) Count() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.live)
}

// Reconcile applies one seek's deltas: despawns first, then spawns with
// their initial state, then state updates for entities whose projected
// state changed. Exactly the passed sets are emitted; already-live
// entities are never re-spawned here.
func (p *Projection) Reconcile(spawns map[core.EntityID]core.PropertyState, despawns []core.EntityID, states map[core.EntityID]core.PropertyState) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, id := range despawns {
		if _, ok := p.live[id]; !ok {
			continue
		}
		delete(p.live, id)
		if err := p.presenter.Despawn(id); err != nil {
			p.logger.Warn("presenter despawn failed", "entity", id, "error", err)
		}
	}

	spawnIDs := make([]core.EntityID, 0, len(spawns))
	for id := range spawns {
		spawnIDs = append(spawnIDs, id)
	}
	sort.Slice(spawnIDs, func(i, j int) bool { return spawnIDs[i] < spawnIDs[j] })
	for _, id := range spawnIDs {
		st := spawns[id]
		p.live[id] = st
		if err := p.presenter.Spawn(id, st); err != nil {
			p.logger.Warn("presenter spawn failed", "entity", id, "error", err)
		}
	}

	stateIDs := make([]core.EntityID, 0, len(states))
	for id := range states {
		stateIDs = append(stateIDs, id)
	}
	sort.Slice(stateIDs, func(i, j int) bool { return stateIDs[i] < stateIDs[j] })
	for _, id := range stateIDs {
		st := states[id]
		prev, ok := p.live[id]
		if !ok || prev == st {
			continue
		}
		p.live[id] = st
		if err := p.presenter.SetState(id, st); err != nil {
			p.logger.Warn("presenter set-state failed", "entity", id, "error", err)
		}
	}
}

// Teardown despawns everything. Called when entering authoring mode or
// before loading another timeline.
func (p *Projection) Teardown() {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids := make([]core.EntityID, 0, len(p.live))
	for id := range p.live {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		delete(p.live, id)
		if err := p.presenter.Despawn(id); err != nil {
			p.logger.Warn("presenter despawn failed", "entity", id, "error", err)
		}
	}
}
