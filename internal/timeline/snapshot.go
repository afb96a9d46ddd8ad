package timeline

import (
	"time"

	"github.com/stratsim/engine/pkg/core"
)

// snapshotInstant is one resolved snapshot on the active path: the global
// instant it captures, the stratframe it belongs to, and any recorded
// states.
type snapshotInstant struct {
	abs     time.Duration
	pathKey string
	frame   string
	states  map[core.EntityID]core.PropertyState
}

// nearestSnapshot finds the driving snapshot for global time t: an exact
// hit if one exists, otherwise the nearest snapshot at or before t.
// Candidates come from every instance on the active path. A stratframe
// with an anchored snapshot contributes the snapshot's instant and
// recorded states; a stratframe without one stands in for itself, so
// seeking exactly onto it needs no replay. Ties between levels go to the
// innermost instance.
func (m *Manager) nearestSnapshot(lvls []activeLevel, t time.Duration) (snapshotInstant, bool) {
	var best snapshotInstant
	found := false

	for _, lvl := range lvls {
		seg, ok := m.graph.Segment(lvl.seg)
		if !ok {
			continue
		}

		// Index anchored snapshots by stratframe label.
		anchored := make(map[string]core.Keyframe)
		for _, kf := range seg.Keyframes {
			if kf.Role == core.RoleSnapshot && kf.Anchor != "" {
				anchored[kf.Anchor] = kf
			}
		}

		for _, kf := range seg.Keyframes {
			if kf.Role != core.RoleStrat {
				continue
			}
			cand := snapshotInstant{
				abs:     lvl.start + kf.At,
				pathKey: lvl.path.Key(),
				frame:   kf.Label,
			}
			if snap, ok := anchored[kf.Label]; ok {
				cand.abs = lvl.start + snap.At
				cand.states = snap.States
			}
			if cand.abs > t {
				continue
			}
			// >= keeps the innermost level on ties: levels iterate
			// root to leaf.
			if !found || cand.abs >= best.abs {
				best = cand
				found = true
			}
		}
	}
	return best, found
}

// recordedState looks up an entity's recorded state at a snapshot.
// A per-instance override beats the snapshot's shared recording, so
// editing one instance of a repeated segment never leaks into another.
func (m *Manager) recordedState(snap snapshotInstant, id core.EntityID) (core.PropertyState, bool) {
	if byFrame, ok := m.overrides[snap.pathKey]; ok {
		if byEntity, ok := byFrame[snap.frame]; ok {
			if st, ok := byEntity[id]; ok {
				return st, true
			}
		}
	}
	if snap.states != nil {
		if st, ok := snap.states[id]; ok {
			return st, true
		}
	}
	return core.PropertyState{}, false
}
