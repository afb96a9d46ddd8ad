// Package world implements the source world: the authoritative catalog of
// entities and their per-segment animation scripts. Live scene
// counterparts are created and destroyed by the timeline manager, never
// by this data.
package world

import (
	"fmt"
	"sort"
	"time"

	geom "github.com/peterstace/simplefeatures/geom"

	"github.com/stratsim/engine/pkg/core"
)

// World answers point and interval queries over (entity, segment) scripts.
// Read-only during playback.
type World struct {
	entities map[core.EntityID]core.Entity
	scripts  map[core.SegmentID]map[core.EntityID]*core.Script
}

// Build validates and indexes a timeline's entity catalog and scripts.
func Build(tl *core.Timeline) (*World, error) {
	w := &World{
		entities: tl.Entities,
		scripts:  tl.Scripts,
	}
	if w.entities == nil {
		w.entities = make(map[core.EntityID]core.Entity)
	}
	if w.scripts == nil {
		w.scripts = make(map[core.SegmentID]map[core.EntityID]*core.Script)
	}

	for segID, bySeg := range w.scripts {
		if _, ok := tl.Segments[segID]; !ok {
			return nil, fmt.Errorf("scripts for %q: %w", segID, core.ErrUnknownSegment)
		}
		for entID, script := range bySeg {
			if _, ok := w.entities[entID]; !ok {
				return nil, fmt.Errorf("segment %q scripts %q: %w", segID, entID, core.ErrUnknownEntity)
			}
			if script.Spawn < 0 {
				return nil, fmt.Errorf("segment %q entity %q: negative spawn %s: %w",
					segID, entID, script.Spawn, core.ErrMalformedTimeline)
			}
			if script.Despawn <= script.Spawn {
				return nil, fmt.Errorf("segment %q entity %q: despawn %s <= spawn %s: %w",
					segID, entID, script.Despawn, script.Spawn, core.ErrMalformedTimeline)
			}
			sort.SliceStable(script.Track, func(i, j int) bool {
				return script.Track[i].At < script.Track[j].At
			})
			for _, tp := range script.Track {
				if tp.At < script.Spawn || tp.At >= script.Despawn {
					return nil, fmt.Errorf("segment %q entity %q: track point at %s outside [%s, %s): %w",
						segID, entID, tp.At, script.Spawn, script.Despawn, core.ErrMalformedTimeline)
				}
			}
		}
	}
	return w, nil
}

// Entity looks up a catalog entry.
func (w *World) Entity(id core.EntityID) (core.Entity, bool) {
	e, ok := w.entities[id]
	return e, ok
}

// Entities returns the catalog in sorted id order.
func (w *World) Entities() []core.Entity {
	out := make([]core.Entity, 0, len(w.entities))
	for _, e := range w.entities {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Script returns the animation script for (entity, segment), if any.
func (w *World) Script(entity core.EntityID, segment core.SegmentID) (*core.Script, bool) {
	bySeg, ok := w.scripts[segment]
	if !ok {
		return nil, false
	}
	s, ok := bySeg[entity]
	return s, ok
}

// SpawnWindow returns the [spawn, despawn) window of an entity within a
// segment's local time.
func (w *World) SpawnWindow(entity core.EntityID, segment core.SegmentID) (time.Duration, time.Duration, error) {
	s, ok := w.Script(entity, segment)
	if !ok {
		return 0, 0, fmt.Errorf("no script for %q in %q: %w", entity, segment, core.ErrUnknownEntity)
	}
	return s.Spawn, s.Despawn, nil
}

// Sample evaluates an entity's property timeline at a segment-local time.
// Querying outside [spawn, despawn) is rejected with ErrOutsideLifetime,
// never extrapolated.
func (w *World) Sample(entity core.EntityID, segment core.SegmentID, lt time.Duration) (core.PropertyState, error) {
	s, ok := w.Script(entity, segment)
	if !ok {
		return core.PropertyState{}, fmt.Errorf("no script for %q in %q: %w", entity, segment, core.ErrUnknownEntity)
	}
	if lt < s.Spawn || lt >= s.Despawn {
		return core.PropertyState{}, fmt.Errorf("%q in %q at %s, window [%s, %s): %w",
			entity, segment, lt, s.Spawn, s.Despawn, core.ErrOutsideLifetime)
	}
	return sampleTrack(s.Track, lt), nil
}

// sampleTrack interpolates between surrounding track points: linear for
// position and facing, hold-previous for visual state.
func sampleTrack(track []core.TrackPoint, lt time.Duration) core.PropertyState {
	if len(track) == 0 {
		return core.PropertyState{}
	}
	if lt <= track[0].At {
		return track[0].State
	}
	last := track[len(track)-1]
	if lt >= last.At {
		return last.State
	}
	// first point strictly after lt
	hi := sort.Search(len(track), func(i int) bool { return track[i].At > lt })
	a, b := track[hi-1], track[hi]
	span := b.At - a.At
	if span <= 0 {
		return b.State
	}
	f := float64(lt-a.At) / float64(span)
	return core.PropertyState{
		Pos: geom.XY{
			X: a.State.Pos.X + (b.State.Pos.X-a.State.Pos.X)*f,
			Y: a.State.Pos.Y + (b.State.Pos.Y-a.State.Pos.Y)*f,
		},
		Facing: a.State.Facing + (b.State.Facing-a.State.Facing)*f,
		Visual: a.State.Visual,
	}
}

// EntitiesActiveAt returns entities whose spawn window contains lt, in
// sorted order.
func (w *World) EntitiesActiveAt(segment core.SegmentID, lt time.Duration) []core.EntityID {
	return w.EntitiesActiveDuring(segment, lt, lt+1)
}

// EntitiesActiveDuring returns entities whose [spawn, despawn) window
// intersects [t0, t1), in sorted order. Used by the timeline manager to
// compute spawn/despawn deltas.
func (w *World) EntitiesActiveDuring(segment core.SegmentID, t0, t1 time.Duration) []core.EntityID {
	bySeg, ok := w.scripts[segment]
	if !ok {
		return nil
	}
	var out []core.EntityID
	for id, s := range bySeg {
		if s.Spawn < t1 && t0 < s.Despawn {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
