package timeline

import (
	"math"
	"sort"
	"time"

	"github.com/peterstace/simplefeatures/geom"

	"github.com/stratsim/engine/pkg/core"
)

// Sampler resolves an entity's scripted state at a global timestamp. ok is
// false when the entity is not scripted there.
type Sampler func(id core.EntityID, t time.Duration) (core.PropertyState, bool)

// Replay fast-forwards plan-dependent motion from a known base state at
// `from` to the state at `to`. It is a pure function of its inputs: the
// step size is fixed, entities are visited in sorted order, and no wall
// clock or random source is consulted, so the same snapshot always yields
// bit-identical output.
//
// Each step moves an entity toward its scripted position, capped by its
// movement speed in yalms per second. Facing and visual state adopt the
// scripted values directly; only position carries momentum.
func Replay(base map[core.EntityID]core.PropertyState, speeds map[core.EntityID]float64, sample Sampler, from, to time.Duration, step time.Duration) map[core.EntityID]core.PropertyState {
	states := make(map[core.EntityID]core.PropertyState, len(base))
	ids := make([]core.EntityID, 0, len(base))
	for id, st := range base {
		states[id] = st
		ids = append(ids, id)
	}
	sortEntityIDs(ids)

	for cur := from; cur < to; {
		dt := step
		if cur+dt > to {
			dt = to - cur
		}
		cur += dt
		dtSec := dt.Seconds()

		for _, id := range ids {
			scripted, ok := sample(id, cur)
			if !ok {
				continue
			}
			st := states[id]
			st.Pos = stepToward(st.Pos, scripted.Pos, speeds[id]*dtSec)
			st.Facing = scripted.Facing
			st.Visual = scripted.Visual
			states[id] = st
		}
	}
	return states
}

// stepToward moves from toward target by at most maxDist. A non-positive
// cap means unlimited speed: the entity snaps to the scripted position.
func stepToward(from, target geom.XY, maxDist float64) geom.XY {
	if maxDist <= 0 {
		return target
	}
	d := target.Sub(from)
	dist := math.Hypot(d.X, d.Y)
	if dist <= maxDist {
		return target
	}
	scale := maxDist / dist
	return geom.XY{X: from.X + d.X*scale, Y: from.Y + d.Y*scale}
}

func sortEntityIDs(ids []core.EntityID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}

func sortOverrides(out []core.StratOverride) {
	sort.Slice(out, func(i, j int) bool {
		if out[i].Path != out[j].Path {
			return out[i].Path < out[j].Path
		}
		if out[i].Frame != out[j].Frame {
			return out[i].Frame < out[j].Frame
		}
		return out[i].Entity < out[j].Entity
	})
}
