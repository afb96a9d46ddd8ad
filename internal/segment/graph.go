// Package segment implements the segment graph: the id-indexed table of
// segment definitions and the addressing math that turns a global
// timestamp into a path of active segment instances.
package segment

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/stratsim/engine/pkg/core"
)

// Graph owns the segment definitions reachable from one timeline root.
// It is read-only during playback; authoring mutations go through
// Invalidate before playback resumes.
type Graph struct {
	logger   *slog.Logger
	root     core.SegmentID
	segments map[core.SegmentID]*core.Segment

	// duration cache, filled lazily
	durations map[core.SegmentID]time.Duration
}

// Build validates a timeline's segment structure and constructs its graph.
// Validation failures abort the load entirely: unknown child references,
// cyclic placements, exact-tie overlapping placements, dangling variation
// references, and snapshots anchored to missing stratframes.
func Build(tl *core.Timeline, logger *slog.Logger) (*Graph, error) {
	if logger == nil {
		logger = slog.Default()
	}
	g := &Graph{
		logger:    logger,
		root:      tl.Root,
		segments:  tl.Segments,
		durations: make(map[core.SegmentID]time.Duration),
	}

	if _, ok := g.segments[g.root]; !ok {
		return nil, fmt.Errorf("root %q: %w", g.root, core.ErrUnknownSegment)
	}

	declared := make(map[core.VariationID]bool, len(tl.Variations))
	for _, v := range tl.Variations {
		declared[v.ID] = true
	}

	for id, seg := range g.segments {
		for _, pl := range seg.Children {
			if _, ok := g.segments[pl.Child]; !ok {
				return nil, fmt.Errorf("segment %q places %q: %w", id, pl.Child, core.ErrUnknownSegment)
			}
		}
		for _, vid := range append(append([]core.VariationID{}, seg.Reads...), seg.Writes...) {
			if !declared[vid] {
				return nil, fmt.Errorf("segment %q references %q: %w", id, vid, core.ErrUnknownVariation)
			}
		}
		if err := validateKeyframes(seg); err != nil {
			return nil, err
		}
	}

	if err := g.checkCycles(g.root, make(map[core.SegmentID]int)); err != nil {
		return nil, err
	}

	for id, seg := range g.segments {
		if err := g.checkAmbiguity(id, seg); err != nil {
			return nil, err
		}
	}

	logger.Debug("segment graph built",
		"root", g.root,
		"segments", len(g.segments),
		"duration", g.Duration(g.root))
	return g, nil
}

// validateKeyframes enforces the stratframe/snapshot invariants: every
// snapshot anchors an existing stratframe label, and a stratframe has at
// most one snapshot.
func validateKeyframes(seg *core.Segment) error {
	strats := make(map[string]bool)
	for _, k := range seg.Keyframes {
		if k.At < 0 {
			return fmt.Errorf("segment %q: keyframe at %s before segment start: %w",
				seg.ID, k.At, core.ErrMalformedTimeline)
		}
		if k.Role == core.RoleStrat && k.Label != "" {
			strats[k.Label] = true
		}
	}
	anchored := make(map[string]bool)
	for _, k := range seg.Keyframes {
		if k.Role != core.RoleSnapshot {
			continue
		}
		if k.Anchor == "" || !strats[k.Anchor] {
			return fmt.Errorf("segment %q: snapshot %q anchors missing stratframe %q: %w",
				seg.ID, k.Label, k.Anchor, core.ErrMalformedTimeline)
		}
		if anchored[k.Anchor] {
			return fmt.Errorf("segment %q: stratframe %q has more than one snapshot: %w",
				seg.ID, k.Anchor, core.ErrMalformedTimeline)
		}
		anchored[k.Anchor] = true
	}
	return nil
}

const (
	visiting = 1
	done     = 2
)

func (g *Graph) checkCycles(id core.SegmentID, state map[core.SegmentID]int) error {
	switch state[id] {
	case visiting:
		return fmt.Errorf("segment %q reachable from itself: %w", id, core.ErrCyclicPlacement)
	case done:
		return nil
	}
	state[id] = visiting
	for _, pl := range g.segments[id].Children {
		if err := g.checkCycles(pl.Child, state); err != nil {
			return err
		}
	}
	state[id] = done
	return nil
}

// checkAmbiguity rejects placements that tie on both offset and duration.
// Overlaps with a distinct winner are an authoring smell but resolvable.
func (g *Graph) checkAmbiguity(id core.SegmentID, seg *core.Segment) error {
	for i, a := range seg.Children {
		for _, b := range seg.Children[i+1:] {
			if a.Offset != b.Offset {
				continue
			}
			if g.Duration(a.Child) != g.Duration(b.Child) {
				continue
			}
			return fmt.Errorf("segment %q: placements %q#%d and %q#%d at offset %s: %w",
				id, a.Child, a.Repeat, b.Child, b.Repeat, a.Offset, core.ErrAmbiguousPlacement)
		}
	}
	return nil
}

// Root returns the timeline root segment id.
func (g *Graph) Root() core.SegmentID { return g.root }

// Segment looks up a definition by id.
func (g *Graph) Segment(id core.SegmentID) (*core.Segment, bool) {
	s, ok := g.segments[id]
	return s, ok
}

// Duration returns a segment's duration: the max end time over its own
// keyframes and each child placement's offset + child duration. Computed
// lazily and cached.
func (g *Graph) Duration(id core.SegmentID) time.Duration {
	if d, ok := g.durations[id]; ok {
		return d
	}
	seg, ok := g.segments[id]
	if !ok {
		return 0
	}
	d := seg.KeyframeEnd()
	for _, pl := range seg.Children {
		if end := pl.Offset + g.Duration(pl.Child); end > d {
			d = end
		}
	}
	g.durations[id] = d
	return d
}

// Invalidate drops cached durations for a segment and everything above it.
// Authoring-time only; the graph is immutable during playback.
func (g *Graph) Invalidate(id core.SegmentID) {
	delete(g.durations, id)
	for parent, seg := range g.segments {
		for _, pl := range seg.Children {
			if pl.Child == id {
				if _, cached := g.durations[parent]; cached {
					g.Invalidate(parent)
				}
				break
			}
		}
	}
}

// Resolve maps a global timestamp to the path of active segment instances
// (root → innermost) and the local time within the innermost instance.
// Returns ErrOutOfRange when t is outside [0, Duration(root)].
func (g *Graph) Resolve(t time.Duration) (core.InstancePath, time.Duration, error) {
	rootDur := g.Duration(g.root)
	if t < 0 || t > rootDur {
		return nil, 0, fmt.Errorf("t=%s outside [0, %s]: %w", t, rootDur, core.ErrOutOfRange)
	}

	path := core.InstancePath{{Segment: g.root, Repeat: 0}}
	id := g.root
	local := t
	for {
		pl, ok := g.activePlacement(id, local)
		if !ok {
			return path, local, nil
		}
		path = append(path, core.PathStep{Segment: pl.Child, Repeat: pl.Repeat})
		local -= pl.Offset
		id = pl.Child
	}
}

// activePlacement picks the placement of seg covering local time lt.
// Earliest offset wins, then longest duration; load validation guarantees
// no exact ties survive.
func (g *Graph) activePlacement(id core.SegmentID, lt time.Duration) (core.Placement, bool) {
	seg := g.segments[id]
	var best core.Placement
	found := false
	for _, pl := range seg.Children {
		end := pl.Offset + g.Duration(pl.Child)
		if lt < pl.Offset || lt >= end {
			continue
		}
		if !found {
			best, found = pl, true
			continue
		}
		if pl.Offset < best.Offset {
			best = pl
		} else if pl.Offset == best.Offset && g.Duration(pl.Child) > g.Duration(best.Child) {
			best = pl
		}
	}
	return best, found
}

// instanceRef pairs an instance path with its absolute start time.
type instanceRef struct {
	path  core.InstancePath
	start time.Duration
}

// InstancesOf produces every placement of a segment transitively reachable
// from the root, in timeline order.
func (g *Graph) InstancesOf(id core.SegmentID) []core.InstancePath {
	var refs []instanceRef
	g.walk(g.root, core.InstancePath{{Segment: g.root}}, 0, func(sid core.SegmentID, path core.InstancePath, start time.Duration) {
		if sid == id {
			refs = append(refs, instanceRef{path: path, start: start})
		}
	})
	sort.SliceStable(refs, func(i, j int) bool { return refs[i].start < refs[j].start })
	out := make([]core.InstancePath, len(refs))
	for i, r := range refs {
		out[i] = r.path
	}
	return out
}

func (g *Graph) walk(id core.SegmentID, path core.InstancePath, start time.Duration, visit func(core.SegmentID, core.InstancePath, time.Duration)) {
	visit(id, path, start)
	for _, pl := range g.segments[id].Children {
		child := make(core.InstancePath, len(path), len(path)+1)
		copy(child, path)
		child = append(child, core.PathStep{Segment: pl.Child, Repeat: pl.Repeat})
		g.walk(pl.Child, child, start+pl.Offset, visit)
	}
}

// AbsoluteWindow returns the global [start, end) window of an instance.
func (g *Graph) AbsoluteWindow(path core.InstancePath) (time.Duration, time.Duration, error) {
	if len(path) == 0 || path[0].Segment != g.root {
		return 0, 0, fmt.Errorf("path %q does not start at root: %w", path.Key(), core.ErrUnknownSegment)
	}
	var start time.Duration
	id := g.root
	for _, step := range path[1:] {
		seg := g.segments[id]
		found := false
		for _, pl := range seg.Children {
			if pl.Child == step.Segment && pl.Repeat == step.Repeat {
				start += pl.Offset
				id = pl.Child
				found = true
				break
			}
		}
		if !found {
			return 0, 0, fmt.Errorf("path %q: no placement %q#%d under %q: %w",
				path.Key(), step.Segment, step.Repeat, id, core.ErrUnknownSegment)
		}
	}
	return start, start + g.Duration(id), nil
}
