package core

import (
	"fmt"
	"strings"
	"time"
)

// KeyframeRole tags what a keyframe means on a segment's local timeline.
type KeyframeRole uint8

const (
	// RoleAnimation is a plain animation keyframe owned by an entity script.
	RoleAnimation KeyframeRole = iota
	// RoleStrat marks a first-class point where the player's plan is authored.
	RoleStrat
	// RoleSnapshot marks the resolved instant used for animating from.
	// A snapshot anchors exactly one stratframe via Anchor.
	RoleSnapshot
)

func (r KeyframeRole) String() string {
	switch r {
	case RoleStrat:
		return "strat"
	case RoleSnapshot:
		return "snapshot"
	default:
		return "animation"
	}
}

// Keyframe is a timestamp local to one segment.
// Snapshots may carry recorded per-entity states; a labeled snapshot can
// be referenced by later mechanics as a named historical position.
type Keyframe struct {
	At     time.Duration              `json:"at"`
	Role   KeyframeRole               `json:"role"`
	Label  string                     `json:"label,omitempty"`
	Anchor string                     `json:"anchor,omitempty"` // snapshots: label of the stratframe resolved here
	States map[EntityID]PropertyState `json:"states,omitempty"` // snapshots: recorded plan state
}

// Placement is one occurrence of a child segment within a parent, at a
// local start offset. Repeat disambiguates multiple placements of the
// same child in one parent.
type Placement struct {
	Child  SegmentID     `json:"child"`
	Offset time.Duration `json:"offset"`
	Repeat int           `json:"repeat"`
}

// Segment is a named, nestable unit of encounter time with its own local
// clock (time 0 = segment start). Definitions are shared, never copied:
// every placement reachable from a timeline root is a distinct instance.
type Segment struct {
	ID         SegmentID     `json:"id"`
	Name       string        `json:"name"`
	Visibility Visibility    `json:"visibility"`
	Children   []Placement   `json:"children,omitempty"`
	Keyframes  []Keyframe    `json:"keyframes,omitempty"`
	Reads      []VariationID `json:"reads,omitempty"`
	Writes     []VariationID `json:"writes,omitempty"`
	// Init names an initialization routine for segments that act as the
	// root of independent, unanchored planning.
	Init string `json:"init,omitempty"`
}

// KeyframeEnd returns the latest instant among the segment's own keyframes.
func (s *Segment) KeyframeEnd() time.Duration {
	var end time.Duration
	for _, k := range s.Keyframes {
		if k.At > end {
			end = k.At
		}
	}
	return end
}

// PathStep is one hop of an instance path: which child and which placement
// of it.
type PathStep struct {
	Segment SegmentID
	Repeat  int
}

// InstancePath addresses one segment instance: the chain of placements
// from the timeline root down to the instance itself. The root is the
// first step with repeat 0.
type InstancePath []PathStep

// Key renders the path as a stable string, usable as a map key and in
// persisted strat overrides. Format: "root/child#repeat/...".
func (p InstancePath) Key() string {
	var b strings.Builder
	for i, step := range p {
		if i > 0 {
			b.WriteByte('/')
		}
		b.WriteString(string(step.Segment))
		if step.Repeat > 0 {
			fmt.Fprintf(&b, "#%d", step.Repeat)
		}
	}
	return b.String()
}

func (p InstancePath) String() string { return p.Key() }

// Leaf returns the innermost step of the path.
func (p InstancePath) Leaf() PathStep {
	if len(p) == 0 {
		return PathStep{}
	}
	return p[len(p)-1]
}

// Prefix returns the first n steps as an independent path.
func (p InstancePath) Prefix(n int) InstancePath {
	out := make(InstancePath, n)
	copy(out, p[:n])
	return out
}

// Equal reports whether two paths address the same instance.
func (p InstancePath) Equal(other InstancePath) bool {
	if len(p) != len(other) {
		return false
	}
	for i := range p {
		if p[i] != other[i] {
			return false
		}
	}
	return true
}

// ParseInstancePath parses the Key format back into a path.
func ParseInstancePath(key string) (InstancePath, error) {
	if key == "" {
		return nil, fmt.Errorf("parse instance path: empty key")
	}
	parts := strings.Split(key, "/")
	path := make(InstancePath, 0, len(parts))
	for _, part := range parts {
		step := PathStep{}
		if idx := strings.IndexByte(part, '#'); idx >= 0 {
			if _, err := fmt.Sscanf(part[idx+1:], "%d", &step.Repeat); err != nil {
				return nil, fmt.Errorf("parse instance path %q: bad repeat in %q", key, part)
			}
			part = part[:idx]
		}
		if part == "" {
			return nil, fmt.Errorf("parse instance path %q: empty segment id", key)
		}
		step.Segment = SegmentID(part)
		path = append(path, step)
	}
	return path, nil
}
