// Package core holds the pure domain types shared by the segment graph,
// the source world, the timeline manager and every storage backend.
// It has no dependencies on any other engine package.
package core

import (
	"time"

	geom "github.com/peterstace/simplefeatures/geom"
)

// SegmentID identifies a segment definition.
type SegmentID string

// EntityID identifies an animatable entity in the source world.
type EntityID string

// VariationID identifies a named random variable.
type VariationID string

// Visibility controls whether a segment shows up in top-level navigation.
type Visibility uint8

const (
	VisibilityMajor Visibility = iota
	VisibilityMinor
)

func (v Visibility) String() string {
	if v == VisibilityMinor {
		return "minor"
	}
	return "major"
}

// EntityKind classifies source world entities.
type EntityKind uint8

const (
	KindBoss EntityKind = iota
	KindAdd
	KindPlayer
	KindMarker
	KindTelegraph
)

var kindNames = map[EntityKind]string{
	KindBoss:      "boss",
	KindAdd:       "add",
	KindPlayer:    "player",
	KindMarker:    "marker",
	KindTelegraph: "telegraph",
}

func (k EntityKind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// ParseEntityKind converts a kind name to its EntityKind value.
func ParseEntityKind(s string) (EntityKind, bool) {
	for k, name := range kindNames {
		if name == s {
			return k, true
		}
	}
	return 0, false
}

// FootprintKind names the shape of a telegraph footprint.
type FootprintKind string

const (
	FootprintCircle FootprintKind = "circle"
	FootprintCone   FootprintKind = "cone"
	FootprintRect   FootprintKind = "rect"
)

// Footprint describes an AoE telegraph's ground shape, in yalms.
// The shape is placed at the entity's position and rotated by its facing.
type Footprint struct {
	Kind   FootprintKind `json:"kind"`
	Radius float64       `json:"radius,omitempty"` // circle, cone
	Angle  float64       `json:"angle,omitempty"`  // cone half-angle, radians
	Width  float64       `json:"width,omitempty"`  // rect
	Length float64       `json:"length,omitempty"` // rect, extends along facing
}

// Entity is an animatable/placeable object: boss, add, player token,
// arena marker or AoE telegraph.
type Entity struct {
	ID           EntityID   `json:"id"`
	Name         string     `json:"name"`
	Kind         EntityKind `json:"kind"`
	Job          Job        `json:"job,omitempty"`    // player tokens only
	Speed        float64    `json:"speed,omitempty"`  // yalms/second, replay movement cap
	Radius       float64    `json:"radius,omitempty"` // hitbox radius
	Footprint    *Footprint `json:"footprint,omitempty"`
	PlayerDriven bool       `json:"playerDriven"`
}

// PropertyState is the animatable state of one entity at one instant.
type PropertyState struct {
	Pos    geom.XY `json:"pos"`
	Facing float64 `json:"facing"` // radians
	Visual string  `json:"visual,omitempty"`
}

// TrackPoint is one authored point on an entity's property timeline.
type TrackPoint struct {
	At    time.Duration `json:"at"`
	State PropertyState `json:"state"`
}

// Script is an entity's animation script within one segment: a spawn
// window plus a property track over the segment's local time.
// The track is only defined within [Spawn, Despawn).
type Script struct {
	Spawn   time.Duration `json:"spawn"`
	Despawn time.Duration `json:"despawn"`
	Track   []TrackPoint  `json:"track"`
}

// Variation is the declaration of a named random variable: a finite
// domain plus a default value used when planning starts unpinned.
type Variation struct {
	ID      VariationID `json:"id"`
	Domain  []string    `json:"domain"`
	Default string      `json:"default"`
}

// StratOverride attaches an independently-authored plan state to a single
// segment instance. Path is an instance path key, Frame a stratframe label.
type StratOverride struct {
	Path   string        `json:"path"`
	Frame  string        `json:"frame"`
	Entity EntityID      `json:"entity"`
	State  PropertyState `json:"state"`
}

// Plan is a saved planning session: resolved/pinned variation values and
// the per-instance strat overrides authored on top of the timeline.
type Plan struct {
	Name      string                  `json:"name"`
	Resolved  map[VariationID]string  `json:"resolved"`
	Overrides []StratOverride         `json:"overrides"`
}

// Timeline is the full authored definition of one encounter: a root
// segment, the reachable segment definitions, variation declarations,
// the entity catalog and the per-segment animation scripts.
type Timeline struct {
	Name       string                           `json:"name"`
	Encounter  string                           `json:"encounter"`
	ArenaName  string                           `json:"arena"`
	Root       SegmentID                        `json:"root"`
	Segments   map[SegmentID]*Segment           `json:"segments"`
	Variations []Variation                      `json:"variations"`
	Entities   map[EntityID]Entity              `json:"entities"`
	Scripts    map[SegmentID]map[EntityID]*Script `json:"scripts"`
	Overrides  []StratOverride                  `json:"overrides,omitempty"`
}
