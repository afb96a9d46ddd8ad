// Package model holds the database table structures timelines and plans
// persist into. Conversions to and from the domain types live in
// model/convert.
package model

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []interface{}{
	&Timeline{},
	&Segment{},
	&Placement{},
	&Keyframe{},
	&Variation{},
	&Entity{},
	&Script{},
	&Override{},
	&Plan{},
}

// Timeline is one persisted encounter timeline.
type Timeline struct {
	gorm.Model
	Name      string `json:"name" gorm:"size:127;uniqueIndex"`
	Encounter string `json:"encounter" gorm:"size:127"`
	Arena     string `json:"arena" gorm:"size:63"`
	Root      string `json:"root" gorm:"size:127"`

	Segments   []Segment   `json:"segments" gorm:"foreignKey:TimelineID;constraint:OnDelete:CASCADE"`
	Variations []Variation `json:"variations" gorm:"foreignKey:TimelineID;constraint:OnDelete:CASCADE"`
	Entities   []Entity    `json:"entities" gorm:"foreignKey:TimelineID;constraint:OnDelete:CASCADE"`
	Scripts    []Script    `json:"scripts" gorm:"foreignKey:TimelineID;constraint:OnDelete:CASCADE"`
	Overrides  []Override  `json:"overrides" gorm:"foreignKey:TimelineID;constraint:OnDelete:CASCADE"`
}

// Segment is one segment definition within a timeline.
type Segment struct {
	gorm.Model
	TimelineID uint   `json:"timelineId" gorm:"index"`
	SegID      string `json:"segId" gorm:"size:127;index"`
	Name       string `json:"name" gorm:"size:127"`
	Visibility string `json:"visibility" gorm:"size:15"`
	Init       string `json:"init" gorm:"size:127"`
	// Reads/Writes are small string lists, stored as JSON rather than
	// join tables.
	Reads  datatypes.JSON `json:"reads"`
	Writes datatypes.JSON `json:"writes"`

	Children  []Placement `json:"children" gorm:"foreignKey:SegmentID;constraint:OnDelete:CASCADE"`
	Keyframes []Keyframe  `json:"keyframes" gorm:"foreignKey:SegmentID;constraint:OnDelete:CASCADE"`
}

// Placement is one child occurrence within a parent segment.
type Placement struct {
	gorm.Model
	SegmentID uint   `json:"segmentId" gorm:"index"`
	Child     string `json:"child" gorm:"size:127"`
	OffsetNs  int64  `json:"offsetNs"`
	Repeat    int    `json:"repeat"`
}

// Keyframe is one keyframe on a segment's local timeline. Snapshot state
// recordings are stored as JSON.
type Keyframe struct {
	gorm.Model
	SegmentID uint           `json:"segmentId" gorm:"index"`
	AtNs      int64          `json:"atNs"`
	Role      string         `json:"role" gorm:"size:15"`
	Label     string         `json:"label" gorm:"size:127"`
	Anchor    string         `json:"anchor" gorm:"size:127"`
	States    datatypes.JSON `json:"states"`
}

// Variation is one named random variable declaration.
type Variation struct {
	gorm.Model
	TimelineID uint           `json:"timelineId" gorm:"index"`
	VarID      string         `json:"varId" gorm:"size:127"`
	Domain     datatypes.JSON `json:"domain"`
	Default    string         `json:"default" gorm:"size:127"`
}

// Entity is one source world entity.
type Entity struct {
	gorm.Model
	TimelineID   uint           `json:"timelineId" gorm:"index"`
	EntID        string         `json:"entId" gorm:"size:127;index"`
	Name         string         `json:"name" gorm:"size:127"`
	Kind         string         `json:"kind" gorm:"size:15"`
	Job          string         `json:"job" gorm:"size:7"`
	Speed        float64        `json:"speed"`
	Radius       float64        `json:"radius"`
	Footprint    datatypes.JSON `json:"footprint"`
	PlayerDriven bool           `json:"playerDriven"`
}

// Script is one entity's animation script within one segment. The track
// is a JSON array of timestamped states; it is read back whole, never
// queried point by point.
type Script struct {
	gorm.Model
	TimelineID uint           `json:"timelineId" gorm:"index"`
	SegID      string         `json:"segId" gorm:"size:127;index"`
	EntID      string         `json:"entId" gorm:"size:127;index"`
	SpawnNs    int64          `json:"spawnNs"`
	DespawnNs  int64          `json:"despawnNs"`
	Track      datatypes.JSON `json:"track"`
}

// Override is one per-instance strat override authored on a timeline.
type Override struct {
	gorm.Model
	TimelineID uint    `json:"timelineId" gorm:"index"`
	Path       string  `json:"path" gorm:"size:255;index"`
	Frame      string  `json:"frame" gorm:"size:127"`
	EntID      string  `json:"entId" gorm:"size:127"`
	PosX       float64 `json:"posX"`
	PosY       float64 `json:"posY"`
	Facing     float64 `json:"facing"`
	Visual     string  `json:"visual" gorm:"size:127"`
}

// Plan is one saved planning session against a timeline.
type Plan struct {
	gorm.Model
	TimelineID uint           `json:"timelineId" gorm:"index"`
	Name       string         `json:"name" gorm:"size:127;index"`
	Resolved   datatypes.JSON `json:"resolved"`
	Overrides  datatypes.JSON `json:"overrides"`
}
