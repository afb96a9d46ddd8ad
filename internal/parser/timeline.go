package parser

import (
	"encoding/json"
	"fmt"

	"github.com/stratsim/engine/pkg/core"
)

// Document types mirror the authored JSON layout. They exist only for
// decoding/encoding; validation beyond shape (cycles, ambiguity, dangling
// references) belongs to the graph and world builders.

type timelineDoc struct {
	Name       string                             `json:"name"`
	Encounter  string                             `json:"encounter"`
	Arena      string                             `json:"arena"`
	Root       string                             `json:"root"`
	Segments   []segmentDoc                       `json:"segments"`
	Variations []variationDoc                     `json:"variations"`
	Entities   []entityDoc                        `json:"entities"`
	Scripts    map[string]map[string]scriptDoc    `json:"scripts"`
	Overrides  []overrideDoc                      `json:"overrides,omitempty"`
}

type segmentDoc struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Visibility string         `json:"visibility,omitempty"` // "major" (default) or "minor"
	Init       string         `json:"init,omitempty"`
	Children   []placementDoc `json:"children,omitempty"`
	Keyframes  []keyframeDoc  `json:"keyframes,omitempty"`
	Reads      []string       `json:"reads,omitempty"`
	Writes     []string       `json:"writes,omitempty"`
}

type placementDoc struct {
	Child  string  `json:"child"`
	Offset float64 `json:"offset"` // seconds
	Repeat int     `json:"repeat,omitempty"`
}

type keyframeDoc struct {
	At     float64             `json:"at"` // seconds
	Role   string              `json:"role,omitempty"` // "animation" (default), "strat", "snapshot"
	Label  string              `json:"label,omitempty"`
	Anchor string              `json:"anchor,omitempty"`
	States map[string]stateDoc `json:"states,omitempty"`
}

type variationDoc struct {
	ID      string   `json:"id"`
	Domain  []string `json:"domain"`
	Default string   `json:"default,omitempty"`
}

type entityDoc struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Kind         string        `json:"kind"`
	Job          string        `json:"job,omitempty"`
	Speed        float64       `json:"speed,omitempty"`
	Radius       float64       `json:"radius,omitempty"`
	Footprint    *footprintDoc `json:"footprint,omitempty"`
	PlayerDriven bool          `json:"playerDriven,omitempty"`
}

type footprintDoc struct {
	Kind   string  `json:"kind"`
	Radius float64 `json:"radius,omitempty"`
	Angle  float64 `json:"angle,omitempty"`
	Width  float64 `json:"width,omitempty"`
	Length float64 `json:"length,omitempty"`
}

type scriptDoc struct {
	Spawn   float64         `json:"spawn"`   // seconds
	Despawn float64         `json:"despawn"` // seconds
	Track   []trackPointDoc `json:"track"`
}

type trackPointDoc struct {
	At float64 `json:"at"` // seconds
	stateDoc
}

type stateDoc struct {
	Pos    [2]float64 `json:"pos"`
	Facing float64    `json:"facing,omitempty"`
	Visual string     `json:"visual,omitempty"`
}

type overrideDoc struct {
	Path   string   `json:"path"`
	Frame  string   `json:"frame"`
	Entity string   `json:"entity"`
	stateDoc
}

type planDoc struct {
	Name      string            `json:"name"`
	Resolved  map[string]string `json:"resolved,omitempty"`
	Overrides []overrideDoc     `json:"overrides,omitempty"`
}

// ParseTimeline decodes an authored timeline document. It checks document
// shape (required fields, known enum values, well-formed override paths);
// graph-level validation happens when the timeline is loaded.
func (p *Parser) ParseTimeline(data []byte) (*core.Timeline, error) {
	var doc timelineDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal timeline: %w", err)
	}
	if doc.Name == "" {
		return nil, fmt.Errorf("timeline has no name: %w", core.ErrMalformedTimeline)
	}
	if doc.Root == "" {
		return nil, fmt.Errorf("timeline %q has no root segment: %w", doc.Name, core.ErrMalformedTimeline)
	}

	tl := &core.Timeline{
		Name:      doc.Name,
		Encounter: doc.Encounter,
		ArenaName: doc.Arena,
		Root:      core.SegmentID(doc.Root),
		Segments:  make(map[core.SegmentID]*core.Segment, len(doc.Segments)),
		Entities:  make(map[core.EntityID]core.Entity, len(doc.Entities)),
		Scripts:   make(map[core.SegmentID]map[core.EntityID]*core.Script, len(doc.Scripts)),
	}

	for _, sd := range doc.Segments {
		seg, err := p.parseSegment(sd)
		if err != nil {
			return nil, err
		}
		if _, dup := tl.Segments[seg.ID]; dup {
			return nil, fmt.Errorf("duplicate segment %q: %w", seg.ID, core.ErrMalformedTimeline)
		}
		tl.Segments[seg.ID] = seg
	}

	for _, vd := range doc.Variations {
		if vd.ID == "" || len(vd.Domain) == 0 {
			return nil, fmt.Errorf("variation %q needs an id and a non-empty domain: %w", vd.ID, core.ErrMalformedTimeline)
		}
		def := vd.Default
		if def == "" {
			def = vd.Domain[0]
		}
		tl.Variations = append(tl.Variations, core.Variation{
			ID:      core.VariationID(vd.ID),
			Domain:  vd.Domain,
			Default: def,
		})
	}

	for _, ed := range doc.Entities {
		ent, err := p.parseEntity(ed)
		if err != nil {
			return nil, err
		}
		if _, dup := tl.Entities[ent.ID]; dup {
			return nil, fmt.Errorf("duplicate entity %q: %w", ent.ID, core.ErrMalformedTimeline)
		}
		tl.Entities[ent.ID] = ent
	}

	for segID, byEntity := range doc.Scripts {
		scripts := make(map[core.EntityID]*core.Script, len(byEntity))
		for entID, sd := range byEntity {
			if sd.Spawn < 0 {
				return nil, fmt.Errorf("segment %q entity %q: negative spawn %v: %w", segID, entID, sd.Spawn, core.ErrMalformedTimeline)
			}
			script := &core.Script{
				Spawn:   secondsToDuration(sd.Spawn),
				Despawn: secondsToDuration(sd.Despawn),
			}
			for _, tp := range sd.Track {
				script.Track = append(script.Track, core.TrackPoint{
					At:    secondsToDuration(tp.At),
					State: tp.stateDoc.toState(),
				})
			}
			scripts[core.EntityID(entID)] = script
		}
		tl.Scripts[core.SegmentID(segID)] = scripts
	}

	for _, od := range doc.Overrides {
		o, err := parseOverride(od)
		if err != nil {
			return nil, err
		}
		tl.Overrides = append(tl.Overrides, o)
	}

	p.logger.Debug("timeline parsed",
		"name", tl.Name,
		"segments", len(tl.Segments),
		"variations", len(tl.Variations),
		"entities", len(tl.Entities))
	return tl, nil
}

func (p *Parser) parseSegment(sd segmentDoc) (*core.Segment, error) {
	if sd.ID == "" {
		return nil, fmt.Errorf("segment with empty id: %w", core.ErrMalformedTimeline)
	}
	seg := &core.Segment{
		ID:   core.SegmentID(sd.ID),
		Name: sd.Name,
		Init: sd.Init,
	}
	switch sd.Visibility {
	case "", "major":
		seg.Visibility = core.VisibilityMajor
	case "minor":
		seg.Visibility = core.VisibilityMinor
	default:
		return nil, fmt.Errorf("segment %q: unknown visibility %q: %w", sd.ID, sd.Visibility, core.ErrMalformedTimeline)
	}
	for _, pd := range sd.Children {
		if pd.Child == "" {
			return nil, fmt.Errorf("segment %q: placement with empty child: %w", sd.ID, core.ErrMalformedTimeline)
		}
		if pd.Offset < 0 {
			return nil, fmt.Errorf("segment %q: negative placement offset for %q: %w", sd.ID, pd.Child, core.ErrMalformedTimeline)
		}
		seg.Children = append(seg.Children, core.Placement{
			Child:  core.SegmentID(pd.Child),
			Offset: secondsToDuration(pd.Offset),
			Repeat: pd.Repeat,
		})
	}
	for _, kd := range sd.Keyframes {
		if kd.At < 0 {
			return nil, fmt.Errorf("segment %q: negative keyframe time %v: %w", sd.ID, kd.At, core.ErrMalformedTimeline)
		}
		kf := core.Keyframe{
			At:     secondsToDuration(kd.At),
			Label:  kd.Label,
			Anchor: kd.Anchor,
		}
		switch kd.Role {
		case "", "animation":
			kf.Role = core.RoleAnimation
		case "strat":
			kf.Role = core.RoleStrat
		case "snapshot":
			kf.Role = core.RoleSnapshot
		default:
			return nil, fmt.Errorf("segment %q: unknown keyframe role %q: %w", sd.ID, kd.Role, core.ErrMalformedTimeline)
		}
		if kf.Role == core.RoleStrat && kf.Label == "" {
			return nil, fmt.Errorf("segment %q: stratframe without a label: %w", sd.ID, core.ErrMalformedTimeline)
		}
		if len(kd.States) > 0 {
			kf.States = make(map[core.EntityID]core.PropertyState, len(kd.States))
			for id, st := range kd.States {
				kf.States[core.EntityID(id)] = st.toState()
			}
		}
		seg.Keyframes = append(seg.Keyframes, kf)
	}
	for _, r := range sd.Reads {
		seg.Reads = append(seg.Reads, core.VariationID(r))
	}
	for _, w := range sd.Writes {
		seg.Writes = append(seg.Writes, core.VariationID(w))
	}
	return seg, nil
}

func (p *Parser) parseEntity(ed entityDoc) (core.Entity, error) {
	if ed.ID == "" {
		return core.Entity{}, fmt.Errorf("entity with empty id: %w", core.ErrMalformedTimeline)
	}
	kind, ok := core.ParseEntityKind(ed.Kind)
	if !ok {
		return core.Entity{}, fmt.Errorf("entity %q: unknown kind %q: %w", ed.ID, ed.Kind, core.ErrMalformedTimeline)
	}
	ent := core.Entity{
		ID:           core.EntityID(ed.ID),
		Name:         ed.Name,
		Kind:         kind,
		Speed:        ed.Speed,
		Radius:       ed.Radius,
		PlayerDriven: ed.PlayerDriven,
	}
	if ed.Job != "" {
		job := core.Job(ed.Job)
		if !job.Valid() {
			return core.Entity{}, fmt.Errorf("entity %q: unknown job %q: %w", ed.ID, ed.Job, core.ErrMalformedTimeline)
		}
		ent.Job = job
	}
	if ed.Footprint != nil {
		fp := core.Footprint{
			Kind:   core.FootprintKind(ed.Footprint.Kind),
			Radius: ed.Footprint.Radius,
			Angle:  ed.Footprint.Angle,
			Width:  ed.Footprint.Width,
			Length: ed.Footprint.Length,
		}
		switch fp.Kind {
		case core.FootprintCircle, core.FootprintCone, core.FootprintRect:
		default:
			return core.Entity{}, fmt.Errorf("entity %q: unknown footprint kind %q: %w", ed.ID, ed.Footprint.Kind, core.ErrMalformedTimeline)
		}
		ent.Footprint = &fp
	}
	return ent, nil
}

func parseOverride(od overrideDoc) (core.StratOverride, error) {
	if _, err := core.ParseInstancePath(od.Path); err != nil {
		return core.StratOverride{}, fmt.Errorf("override: %w", err)
	}
	if od.Frame == "" || od.Entity == "" {
		return core.StratOverride{}, fmt.Errorf("override on %q needs a frame and an entity: %w", od.Path, core.ErrMalformedTimeline)
	}
	return core.StratOverride{
		Path:   od.Path,
		Frame:  od.Frame,
		Entity: core.EntityID(od.Entity),
		State:  od.stateDoc.toState(),
	}, nil
}

func (s stateDoc) toState() core.PropertyState {
	return core.PropertyState{
		Pos:    xyFromPair(s.Pos),
		Facing: s.Facing,
		Visual: s.Visual,
	}
}

func stateToDoc(st core.PropertyState) stateDoc {
	return stateDoc{
		Pos:    pairFromXY(st.Pos),
		Facing: st.Facing,
		Visual: st.Visual,
	}
}

// ParsePlan decodes a saved plan document.
func (p *Parser) ParsePlan(data []byte) (*core.Plan, error) {
	var doc planDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal plan: %w", err)
	}
	if doc.Name == "" {
		return nil, fmt.Errorf("plan has no name: %w", core.ErrMalformedTimeline)
	}
	plan := &core.Plan{Name: doc.Name}
	if len(doc.Resolved) > 0 {
		plan.Resolved = make(map[core.VariationID]string, len(doc.Resolved))
		for id, val := range doc.Resolved {
			plan.Resolved[core.VariationID(id)] = val
		}
	}
	for _, od := range doc.Overrides {
		o, err := parseOverride(od)
		if err != nil {
			return nil, err
		}
		plan.Overrides = append(plan.Overrides, o)
	}
	return plan, nil
}

// EncodePlan renders a plan back into the document format.
func (p *Parser) EncodePlan(plan *core.Plan) ([]byte, error) {
	doc := planDoc{Name: plan.Name}
	if len(plan.Resolved) > 0 {
		doc.Resolved = make(map[string]string, len(plan.Resolved))
		for id, val := range plan.Resolved {
			doc.Resolved[string(id)] = val
		}
	}
	for _, o := range plan.Overrides {
		doc.Overrides = append(doc.Overrides, overrideDoc{
			Path:     o.Path,
			Frame:    o.Frame,
			Entity:   string(o.Entity),
			stateDoc: stateToDoc(o.State),
		})
	}
	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal plan %q: %w", plan.Name, err)
	}
	return out, nil
}
