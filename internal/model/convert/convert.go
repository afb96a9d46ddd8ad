// Package convert maps between the domain types and the database models.
package convert

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/peterstace/simplefeatures/geom"

	"github.com/stratsim/engine/internal/model"
	"github.com/stratsim/engine/pkg/core"
)

// TimelineToModel converts a domain timeline into its database form.
func TimelineToModel(tl *core.Timeline) (*model.Timeline, error) {
	out := &model.Timeline{
		Name:      tl.Name,
		Encounter: tl.Encounter,
		Arena:     tl.ArenaName,
		Root:      string(tl.Root),
	}

	segIDs := make([]string, 0, len(tl.Segments))
	for id := range tl.Segments {
		segIDs = append(segIDs, string(id))
	}
	sort.Strings(segIDs)
	for _, id := range segIDs {
		seg, err := segmentToModel(tl.Segments[core.SegmentID(id)])
		if err != nil {
			return nil, err
		}
		out.Segments = append(out.Segments, seg)
	}

	for _, v := range tl.Variations {
		domain, err := json.Marshal(v.Domain)
		if err != nil {
			return nil, fmt.Errorf("marshal domain of %q: %w", v.ID, err)
		}
		out.Variations = append(out.Variations, model.Variation{
			VarID:   string(v.ID),
			Domain:  domain,
			Default: v.Default,
		})
	}

	entIDs := make([]string, 0, len(tl.Entities))
	for id := range tl.Entities {
		entIDs = append(entIDs, string(id))
	}
	sort.Strings(entIDs)
	for _, id := range entIDs {
		ent, err := entityToModel(tl.Entities[core.EntityID(id)])
		if err != nil {
			return nil, err
		}
		out.Entities = append(out.Entities, ent)
	}

	for segID, byEntity := range tl.Scripts {
		for entID, s := range byEntity {
			track, err := json.Marshal(s.Track)
			if err != nil {
				return nil, fmt.Errorf("marshal track of %q in %q: %w", entID, segID, err)
			}
			out.Scripts = append(out.Scripts, model.Script{
				SegID:     string(segID),
				EntID:     string(entID),
				SpawnNs:   int64(s.Spawn),
				DespawnNs: int64(s.Despawn),
				Track:     track,
			})
		}
	}
	sort.Slice(out.Scripts, func(i, j int) bool {
		if out.Scripts[i].SegID != out.Scripts[j].SegID {
			return out.Scripts[i].SegID < out.Scripts[j].SegID
		}
		return out.Scripts[i].EntID < out.Scripts[j].EntID
	})

	for _, o := range tl.Overrides {
		out.Overrides = append(out.Overrides, model.Override{
			Path:   o.Path,
			Frame:  o.Frame,
			EntID:  string(o.Entity),
			PosX:   o.State.Pos.X,
			PosY:   o.State.Pos.Y,
			Facing: o.State.Facing,
			Visual: o.State.Visual,
		})
	}
	return out, nil
}

func segmentToModel(seg *core.Segment) (model.Segment, error) {
	reads, err := json.Marshal(variationIDs(seg.Reads))
	if err != nil {
		return model.Segment{}, fmt.Errorf("marshal reads of %q: %w", seg.ID, err)
	}
	writes, err := json.Marshal(variationIDs(seg.Writes))
	if err != nil {
		return model.Segment{}, fmt.Errorf("marshal writes of %q: %w", seg.ID, err)
	}
	out := model.Segment{
		SegID:      string(seg.ID),
		Name:       seg.Name,
		Visibility: seg.Visibility.String(),
		Init:       seg.Init,
		Reads:      reads,
		Writes:     writes,
	}
	for _, pl := range seg.Children {
		out.Children = append(out.Children, model.Placement{
			Child:    string(pl.Child),
			OffsetNs: int64(pl.Offset),
			Repeat:   pl.Repeat,
		})
	}
	for _, kf := range seg.Keyframes {
		states, err := json.Marshal(kf.States)
		if err != nil {
			return model.Segment{}, fmt.Errorf("marshal snapshot states in %q: %w", seg.ID, err)
		}
		out.Keyframes = append(out.Keyframes, model.Keyframe{
			AtNs:   int64(kf.At),
			Role:   kf.Role.String(),
			Label:  kf.Label,
			Anchor: kf.Anchor,
			States: states,
		})
	}
	return out, nil
}

func entityToModel(ent core.Entity) (model.Entity, error) {
	out := model.Entity{
		EntID:        string(ent.ID),
		Name:         ent.Name,
		Kind:         ent.Kind.String(),
		Job:          string(ent.Job),
		Speed:        ent.Speed,
		Radius:       ent.Radius,
		PlayerDriven: ent.PlayerDriven,
	}
	if ent.Footprint != nil {
		fp, err := json.Marshal(ent.Footprint)
		if err != nil {
			return model.Entity{}, fmt.Errorf("marshal footprint of %q: %w", ent.ID, err)
		}
		out.Footprint = fp
	}
	return out, nil
}

// TimelineFromModel converts a database timeline back to the domain form.
func TimelineFromModel(m *model.Timeline) (*core.Timeline, error) {
	tl := &core.Timeline{
		Name:      m.Name,
		Encounter: m.Encounter,
		ArenaName: m.Arena,
		Root:      core.SegmentID(m.Root),
		Segments:  make(map[core.SegmentID]*core.Segment, len(m.Segments)),
		Entities:  make(map[core.EntityID]core.Entity, len(m.Entities)),
		Scripts:   make(map[core.SegmentID]map[core.EntityID]*core.Script),
	}

	for i := range m.Segments {
		seg, err := segmentFromModel(&m.Segments[i])
		if err != nil {
			return nil, err
		}
		tl.Segments[seg.ID] = seg
	}

	for _, v := range m.Variations {
		var domain []string
		if err := json.Unmarshal(v.Domain, &domain); err != nil {
			return nil, fmt.Errorf("unmarshal domain of %q: %w", v.VarID, err)
		}
		tl.Variations = append(tl.Variations, core.Variation{
			ID:      core.VariationID(v.VarID),
			Domain:  domain,
			Default: v.Default,
		})
	}

	for _, e := range m.Entities {
		ent, err := entityFromModel(e)
		if err != nil {
			return nil, err
		}
		tl.Entities[ent.ID] = ent
	}

	for _, s := range m.Scripts {
		script := &core.Script{
			Spawn:   time.Duration(s.SpawnNs),
			Despawn: time.Duration(s.DespawnNs),
		}
		if len(s.Track) > 0 {
			if err := json.Unmarshal(s.Track, &script.Track); err != nil {
				return nil, fmt.Errorf("unmarshal track of %q in %q: %w", s.EntID, s.SegID, err)
			}
		}
		segID := core.SegmentID(s.SegID)
		if tl.Scripts[segID] == nil {
			tl.Scripts[segID] = make(map[core.EntityID]*core.Script)
		}
		tl.Scripts[segID][core.EntityID(s.EntID)] = script
	}

	for _, o := range m.Overrides {
		tl.Overrides = append(tl.Overrides, overrideFromModel(o))
	}
	return tl, nil
}

func segmentFromModel(m *model.Segment) (*core.Segment, error) {
	seg := &core.Segment{
		ID:   core.SegmentID(m.SegID),
		Name: m.Name,
		Init: m.Init,
	}
	if m.Visibility == "minor" {
		seg.Visibility = core.VisibilityMinor
	}
	var reads, writes []string
	if len(m.Reads) > 0 {
		if err := json.Unmarshal(m.Reads, &reads); err != nil {
			return nil, fmt.Errorf("unmarshal reads of %q: %w", m.SegID, err)
		}
	}
	if len(m.Writes) > 0 {
		if err := json.Unmarshal(m.Writes, &writes); err != nil {
			return nil, fmt.Errorf("unmarshal writes of %q: %w", m.SegID, err)
		}
	}
	for _, r := range reads {
		seg.Reads = append(seg.Reads, core.VariationID(r))
	}
	for _, w := range writes {
		seg.Writes = append(seg.Writes, core.VariationID(w))
	}
	for _, pl := range m.Children {
		seg.Children = append(seg.Children, core.Placement{
			Child:  core.SegmentID(pl.Child),
			Offset: time.Duration(pl.OffsetNs),
			Repeat: pl.Repeat,
		})
	}
	for _, kf := range m.Keyframes {
		out := core.Keyframe{
			At:     time.Duration(kf.AtNs),
			Label:  kf.Label,
			Anchor: kf.Anchor,
		}
		switch kf.Role {
		case "strat":
			out.Role = core.RoleStrat
		case "snapshot":
			out.Role = core.RoleSnapshot
		default:
			out.Role = core.RoleAnimation
		}
		if len(kf.States) > 0 && string(kf.States) != "null" {
			if err := json.Unmarshal(kf.States, &out.States); err != nil {
				return nil, fmt.Errorf("unmarshal snapshot states in %q: %w", m.SegID, err)
			}
		}
		seg.Keyframes = append(seg.Keyframes, out)
	}
	return seg, nil
}

func entityFromModel(m model.Entity) (core.Entity, error) {
	kind, ok := core.ParseEntityKind(m.Kind)
	if !ok {
		return core.Entity{}, fmt.Errorf("entity %q: unknown kind %q", m.EntID, m.Kind)
	}
	ent := core.Entity{
		ID:           core.EntityID(m.EntID),
		Name:         m.Name,
		Kind:         kind,
		Job:          core.Job(m.Job),
		Speed:        m.Speed,
		Radius:       m.Radius,
		PlayerDriven: m.PlayerDriven,
	}
	if len(m.Footprint) > 0 && string(m.Footprint) != "null" {
		var fp core.Footprint
		if err := json.Unmarshal(m.Footprint, &fp); err != nil {
			return core.Entity{}, fmt.Errorf("unmarshal footprint of %q: %w", m.EntID, err)
		}
		ent.Footprint = &fp
	}
	return ent, nil
}

func overrideFromModel(o model.Override) core.StratOverride {
	return core.StratOverride{
		Path:   o.Path,
		Frame:  o.Frame,
		Entity: core.EntityID(o.EntID),
		State: core.PropertyState{
			Pos:    xy(o.PosX, o.PosY),
			Facing: o.Facing,
			Visual: o.Visual,
		},
	}
}

// PlanToModel converts a plan for persistence against a stored timeline.
func PlanToModel(plan *core.Plan, timelineID uint) (*model.Plan, error) {
	resolved, err := json.Marshal(plan.Resolved)
	if err != nil {
		return nil, fmt.Errorf("marshal resolved values of %q: %w", plan.Name, err)
	}
	overrides, err := json.Marshal(plan.Overrides)
	if err != nil {
		return nil, fmt.Errorf("marshal overrides of %q: %w", plan.Name, err)
	}
	return &model.Plan{
		TimelineID: timelineID,
		Name:       plan.Name,
		Resolved:   resolved,
		Overrides:  overrides,
	}, nil
}

// PlanFromModel converts a stored plan back to the domain form.
func PlanFromModel(m *model.Plan) (*core.Plan, error) {
	plan := &core.Plan{Name: m.Name}
	if len(m.Resolved) > 0 && string(m.Resolved) != "null" {
		if err := json.Unmarshal(m.Resolved, &plan.Resolved); err != nil {
			return nil, fmt.Errorf("unmarshal resolved values of %q: %w", m.Name, err)
		}
	}
	if len(m.Overrides) > 0 && string(m.Overrides) != "null" {
		if err := json.Unmarshal(m.Overrides, &plan.Overrides); err != nil {
			return nil, fmt.Errorf("unmarshal overrides of %q: %w", m.Name, err)
		}
	}
	return plan, nil
}

func xy(x, y float64) geom.XY {
	return geom.XY{X: x, Y: y}
}

func variationIDs(ids []core.VariationID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, string(id))
	}
	return out
}
