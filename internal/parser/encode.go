package parser

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/stratsim/engine/pkg/core"
)

// EncodeTimeline renders a timeline back into the authored document
// format. Maps are emitted in sorted order so re-encoding is stable.
func (p *Parser) EncodeTimeline(tl *core.Timeline) ([]byte, error) {
	doc := timelineDoc{
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
		doc.Segments = append(doc.Segments, encodeSegment(tl.Segments[core.SegmentID(id)]))
	}

	for _, v := range tl.Variations {
		doc.Variations = append(doc.Variations, variationDoc{
			ID:      string(v.ID),
			Domain:  v.Domain,
			Default: v.Default,
		})
	}

	entIDs := make([]string, 0, len(tl.Entities))
	for id := range tl.Entities {
		entIDs = append(entIDs, string(id))
	}
	sort.Strings(entIDs)
	for _, id := range entIDs {
		doc.Entities = append(doc.Entities, encodeEntity(tl.Entities[core.EntityID(id)]))
	}

	if len(tl.Scripts) > 0 {
		doc.Scripts = make(map[string]map[string]scriptDoc, len(tl.Scripts))
		for segID, byEntity := range tl.Scripts {
			m := make(map[string]scriptDoc, len(byEntity))
			for entID, s := range byEntity {
				sd := scriptDoc{
					Spawn:   durationToSeconds(s.Spawn),
					Despawn: durationToSeconds(s.Despawn),
				}
				for _, tp := range s.Track {
					sd.Track = append(sd.Track, trackPointDoc{
						At:       durationToSeconds(tp.At),
						stateDoc: stateToDoc(tp.State),
					})
				}
				m[string(entID)] = sd
			}
			doc.Scripts[string(segID)] = m
		}
	}

	for _, o := range tl.Overrides {
		doc.Overrides = append(doc.Overrides, overrideDoc{
			Path:     o.Path,
			Frame:    o.Frame,
			Entity:   string(o.Entity),
			stateDoc: stateToDoc(o.State),
		})
	}

	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal timeline %q: %w", tl.Name, err)
	}
	return out, nil
}

func encodeSegment(seg *core.Segment) segmentDoc {
	sd := segmentDoc{
		ID:         string(seg.ID),
		Name:       seg.Name,
		Visibility: seg.Visibility.String(),
		Init:       seg.Init,
	}
	for _, pl := range seg.Children {
		sd.Children = append(sd.Children, placementDoc{
			Child:  string(pl.Child),
			Offset: durationToSeconds(pl.Offset),
			Repeat: pl.Repeat,
		})
	}
	for _, kf := range seg.Keyframes {
		kd := keyframeDoc{
			At:     durationToSeconds(kf.At),
			Role:   kf.Role.String(),
			Label:  kf.Label,
			Anchor: kf.Anchor,
		}
		if len(kf.States) > 0 {
			kd.States = make(map[string]stateDoc, len(kf.States))
			for id, st := range kf.States {
				kd.States[string(id)] = stateToDoc(st)
			}
		}
		sd.Keyframes = append(sd.Keyframes, kd)
	}
	for _, r := range seg.Reads {
		sd.Reads = append(sd.Reads, string(r))
	}
	for _, w := range seg.Writes {
		sd.Writes = append(sd.Writes, string(w))
	}
	return sd
}

func encodeEntity(ent core.Entity) entityDoc {
	ed := entityDoc{
		ID:           string(ent.ID),
		Name:         ent.Name,
		Kind:         ent.Kind.String(),
		Job:          string(ent.Job),
		Speed:        ent.Speed,
		Radius:       ent.Radius,
		PlayerDriven: ent.PlayerDriven,
	}
	if ent.Footprint != nil {
		ed.Footprint = &footprintDoc{
			Kind:   string(ent.Footprint.Kind),
			Radius: ent.Footprint.Radius,
			Angle:  ent.Footprint.Angle,
			Width:  ent.Footprint.Width,
			Length: ent.Footprint.Length,
		}
	}
	return ed
}
