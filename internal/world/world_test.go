package world

import (
	"testing"
	"time"

	"github.com/peterstace/simplefeatures/geom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratsim/engine/pkg/core"
)

func sec(n float64) time.Duration {
	return time.Duration(n * float64(time.Second))
}

func at(x, y float64) core.PropertyState {
	return core.PropertyState{Pos: geom.XY{X: x, Y: y}}
}

func fixtureTimeline() *core.Timeline {
	return &core.Timeline{
		Name: "fixture",
		Root: "root",
		Segments: map[core.SegmentID]*core.Segment{
			"root": {ID: "root"},
		},
		Entities: map[core.EntityID]core.Entity{
			"boss": {ID: "boss", Name: "Kokytos", Kind: core.KindBoss},
			"MT":   {ID: "MT", Kind: core.KindPlayer, Job: core.JobWarrior, Speed: 6, PlayerDriven: true},
			"puddle": {ID: "puddle", Kind: core.KindTelegraph,
				Footprint: &core.Footprint{Kind: core.FootprintCircle, Radius: 6}},
		},
		Scripts: map[core.SegmentID]map[core.EntityID]*core.Script{
			"root": {
				"boss": {
					Spawn:   0,
					Despawn: sec(30),
					Track: []core.TrackPoint{
						{At: 0, State: core.PropertyState{Pos: geom.XY{X: 100, Y: 100}, Visual: "idle"}},
						{At: sec(10), State: core.PropertyState{Pos: geom.XY{X: 100, Y: 110}, Facing: 2, Visual: "cast"}},
					},
				},
				"puddle": {
					Spawn:   sec(5),
					Despawn: sec(8),
					Track:   []core.TrackPoint{{At: sec(5), State: at(95, 95)}},
				},
			},
		},
	}
}

func TestBuildValidates(t *testing.T) {
	_, err := Build(fixtureTimeline())
	require.NoError(t, err)
}

func TestBuildRejectsUnknownSegment(t *testing.T) {
	tl := fixtureTimeline()
	tl.Scripts["ghost"] = map[core.EntityID]*core.Script{
		"boss": {Spawn: 0, Despawn: sec(1)},
	}
	_, err := Build(tl)
	require.ErrorIs(t, err, core.ErrUnknownSegment)
}

func TestBuildRejectsUnknownEntity(t *testing.T) {
	tl := fixtureTimeline()
	tl.Scripts["root"]["ghost"] = &core.Script{Spawn: 0, Despawn: sec(1)}
	_, err := Build(tl)
	require.ErrorIs(t, err, core.ErrUnknownEntity)
}

func TestBuildRejectsNegativeSpawn(t *testing.T) {
	tl := fixtureTimeline()
	tl.Scripts["root"]["boss"] = &core.Script{Spawn: sec(-1), Despawn: sec(5)}
	_, err := Build(tl)
	require.ErrorIs(t, err, core.ErrMalformedTimeline)
}

func TestBuildRejectsEmptyWindow(t *testing.T) {
	tl := fixtureTimeline()
	tl.Scripts["root"]["boss"] = &core.Script{Spawn: sec(5), Despawn: sec(5)}
	_, err := Build(tl)
	require.ErrorIs(t, err, core.ErrMalformedTimeline)
}

func TestBuildRejectsTrackOutsideWindow(t *testing.T) {
	tl := fixtureTimeline()
	tl.Scripts["root"]["puddle"].Track = []core.TrackPoint{{At: sec(9), State: at(0, 0)}}
	_, err := Build(tl)
	require.ErrorIs(t, err, core.ErrMalformedTimeline)
}

func TestBuildSortsTrack(t *testing.T) {
	tl := fixtureTimeline()
	tl.Scripts["root"]["boss"].Track = []core.TrackPoint{
		{At: sec(10), State: at(100, 110)},
		{At: 0, State: at(100, 100)},
	}
	w, err := Build(tl)
	require.NoError(t, err)

	st, err := w.Sample("boss", "root", 0)
	require.NoError(t, err)
	assert.Equal(t, 100.0, st.Pos.Y)
}

func TestSampleInterpolates(t *testing.T) {
	w, err := Build(fixtureTimeline())
	require.NoError(t, err)

	st, err := w.Sample("boss", "root", sec(5))
	require.NoError(t, err)
	assert.InDelta(t, 100, st.Pos.X, 1e-9)
	assert.InDelta(t, 105, st.Pos.Y, 1e-9)
	assert.InDelta(t, 1, st.Facing, 1e-9)
	// visual holds the previous point's value, never blends
	assert.Equal(t, "idle", st.Visual)
}

func TestSampleHoldsPastLastPoint(t *testing.T) {
	w, err := Build(fixtureTimeline())
	require.NoError(t, err)

	st, err := w.Sample("boss", "root", sec(20))
	require.NoError(t, err)
	assert.Equal(t, 110.0, st.Pos.Y)
	assert.Equal(t, "cast", st.Visual)
}

func TestSampleOutsideLifetime(t *testing.T) {
	w, err := Build(fixtureTimeline())
	require.NoError(t, err)

	_, err = w.Sample("puddle", "root", sec(4))
	assert.ErrorIs(t, err, core.ErrOutsideLifetime)
	// despawn is exclusive
	_, err = w.Sample("puddle", "root", sec(8))
	assert.ErrorIs(t, err, core.ErrOutsideLifetime)
	// spawn is inclusive
	_, err = w.Sample("puddle", "root", sec(5))
	assert.NoError(t, err)
}

func TestSampleUnknownScript(t *testing.T) {
	w, err := Build(fixtureTimeline())
	require.NoError(t, err)

	_, err = w.Sample("MT", "root", 0)
	assert.ErrorIs(t, err, core.ErrUnknownEntity)
}

func TestSpawnWindow(t *testing.T) {
	w, err := Build(fixtureTimeline())
	require.NoError(t, err)

	spawn, despawn, err := w.SpawnWindow("puddle", "root")
	require.NoError(t, err)
	assert.Equal(t, sec(5), spawn)
	assert.Equal(t, sec(8), despawn)
}

func TestEntitiesActiveAt(t *testing.T) {
	w, err := Build(fixtureTimeline())
	require.NoError(t, err)

	assert.Equal(t, []core.EntityID{"boss"}, w.EntitiesActiveAt("root", sec(2)))
	assert.Equal(t, []core.EntityID{"boss", "puddle"}, w.EntitiesActiveAt("root", sec(6)))
	assert.Equal(t, []core.EntityID{"boss"}, w.EntitiesActiveAt("root", sec(8)))
	assert.Empty(t, w.EntitiesActiveAt("root", sec(31)))
	assert.Empty(t, w.EntitiesActiveAt("ghost", 0))
}

func TestEntitiesActiveDuring(t *testing.T) {
	w, err := Build(fixtureTimeline())
	require.NoError(t, err)

	assert.Equal(t, []core.EntityID{"boss", "puddle"}, w.EntitiesActiveDuring("root", sec(4), sec(6)))
	assert.Equal(t, []core.EntityID{"boss"}, w.EntitiesActiveDuring("root", sec(8), sec(10)))
}

func TestEntitiesSorted(t *testing.T) {
	w, err := Build(fixtureTimeline())
	require.NoError(t, err)

	ents := w.Entities()
	require.Len(t, ents, 3)
	assert.Equal(t, core.EntityID("MT"), ents[0].ID)
	assert.Equal(t, core.EntityID("boss"), ents[1].ID)
	assert.Equal(t, core.EntityID("puddle"), ents[2].ID)
}
