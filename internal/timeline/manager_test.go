package timeline

import (
	"testing"
	"time"

	"github.com/peterstace/simplefeatures/geom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratsim/engine/internal/scene"
	"github.com/stratsim/engine/internal/segment"
	"github.com/stratsim/engine/internal/variation"
	"github.com/stratsim/engine/internal/world"
	"github.com/stratsim/engine/pkg/core"
)

func sec(n float64) time.Duration {
	return time.Duration(n * float64(time.Second))
}

// fixture: a 60s encounter. intro carries a stratframe with an anchored
// snapshot; beast is placed twice and rolls a variation. The main tank is
// the only plan-driven entity.
//
//	root     [0 ......................................... 60]
//	intro    [0 ... strat@5 ... snap@8 ... 15]
//	beast                  [20 ... bait@24 ... 30]   [40 ... bait@44 ... 50]
func fixtureTimeline() *core.Timeline {
	return &core.Timeline{
		Name: "fixture",
		Root: "root",
		Segments: map[core.SegmentID]*core.Segment{
			"root": {
				ID: "root",
				Children: []core.Placement{
					{Child: "intro", Offset: 0},
					{Child: "beast", Offset: sec(20)},
					{Child: "beast", Offset: sec(40), Repeat: 1},
				},
				Keyframes: []core.Keyframe{{At: sec(60)}},
			},
			"intro": {
				ID: "intro",
				Keyframes: []core.Keyframe{
					{At: sec(5), Role: core.RoleStrat, Label: "open_spread"},
					{At: sec(8), Role: core.RoleSnapshot, Anchor: "open_spread",
						States: map[core.EntityID]core.PropertyState{
							"MT": {Pos: geom.XY{X: 95, Y: 95}},
						}},
					{At: sec(15)},
				},
			},
			"beast": {
				ID:     "beast",
				Writes: []core.VariationID{"beast_choice"},
				Keyframes: []core.Keyframe{
					{At: sec(4), Role: core.RoleStrat, Label: "bait"},
					{At: sec(10)},
				},
			},
		},
		Variations: []core.Variation{
			{ID: "beast_choice", Domain: []string{"dog", "snake"}, Default: "dog"},
		},
		Entities: map[core.EntityID]core.Entity{
			"boss": {ID: "boss", Kind: core.KindBoss},
			"MT":   {ID: "MT", Kind: core.KindPlayer, Job: core.JobWarrior, Speed: 6, PlayerDriven: true},
			"puddle": {ID: "puddle", Kind: core.KindTelegraph,
				Footprint: &core.Footprint{Kind: core.FootprintCircle, Radius: 6}},
		},
		Scripts: map[core.SegmentID]map[core.EntityID]*core.Script{
			"root": {
				"boss": {
					Spawn:   0,
					Despawn: sec(60),
					Track: []core.TrackPoint{
						{At: 0, State: core.PropertyState{Pos: geom.XY{X: 100, Y: 100}}},
					},
				},
				"MT": {
					Spawn:   0,
					Despawn: sec(60),
					Track: []core.TrackPoint{
						{At: 0, State: core.PropertyState{Pos: geom.XY{X: 100, Y: 92}}},
					},
				},
			},
			"beast": {
				"puddle": {
					Spawn:   sec(2),
					Despawn: sec(8),
					Track:   []core.TrackPoint{{At: sec(2), State: core.PropertyState{Pos: geom.XY{X: 95, Y: 95}}}},
				},
			},
		},
	}
}

type fixture struct {
	mgr      *Manager
	recorder *scene.Recorder
	proj     *scene.Projection
	vars     *variation.Registry
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	tl := fixtureTimeline()

	g, err := segment.Build(tl, nil)
	require.NoError(t, err)
	w, err := world.Build(tl)
	require.NoError(t, err)

	vars := variation.NewRegistry(1, nil)
	for _, v := range tl.Variations {
		require.NoError(t, vars.Register(v.ID, v.Domain, v.Default))
	}

	recorder := scene.NewRecorder()
	proj := scene.NewProjection(recorder, nil)
	mgr := New(g, w, vars, proj, cfg, nil)
	return &fixture{mgr: mgr, recorder: recorder, proj: proj, vars: vars}
}

func (f *fixture) stateOf(t *testing.T, id core.EntityID) core.PropertyState {
	t.Helper()
	st, ok := f.proj.State(id)
	require.True(t, ok, "entity %s not live", id)
	return st
}

func TestSeekSpawnsActiveEntities(t *testing.T) {
	f := newFixture(t, Config{})

	res, err := f.mgr.Seek(0)
	require.NoError(t, err)
	assert.False(t, res.Clamped)
	assert.Equal(t, 2, res.Spawned) // boss and MT
	assert.Equal(t, 0, res.Despawned)
	assert.Equal(t, "root/intro", res.Path.Key())

	assert.True(t, f.proj.IsLive("boss"))
	assert.True(t, f.proj.IsLive("MT"))
	assert.False(t, f.proj.IsLive("puddle"))
}

func TestSeekSpawnWindowExactness(t *testing.T) {
	f := newFixture(t, Config{})

	// beast local 4: puddle window [2, 8) covers it
	_, err := f.mgr.Seek(sec(24))
	require.NoError(t, err)
	assert.True(t, f.proj.IsLive("puddle"))

	// beast local 8: despawn is exclusive, puddle must be gone
	res, err := f.mgr.Seek(sec(28))
	require.NoError(t, err)
	assert.False(t, f.proj.IsLive("puddle"))
	assert.Equal(t, 1, res.Despawned)

	// backward seek brings it back
	_, err = f.mgr.Seek(sec(24))
	require.NoError(t, err)
	assert.True(t, f.proj.IsLive("puddle"))
}

func TestMonotonicSweepSpawnsOncePerWindow(t *testing.T) {
	f := newFixture(t, Config{})

	// scrub forward through the whole encounter in 500ms steps
	for at := time.Duration(0); at <= sec(60); at += 500 * time.Millisecond {
		_, err := f.mgr.Seek(at)
		require.NoError(t, err)
	}

	spawns := make(map[core.EntityID]int)
	despawns := make(map[core.EntityID]int)
	for _, cmd := range f.recorder.Commands() {
		switch cmd.Kind {
		case scene.CmdSpawn:
			spawns[cmd.Entity]++
		case scene.CmdDespawn:
			despawns[cmd.Entity]++
		}
	}

	// boss and MT live for the whole fight: one spawn each, one despawn at
	// the exclusive end of their window
	assert.Equal(t, 1, spawns["boss"])
	assert.Equal(t, 1, despawns["boss"])
	assert.Equal(t, 1, spawns["MT"])
	assert.Equal(t, 1, despawns["MT"])

	// the puddle has one window per beast placement and never flaps inside
	// either of them
	assert.Equal(t, 2, spawns["puddle"])
	assert.Equal(t, 2, despawns["puddle"])
}

func TestSeekClamps(t *testing.T) {
	f := newFixture(t, Config{})

	res, err := f.mgr.Seek(sec(-5))
	require.NoError(t, err)
	assert.True(t, res.Clamped)
	assert.Equal(t, time.Duration(0), res.Applied)
	require.Len(t, res.Warnings, 1)

	res, err = f.mgr.Seek(sec(1000))
	require.NoError(t, err)
	assert.True(t, res.Clamped)
	assert.Equal(t, sec(60), res.Applied)

	stats := f.mgr.Statistics()
	assert.Equal(t, uint64(2), stats.ClampedSeeks)
}

func TestExactSnapshotUsesRecordedState(t *testing.T) {
	f := newFixture(t, Config{})

	// intro's snapshot instant: MT comes from the recording, not the script
	_, err := f.mgr.Seek(sec(8))
	require.NoError(t, err)

	mt := f.stateOf(t, "MT")
	assert.Equal(t, 95.0, mt.Pos.X)
	assert.Equal(t, 95.0, mt.Pos.Y)

	boss := f.stateOf(t, "boss")
	assert.Equal(t, 100.0, boss.Pos.X)
}

func TestStratframeWithoutSnapshotIsItsOwnInstant(t *testing.T) {
	f := newFixture(t, Config{})

	// beast's "bait" has no authored snapshot: seeking exactly onto it
	// needs no replay and matches the script sample.
	res, err := f.mgr.Seek(sec(24))
	require.NoError(t, err)
	assert.Equal(t, time.Duration(0), res.Replayed)
	assert.False(t, res.CatchUp)

	mt := f.stateOf(t, "MT")
	assert.Equal(t, 100.0, mt.Pos.X)
	assert.Equal(t, 92.0, mt.Pos.Y)
}

func TestReplayMovesTowardScriptAtSpeedCap(t *testing.T) {
	f := newFixture(t, Config{})
	// plan parks the MT at x=80 on the bait stratframe; the script wants
	// x=100. 2s of replay at 6 y/s covers exactly 12 yalms.
	f.mgr.AddOverride(core.StratOverride{
		Path: "root/beast", Frame: "bait", Entity: "MT",
		State: core.PropertyState{Pos: geom.XY{X: 80, Y: 92}},
	})

	res, err := f.mgr.Seek(sec(26))
	require.NoError(t, err)
	assert.Equal(t, sec(2), res.Replayed)
	assert.False(t, res.CatchUp)

	mt := f.stateOf(t, "MT")
	assert.InDelta(t, 92.0, mt.Pos.X, 1e-6)
	assert.InDelta(t, 92.0, mt.Pos.Y, 1e-6)
}

func TestReplayDeterminism(t *testing.T) {
	run := func() core.PropertyState {
		f := newFixture(t, Config{})
		f.mgr.AddOverride(core.StratOverride{
			Path: "root/beast", Frame: "bait", Entity: "MT",
			State: core.PropertyState{Pos: geom.XY{X: 80, Y: 80}},
		})
		_, err := f.mgr.Seek(sec(27))
		require.NoError(t, err)
		return f.stateOf(t, "MT")
	}
	// bit-identical, not merely close
	assert.Equal(t, run(), run())
}

func TestReplayBudgetCatchUp(t *testing.T) {
	f := newFixture(t, Config{ReplayBudget: sec(1), ReplayStep: 10 * time.Millisecond})
	f.mgr.AddOverride(core.StratOverride{
		Path: "root/beast", Frame: "bait", Entity: "MT",
		State: core.PropertyState{Pos: geom.XY{X: 80, Y: 92}},
	})

	res, err := f.mgr.Seek(sec(26))
	require.NoError(t, err)
	assert.Equal(t, sec(1), res.Replayed)
	assert.True(t, res.CatchUp)

	// only 1s of the 2s span applied so far
	assert.InDelta(t, 86.0, f.stateOf(t, "MT").Pos.X, 1e-6)

	pending, err := f.mgr.Tick()
	require.NoError(t, err)
	assert.False(t, pending)
	assert.InDelta(t, 92.0, f.stateOf(t, "MT").Pos.X, 1e-6)

	// idle tick is a no-op
	pending, err = f.mgr.Tick()
	require.NoError(t, err)
	assert.False(t, pending)
}

func TestNewSeekDiscardsPendingCatchUp(t *testing.T) {
	f := newFixture(t, Config{ReplayBudget: sec(1), ReplayStep: 10 * time.Millisecond})
	f.mgr.AddOverride(core.StratOverride{
		Path: "root/beast", Frame: "bait", Entity: "MT",
		State: core.PropertyState{Pos: geom.XY{X: 80, Y: 92}},
	})

	res, err := f.mgr.Seek(sec(26))
	require.NoError(t, err)
	require.True(t, res.CatchUp)

	// supersede before the catch-up tick lands
	res, err = f.mgr.Seek(sec(25))
	require.NoError(t, err)
	assert.False(t, res.CatchUp)
	assert.InDelta(t, 86.0, f.stateOf(t, "MT").Pos.X, 1e-6)

	// no stale catch-up may fire afterward
	pending, err := f.mgr.Tick()
	require.NoError(t, err)
	assert.False(t, pending)
	assert.InDelta(t, 86.0, f.stateOf(t, "MT").Pos.X, 1e-6)
}

func TestVariationResolvedOnSegmentEntry(t *testing.T) {
	f := newFixture(t, Config{})

	_, err := f.mgr.Seek(sec(10))
	require.NoError(t, err)
	_, resolved, err := f.vars.Peek("beast_choice")
	require.NoError(t, err)
	assert.False(t, resolved, "variation resolved before its segment was entered")

	_, err = f.mgr.Seek(sec(25))
	require.NoError(t, err)
	first, resolved, err := f.vars.Peek("beast_choice")
	require.NoError(t, err)
	require.True(t, resolved)

	// backward and forward again: the value survives
	_, err = f.mgr.Seek(sec(5))
	require.NoError(t, err)
	_, err = f.mgr.Seek(sec(25))
	require.NoError(t, err)
	again, _, err := f.vars.Peek("beast_choice")
	require.NoError(t, err)
	assert.Equal(t, first, again)
}

func TestOverridesAreInstanceScoped(t *testing.T) {
	f := newFixture(t, Config{})
	// only the first beast instance gets a plan edit
	f.mgr.AddOverride(core.StratOverride{
		Path: "root/beast", Frame: "bait", Entity: "MT",
		State: core.PropertyState{Pos: geom.XY{X: 80, Y: 92}},
	})

	_, err := f.mgr.Seek(sec(24))
	require.NoError(t, err)
	assert.Equal(t, 80.0, f.stateOf(t, "MT").Pos.X)

	// the second instance's bait (abs 44) is untouched by the edit
	_, err = f.mgr.Seek(sec(44))
	require.NoError(t, err)
	assert.Equal(t, 100.0, f.stateOf(t, "MT").Pos.X)
}

func TestOverrideRoundTrip(t *testing.T) {
	f := newFixture(t, Config{})
	o := core.StratOverride{
		Path: "root/beast#1", Frame: "bait", Entity: "MT",
		State: core.PropertyState{Pos: geom.XY{X: 81, Y: 93}, Facing: 1.5},
	}
	f.mgr.AddOverride(o)

	got := f.mgr.Overrides()
	require.Len(t, got, 1)
	assert.Equal(t, o, got[0])
}

func TestCurrentAndPath(t *testing.T) {
	f := newFixture(t, Config{})
	_, err := f.mgr.Seek(sec(45))
	require.NoError(t, err)
	assert.Equal(t, sec(45), f.mgr.Current())
	assert.Equal(t, "root/beast#1", f.mgr.CurrentPath().Key())
}
