package handlers

import (
	"testing"
	"time"

	"github.com/peterstace/simplefeatures/geom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratsim/engine/internal/config"
	"github.com/stratsim/engine/internal/dispatcher"
	"github.com/stratsim/engine/internal/scene"
	"github.com/stratsim/engine/internal/session"
	"github.com/stratsim/engine/internal/storage/memory"
	"github.com/stratsim/engine/pkg/core"
)

func fixtureTimeline() *core.Timeline {
	return &core.Timeline{
		Name:      "p9s-clean",
		ArenaName: "kokytos",
		Root:      "root",
		Segments: map[core.SegmentID]*core.Segment{
			"root": {ID: "root", Keyframes: []core.Keyframe{{At: 60 * time.Second}}},
		},
		Variations: []core.Variation{
			{ID: "beast_choice", Domain: []string{"dog", "snake"}, Default: "dog"},
		},
		Entities: map[core.EntityID]core.Entity{
			"boss": {ID: "boss", Name: "Kokytos", Kind: core.KindBoss},
			"puddle": {ID: "puddle", Name: "Comet", Kind: core.KindTelegraph,
				Footprint: &core.Footprint{Kind: core.FootprintCircle, Radius: 6}},
		},
		Scripts: map[core.SegmentID]map[core.EntityID]*core.Script{
			"root": {
				"boss": {
					Spawn:   0,
					Despawn: 60 * time.Second,
					Track:   []core.TrackPoint{{At: 0, State: core.PropertyState{Pos: geom.XY{X: 100, Y: 100}}}},
				},
				"puddle": {
					Spawn:   5 * time.Second,
					Despawn: 8 * time.Second,
					Track:   []core.TrackPoint{{At: 5 * time.Second, State: core.PropertyState{Pos: geom.XY{X: 100, Y: 100}}}},
				},
			},
		},
	}
}

func newTestService(t *testing.T) *Service {
	backend := memory.New(config.MemoryConfig{})
	require.NoError(t, backend.SaveTimeline(fixtureTimeline()))

	sess := session.New(scene.NewRecorder(), session.Config{
		VariationSeed: 1,
		ReplayBudget:  5 * time.Second,
		ReplayStep:    10 * time.Millisecond,
		TickRate:      16 * time.Millisecond,
	}, nil)

	return NewService(Dependencies{
		Session: sess,
		Backend: backend,
	})
}

func TestTimelineLoadAndList(t *testing.T) {
	s := newTestService(t)

	out, err := s.HandleTimelineList(dispatcher.Event{})
	require.NoError(t, err)
	assert.JSONEq(t, `["p9s-clean"]`, out.(string))

	_, err = s.HandleTimelineLoad(dispatcher.Event{})
	assert.Error(t, err)
	_, err = s.HandleTimelineLoad(dispatcher.Event{Args: []string{"nope"}})
	assert.Error(t, err)

	out, err = s.HandleTimelineLoad(dispatcher.Event{Args: []string{"p9s-clean"}})
	require.NoError(t, err)
	assert.Equal(t, "loaded", out)
	assert.True(t, s.deps.Session.Loaded())
}

func TestSeekAndDangers(t *testing.T) {
	s := newTestService(t)
	_, err := s.HandleTimelineLoad(dispatcher.Event{Args: []string{"p9s-clean"}})
	require.NoError(t, err)

	_, err = s.HandleSeek(dispatcher.Event{Args: []string{"6"}})
	require.NoError(t, err)

	out, err := s.HandleDangers(dispatcher.Event{Args: []string{"103", "100"}})
	require.NoError(t, err)
	assert.Contains(t, out.(string), `"puddle"`)

	out, err = s.HandleDangers(dispatcher.Event{Args: []string{"120", "100"}})
	require.NoError(t, err)
	assert.Equal(t, "null", out.(string))

	_, err = s.HandleSeek(dispatcher.Event{Args: []string{"soon"}})
	assert.Error(t, err)
	_, err = s.HandleDangers(dispatcher.Event{Args: []string{"103"}})
	assert.Error(t, err)
}

func TestPlaybackControls(t *testing.T) {
	s := newTestService(t)
	_, err := s.HandleTimelineLoad(dispatcher.Event{Args: []string{"p9s-clean"}})
	require.NoError(t, err)

	out, err := s.HandleResume(dispatcher.Event{})
	require.NoError(t, err)
	assert.Equal(t, "playing", out)
	assert.True(t, s.deps.Session.Playing())

	_, err = s.HandleTick(dispatcher.Event{})
	require.NoError(t, err)
	assert.Equal(t, 16*time.Millisecond, s.deps.Session.Manager().Current())

	out, err = s.HandlePause(dispatcher.Event{})
	require.NoError(t, err)
	assert.Equal(t, "paused", out)
}

func TestVariationCommands(t *testing.T) {
	s := newTestService(t)
	_, err := s.HandleTimelineLoad(dispatcher.Event{Args: []string{"p9s-clean"}})
	require.NoError(t, err)

	out, err := s.HandleVariationPin(dispatcher.Event{Args: []string{"beast_choice", "snake"}})
	require.NoError(t, err)
	assert.Equal(t, "pinned", out)

	_, err = s.HandleVariationPin(dispatcher.Event{Args: []string{"beast_choice", "bird"}})
	assert.ErrorIs(t, err, core.ErrUnknownValue)

	out, err = s.HandleVariationReset(dispatcher.Event{})
	require.NoError(t, err)
	assert.Equal(t, "reset", out)
}

func TestOverrideAndPlanCommands(t *testing.T) {
	s := newTestService(t)
	_, err := s.HandleTimelineLoad(dispatcher.Event{Args: []string{"p9s-clean"}})
	require.NoError(t, err)

	out, err := s.HandleOverrideSet(dispatcher.Event{Args: []string{"root", "spread", "boss", "110", "100", "1.5"}})
	require.NoError(t, err)
	assert.Equal(t, "set", out)

	_, err = s.HandleOverrideSet(dispatcher.Event{Args: []string{"root", "spread", "boss", "x", "100"}})
	assert.Error(t, err)

	out, err = s.HandlePlanSave(dispatcher.Event{Args: []string{"uptime"}})
	require.NoError(t, err)
	assert.Equal(t, "saved", out)

	out, err = s.HandlePlanLoad(dispatcher.Event{Args: []string{"uptime"}})
	require.NoError(t, err)
	assert.Equal(t, "applied", out)

	_, err = s.HandlePlanLoad(dispatcher.Event{Args: []string{"nope"}})
	assert.Error(t, err)
}

func TestWarningsCommand(t *testing.T) {
	s := newTestService(t)
	_, err := s.HandleTimelineLoad(dispatcher.Event{Args: []string{"p9s-clean"}})
	require.NoError(t, err)

	// seeking past the end records a clamp warning
	_, err = s.HandleSeek(dispatcher.Event{Args: []string{"120"}})
	require.NoError(t, err)

	out, err := s.HandleWarnings(dispatcher.Event{})
	require.NoError(t, err)
	assert.NotEqual(t, "null", out.(string))

	// warnings drain on read
	out, err = s.HandleWarnings(dispatcher.Event{})
	require.NoError(t, err)
	assert.Equal(t, "null", out.(string))
}

func TestStatusUnconfigured(t *testing.T) {
	s := newTestService(t)
	_, err := s.HandleStatus(dispatcher.Event{})
	assert.Error(t, err)
}

type nopLogger struct{}

func (nopLogger) Debug(msg string, keysAndValues ...any) {}
func (nopLogger) Info(msg string, keysAndValues ...any)  {}
func (nopLogger) Error(msg string, keysAndValues ...any) {}

func TestRegisterHandlers(t *testing.T) {
	s := newTestService(t)
	d, err := dispatcher.New(nopLogger{})
	require.NoError(t, err)

	s.RegisterHandlers(d)

	for _, cmd := range []string{
		CmdTimelineLoad, CmdTimelineList, CmdSeek, CmdTick, CmdPause,
		CmdResume, CmdVariationPin, CmdVariationReset, CmdOverrideSet,
		CmdPlanSave, CmdPlanLoad, CmdDangers, CmdStatus, CmdWarnings,
	} {
		assert.True(t, d.HasHandler(cmd), cmd)
	}
}
