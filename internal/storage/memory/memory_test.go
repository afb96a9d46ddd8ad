package memory

import (
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratsim/engine/internal/config"
	"github.com/stratsim/engine/internal/parser"
	"github.com/stratsim/engine/pkg/core"
)

func fixtureTimeline(name string) *core.Timeline {
	return &core.Timeline{
		Name: name,
		Root: "root",
		Segments: map[core.SegmentID]*core.Segment{
			"root": {ID: "root", Keyframes: []core.Keyframe{{At: 0}}},
		},
		Entities: map[core.EntityID]core.Entity{
			"boss": {ID: "boss", Name: "Kokytos", Kind: core.KindBoss},
		},
	}
}

func TestSaveLoadTimeline(t *testing.T) {
	m := New(config.MemoryConfig{})
	require.NoError(t, m.Init())
	defer m.Close()

	tl := fixtureTimeline("p9s")
	require.NoError(t, m.SaveTimeline(tl))

	got, err := m.LoadTimeline("p9s")
	require.NoError(t, err)
	assert.Equal(t, tl, got)

	_, err = m.LoadTimeline("nope")
	assert.Error(t, err)

	assert.Error(t, m.SaveTimeline(&core.Timeline{}))
}

func TestListTimelinesSorted(t *testing.T) {
	m := New(config.MemoryConfig{})
	require.NoError(t, m.SaveTimeline(fixtureTimeline("zeta")))
	require.NoError(t, m.SaveTimeline(fixtureTimeline("alpha")))

	names, err := m.ListTimelines()
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "zeta"}, names)
}

func TestSavePlanReplacesByName(t *testing.T) {
	m := New(config.MemoryConfig{})
	require.NoError(t, m.SaveTimeline(fixtureTimeline("p9s")))

	require.NoError(t, m.SavePlan("p9s", &core.Plan{Name: "uptime"}))
	require.NoError(t, m.SavePlan("p9s", &core.Plan{Name: "safety"}))
	require.NoError(t, m.SavePlan("p9s", &core.Plan{
		Name:     "uptime",
		Resolved: map[core.VariationID]string{"beast_choice": "snake"},
	}))

	plans, err := m.LoadPlans("p9s")
	require.NoError(t, err)
	require.Len(t, plans, 2)
	assert.Equal(t, "uptime", plans[0].Name)
	assert.Equal(t, "snake", plans[0].Resolved["beast_choice"])
	assert.Equal(t, "safety", plans[1].Name)
}

func TestSavePlanUnknownTimeline(t *testing.T) {
	m := New(config.MemoryConfig{})
	err := m.SavePlan("nope", &core.Plan{Name: "uptime"})
	assert.Error(t, err)
}

func TestExportTimeline(t *testing.T) {
	dir := t.TempDir()
	m := New(config.MemoryConfig{})
	tl := fixtureTimeline("p9s clean")
	require.NoError(t, m.SaveTimeline(tl))

	path, err := m.ExportTimeline("p9s clean", dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "p9s_clean.timeline.json"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	got, err := parser.New(nil).ParseTimeline(data)
	require.NoError(t, err)
	assert.Equal(t, tl.Name, got.Name)
	assert.Equal(t, tl.Root, got.Root)
}

func TestExportTimelineCompressed(t *testing.T) {
	dir := t.TempDir()
	m := New(config.MemoryConfig{CompressOutput: true})
	require.NoError(t, m.SaveTimeline(fixtureTimeline("p9s")))

	path, err := m.ExportTimeline("p9s", dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "p9s.timeline.json.gz"), path)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	gz, err := gzip.NewReader(f)
	require.NoError(t, err)
	data, err := io.ReadAll(gz)
	require.NoError(t, err)

	got, err := parser.New(nil).ParseTimeline(data)
	require.NoError(t, err)
	assert.Equal(t, "p9s", got.Name)
}

func TestExportUnknownTimeline(t *testing.T) {
	m := New(config.MemoryConfig{})
	_, err := m.ExportTimeline("nope", t.TempDir())
	assert.Error(t, err)
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "p9s_clean", sanitizeFilename("p9s clean"))
	assert.Equal(t, "weekly-reclearv2", sanitizeFilename("weekly-reclear/v2"))
	assert.Equal(t, "timeline", sanitizeFilename("///"))
}
