package scene

import (
	"testing"

	"github.com/peterstace/simplefeatures/geom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratsim/engine/pkg/core"
)

func at(x, y float64) core.PropertyState {
	return core.PropertyState{Pos: geom.XY{X: x, Y: y}}
}

func TestReconcileOrder(t *testing.T) {
	rec := NewRecorder()
	p := NewProjection(rec, nil)

	p.Reconcile(map[core.EntityID]core.PropertyState{
		"boss": at(100, 100),
		"MT":   at(100, 92),
	}, nil, nil)

	p.Reconcile(
		map[core.EntityID]core.PropertyState{"puddle": at(95, 95)},
		[]core.EntityID{"MT"},
		map[core.EntityID]core.PropertyState{"boss": at(100, 110)},
	)

	cmds := rec.Commands()
	require.Len(t, cmds, 5)
	// spawns are emitted in id order
	assert.Equal(t, Command{Kind: CmdSpawn, Entity: "MT", State: at(100, 92)}, cmds[0])
	assert.Equal(t, Command{Kind: CmdSpawn, Entity: "boss", State: at(100, 100)}, cmds[1])
	// despawns precede spawns precede state updates within one reconcile
	assert.Equal(t, Command{Kind: CmdDespawn, Entity: "MT"}, cmds[2])
	assert.Equal(t, Command{Kind: CmdSpawn, Entity: "puddle", State: at(95, 95)}, cmds[3])
	assert.Equal(t, Command{Kind: CmdSetState, Entity: "boss", State: at(100, 110)}, cmds[4])
}

func TestReconcileSkipsUnchangedStates(t *testing.T) {
	rec := NewRecorder()
	p := NewProjection(rec, nil)

	p.Reconcile(map[core.EntityID]core.PropertyState{"boss": at(100, 100)}, nil, nil)
	rec.Reset()

	p.Reconcile(nil, nil, map[core.EntityID]core.PropertyState{"boss": at(100, 100)})
	assert.Empty(t, rec.Commands())

	p.Reconcile(nil, nil, map[core.EntityID]core.PropertyState{"boss": at(100, 101)})
	require.Len(t, rec.Commands(), 1)
	assert.Equal(t, CmdSetState, rec.Commands()[0].Kind)
}

func TestReconcileIgnoresStaleDeltas(t *testing.T) {
	rec := NewRecorder()
	p := NewProjection(rec, nil)

	// despawning something that was never live emits nothing
	p.Reconcile(nil, []core.EntityID{"ghost"}, nil)
	// state updates for non-live entities are dropped
	p.Reconcile(nil, nil, map[core.EntityID]core.PropertyState{"ghost": at(1, 1)})
	assert.Empty(t, rec.Commands())
}

func TestLiveTracking(t *testing.T) {
	p := NewProjection(NewRecorder(), nil)

	p.Reconcile(map[core.EntityID]core.PropertyState{
		"boss": at(100, 100),
		"MT":   at(100, 92),
	}, nil, nil)

	assert.Equal(t, []core.EntityID{"MT", "boss"}, p.Live())
	assert.Equal(t, 2, p.Count())
	assert.True(t, p.IsLive("boss"))

	st, ok := p.State("MT")
	require.True(t, ok)
	assert.Equal(t, at(100, 92), st)

	p.Reconcile(nil, []core.EntityID{"boss"}, nil)
	assert.False(t, p.IsLive("boss"))
	assert.Equal(t, []core.EntityID{"MT"}, p.Live())
}

func TestTeardown(t *testing.T) {
	rec := NewRecorder()
	p := NewProjection(rec, nil)

	p.Reconcile(map[core.EntityID]core.PropertyState{
		"boss":   at(100, 100),
		"MT":     at(100, 92),
		"puddle": at(95, 95),
	}, nil, nil)
	rec.Reset()

	p.Teardown()
	assert.Equal(t, 0, p.Count())

	cmds := rec.Commands()
	require.Len(t, cmds, 3)
	assert.Equal(t, Command{Kind: CmdDespawn, Entity: "MT"}, cmds[0])
	assert.Equal(t, Command{Kind: CmdDespawn, Entity: "boss"}, cmds[1])
	assert.Equal(t, Command{Kind: CmdDespawn, Entity: "puddle"}, cmds[2])
}
