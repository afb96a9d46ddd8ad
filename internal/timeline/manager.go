// Package timeline implements the timeline manager: the runtime projector
// that reconciles the live scene against the source world for a requested
// global timestamp, resolving variations and replaying plan-dependent
// motion from snapshots where needed.
package timeline

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/stratsim/engine/internal/scene"
	"github.com/stratsim/engine/internal/segment"
	"github.com/stratsim/engine/internal/variation"
	"github.com/stratsim/engine/internal/world"
	"github.com/stratsim/engine/pkg/core"
)

// Config holds replay tuning. ReplayBudget caps the time span fast-
// forwarded within a single Seek or Tick; the remainder is spread across
// subsequent ticks. ReplayStep is the fixed integration step, independent
// of tick rate so replay output depends only on its inputs.
type Config struct {
	ReplayBudget time.Duration
	ReplayStep   time.Duration
}

// DefaultConfig returns the stock replay tuning.
func DefaultConfig() Config {
	return Config{
		ReplayBudget: 5 * time.Second,
		ReplayStep:   10 * time.Millisecond,
	}
}

// Stats is a snapshot of playback performance counters.
type Stats struct {
	Seeks            uint64
	ClampedSeeks     uint64
	LastSeekDuration time.Duration
	LastReplaySpan   time.Duration
	LastSpawns       int
	LastDespawns     int
	CatchUpPending   bool
}

// Result reports what one Seek did.
type Result struct {
	Target   time.Duration // requested timestamp
	Applied  time.Duration // timestamp after clamping
	Clamped  bool
	Path     core.InstancePath
	Local    time.Duration
	Spawned  int
	Despawned int
	Replayed time.Duration // replay span fast-forwarded this call
	CatchUp  bool          // replay debt remains, serviced by Tick
	Warnings []string
}

// catchUp is outstanding replay debt: player-driven states advanced to
// cursor, still short of target.
type catchUp struct {
	states map[core.EntityID]core.PropertyState
	cursor time.Duration
	target time.Duration
}

// Manager drives the scene projection. Single state variable: the current
// global timestamp, with transitions driven by Seek.
type Manager struct {
	logger *slog.Logger
	graph  *segment.Graph
	world  *world.World
	vars   *variation.Registry
	proj   *scene.Projection
	cfg    Config

	// per-instance strat overrides: path key → frame label → entity → state
	overrides map[string]map[string]map[core.EntityID]core.PropertyState

	mu        sync.Mutex
	current   time.Duration
	hasSought bool
	path      core.InstancePath
	pending   *catchUp
	stats     Stats
}

// New creates a manager over a validated graph/world/registry triple.
func New(g *segment.Graph, w *world.World, vars *variation.Registry, proj *scene.Projection, cfg Config, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ReplayBudget <= 0 {
		cfg.ReplayBudget = DefaultConfig().ReplayBudget
	}
	if cfg.ReplayStep <= 0 {
		cfg.ReplayStep = DefaultConfig().ReplayStep
	}
	return &Manager{
		logger:    logger,
		graph:     g,
		world:     w,
		vars:      vars,
		proj:      proj,
		cfg:       cfg,
		overrides: make(map[string]map[string]map[core.EntityID]core.PropertyState),
	}
}

// SetOverrides installs the timeline's authored strat overrides.
func (m *Manager) SetOverrides(overrides []core.StratOverride) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.overrides = make(map[string]map[string]map[core.EntityID]core.PropertyState)
	for _, o := range overrides {
		m.addOverrideLocked(o)
	}
}

// AddOverride attaches one strat override to a single segment instance.
// Authoring-time API; overrides on one instance never affect another.
func (m *Manager) AddOverride(o core.StratOverride) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addOverrideLocked(o)
}

func (m *Manager) addOverrideLocked(o core.StratOverride) {
	byFrame, ok := m.overrides[o.Path]
	if !ok {
		byFrame = make(map[string]map[core.EntityID]core.PropertyState)
		m.overrides[o.Path] = byFrame
	}
	byEntity, ok := byFrame[o.Frame]
	if !ok {
		byEntity = make(map[core.EntityID]core.PropertyState)
		byFrame[o.Frame] = byEntity
	}
	byEntity[o.Entity] = o.State
}

// Overrides returns the installed overrides in stable order, for plan
// persistence.
func (m *Manager) Overrides() []core.StratOverride {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []core.StratOverride
	for path, byFrame := range m.overrides {
		for frame, byEntity := range byFrame {
			for entity, state := range byEntity {
				out = append(out, core.StratOverride{Path: path, Frame: frame, Entity: entity, State: state})
			}
		}
	}
	sortOverrides(out)
	return out
}

// Current returns the current global timestamp.
func (m *Manager) Current() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// CurrentPath returns the active instance path of the last seek.
func (m *Manager) CurrentPath() core.InstancePath {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append(core.InstancePath(nil), m.path...)
}

// Statistics returns a copy of the playback counters.
func (m *Manager) Statistics() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.stats
	s.CatchUpPending = m.pending != nil
	return s
}

// activeLevel is one instance on the active path with its local time.
type activeLevel struct {
	path  core.InstancePath
	seg   core.SegmentID
	start time.Duration // absolute start of this instance
	local time.Duration
}

// levels expands an instance path at global time t into per-level local
// times.
func (m *Manager) levels(path core.InstancePath, t time.Duration) ([]activeLevel, error) {
	out := make([]activeLevel, 0, len(path))
	for i := 1; i <= len(path); i++ {
		prefix := path.Prefix(i)
		start, _, err := m.graph.AbsoluteWindow(prefix)
		if err != nil {
			return nil, err
		}
		out = append(out, activeLevel{
			path:  prefix,
			seg:   prefix.Leaf().Segment,
			start: start,
			local: t - start,
		})
	}
	return out, nil
}

// entityCtx is the innermost instance whose script animates an entity at
// the current timestamp.
type entityCtx struct {
	level activeLevel
}

// Seek drives the scene projection to the requested global timestamp.
// Out-of-range targets clamp to the nearest valid boundary with a warning.
func (m *Manager) Seek(target time.Duration) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	started := time.Now()
	res := Result{Target: target, Applied: target}

	// Any seek supersedes outstanding catch-up: partial replay for an
	// abandoned target is discarded, never applied.
	m.pending = nil

	rootDur := m.graph.Duration(m.graph.Root())
	if target < 0 {
		res.Applied = 0
		res.Clamped = true
	} else if target > rootDur {
		res.Applied = rootDur
		res.Clamped = true
	}
	if res.Clamped {
		m.stats.ClampedSeeks++
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("seek %s clamped to %s (timeline spans [0, %s])", target, res.Applied, rootDur))
	}
	t := res.Applied

	newPath, local, err := m.graph.Resolve(t)
	if err != nil {
		return res, err
	}
	res.Path = newPath
	res.Local = local

	if err := m.resolveEntered(newPath, &res); err != nil {
		return res, err
	}

	lvls, err := m.levels(newPath, t)
	if err != nil {
		return res, err
	}

	// Active entities at t: innermost script context wins when an entity
	// is scripted at more than one level.
	active := make(map[core.EntityID]entityCtx)
	for _, lvl := range lvls {
		for _, id := range m.world.EntitiesActiveAt(lvl.seg, lvl.local) {
			active[id] = entityCtx{level: lvl}
		}
	}

	// Entity deltas against the live projection.
	spawns := make(map[core.EntityID]core.PropertyState)
	var despawns []core.EntityID
	for _, id := range m.proj.Live() {
		if _, ok := active[id]; !ok {
			despawns = append(despawns, id)
		}
	}

	states, replayed, pending := m.drivingStates(active, lvls, t, &res)
	res.Replayed = replayed

	for id, st := range states {
		if !m.proj.IsLive(id) {
			spawns[id] = st
		}
	}
	m.proj.Reconcile(spawns, despawns, states)

	m.current = t
	m.hasSought = true
	m.path = newPath
	m.pending = pending
	res.CatchUp = pending != nil
	res.Spawned = len(spawns)
	res.Despawned = len(despawns)

	m.stats.Seeks++
	m.stats.LastSeekDuration = time.Since(started)
	m.stats.LastReplaySpan = replayed
	m.stats.LastSpawns = res.Spawned
	m.stats.LastDespawns = res.Despawned

	for _, w := range res.Warnings {
		m.logger.Warn(w)
	}
	m.logger.Debug("seek applied",
		"target", target,
		"applied", t,
		"path", res.Path.Key(),
		"spawned", res.Spawned,
		"despawned", res.Despawned,
		"replayed", replayed,
		"catchUp", res.CatchUp)
	return res, nil
}

// resolveEntered resolves the variations required by every instance newly
// entered on the active path, in root→leaf (timeline) order. Resolution
// is monotonic per variation within the session: seeking backward never
// un-resolves, and re-entering only re-reads the fixed value.
func (m *Manager) resolveEntered(newPath core.InstancePath, res *Result) error {
	for i := 1; i <= len(newPath); i++ {
		prefix := newPath.Prefix(i)
		if m.hasSought && len(m.path) >= i && m.path.Prefix(i).Equal(prefix) {
			continue // instance was already active
		}
		seg, ok := m.graph.Segment(prefix.Leaf().Segment)
		if !ok {
			return fmt.Errorf("resolve entered %q: %w", prefix.Key(), core.ErrUnknownSegment)
		}
		for _, vid := range seg.Writes {
			val, err := m.vars.Resolve(vid)
			if err != nil {
				return err
			}
			m.logger.Debug("variation decided", "segment", prefix.Key(), "variation", vid, "value", val)
		}
		for _, vid := range seg.Reads {
			if _, err := m.vars.Resolve(vid); err != nil {
				return err
			}
		}
	}
	return nil
}

// drivingStates computes the projected state for every active entity,
// choosing each entity's driving instant per the snapshot rules.
func (m *Manager) drivingStates(active map[core.EntityID]entityCtx, lvls []activeLevel, t time.Duration, res *Result) (map[core.EntityID]core.PropertyState, time.Duration, *catchUp) {
	states := make(map[core.EntityID]core.PropertyState, len(active))

	// Non-plan-dependent entities sample straight from their scripts.
	playerDriven := make([]core.EntityID, 0)
	for id, ctx := range active {
		ent, _ := m.world.Entity(id)
		if ent.PlayerDriven {
			playerDriven = append(playerDriven, id)
			continue
		}
		st, err := m.world.Sample(id, ctx.level.seg, ctx.level.local)
		if err != nil {
			if errors.Is(err, core.ErrOutsideLifetime) {
				res.Warnings = append(res.Warnings,
					fmt.Sprintf("entity %q referenced outside its spawn window in %q, skipped this frame", id, ctx.level.seg))
				continue
			}
			res.Warnings = append(res.Warnings, fmt.Sprintf("sample %q: %v", id, err))
			continue
		}
		states[id] = st
	}
	sortEntityIDs(playerDriven)

	if len(playerDriven) == 0 {
		return states, 0, nil
	}

	snap, found := m.nearestSnapshot(lvls, t)
	if !found {
		// Start of segment, no snapshots authored: nothing depends on an
		// unresolved prior plan, sample directly.
		m.sampleDirect(playerDriven, active, states, res)
		return states, 0, nil
	}

	if snap.abs == t {
		// Exact snapshot hit: recorded state wins, script fills the gaps.
		for _, id := range playerDriven {
			if st, ok := m.recordedState(snap, id); ok {
				states[id] = st
				continue
			}
			m.sampleDirect([]core.EntityID{id}, active, states, res)
		}
		return states, 0, nil
	}

	// Replay: fast-forward plan-dependent motion from the snapshot to t.
	base := make(map[core.EntityID]core.PropertyState, len(playerDriven))
	speeds := make(map[core.EntityID]float64, len(playerDriven))
	var replayIDs []core.EntityID
	for _, id := range playerDriven {
		ent, _ := m.world.Entity(id)
		st, ok := m.recordedState(snap, id)
		if !ok {
			st, ok = m.sampleAtGlobal(id, snap.abs)
		}
		if !ok {
			// Entity has no presence at the snapshot instant; its motion
			// cannot depend on the plan there.
			m.sampleDirect([]core.EntityID{id}, active, states, res)
			continue
		}
		base[id] = st
		speeds[id] = ent.Speed
		replayIDs = append(replayIDs, id)
	}
	if len(replayIDs) == 0 {
		return states, 0, nil
	}

	span := t - snap.abs
	advance := span
	if advance > m.cfg.ReplayBudget {
		advance = m.cfg.ReplayBudget
	}

	replayed := Replay(base, speeds, m.sampleAtGlobal, snap.abs, snap.abs+advance, m.cfg.ReplayStep)
	for id, st := range replayed {
		states[id] = st
	}

	var pending *catchUp
	if advance < span {
		pending = &catchUp{
			states: replayed,
			cursor: snap.abs + advance,
			target: t,
		}
	}
	return states, advance, pending
}

// sampleDirect fills states from the entity's own script, warning and
// skipping on lifetime violations.
func (m *Manager) sampleDirect(ids []core.EntityID, active map[core.EntityID]entityCtx, states map[core.EntityID]core.PropertyState, res *Result) {
	for _, id := range ids {
		ctx := active[id]
		st, err := m.world.Sample(id, ctx.level.seg, ctx.level.local)
		if err != nil {
			if errors.Is(err, core.ErrOutsideLifetime) {
				res.Warnings = append(res.Warnings,
					fmt.Sprintf("entity %q referenced outside its spawn window in %q, skipped this frame", id, ctx.level.seg))
				continue
			}
			res.Warnings = append(res.Warnings, fmt.Sprintf("sample %q: %v", id, err))
			continue
		}
		states[id] = st
	}
}

// Tick services outstanding replay catch-up within the replay budget.
// It reports whether any catch-up work remains.
func (m *Manager) Tick() (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.pending == nil {
		return false, nil
	}
	p := m.pending

	span := p.target - p.cursor
	advance := span
	if advance > m.cfg.ReplayBudget {
		advance = m.cfg.ReplayBudget
	}

	replayed := Replay(p.states, m.speedsFor(p.states), m.sampleAtGlobal, p.cursor, p.cursor+advance, m.cfg.ReplayStep)

	states := make(map[core.EntityID]core.PropertyState, len(replayed))
	for id, st := range replayed {
		states[id] = st
	}
	m.proj.Reconcile(nil, nil, states)

	if advance >= span {
		m.pending = nil
		m.logger.Debug("replay catch-up complete", "target", p.target)
		return false, nil
	}
	p.states = replayed
	p.cursor += advance
	m.stats.LastReplaySpan = advance
	return true, nil
}

func (m *Manager) speedsFor(states map[core.EntityID]core.PropertyState) map[core.EntityID]float64 {
	speeds := make(map[core.EntityID]float64, len(states))
	for id := range states {
		ent, _ := m.world.Entity(id)
		speeds[id] = ent.Speed
	}
	return speeds
}

// sampleAtGlobal samples an entity's scripted state at a global timestamp,
// using the innermost active instance that scripts it. ok is false when
// the entity has no active script there.
func (m *Manager) sampleAtGlobal(id core.EntityID, t time.Duration) (core.PropertyState, bool) {
	path, _, err := m.graph.Resolve(t)
	if err != nil {
		return core.PropertyState{}, false
	}
	lvls, err := m.levels(path, t)
	if err != nil {
		return core.PropertyState{}, false
	}
	for i := len(lvls) - 1; i >= 0; i-- {
		lvl := lvls[i]
		st, err := m.world.Sample(id, lvl.seg, lvl.local)
		if err == nil {
			return st, true
		}
	}
	return core.PropertyState{}, false
}
