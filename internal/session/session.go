// Package session owns the loaded planning session: the validated graph,
// world and variation registry behind one timeline manager, plus the
// pause/resume playback state the handlers drive.
package session

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/peterstace/simplefeatures/geom"

	"github.com/stratsim/engine/internal/arena"
	"github.com/stratsim/engine/internal/queue"
	"github.com/stratsim/engine/internal/scene"
	"github.com/stratsim/engine/internal/segment"
	"github.com/stratsim/engine/internal/timeline"
	"github.com/stratsim/engine/internal/variation"
	"github.com/stratsim/engine/internal/world"
	"github.com/stratsim/engine/pkg/core"
)

// Config holds the session tuning taken from the playback config section.
type Config struct {
	VariationSeed int64
	ReplayBudget  time.Duration
	ReplayStep    time.Duration
	TickRate      time.Duration
}

// Danger is one live telegraph whose footprint covers a queried position.
type Danger struct {
	Entity core.EntityID      `json:"entity"`
	Name   string             `json:"name"`
	State  core.PropertyState `json:"state"`
}

// Session is the mutable state behind the command handlers. At most one
// timeline is loaded at a time; Load replaces everything atomically.
type Session struct {
	logger    *slog.Logger
	presenter scene.Presenter
	cfg       Config

	mu       sync.Mutex
	tl       *core.Timeline
	graph    *segment.Graph
	world    *world.World
	vars     *variation.Registry
	proj     *scene.Projection
	manager  *timeline.Manager
	arena    arena.Definition
	playing  bool
	warnings *queue.Queue[string]
}

// New creates an empty session that projects onto the given presenter.
func New(presenter scene.Presenter, cfg Config, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		logger:    logger,
		presenter: presenter,
		cfg:       cfg,
		warnings:  queue.New[string](),
	}
}

// Load validates and installs a timeline. Validation runs fully before any
// state is replaced: a timeline that fails to load leaves the previous
// session untouched.
func (s *Session) Load(tl *core.Timeline) error {
	vars := variation.NewRegistry(s.cfg.VariationSeed, s.logger)
	for _, v := range tl.Variations {
		if err := vars.Register(v.ID, v.Domain, v.Default); err != nil {
			return fmt.Errorf("load %q: %w", tl.Name, err)
		}
	}

	graph, err := segment.Build(tl, s.logger)
	if err != nil {
		return fmt.Errorf("load %q: %w", tl.Name, err)
	}

	w, err := world.Build(tl)
	if err != nil {
		return fmt.Errorf("load %q: %w", tl.Name, err)
	}

	s.mu.Lock()

	if s.proj != nil {
		s.proj.Teardown()
	}

	proj := scene.NewProjection(s.presenter, s.logger)
	mgr := timeline.New(graph, w, vars, proj, timeline.Config{
		ReplayBudget: s.cfg.ReplayBudget,
		ReplayStep:   s.cfg.ReplayStep,
	}, s.logger)
	mgr.SetOverrides(tl.Overrides)

	s.tl = tl
	s.graph = graph
	s.world = w
	s.vars = vars
	s.proj = proj
	s.manager = mgr
	s.arena = arena.Lookup(tl.ArenaName)
	s.playing = false
	arenaName := s.arena.Name
	s.mu.Unlock()

	s.logger.Info("timeline loaded",
		"name", tl.Name,
		"encounter", tl.Encounter,
		"arena", arenaName,
		"duration", graph.Duration(graph.Root()))

	// Announce the session before any mutation command reaches the
	// presenter. The ack wait must not hold the session lock.
	if ann, ok := s.presenter.(scene.Announcer); ok {
		if err := ann.StartSession(tl.Name, tl.Encounter, arenaName); err != nil {
			s.logger.Warn("session start not acknowledged", "timeline", tl.Name, "error", err)
			s.warnings.Push(fmt.Sprintf("session start not acknowledged: %v", err))
		}
	}
	return nil
}

// Loaded reports whether a timeline is installed.
func (s *Session) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tl != nil
}

// Timeline returns the loaded timeline, or nil.
func (s *Session) Timeline() *core.Timeline {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tl
}

// Manager returns the live timeline manager, or nil before Load.
func (s *Session) Manager() *timeline.Manager {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.manager
}

// Graph returns the live segment graph, or nil before Load.
func (s *Session) Graph() *segment.Graph {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.graph
}

// Variations returns the live variation registry, or nil before Load.
func (s *Session) Variations() *variation.Registry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.vars
}

// Arena returns the arena the loaded timeline plays in.
func (s *Session) Arena() arena.Definition {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.arena
}

// LiveCount returns the number of entities in the projected scene.
func (s *Session) LiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.proj == nil {
		return 0
	}
	return s.proj.Count()
}

// Seek drives the scene to a global timestamp. Allowed while paused;
// scrubbing is the main planning gesture.
func (s *Session) Seek(target time.Duration) (timeline.Result, error) {
	mgr, err := s.requireLoaded()
	if err != nil {
		return timeline.Result{}, err
	}
	res, err := mgr.Seek(target)
	if len(res.Warnings) > 0 {
		s.warnings.Push(res.Warnings...)
	}
	return res, err
}

// Tick advances the session one tick: replay catch-up always, and when
// playing, playback time by one tick interval. It reports whether replay
// catch-up work remains.
func (s *Session) Tick() (bool, error) {
	mgr, err := s.requireLoaded()
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	playing := s.playing
	tick := s.cfg.TickRate
	s.mu.Unlock()

	if playing {
		res, err := mgr.Seek(mgr.Current() + tick)
		if err != nil {
			return false, err
		}
		if res.Clamped {
			// Ran off the end of the timeline.
			s.mu.Lock()
			s.playing = false
			s.mu.Unlock()
		}
		if len(res.Warnings) > 0 {
			s.warnings.Push(res.Warnings...)
		}
		return res.CatchUp, nil
	}
	return mgr.Tick()
}

// Pause stops playback. Seeking stays available.
func (s *Session) Pause() error {
	if _, err := s.requireLoaded(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playing = false
	return nil
}

// Resume starts playback from the current timestamp.
func (s *Session) Resume() error {
	if _, err := s.requireLoaded(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playing = true
	return nil
}

// Playing reports whether playback is advancing.
func (s *Session) Playing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing
}

// PinVariation forces a variation to a specific value for what-if
// planning. Allowed any time; the pin takes effect on the variation's
// next resolution.
func (s *Session) PinVariation(id core.VariationID, value string) error {
	s.mu.Lock()
	vars := s.vars
	s.mu.Unlock()
	if vars == nil {
		return fmt.Errorf("pin variation: no timeline loaded")
	}
	return vars.Pin(id, value)
}

// ResetVariations clears all resolved and pinned variation values so the
// next playthrough re-rolls them. Authoring-time only: playback must be
// paused, otherwise already-projected state would contradict re-rolled
// values mid-flight.
func (s *Session) ResetVariations() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.vars == nil {
		return fmt.Errorf("reset variations: no timeline loaded")
	}
	if s.playing {
		return fmt.Errorf("reset variations: %w", core.ErrPlaybackActive)
	}
	s.vars.ResetAll()
	return nil
}

// AddOverride attaches a strat override to one segment instance.
func (s *Session) AddOverride(o core.StratOverride) error {
	mgr, err := s.requireLoaded()
	if err != nil {
		return err
	}
	if _, perr := core.ParseInstancePath(o.Path); perr != nil {
		return perr
	}
	mgr.AddOverride(o)
	return nil
}

// Plan captures the current planning state for persistence: resolved and
// pinned variation values plus all authored overrides.
func (s *Session) Plan(name string) (*core.Plan, error) {
	s.mu.Lock()
	vars := s.vars
	mgr := s.manager
	s.mu.Unlock()
	if mgr == nil {
		return nil, fmt.Errorf("save plan: no timeline loaded")
	}
	return &core.Plan{
		Name:      name,
		Resolved:  vars.Resolved(),
		Overrides: mgr.Overrides(),
	}, nil
}

// ApplyPlan restores a saved plan: pins its variation values and installs
// its overrides.
func (s *Session) ApplyPlan(plan *core.Plan) error {
	s.mu.Lock()
	vars := s.vars
	mgr := s.manager
	s.mu.Unlock()
	if mgr == nil {
		return fmt.Errorf("apply plan: no timeline loaded")
	}
	for id, val := range plan.Resolved {
		if err := vars.Pin(id, val); err != nil {
			return fmt.Errorf("apply plan %q: %w", plan.Name, err)
		}
	}
	mgr.SetOverrides(plan.Overrides)
	return nil
}

// DangersAt reports every live telegraph whose footprint covers a
// position, treating the position as a hitbox of the given radius.
func (s *Session) DangersAt(pos geom.XY, hitboxRadius float64) ([]Danger, error) {
	s.mu.Lock()
	proj := s.proj
	w := s.world
	s.mu.Unlock()
	if proj == nil {
		return nil, fmt.Errorf("dangers: no timeline loaded")
	}

	var out []Danger
	for _, id := range proj.Live() {
		ent, ok := w.Entity(id)
		if !ok || ent.Kind != core.KindTelegraph || ent.Footprint == nil {
			continue
		}
		st, ok := proj.State(id)
		if !ok {
			continue
		}
		if arena.FootprintContains(*ent.Footprint, st, pos, hitboxRadius) {
			out = append(out, Danger{Entity: id, Name: ent.Name, State: st})
		}
	}
	return out, nil
}

// Warnings drains accumulated non-fatal playback warnings.
func (s *Session) Warnings() []string {
	return s.warnings.Drain()
}

// Close tears down the projected scene.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.proj != nil {
		s.proj.Teardown()
	}
	s.tl = nil
	s.manager = nil
}

func (s *Session) requireLoaded() (*timeline.Manager, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.manager == nil {
		return nil, fmt.Errorf("no timeline loaded")
	}
	return s.manager, nil
}
