// Package handlers wires the planning commands onto the dispatcher.
package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/peterstace/simplefeatures/geom"

	"github.com/stratsim/engine/internal/dispatcher"
	"github.com/stratsim/engine/internal/monitor"
	"github.com/stratsim/engine/internal/parser"
	"github.com/stratsim/engine/internal/session"
	"github.com/stratsim/engine/internal/storage"
	"github.com/stratsim/engine/pkg/core"
)

// Command names accepted by the dispatcher.
const (
	CmdTimelineLoad   = ":TIMELINE:LOAD:"
	CmdTimelineList   = ":TIMELINE:LIST:"
	CmdSeek           = ":SEEK:"
	CmdTick           = ":TICK:"
	CmdPause          = ":PAUSE:"
	CmdResume         = ":RESUME:"
	CmdVariationPin   = ":VARIATION:PIN:"
	CmdVariationReset = ":VARIATION:RESET:"
	CmdOverrideSet    = ":OVERRIDE:SET:"
	CmdPlanSave       = ":PLAN:SAVE:"
	CmdPlanLoad       = ":PLAN:LOAD:"
	CmdDangers        = ":DANGERS:"
	CmdStatus         = ":STATUS:"
	CmdWarnings       = ":WARNINGS:"
)

// Dependencies holds all dependencies needed by handlers.
type Dependencies struct {
	Logger  *slog.Logger
	Session *session.Session
	Backend storage.Backend
	Parser  *parser.Parser
	Monitor *monitor.Service
}

// Service provides handler methods for the planning commands.
type Service struct {
	deps Dependencies
}

// NewService creates a new handler service.
func NewService(deps Dependencies) *Service {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Service{deps: deps}
}

// RegisterHandlers attaches every command to the dispatcher. Seeks are
// coalesced: scrubbing the timeline produces bursts where only the latest
// target matters.
func (s *Service) RegisterHandlers(d *dispatcher.Dispatcher) {
	d.Register(CmdTimelineLoad, s.HandleTimelineLoad, dispatcher.Logged())
	d.Register(CmdTimelineList, s.HandleTimelineList)
	d.Register(CmdSeek, s.HandleSeek, dispatcher.Coalesced(), dispatcher.Logged())
	d.Register(CmdTick, s.HandleTick)
	d.Register(CmdPause, s.HandlePause, dispatcher.Logged())
	d.Register(CmdResume, s.HandleResume, dispatcher.Logged())
	d.Register(CmdVariationPin, s.HandleVariationPin, dispatcher.Logged())
	d.Register(CmdVariationReset, s.HandleVariationReset, dispatcher.Logged())
	d.Register(CmdOverrideSet, s.HandleOverrideSet, dispatcher.Logged())
	d.Register(CmdPlanSave, s.HandlePlanSave, dispatcher.Logged())
	d.Register(CmdPlanLoad, s.HandlePlanLoad, dispatcher.Logged())
	d.Register(CmdDangers, s.HandleDangers)
	d.Register(CmdStatus, s.HandleStatus)
	d.Register(CmdWarnings, s.HandleWarnings)
}

// HandleTimelineLoad loads a stored timeline by name into the session.
func (s *Service) HandleTimelineLoad(e dispatcher.Event) (any, error) {
	if len(e.Args) < 1 {
		return nil, fmt.Errorf("%s requires a timeline name", CmdTimelineLoad)
	}
	name := e.Args[0]
	tl, err := s.deps.Backend.LoadTimeline(name)
	if err != nil {
		return nil, err
	}
	if err := s.deps.Session.Load(tl); err != nil {
		return nil, err
	}
	return "loaded", nil
}

// HandleTimelineList returns stored timeline names as JSON.
func (s *Service) HandleTimelineList(e dispatcher.Event) (any, error) {
	names, err := s.deps.Backend.ListTimelines()
	if err != nil {
		return nil, err
	}
	out, err := json.Marshal(names)
	if err != nil {
		return nil, err
	}
	return string(out), nil
}

// HandleSeek drives the scene to args[0] seconds.
func (s *Service) HandleSeek(e dispatcher.Event) (any, error) {
	if len(e.Args) < 1 {
		return nil, fmt.Errorf("%s requires a timestamp in seconds", CmdSeek)
	}
	target, err := parser.ParseSeconds(e.Args[0])
	if err != nil {
		return nil, err
	}
	res, err := s.deps.Session.Seek(target)
	if err != nil {
		return nil, err
	}
	out, err := json.Marshal(res)
	if err != nil {
		return nil, err
	}
	return string(out), nil
}

// HandleTick advances the session one tick.
func (s *Service) HandleTick(e dispatcher.Event) (any, error) {
	pending, err := s.deps.Session.Tick()
	if err != nil {
		return nil, err
	}
	if pending {
		return "catching-up", nil
	}
	return "idle", nil
}

// HandlePause stops playback.
func (s *Service) HandlePause(e dispatcher.Event) (any, error) {
	if err := s.deps.Session.Pause(); err != nil {
		return nil, err
	}
	return "paused", nil
}

// HandleResume starts playback from the current timestamp.
func (s *Service) HandleResume(e dispatcher.Event) (any, error) {
	if err := s.deps.Session.Resume(); err != nil {
		return nil, err
	}
	return "playing", nil
}

// HandleVariationPin pins args[0] to args[1].
func (s *Service) HandleVariationPin(e dispatcher.Event) (any, error) {
	if len(e.Args) < 2 {
		return nil, fmt.Errorf("%s requires a variation id and a value", CmdVariationPin)
	}
	if err := s.deps.Session.PinVariation(core.VariationID(e.Args[0]), e.Args[1]); err != nil {
		return nil, err
	}
	return "pinned", nil
}

// HandleVariationReset clears all resolved and pinned variation values.
func (s *Service) HandleVariationReset(e dispatcher.Event) (any, error) {
	if err := s.deps.Session.ResetVariations(); err != nil {
		return nil, err
	}
	return "reset", nil
}

// HandleOverrideSet authors a strat override on one segment instance:
// args are path, frame, entity, x, y, facing.
func (s *Service) HandleOverrideSet(e dispatcher.Event) (any, error) {
	if len(e.Args) < 5 {
		return nil, fmt.Errorf("%s requires path, frame, entity, x, y", CmdOverrideSet)
	}
	x, err := strconv.ParseFloat(e.Args[3], 64)
	if err != nil {
		return nil, fmt.Errorf("parse x %q: %w", e.Args[3], err)
	}
	y, err := strconv.ParseFloat(e.Args[4], 64)
	if err != nil {
		return nil, fmt.Errorf("parse y %q: %w", e.Args[4], err)
	}
	var facing float64
	if len(e.Args) > 5 {
		facing, err = strconv.ParseFloat(e.Args[5], 64)
		if err != nil {
			return nil, fmt.Errorf("parse facing %q: %w", e.Args[5], err)
		}
	}
	o := core.StratOverride{
		Path:   e.Args[0],
		Frame:  e.Args[1],
		Entity: core.EntityID(e.Args[2]),
		State: core.PropertyState{
			Pos:    geom.XY{X: x, Y: y},
			Facing: facing,
		},
	}
	if err := s.deps.Session.AddOverride(o); err != nil {
		return nil, err
	}
	return "set", nil
}

// HandlePlanSave captures the session's plan under args[0] and persists it.
func (s *Service) HandlePlanSave(e dispatcher.Event) (any, error) {
	if len(e.Args) < 1 {
		return nil, fmt.Errorf("%s requires a plan name", CmdPlanSave)
	}
	plan, err := s.deps.Session.Plan(e.Args[0])
	if err != nil {
		return nil, err
	}
	tl := s.deps.Session.Timeline()
	if err := s.deps.Backend.SavePlan(tl.Name, plan); err != nil {
		return nil, err
	}
	return "saved", nil
}

// HandlePlanLoad restores a saved plan by name into the session.
func (s *Service) HandlePlanLoad(e dispatcher.Event) (any, error) {
	if len(e.Args) < 1 {
		return nil, fmt.Errorf("%s requires a plan name", CmdPlanLoad)
	}
	tl := s.deps.Session.Timeline()
	if tl == nil {
		return nil, fmt.Errorf("no timeline loaded")
	}
	plans, err := s.deps.Backend.LoadPlans(tl.Name)
	if err != nil {
		return nil, err
	}
	for _, plan := range plans {
		if plan.Name == e.Args[0] {
			if err := s.deps.Session.ApplyPlan(plan); err != nil {
				return nil, err
			}
			return "applied", nil
		}
	}
	return nil, fmt.Errorf("plan %q not found", e.Args[0])
}

// HandleDangers reports live telegraphs covering the position in
// args[0], args[1], with an optional hitbox radius in args[2].
func (s *Service) HandleDangers(e dispatcher.Event) (any, error) {
	if len(e.Args) < 2 {
		return nil, fmt.Errorf("%s requires x and y", CmdDangers)
	}
	x, err := strconv.ParseFloat(e.Args[0], 64)
	if err != nil {
		return nil, fmt.Errorf("parse x %q: %w", e.Args[0], err)
	}
	y, err := strconv.ParseFloat(e.Args[1], 64)
	if err != nil {
		return nil, fmt.Errorf("parse y %q: %w", e.Args[1], err)
	}
	var radius float64
	if len(e.Args) > 2 {
		radius, err = strconv.ParseFloat(e.Args[2], 64)
		if err != nil {
			return nil, fmt.Errorf("parse radius %q: %w", e.Args[2], err)
		}
	}
	dangers, err := s.deps.Session.DangersAt(geom.XY{X: x, Y: y}, radius)
	if err != nil {
		return nil, err
	}
	out, err := json.Marshal(dangers)
	if err != nil {
		return nil, err
	}
	return string(out), nil
}

// HandleStatus returns the monitor's status snapshot as JSON.
func (s *Service) HandleStatus(e dispatcher.Event) (any, error) {
	if s.deps.Monitor == nil {
		return nil, fmt.Errorf("monitor not configured")
	}
	return s.deps.Monitor.StatusJSON(), nil
}

// HandleWarnings drains accumulated playback warnings as JSON.
func (s *Service) HandleWarnings(e dispatcher.Event) (any, error) {
	warnings := s.deps.Session.Warnings()
	out, err := json.Marshal(warnings)
	if err != nil {
		return nil, err
	}
	return string(out), nil
}
