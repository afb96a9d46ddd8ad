// Package monitor periodically snapshots session status and ships it to
// the metrics sink.
package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/stratsim/engine/internal/influx"
	"github.com/stratsim/engine/internal/session"
)

// Dependencies holds all dependencies for the monitor service.
type Dependencies struct {
	Logger  *slog.Logger
	Session *session.Session
	Influx  *influx.Manager
}

// Status is one snapshot of the running session.
type Status struct {
	Time           time.Time     `json:"time"`
	Timeline       string        `json:"timeline"`
	Playing        bool          `json:"playing"`
	Current        time.Duration `json:"current"`
	LiveEntities   int           `json:"liveEntities"`
	Seeks          uint64        `json:"seeks"`
	ClampedSeeks   uint64        `json:"clampedSeeks"`
	LastSeekMs     float64       `json:"lastSeekMs"`
	CatchUpPending bool          `json:"catchUpPending"`
}

// Service manages status monitoring.
type Service struct {
	deps      Dependencies
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
}

// NewService creates a new monitor service.
func NewService(deps Dependencies) *Service {
	return &Service{
		deps:     deps,
		stopChan: make(chan struct{}),
	}
}

// IsRunning returns whether the status monitor is running.
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// GetStatus returns the current session status.
func (s *Service) GetStatus() (Status, error) {
	sess := s.deps.Session
	if !sess.Loaded() {
		return Status{Time: time.Now()}, fmt.Errorf("no timeline loaded")
	}
	mgr := sess.Manager()
	stats := mgr.Statistics()
	return Status{
		Time:           time.Now(),
		Timeline:       sess.Timeline().Name,
		Playing:        sess.Playing(),
		Current:        mgr.Current(),
		LiveEntities:   sess.LiveCount(),
		Seeks:          stats.Seeks,
		ClampedSeeks:   stats.ClampedSeeks,
		LastSeekMs:     float64(stats.LastSeekDuration) / float64(time.Millisecond),
		CatchUpPending: stats.CatchUpPending,
	}, nil
}

// StatusJSON renders the current status for the :STATUS: command.
func (s *Service) StatusJSON() string {
	status, err := s.GetStatus()
	if err != nil {
		return fmt.Sprintf(`{"error": %q}`, err.Error())
	}
	out, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return fmt.Sprintf(`{"error": %q}`, err.Error())
	}
	return string(out)
}

// Start begins periodic status reporting at the given interval.
func (s *Service) Start(interval time.Duration) {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = true
	s.mu.Unlock()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.stopChan:
				return
			case <-ticker.C:
				s.report()
			}
		}
	}()
}

func (s *Service) report() {
	status, err := s.GetStatus()
	if err != nil {
		return
	}
	s.deps.Logger.Debug("session status",
		"timeline", status.Timeline,
		"playing", status.Playing,
		"current", status.Current,
		"seeks", status.Seeks)

	if s.deps.Influx != nil {
		sess := s.deps.Session
		mgr := sess.Manager()
		if mgr == nil {
			return
		}
		ctx := context.Background()
		if err := s.deps.Influx.WritePlaybackStats(ctx, status.Timeline, mgr.Statistics()); err != nil {
			s.deps.Logger.Debug("playback stats write failed", "error", err)
		}
		if err := s.deps.Influx.WriteSceneSize(ctx, status.Timeline, status.LiveEntities); err != nil {
			s.deps.Logger.Debug("scene size write failed", "error", err)
		}
	}
}

// Stop halts periodic reporting.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isRunning {
		return
	}
	s.isRunning = false
	close(s.stopChan)
}
