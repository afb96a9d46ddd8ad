// Package gormstore implements the storage backend on a GORM database,
// Postgres with automatic SQLite fallback.
package gormstore

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/stratsim/engine/internal/database"
	"github.com/stratsim/engine/internal/model"
	"github.com/stratsim/engine/internal/model/convert"
	"github.com/stratsim/engine/pkg/core"
)

// Store persists timelines and plans through a database manager.
type Store struct {
	db     *database.Manager
	logger zerolog.Logger
}

// New creates a store over a fresh database manager.
func New(log zerolog.Logger) *Store {
	return &Store{
		db:     database.NewManager(log),
		logger: log,
	}
}

// Init connects and migrates the schema.
func (s *Store) Init() error {
	if err := s.db.Connect(); err != nil {
		return fmt.Errorf("storage init: %w", err)
	}
	if err := s.db.Setup(); err != nil {
		return fmt.Errorf("storage init: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveTimeline stores a timeline, replacing any prior version of the same
// name together with its dependent rows. Plans survive replacement only
// by name linkage; they are re-linked to the new row.
func (s *Store) SaveTimeline(tl *core.Timeline) error {
	rec, err := convert.TimelineToModel(tl)
	if err != nil {
		return fmt.Errorf("save timeline %q: %w", tl.Name, err)
	}

	return s.db.DB.Transaction(func(tx *gorm.DB) error {
		var existing model.Timeline
		err := tx.Where("name = ?", tl.Name).First(&existing).Error
		switch {
		case err == nil:
			if err := tx.Select("Segments", "Variations", "Entities", "Scripts", "Overrides").
				Delete(&existing).Error; err != nil {
				return fmt.Errorf("replace timeline %q: %w", tl.Name, err)
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
		default:
			return fmt.Errorf("lookup timeline %q: %w", tl.Name, err)
		}

		if err := tx.Create(rec).Error; err != nil {
			return fmt.Errorf("save timeline %q: %w", tl.Name, err)
		}
		if existing.ID != 0 {
			if err := tx.Model(&model.Plan{}).
				Where("timeline_id = ?", existing.ID).
				Update("timeline_id", rec.ID).Error; err != nil {
				return fmt.Errorf("relink plans of %q: %w", tl.Name, err)
			}
		}
		return nil
	})
}

// LoadTimeline fetches a timeline and all dependent rows by name.
func (s *Store) LoadTimeline(name string) (*core.Timeline, error) {
	rec, err := s.findTimeline(name)
	if err != nil {
		return nil, err
	}
	tl, err := convert.TimelineFromModel(rec)
	if err != nil {
		return nil, fmt.Errorf("load timeline %q: %w", name, err)
	}
	return tl, nil
}

// ListTimelines returns stored timeline names, sorted.
func (s *Store) ListTimelines() ([]string, error) {
	var names []string
	if err := s.db.DB.Model(&model.Timeline{}).
		Order("name").
		Pluck("name", &names).Error; err != nil {
		return nil, fmt.Errorf("list timelines: %w", err)
	}
	return names, nil
}

// SavePlan stores a plan under a timeline, replacing a same-named plan.
func (s *Store) SavePlan(timeline string, plan *core.Plan) error {
	rec, err := s.findTimelineHeader(timeline)
	if err != nil {
		return fmt.Errorf("save plan %q: %w", plan.Name, err)
	}
	row, err := convert.PlanToModel(plan, rec.ID)
	if err != nil {
		return err
	}

	return s.db.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("timeline_id = ? AND name = ?", rec.ID, plan.Name).
			Delete(&model.Plan{}).Error; err != nil {
			return fmt.Errorf("replace plan %q: %w", plan.Name, err)
		}
		if err := tx.Create(row).Error; err != nil {
			return fmt.Errorf("save plan %q: %w", plan.Name, err)
		}
		return nil
	})
}

// LoadPlans returns all plans saved under a timeline.
func (s *Store) LoadPlans(timeline string) ([]*core.Plan, error) {
	rec, err := s.findTimelineHeader(timeline)
	if err != nil {
		return nil, fmt.Errorf("load plans: %w", err)
	}

	var rows []model.Plan
	if err := s.db.DB.Where("timeline_id = ?", rec.ID).
		Order("name").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load plans of %q: %w", timeline, err)
	}

	plans := make([]*core.Plan, 0, len(rows))
	for i := range rows {
		plan, err := convert.PlanFromModel(&rows[i])
		if err != nil {
			return nil, err
		}
		plans = append(plans, plan)
	}
	return plans, nil
}

func (s *Store) findTimelineHeader(name string) (*model.Timeline, error) {
	var rec model.Timeline
	err := s.db.DB.Where("name = ?", name).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("timeline %q not found", name)
	}
	if err != nil {
		return nil, fmt.Errorf("lookup timeline %q: %w", name, err)
	}
	return &rec, nil
}

func (s *Store) findTimeline(name string) (*model.Timeline, error) {
	var rec model.Timeline
	err := s.db.DB.
		Preload("Segments").
		Preload("Segments.Children").
		Preload("Segments.Keyframes").
		Preload("Variations").
		Preload("Entities").
		Preload("Scripts").
		Preload("Overrides").
		Where("name = ?", name).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("timeline %q not found", name)
	}
	if err != nil {
		return nil, fmt.Errorf("lookup timeline %q: %w", name, err)
	}
	return &rec, nil
}
