// Package storage defines the persistence interface for timelines and
// plans, with in-memory and database implementations.
package storage

import "github.com/stratsim/engine/pkg/core"

// Backend is the interface all storage implementations must satisfy
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Timeline persistence
	SaveTimeline(tl *core.Timeline) error
	LoadTimeline(name string) (*core.Timeline, error)
	ListTimelines() ([]string, error)

	// Plan persistence, keyed by timeline name
	SavePlan(timeline string, plan *core.Plan) error
	LoadPlans(timeline string) ([]*core.Plan, error)
}

// Exportable is an optional interface for backends that can write a
// timeline out as a shareable document file.
type Exportable interface {
	ExportTimeline(name, outputDir string) (string, error)
}
