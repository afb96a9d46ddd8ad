// Package memory implements the storage backend as in-process maps with
// optional gzip-compressed JSON export for sharing timelines.
package memory

import (
	"fmt"
	"sort"
	"sync"

	"github.com/stratsim/engine/internal/config"
	"github.com/stratsim/engine/pkg/core"
)

// Memory is an in-process storage backend.
type Memory struct {
	cfg config.MemoryConfig

	mu        sync.RWMutex
	timelines map[string]*core.Timeline
	plans     map[string][]*core.Plan
}

// New creates an empty in-memory backend.
func New(cfg config.MemoryConfig) *Memory {
	return &Memory{
		cfg:       cfg,
		timelines: make(map[string]*core.Timeline),
		plans:     make(map[string][]*core.Plan),
	}
}

func (m *Memory) Init() error  { return nil }
func (m *Memory) Close() error { return nil }

// SaveTimeline stores a timeline, replacing any prior version of the same
// name.
func (m *Memory) SaveTimeline(tl *core.Timeline) error {
	if tl.Name == "" {
		return fmt.Errorf("save timeline: empty name")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.timelines[tl.Name] = tl
	return nil
}

// LoadTimeline fetches a timeline by name.
func (m *Memory) LoadTimeline(name string) (*core.Timeline, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tl, ok := m.timelines[name]
	if !ok {
		return nil, fmt.Errorf("timeline %q not found", name)
	}
	return tl, nil
}

// ListTimelines returns stored timeline names, sorted.
func (m *Memory) ListTimelines() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.timelines))
	for name := range m.timelines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// SavePlan stores a plan under a timeline, replacing a same-named plan.
func (m *Memory) SavePlan(timeline string, plan *core.Plan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.timelines[timeline]; !ok {
		return fmt.Errorf("save plan %q: timeline %q not found", plan.Name, timeline)
	}
	plans := m.plans[timeline]
	for i, p := range plans {
		if p.Name == plan.Name {
			plans[i] = plan
			return nil
		}
	}
	m.plans[timeline] = append(plans, plan)
	return nil
}

// LoadPlans returns all plans saved under a timeline.
func (m *Memory) LoadPlans(timeline string) ([]*core.Plan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*core.Plan(nil), m.plans[timeline]...), nil
}
