// Package variation implements the session-scoped registry of named
// random variables. Resolution is monotonic: once a value is assigned it
// stays fixed for the session regardless of seek direction, until an
// explicit authoring-time reset.
package variation

import (
	"fmt"
	"log/slog"
	"math/rand"
	"sort"
	"sync"

	"github.com/stratsim/engine/pkg/core"
)

type entry struct {
	domain   []string
	def      string
	pinned   string
	hasPin   bool
	value    string
	resolved bool
}

// Registry maps variation ids to their domain and current value. It is
// owned by one loaded timeline/planning session; Reset marks the explicit
// lifecycle boundary on reload or replan.
type Registry struct {
	mu     sync.Mutex
	rng    *rand.Rand
	logger *slog.Logger
	vars   map[core.VariationID]*entry
}

// NewRegistry creates a registry whose unpinned resolutions sample from a
// deterministic source seeded with seed.
func NewRegistry(seed int64, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		rng:    rand.New(rand.NewSource(seed)),
		logger: logger,
		vars:   make(map[core.VariationID]*entry),
	}
}

// Register declares a variation with its domain and default value.
func (r *Registry) Register(id core.VariationID, domain []string, def string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.vars[id]; ok {
		return fmt.Errorf("register %q: %w", id, core.ErrDuplicateVariation)
	}
	if len(domain) == 0 {
		return fmt.Errorf("register %q: empty domain: %w", id, core.ErrMalformedTimeline)
	}
	r.vars[id] = &entry{domain: append([]string(nil), domain...), def: def}
	return nil
}

// Registered reports whether id has been declared.
func (r *Registry) Registered(id core.VariationID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.vars[id]
	return ok
}

// Pin fixes a variation to an author-chosen value for planning. Pinning
// after resolution re-targets subsequent resolves only after a reset.
func (r *Registry) Pin(id core.VariationID, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.vars[id]
	if !ok {
		return fmt.Errorf("pin %q: %w", id, core.ErrUnknownVariation)
	}
	if !contains(e.domain, value) {
		return fmt.Errorf("pin %q to %q (domain %v): %w", id, value, e.domain, core.ErrUnknownValue)
	}
	e.pinned = value
	e.hasPin = true
	return nil
}

// Resolve returns the variation's value, assigning one on first call:
// the pinned value in planning mode, otherwise a uniform sample from the
// domain. Idempotent afterward for the rest of the session.
func (r *Registry) Resolve(id core.VariationID) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.vars[id]
	if !ok {
		return "", fmt.Errorf("resolve %q: %w", id, core.ErrUnknownVariation)
	}
	if e.resolved {
		return e.value, nil
	}
	if e.hasPin {
		e.value = e.pinned
	} else {
		e.value = e.domain[r.rng.Intn(len(e.domain))]
	}
	e.resolved = true
	r.logger.Debug("variation resolved", "id", id, "value", e.value, "pinned", e.hasPin)
	return e.value, nil
}

// Peek returns the current value without resolving. ok is false while the
// variation is unresolved.
func (r *Registry) Peek(id core.VariationID) (string, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.vars[id]
	if !ok {
		return "", false, fmt.Errorf("peek %q: %w", id, core.ErrUnknownVariation)
	}
	return e.value, e.resolved, nil
}

// Default returns the declared default value.
func (r *Registry) Default(id core.VariationID) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.vars[id]
	if !ok {
		return "", fmt.Errorf("default %q: %w", id, core.ErrUnknownVariation)
	}
	return e.def, nil
}

// Reset clears one variation's resolution. Authoring-only: callers must
// ensure playback is paused.
func (r *Registry) Reset(id core.VariationID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.vars[id]
	if !ok {
		return fmt.Errorf("reset %q: %w", id, core.ErrUnknownVariation)
	}
	e.resolved = false
	e.value = ""
	return nil
}

// ResetAll clears every resolution, used on timeline reload/replan.
func (r *Registry) ResetAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.vars {
		e.resolved = false
		e.value = ""
	}
}

// Resolved returns a copy of all currently-resolved values, for plan
// persistence.
func (r *Registry) Resolved() map[core.VariationID]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[core.VariationID]string)
	for id, e := range r.vars {
		if e.resolved {
			out[id] = e.value
		}
	}
	return out
}

// IDs returns all registered ids in sorted order.
func (r *Registry) IDs() []core.VariationID {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]core.VariationID, 0, len(r.vars))
	for id := range r.vars {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func contains(domain []string, v string) bool {
	for _, d := range domain {
		if d == v {
			return true
		}
	}
	return false
}
