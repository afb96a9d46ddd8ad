// Package queue provides the small thread-safe containers used by the
// dispatcher and the session: a FIFO for accumulated warnings and a
// latest-wins mailbox for coalesced seek requests.
package queue

import "sync"

// Queue is a generic thread-safe FIFO.
type Queue[T any] struct {
	mu    sync.Mutex
	items []T
}

// New creates an empty queue.
func New[T any]() *Queue[T] {
	return &Queue[T]{items: make([]T, 0)}
}

// Push appends items to the queue.
func (q *Queue[T]) Push(items ...T) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, items...)
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Drain returns all items and leaves the queue empty.
func (q *Queue[T]) Drain() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.items
	q.items = make([]T, 0, cap(q.items))
	return out
}

// Mailbox holds at most one value. Put replaces any pending value, so a
// consumer always observes the most recent request and intermediate ones
// are dropped, not queued.
type Mailbox[T any] struct {
	mu      sync.Mutex
	value   T
	present bool
}

// Put stores v, replacing any pending value. It reports whether a pending
// value was overwritten.
func (m *Mailbox[T]) Put(v T) (replaced bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	replaced = m.present
	m.value = v
	m.present = true
	return replaced
}

// Take removes and returns the pending value, if any.
func (m *Mailbox[T]) Take() (T, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.present {
		var zero T
		return zero, false
	}
	v := m.value
	var zero T
	m.value = zero
	m.present = false
	return v, true
}
