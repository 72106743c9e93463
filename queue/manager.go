package queue

import (
	"errors"
	"sort"
	"sync"

	apperrors "github.com/kbukum/justconveyor/errors"
)

// Factory creates a queue for a pipeline.
type Factory func(name string) Queue

// Manager owns the queues of a conveyor.
type Manager struct {
	factory Factory

	mu     sync.RWMutex
	queues map[string]Queue
}

// NewManager creates a manager. A nil factory creates InMemory queues.
func NewManager(factory Factory) *Manager {
	if factory == nil {
		factory = func(name string) Queue { return NewInMemory(name) }
	}
	return &Manager{factory: factory, queues: make(map[string]Queue)}
}

// CreateQueue creates and registers a queue. Names must be unique.
func (m *Manager) CreateQueue(name string) (Queue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.queues[name]; ok {
		return nil, apperrors.DuplicateRegistration("queue", name)
	}
	q := m.factory(name)
	m.queues[name] = q
	return q, nil
}

// Get returns a registered queue.
func (m *Manager) Get(name string) (Queue, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	q, ok := m.queues[name]
	return q, ok
}

// Queues returns all queues ordered by name.
func (m *Manager) Queues() []Queue {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Queue, 0, len(m.queues))
	for _, q := range m.queues {
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Close closes every queue; queued packages remain receivable.
func (m *Manager) Close() error {
	var errs []error
	for _, q := range m.Queues() {
		if err := q.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
