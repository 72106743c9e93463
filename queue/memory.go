package queue

import (
	"context"
	"sync"
	"time"

	"github.com/kbukum/justconveyor/errors"
	"github.com/kbukum/justconveyor/unit"
)

// InMemory is a FIFO queue backed by a slice. Waiting receivers are woken
// through a channel that is closed and replaced on every state change.
type InMemory struct {
	name string

	mu     sync.Mutex
	items  []*unit.Package
	closed bool
	notify chan struct{}
}

// NewInMemory creates an empty queue.
func NewInMemory(name string) *InMemory {
	return &InMemory{name: name, notify: make(chan struct{})}
}

func (q *InMemory) Name() string { return q.name }

func (q *InMemory) Publish(_ context.Context, p *unit.Package) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return errors.QueueClosed(q.name)
	}
	p.MarkQueued(time.Now())
	q.items = append(q.items, p)
	q.broadcast()
	return nil
}

func (q *InMemory) Receive(ctx context.Context, timeout time.Duration) (*unit.Package, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			p := q.items[0]
			q.items[0] = nil
			q.items = q.items[1:]
			q.mu.Unlock()
			return p, nil
		}
		if q.closed {
			q.mu.Unlock()
			return nil, nil
		}
		wake := q.notify
		q.mu.Unlock()

		select {
		case <-wake:
		case <-timer.C:
			return unit.Fake, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (q *InMemory) Count() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close stops intake. Queued packages stay receivable.
func (q *InMemory) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		q.broadcast()
	}
	return nil
}

// broadcast must be called with mu held.
func (q *InMemory) broadcast() {
	close(q.notify)
	q.notify = make(chan struct{})
}
