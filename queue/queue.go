// Package queue provides the per-pipeline package queues a conveyor
// drains. Queues are local to the process and keep nothing across restarts.
package queue

import (
	"context"
	"time"

	"github.com/kbukum/justconveyor/unit"
)

// Queue is an ordered, concurrency-safe channel of packages.
type Queue interface {
	Name() string

	// Publish appends p. It fails once the queue is closed.
	Publish(ctx context.Context, p *unit.Package) error

	// Receive waits up to timeout for the next package. It returns
	// unit.Fake when nothing arrived in time and (nil, nil) once the queue
	// is closed and drained.
	Receive(ctx context.Context, timeout time.Duration) (*unit.Package, error)

	Count() int
	Close() error
}
