package unit

import "time"

// Profile records the timing of one package's trip through the conveyor.
type Profile struct {
	QueuedAt   time.Time `json:"queued_at"`
	DequeuedAt time.Time `json:"dequeued_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// WaitTime is the time the package spent on its queue.
func (p Profile) WaitTime() time.Duration {
	if p.QueuedAt.IsZero() || p.DequeuedAt.IsZero() {
		return 0
	}
	return p.DequeuedAt.Sub(p.QueuedAt)
}

// ProcessTime is the time between dequeue and the end of finalization.
func (p Profile) ProcessTime() time.Duration {
	if p.DequeuedAt.IsZero() || p.FinishedAt.IsZero() {
		return 0
	}
	return p.FinishedAt.Sub(p.DequeuedAt)
}

// Package is the envelope a supplier hands to the conveyor.
type Package struct {
	ID      string
	Label   string
	Headers Headers
	Load    any

	// DeliveryBoxID is set only for synchronous round-trips.
	DeliveryBoxID string

	profile Profile
}

// Fake is returned by queues and suppliers when nothing is available yet.
var Fake = &Package{ID: "$fake"}

// IsFake reports whether p is the empty-queue sentinel.
func IsFake(p *Package) bool {
	return p == Fake
}

// SetHeader sets a header, allocating the header map on first use.
func (p *Package) SetHeader(name string, value any) *Package {
	if p.Headers == nil {
		p.Headers = make(Headers)
	}
	p.Headers.Set(name, value)
	return p
}

// Profile returns the timing profile of the package.
func (p *Package) Profile() Profile {
	return p.profile
}

func (p *Package) MarkQueued(t time.Time)   { p.profile.QueuedAt = t }
func (p *Package) MarkDequeued(t time.Time) { p.profile.DequeuedAt = t }
func (p *Package) MarkFinished(t time.Time) { p.profile.FinishedAt = t }
