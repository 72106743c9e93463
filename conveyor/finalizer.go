package conveyor

import (
	"sync"
	"sync/atomic"

	"github.com/kbukum/justconveyor/unit"
)

// Finalizer counts finished packages and signals once a target is reached.
// Its Func is meant for WithFinalizer or WithPipelineFinalizer.
type Finalizer struct {
	target int64
	seen   atomic.Int64
	failed atomic.Int64
	once   sync.Once
	done   chan struct{}
	when   func(p *unit.Package, tc *unit.TransferingContext) bool
	then   func(p *unit.Package, tc *unit.TransferingContext) error
}

// CountFinalizer closes Done after n packages finished.
func CountFinalizer(n int) *Finalizer {
	return &Finalizer{target: int64(n), done: make(chan struct{})}
}

// When restricts the finalizer to packages for which pred holds. Other
// packages are neither counted nor passed to Then.
func (f *Finalizer) When(pred func(p *unit.Package, tc *unit.TransferingContext) bool) *Finalizer {
	f.when = pred
	return f
}

// Then runs fn for every finished package before counting it.
func (f *Finalizer) Then(fn func(p *unit.Package, tc *unit.TransferingContext) error) *Finalizer {
	f.then = fn
	return f
}

// Func returns the finalizer callback.
func (f *Finalizer) Func() FinalizerFunc {
	return func(p *unit.Package, tc *unit.TransferingContext) error {
		if f.when != nil && !f.when(p, tc) {
			return nil
		}
		defer f.count(tc)
		if f.then != nil {
			return f.then(p, tc)
		}
		return nil
	}
}

func (f *Finalizer) count(tc *unit.TransferingContext) {
	if tc.Err() != nil {
		f.failed.Add(1)
	}
	if f.seen.Add(1) >= f.target {
		f.once.Do(func() { close(f.done) })
	}
}

// Done is closed once the target count is reached.
func (f *Finalizer) Done() <-chan struct{} { return f.done }

// Seen is the number of packages counted so far.
func (f *Finalizer) Seen() int64 { return f.seen.Load() }

// Failed is the number of counted packages whose pipeline failed.
func (f *Finalizer) Failed() int64 { return f.failed.Load() }
