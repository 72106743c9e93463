package unit

import (
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/kbukum/justconveyor/errors"
)

// UnitContext is the state of one work item inside a chain.
type UnitContext struct {
	ProcessingID string
	UnitID       string
	Unit         any
	Headers      Headers

	// Err holds a fault an error processor chose to swallow.
	Err error
}

// NewUnitContext creates a context over a copy of headers.
func NewUnitContext(processingID, unitID string, u any, headers Headers) *UnitContext {
	return &UnitContext{
		ProcessingID: processingID,
		UnitID:       unitID,
		Unit:         u,
		Headers:      headers.Clone(),
	}
}

// Child derives the context of the index-th item produced by a splitter.
func (uc *UnitContext) Child(index int, u any) *UnitContext {
	return NewUnitContext(uc.ProcessingID, fmt.Sprintf("%s:%d", uc.UnitID, index), u, uc.Headers)
}

func (uc *UnitContext) String() string {
	return fmt.Sprint(uc.Unit)
}

// As returns the unit converted to T.
func As[T any](uc *UnitContext) (T, error) {
	var zero T
	typed, ok := uc.Unit.(T)
	if !ok {
		return zero, errors.UnitTypeMismatch(uc.UnitID, fmt.Sprintf("%T", uc.Unit), fmt.Sprintf("%T", zero))
	}
	return typed, nil
}

// Bucket is one group produced by a collector, in first-seen key order.
type Bucket struct {
	Key   string
	Units []*UnitContext
}

// ProcessingInfo is one entry of a run's step history.
type ProcessingInfo struct {
	StepName   string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Finished reports whether the step has completed.
func (pi *ProcessingInfo) Finished() bool {
	return !pi.FinishedAt.IsZero()
}

// Duration is the step's elapsed time, up to now while it still runs.
func (pi *ProcessingInfo) Duration() time.Duration {
	if pi.FinishedAt.IsZero() {
		return time.Since(pi.StartedAt)
	}
	return pi.FinishedAt.Sub(pi.StartedAt)
}

// TransferingContext is the state of one package's run through a pipeline.
// It is read concurrently by snapshots while the run mutates it.
type TransferingContext struct {
	ID        string
	StartedAt time.Time

	mu      sync.RWMutex
	headers Headers
	meta    map[string]string
	steps   []*ProcessingInfo
	final   *UnitContext
	err     error
}

// NewTransferingContext creates a run context stamped with the current time.
func NewTransferingContext(id string, headers Headers) *TransferingContext {
	return &TransferingContext{
		ID:        id,
		StartedAt: time.Now(),
		headers:   headers.Clone(),
		meta:      make(map[string]string),
	}
}

// PushStep opens a new history entry; the caller must pass it to FinishStep.
func (tc *TransferingContext) PushStep(name string) *ProcessingInfo {
	info := &ProcessingInfo{StepName: name, StartedAt: time.Now()}
	tc.mu.Lock()
	tc.steps = append(tc.steps, info)
	tc.mu.Unlock()
	return info
}

// FinishStep stamps the end of a step opened by PushStep.
func (tc *TransferingContext) FinishStep(info *ProcessingInfo) {
	tc.mu.Lock()
	info.FinishedAt = time.Now()
	tc.mu.Unlock()
}

// History returns a copy of the step history, most recent first.
func (tc *TransferingContext) History() []ProcessingInfo {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	out := make([]ProcessingInfo, 0, len(tc.steps))
	for i := len(tc.steps) - 1; i >= 0; i-- {
		out = append(out, *tc.steps[i])
	}
	return out
}

// CurrentStep returns the most recently pushed step name.
func (tc *TransferingContext) CurrentStep() string {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	if len(tc.steps) == 0 {
		return ""
	}
	return tc.steps[len(tc.steps)-1].StepName
}

// SetHeader creates or replaces a run-level header.
func (tc *TransferingContext) SetHeader(name string, value any) {
	tc.mu.Lock()
	tc.headers.Set(name, value)
	tc.mu.Unlock()
}

// Header returns a run-level header.
func (tc *TransferingContext) Header(name string) (any, bool) {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.headers.Get(name)
}

// SetMeta records a diagnostic value shown in snapshots.
func (tc *TransferingContext) SetMeta(key, value string) {
	tc.mu.Lock()
	tc.meta[key] = value
	tc.mu.Unlock()
}

// Meta returns a copy of the diagnostic values.
func (tc *TransferingContext) Meta() map[string]string {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return maps.Clone(tc.meta)
}

func (tc *TransferingContext) SetFinal(uc *UnitContext) {
	tc.mu.Lock()
	tc.final = uc
	tc.mu.Unlock()
}

// Final returns the unit context stored by the terminator, or nil.
func (tc *TransferingContext) Final() *UnitContext {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.final
}

func (tc *TransferingContext) SetErr(err error) {
	tc.mu.Lock()
	tc.err = err
	tc.mu.Unlock()
}

// Err returns the fault that ended the run, if any.
func (tc *TransferingContext) Err() error {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.err
}

// Result returns the final unit converted to T.
func Result[T any](tc *TransferingContext) (T, error) {
	final := tc.Final()
	if final == nil {
		var zero T
		if err := tc.Err(); err != nil {
			return zero, err
		}
		return zero, errors.UnitTypeMismatch(tc.ID, "<nil>", fmt.Sprintf("%T", zero))
	}
	return As[T](final)
}
