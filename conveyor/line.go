package conveyor

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/kbukum/justconveyor/errors"
	"github.com/kbukum/justconveyor/logger"
	"github.com/kbukum/justconveyor/observability"
	"github.com/kbukum/justconveyor/unit"
)

// LineState is the lifecycle state of a worker line.
type LineState int32

const (
	LineInitialized LineState = iota
	LineWaitForMessage
	LineProcessing
	LineFinished
)

func (s LineState) String() string {
	switch s {
	case LineInitialized:
		return "Initialized"
	case LineWaitForMessage:
		return "WaitForMessage"
	case LineProcessing:
		return "Processing"
	default:
		return "Finished"
	}
}

// FinalizationStep is the history entry finalizers run under.
const FinalizationStep = "FINALIZATION"

type line struct {
	id    string
	w     *wrapper
	state atomic.Int32
}

func (l *line) State() LineState { return LineState(l.state.Load()) }

func (l *line) setState(s LineState) { l.state.Store(int32(s)) }

// cooldown wakes idle lines on every tick.
type cooldown struct {
	mu sync.Mutex
	ch chan struct{}
}

func newCooldown() *cooldown {
	return &cooldown{ch: make(chan struct{})}
}

func (c *cooldown) wait() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ch
}

func (c *cooldown) release() {
	c.mu.Lock()
	close(c.ch)
	c.ch = make(chan struct{})
	c.mu.Unlock()
}

// runLine drains the wrapper queue until it is closed and empty.
func (c *Conveyor) runLine(ctx context.Context, l *line) {
	defer c.wg.Done()
	defer l.setState(LineFinished)

	log := c.log.WithFields(logger.Fields(logger.FieldLine, l.id))
	for {
		l.setState(LineWaitForMessage)
		p, err := l.w.queue.Receive(ctx, c.settings.ReceiveTimeout)
		if err != nil {
			log.Error("receive failed", logger.Fields(logger.FieldError, err))
			return
		}
		if p == nil {
			return
		}
		if unit.IsFake(p) {
			log.Trace("queue idle")
			select {
			case <-c.cooldown.wait():
			case <-c.stopped:
			}
			continue
		}
		l.setState(LineProcessing)
		c.handle(ctx, l, p)
	}
}

// handle runs one package through the line pipeline, delivers the result
// to a waiting caller and runs the finalizers.
func (c *Conveyor) handle(ctx context.Context, l *line, p *unit.Package) {
	w := l.w
	p.MarkDequeued(time.Now())
	w.counters.in.Add(1)
	c.metrics.RecordPackageIn(ctx, w.pipeline.Name(), p.Profile().WaitTime())

	tc := unit.NewTransferingContext(fmt.Sprintf("%s:%s:%s", p.ID, l.id, uuid.NewString()), nil)
	tc.SetMeta("ID", tc.ID)
	tc.SetMeta("Package label", p.Label)
	tc.SetMeta("Package ID", p.ID)
	c.contexts.Store(tc.ID, tc)

	ctx, span := observability.StartPackageSpan(ctx, w.pipeline.Name(), p.ID, p.Label)
	defer span.End()

	uc := unit.NewUnitContext(uuid.NewString(), p.ID, p.Load, p.Headers)
	err := guard(tc, func() error { return w.pipeline.Process(ctx, tc, uc) })
	if err != nil {
		w.counters.errs.Add(1)
		observability.SetSpanError(ctx, err)
		c.log.WithContext(ctx).Error("package failed", logger.Fields(
			logger.FieldPipeline, w.pipeline.ID(),
			logger.FieldPackageID, p.ID,
			logger.FieldContextID, tc.ID,
			logger.FieldError, err,
		))
	}

	if p.DeliveryBoxID != "" && !c.boxes.deliver(p.DeliveryBoxID, delivery{tc: tc, err: err}) {
		c.log.Warn("no caller waiting for package", logger.Fields(logger.FieldPackageID, p.ID))
	}

	c.finalize(w, p, tc)

	c.contexts.Delete(tc.ID)
	w.counters.out.Add(1)
	p.MarkFinished(time.Now())
	w.counters.record(p.Profile())
	c.metrics.RecordPackageOut(ctx, w.pipeline.Name(), p.Profile().ProcessTime(), err != nil)
}

// guard runs fn and turns a panic into an internal fault recorded on tc,
// so the line survives and the finalizers still see the package.
func guard(tc *unit.TransferingContext, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Internal(fmt.Errorf("pipeline panicked: %v", r))
			tc.SetErr(err)
		}
	}()
	return fn()
}

func (c *Conveyor) finalize(w *wrapper, p *unit.Package, tc *unit.TransferingContext) {
	if len(w.finalizers) == 0 && len(c.finalizers) == 0 {
		return
	}
	info := tc.PushStep(FinalizationStep)
	defer tc.FinishStep(info)

	for _, f := range w.finalizers {
		c.runFinalizer(f, p, tc)
	}
	for _, f := range c.finalizers {
		c.runFinalizer(f, p, tc)
	}
}

func (c *Conveyor) runFinalizer(f FinalizerFunc, p *unit.Package, tc *unit.TransferingContext) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("finalizer panic", logger.Fields(logger.FieldContextID, tc.ID, "panic", fmt.Sprint(r)))
		}
	}()
	if err := f(p, tc); err != nil {
		c.log.Error("finalizer failed", logger.Fields(logger.FieldContextID, tc.ID, logger.FieldError, err))
	}
}
