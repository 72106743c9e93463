package pipeline

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/justconveyor/errors"
	"github.com/kbukum/justconveyor/logger"
	"github.com/kbukum/justconveyor/observability"
	"github.com/kbukum/justconveyor/unit"
)

type runFunc func(ctx context.Context, tc *unit.TransferingContext, uc *unit.UnitContext) error

// Pipeline is a compiled blueprint. It is immutable and safe for
// concurrent Process calls; each call brings its own contexts.
type Pipeline struct {
	id      string
	name    string
	seed    reflect.Type
	nodes   []node
	log     *logger.Logger
	tracing bool
}

// ID is unique per compilation: "{blueprint}:{uuid}".
func (p *Pipeline) ID() string { return p.id }

// Name is the blueprint name.
func (p *Pipeline) Name() string { return p.name }

// SeedType is the type of unit the pipeline starts with.
func (p *Pipeline) SeedType() reflect.Type { return p.seed }

// Process drives uc through the chain. A failure is stored on tc and
// returned; the final unit context is stored on tc on success.
func (p *Pipeline) Process(ctx context.Context, tc *unit.TransferingContext, uc *unit.UnitContext) error {
	tc.SetHeader(unit.HeaderPipelineID, p.id)
	if err := p.nodes[0].run(ctx, tc, uc); err != nil {
		tc.SetErr(err)
		return err
	}
	return nil
}

// Run processes a seed value in a fresh context and returns that context.
func (p *Pipeline) Run(ctx context.Context, seed any, headers unit.Headers) (*unit.TransferingContext, error) {
	id := newID()
	tc := unit.NewTransferingContext(id, headers)
	uc := unit.NewUnitContext(newID(), id, seed, headers)
	err := p.Process(ctx, tc, uc)
	return tc, err
}

func newID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// String renders the chain, e.g. "I -> P:S -> S:A -> P:A -> C -> T".
func (p *Pipeline) String() string {
	parts := make([]string, len(p.nodes))
	for i, n := range p.nodes {
		mode := "S"
		if n.async {
			mode = "A"
		}
		switch n.tag {
		case tagInitiator:
			parts[i] = "I"
		case tagTerminator:
			parts[i] = "T"
		case tagCollector:
			parts[i] = "C"
		case tagSplitter:
			parts[i] = "S:" + mode
		default:
			parts[i] = "P:" + mode
		}
	}
	return strings.Join(parts, " -> ")
}

// forward runs the chain from node i. A collector ends the continuation;
// the splitter that owns it carries on.
func (p *Pipeline) forward(i int) runFunc {
	return func(ctx context.Context, tc *unit.TransferingContext, uc *unit.UnitContext) error {
		if i == none || p.nodes[i].tag == tagCollector {
			return nil
		}
		return p.nodes[i].run(ctx, tc, uc)
	}
}

func (p *Pipeline) bindRun(i int) runFunc {
	n := &p.nodes[i]
	next := p.forward(n.next)

	switch n.tag {
	case tagInitiator:
		return next
	case tagTerminator:
		return func(_ context.Context, tc *unit.TransferingContext, uc *unit.UnitContext) error {
			tc.SetFinal(uc)
			return nil
		}
	case tagCollector:
		return func(context.Context, *unit.TransferingContext, *unit.UnitContext) error {
			return nil
		}
	case tagSplitter:
		return p.splitterRun(n)
	default:
		return p.processorRun(n, next)
	}
}

func (p *Pipeline) processorRun(n *node, next runFunc) runFunc {
	return func(ctx context.Context, tc *unit.TransferingContext, uc *unit.UnitContext) error {
		info := tc.PushStep(n.name)
		out, err := p.invoke(ctx, n, func(ctx context.Context) (any, error) {
			return n.step.Call(ctx, uc, tc)
		})
		tc.FinishStep(info)

		if err != nil {
			cont, ferr := p.fault(n, err, uc, tc, true)
			if !cont {
				return ferr
			}
			uc.Err = err
		} else {
			uc.Unit = out
		}
		return next(ctx, tc, uc)
	}
}

func (p *Pipeline) splitterRun(n *node) runFunc {
	span := p.forward(n.next)
	collector := &p.nodes[n.paired]
	after := p.forward(collector.next)

	return func(ctx context.Context, tc *unit.TransferingContext, uc *unit.UnitContext) error {
		info := tc.PushStep(n.name)
		kids, err := p.invoke(ctx, n, func(ctx context.Context) (any, error) {
			return n.step.Split(ctx, uc, tc)
		})
		if err != nil {
			tc.FinishStep(info)
			_, ferr := p.fault(n, err, uc, tc, false)
			return ferr
		}

		children := kids.([]*unit.UnitContext)
		for i, child := range children {
			if child == nil {
				tc.FinishStep(info)
				_, ferr := p.fault(n, fmt.Errorf("splitter %s produced a nil child at %d", n.name, i), uc, tc, false)
				return ferr
			}
			if child.Headers == nil {
				child.Headers = make(unit.Headers)
			}
		}

		buckets := []unit.Bucket{}
		index := make(map[string]int)
		for _, child := range children {
			if err := span(ctx, tc, child); err != nil {
				tc.FinishStep(info)
				if errors.HasCode(err, errors.ErrCodeProcessing) {
					return err
				}
				return errors.Processing(n.name, err)
			}

			key, err := p.invoke(ctx, collector, func(ctx context.Context) (any, error) {
				return collector.step.Group(ctx, child, tc)
			})
			if err != nil {
				tc.FinishStep(info)
				_, ferr := p.fault(collector, err, child, tc, false)
				return ferr
			}

			k := key.(string)
			b, ok := index[k]
			if !ok {
				b = len(buckets)
				index[k] = b
				buckets = append(buckets, unit.Bucket{Key: k})
			}
			buckets[b].Units = append(buckets[b].Units, child)
		}

		for _, b := range buckets {
			for _, child := range b.Units {
				child.Headers.Set(unit.HeaderCollectionID, b.Key)
			}
		}

		if collector.step.Trivial() {
			units := []*unit.UnitContext{}
			if len(buckets) > 0 {
				units = buckets[0].Units
			}
			uc.Unit = units
		} else {
			uc.Unit = buckets
		}
		tc.FinishStep(info)
		return after(ctx, tc, uc)
	}
}

// invoke calls a step, turning panics into errors and opening a span
// when step tracing is on.
func (p *Pipeline) invoke(ctx context.Context, n *node, call func(context.Context) (any, error)) (out any, err error) {
	if p.tracing {
		var span trace.Span
		ctx, span = observability.StartStepSpan(ctx, p.id, n.name)
		defer func() {
			if err != nil {
				observability.SetSpanError(ctx, err)
			}
			span.End()
		}()
	}
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("step %s panicked: %v", n.name, r)
		}
	}()
	return call(ctx)
}

// fault decides what a step failure means for the run. Only processors
// may continue past a fault their error processor accepts.
func (p *Pipeline) fault(n *node, cause error, uc *unit.UnitContext, tc *unit.TransferingContext, mayContinue bool) (bool, error) {
	if n.onError == nil || errors.HasCode(cause, errors.ErrCodeParameterTypeMismatch) {
		return false, errors.Processing(n.name, cause)
	}

	cont, herr := n.onError.Handle(cause, uc, tc)
	if herr != nil {
		p.log.Warn("error processor failed", logger.Fields(
			logger.FieldStep, n.name,
			logger.FieldError, herr.Error(),
		))
		return false, errors.Aggregate(n.name, cause, herr)
	}
	if cont && mayContinue {
		p.log.Debug("step fault accepted by error processor", logger.Fields(
			logger.FieldStep, n.name,
			logger.FieldError, cause.Error(),
		))
		return true, nil
	}
	return false, errors.Processing(n.name, cause)
}
