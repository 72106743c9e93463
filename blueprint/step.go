package blueprint

import (
	"context"
	"fmt"
	"iter"
	"reflect"

	"github.com/kbukum/justconveyor/errors"
	"github.com/kbukum/justconveyor/unit"
)

// Kind is the role of a step inside a chain.
type Kind int

const (
	KindProcessor Kind = iota
	KindSplitter
	KindCollector
)

func (k Kind) String() string {
	switch k {
	case KindProcessor:
		return "processor"
	case KindSplitter:
		return "splitter"
	case KindCollector:
		return "collector"
	default:
		return "unknown"
	}
}

// Input flags which invocation inputs a step consumes.
type Input uint8

const (
	InputUnit Input = 1 << iota
	InputUnitContext
	InputTransferingContext
)

// Func is the uniform invocation shape every processor is bound to.
type Func func(ctx context.Context, uc *unit.UnitContext, tc *unit.TransferingContext) (any, error)

// SplitFunc fans a unit out into child unit contexts.
type SplitFunc func(ctx context.Context, uc *unit.UnitContext, tc *unit.TransferingContext) ([]*unit.UnitContext, error)

// GroupFunc returns the bucket key of a child unit.
type GroupFunc func(ctx context.Context, uc *unit.UnitContext, tc *unit.TransferingContext) (string, error)

// Step is a typed, invokable chain element. Build one with the
// constructors in this package.
type Step struct {
	kind        Kind
	async       bool
	passthrough bool
	trivial     bool
	in, out     reflect.Type
	inputs      Input

	call  Func
	split SplitFunc
	group GroupFunc
}

func (s Step) Kind() Kind        { return s.kind }
func (s Step) Async() bool       { return s.async }
func (s Step) Inputs() Input     { return s.inputs }
func (s Step) In() reflect.Type  { return s.in }
func (s Step) Out() reflect.Type { return s.out }
func (s Step) Trivial() bool     { return s.trivial }
func (s Step) Passthrough() bool { return s.passthrough }
func (s Step) valid() bool       { return s.call != nil || s.split != nil || s.group != nil }
func (s Step) Call(ctx context.Context, uc *unit.UnitContext, tc *unit.TransferingContext) (any, error) {
	return s.call(ctx, uc, tc)
}

func (s Step) Split(ctx context.Context, uc *unit.UnitContext, tc *unit.TransferingContext) ([]*unit.UnitContext, error) {
	return s.split(ctx, uc, tc)
}

func (s Step) Group(ctx context.Context, uc *unit.UnitContext, tc *unit.TransferingContext) (string, error) {
	return s.group(ctx, uc, tc)
}

// input reads the current unit as T. A nil unit satisfies nillable types.
func input[T any](uc *unit.UnitContext) (T, error) {
	if v, ok := uc.Unit.(T); ok {
		return v, nil
	}
	var zero T
	t := reflect.TypeFor[T]()
	if uc.Unit == nil && nillable(t) {
		return zero, nil
	}
	return zero, errors.ParameterTypeMismatch(uc.UnitID, fmt.Sprintf("%T", uc.Unit), t.String())
}

func nillable(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Interface, reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return true
	}
	return false
}

// Sync wraps a synchronous unit transformation.
func Sync[T, R any](fn func(T) (R, error)) Step {
	return Step{
		kind:   KindProcessor,
		in:     reflect.TypeFor[T](),
		out:    reflect.TypeFor[R](),
		inputs: InputUnit,
		call: func(_ context.Context, uc *unit.UnitContext, _ *unit.TransferingContext) (any, error) {
			v, err := input[T](uc)
			if err != nil {
				return nil, err
			}
			return fn(v)
		},
	}
}

// Async wraps a transformation that may block on I/O. It runs on the
// caller's goroutine and completes, continuation included, before the
// enclosing step returns.
func Async[T, R any](fn func(context.Context, T) (R, error)) Step {
	return Step{
		kind:   KindProcessor,
		async:  true,
		in:     reflect.TypeFor[T](),
		out:    reflect.TypeFor[R](),
		inputs: InputUnit,
		call: func(ctx context.Context, uc *unit.UnitContext, _ *unit.TransferingContext) (any, error) {
			v, err := input[T](uc)
			if err != nil {
				return nil, err
			}
			return fn(ctx, v)
		},
	}
}

// Action runs fn for its side effect and keeps the unit unchanged.
func Action[T any](fn func(T) error) Step {
	t := reflect.TypeFor[T]()
	return Step{
		kind:        KindProcessor,
		passthrough: true,
		in:          t,
		out:         t,
		inputs:      InputUnit,
		call: func(_ context.Context, uc *unit.UnitContext, _ *unit.TransferingContext) (any, error) {
			v, err := input[T](uc)
			if err != nil {
				return nil, err
			}
			if err := fn(v); err != nil {
				return nil, err
			}
			return uc.Unit, nil
		},
	}
}

// WithContexts wraps a transformation that also reads the unit and run contexts.
func WithContexts[T, R any](fn func(context.Context, T, *unit.UnitContext, *unit.TransferingContext) (R, error)) Step {
	return Step{
		kind:   KindProcessor,
		async:  true,
		in:     reflect.TypeFor[T](),
		out:    reflect.TypeFor[R](),
		inputs: InputUnit | InputUnitContext | InputTransferingContext,
		call: func(ctx context.Context, uc *unit.UnitContext, tc *unit.TransferingContext) (any, error) {
			v, err := input[T](uc)
			if err != nil {
				return nil, err
			}
			return fn(ctx, v, uc, tc)
		},
	}
}

// OnContexts wraps an untyped step that works on the contexts directly.
// Its input and output types are not checked when the blueprint is built.
func OnContexts(fn func(context.Context, *unit.UnitContext, *unit.TransferingContext) (any, error)) Step {
	return Step{
		kind:   KindProcessor,
		async:  true,
		inputs: InputUnitContext | InputTransferingContext,
		call:   Func(fn),
	}
}

func children[C any](uc *unit.UnitContext, items []C) []*unit.UnitContext {
	out := make([]*unit.UnitContext, len(items))
	for i, item := range items {
		out[i] = uc.Child(i, item)
	}
	return out
}

// Split fans a unit of type T out into children of type C.
func Split[T, C any](fn func(T) ([]C, error)) Step {
	return Step{
		kind:   KindSplitter,
		in:     reflect.TypeFor[T](),
		out:    reflect.TypeFor[C](),
		inputs: InputUnit,
		split: func(_ context.Context, uc *unit.UnitContext, _ *unit.TransferingContext) ([]*unit.UnitContext, error) {
			v, err := input[T](uc)
			if err != nil {
				return nil, err
			}
			items, err := fn(v)
			if err != nil {
				return nil, err
			}
			return children(uc, items), nil
		},
	}
}

// SplitAsync is Split for generators that block on I/O.
func SplitAsync[T, C any](fn func(context.Context, T) ([]C, error)) Step {
	return Step{
		kind:   KindSplitter,
		async:  true,
		in:     reflect.TypeFor[T](),
		out:    reflect.TypeFor[C](),
		inputs: InputUnit,
		split: func(ctx context.Context, uc *unit.UnitContext, _ *unit.TransferingContext) ([]*unit.UnitContext, error) {
			v, err := input[T](uc)
			if err != nil {
				return nil, err
			}
			items, err := fn(ctx, v)
			if err != nil {
				return nil, err
			}
			return children(uc, items), nil
		},
	}
}

// SplitSeq fans out from an iterator; the first yielded error aborts the split.
func SplitSeq[T, C any](fn func(T) iter.Seq2[C, error]) Step {
	return Step{
		kind:   KindSplitter,
		in:     reflect.TypeFor[T](),
		out:    reflect.TypeFor[C](),
		inputs: InputUnit,
		split: func(_ context.Context, uc *unit.UnitContext, _ *unit.TransferingContext) ([]*unit.UnitContext, error) {
			v, err := input[T](uc)
			if err != nil {
				return nil, err
			}
			var out []*unit.UnitContext
			for item, err := range fn(v) {
				if err != nil {
					return nil, err
				}
				out = append(out, uc.Child(len(out), item))
			}
			return out, nil
		},
	}
}

// SplitContexts wraps a splitter that builds child contexts itself.
func SplitContexts(fn func(context.Context, *unit.UnitContext, *unit.TransferingContext) ([]*unit.UnitContext, error)) Step {
	return Step{
		kind:   KindSplitter,
		async:  true,
		inputs: InputUnitContext | InputTransferingContext,
		split:  SplitFunc(fn),
	}
}

var (
	unitsType   = reflect.TypeFor[[]*unit.UnitContext]()
	bucketsType = reflect.TypeFor[[]unit.Bucket]()
)

// GroupBy buckets the children of a split by key. The collected unit is
// a []unit.Bucket in first-seen key order.
func GroupBy[T any](fn func(T) (string, error)) Step {
	return Step{
		kind:   KindCollector,
		in:     reflect.TypeFor[T](),
		out:    bucketsType,
		inputs: InputUnit,
		group: func(_ context.Context, uc *unit.UnitContext, _ *unit.TransferingContext) (string, error) {
			v, err := input[T](uc)
			if err != nil {
				return "", err
			}
			return fn(v)
		},
	}
}

// Collect gathers every child of a split into one []*unit.UnitContext.
func Collect() Step {
	return Step{
		kind:    KindCollector,
		trivial: true,
		out:     unitsType,
		group: func(context.Context, *unit.UnitContext, *unit.TransferingContext) (string, error) {
			return "", nil
		},
	}
}
