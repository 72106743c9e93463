package blueprint

import (
	"context"
	"fmt"
	"iter"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kbukum/justconveyor/errors"
	"github.com/kbukum/justconveyor/unit"
)

type multiplier struct{ factor int }

func (m *multiplier) Steps(s *Steps) {
	s.Add("multiply", Sync(func(v int) (int, error) { return v * m.factor, nil }))
}

type twoProcessors struct{}

func (twoProcessors) Steps(s *Steps) {
	s.Add("inc", Sync(func(v int) (int, error) { return v + 1, nil }))
	s.Add("dec", Sync(func(v int) (int, error) { return v - 1, nil }))
	s.Add("digits", Split(func(v int) ([]int, error) { return []int{v / 10, v % 10}, nil }))
	s.OnError("dec", func(err error) bool { return true })
	s.OnError("", func(err error, uc *unit.UnitContext) {})
}

type badHandler struct{}

func (badHandler) Steps(s *Steps) {
	s.Add("inc", Sync(func(v int) (int, error) { return v + 1, nil }))
	s.OnError("inc", func(err error) string { return "" })
}

type duplicate struct{}

func (duplicate) Steps(s *Steps) {
	s.Add("inc", Sync(func(v int) (int, error) { return v + 1, nil }))
	s.Add("inc", Sync(func(v int) (int, error) { return v + 2, nil }))
}

func TestApply_SingleCandidate(t *testing.T) {
	bp := New[int]("p").Apply(&multiplier{factor: 10})
	require.NoError(t, bp.Err())

	nodes := bp.Nodes()
	require.Len(t, nodes, 1)
	assert.Equal(t, "blueprint.multiplier.multiply", nodes[0].Name)
	assert.Equal(t, "multiply", nodes[0].StepName)
	assert.Equal(t, KindProcessor, nodes[0].Kind())
	assert.Nil(t, nodes[0].OnError)
}

func TestApply_Lookup(t *testing.T) {
	tests := []struct {
		name string
		bp   *Blueprint
		code errors.ErrorCode
	}{
		{"ambiguous without name", New[int]("p").Apply(twoProcessors{}), errors.ErrCodeAmbiguousFunction},
		{"unknown name", New[int]("p").Apply(twoProcessors{}, "missing"), errors.ErrCodeFunctionNotFound},
		{"no collector on carrier", New[int]("p").CollectBy(&multiplier{}), errors.ErrCodeFunctionNotFound},
		{"bad error processor", New[int]("p").Apply(badHandler{}), errors.ErrCodeIncorrectErrorProcessor},
		{"duplicate step", New[int]("p").Apply(duplicate{}, "inc"), errors.ErrCodeDuplicateRegistration},
		{"seed type mismatch", New[string]("p").Apply(&multiplier{}), errors.ErrCodeParameterTypeMismatch},
		{"wrong kind inline", New[int]("p").ApplyFunc("x", Collect()), errors.ErrCodeFunctionNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Error(t, tc.bp.Err())
			assert.True(t, errors.HasCode(tc.bp.Err(), tc.code), "got %v", tc.bp.Err())
		})
	}
}

func TestApply_ErrorHandlerResolution(t *testing.T) {
	bp := New[int]("p").
		Apply(twoProcessors{}, "dec").
		Apply(twoProcessors{}, "inc")
	require.NoError(t, bp.Err())

	nodes := bp.Nodes()
	require.NotNil(t, nodes[0].OnError)
	assert.Equal(t, "dec", nodes[0].OnError.Name())

	cont, err := nodes[0].OnError.Handle(fmt.Errorf("boom"), nil, nil)
	require.NoError(t, err)
	assert.True(t, cont)

	require.NotNil(t, nodes[1].OnError, "carrier default handler applies")
	cont, err = nodes[1].OnError.Handle(fmt.Errorf("boom"), unit.NewUnitContext("p", "u", 1, nil), nil)
	require.NoError(t, err)
	assert.False(t, cont)
}

func TestBuilder_StickyError(t *testing.T) {
	bp := New[int]("p").Apply(twoProcessors{}).Apply(&multiplier{factor: 2})
	require.Error(t, bp.Err())
	assert.Empty(t, bp.Nodes())
}

func TestTypeFlow(t *testing.T) {
	bp := New[[]int]("p").
		SplitFunc("each", Split(func(v []int) ([]int, error) { return v, nil })).
		Apply(&multiplier{factor: 10}).
		Collect()
	require.NoError(t, bp.Err())

	bp = CastCollection[int](bp)
	require.NoError(t, bp.Err())
	assert.Equal(t, "p[each -> blueprint.multiplier.multiply -> collect -> cast]", bp.String())

	bad := New[[]int]("p").
		SplitFunc("each", Split(func(v []int) ([]int, error) { return v, nil })).
		Collect().
		Apply(&multiplier{factor: 10})
	assert.True(t, errors.HasCode(bad.Err(), errors.ErrCodeParameterTypeMismatch))
}

func TestTypeFlow_UnknownTypesAreAccepted(t *testing.T) {
	bp := New[any]("p").
		ApplyFunc("raw", OnContexts(func(_ context.Context, uc *unit.UnitContext, _ *unit.TransferingContext) (any, error) {
			return uc.Unit, nil
		})).
		Apply(&multiplier{factor: 2}).
		ApplyFunc("log", Action(func(v int) error { return nil })).
		ApplyFunc("stringify", Sync(func(v int) (string, error) { return fmt.Sprint(v), nil }))
	require.NoError(t, bp.Err())
}

func TestOnError_Inline(t *testing.T) {
	bp := New[int]("p").Apply(&multiplier{factor: 2}).OnError(func(err error, tc *unit.TransferingContext) (bool, error) {
		return false, nil
	})
	require.NoError(t, bp.Err())
	node := bp.Nodes()[0]
	require.NotNil(t, node.OnError)

	rebound, err := node.Rebind(&multiplier{factor: 3})
	require.NoError(t, err)
	assert.Same(t, node.OnError, rebound.OnError, "inline handler survives rebinding")

	empty := New[int]("p").OnError(func() {})
	assert.True(t, errors.HasCode(empty.Err(), errors.ErrCodeIncorrectErrorProcessor))
}

func TestRebind_UsesLiveCarrier(t *testing.T) {
	node := New[int]("p").Apply(&multiplier{factor: 2}).Nodes()[0]
	rebound, err := node.Rebind(&multiplier{factor: 5})
	require.NoError(t, err)

	out, err := rebound.Step.Call(context.Background(), unit.NewUnitContext("p", "u", 3, nil), nil)
	require.NoError(t, err)
	assert.Equal(t, 15, out)
}

func TestNewErrorHandler_Signatures(t *testing.T) {
	valid := []any{
		func() {},
		func(error) bool { return true },
		func(*unit.UnitContext, error) error { return nil },
		func(*unit.TransferingContext, *unit.UnitContext, error) (bool, error) { return true, nil },
	}
	for i, fn := range valid {
		_, err := NewErrorHandler("c", fmt.Sprint(i), fn)
		assert.NoError(t, err, "signature %d", i)
	}

	invalid := []any{
		nil,
		42,
		func(int) bool { return true },
		func(error) int { return 0 },
		func(error) (error, bool) { return nil, false },
		func(...error) bool { return true },
	}
	for i, fn := range invalid {
		_, err := NewErrorHandler("c", fmt.Sprint(i), fn)
		assert.True(t, errors.HasCode(err, errors.ErrCodeIncorrectErrorProcessor), "signature %d", i)
	}
}

func TestErrorHandler_PanicAndErrors(t *testing.T) {
	h, err := NewErrorHandler("c", "n", func(error) bool { panic("boom") })
	require.NoError(t, err)
	cont, herr := h.Handle(fmt.Errorf("cause"), nil, nil)
	assert.False(t, cont)
	assert.ErrorContains(t, herr, "panicked")

	h, err = NewErrorHandler("c", "n", func(cause error) error { return fmt.Errorf("wrapped: %w", cause) })
	require.NoError(t, err)
	_, herr = h.Handle(fmt.Errorf("cause"), nil, nil)
	assert.EqualError(t, herr, "wrapped: cause")
}

func TestSplitters(t *testing.T) {
	ctx := context.Background()
	parent := unit.NewUnitContext("proc", "pkg", 3, nil)

	seq := SplitSeq(func(n int) iter.Seq2[int, error] {
		return func(yield func(int, error) bool) {
			for i := range n {
				if !yield(i, nil) {
					return
				}
			}
		}
	})
	kids, err := seq.Split(ctx, parent, nil)
	require.NoError(t, err)
	require.Len(t, kids, 3)
	assert.Equal(t, "pkg:2", kids[2].UnitID)
	assert.Equal(t, 2, kids[2].Unit)

	failing := SplitSeq(func(n int) iter.Seq2[int, error] {
		return func(yield func(int, error) bool) {
			yield(0, fmt.Errorf("bad input %d", n))
		}
	})
	_, err = failing.Split(ctx, parent, nil)
	assert.EqualError(t, err, "bad input 3")

	async := SplitAsync(func(_ context.Context, n int) ([]string, error) { return []string{"a", "b"}, nil })
	assert.True(t, async.Async())
	kids, err = async.Split(ctx, parent, nil)
	require.NoError(t, err)
	assert.Len(t, kids, 2)
}

func TestInput_TypeMismatchAndNil(t *testing.T) {
	step := Sync(func(v int) (int, error) { return v, nil })
	_, err := step.Call(context.Background(), unit.NewUnitContext("p", "u", "text", nil), nil)
	assert.True(t, errors.HasCode(err, errors.ErrCodeParameterTypeMismatch))

	ptr := Sync(func(v *multiplier) (bool, error) { return v == nil, nil })
	out, err := ptr.Call(context.Background(), unit.NewUnitContext("p", "u", nil, nil), nil)
	require.NoError(t, err)
	assert.Equal(t, true, out)
}

func TestGroupBy(t *testing.T) {
	step := GroupBy(func(v int) (string, error) {
		if v%2 == 0 {
			return "even", nil
		}
		return "odd", nil
	})
	key, err := step.Group(context.Background(), unit.NewUnitContext("p", "u", 3, nil), nil)
	require.NoError(t, err)
	assert.Equal(t, "odd", key)
	assert.False(t, step.Trivial())
	assert.True(t, Collect().Trivial())
}
