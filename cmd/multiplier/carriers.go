package main

import (
	"context"
	"fmt"

	"github.com/kbukum/justconveyor/blueprint"
	"github.com/kbukum/justconveyor/conveyor"
	"github.com/kbukum/justconveyor/unit"
)

// multiplier scales numbers. The instance bound at compile time comes from
// the container and carries the configured factor.
type multiplier struct {
	factor int
}

func (m *multiplier) Steps(s *blueprint.Steps) {
	s.Add("multiply", blueprint.Async(func(_ context.Context, v int) (int, error) {
		return v * m.factor, nil
	}))
}

// ranges explodes n into 1..n.
type ranges struct{}

func (ranges) Steps(s *blueprint.Steps) {
	s.Add("explode", blueprint.Split(func(n int) ([]int, error) {
		if n < 0 {
			return nil, fmt.Errorf("cannot explode negative %d", n)
		}
		out := make([]int, n)
		for i := range out {
			out[i] = i + 1
		}
		return out, nil
	}))
	s.OnError("explode", func(err error, tc *unit.TransferingContext) bool {
		tc.SetMeta("rejected", err.Error())
		return false
	})
}

// pipelines describes the blueprints of the host.
type pipelines struct {
	caller conveyor.Caller
	lines  int
}

func (p pipelines) Blueprints() []conveyor.Descriptor {
	square := blueprint.New[int]("square").
		ApplyFunc("square", blueprint.Sync(func(v int) (int, error) { return v * v, nil }))

	sums := blueprint.New[int]("sum_of_scaled_squares").
		Split(ranges{}, "explode").
		Apply(&multiplier{}, "multiply")
	sums = conveyor.CallPipeline(sums, p.caller, "square")
	sums = blueprint.CollectAndCast[int](sums).
		ApplyFunc("sum", blueprint.Sync(func(vs []int) (int, error) {
			total := 0
			for _, v := range vs {
				total += v
			}
			return total, nil
		}))

	return []conveyor.Descriptor{
		{Blueprint: square, Lines: p.lines},
		{Blueprint: sums, Lines: p.lines},
	}
}
