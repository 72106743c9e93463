package main

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kbukum/justconveyor/conveyor"
	"github.com/kbukum/justconveyor/di"
	"github.com/kbukum/justconveyor/unit"
)

func TestSumOfScaledSquares(t *testing.T) {
	const count, factor = 12, 3

	container := di.NewContainer()
	require.NoError(t, di.Provide(container, &multiplier{factor: factor}))

	conv, err := conveyor.New(conveyor.Settings{
		CooldownPeriod: 10 * time.Millisecond,
		HarvestPeriod:  50 * time.Millisecond,
		ReceiveTimeout: 10 * time.Millisecond,
	}, conveyor.WithResolver(container))
	require.NoError(t, err)

	require.NoError(t, container.RegisterSingleton("pipelines", pipelines{caller: conv, lines: 2}))
	require.NoError(t, container.RegisterSingleton("numbers", &numbers{count: count}))
	require.NoError(t, conv.Discover(container))

	var (
		mu   sync.Mutex
		sums = map[string]int{}
	)
	fin := conveyor.CountFinalizer(count).Then(func(p *unit.Package, tc *unit.TransferingContext) error {
		v, err := unit.Result[int](tc)
		if err != nil {
			return err
		}
		mu.Lock()
		sums[p.ID] = v
		mu.Unlock()
		return nil
	})
	require.NoError(t, conv.WithPipelineFinalizer("sum_of_scaled_squares", fin.Func()))

	require.NoError(t, conv.Start(context.Background()))
	select {
	case <-fin.Done():
	case <-time.After(10 * time.Second):
		t.Fatal("numbers were not processed")
	}
	require.NoError(t, conv.Stop(context.Background()))

	assert.Zero(t, fin.Failed())
	// sum of (i*factor)^2 for i in 1..n
	want := func(n int) int { return factor * factor * n * (n + 1) * (2*n + 1) / 6 }
	assert.Equal(t, want(1), sums["n:1"])
	assert.Equal(t, want(count), sums["n:12"])
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}
	cfg.Name = "multiplier"
	cfg.ApplyDefaults()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 100, cfg.Numbers.Count)
	assert.Equal(t, "multiplier", cfg.Telemetry.Tracer.ServiceName)

	cfg.Numbers.Lines = -1
	assert.Error(t, cfg.Validate())
}

func TestBlueprintsBuild(t *testing.T) {
	conv, err := conveyor.New(conveyor.Settings{})
	require.NoError(t, err)
	bps := pipelines{caller: conv, lines: 1}.Blueprints()
	require.Len(t, bps, 2)
	for _, d := range bps {
		require.NoError(t, d.Blueprint.Err(), d.Blueprint.Name())
	}
}
