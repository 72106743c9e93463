package conveyor

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/goleak"

	"github.com/kbukum/justconveyor/blueprint"
	"github.com/kbukum/justconveyor/di"
	"github.com/kbukum/justconveyor/errors"
	"github.com/kbukum/justconveyor/observability"
	"github.com/kbukum/justconveyor/unit"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func fastSettings() Settings {
	return Settings{
		CooldownPeriod: 10 * time.Millisecond,
		HarvestPeriod:  20 * time.Millisecond,
		ReceiveTimeout: 10 * time.Millisecond,
	}
}

func doubler() *blueprint.Blueprint {
	return blueprint.New[int]("double").
		ApplyFunc("x2", blueprint.Sync(func(v int) (int, error) { return v * 2, nil }))
}

// idle blocks until the conveyor stops.
var idle = SupplierFunc(func(ctx context.Context) (*unit.Package, error) {
	<-ctx.Done()
	return nil, ctx.Err()
})

func fromChannel(ch <-chan *unit.Package) SupplierFunc {
	return func(ctx context.Context) (*unit.Package, error) {
		select {
		case p, ok := <-ch:
			if !ok {
				return unit.Fake, nil
			}
			return p, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func started(t *testing.T, descriptors ...Descriptor) *Conveyor {
	t.Helper()
	c, err := New(fastSettings())
	require.NoError(t, err)
	for _, d := range descriptors {
		require.NoError(t, c.RegisterBlueprint(d))
	}
	require.NoError(t, c.WithSupplier("idle", idle))
	require.NoError(t, c.Start(context.Background()))
	t.Cleanup(func() { require.NoError(t, c.Stop(context.Background())) })
	return c
}

func TestNew_RejectsInvalidSettings(t *testing.T) {
	_, err := New(Settings{SupplierRate: -1})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidInput))
}

func TestNew_AppliesDefaults(t *testing.T) {
	c, err := New(Settings{})
	require.NoError(t, err)
	assert.Equal(t, DefaultSettings().CooldownPeriod, c.settings.CooldownPeriod)
	assert.Equal(t, DefaultSettings().ReceiveTimeout, c.settings.ReceiveTimeout)
}

func TestStart_Preconditions(t *testing.T) {
	c, err := New(fastSettings())
	require.NoError(t, err)
	require.NoError(t, c.RegisterBlueprint(Descriptor{Blueprint: doubler()}))
	assert.True(t, errors.HasCode(c.Start(context.Background()), errors.ErrCodeNoSupplier))

	c, err = New(fastSettings())
	require.NoError(t, err)
	require.NoError(t, c.WithSupplier("idle", idle))
	assert.True(t, errors.HasCode(c.Start(context.Background()), errors.ErrCodeNoBlueprint))
}

func TestRegisterBlueprint(t *testing.T) {
	c, err := New(fastSettings())
	require.NoError(t, err)

	require.NoError(t, c.RegisterBlueprint(Descriptor{Blueprint: doubler()}))
	err = c.RegisterBlueprint(Descriptor{Blueprint: doubler()})
	assert.True(t, errors.HasCode(err, errors.ErrCodeDuplicateRegistration))

	typed := blueprint.New[string]("upper").ApplyFunc("noop", blueprint.Sync(func(s string) (string, error) { return s, nil }))
	require.NoError(t, c.RegisterBlueprint(Descriptor{Blueprint: typed, ForType: true}))
	again := blueprint.New[string]("other").ApplyFunc("noop", blueprint.Sync(func(s string) (string, error) { return s, nil }))
	err = c.RegisterBlueprint(Descriptor{Blueprint: again, ForType: true})
	assert.True(t, errors.HasCode(err, errors.ErrCodeDuplicateRegistration))

	sameName := blueprint.New[float64]("double").ApplyFunc("noop", blueprint.Sync(func(f float64) (float64, error) { return f, nil }))
	err = c.RegisterBlueprint(Descriptor{Blueprint: sameName, ForType: true})
	assert.True(t, errors.HasCode(err, errors.ErrCodeDuplicateRegistration), "blueprint names are unique across routing modes")

	err = c.RegisterBlueprint(Descriptor{Blueprint: doubler(), Lines: -1})
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidInput))

	err = c.RegisterBlueprint(Descriptor{})
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidInput))

	broken := blueprint.New[int]("broken").Collect()
	assert.Error(t, c.RegisterBlueprint(Descriptor{Blueprint: broken}))
}

func TestDescriptor_Validate(t *testing.T) {
	var missing *blueprint.Blueprint
	err := Descriptor{Blueprint: missing, Lines: 1}.Validate()
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidInput))
	assert.NoError(t, Descriptor{Blueprint: doubler(), Lines: 1}.Validate())
}

func TestRegistrationClosedAfterStart(t *testing.T) {
	c := started(t, Descriptor{Blueprint: doubler()})
	other := blueprint.New[int]("other").ApplyFunc("x2", blueprint.Sync(func(v int) (int, error) { return v, nil }))
	assert.Error(t, c.RegisterBlueprint(Descriptor{Blueprint: other}))
	assert.Error(t, c.WithSupplier("late", idle))
	assert.Error(t, c.WithFinalizer(func(*unit.Package, *unit.TransferingContext) error { return nil }))
	assert.Error(t, c.Start(context.Background()))
}

func TestWithSupplier_Duplicate(t *testing.T) {
	c, err := New(fastSettings())
	require.NoError(t, err)
	require.NoError(t, c.WithSupplier("s", idle))
	assert.True(t, errors.HasCode(c.WithSupplier("s", idle), errors.ErrCodeDuplicateRegistration))
}

func TestWithPipelineFinalizer_UnknownPipeline(t *testing.T) {
	c, err := New(fastSettings())
	require.NoError(t, err)
	err = c.WithPipelineFinalizer("missing", func(*unit.Package, *unit.TransferingContext) error { return nil })
	assert.True(t, errors.HasCode(err, errors.ErrCodeBlueprintNotRegistered))
}

func TestProcess_RoundTrip(t *testing.T) {
	c := started(t, Descriptor{Blueprint: doubler(), Lines: 2})

	out, err := c.Process(context.Background(), &unit.Package{ID: "p1", Label: "double", Load: 21})
	require.NoError(t, err)
	assert.Equal(t, 42, out.Load)
	assert.Equal(t, "p1", out.ID)
}

func TestProcess_RoutesByTypeBeforeLabel(t *testing.T) {
	typed := blueprint.New[string]("shout").
		ApplyFunc("bang", blueprint.Sync(func(s string) (string, error) { return s + "!", nil }))
	c := started(t, Descriptor{Blueprint: doubler()}, Descriptor{Blueprint: typed, ForType: true})

	out, err := c.Process(context.Background(), &unit.Package{ID: "s", Label: "double", Load: "hey"})
	require.NoError(t, err)
	assert.Equal(t, "hey!", out.Load)
}

func TestProcess_LostPackage(t *testing.T) {
	c, err := New(fastSettings())
	require.NoError(t, err)
	require.NoError(t, c.RegisterBlueprint(Descriptor{Blueprint: doubler()}))
	require.NoError(t, c.WithSupplier("idle", idle))

	var lost []string
	require.NoError(t, c.WithLostPackagesProcessor(func(p *unit.Package) error {
		lost = append(lost, p.ID)
		return nil
	}))
	require.NoError(t, c.WithLostPackagesProcessor(func(p *unit.Package) error {
		panic("lost handler exploded")
	}))
	require.NoError(t, c.Start(context.Background()))
	defer func() { require.NoError(t, c.Stop(context.Background())) }()

	_, err = c.Process(context.Background(), &unit.Package{ID: "x", Label: "nowhere", Load: 1.5})
	assert.True(t, errors.HasCode(err, errors.ErrCodeBlueprintNotRegistered))
	assert.Equal(t, []string{"x"}, lost)
}

func TestProcess_DuplicateDeliveryBox(t *testing.T) {
	c := started(t, Descriptor{Blueprint: doubler()})

	_, _, err := c.boxes.open("dup")
	require.NoError(t, err)
	defer c.boxes.close("dup")

	_, err = c.Process(context.Background(), &unit.Package{ID: "p", Label: "double", Load: 1, DeliveryBoxID: "dup"})
	assert.True(t, errors.HasCode(err, errors.ErrCodeUnableToPostPackage))
}

func TestProcess_StepErrorReachesCallerAndFinalizer(t *testing.T) {
	boom := stderrors.New("boom")
	bp := blueprint.New[int]("fail").
		ApplyFunc("explode", blueprint.Sync(func(int) (int, error) { return 0, boom }))

	c, err := New(fastSettings())
	require.NoError(t, err)
	require.NoError(t, c.RegisterBlueprint(Descriptor{Blueprint: bp}))
	require.NoError(t, c.WithSupplier("idle", idle))

	fin := CountFinalizer(1)
	require.NoError(t, c.WithPipelineFinalizer("fail", fin.Func()))
	require.NoError(t, c.Start(context.Background()))
	defer func() { require.NoError(t, c.Stop(context.Background())) }()

	_, err = c.Process(context.Background(), &unit.Package{ID: "p", Label: "fail", Load: 3})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeProcessing))
	assert.ErrorIs(t, err, boom)

	<-fin.Done()
	assert.Equal(t, int64(1), fin.Failed())
	assert.Equal(t, int64(1), c.Snapshot().Pipelines[0].Errors)
}

func TestProcess_CancelledWhileWaiting(t *testing.T) {
	release := make(chan struct{})
	bp := blueprint.New[int]("slow").
		ApplyFunc("wait", blueprint.Sync(func(v int) (int, error) { <-release; return v, nil }))
	c := started(t, Descriptor{Blueprint: bp})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.Process(ctx, &unit.Package{ID: "p", Label: "slow", Load: 1})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestProcess_NotRunning(t *testing.T) {
	c, err := New(fastSettings())
	require.NoError(t, err)
	_, err = c.Process(context.Background(), &unit.Package{Label: "double", Load: 1})
	assert.True(t, errors.HasCode(err, errors.ErrCodeNotRunning))
}

func TestSupplierToFinalizer(t *testing.T) {
	const n = 50
	ch := make(chan *unit.Package)
	go func() {
		defer close(ch)
		for i := 0; i < n; i++ {
			ch <- &unit.Package{ID: fmt.Sprint(i), Label: "double", Load: i}
		}
	}()

	c, err := New(fastSettings())
	require.NoError(t, err)
	require.NoError(t, c.RegisterBlueprint(Descriptor{Blueprint: doubler(), Lines: 4}))
	require.NoError(t, c.WithSupplier("numbers", fromChannel(ch)))

	var (
		mu    sync.Mutex
		sum   int
		steps []string
	)
	fin := CountFinalizer(n).Then(func(_ *unit.Package, tc *unit.TransferingContext) error {
		v, err := unit.Result[int](tc)
		if err != nil {
			return err
		}
		mu.Lock()
		sum += v
		steps = append(steps, tc.CurrentStep())
		mu.Unlock()
		return nil
	})
	require.NoError(t, c.WithFinalizer(fin.Func()))
	require.NoError(t, c.Start(context.Background()))

	select {
	case <-fin.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("packages were not finalized")
	}
	require.NoError(t, c.Stop(context.Background()))

	assert.Equal(t, n*(n-1), sum)
	for _, s := range steps {
		assert.Equal(t, FinalizationStep, s)
	}

	snap := c.Snapshot()
	require.Len(t, snap.Pipelines, 1)
	assert.Equal(t, int64(n), snap.Pipelines[0].In)
	assert.Equal(t, int64(n), snap.Pipelines[0].Out)
	assert.Equal(t, "double_queue", snap.Queues[0].Name)
	require.Len(t, snap.Suppliers, 1)
	assert.Equal(t, int64(n), snap.Suppliers[0].Supplied)
	assert.Equal(t, SupplierFinished.String(), snap.Suppliers[0].State)
	require.Len(t, snap.Lines, 4)
	assert.Equal(t, snap.Pipelines[0].PipelineID+":1", snap.Lines[0].ID)
	for _, l := range snap.Lines {
		assert.Equal(t, LineFinished.String(), l.State)
	}
	assert.Empty(t, snap.InProgress)
}

func TestSupplierErrorsAreCounted(t *testing.T) {
	calls := 0
	flaky := SupplierFunc(func(ctx context.Context) (*unit.Package, error) {
		calls++
		switch calls {
		case 1:
			return nil, stderrors.New("temporary")
		case 2:
			panic("supplier exploded")
		case 3:
			return nil, nil
		case 4:
			return &unit.Package{ID: "ok", Label: "double", Load: 1}, nil
		}
		return unit.Fake, nil
	})

	c, err := New(fastSettings())
	require.NoError(t, err)
	require.NoError(t, c.RegisterBlueprint(Descriptor{Blueprint: doubler()}))
	require.NoError(t, c.WithSupplier("flaky", flaky))
	fin := CountFinalizer(1)
	require.NoError(t, c.WithFinalizer(fin.Func()))
	require.NoError(t, c.Start(context.Background()))
	<-fin.Done()
	require.NoError(t, c.Stop(context.Background()))

	s := c.Snapshot().Suppliers[0]
	assert.Equal(t, int64(2), s.Errors)
	assert.Equal(t, int64(1), s.Supplied)
}

func TestFinalizerPanicKeepsLineAlive(t *testing.T) {
	c, err := New(fastSettings())
	require.NoError(t, err)
	require.NoError(t, c.RegisterBlueprint(Descriptor{Blueprint: doubler()}))
	require.NoError(t, c.WithSupplier("idle", idle))
	require.NoError(t, c.WithPipelineFinalizer("double", func(*unit.Package, *unit.TransferingContext) error {
		panic("finalizer exploded")
	}))
	require.NoError(t, c.Start(context.Background()))
	defer func() { require.NoError(t, c.Stop(context.Background())) }()

	for i := 0; i < 3; i++ {
		out, err := c.Process(context.Background(), &unit.Package{Label: "double", Load: i})
		require.NoError(t, err)
		assert.Equal(t, i*2, out.Load)
	}
}

func TestCallPipeline(t *testing.T) {
	c, err := New(fastSettings())
	require.NoError(t, err)
	outer := CallPipeline(
		blueprint.New[int]("outer").ApplyFunc("inc", blueprint.Sync(func(v int) (int, error) { return v + 1, nil })),
		c, "double")
	require.NoError(t, c.RegisterBlueprint(Descriptor{Blueprint: doubler()}))
	require.NoError(t, c.RegisterBlueprint(Descriptor{Blueprint: outer}))
	require.NoError(t, c.WithSupplier("idle", idle))
	require.NoError(t, c.Start(context.Background()))
	defer func() { require.NoError(t, c.Stop(context.Background())) }()

	out, err := c.Process(context.Background(), &unit.Package{Label: "outer", Load: 4})
	require.NoError(t, err)
	assert.Equal(t, 10, out.Load)

	_, err = c.Call(context.Background(), "missing", &unit.Package{Load: 1})
	assert.True(t, errors.HasCode(err, errors.ErrCodeBlueprintNotRegistered))
}

func TestCall_TypeRoutedPipeline(t *testing.T) {
	upper := blueprint.New[string]("upper").
		ApplyFunc("upper", blueprint.Sync(func(s string) (string, error) { return s + "!", nil }))
	c := started(t, Descriptor{Blueprint: upper, ForType: true})

	out, err := c.Call(context.Background(), "upper", &unit.Package{Label: "ignored", Load: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "hi!", out.Load)
}

func TestGuard(t *testing.T) {
	tc := unit.NewTransferingContext("tc", nil)
	err := guard(tc, func() error { panic("boom") })
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeInternal))
	assert.ErrorContains(t, err, "boom")
	assert.Equal(t, err, tc.Err())

	tc = unit.NewTransferingContext("tc", nil)
	want := fmt.Errorf("plain")
	assert.Equal(t, want, guard(tc, func() error { return want }))
	assert.Nil(t, tc.Err())
}

func TestStepTracingSetting(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	defer tp.Shutdown(context.Background())
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	defer otel.SetTracerProvider(prev)

	settings := fastSettings()
	settings.StepTracing = true
	c, err := New(settings)
	require.NoError(t, err)
	require.NoError(t, c.RegisterBlueprint(Descriptor{Blueprint: doubler()}))
	require.NoError(t, c.WithSupplier("idle", idle))
	require.NoError(t, c.Start(context.Background()))

	_, err = c.Process(context.Background(), &unit.Package{Label: "double", Load: 2})
	require.NoError(t, err)
	require.NoError(t, c.Stop(context.Background()))

	names := map[string]int{}
	for _, s := range exporter.GetSpans() {
		names[s.Name]++
	}
	assert.Equal(t, 1, names[observability.SpanPackageProcess])
	assert.Equal(t, 1, names[observability.SpanStep])
}

func TestHarvest_QueueDelta(t *testing.T) {
	c, err := New(fastSettings())
	require.NoError(t, err)
	require.NoError(t, c.RegisterBlueprint(Descriptor{Blueprint: doubler()}))
	q := c.ordered[0].queue
	defer q.Close()
	ctx := context.Background()

	for i := range 5 {
		require.NoError(t, q.Publish(ctx, &unit.Package{ID: fmt.Sprint(i), Label: "double", Load: i}))
	}
	c.harvest(ctx)
	first := c.Snapshot().Queues[0]
	assert.Equal(t, 5, first.OnQueue)
	assert.Equal(t, 5, first.Delta)

	for i := range 3 {
		require.NoError(t, q.Publish(ctx, &unit.Package{ID: fmt.Sprint(10 + i), Label: "double", Load: i}))
	}
	for range 2 {
		p, err := q.Receive(ctx, 10*time.Millisecond)
		require.NoError(t, err)
		require.False(t, unit.IsFake(p))
	}
	c.harvest(ctx)
	second := c.Snapshot().Queues[0]
	assert.Equal(t, 6, second.OnQueue)
	assert.Equal(t, 5, second.Previous)
	assert.Equal(t, 3-2, second.Delta)
}

func TestMeter(t *testing.T) {
	var m meter
	t0 := time.Now()
	m.tick(7, t0)
	assert.Zero(t, m.rate(), "the first tick only sets the baseline")

	m.reset(t0)
	m.tick(10, t0.Add(2*time.Second))
	assert.InDelta(t, 5.0, m.rate(), 1e-9)

	m.tick(10, t0.Add(3*time.Second))
	assert.Zero(t, m.rate(), "rate covers the last period only")
}

type numbers struct{}

func (numbers) Blueprints() []Descriptor {
	return []Descriptor{{Blueprint: doubler(), Lines: 2}}
}

type namedIdle struct{}

func (namedIdle) SupplierName() string { return "named" }

func (namedIdle) SupplyNextPackage(ctx context.Context) (*unit.Package, error) {
	return idle(ctx)
}

func TestDiscover(t *testing.T) {
	container := di.NewContainer()
	require.NoError(t, container.RegisterSingleton("numbers", numbers{}))
	require.NoError(t, container.RegisterSingleton("supplier", namedIdle{}))

	c, err := New(fastSettings(), WithResolver(container))
	require.NoError(t, err)
	require.NoError(t, c.Discover(container))
	require.NoError(t, c.Start(context.Background()))
	defer func() { require.NoError(t, c.Stop(context.Background())) }()

	snap := c.Snapshot()
	require.Len(t, snap.Pipelines, 1)
	assert.Equal(t, "conveyor.numbers", snap.Pipelines[0].Builder)
	assert.Equal(t, 2, snap.Pipelines[0].Lines)
	assert.Equal(t, "named", snap.Suppliers[0].Name)
}

func TestHealth(t *testing.T) {
	c, err := New(fastSettings())
	require.NoError(t, err)
	assert.Equal(t, "unhealthy", string(c.Health(context.Background()).Status))

	require.NoError(t, c.RegisterBlueprint(Descriptor{Blueprint: doubler()}))
	require.NoError(t, c.WithSupplier("idle", idle))
	require.NoError(t, c.Start(context.Background()))
	assert.Equal(t, "healthy", string(c.Health(context.Background()).Status))
	assert.Contains(t, c.Describe().Details, "1 pipelines")

	require.NoError(t, c.Stop(context.Background()))
	require.NoError(t, c.Stop(context.Background()))
	assert.False(t, c.Running())
}

func TestInProgressShowsRunningContexts(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	bp := blueprint.New[int]("slow").
		ApplyFunc("wait", blueprint.Sync(func(v int) (int, error) {
			close(entered)
			<-release
			return v, nil
		}))
	c := started(t, Descriptor{Blueprint: bp})

	done := make(chan error, 1)
	go func() {
		_, err := c.Process(context.Background(), &unit.Package{ID: "pkg", Label: "slow", Load: 1})
		done <- err
	}()
	<-entered

	in := c.InProgress()
	require.Len(t, in, 1)
	assert.Equal(t, "pkg", in[0].Meta["Package ID"])
	assert.Equal(t, "wait", in[0].Step)
	require.NotEmpty(t, in[0].History)
	assert.False(t, in[0].History[0].Finished)

	close(release)
	require.NoError(t, <-done)
}

func TestFormatElapsed(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "0,000s"},
		{1500 * time.Millisecond, "1,500s"},
		{65*time.Second + 5*time.Millisecond, "1m5,005s"},
		{2*time.Hour + 3*time.Second, "2h0m3,000s"},
		{26*time.Hour + 61*time.Second, "1d2h1m1,000s"},
		{-time.Second, "0,000s"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatElapsed(tt.in), tt.in.String())
	}
}

func TestProfileOf(t *testing.T) {
	assert.Equal(t, TimeProfile{}, profileOf(nil))
	assert.Equal(t, TimeProfile{Min: 1, Median: 3, Max: 9}, profileOf([]time.Duration{9, 1, 3}))
	assert.Equal(t, TimeProfile{Min: 1, Median: 3, Max: 10}, profileOf([]time.Duration{10, 1, 2, 4}))
}

func TestCounters_Harvest(t *testing.T) {
	var c counters
	now := time.Now()
	c.record(unit.Profile{QueuedAt: now, DequeuedAt: now.Add(time.Second), FinishedAt: now.Add(3 * time.Second)})
	c.harvest(4, now)
	c.harvest(1, now)

	h := c.harvested()
	assert.Equal(t, 1, h.onQueue)
	assert.Equal(t, 4, h.onQueuePrev)
	assert.Equal(t, TimeProfile{}, h.wait)

	c.record(unit.Profile{QueuedAt: now, DequeuedAt: now.Add(time.Second), FinishedAt: now.Add(3 * time.Second)})
	c.out.Add(4)
	c.harvest(0, now.Add(2*time.Second))
	h = c.harvested()
	assert.Equal(t, time.Second, h.wait.Median)
	assert.Equal(t, 2*time.Second, h.process.Max)
	assert.InDelta(t, 2.0, c.rate.rate(), 1e-9)
}

func TestFinalizer_When(t *testing.T) {
	f := CountFinalizer(2).When(func(p *unit.Package, _ *unit.TransferingContext) bool {
		return p.Label == "keep"
	})
	called := 0
	f.Then(func(*unit.Package, *unit.TransferingContext) error {
		called++
		return nil
	})
	fn := f.Func()

	tc := unit.NewTransferingContext("tc", nil)
	require.NoError(t, fn(&unit.Package{Label: "drop"}, tc))
	require.NoError(t, fn(&unit.Package{Label: "keep"}, tc))
	assert.Equal(t, int64(1), f.Seen())

	tc.SetErr(stderrors.New("failed"))
	require.NoError(t, fn(&unit.Package{Label: "keep"}, tc))
	<-f.Done()
	assert.Equal(t, 2, called)
	assert.Equal(t, int64(1), f.Failed())
}
