package conveyor

import (
	"context"
	"fmt"
	"reflect"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kbukum/justconveyor/component"
	"github.com/kbukum/justconveyor/di"
	"github.com/kbukum/justconveyor/errors"
	"github.com/kbukum/justconveyor/logger"
	"github.com/kbukum/justconveyor/observability"
	"github.com/kbukum/justconveyor/pipeline"
	"github.com/kbukum/justconveyor/queue"
	"github.com/kbukum/justconveyor/resilience"
	"github.com/kbukum/justconveyor/unit"
)

const componentName = "conveyor"

// wrapper is a compiled pipeline with its queue, lines and counters.
type wrapper struct {
	pipeline   *pipeline.Pipeline
	queue      queue.Queue
	lines      int
	forType    bool
	routingKey string
	builder    string
	finalizers []FinalizerFunc
	counters   counters
	workers    []*line
}

// Option configures a Conveyor.
type Option func(*Conveyor)

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(c *Conveyor) { c.log = l }
}

// WithQueueManager replaces the in-memory queue manager.
func WithQueueManager(m *queue.Manager) Option {
	return func(c *Conveyor) { c.queues = m }
}

// WithResolver sets the service locator used to bind carriers.
func WithResolver(r pipeline.Resolver) Option {
	return func(c *Conveyor) { c.resolver = r }
}

// WithMetrics sets the metric instruments.
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Conveyor) { c.metrics = m }
}

// Conveyor routes packages from suppliers into pipelines, each drained by
// a fixed number of worker lines.
type Conveyor struct {
	settings Settings
	log      *logger.Logger
	queues   *queue.Manager
	resolver pipeline.Resolver
	metrics  *observability.Metrics

	mu         sync.RWMutex
	byType     map[reflect.Type]*wrapper
	byName     map[string]*wrapper
	named      map[string]*wrapper
	ordered    []*wrapper
	suppliers  []*supplierRun
	finalizers []FinalizerFunc
	lost       []LostPackageFunc

	contexts sync.Map
	boxes    waitBoxes
	cooldown *cooldown

	running   atomic.Bool
	startedAt time.Time
	stopped   chan struct{}
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// New creates a conveyor. Zero settings fields take their defaults.
func New(settings Settings, opts ...Option) (*Conveyor, error) {
	settings.ApplyDefaults()
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	c := &Conveyor{
		settings: settings,
		byType:   make(map[reflect.Type]*wrapper),
		byName:   make(map[string]*wrapper),
		named:    make(map[string]*wrapper),
		cooldown: newCooldown(),
		stopped:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = logger.Nop()
	}
	c.log = c.log.WithComponent(componentName)
	if c.queues == nil {
		c.queues = queue.NewManager(nil)
	}
	if c.metrics == nil {
		m, err := observability.NewMetrics(observability.Meter("justconveyor/conveyor"))
		if err != nil {
			return nil, fmt.Errorf("conveyor metrics: %w", err)
		}
		c.metrics = m
	}
	return c, nil
}

func (c *Conveyor) checkNotStarted(op string) error {
	if !c.startedAt.IsZero() {
		return errors.Validation(op + ": conveyor already started")
	}
	return nil
}

// RegisterBlueprint compiles the descriptor blueprint and creates its queue.
func (c *Conveyor) RegisterBlueprint(d Descriptor) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkNotStarted("register blueprint"); err != nil {
		return err
	}
	if d.Lines == 0 {
		d.Lines = 1
	}
	if err := d.Validate(); err != nil {
		return err
	}

	if _, ok := c.named[d.Blueprint.Name()]; ok {
		return errors.DuplicateRegistration("blueprint", d.Blueprint.Name())
	}

	w := &wrapper{lines: d.Lines, forType: d.ForType, builder: d.Builder}
	if d.ForType {
		seed := d.Blueprint.SeedType()
		if _, ok := c.byType[seed]; ok {
			return errors.DuplicateRegistration("routing type", seed.String())
		}
		w.routingKey = seed.String()
	} else {
		if _, ok := c.byName[d.Blueprint.Name()]; ok {
			return errors.DuplicateRegistration("routing name", d.Blueprint.Name())
		}
		w.routingKey = d.Blueprint.Name()
	}

	opts := []pipeline.Option{pipeline.WithLogger(c.log)}
	if c.resolver != nil {
		opts = append(opts, pipeline.WithResolver(c.resolver))
	}
	if c.settings.StepTracing {
		opts = append(opts, pipeline.WithStepTracing())
	}
	p, err := pipeline.Compile(d.Blueprint, opts...)
	if err != nil {
		return err
	}
	w.pipeline = p

	q, err := c.queues.CreateQueue(d.Blueprint.Name() + "_queue")
	if err != nil {
		return err
	}
	w.queue = q

	if d.ForType {
		c.byType[d.Blueprint.SeedType()] = w
	} else {
		c.byName[d.Blueprint.Name()] = w
	}
	c.named[d.Blueprint.Name()] = w
	c.ordered = append(c.ordered, w)
	c.log.Info("blueprint registered", logger.Fields(
		logger.FieldBlueprint, d.Blueprint.String(),
		logger.FieldPipeline, p.ID(),
		logger.FieldRoutingKey, w.routingKey,
		"lines", d.Lines,
	))
	return nil
}

// WithSupplier registers a named supplier.
func (c *Conveyor) WithSupplier(name string, s Supplier) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkNotStarted("add supplier"); err != nil {
		return err
	}
	for _, existing := range c.suppliers {
		if existing.name == name {
			return errors.DuplicateRegistration("supplier", name)
		}
	}
	run := &supplierRun{name: name, supplier: s}
	if c.settings.SupplierRate > 0 {
		run.limiter = resilience.NewRateLimiter(resilience.RateLimiterConfig{
			Name:  name,
			Rate:  c.settings.SupplierRate,
			Burst: c.settings.SupplierBurst,
		})
	}
	c.suppliers = append(c.suppliers, run)
	return nil
}

// WithPipelineFinalizer adds a finalizer to the pipeline registered as name.
func (c *Conveyor) WithPipelineFinalizer(name string, f FinalizerFunc) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkNotStarted("add finalizer"); err != nil {
		return err
	}
	for _, w := range c.ordered {
		if w.pipeline.Name() == name {
			w.finalizers = append(w.finalizers, f)
			return nil
		}
	}
	return errors.BlueprintNotRegistered(name)
}

// WithFinalizer adds a finalizer that runs after every pipeline.
func (c *Conveyor) WithFinalizer(f FinalizerFunc) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkNotStarted("add finalizer"); err != nil {
		return err
	}
	c.finalizers = append(c.finalizers, f)
	return nil
}

// WithLostPackagesProcessor adds a handler for packages no pipeline accepts.
func (c *Conveyor) WithLostPackagesProcessor(f LostPackageFunc) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkNotStarted("add lost packages processor"); err != nil {
		return err
	}
	c.lost = append(c.lost, f)
	return nil
}

// Discover registers every BlueprintSource and NamedSupplier found in the
// container.
func (c *Conveyor) Discover(container di.Container) error {
	sources, err := di.Scan[BlueprintSource](container)
	if err != nil {
		return err
	}
	for _, src := range sources {
		for _, d := range src.Blueprints() {
			if d.Builder == "" {
				d.Builder = reflect.TypeOf(src).String()
			}
			if err := c.RegisterBlueprint(d); err != nil {
				return err
			}
		}
	}

	suppliers, err := di.Scan[NamedSupplier](container)
	if err != nil {
		return err
	}
	for _, s := range suppliers {
		if err := c.WithSupplier(s.SupplierName(), s); err != nil {
			return err
		}
	}
	return nil
}

// Name implements component.Component.
func (c *Conveyor) Name() string { return componentName }

// Start launches the lines, the suppliers and the background tickers.
// Units run on a context detached from ctx cancellation.
func (c *Conveyor) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkNotStarted("start"); err != nil {
		return err
	}
	if len(c.suppliers) == 0 {
		return errors.NoSupplier()
	}
	if len(c.ordered) == 0 {
		return errors.NoBlueprint()
	}

	workCtx := context.WithoutCancel(ctx)
	bgCtx, cancel := context.WithCancel(workCtx)
	c.cancel = cancel
	c.startedAt = time.Now()
	c.running.Store(true)

	for _, w := range c.ordered {
		w.counters.rate.reset(c.startedAt)
		for n := 1; n <= w.lines; n++ {
			l := &line{id: w.pipeline.ID() + ":" + strconv.Itoa(n), w: w}
			w.workers = append(w.workers, l)
			c.wg.Add(1)
			go c.runLine(workCtx, l)
		}
	}
	for _, s := range c.suppliers {
		s.rate.reset(c.startedAt)
		c.wg.Add(1)
		go c.runSupplier(bgCtx, s)
	}

	c.wg.Add(2)
	go c.tick(bgCtx, c.settings.CooldownPeriod, c.cooldown.release)
	go c.tick(bgCtx, c.settings.HarvestPeriod, func() { c.harvest(bgCtx) })

	c.log.Info("conveyor started", logger.Fields("pipelines", len(c.ordered), "suppliers", len(c.suppliers)))
	return nil
}

func (c *Conveyor) tick(ctx context.Context, every time.Duration, fn func()) {
	defer c.wg.Done()
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			fn()
		}
	}
}

func (c *Conveyor) harvest(ctx context.Context) {
	now := time.Now()
	for _, w := range c.ordered {
		depth := w.queue.Count()
		w.counters.harvest(depth, now)
		c.metrics.RecordQueueDepth(ctx, w.queue.Name(), depth)
	}
	for _, s := range c.suppliers {
		s.rate.tick(s.supplied.Load(), now)
	}
}

// Stop halts the suppliers and tickers, closes the queues and waits for
// the lines to drain what was already queued, bounded by ctx.
func (c *Conveyor) Stop(ctx context.Context) error {
	if !c.running.CompareAndSwap(true, false) {
		return nil
	}
	c.cancel()
	closeErr := c.queues.Close()
	close(c.stopped)

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	c.harvest(context.Background())
	c.log.Info("conveyor stopped")
	return closeErr
}

// Running reports whether the conveyor accepts packages.
func (c *Conveyor) Running() bool { return c.running.Load() }

// Health implements component.Component.
func (c *Conveyor) Health(_ context.Context) component.Health {
	h := component.Health{Name: componentName, Status: component.StatusHealthy}
	if !c.running.Load() {
		h.Status = component.StatusUnhealthy
		h.Message = "not running"
		return h
	}
	for _, s := range c.suppliers {
		if s.State() == SupplierFinished {
			h.Status = component.StatusDegraded
			h.Message = "supplier " + s.name + " finished"
		}
	}
	return h
}

// Describe implements component.Describable.
func (c *Conveyor) Describe() component.Description {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return component.Description{
		Name:    componentName,
		Type:    "pipeline runtime",
		Details: fmt.Sprintf("%d pipelines, %d suppliers", len(c.ordered), len(c.suppliers)),
	}
}

func routingKeyOf(p *unit.Package) string {
	if p.Load != nil {
		return reflect.TypeOf(p.Load).String() + "|" + p.Label
	}
	return p.Label
}

// lookup finds the pipeline for a package: by load type first, then by
// label.
func (c *Conveyor) lookup(p *unit.Package) *wrapper {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if p.Load != nil {
		if w, ok := c.byType[reflect.TypeOf(p.Load)]; ok {
			return w
		}
	}
	return c.byName[p.Label]
}

func (c *Conveyor) route(ctx context.Context, p *unit.Package) error {
	w := c.lookup(p)
	if w == nil {
		c.lose(ctx, p)
		return errors.BlueprintNotRegistered(routingKeyOf(p))
	}
	return w.queue.Publish(ctx, p)
}

func (c *Conveyor) lose(ctx context.Context, p *unit.Package) {
	key := routingKeyOf(p)
	c.metrics.RecordLost(ctx, key)
	c.log.Warn("package was not routed", logger.Fields(logger.FieldPackageID, p.ID, logger.FieldRoutingKey, key))
	for _, f := range c.lost {
		func() {
			defer func() {
				if r := recover(); r != nil {
					c.log.Error("lost packages processor panic", logger.Fields("panic", fmt.Sprint(r)))
				}
			}()
			if err := f(p); err != nil {
				c.log.Error("lost packages processor failed", logger.Fields(logger.FieldError, err))
			}
		}()
	}
}

// Process routes p and waits for the pipeline result. A DeliveryBoxID set
// by the caller is used as correlation id and must be unique among calls
// in flight.
func (c *Conveyor) Process(ctx context.Context, p *unit.Package) (*unit.Package, error) {
	if !c.running.Load() {
		return nil, errors.NotRunning("process")
	}
	return c.await(ctx, p, c.route)
}

// Call sends p to the pipeline built from the blueprint called name and
// waits for the result. Pipelines routed by type are reachable too; the
// load type and label of p are not consulted.
func (c *Conveyor) Call(ctx context.Context, name string, p *unit.Package) (*unit.Package, error) {
	if !c.running.Load() {
		return nil, errors.NotRunning("call " + name)
	}
	c.mu.RLock()
	w, ok := c.named[name]
	c.mu.RUnlock()
	if !ok {
		return nil, errors.BlueprintNotRegistered(name)
	}
	return c.await(ctx, p, func(ctx context.Context, p *unit.Package) error {
		return w.queue.Publish(ctx, p)
	})
}

func (c *Conveyor) await(ctx context.Context, p *unit.Package, post func(context.Context, *unit.Package) error) (*unit.Package, error) {
	id, box, err := c.boxes.open(p.DeliveryBoxID)
	if err != nil {
		return nil, err
	}
	defer c.boxes.close(id)

	p.DeliveryBoxID = id
	if err := post(ctx, p); err != nil {
		return nil, err
	}

	select {
	case d := <-box:
		if d.err != nil {
			return nil, d.err
		}
		out := &unit.Package{ID: p.ID, Label: p.Label, Headers: p.Headers}
		if final := d.tc.Final(); final != nil {
			out.Load = final.Unit
			out.Headers = final.Headers
		}
		return out, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
