package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/kbukum/justconveyor/logger"
)

// MeterConfig configures the OpenTelemetry meter provider.
type MeterConfig struct {
	ServiceName    string        `mapstructure:"service_name"`
	ServiceVersion string        `mapstructure:"service_version"`
	Environment    string        `mapstructure:"environment"`
	Endpoint       string        `mapstructure:"endpoint"`
	Insecure       bool          `mapstructure:"insecure"`
	Interval       time.Duration `mapstructure:"interval"`
}

// DefaultMeterConfig returns sensible defaults for development.
func DefaultMeterConfig(serviceName string) MeterConfig {
	return MeterConfig{
		ServiceName:    serviceName,
		ServiceVersion: "1.0.0",
		Environment:    "development",
		Endpoint:       "localhost:4318",
		Insecure:       true,
		Interval:       15 * time.Second,
	}
}

// InitMeter installs an OTLP/HTTP meter provider as the global provider.
// The returned provider must be shut down on exit.
func InitMeter(ctx context.Context, config *MeterConfig, log *logger.Logger) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(config.Endpoint),
	}
	if config.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}

	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	res, err := newResource(config.ServiceName, config.ServiceVersion, config.Environment)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	readerOpts := []sdkmetric.PeriodicReaderOption{}
	if config.Interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(config.Interval))
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(res),
	)

	otel.SetMeterProvider(mp)

	if log != nil {
		log.Info("meter initialized", logger.Fields(
			"service", config.ServiceName,
			"endpoint", config.Endpoint,
			"interval", config.Interval.String(),
		))
	}

	return mp, nil
}

// Meter returns a named meter from the global provider.
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}

// Metrics holds the conveyor instruments.
type Metrics struct {
	packagesIn       metric.Int64Counter
	packagesOut      metric.Int64Counter
	packageErrors    metric.Int64Counter
	processDuration  metric.Float64Histogram
	queueWait        metric.Float64Histogram
	queueDepth       metric.Int64Gauge
	suppliedPackages metric.Int64Counter
	supplierErrors   metric.Int64Counter
	lostPackages     metric.Int64Counter
}

// NewMetrics creates the conveyor instruments on the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	var (
		m   Metrics
		err error
	)

	if m.packagesIn, err = meter.Int64Counter("conveyor.packages.in",
		metric.WithDescription("Packages taken from a pipeline queue"),
	); err != nil {
		return nil, fmt.Errorf("creating conveyor.packages.in counter: %w", err)
	}

	if m.packagesOut, err = meter.Int64Counter("conveyor.packages.out",
		metric.WithDescription("Packages that finished a pipeline"),
	); err != nil {
		return nil, fmt.Errorf("creating conveyor.packages.out counter: %w", err)
	}

	if m.packageErrors, err = meter.Int64Counter("conveyor.packages.errors",
		metric.WithDescription("Packages whose processing ended with an error"),
	); err != nil {
		return nil, fmt.Errorf("creating conveyor.packages.errors counter: %w", err)
	}

	if m.processDuration, err = meter.Float64Histogram("conveyor.process.duration",
		metric.WithDescription("Time a package spent inside a pipeline"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("creating conveyor.process.duration histogram: %w", err)
	}

	if m.queueWait, err = meter.Float64Histogram("conveyor.queue.wait",
		metric.WithDescription("Time a package waited on a pipeline queue"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("creating conveyor.queue.wait histogram: %w", err)
	}

	if m.queueDepth, err = meter.Int64Gauge("conveyor.queue.depth",
		metric.WithDescription("Packages waiting on a pipeline queue"),
	); err != nil {
		return nil, fmt.Errorf("creating conveyor.queue.depth gauge: %w", err)
	}

	if m.suppliedPackages, err = meter.Int64Counter("conveyor.supplier.packages",
		metric.WithDescription("Packages produced by suppliers"),
	); err != nil {
		return nil, fmt.Errorf("creating conveyor.supplier.packages counter: %w", err)
	}

	if m.supplierErrors, err = meter.Int64Counter("conveyor.supplier.errors",
		metric.WithDescription("Supplier poll failures"),
	); err != nil {
		return nil, fmt.Errorf("creating conveyor.supplier.errors counter: %w", err)
	}

	if m.lostPackages, err = meter.Int64Counter("conveyor.packages.lost",
		metric.WithDescription("Packages that matched no pipeline"),
	); err != nil {
		return nil, fmt.Errorf("creating conveyor.packages.lost counter: %w", err)
	}

	return &m, nil
}

func pipelineAttr(pipeline string) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String(AttrPipeline, pipeline))
}

// RecordPackageIn counts a package taken off a pipeline queue.
func (m *Metrics) RecordPackageIn(ctx context.Context, pipeline string, waited time.Duration) {
	m.packagesIn.Add(ctx, 1, pipelineAttr(pipeline))
	m.queueWait.Record(ctx, waited.Seconds(), pipelineAttr(pipeline))
}

// RecordPackageOut records a finished package and whether it failed.
func (m *Metrics) RecordPackageOut(ctx context.Context, pipeline string, took time.Duration, failed bool) {
	status := "ok"
	if failed {
		status = "error"
		m.packageErrors.Add(ctx, 1, pipelineAttr(pipeline))
	}
	m.packagesOut.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrPipeline, pipeline),
		attribute.String(AttrStatus, status),
	))
	m.processDuration.Record(ctx, took.Seconds(), pipelineAttr(pipeline))
}

// RecordQueueDepth records the harvested size of a pipeline queue.
func (m *Metrics) RecordQueueDepth(ctx context.Context, queue string, depth int) {
	m.queueDepth.Record(ctx, int64(depth), metric.WithAttributes(attribute.String(AttrQueue, queue)))
}

// RecordSupplied counts a package produced by a supplier.
func (m *Metrics) RecordSupplied(ctx context.Context, supplier string) {
	m.suppliedPackages.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrSupplier, supplier)))
}

// RecordSupplierError counts a failed supplier poll.
func (m *Metrics) RecordSupplierError(ctx context.Context, supplier string) {
	m.supplierErrors.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrSupplier, supplier)))
}

// RecordLost counts a package no pipeline accepted.
func (m *Metrics) RecordLost(ctx context.Context, routingKey string) {
	m.lostPackages.Add(ctx, 1, metric.WithAttributes(attribute.String("routing_key", routingKey)))
}
