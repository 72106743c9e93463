// Package observability wires OpenTelemetry tracing and metrics into the
// conveyor.
//
// Tracing:
//
//	tp, err := observability.InitTracer(ctx, observability.DefaultTracerConfig("multiplier"), log)
//	defer tp.Shutdown(ctx)
//
//	ctx, span := observability.StartPackageSpan(ctx, pipelineID, pkg.ID, pkg.Label)
//	defer span.End()
//
// Metrics:
//
//	metrics, err := observability.NewMetrics(observability.Meter("justconveyor"))
//	metrics.RecordPackageOut(ctx, pipelineID, took, failed)
//
// Health:
//
//	health := observability.NewServiceHealth("multiplier", version.Short())
//	for _, h := range registry.HealthAll(ctx) {
//		health.AddComponent(h)
//	}
package observability
