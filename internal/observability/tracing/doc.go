// Package tracing provides OpenTelemetry tracing integration.
//
// GetTracer returns the process-wide OpenTelemetry tracer named
// "ingestengine". The cascade engine uses it for its "cascade.fetch" and
// "cascade.attempt" spans. This package installs no TracerProvider,
// exporter or propagator; spans go to the global OpenTelemetry provider.
//
// Example usage:
//
//	import "ingestengine/internal/observability/tracing"
//
//	func process(ctx context.Context) {
//	    ctx, span := tracing.GetTracer().Start(ctx, "process")
//	    defer span.End()
//	    // ... work ...
//	}
package tracing
