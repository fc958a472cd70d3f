// Package observability provides production-grade observability infrastructure
// including structured logging, Prometheus metrics, and OpenTelemetry tracing.
//
// This package centralizes observability concerns to enable:
//   - Span tracing of cascade fetches and strategy attempts
//   - Structured logging with context propagation
//   - Prometheus metrics for monitoring
//   - Duration histograms for cascade attempts and worker jobs
//
// Subpackages:
//   - logging: Structured logging utilities with slog
//   - metrics: Prometheus metrics registry and recorders
//   - tracing: OpenTelemetry tracer accessor (GetTracer)
//
// Example usage:
//
//	import (
//	    "time"
//
//	    "ingestengine/internal/observability/logging"
//	    "ingestengine/internal/observability/metrics"
//	)
//
//	func main() {
//	    logger := logging.NewLogger()
//	    logger.Info("application started")
//
//	    metrics.RecordCascadeAttempt("direct", "success", 250*time.Millisecond)
//	}
package observability
