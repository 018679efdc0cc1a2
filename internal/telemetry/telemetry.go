// Package telemetry provides the Logger/Metrics/Tracer handles every stage
// passes explicitly to its components, generalized from the agent-runtime
// telemetry interfaces onto pipeline-stage concerns (ingress records
// received, unhandled or failed to emit; classification failures;
// notifications sent or failed). Concrete implementations are
// backed by goa.design/clue for logging and OpenTelemetry for metrics and
// tracing.
package telemetry

import "context"

// Logger is the structured logging surface passed to every stage component.
type Logger interface {
	Debug(ctx context.Context, msg string, keyvals ...any)
	Info(ctx context.Context, msg string, keyvals ...any)
	Warn(ctx context.Context, msg string, keyvals ...any)
	Error(ctx context.Context, msg string, keyvals ...any)
}

// Metrics is the counter/histogram surface passed to every stage component.
// Counts are process-local; multi-process aggregation is left to the metric
// backend scraping GET /metrics on each stage instance.
type Metrics interface {
	IncCounter(name string, value float64, tags ...string)
	RecordLatency(name string, seconds float64, tags ...string)
}

// Tracer starts spans around each record a pipeline stage processes and
// around each inbound ingress webhook request.
type Tracer interface {
	Start(ctx context.Context, name string) (context.Context, Span)
}

// Span is the subset of an OTEL span used by pipeline components.
type Span interface {
	End()
	SetError(err error)
	AddEvent(name string, keyvals ...any)
}
