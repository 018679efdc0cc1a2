package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// newOTLPSpanExporter builds the exporter SetupTracerProvider uses once an
// operator opts into span export via OTEL_EXPORTER_OTLP_ENDPOINT; the
// exporter itself reads endpoint/header configuration from the standard
// OTEL_EXPORTER_OTLP_* environment variables.
func newOTLPSpanExporter(ctx context.Context) (sdktrace.SpanExporter, error) {
	return otlptracehttp.New(ctx)
}
