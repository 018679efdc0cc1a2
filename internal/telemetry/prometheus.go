package telemetry

import (
	"context"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// SetupMeterProvider installs a Prometheus-backed OTEL MeterProvider as the
// global meter provider and returns an http.Handler suitable for mounting at
// GET /metrics. Every stage calls this once at startup; NewClueMetrics then
// draws its meter from the installed provider.
func SetupMeterProvider() (http.Handler, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, err
	}
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(provider)
	return promhttp.Handler(), nil
}

// TracerProvider is the subset of *sdktrace.TracerProvider a stage needs to
// flush spans on shutdown.
type TracerProvider interface {
	Shutdown(ctx context.Context) error
}

// SetupTracerProvider installs a sampling OTEL TracerProvider as the global
// tracer provider and returns it so callers can flush it on shutdown. Export
// is opt-in: when OTEL_EXPORTER_OTLP_ENDPOINT is unset (the common case for
// this pipeline, which is scraped over Prometheus rather than pushed over
// OTLP) spans are sampled and recorded but not exported anywhere, the same
// stance the Clue runtime itself takes until an exporter is configured
// externally.
func SetupTracerProvider() (TracerProvider, error) {
	opts := []sdktrace.TracerProviderOption{sdktrace.WithSampler(sdktrace.AlwaysSample())}
	if os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != "" {
		exporter, err := newOTLPSpanExporter(context.Background())
		if err != nil {
			return nil, err
		}
		opts = append(opts, sdktrace.WithBatcher(exporter))
	}
	provider := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(provider)
	return provider, nil
}
