// Command ingress runs the webhook ingress stage: it accepts HTTP POST
// /event requests, classifies each body into an EventKind, and appends a
// record to the event stream.
//
// Environment variables:
//
//	INGRESS_ADDR           - HTTP listen address (default ":8000")
//	BROKER_MODE            - "direct" or "sentinel" (default "direct")
//	BROKER_HOST            - direct-mode Redis host (default "localhost")
//	BROKER_PORT            - direct-mode Redis port (default "6379")
//	BROKER_DB              - direct-mode Redis database index (default 0)
//	BROKER_PASSWORD        - direct-mode Redis password (optional)
//	SENTINEL_HOSTS         - comma-separated host:port list (sentinel mode)
//	SENTINEL_MASTER_SET    - sentinel master set name (sentinel mode)
//	SENTINEL_PASSWORD      - sentinel password (optional)
//	LOGLEVEL               - "debug" for verbose logging
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	cluelog "goa.design/clue/log"

	"github.com/gitlab-triage/event-triage-pipeline/internal/broker"
	"github.com/gitlab-triage/event-triage-pipeline/internal/config"
	"github.com/gitlab-triage/event-triage-pipeline/internal/ingress"
	"github.com/gitlab-triage/event-triage-pipeline/internal/model"
	"github.com/gitlab-triage/event-triage-pipeline/internal/telemetry"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	format := cluelog.FormatJSON
	if cluelog.IsTerminal() {
		format = cluelog.FormatTerminal
	}
	ctx := cluelog.Context(context.Background(), cluelog.WithFormat(format))

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Debug {
		ctx = cluelog.Context(ctx, cluelog.WithDebug())
	}

	b, err := broker.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect to broker: %w", err)
	}
	defer func() {
		if err := b.Close(context.Background()); err != nil {
			cluelog.Error(ctx, err)
		}
	}()

	eventStream, err := b.Stream(ctx, "event")
	if err != nil {
		return fmt.Errorf("open event stream: %w", err)
	}

	metricsHandler, err := telemetry.SetupMeterProvider()
	if err != nil {
		return fmt.Errorf("setup metrics: %w", err)
	}
	tracerProvider, err := telemetry.SetupTracerProvider()
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer func() {
		if err := tracerProvider.Shutdown(context.Background()); err != nil {
			cluelog.Error(ctx, err)
		}
	}()

	logger := telemetry.NewClueLogger()
	metrics := telemetry.NewClueMetrics(cfg.ServiceName)
	tracer := telemetry.NewClueTracer(cfg.ServiceName)

	validator, err := ingress.NewSchemaValidator()
	if err != nil {
		return fmt.Errorf("compile ingress schemas: %w", err)
	}

	handler := &ingress.Handler{
		Emitter:  &streamEmitter{stream: eventStream},
		Logger:   logger,
		Metrics:  metrics,
		Tracer:   tracer,
		Validate: validator.Validate,
	}

	mux := http.NewServeMux()
	mux.Handle("/event", handler)
	mux.Handle("/metrics", metricsHandler)

	server := &http.Server{Addr: cfg.IngressAddr, Handler: mux}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	errCh := make(chan error, 1)

	go func() {
		cluelog.Print(ctx, cluelog.KV{K: "addr", V: cfg.IngressAddr})
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
	case <-sigCh:
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	return server.Shutdown(context.Background())
}

// streamEmitter adapts *broker.Stream to ingress.Emitter. A json.RawMessage
// value is appended as-is, so the request body reaches the stream byte for
// byte; any other value is JSON-encoded.
type streamEmitter struct {
	stream *broker.Stream
}

func (e *streamEmitter) Emit(ctx context.Context, kind model.EventKind, value any) error {
	payload, ok := value.(json.RawMessage)
	if !ok {
		var err error
		payload, err = json.Marshal(value)
		if err != nil {
			return err
		}
	}
	_, err := e.stream.Append(ctx, kind, payload)
	return err
}
