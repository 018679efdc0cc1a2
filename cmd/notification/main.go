// Command notification runs the Notification stage: it reads the
// classification stream, renders each envelope into a chat message, and
// posts it to the configured chat webhook. It is the terminal stage — it
// has no output stream.
//
// Environment variables: see internal/config, plus
//
//	CHAT_WEBHOOK_URL - chat webhook endpoint
package main

import (
	"context"
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
	"github.com/gitlab-triage/event-triage-pipeline/internal/notification"
	"github.com/gitlab-triage/event-triage-pipeline/internal/pipeline"
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
	if cfg.ChatWebhookURL == "" {
		return errors.New("CHAT_WEBHOOK_URL is required")
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

	inputStream, err := b.Stream(ctx, "classification")
	if err != nil {
		return fmt.Errorf("open classification stream: %w", err)
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

	webhook := &notification.ChatWebhook{URL: cfg.ChatWebhookURL, Timeout: cfg.RequestTimeout}

	stage := &pipeline.Stage{
		Name:     "notification",
		Input:    inputStream,
		SinkName: "notification-stage",
		Logger:   logger,
		Metrics:  metrics,
		Tracer:   tracer,
	}
	stage.Process = notification.Process(webhook, metrics, logger)

	if err := stage.Connect(ctx); err != nil {
		return fmt.Errorf("connect notification stage: %w", err)
	}
	defer stage.Close(ctx)

	mux := http.NewServeMux()
	mux.Handle("/metrics", metricsHandler)
	server := &http.Server{Addr: envAddr("NOTIFICATION_ADDR", ":8004"), Handler: mux}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	errCh := make(chan error, 1)

	stageCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := stage.Run(stageCtx); err != nil {
			errCh <- fmt.Errorf("run notification stage: %w", err)
		}
	}()

	go func() {
		cluelog.Print(ctx, cluelog.KV{K: "addr", V: server.Addr})
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
			cancel()
			_ = server.Shutdown(context.Background())
			<-done
			return err
		}
	}

	cancel()
	shutdownErr := server.Shutdown(context.Background())
	<-done
	return shutdownErr
}

func envAddr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}
