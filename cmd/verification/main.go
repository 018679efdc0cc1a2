// Command verification runs the Verification stage: it reads the event
// stream, drops records from trusted actors, and appends the rest to the
// verification stream. It also serves POST /verify_email for Retrieval's
// per-snippet trust checks.
//
// Environment variables: see internal/config, plus
//
//	VERIFICATION_ADDR      - HTTP listen address (default ":8001")
//	VERIFIED_DOMAINS_FILE  - YAML file with a top-level "domains" sequence
//	VERIFIED_USERS_FILE    - YAML file with a top-level "users" sequence
//	PLATFORM_URL           - platform API base URL (group-owner lookups)
//	PLATFORM_TOKEN         - platform API private token
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	cluelog "goa.design/clue/log"

	"github.com/gitlab-triage/event-triage-pipeline/internal/broker"
	"github.com/gitlab-triage/event-triage-pipeline/internal/config"
	"github.com/gitlab-triage/event-triage-pipeline/internal/pipeline"
	"github.com/gitlab-triage/event-triage-pipeline/internal/platformapi"
	"github.com/gitlab-triage/event-triage-pipeline/internal/telemetry"
	"github.com/gitlab-triage/event-triage-pipeline/internal/trust"
	"github.com/gitlab-triage/event-triage-pipeline/internal/verification"
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

	trustList, err := trust.Load(cfg.VerifiedDomainsFile, cfg.VerifiedUsersFile)
	if err != nil {
		return fmt.Errorf("load trust lists: %w", err)
	}
	installReloadSignal(ctx, trustList)

	b, err := broker.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect to broker: %w", err)
	}
	defer func() {
		if err := b.Close(context.Background()); err != nil {
			cluelog.Error(ctx, err)
		}
	}()

	inputStream, err := b.Stream(ctx, "event")
	if err != nil {
		return fmt.Errorf("open event stream: %w", err)
	}
	outputStream, err := b.Stream(ctx, "verification")
	if err != nil {
		return fmt.Errorf("open verification stream: %w", err)
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

	platformClient := platformapi.New(platformapi.Options{BaseURL: cfg.PlatformURL, Token: cfg.PlatformToken})

	stage := &pipeline.Stage{
		Name:     "verification",
		Input:    inputStream,
		Output:   outputStream,
		SinkName: "verification-stage",
		Logger:   logger,
		Metrics:  metrics,
		Tracer:   tracer,
	}
	stage.Process = verification.Process(stage, platformClient, trustList, logger)

	if err := stage.Connect(ctx); err != nil {
		return fmt.Errorf("connect verification stage: %w", err)
	}
	defer stage.Close(ctx)

	mux := http.NewServeMux()
	mux.Handle("/verify_email", &verification.VerifyEmailHandler{TrustList: trustList})
	mux.Handle("/metrics", metricsHandler)
	server := &http.Server{Addr: cfg.VerificationAddr, Handler: mux}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	errCh := make(chan error, 1)

	var wg sync.WaitGroup
	stageCtx, cancel := context.WithCancel(ctx)
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := stage.Run(stageCtx); err != nil {
			errCh <- fmt.Errorf("run verification stage: %w", err)
		}
	}()

	go func() {
		cluelog.Print(ctx, cluelog.KV{K: "addr", V: cfg.VerificationAddr})
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
			wg.Wait()
			return err
		}
	}

	cancel()
	shutdownErr := server.Shutdown(context.Background())
	wg.Wait()
	return shutdownErr
}

func installReloadSignal(ctx context.Context, trustList *trust.List) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	go func() {
		for range hup {
			if err := trustList.Reload(); err != nil {
				cluelog.Error(ctx, fmt.Errorf("reload trust lists: %w", err))
			}
		}
	}()
}
