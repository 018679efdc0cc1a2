// Command classification runs the Classification stage: it reads the
// retrieval stream, scores each record with the configured classifier
// backend, and appends a {prediction, score} envelope to the classification
// stream.
//
// Environment variables: see internal/config, plus
//
//	CLASSIFIER_BACKEND - "http" (default) or "llm"
//	MODEL_URL          - http backend: model server base URL
//	LLM_PROVIDER       - llm backend: "anthropic" (default), "openai", or "bedrock"
//	LLM_MODEL          - llm backend: provider model name/ID
//	ANTHROPIC_API_KEY  - llm backend, anthropic provider
//	OPENAI_API_KEY     - llm backend, openai provider
//	AWS_REGION         - llm backend, bedrock provider
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
	"github.com/gitlab-triage/event-triage-pipeline/internal/classification"
	"github.com/gitlab-triage/event-triage-pipeline/internal/classification/httpmodel"
	"github.com/gitlab-triage/event-triage-pipeline/internal/classification/llm"
	"github.com/gitlab-triage/event-triage-pipeline/internal/config"
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

	classifier, err := buildClassifier(ctx, cfg)
	if err != nil {
		return fmt.Errorf("build classifier: %w", err)
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

	inputStream, err := b.Stream(ctx, "retrieval")
	if err != nil {
		return fmt.Errorf("open retrieval stream: %w", err)
	}
	outputStream, err := b.Stream(ctx, "classification")
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

	stage := &pipeline.Stage{
		Name:     "classification",
		Input:    inputStream,
		Output:   outputStream,
		SinkName: "classification-stage",
		Logger:   logger,
		Metrics:  metrics,
		Tracer:   tracer,
	}
	stage.Process = classification.Process(classifier, stage, metrics, logger)

	if err := stage.Connect(ctx); err != nil {
		return fmt.Errorf("connect classification stage: %w", err)
	}
	defer stage.Close(ctx)

	mux := http.NewServeMux()
	mux.Handle("/metrics", metricsHandler)
	server := &http.Server{Addr: envAddr("CLASSIFICATION_ADDR", ":8003"), Handler: mux}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	errCh := make(chan error, 1)

	stageCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := stage.Run(stageCtx); err != nil {
			errCh <- fmt.Errorf("run classification stage: %w", err)
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

// buildClassifier selects the backend named by cfg.ClassifierBackend. The
// http backend talks to the model server named by MODEL_URL; the llm
// backend builds the judge for cfg.LLMProvider.
func buildClassifier(ctx context.Context, cfg config.Config) (classification.Classifier, error) {
	switch cfg.ClassifierBackend {
	case config.ClassifierBackendLLM:
		judge, err := buildJudge(ctx, cfg.LLMProvider)
		if err != nil {
			return nil, err
		}
		return &llm.Classifier{Judge: judge}, nil
	default:
		if cfg.ModelURL == "" {
			return nil, errors.New("MODEL_URL is required when CLASSIFIER_BACKEND=http")
		}
		return &httpmodel.Classifier{BaseURL: cfg.ModelURL}, nil
	}
}

func buildJudge(ctx context.Context, provider string) (llm.Judge, error) {
	modelName := os.Getenv("LLM_MODEL")
	switch provider {
	case "openai":
		return llm.NewOpenAIJudge(os.Getenv("OPENAI_API_KEY"), modelName)
	case "bedrock":
		region := envAddr("AWS_REGION", "us-east-1")
		return llm.NewBedrockJudge(ctx, region, modelName)
	case "anthropic", "":
		return llm.NewAnthropicJudge(os.Getenv("ANTHROPIC_API_KEY"), modelName)
	default:
		return nil, fmt.Errorf("unknown LLM_PROVIDER %q", provider)
	}
}

func envAddr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}
