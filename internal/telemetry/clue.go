package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"goa.design/clue/log"
)

// ClueLogger implements Logger on top of goa.design/clue/log.
type ClueLogger struct{}

// NewClueLogger returns a Logger that writes through the Clue context logger
// installed by log.Context at process startup.
func NewClueLogger() *ClueLogger { return &ClueLogger{} }

func (l *ClueLogger) Debug(ctx context.Context, msg string, keyvals ...any) {
	log.Debug(ctx, msg, kvFielders(keyvals)...)
}

func (l *ClueLogger) Info(ctx context.Context, msg string, keyvals ...any) {
	log.Info(ctx, msg, kvFielders(keyvals)...)
}

func (l *ClueLogger) Warn(ctx context.Context, msg string, keyvals ...any) {
	fielders := append([]log.Fielder{log.KV{K: "msg", V: msg}}, kvFielders(keyvals)...)
	log.Warn(ctx, fielders...)
}

func (l *ClueLogger) Error(ctx context.Context, msg string, keyvals ...any) {
	log.Error(ctx, nil, append([]log.Fielder{log.KV{K: "msg", V: msg}}, kvFielders(keyvals)...)...)
}

func kvFielders(keyvals []any) []log.Fielder {
	fielders := make([]log.Fielder, 0, len(keyvals)/2)
	for i := 0; i+1 < len(keyvals); i += 2 {
		key, ok := keyvals[i].(string)
		if !ok {
			continue
		}
		fielders = append(fielders, log.KV{K: key, V: keyvals[i+1]})
	}
	return fielders
}

// ClueMetrics implements Metrics on top of an OpenTelemetry meter.
type ClueMetrics struct {
	mu       sync.Mutex
	meter    metric.Meter
	counters map[string]metric.Float64Counter
	hists    map[string]metric.Float64Histogram
}

// NewClueMetrics creates a Metrics handle backed by the global OTEL meter
// provider, scoped to the given instrumentation name (typically the stage's
// service name).
func NewClueMetrics(scope string) *ClueMetrics {
	return &ClueMetrics{
		meter:    otel.Meter(scope),
		counters: map[string]metric.Float64Counter{},
		hists:    map[string]metric.Float64Histogram{},
	}
}

func (m *ClueMetrics) IncCounter(name string, value float64, tags ...string) {
	m.mu.Lock()
	c, ok := m.counters[name]
	if !ok {
		var err error
		c, err = m.meter.Float64Counter(name)
		if err != nil {
			m.mu.Unlock()
			return
		}
		m.counters[name] = c
	}
	m.mu.Unlock()
	c.Add(context.Background(), value, metric.WithAttributes(tagAttrs(tags)...))
}

func (m *ClueMetrics) RecordLatency(name string, seconds float64, tags ...string) {
	m.mu.Lock()
	h, ok := m.hists[name]
	if !ok {
		var err error
		h, err = m.meter.Float64Histogram(name)
		if err != nil {
			m.mu.Unlock()
			return
		}
		m.hists[name] = h
	}
	m.mu.Unlock()
	h.Record(context.Background(), seconds, metric.WithAttributes(tagAttrs(tags)...))
}

func tagAttrs(tags []string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(tags)/2)
	for i := 0; i+1 < len(tags); i += 2 {
		attrs = append(attrs, attribute.String(tags[i], tags[i+1]))
	}
	return attrs
}

// ClueTracer implements Tracer on top of an OpenTelemetry tracer.
type ClueTracer struct {
	tracer trace.Tracer
}

// NewClueTracer creates a Tracer scoped to the given instrumentation name.
func NewClueTracer(scope string) *ClueTracer {
	return &ClueTracer{tracer: otel.Tracer(scope)}
}

func (t *ClueTracer) Start(ctx context.Context, name string) (context.Context, Span) {
	ctx, span := t.tracer.Start(ctx, name)
	return ctx, &clueSpan{span: span}
}

type clueSpan struct {
	span trace.Span
}

func (s *clueSpan) End() { s.span.End() }

func (s *clueSpan) SetError(err error) {
	if err == nil {
		return
	}
	s.span.RecordError(err)
	s.span.SetStatus(codes.Error, err.Error())
}

func (s *clueSpan) AddEvent(name string, keyvals ...any) {
	attrs := make([]attribute.KeyValue, 0, len(keyvals)/2)
	for i := 0; i+1 < len(keyvals); i += 2 {
		key, ok := keyvals[i].(string)
		if !ok {
			continue
		}
		attrs = append(attrs, attribute.String(key, toString(keyvals[i+1])))
	}
	s.span.AddEvent(name, trace.WithAttributes(attrs...))
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
