package pipeline

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"goa.design/pulse/streaming"

	"github.com/gitlab-triage/event-triage-pipeline/internal/model"
	"github.com/gitlab-triage/event-triage-pipeline/internal/telemetry"
)

// fakeConsumer is an in-memory eventConsumer used to drive Stage.RunOnce
// deterministically without a live broker.
type fakeConsumer struct {
	mu     sync.Mutex
	events chan *streaming.Event
	acked  []string
}

func newFakeConsumer(events ...*streaming.Event) *fakeConsumer {
	ch := make(chan *streaming.Event, len(events))
	for _, ev := range events {
		ch <- ev
	}
	return &fakeConsumer{events: ch}
}

func (f *fakeConsumer) Events() <-chan *streaming.Event { return f.events }

func (f *fakeConsumer) Ack(_ context.Context, ev *streaming.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acked = append(f.acked, ev.ID)
	return nil
}

func (f *fakeConsumer) Close(context.Context) {}

func (f *fakeConsumer) ackedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.acked...)
}

// fakeEmitter is an in-memory eventEmitter that records every appended
// record.
type fakeEmitter struct {
	mu      sync.Mutex
	records []model.Record
}

func (f *fakeEmitter) Append(_ context.Context, kind model.EventKind, payload []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, model.Record{Kind: kind, Payload: payload})
	return "generated-id", nil
}

func rawEvent(id string, kind model.EventKind, payload string) *streaming.Event {
	return &streaming.Event{ID: id, Payload: map[string]any{string(kind): payload}}
}

func TestRunOnce_SuccessAcksAndEmits(t *testing.T) {
	consumer := newFakeConsumer(rawEvent("1", model.EventUserCreate, `{"id":7}`))
	emitter := &fakeEmitter{}
	s := &Stage{
		Name:     "verification",
		Output:   emitter,
		consumer: consumer,
		Process: func(ctx context.Context, record model.Record) error {
			_, err := emitter.Append(ctx, record.Kind, record.Payload)
			return err
		},
	}
	require.NoError(t, s.RunOnce(context.Background()))
	assert.Equal(t, []string{"1"}, consumer.ackedIDs())
	assert.Len(t, emitter.records, 1)
}

func TestRunOnce_TransientFaultLeavesRecordUnacked(t *testing.T) {
	consumer := newFakeConsumer(rawEvent("1", model.EventUserCreate, `{"id":7}`))
	s := &Stage{
		Name:     "retrieval",
		consumer: consumer,
		Process: func(ctx context.Context, record model.Record) error {
			return Transient(assertErr())
		},
	}
	require.NoError(t, s.RunOnce(context.Background()))
	assert.Empty(t, consumer.ackedIDs())
}

func TestRunOnce_PermanentFaultAcksWithoutEmit(t *testing.T) {
	consumer := newFakeConsumer(rawEvent("1", model.EventUserCreate, `{"id":7}`))
	emitter := &fakeEmitter{}
	s := &Stage{
		Name:     "retrieval",
		Output:   emitter,
		consumer: consumer,
		Process: func(ctx context.Context, record model.Record) error {
			return Permanent(assertErr())
		},
	}
	require.NoError(t, s.RunOnce(context.Background()))
	assert.Equal(t, []string{"1"}, consumer.ackedIDs())
	assert.Empty(t, emitter.records)
}

func TestDecode_UnrecognizedKindIsPermanentlyDropped(t *testing.T) {
	consumer := newFakeConsumer(rawEvent("1", "not_a_kind", `{}`))
	s := &Stage{
		Name:     "ingress",
		consumer: consumer,
		Process: func(ctx context.Context, record model.Record) error {
			t.Fatal("process should not be invoked for an undecodable record")
			return nil
		},
	}
	require.NoError(t, s.RunOnce(context.Background()))
	assert.Equal(t, []string{"1"}, consumer.ackedIDs())
}

func assertErr() error { return json.Unmarshal([]byte("not json"), &struct{}{}) }

// fakeTracer and fakeSpan record span lifecycle calls so tests can assert
// Stage.handle wires a span around every record.
type fakeTracer struct {
	mu    sync.Mutex
	spans []*fakeSpan
}

func (t *fakeTracer) Start(ctx context.Context, name string) (context.Context, telemetry.Span) {
	t.mu.Lock()
	defer t.mu.Unlock()
	span := &fakeSpan{name: name}
	t.spans = append(t.spans, span)
	return ctx, span
}

type fakeSpan struct {
	name   string
	ended  bool
	err    error
	events []string
}

func (s *fakeSpan) End()                           { s.ended = true }
func (s *fakeSpan) SetError(err error)              { s.err = err }
func (s *fakeSpan) AddEvent(name string, _ ...any) { s.events = append(s.events, name) }

func TestRunOnce_TracerWrapsEachRecordAndRecordsFault(t *testing.T) {
	consumer := newFakeConsumer(rawEvent("1", model.EventUserCreate, `{"id":7}`))
	tracer := &fakeTracer{}
	s := &Stage{
		Name:     "verification",
		Tracer:   tracer,
		consumer: consumer,
		Process: func(ctx context.Context, record model.Record) error {
			return Permanent(assertErr())
		},
	}
	require.NoError(t, s.RunOnce(context.Background()))

	require.Len(t, tracer.spans, 1)
	span := tracer.spans[0]
	assert.Equal(t, "verification.process_record", span.name)
	assert.True(t, span.ended)
	assert.Error(t, span.err)
}
