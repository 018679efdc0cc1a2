// Package pipeline implements the staged pipeline runtime shared by all five
// stages: a generic (input_stream, output_stream, process) loop with
// at-least-once delivery, transient/permanent fault handling, and a
// test-only single-iteration mode. Modeled on the teacher's small-struct
// concrete-type style (no inheritance; a process function value is
// threaded through a struct, matching runtime/toolregistry/executor's
// consume-then-ack-or-continue shape) rather than the source's
// abstract-base-class pattern, per the redesign note in spec §9.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"

	"goa.design/pulse/streaming"

	"github.com/gitlab-triage/event-triage-pipeline/internal/broker"
	"github.com/gitlab-triage/event-triage-pipeline/internal/model"
	"github.com/gitlab-triage/event-triage-pipeline/internal/telemetry"
)

// ProcessFunc handles one input record. A nil return deletes the record from
// the input stream (success). A *TransientFault return leaves the record in
// place for redelivery. A *PermanentFault return logs and deletes the
// record without emitting anything downstream.
type ProcessFunc func(ctx context.Context, record model.Record) error

// TransientFault marks a failure that should leave the record on the input
// stream for redelivery (spec §4.1: "if it signals a transient fault, leave
// the record in place").
type TransientFault struct{ Err error }

func (f *TransientFault) Error() string { return f.Err.Error() }
func (f *TransientFault) Unwrap() error { return f.Err }

// Transient wraps err as a TransientFault.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientFault{Err: err}
}

// PermanentFault marks a failure that should be logged and dropped (spec
// §4.1: "if it signals a permanent fault, log and delete").
type PermanentFault struct{ Err error }

func (f *PermanentFault) Error() string { return f.Err.Error() }
func (f *PermanentFault) Unwrap() error { return f.Err }

// Permanent wraps err as a PermanentFault.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentFault{Err: err}
}

// Stage is the pipeline runtime: it connects process(kind, payload) to an
// input and output stream pair. A single Stage instance processes one
// message at a time, strictly in broker order (spec §4.1, §5).
type Stage struct {
	Name     string
	Input    *broker.Stream
	Output   eventEmitter
	Process  ProcessFunc
	Logger   telemetry.Logger
	Metrics  telemetry.Metrics
	Tracer   telemetry.Tracer
	SinkName string

	consumer eventConsumer
}

// eventConsumer is the narrow subset of *broker.Consumer the runtime needs;
// factored out so tests can drive the loop against a fake stream.
type eventConsumer interface {
	Events() <-chan *streaming.Event
	Ack(ctx context.Context, ev *streaming.Event) error
	Close(ctx context.Context)
}

// eventEmitter is the narrow subset of *broker.Stream the runtime needs to
// emit downstream records; factored out so tests can assert on emitted
// records without a live broker.
type eventEmitter interface {
	Append(ctx context.Context, kind model.EventKind, payload []byte) (string, error)
}

// Connect opens a consumer on the input stream. Must be called once before
// Run or RunOnce.
func (s *Stage) Connect(ctx context.Context) error {
	consumer, err := s.Input.NewConsumer(ctx, s.SinkName)
	if err != nil {
		return err
	}
	s.consumer = consumer
	return nil
}

// Close releases the input consumer.
func (s *Stage) Close(ctx context.Context) {
	if s.consumer != nil {
		s.consumer.Close(ctx)
	}
}

// Emit appends one {kind: serialized-value} record to the output stream, the
// helper named in spec §4.1.
func (s *Stage) Emit(ctx context.Context, kind model.EventKind, value any) error {
	if s.Output == nil {
		return errors.New("pipeline: stage has no output stream")
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	_, err = s.Output.Append(ctx, kind, payload)
	return err
}

// Run blocks forever, processing records one at a time until ctx is
// canceled. Each iteration blocks on the input stream for up to
// broker.BlockDuration before re-blocking, observing shutdown within that
// window (spec §5).
func (s *Stage) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		more, err := s.runOnce(ctx)
		if err != nil {
			return err
		}
		if !more {
			continue
		}
	}
}

// RunOnce processes at most one pending record and returns, letting tests
// drive the loop deterministically (spec §4.1's "test-only single-iteration
// mode").
func (s *Stage) RunOnce(ctx context.Context) error {
	_, err := s.runOnce(ctx)
	return err
}

// runOnce waits for one event (bounded by broker.BlockDuration) and
// dispatches it. The bool return reports whether an event was seen, purely
// so Run's loop can avoid treating "no event this window" as an error.
func (s *Stage) runOnce(ctx context.Context) (bool, error) {
	select {
	case <-ctx.Done():
		return false, nil
	case ev, ok := <-s.consumer.Events():
		if !ok {
			return false, errors.New("pipeline: input stream closed")
		}
		s.handle(ctx, ev)
		return true, nil
	}
}

func (s *Stage) handle(ctx context.Context, ev *streaming.Event) {
	record, err := broker.DecodeRecord(ev)
	if err != nil {
		s.logError(ctx, "decode stream record", err)
		s.ackOrLog(ctx, ev)
		return
	}

	var span telemetry.Span
	if s.Tracer != nil {
		ctx, span = s.Tracer.Start(ctx, s.Name+".process_record")
		span.AddEvent("record_kind", "kind", string(record.Kind))
	}

	err = s.Process(ctx, record)
	switch {
	case err == nil:
		s.ackOrLog(ctx, ev)
	case isTransient(err):
		s.logWarn(ctx, "transient fault, leaving record for redelivery", record, err)
		// Intentionally do not ack: the record remains on the input
		// stream and will be redelivered.
	default:
		s.logError(ctx, "permanent fault, dropping record", err)
		s.ackOrLog(ctx, ev)
	}

	if span != nil {
		span.SetError(err)
		span.End()
	}
}

func isTransient(err error) bool {
	var t *TransientFault
	return errors.As(err, &t)
}

func (s *Stage) ackOrLog(ctx context.Context, ev *streaming.Event) {
	if err := s.consumer.Ack(ctx, ev); err != nil {
		s.logError(ctx, "ack stream record", err)
	}
}

func (s *Stage) logWarn(ctx context.Context, msg string, record model.Record, err error) {
	if s.Logger == nil {
		return
	}
	s.Logger.Warn(ctx, msg, "stage", s.Name, "kind", string(record.Kind), "err", err.Error())
}

func (s *Stage) logError(ctx context.Context, msg string, err error) {
	if s.Logger == nil {
		return
	}
	s.Logger.Error(ctx, msg, "stage", s.Name, "err", err.Error())
}
