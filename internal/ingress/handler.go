package ingress

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gitlab-triage/event-triage-pipeline/internal/model"
	"github.com/gitlab-triage/event-triage-pipeline/internal/telemetry"
)

// Emitter appends the event record to the event stream. Implemented in
// production by cmd/ingress's adapter over the event stream.
type Emitter interface {
	Emit(ctx context.Context, kind model.EventKind, value any) error
}

// Handler serves POST /event per spec §4.2 and §6.
type Handler struct {
	Emitter  Emitter
	Logger   telemetry.Logger
	Metrics  telemetry.Metrics
	Tracer   telemetry.Tracer
	Validate func(kind model.EventKind, body []byte) error
}

type response struct {
	Message string `json:"message"`
}

// ServeHTTP always responds 200 with {"message":"Event received"}; broker
// errors are logged and counted, never surfaced to the caller (spec §4.2).
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.Tracer != nil {
		var span telemetry.Span
		ctx, span = h.Tracer.Start(ctx, "ingress.handle_event")
		defer span.End()
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.respond(w)
		return
	}
	defer r.Body.Close()

	kind, ok := Classify(body)
	if !ok {
		h.countMetric("events_unhandled_total")
		h.respond(w)
		return
	}

	if h.Validate != nil {
		if err := h.Validate(kind, body); err != nil {
			h.logWarn(ctx, "webhook body failed advisory schema validation", kind, err)
		}
	}

	// The emitted payload is the request body verbatim, unmutated, per
	// spec §8's "the top-level JSON of R.payload equals the request body
	// bytes verbatim".
	var raw json.RawMessage = body
	if err := h.Emitter.Emit(ctx, kind, raw); err != nil {
		h.countMetric("events_emit_errors_total")
		h.logError(ctx, "emit event record", kind, err)
		h.respond(w)
		return
	}

	h.countMetric("events_received_total")
	h.respond(w)
}

func (h *Handler) respond(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(response{Message: "Event received"})
}

func (h *Handler) countMetric(name string) {
	if h.Metrics != nil {
		h.Metrics.IncCounter(name, 1)
	}
}

func (h *Handler) logWarn(ctx context.Context, msg string, kind model.EventKind, err error) {
	if h.Logger != nil {
		h.Logger.Warn(ctx, msg, "kind", string(kind), "err", err.Error())
	}
}

func (h *Handler) logError(ctx context.Context, msg string, kind model.EventKind, err error) {
	if h.Logger != nil {
		h.Logger.Error(ctx, msg, "kind", string(kind), "err", err.Error())
	}
}
