package verification

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/gitlab-triage/event-triage-pipeline/internal/model"
	"github.com/gitlab-triage/event-triage-pipeline/internal/pipeline"
	"github.com/gitlab-triage/event-triage-pipeline/internal/telemetry"
	"github.com/gitlab-triage/event-triage-pipeline/internal/trust"
)

// TrustList is the narrow view of trust.List that Process needs.
type TrustList interface {
	Trusted(email string) bool
}

// Forwarder appends an unchanged record to the output stream.
type Forwarder interface {
	Emit(ctx context.Context, kind model.EventKind, value any) error
}

// Process implements the Verification stage's pipeline.ProcessFunc (spec
// §4.3): extract the actor's email, drop trusted or unextractable records,
// forward everything else unchanged to the next stream.
func Process(out Forwarder, groups GroupLookup, trustList TrustList, logger telemetry.Logger) pipeline.ProcessFunc {
	return func(ctx context.Context, record model.Record) error {
		kind, payload := record.Kind, json.RawMessage(record.Payload)

		email, err := ExtractEmail(ctx, kind, payload, groups)
		switch {
		case errors.Is(err, ErrSnippetDeferred):
			// Snippet trust is decided by Retrieval's per-snippet
			// verify_email call (spec §4.4); always forward here.
			return out.Emit(ctx, kind, payload)
		case errors.Is(err, ErrEmailNotFound):
			if logger != nil {
				logger.Debug(ctx, "verification: email not found, dropping record", "kind", string(kind))
			}
			return pipeline.Permanent(err)
		case err != nil:
			// Platform-API failure resolving a group owner: drop the
			// record rather than redeliver it forever (spec §4.3).
			if logger != nil {
				logger.Warn(ctx, "verification: group owner lookup failed, dropping record", "kind", string(kind), "err", err.Error())
			}
			return pipeline.Permanent(err)
		}

		if trustList.Trusted(email) {
			if logger != nil {
				logger.Debug(ctx, "verification: trusted actor, dropping record", "kind", string(kind), "email", email)
			}
			return pipeline.Permanent(errors.New("verification: trusted actor"))
		}
		return out.Emit(ctx, kind, payload)
	}
}

var _ TrustList = (*trust.List)(nil)
