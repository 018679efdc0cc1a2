package classification

import (
	"context"
	"encoding/json"

	"github.com/gitlab-triage/event-triage-pipeline/internal/model"
	"github.com/gitlab-triage/event-triage-pipeline/internal/pipeline"
	"github.com/gitlab-triage/event-triage-pipeline/internal/telemetry"
)

// Forwarder appends the classification envelope to the classification
// stream.
type Forwarder interface {
	Emit(ctx context.Context, kind model.EventKind, value any) error
}

// Process implements Classification's pipeline.ProcessFunc: classify the
// retrieved object and always emit an envelope, even on failure (spec §4.5:
// "this spec resolves the open question in §9 in favor of emitting the N/A
// envelope, not dropping").
func Process(classifier Classifier, out Forwarder, metrics telemetry.Metrics, logger telemetry.Logger) pipeline.ProcessFunc {
	return func(ctx context.Context, record model.Record) error {
		envelope := model.ClassificationEnvelope{EventData: json.RawMessage(record.Payload)}

		prediction, score, err := classifier.Classify(ctx, record.Kind, record.Payload)
		if err != nil {
			if metrics != nil {
				metrics.IncCounter("classification_failures_total", 1)
			}
			if logger != nil {
				logger.Warn(ctx, "classification: classifier call failed, emitting N/A envelope", "kind", string(record.Kind), "err", err.Error())
			}
			envelope.Prediction = model.PredictionNA
			envelope.Score = 0.0
		} else {
			envelope.Prediction = model.Prediction{Value: prediction}
			envelope.Score = Round3(score)
		}

		return out.Emit(ctx, record.Kind, envelope)
	}
}
