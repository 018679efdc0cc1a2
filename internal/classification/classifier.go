// Package classification implements the Classification stage (spec §4.5):
// score a retrieved object and wrap the result in a ClassificationEnvelope.
package classification

import (
	"context"
	"math"

	"github.com/gitlab-triage/event-triage-pipeline/internal/model"
)

// Classifier scores one retrieved object for a given EventKind. Both the
// HTTP model-server backend (httpmodel.Classifier) and the optional LLM
// backend (llm.Classifier) implement this.
type Classifier interface {
	Classify(ctx context.Context, kind model.EventKind, retrieved []byte) (prediction int, score float64, err error)
}

// Threshold converts a raw score into the spec's binary prediction: 1 if
// score > 0.5, else 0 (spec §4.5).
func Threshold(score float64) int {
	if score > 0.5 {
		return 1
	}
	return 0
}

// Round3 rounds score to 3 decimal places before emission (spec §4.5).
func Round3(score float64) float64 {
	return math.Round(score*1000) / 1000
}
