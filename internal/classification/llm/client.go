// Package llm implements the optional alternate classification backend: a
// hosted LLM prompted to act as a zero-shot spam judge over the retrieved
// object, selected by CLASSIFIER_BACKEND=llm (spec §4.5, DOMAIN STACK).
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gitlab-triage/event-triage-pipeline/internal/classification"
	"github.com/gitlab-triage/event-triage-pipeline/internal/model"
)

// Judge is the narrow provider surface the three SDK-backed adapters
// (anthropic, openai, bedrock) implement: send a zero-shot judgment prompt,
// get back the model's raw text reply.
type Judge interface {
	Judge(ctx context.Context, prompt string) (string, error)
}

// Classifier implements classification.Classifier via a hosted LLM acting as
// a zero-shot spam judge. The model is instructed to reply with a single
// JSON object {"prediction": 0|1, "score": <float in [0,1]>}.
type Classifier struct {
	Judge Judge
}

var _ classification.Classifier = (*Classifier)(nil)

type judgment struct {
	Prediction *int    `json:"prediction"`
	Score      float64 `json:"score"`
}

// Classify renders the retrieved object into a judgment prompt, calls the
// configured provider, and parses its structured reply.
func (c *Classifier) Classify(ctx context.Context, kind model.EventKind, retrieved []byte) (int, float64, error) {
	reply, err := c.Judge.Judge(ctx, prompt(kind, retrieved))
	if err != nil {
		return 0, 0, fmt.Errorf("llm classify: %w", err)
	}

	j, err := parseJudgment(reply)
	if err != nil {
		return 0, 0, fmt.Errorf("llm classify: %w", err)
	}

	score := j.Score
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	// Normalize through the same thresholding rule as the HTTP backend so
	// a model that only returns a score still yields a consistent verdict.
	prediction := classification.Threshold(score)
	if j.Prediction != nil && (*j.Prediction == 0 || *j.Prediction == 1) {
		prediction = *j.Prediction
	}
	return prediction, classification.Round3(score), nil
}

func prompt(kind model.EventKind, retrieved []byte) string {
	return fmt.Sprintf(`You are a spam classifier for a source-code hosting platform.
Event kind: %s
Object (JSON): %s

Decide whether this event was produced by a spam account. Reply with exactly
one JSON object and nothing else: {"prediction": 0 or 1, "score": a number
between 0 and 1 representing your confidence that this is spam}.`, kind, retrieved)
}

// parseJudgment extracts the {"prediction","score"} object from a model
// reply, tolerating surrounding prose by locating the outermost braces.
func parseJudgment(reply string) (judgment, error) {
	start := strings.IndexByte(reply, '{')
	end := strings.LastIndexByte(reply, '}')
	if start < 0 || end < start {
		return judgment{}, fmt.Errorf("no JSON object found in model reply")
	}
	var j judgment
	if err := json.Unmarshal([]byte(reply[start:end+1]), &j); err != nil {
		return judgment{}, fmt.Errorf("decode model judgment: %w", err)
	}
	return j, nil
}
