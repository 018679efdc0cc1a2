// Package httpmodel implements the spec-mandated classification backend: a
// plain HTTP POST to the model server's per-kind predict endpoint (spec
// §4.5).
package httpmodel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/gitlab-triage/event-triage-pipeline/internal/classification"
	"github.com/gitlab-triage/event-triage-pipeline/internal/model"
	"github.com/gitlab-triage/event-triage-pipeline/internal/retry"
)

// Classifier POSTs the retrieved object to <BaseURL>/predict_<kind> and
// decodes a {prediction, score} response.
type Classifier struct {
	BaseURL    string
	HTTPClient *http.Client
}

type predictResponse struct {
	Prediction json.Number `json:"prediction"`
	Score      float64     `json:"score"`
}

// Classify implements classification.Classifier.
func (c *Classifier) Classify(ctx context.Context, kind model.EventKind, retrieved []byte) (int, float64, error) {
	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	url := fmt.Sprintf("%s/predict_%s", strings.TrimRight(c.BaseURL, "/"), kind)

	var resp predictResponse
	err := retry.Do(ctx, retry.ClassificationConfig(), func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(retrieved))
		if err != nil {
			return retry.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")

		httpResp, err := client.Do(req)
		if err != nil {
			return err
		}
		defer httpResp.Body.Close()

		if httpResp.StatusCode != http.StatusOK {
			return &retry.HTTPStatusError{StatusCode: httpResp.StatusCode, Message: url}
		}
		return json.NewDecoder(httpResp.Body).Decode(&resp)
	})
	if err != nil {
		return 0, 0, err
	}

	score, hasScore := parseScore(resp.Score, resp.Prediction)
	if hasScore {
		// The model returned a raw score with no clean 0/1 prediction;
		// threshold it per spec §4.5.
		return classification.Threshold(score), score, nil
	}

	prediction, err := resp.Prediction.Int64()
	if err != nil {
		return 0, 0, fmt.Errorf("httpmodel: malformed prediction field: %w", err)
	}
	return int(prediction), resp.Score, nil
}

// parseScore reports whether the response should be treated as a raw score
// needing thresholding: when the prediction field is absent or non-integral.
// An absent score field is read as 0.
func parseScore(score float64, prediction json.Number) (float64, bool) {
	if prediction == "" {
		return score, true
	}
	if _, err := prediction.Int64(); err != nil {
		return score, true
	}
	return 0, false
}
