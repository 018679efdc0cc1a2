package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gitlab-triage/event-triage-pipeline/internal/model"
	"github.com/gitlab-triage/event-triage-pipeline/internal/pipeline"
	"github.com/gitlab-triage/event-triage-pipeline/internal/telemetry"
)

// ChatWebhook posts a rendered Message to the chat notification endpoint.
type ChatWebhook struct {
	URL        string
	HTTPClient *http.Client
	Timeout    time.Duration
}

type chatPayload struct {
	Blocks []chatBlock `json:"blocks"`
}

type chatBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Post renders msg into the chat webhook's payload shape and delivers it.
// Non-200 is reported but never retried (spec §7, NotificationError).
func (w *ChatWebhook) Post(ctx context.Context, msg Message) error {
	client := w.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	timeout := w.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	payload := renderChatPayload(msg)
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("notification: chat webhook returned status %d", resp.StatusCode)
	}
	return nil
}

func renderChatPayload(msg Message) chatPayload {
	text := fmt.Sprintf("*%s*\n", msg.Header)
	for _, key := range []string{"Username", "Name", "Email", "Title", "Description", "Author",
		"State", "Link", "Body", "Owner Email", "Path", "Created At"} {
		if v, ok := msg.Fields[key]; ok {
			text += fmt.Sprintf("*%s*: %s\n", key, v)
		}
	}
	text += fmt.Sprintf("*Spam Classification:* %s\n", msg.Verdict)
	text += fmt.Sprintf("*Spam Score*: %.3f\n", msg.Score)
	return chatPayload{Blocks: []chatBlock{{Type: "header", Text: msg.Header}, {Type: "section", Text: text}}}
}

// Process implements Notification's pipeline.ProcessFunc: render the
// envelope and POST it, counting success/failure but always treating the
// record as handled (spec §4.6: "the record is considered handled
// regardless of delivery outcome").
func Process(webhook *ChatWebhook, metrics telemetry.Metrics, logger telemetry.Logger) pipeline.ProcessFunc {
	return func(ctx context.Context, record model.Record) error {
		var envelope model.ClassificationEnvelope
		if err := json.Unmarshal(record.Payload, &envelope); err != nil {
			return pipeline.Permanent(err)
		}

		msg, err := Render(record.Kind, envelope)
		if err != nil {
			return pipeline.Permanent(err)
		}

		if err := webhook.Post(ctx, msg); err != nil {
			if metrics != nil {
				metrics.IncCounter("notifications_failed_total", 1)
			}
			if logger != nil {
				logger.Warn(ctx, "notification: chat webhook delivery failed", "kind", string(record.Kind), "err", err.Error())
			}
			return nil
		}

		if metrics != nil {
			metrics.IncCounter("notifications_sent_total", 1)
		}
		return nil
	}
}
