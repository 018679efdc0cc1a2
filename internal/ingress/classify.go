// Package ingress implements the webhook HTTP entrypoint (spec §4.2): it
// classifies an incoming JSON body into an EventKind using the priority
// rules below and appends the verbatim body to the event stream.
package ingress

import (
	"encoding/json"

	"github.com/gitlab-triage/event-triage-pipeline/internal/model"
)

// webhookEnvelope captures just enough of the body shape to classify it;
// the payload itself is kept opaque and forwarded verbatim (spec §9: "keep
// the payload opaque through most of the pipeline").
type webhookEnvelope struct {
	ObjectKind        string `json:"object_kind"`
	EventName         string `json:"event_name"`
	ObjectAttributes  struct {
		NoteableType string `json:"noteable_type"`
		Action       string `json:"action"`
		CreatedAt    string `json:"created_at"`
		UpdatedAt    string `json:"updated_at"`
	} `json:"object_attributes"`
}

var issueActionKinds = map[string]model.EventKind{
	"open":   model.EventIssueOpen,
	"close":  model.EventIssueClose,
	"reopen": model.EventIssueReopen,
	"update": model.EventIssueUpdate,
}

// Classify determines the EventKind for a raw webhook body, implementing
// the priority order of spec §4.2. The second return is false when the
// body is unhandled (unrecognized shape): ingress must still respond 200 OK
// and emit nothing in that case.
func Classify(body []byte) (model.EventKind, bool) {
	var env webhookEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return "", false
	}

	if env.ObjectKind == "note" && env.ObjectAttributes.NoteableType == "Issue" {
		if env.ObjectAttributes.CreatedAt == "" || env.ObjectAttributes.UpdatedAt == "" {
			return "", false
		}
		if env.ObjectAttributes.CreatedAt == env.ObjectAttributes.UpdatedAt {
			return model.EventIssueNoteCreate, true
		}
		return model.EventIssueNoteUpdate, true
	}

	if env.ObjectKind == "issue" {
		if kind, ok := issueActionKinds[env.ObjectAttributes.Action]; ok {
			return kind, true
		}
	}

	if kind, ok := model.ParseEventKind(env.EventName); ok {
		return kind, true
	}

	return "", false
}
