// Package notification implements the Notification stage (spec §4.6): it
// renders an EventKind-specific chat message from a ClassificationEnvelope
// and POSTs it to the configured chat webhook.
package notification

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/gitlab-triage/event-triage-pipeline/internal/model"
)

// timestampLayout is the upstream webhook's created_at format (spec §4.6).
const timestampLayout = "2006-01-02T15:04:05.0000Z"

// renderedLayout is the chat-message display format: "DD Month YYYY
// HH:MM:SS GMT".
const renderedLayout = "02 January 2006 15:04:05 GMT"

// Message is the rendered chat payload for one envelope.
type Message struct {
	Header string
	Fields map[string]string
	Verdict string
	Score   float64
}

type userObject struct {
	Username string `json:"username"`
	Name     string `json:"name"`
	Email    string `json:"email"`
}

type projectObject struct {
	Name       string `json:"name"`
	OwnerEmail string `json:"owner_email"`
	CreatedAt  string `json:"created_at"`
}

type groupObject struct {
	Name      string `json:"name"`
	Path      string `json:"path"`
	CreatedAt string `json:"created_at"`
}

type issueObject struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	State       string `json:"state"`
	WebURL      string `json:"web_url"`
	Author      struct {
		Username string `json:"username"`
	} `json:"author"`
	CreatedAt string `json:"created_at"`
}

type noteObject struct {
	Body   string `json:"body"`
	Author struct {
		Username string `json:"username"`
	} `json:"author"`
	CreatedAt string `json:"created_at"`
}

type snippetObject struct {
	Title  string `json:"title"`
	WebURL string `json:"web_url"`
	Author struct {
		Username string `json:"username"`
		Email    string `json:"email"`
	} `json:"author"`
	CreatedAt string `json:"created_at"`
}

var headers = map[model.EventKind]string{
	model.EventProjectCreate:   "Project Created on GitLab",
	model.EventProjectRename:   "Project Renamed on GitLab",
	model.EventProjectTransfer: "Project Transferred on GitLab",
	model.EventUserCreate:      "User Created on GitLab",
	model.EventUserRename:      "User Renamed on GitLab",
	model.EventIssueOpen:       "Issue Opened on GitLab",
	model.EventIssueUpdate:     "Issue Updated on GitLab",
	model.EventIssueClose:      "Issue Closed on GitLab",
	model.EventIssueReopen:     "Issue Reopened on GitLab",
	model.EventIssueNoteCreate: "Issue Comment Created on GitLab",
	model.EventIssueNoteUpdate: "Issue Comment Updated on GitLab",
	model.EventGroupCreate:     "Group Created on GitLab",
	model.EventGroupRename:     "Group Renamed on GitLab",
	model.EventSnippetCheck:    "Public Snippet Flagged on GitLab",
}

// Render builds the chat Message for one classification envelope, per the
// per-kind templates of spec §4.6.
func Render(kind model.EventKind, envelope model.ClassificationEnvelope) (Message, error) {
	header, ok := headers[kind]
	if !ok {
		return Message{}, fmt.Errorf("notification: no template for kind %q", kind)
	}

	msg := Message{
		Header:  header,
		Fields:  map[string]string{},
		Verdict: verdict(envelope),
		Score:   envelope.Score,
	}

	var createdAt string
	switch {
	case inSet(kind, model.UserKinds):
		var u userObject
		_ = json.Unmarshal(envelope.EventData, &u)
		msg.Fields["Username"] = orNA(u.Username)
		msg.Fields["Name"] = orNA(u.Name)
		msg.Fields["Email"] = orNA(u.Email)

	case inSet(kind, model.ProjectKinds):
		var p projectObject
		_ = json.Unmarshal(envelope.EventData, &p)
		msg.Fields["Name"] = orNA(p.Name)
		msg.Fields["Owner Email"] = orNA(p.OwnerEmail)
		createdAt = p.CreatedAt

	case inSet(kind, model.GroupKinds):
		var g groupObject
		_ = json.Unmarshal(envelope.EventData, &g)
		msg.Fields["Name"] = orNA(g.Name)
		msg.Fields["Path"] = orNA(g.Path)
		createdAt = g.CreatedAt

	case inSet(kind, model.IssueKinds):
		var i issueObject
		_ = json.Unmarshal(envelope.EventData, &i)
		msg.Fields["Title"] = orNA(i.Title)
		msg.Fields["Description"] = orNA(i.Description)
		msg.Fields["Author"] = orNA(i.Author.Username)
		msg.Fields["State"] = orNA(i.State)
		msg.Fields["Link"] = orNA(i.WebURL)
		createdAt = i.CreatedAt

	case inSet(kind, model.IssueNoteKinds):
		var n noteObject
		_ = json.Unmarshal(envelope.EventData, &n)
		msg.Fields["Body"] = orNA(n.Body)
		msg.Fields["Author"] = orNA(n.Author.Username)
		createdAt = n.CreatedAt

	case inSet(kind, model.SnippetKinds):
		var s snippetObject
		_ = json.Unmarshal(envelope.EventData, &s)
		msg.Fields["Title"] = orNA(s.Title)
		msg.Fields["Author"] = orNA(s.Author.Username)
		msg.Fields["Link"] = orNA(s.WebURL)
		createdAt = s.CreatedAt
	}

	if createdAt != "" {
		msg.Fields["Created At"] = formatTimestamp(createdAt)
	}

	return msg, nil
}

// verdict renders the spam verdict text (spec §4.6: "Spam" iff
// prediction==1, else "Not Spam"). An N/A prediction still reports
// "Not Spam" since only prediction==1 triggers the Spam label.
func verdict(envelope model.ClassificationEnvelope) string {
	if envelope.IsSpam() {
		return "Spam"
	}
	return "Not Spam"
}

// formatTimestamp parses the upstream ffff-fraction timestamp and renders
// it as "DD Month YYYY HH:MM:SS GMT". An unparsable timestamp is passed
// through verbatim rather than dropped, since the record must still be
// notified.
func formatTimestamp(raw string) string {
	t, err := time.Parse(timestampLayout, raw)
	if err != nil {
		// Tolerate the common 3-decimal and no-fraction variants some
		// webhook payloads actually send.
		for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05.000Z"} {
			if t2, err2 := time.Parse(layout, raw); err2 == nil {
				t, err = t2, nil
				break
			}
		}
	}
	if err != nil {
		return raw
	}
	return t.UTC().Format(renderedLayout)
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

func inSet(kind model.EventKind, set map[model.EventKind]struct{}) bool {
	_, ok := set[kind]
	return ok
}
