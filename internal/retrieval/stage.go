// Package retrieval implements the Retrieval stage (spec §4.4): it replaces
// the raw webhook payload with the authoritative object fetched from the
// platform API, keyed by kind, and — for the snippet kind — fans one input
// record out into one retrieval record per untrusted snippet.
package retrieval

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gitlab-triage/event-triage-pipeline/internal/model"
	"github.com/gitlab-triage/event-triage-pipeline/internal/pipeline"
	"github.com/gitlab-triage/event-triage-pipeline/internal/platformapi"
	"github.com/gitlab-triage/event-triage-pipeline/internal/retry"
	"github.com/gitlab-triage/event-triage-pipeline/internal/telemetry"
)

// PlatformAPI is the narrow client surface Retrieval needs.
type PlatformAPI interface {
	GetUser(ctx context.Context, id int) (json.RawMessage, error)
	GetProject(ctx context.Context, id int) (json.RawMessage, error)
	GetIssue(ctx context.Context, projectID, issueIID int) (json.RawMessage, error)
	GetIssueNote(ctx context.Context, projectID, issueIID, noteID int) (json.RawMessage, error)
	GetGroup(ctx context.Context, id int) (json.RawMessage, error)
	ListPublicSnippets(ctx context.Context) ([]platformapi.Snippet, error)
}

// EmailVerifier checks a snippet author's email against the verification
// service's trust decision (spec §4.4: "call the verification service's
// POST /verify_email").
type EmailVerifier interface {
	Trusted(ctx context.Context, email string) (bool, error)
}

// Forwarder appends the retrieved object to the retrieval stream.
type Forwarder interface {
	Emit(ctx context.Context, kind model.EventKind, value any) error
}

type projectRef struct {
	ID int `json:"id"`
}

type issuePayload struct {
	ObjectAttributes struct {
		ID        int `json:"id"`
		ProjectID int `json:"project_id"`
	} `json:"object_attributes"`
}

type issueNotePayload struct {
	ProjectID int `json:"project_id"`
	Issue     struct {
		ID int `json:"id"`
	} `json:"issue"`
	ObjectAttributes struct {
		ID int `json:"id"`
	} `json:"object_attributes"`
}

type userRef struct {
	ID       int    `json:"id"`
	UserID   int    `json:"user_id"`
	Email    string `json:"email"`
}

type groupRef struct {
	ID int `json:"id"`
}

// Process implements Retrieval's pipeline.ProcessFunc.
func Process(api PlatformAPI, verifier EmailVerifier, out Forwarder, logger telemetry.Logger) pipeline.ProcessFunc {
	return func(ctx context.Context, record model.Record) error {
		kind, payload := record.Kind, record.Payload

		switch {
		case inSet(kind, model.UserKinds):
			return fetchOne(ctx, kind, payload, out, func(id int) (json.RawMessage, error) {
				return api.GetUser(ctx, id)
			}, userID)

		case inSet(kind, model.ProjectKinds):
			return fetchOne(ctx, kind, payload, out, func(id int) (json.RawMessage, error) {
				return api.GetProject(ctx, id)
			}, projectID)

		case model.IsIssueOrNote(kind):
			return fetchIssueOrNote(ctx, kind, payload, api, out)

		case inSet(kind, model.GroupKinds):
			return fetchOne(ctx, kind, payload, out, func(id int) (json.RawMessage, error) {
				return api.GetGroup(ctx, id)
			}, groupID)

		case inSet(kind, model.SnippetKinds):
			return fetchSnippets(ctx, kind, api, verifier, out, logger)

		default:
			return pipeline.Permanent(fmt.Errorf("retrieval: unsupported kind %q", kind))
		}
	}
}

func fetchOne(ctx context.Context, kind model.EventKind, payload json.RawMessage, out Forwarder,
	fetch func(id int) (json.RawMessage, error), extractID func(json.RawMessage) (int, error)) error {

	id, err := extractID(payload)
	if err != nil {
		return pipeline.Permanent(err)
	}
	obj, err := fetch(id)
	if err != nil {
		return classifyFault(err)
	}
	return out.Emit(ctx, kind, obj)
}

func fetchIssueOrNote(ctx context.Context, kind model.EventKind, payload json.RawMessage, api PlatformAPI, out Forwarder) error {
	if _, ok := model.IssueNoteKinds[kind]; ok {
		var p issueNotePayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return pipeline.Permanent(err)
		}
		noteID := p.ObjectAttributes.ID
		obj, err := api.GetIssueNote(ctx, p.ProjectID, p.Issue.ID, noteID)
		if err != nil {
			return classifyFault(err)
		}
		return out.Emit(ctx, kind, obj)
	}

	var p issuePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return pipeline.Permanent(err)
	}
	obj, err := api.GetIssue(ctx, p.ObjectAttributes.ProjectID, p.ObjectAttributes.ID)
	if err != nil {
		return classifyFault(err)
	}
	return out.Emit(ctx, kind, obj)
}

// fetchSnippets lists all public snippets, verifies each author's trust via
// the verification service, and emits one retrieval record per untrusted
// snippet (spec §4.4: "Emit one retrieval record per kept snippet").
func fetchSnippets(ctx context.Context, kind model.EventKind, api PlatformAPI, verifier EmailVerifier, out Forwarder, logger telemetry.Logger) error {
	snippets, err := api.ListPublicSnippets(ctx)
	if err != nil {
		return classifyFault(err)
	}

	for _, s := range snippets {
		email := s.Author.Email
		trusted, err := verifier.Trusted(ctx, email)
		if err != nil {
			if logger != nil {
				logger.Warn(ctx, "retrieval: verify_email call failed, skipping snippet", "snippet_id", s.ID, "err", err.Error())
			}
			continue
		}
		if trusted {
			continue
		}
		if err := out.Emit(ctx, kind, s); err != nil {
			return classifyFault(err)
		}
	}
	return nil
}

func userID(payload json.RawMessage) (int, error) {
	var p userRef
	if err := json.Unmarshal(payload, &p); err != nil {
		return 0, err
	}
	if p.UserID != 0 {
		return p.UserID, nil
	}
	if p.ID != 0 {
		return p.ID, nil
	}
	return 0, fmt.Errorf("retrieval: no user id in payload")
}

func projectID(payload json.RawMessage) (int, error) {
	var p projectRef
	if err := json.Unmarshal(payload, &p); err != nil {
		return 0, err
	}
	if p.ID == 0 {
		return 0, fmt.Errorf("retrieval: no project id in payload")
	}
	return p.ID, nil
}

func groupID(payload json.RawMessage) (int, error) {
	var p groupRef
	if err := json.Unmarshal(payload, &p); err != nil {
		return 0, err
	}
	if p.ID == 0 {
		return 0, fmt.Errorf("retrieval: no group id in payload")
	}
	return p.ID, nil
}

// classifyFault maps a platform API error to the pipeline's fault taxonomy:
// a retry.PermanentError (such as a wrapped 404 NotFoundError) or a bare
// NotFoundError becomes a permanent fault, everything else is transient so
// the record stays on the input stream for redelivery (spec §4.4: "never
// silent promotion to permanent").
func classifyFault(err error) error {
	var perm *retry.PermanentError
	if errors.As(err, &perm) {
		return pipeline.Permanent(err)
	}
	var notFound *platformapi.NotFoundError
	if errors.As(err, &notFound) {
		return pipeline.Permanent(err)
	}
	return pipeline.Transient(err)
}

func inSet(kind model.EventKind, set map[model.EventKind]struct{}) bool {
	_, ok := set[kind]
	return ok
}
