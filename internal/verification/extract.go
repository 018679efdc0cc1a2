// Package verification implements the trust-decision stage (spec §4.3): it
// extracts the actor's email from a record per an EventKind-specific
// algorithm, decides trust against the TrustList, and forwards only
// untrusted records.
package verification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gitlab-triage/event-triage-pipeline/internal/model"
	"github.com/gitlab-triage/event-triage-pipeline/internal/platformapi"
)

// ErrSnippetDeferred signals that the snippet kind has no email to extract;
// verification is deferred and the record always forwards (spec §4.3).
var ErrSnippetDeferred = errors.New("verification: snippet kind defers email extraction")

// ErrEmailNotFound signals that no email field was present on a non-snippet
// record; the record must be dropped (spec §4.3: "If email cannot be
// extracted for a non-snippet kind, drop the record").
var ErrEmailNotFound = errors.New("verification: email not found")

type projectPayload struct {
	OwnerEmail string `json:"owner_email"`
}

type userPayload struct {
	Email string `json:"email"`
}

type actorPayload struct {
	User struct {
		Email string `json:"email"`
	} `json:"user"`
}

type groupPayload struct {
	ID int `json:"id"`
}

// GroupLookup resolves a group id to its trust-relevant email, per the
// group-owner heuristic in spec §4.3: among members, pick the one with the
// strictly maximum access_level (last-seen wins on ties, per spec §8); if
// that member's email is blank, fall back to GET /api/v4/users/{id}.
type GroupLookup interface {
	GetGroupMembers(ctx context.Context, id int) ([]platformapi.GroupMember, error)
	GetUser(ctx context.Context, id int) (json.RawMessage, error)
}

// ExtractEmail implements the extract_email(kind, payload) algorithm of
// spec §4.3.
func ExtractEmail(ctx context.Context, kind model.EventKind, payload json.RawMessage, groups GroupLookup) (string, error) {
	switch {
	case inSet(kind, model.ProjectKinds):
		var p projectPayload
		if err := json.Unmarshal(payload, &p); err != nil || p.OwnerEmail == "" {
			return "", ErrEmailNotFound
		}
		return p.OwnerEmail, nil

	case inSet(kind, model.UserKinds):
		var p userPayload
		if err := json.Unmarshal(payload, &p); err != nil || p.Email == "" {
			return "", ErrEmailNotFound
		}
		return p.Email, nil

	case model.IsIssueOrNote(kind):
		var p actorPayload
		if err := json.Unmarshal(payload, &p); err != nil || p.User.Email == "" {
			return "", ErrEmailNotFound
		}
		return p.User.Email, nil

	case inSet(kind, model.GroupKinds):
		return extractGroupEmail(ctx, payload, groups)

	case inSet(kind, model.SnippetKinds):
		return "", ErrSnippetDeferred

	default:
		return "", fmt.Errorf("verification: unsupported kind %q", kind)
	}
}

func extractGroupEmail(ctx context.Context, payload json.RawMessage, groups GroupLookup) (string, error) {
	var p groupPayload
	if err := json.Unmarshal(payload, &p); err != nil || p.ID == 0 {
		return "", ErrEmailNotFound
	}

	members, err := groups.GetGroupMembers(ctx, p.ID)
	if err != nil {
		return "", err
	}
	if len(members) == 0 {
		return "", ErrEmailNotFound
	}

	// Strictly-maximum access_level; last-seen wins on ties (spec §8
	// boundary behavior: "the last-seen such member is chosen").
	var chosen platformapi.GroupMember
	found := false
	for _, m := range members {
		if !found || m.AccessLevel >= chosen.AccessLevel {
			chosen = m
			found = true
		}
	}

	if chosen.Email != "" {
		return chosen.Email, nil
	}

	raw, err := groups.GetUser(ctx, chosen.ID)
	if err != nil {
		return "", err
	}
	var u userPayload
	if err := json.Unmarshal(raw, &u); err != nil || u.Email == "" {
		return "", ErrEmailNotFound
	}
	return u.Email, nil
}

func inSet(kind model.EventKind, set map[model.EventKind]struct{}) bool {
	_, ok := set[kind]
	return ok
}
