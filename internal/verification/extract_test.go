package verification_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gitlab-triage/event-triage-pipeline/internal/model"
	"github.com/gitlab-triage/event-triage-pipeline/internal/platformapi"
	"github.com/gitlab-triage/event-triage-pipeline/internal/verification"
)

type fakeGroups struct {
	members []platformapi.GroupMember
	user    json.RawMessage
	err     error
}

func (f *fakeGroups) GetGroupMembers(context.Context, int) ([]platformapi.GroupMember, error) {
	return f.members, f.err
}

func (f *fakeGroups) GetUser(context.Context, int) (json.RawMessage, error) {
	return f.user, nil
}

func TestExtractEmail_Project(t *testing.T) {
	email, err := verification.ExtractEmail(context.Background(), model.EventProjectCreate,
		json.RawMessage(`{"owner_email":"owner@example.com"}`), nil)
	require.NoError(t, err)
	assert.Equal(t, "owner@example.com", email)
}

func TestExtractEmail_User(t *testing.T) {
	email, err := verification.ExtractEmail(context.Background(), model.EventUserCreate,
		json.RawMessage(`{"email":"u@example.com"}`), nil)
	require.NoError(t, err)
	assert.Equal(t, "u@example.com", email)
}

func TestExtractEmail_IssueNote(t *testing.T) {
	email, err := verification.ExtractEmail(context.Background(), model.EventIssueNoteCreate,
		json.RawMessage(`{"user":{"email":"author@example.com"}}`), nil)
	require.NoError(t, err)
	assert.Equal(t, "author@example.com", email)
}

func TestExtractEmail_MissingField_NotFound(t *testing.T) {
	_, err := verification.ExtractEmail(context.Background(), model.EventUserCreate,
		json.RawMessage(`{}`), nil)
	assert.ErrorIs(t, err, verification.ErrEmailNotFound)
}

func TestExtractEmail_Snippet_Deferred(t *testing.T) {
	_, err := verification.ExtractEmail(context.Background(), model.EventSnippetCheck,
		json.RawMessage(`{"id":1}`), nil)
	assert.ErrorIs(t, err, verification.ErrSnippetDeferred)
}

func TestExtractEmail_Group_PicksMaxAccessLevel(t *testing.T) {
	groups := &fakeGroups{members: []platformapi.GroupMember{
		{ID: 1, Email: "low@example.com", AccessLevel: 10},
		{ID: 2, Email: "owner@example.com", AccessLevel: 50},
		{ID: 3, Email: "mid@example.com", AccessLevel: 30},
	}}
	email, err := verification.ExtractEmail(context.Background(), model.EventGroupCreate,
		json.RawMessage(`{"id":9}`), groups)
	require.NoError(t, err)
	assert.Equal(t, "owner@example.com", email)
}

func TestExtractEmail_Group_TieBreaksOnLastSeen(t *testing.T) {
	groups := &fakeGroups{members: []platformapi.GroupMember{
		{ID: 1, Email: "first@example.com", AccessLevel: 50},
		{ID: 2, Email: "second@example.com", AccessLevel: 50},
	}}
	email, err := verification.ExtractEmail(context.Background(), model.EventGroupCreate,
		json.RawMessage(`{"id":9}`), groups)
	require.NoError(t, err)
	assert.Equal(t, "second@example.com", email)
}

func TestExtractEmail_Group_FallsBackToUserLookup(t *testing.T) {
	groups := &fakeGroups{
		members: []platformapi.GroupMember{{ID: 4, Email: "", AccessLevel: 50}},
		user:    json.RawMessage(`{"email":"resolved@example.com"}`),
	}
	email, err := verification.ExtractEmail(context.Background(), model.EventGroupCreate,
		json.RawMessage(`{"id":9}`), groups)
	require.NoError(t, err)
	assert.Equal(t, "resolved@example.com", email)
}

func TestExtractEmail_Group_NoMembers_NotFound(t *testing.T) {
	groups := &fakeGroups{members: nil}
	_, err := verification.ExtractEmail(context.Background(), model.EventGroupCreate,
		json.RawMessage(`{"id":9}`), groups)
	assert.ErrorIs(t, err, verification.ErrEmailNotFound)
}
