package retrieval_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gitlab-triage/event-triage-pipeline/internal/model"
	"github.com/gitlab-triage/event-triage-pipeline/internal/pipeline"
	"github.com/gitlab-triage/event-triage-pipeline/internal/platformapi"
	"github.com/gitlab-triage/event-triage-pipeline/internal/retrieval"
)

type fakeAPI struct {
	user    json.RawMessage
	project json.RawMessage
	issue   json.RawMessage
	note    json.RawMessage
	group   json.RawMessage
	snippets []platformapi.Snippet
	err     error
}

func (f *fakeAPI) GetUser(context.Context, int) (json.RawMessage, error)    { return f.user, f.err }
func (f *fakeAPI) GetProject(context.Context, int) (json.RawMessage, error) { return f.project, f.err }
func (f *fakeAPI) GetIssue(context.Context, int, int) (json.RawMessage, error) {
	return f.issue, f.err
}
func (f *fakeAPI) GetIssueNote(context.Context, int, int, int) (json.RawMessage, error) {
	return f.note, f.err
}
func (f *fakeAPI) GetGroup(context.Context, int) (json.RawMessage, error) { return f.group, f.err }
func (f *fakeAPI) ListPublicSnippets(context.Context) ([]platformapi.Snippet, error) {
	return f.snippets, f.err
}

type fakeVerifier struct {
	trustedEmails map[string]bool
	err           error
}

func (f *fakeVerifier) Trusted(_ context.Context, email string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.trustedEmails[email], nil
}

type captureForwarder struct {
	kinds    []model.EventKind
	payloads []any
}

func (c *captureForwarder) Emit(_ context.Context, kind model.EventKind, value any) error {
	c.kinds = append(c.kinds, kind)
	c.payloads = append(c.payloads, value)
	return nil
}

func TestProcess_User_FetchesAndEmits(t *testing.T) {
	api := &fakeAPI{user: json.RawMessage(`{"id":7,"email":"a@b"}`)}
	out := &captureForwarder{}
	process := retrieval.Process(api, nil, out, nil)

	err := process(context.Background(), model.Record{
		Kind:    model.EventUserCreate,
		Payload: json.RawMessage(`{"user_id":7}`),
	})
	require.NoError(t, err)
	require.Len(t, out.payloads, 1)
	assert.Equal(t, model.EventUserCreate, out.kinds[0])
}

func TestProcess_Project_MissingID_PermanentFault(t *testing.T) {
	api := &fakeAPI{}
	out := &captureForwarder{}
	process := retrieval.Process(api, nil, out, nil)

	err := process(context.Background(), model.Record{
		Kind:    model.EventProjectCreate,
		Payload: json.RawMessage(`{}`),
	})
	var fault *pipeline.PermanentFault
	require.ErrorAs(t, err, &fault)
}

func TestProcess_IssueNote_FetchesNestedIDs(t *testing.T) {
	api := &fakeAPI{note: json.RawMessage(`{"id":3,"body":"hi"}`)}
	out := &captureForwarder{}
	process := retrieval.Process(api, nil, out, nil)

	payload := `{"project_id":1,"issue":{"id":2},"object_attributes":{"id":3}}`
	err := process(context.Background(), model.Record{
		Kind:    model.EventIssueNoteCreate,
		Payload: json.RawMessage(payload),
	})
	require.NoError(t, err)
	require.Len(t, out.payloads, 1)
}

func TestProcess_Snippet_FiltersTrustedAuthors(t *testing.T) {
	api := &fakeAPI{snippets: []platformapi.Snippet{
		{ID: 1, Author: platformapi.SnippetAuthor{Email: "trusted@example.com"}},
		{ID: 2, Author: platformapi.SnippetAuthor{Email: "stranger@example.com"}},
	}}
	verifier := &fakeVerifier{trustedEmails: map[string]bool{"trusted@example.com": true}}
	out := &captureForwarder{}
	process := retrieval.Process(api, verifier, out, nil)

	err := process(context.Background(), model.Record{
		Kind:    model.EventSnippetCheck,
		Payload: json.RawMessage(`{}`),
	})
	require.NoError(t, err)
	require.Len(t, out.payloads, 1)
	snippet, ok := out.payloads[0].(platformapi.Snippet)
	require.True(t, ok)
	assert.Equal(t, 2, snippet.ID)
}

func TestProcess_NotFound_IsPermanentFault(t *testing.T) {
	api := &fakeAPI{err: &platformapi.NotFoundError{Path: "/api/v4/users/7"}}
	out := &captureForwarder{}
	process := retrieval.Process(api, nil, out, nil)

	err := process(context.Background(), model.Record{
		Kind:    model.EventUserCreate,
		Payload: json.RawMessage(`{"user_id":7}`),
	})
	var fault *pipeline.PermanentFault
	require.ErrorAs(t, err, &fault)
}

func TestProcess_TransientAPIFailure_LeavesRecordUnacked(t *testing.T) {
	api := &fakeAPI{err: assertErr()}
	out := &captureForwarder{}
	process := retrieval.Process(api, nil, out, nil)

	err := process(context.Background(), model.Record{
		Kind:    model.EventUserCreate,
		Payload: json.RawMessage(`{"user_id":7}`),
	})
	var fault *pipeline.TransientFault
	require.ErrorAs(t, err, &fault)
}

func assertErr() error {
	var v int
	return json.Unmarshal([]byte("not json"), &v)
}
