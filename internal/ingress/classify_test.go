package ingress_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gitlab-triage/event-triage-pipeline/internal/ingress"
	"github.com/gitlab-triage/event-triage-pipeline/internal/model"
)

func TestClassify_UserCreate(t *testing.T) {
	kind, ok := ingress.Classify([]byte(`{"event_name":"user_create","email":"a@b","user_id":7}`))
	assert.True(t, ok)
	assert.Equal(t, model.EventUserCreate, kind)
}

func TestClassify_IssueNoteCreate(t *testing.T) {
	body := `{"object_kind":"note","object_attributes":{"noteable_type":"Issue","created_at":"t","updated_at":"t"}}`
	kind, ok := ingress.Classify([]byte(body))
	assert.True(t, ok)
	assert.Equal(t, model.EventIssueNoteCreate, kind)
}

func TestClassify_IssueNoteUpdate(t *testing.T) {
	body := `{"object_kind":"note","object_attributes":{"noteable_type":"Issue","created_at":"t1","updated_at":"t2"}}`
	kind, ok := ingress.Classify([]byte(body))
	assert.True(t, ok)
	assert.Equal(t, model.EventIssueNoteUpdate, kind)
}

func TestClassify_NoteMissingTimestamps_Unhandled(t *testing.T) {
	body := `{"object_kind":"note","object_attributes":{"noteable_type":"Issue"}}`
	_, ok := ingress.Classify([]byte(body))
	assert.False(t, ok)
}

func TestClassify_IssueAction(t *testing.T) {
	body := `{"object_kind":"issue","object_attributes":{"action":"open"}}`
	kind, ok := ingress.Classify([]byte(body))
	assert.True(t, ok)
	assert.Equal(t, model.EventIssueOpen, kind)
}

func TestClassify_UnrecognizedBody_Unhandled(t *testing.T) {
	_, ok := ingress.Classify([]byte(`{"event_name":"something_else"}`))
	assert.False(t, ok)
}

func TestClassify_MalformedJSON_Unhandled(t *testing.T) {
	_, ok := ingress.Classify([]byte(`not json`))
	assert.False(t, ok)
}
