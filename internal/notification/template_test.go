package notification_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gitlab-triage/event-triage-pipeline/internal/model"
	"github.com/gitlab-triage/event-triage-pipeline/internal/notification"
)

func TestRender_UserCreate_HeaderAndFields(t *testing.T) {
	envelope := model.ClassificationEnvelope{
		EventData:  json.RawMessage(`{"username":"alice","name":"Alice A","email":"alice@example.com"}`),
		Prediction: model.PredictionOne,
		Score:      0.873,
	}
	msg, err := notification.Render(model.EventUserCreate, envelope)
	require.NoError(t, err)
	assert.Equal(t, "User Created on GitLab", msg.Header)
	assert.Equal(t, "alice", msg.Fields["Username"])
	assert.Equal(t, "Spam", msg.Verdict)
	assert.Equal(t, 0.873, msg.Score)
}

func TestRender_IssueOpen_FormatsTimestamp(t *testing.T) {
	envelope := model.ClassificationEnvelope{
		EventData:  json.RawMessage(`{"title":"Bug","created_at":"2024-03-05T10:15:30.0000Z"}`),
		Prediction: model.PredictionZero,
		Score:      0.1,
	}
	msg, err := notification.Render(model.EventIssueOpen, envelope)
	require.NoError(t, err)
	assert.Equal(t, "05 March 2024 10:15:30 GMT", msg.Fields["Created At"])
	assert.Equal(t, "Not Spam", msg.Verdict)
}

func TestRender_NAPrediction_IsNotSpam(t *testing.T) {
	envelope := model.ClassificationEnvelope{
		EventData:  json.RawMessage(`{"username":"bob"}`),
		Prediction: model.PredictionNA,
		Score:      0.0,
	}
	msg, err := notification.Render(model.EventUserCreate, envelope)
	require.NoError(t, err)
	assert.Equal(t, "Not Spam", msg.Verdict)
}

func TestRender_UnsupportedKind_ReturnsError(t *testing.T) {
	_, err := notification.Render("not_a_kind", model.ClassificationEnvelope{})
	assert.Error(t, err)
}
