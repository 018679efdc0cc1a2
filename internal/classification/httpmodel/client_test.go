package httpmodel_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gitlab-triage/event-triage-pipeline/internal/classification/httpmodel"
	"github.com/gitlab-triage/event-triage-pipeline/internal/model"
)

func TestClassify_PostsToPerKindPredictPath(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewEncoder(w).Encode(map[string]any{"prediction": 1, "score": 0.9})
	}))
	defer server.Close()

	c := &httpmodel.Classifier{BaseURL: server.URL}
	prediction, score, err := c.Classify(context.Background(), model.EventUserCreate, []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, "/predict_user_create", gotPath)
	assert.Equal(t, 1, prediction)
	assert.Equal(t, 0.9, score)
}

func TestClassify_RawScore_Thresholds(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"score": 0.7})
	}))
	defer server.Close()

	c := &httpmodel.Classifier{BaseURL: server.URL}
	prediction, score, err := c.Classify(context.Background(), model.EventUserCreate, []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, 1, prediction)
	assert.Equal(t, 0.7, score)
}

func TestClassify_NonRetryableStatus_ReturnsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	c := &httpmodel.Classifier{BaseURL: server.URL}
	_, _, err := c.Classify(context.Background(), model.EventUserCreate, []byte(`{}`))
	assert.Error(t, err)
}
