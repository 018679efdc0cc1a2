package llm_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gitlab-triage/event-triage-pipeline/internal/classification/llm"
	"github.com/gitlab-triage/event-triage-pipeline/internal/model"
)

type fakeJudge struct {
	reply string
	err   error
}

func (f *fakeJudge) Judge(context.Context, string) (string, error) { return f.reply, f.err }

func TestClassify_ParsesCleanJSONReply(t *testing.T) {
	c := &llm.Classifier{Judge: &fakeJudge{reply: `{"prediction": 1, "score": 0.92}`}}
	prediction, score, err := c.Classify(context.Background(), model.EventUserCreate, []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, 1, prediction)
	assert.Equal(t, 0.92, score)
}

func TestClassify_ExtractsJSONFromSurroundingProse(t *testing.T) {
	reply := "Here is my judgment:\n{\"prediction\": 0, \"score\": 0.1}\nHope that helps."
	c := &llm.Classifier{Judge: &fakeJudge{reply: reply}}
	prediction, _, err := c.Classify(context.Background(), model.EventUserCreate, []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, 0, prediction)
}

func TestClassify_ClampsOutOfRangeScore(t *testing.T) {
	c := &llm.Classifier{Judge: &fakeJudge{reply: `{"prediction": 1, "score": 1.5}`}}
	_, score, err := c.Classify(context.Background(), model.EventUserCreate, []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, 1.0, score)
}

func TestClassify_NoJSONObject_ReturnsError(t *testing.T) {
	c := &llm.Classifier{Judge: &fakeJudge{reply: "I cannot help with that."}}
	_, _, err := c.Classify(context.Background(), model.EventUserCreate, []byte(`{}`))
	assert.Error(t, err)
}
