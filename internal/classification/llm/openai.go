package llm

import (
	"context"
	"errors"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIJudge implements Judge via the OpenAI Chat Completions API.
type OpenAIJudge struct {
	client openai.Client
	model  openai.ChatModel
}

// NewOpenAIJudge builds a judge from an API key and model name.
func NewOpenAIJudge(apiKey, modelName string) (*OpenAIJudge, error) {
	if apiKey == "" {
		return nil, errors.New("llm: openai api key is required")
	}
	if modelName == "" {
		modelName = openai.ChatModelGPT4oMini
	}
	return &OpenAIJudge{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  modelName,
	}, nil
}

// Judge sends prompt as a single user turn and returns the reply text.
func (j *OpenAIJudge) Judge(ctx context.Context, prompt string) (string, error) {
	resp, err := j.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: j.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("llm: openai response had no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
