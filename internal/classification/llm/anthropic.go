package llm

import (
	"context"
	"errors"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicJudge implements Judge via the Anthropic Messages API.
type AnthropicJudge struct {
	client anthropic.Client
	model  anthropic.Model
}

// NewAnthropicJudge builds a judge from an API key and model name.
func NewAnthropicJudge(apiKey, modelName string) (*AnthropicJudge, error) {
	if apiKey == "" {
		return nil, errors.New("llm: anthropic api key is required")
	}
	if modelName == "" {
		modelName = string(anthropic.ModelClaude3_5HaikuLatest)
	}
	return &AnthropicJudge{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  anthropic.Model(modelName),
	}, nil
}

// Judge sends prompt as a single user turn and returns the first text block.
func (j *AnthropicJudge) Judge(ctx context.Context, prompt string) (string, error) {
	resp, err := j.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     j.model,
		MaxTokens: 256,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", err
	}
	for _, block := range resp.Content {
		if text := block.AsAny(); text != nil {
			if t, ok := text.(anthropic.TextBlock); ok {
				return t.Text, nil
			}
		}
	}
	return "", errors.New("llm: anthropic response had no text block")
}
