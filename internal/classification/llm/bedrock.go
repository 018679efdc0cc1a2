package llm

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

// BedrockJudge implements Judge via Amazon Bedrock's Converse API, which
// presents a single request shape across the model families Bedrock hosts.
type BedrockJudge struct {
	client  *bedrockruntime.Client
	modelID string
}

// NewBedrockJudge builds a judge using the default AWS credential chain
// (environment, shared config, or instance role) for the given region and
// model ID.
func NewBedrockJudge(ctx context.Context, region, modelID string) (*BedrockJudge, error) {
	if modelID == "" {
		return nil, errors.New("llm: bedrock model id is required")
	}
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, err
	}
	return &BedrockJudge{client: bedrockruntime.NewFromConfig(cfg), modelID: modelID}, nil
}

// Judge sends prompt as a single user turn via Converse and returns the
// first text block of the reply.
func (j *BedrockJudge) Judge(ctx context.Context, prompt string) (string, error) {
	out, err := j.client.Converse(ctx, &bedrockruntime.ConverseInput{
		ModelId: aws.String(j.modelID),
		Messages: []types.Message{
			{
				Role:    types.ConversationRoleUser,
				Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: prompt}},
			},
		},
	})
	if err != nil {
		return "", err
	}
	output, ok := out.Output.(*types.ConverseOutputMemberMessage)
	if !ok || len(output.Value.Content) == 0 {
		return "", errors.New("llm: bedrock response had no message content")
	}
	for _, block := range output.Value.Content {
		if text, ok := block.(*types.ContentBlockMemberText); ok {
			return text.Value, nil
		}
	}
	return "", errors.New("llm: bedrock response had no text block")
}
