package analyzer

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sashabaranov/go-openai"
)

const (
	DefaultOpenAIBaseUrl = "https://api.deepseek.com"
	DefaultOpenAIModel   = "deepseek-chat"
)

// OpenAIClassifier talks to any OpenAI compatible chat completion endpoint,
// DeepSeek by default.
type OpenAIClassifier struct {
	client *openai.Client
	model  string
}

func NewOpenAIClassifier(apiKey, baseUrl, model string) *OpenAIClassifier {
	config := openai.DefaultConfig(apiKey)
	if baseUrl == "" {
		baseUrl = DefaultOpenAIBaseUrl
	}
	config.BaseURL = baseUrl
	if model == "" {
		model = DefaultOpenAIModel
	}
	return &OpenAIClassifier{client: openai.NewClientWithConfig(config), model: model}
}

func (c *OpenAIClassifier) Classify(ctx context.Context, systemPrompt string, content string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: content},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return "", errors.Wrap(err, "chat completion failed")
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	return resp.Choices[0].Message.Content, nil
}
