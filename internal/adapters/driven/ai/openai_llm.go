package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/custodia-labs/lexcheck/internal/core/domain"
	"github.com/custodia-labs/lexcheck/internal/core/ports/driven"
	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/shared"
)

// Ensure OpenAILLM implements LLMService
var _ driven.LLMService = (*OpenAILLM)(nil)

// OpenAILLM implements LLMService with the OpenAI chat completions API
type OpenAILLM struct {
	client openai.Client
	model  string
}

// NewOpenAILLM creates an OpenAI-backed reasoning model.
// Retries are disabled; the analysis engine falls back instead.
func NewOpenAILLM(apiKey, model, baseURL string) (driven.LLMService, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}
	if model == "" {
		model = "gpt-4o-mini"
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimRight(baseURL, "/")+"/"))
	}

	return &OpenAILLM{
		client: openai.NewClient(opts...),
		model:  model,
	}, nil
}

// Complete sends one system + user exchange and returns the reply text
func (l *OpenAILLM) Complete(ctx context.Context, req domain.CompletionRequest) (string, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	messages = append(messages, openai.UserMessage(req.Prompt))

	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(l.model),
		Messages:    messages,
		Temperature: openai.Float(req.Temperature),
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(req.MaxTokens))
	}
	if req.JSONOnly {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}

	resp, err := l.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai completion: no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

// Model returns the model name being used
func (l *OpenAILLM) Model() string {
	return l.model
}

// Ping verifies the configured model is reachable
func (l *OpenAILLM) Ping(ctx context.Context) error {
	if _, err := l.client.Models.Get(ctx, l.model); err != nil {
		return fmt.Errorf("openai ping: %w", err)
	}
	return nil
}

// Close is a no-op; the SDK client holds no closable resources
func (l *OpenAILLM) Close() error {
	return nil
}
