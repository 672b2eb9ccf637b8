package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/custodia-labs/lexcheck/internal/core/domain"
	"github.com/custodia-labs/lexcheck/internal/core/ports/driven"
)

// Ensure AnthropicLLM implements LLMService
var _ driven.LLMService = (*AnthropicLLM)(nil)

// AnthropicLLM implements LLMService with the Anthropic Messages API.
// The API has no JSON response mode, so JSONOnly is expressed in the system prompt.
type AnthropicLLM struct {
	client anthropic.Client
	model  string
}

const jsonOnlyInstruction = "Respond with a single JSON object and nothing else."

// NewAnthropicLLM creates an Anthropic-backed reasoning model
func NewAnthropicLLM(apiKey, model, baseURL string) (driven.LLMService, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("Anthropic API key is required")
	}
	if model == "" {
		model = "claude-sonnet-4-5"
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimRight(baseURL, "/")))
	}

	return &AnthropicLLM{
		client: anthropic.NewClient(opts...),
		model:  model,
	}, nil
}

// Complete sends one exchange and joins the text blocks of the reply
func (l *AnthropicLLM) Complete(ctx context.Context, req domain.CompletionRequest) (string, error) {
	system := req.System
	if req.JSONOnly {
		system = strings.TrimSpace(system + "\n\n" + jsonOnlyInstruction)
	}

	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(l.model),
		MaxTokens:   maxTokens,
		Temperature: anthropic.Float(req.Temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	msg, err := l.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic completion: %w", err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", errors.New("anthropic completion: no text content returned")
	}
	return sb.String(), nil
}

// Model returns the model name being used
func (l *AnthropicLLM) Model() string {
	return l.model
}

// Ping verifies the configured model is reachable
func (l *AnthropicLLM) Ping(ctx context.Context) error {
	if _, err := l.client.Models.Get(ctx, l.model, anthropic.ModelGetParams{}); err != nil {
		return fmt.Errorf("anthropic ping: %w", err)
	}
	return nil
}

// Close is a no-op; the SDK client holds no closable resources
func (l *AnthropicLLM) Close() error {
	return nil
}
