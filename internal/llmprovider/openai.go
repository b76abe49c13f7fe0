package llmprovider

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// OpenAIProvider wraps the official OpenAI SDK, grounded on the teacher's
// internal/agent/llm_client.go. It is registered as the configured
// secondary provider (spec §4.5's fallback target).
type OpenAIProvider struct {
	client openai.Client
	model  string
	logger *slog.Logger
}

// NewOpenAIProvider creates an OpenAI-backed Provider.
func NewOpenAIProvider(logger *slog.Logger, apiKey, model string) (*OpenAIProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}
	if model == "" {
		model = "gpt-4o-mini"
	}

	return &OpenAIProvider{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
		logger: logger.With("component", "openai", "model", model),
	}, nil
}

func (p *OpenAIProvider) Name() string { return "openai" }

func (p *OpenAIProvider) TestConnection(ctx context.Context) error {
	_, err := p.completeWithRetry(ctx, "ping", 8)
	if err != nil {
		return fmt.Errorf("openai connection test failed: %w", err)
	}
	return nil
}

func (p *OpenAIProvider) Classify(ctx context.Context, path, extension, content string) (Classification, error) {
	userPrompt := BuildUserPrompt(path, extension, content, 0)

	completion, err := p.completeWithRetry(ctx, userPrompt, 0)
	if err != nil {
		return Classification{}, err
	}
	if len(completion.Choices) == 0 {
		return Classification{}, fmt.Errorf("openai returned no choices")
	}

	raw, err := ParseClassification(completion.Choices[0].Message.Content)
	if err != nil {
		return Classification{}, err
	}

	return Classification{
		Purpose:           raw.Purpose,
		Category:          raw.Category,
		Confidence:        raw.Confidence,
		SecurityRelevance: raw.SecurityRelevance,
		Reasoning:         raw.Reasoning,
		Provider:          p.Name(),
		Model:             p.model,
		InputTokens:       int(completion.Usage.PromptTokens),
		OutputTokens:      int(completion.Usage.CompletionTokens),
	}, nil
}

// completeWithRetry applies the same 1s/2s/4s/8s/16s backoff, 5-attempt
// policy as the Gemini provider so both providers honor spec §4.5
// identically.
func (p *OpenAIProvider) completeWithRetry(ctx context.Context, userPrompt string, maxTokens int) (*openai.ChatCompletion, error) {
	const maxAttempts = 5
	delay := 1 * time.Second

	params := openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(SystemPrompt),
			openai.UserMessage(userPrompt),
		},
		Model: openai.ChatModel(p.model),
	}
	if maxTokens > 0 {
		params.MaxTokens = openai.Int(int64(maxTokens))
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		completion, err := p.client.Chat.Completions.New(ctx, params)
		if err == nil {
			return completion, nil
		}
		lastErr = err

		if !isRateLimitErr(err) {
			return nil, err
		}
		if attempt == maxAttempts-1 {
			break
		}

		p.logger.Warn("openai rate limited, backing off",
			"attempt", attempt+1, "delay", delay.String())

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		if delay < 16*time.Second {
			delay *= 2
		}
	}

	return nil, fmt.Errorf("openai rate limit exhausted after %d attempts: %w", maxAttempts, lastErr)
}
