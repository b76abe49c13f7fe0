package llmprovider

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/genai"
)

// GeminiProvider wraps Google's Generative AI SDK. Grounded on the
// teacher's internal/llm/gemini_client.go, generalized to the Provider
// interface and the classify(file) operation.
type GeminiProvider struct {
	client *genai.Client
	model  string
	logger *slog.Logger
}

// NewGeminiProvider creates a Gemini-backed Provider.
func NewGeminiProvider(ctx context.Context, logger *slog.Logger, apiKey, model string) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	return &GeminiProvider{
		client: client,
		model:  model,
		logger: logger.With("component", "gemini", "model", model),
	}, nil
}

func (p *GeminiProvider) Name() string { return "gemini" }

func (p *GeminiProvider) TestConnection(ctx context.Context) error {
	genConfig := &genai.GenerateContentConfig{MaxOutputTokens: 8}
	_, err := p.generateWithRetry(ctx, genai.Text("ping"), genConfig)
	if err != nil {
		return fmt.Errorf("gemini connection test failed: %w", err)
	}
	return nil
}

func (p *GeminiProvider) Classify(ctx context.Context, path, extension, content string) (Classification, error) {
	userPrompt := BuildUserPrompt(path, extension, content, 0)

	genConfig := &genai.GenerateContentConfig{
		SystemInstruction: genai.Text(SystemPrompt)[0],
		Temperature:       ptrFloat32(0.1),
		ResponseMIMEType:  "application/json",
	}

	resp, err := p.generateWithRetry(ctx, genai.Text(userPrompt), genConfig)
	if err != nil {
		return Classification{}, err
	}

	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return Classification{}, fmt.Errorf("gemini returned no content")
	}

	text := resp.Candidates[0].Content.Parts[0].Text
	raw, err := ParseClassification(text)
	if err != nil {
		return Classification{}, err
	}

	inputTokens, outputTokens := 0, 0
	if resp.UsageMetadata != nil {
		inputTokens = int(resp.UsageMetadata.PromptTokenCount)
		outputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}

	return Classification{
		Purpose:           raw.Purpose,
		Category:          raw.Category,
		Confidence:        raw.Confidence,
		SecurityRelevance: raw.SecurityRelevance,
		Reasoning:         raw.Reasoning,
		Provider:          p.Name(),
		Model:             p.model,
		InputTokens:       inputTokens,
		OutputTokens:      outputTokens,
	}, nil
}

// generateWithRetry wraps GenerateContent with exponential backoff for
// rate limits: 1s, 2s, 4s, 8s, 16s (capped), up to 5 attempts — spec §4.5's
// per-file retry policy, grounded on the teacher's
// generateContentWithRetry.
func (p *GeminiProvider) generateWithRetry(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	const maxAttempts = 5
	delay := 1 * time.Second

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		resp, err := p.client.Models.GenerateContent(ctx, p.model, contents, config)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if !isRateLimitErr(err) {
			return nil, err
		}
		if attempt == maxAttempts-1 {
			break
		}

		p.logger.Warn("gemini rate limited, backing off",
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

	return nil, fmt.Errorf("gemini rate limit exhausted after %d attempts: %w", maxAttempts, lastErr)
}

func isRateLimitErr(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "resource_exhausted") ||
		strings.Contains(msg, "resource exhausted")
}

func ptrFloat32(f float64) *float32 {
	v := float32(f)
	return &v
}
