// Package tokens implements the Token Accountant (C3): counting tokens for
// a (prompt, content) pair and translating the count into provider-priced
// cost. The byte-level encoder is treated as an external service per spec
// §9's "Token encoder coupling" note — it is wrapped behind the Encoder
// interface so a stub can stand in when tiktoken-go's download is
// unavailable.
package tokens

import (
	"github.com/pkoukk/tiktoken-go"

	"github.com/rohankatakam/manifestaudit/internal/llmprovider"
	"github.com/rohankatakam/manifestaudit/internal/manifest"
)

// EstimatedResponseTokens is the fixed constant used unless a provider
// supplies a better estimate (spec §4.3).
const EstimatedResponseTokens = 150

// Encoder counts tokens in a string. tiktoken.Encoding satisfies it; a
// length-based stub also satisfies it for tests and encoder-unavailable
// fallback.
type Encoder interface {
	Encode(text string) []int
}

// Accountant computes TokenStats for (path, content) pairs against a
// prompt template and a provider's configured pricing.
type Accountant struct {
	encoder     Encoder
	approximate bool
	template    PromptTemplate
}

// PromptTemplate renders the full templated prompt C3 must count tokens
// for — the same template the LLM Provider sends on the wire (spec §6).
type PromptTemplate func(path, extension, content string) string

// DefaultPromptTemplate renders the same user prompt the LLM providers send
// (llmprovider.BuildUserPrompt), with the content untruncated. The system
// role is not included.
func DefaultPromptTemplate(path, extension, content string) string {
	return llmprovider.BuildUserPrompt(path, extension, content, 0)
}

// NewAccountant constructs an Accountant using tiktoken-go's cl100k_base
// encoding (the encoding OpenAI-style chat models use), falling back to an
// approximate length-based estimator if the encoder cannot be loaded (e.g.
// no network access to fetch its vocabulary file).
func NewAccountant(template PromptTemplate) *Accountant {
	if template == nil {
		template = DefaultPromptTemplate
	}

	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return &Accountant{encoder: approximateEncoder{}, approximate: true, template: template}
	}
	return &Accountant{encoder: tiktokenEncoder{enc}, template: template}
}

// NewAccountantWithEncoder builds an Accountant around a caller-supplied
// Encoder, for tests or when the caller has already resolved one.
func NewAccountantWithEncoder(enc Encoder, template PromptTemplate) *Accountant {
	if template == nil {
		template = DefaultPromptTemplate
	}
	_, isApprox := enc.(approximateEncoder)
	return &Accountant{encoder: enc, approximate: isApprox, template: template}
}

// tiktokenEncoder adapts *tiktoken.Tiktoken to the Encoder interface.
type tiktokenEncoder struct {
	enc *tiktoken.Tiktoken
}

func (t tiktokenEncoder) Encode(text string) []int {
	return t.enc.Encode(text, nil, nil)
}

// approximateEncoder implements the len(bytes)/4 fallback from spec §4.3.
type approximateEncoder struct{}

func (approximateEncoder) Encode(text string) []int {
	n := len(text) / 4
	return make([]int, n)
}

// Rates is the pricing the selected provider is configured with, per spec
// §4.3 ("rates taken from the selected provider's configured pricing").
type Rates struct {
	InputPerThousand  float64
	OutputPerThousand float64
}

// Count computes TokenStats for one file's content against the prompt
// template and provider rates.
func (a *Accountant) Count(path, extension, content string, rates Rates) manifest.TokenStats {
	contentTokens := len(a.encoder.Encode(content))
	prompt := a.template(path, extension, content)
	promptTokens := len(a.encoder.Encode(prompt))

	total := promptTokens + EstimatedResponseTokens
	cost := float64(promptTokens)/1000*rates.InputPerThousand +
		float64(EstimatedResponseTokens)/1000*rates.OutputPerThousand

	return manifest.TokenStats{
		ContentTokens:           contentTokens,
		PromptTokens:            promptTokens,
		EstimatedResponseTokens: EstimatedResponseTokens,
		TotalTokens:             total,
		EstimatedCost:           cost,
		Approximate:             a.approximate,
	}
}
