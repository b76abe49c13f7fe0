// Package llmprovider implements the LLM Provider Abstraction (C4): a
// uniform classify(file) operation over concrete providers, confining
// authentication, rate-limit detection, and region routing inside each
// implementation. Modeled on the teacher's internal/llm/gemini_client.go
// retry/backoff idiom, generalized behind a small registry (spec §9:
// "prefer composition and a registry keyed by provider name").
package llmprovider

import "context"

// Classification is what a provider's Classify call produces: the fields
// C5 needs to merge into a FileEntry, plus provenance and observed token
// counts.
type Classification struct {
	Purpose           string
	Category          string
	Confidence        float64
	SecurityRelevance string
	Reasoning         string

	Provider          string
	Model             string
	InputTokens       int
	OutputTokens      int
}

// Provider is the interface every concrete LLM backend implements.
type Provider interface {
	// Name identifies the provider for the manifest's provider/model
	// fields and the registry.
	Name() string

	// TestConnection verifies reachability/credentials for the
	// `test-llm` CLI verb.
	TestConnection(ctx context.Context) error

	// Classify sends the file through the provider's prompt template and
	// parses a strict JSON classification out of the reply.
	Classify(ctx context.Context, path, extension, content string) (Classification, error)
}

// Registry resolves providers by configuration name.
type Registry struct {
	providers map[string]Provider
}

// NewRegistry builds a Registry from a set of named providers.
func NewRegistry(providers map[string]Provider) *Registry {
	return &Registry{providers: providers}
}

// Get returns the named provider, or false if not registered.
func (r *Registry) Get(name string) (Provider, bool) {
	p, ok := r.providers[name]
	return p, ok
}

// Names returns every registered provider name.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	return names
}
