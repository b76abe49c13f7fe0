// Package analyzer implements the LLM Analyzer (C5): candidate selection,
// sampling-based cost preview with operator consent, and the
// bounded-concurrency enrichment loop that classifies candidate files and
// falls back to a secondary provider on provider-wide failure. Grounded on
// the teacher's errgroup/semaphore fan-out idiom in
// internal/github/client.go's Clone, generalized from file-fetching to
// classification.
package analyzer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rohankatakam/manifestaudit/internal/config"
	"github.com/rohankatakam/manifestaudit/internal/llmprovider"
	"github.com/rohankatakam/manifestaudit/internal/manifest"
	"github.com/rohankatakam/manifestaudit/internal/mferrors"
	"github.com/rohankatakam/manifestaudit/internal/reposource"
	"golang.org/x/sync/errgroup"
)

// placeholderReasoningPrefix tags entries the Analyzer could not classify
// so a reader can distinguish a real low-confidence result from a failure.
const placeholderReasoningPrefix = "analysis_failed:"

// Analyzer drives C5's enrichment loop.
type Analyzer struct {
	source    reposource.RepoSource
	primary   llmprovider.Provider
	secondary llmprovider.Provider
	logger    *slog.Logger

	workers        int
	requestTimeout time.Duration

	mu          sync.Mutex
	failoverred bool // true once provider-wide failure triggers fallback
}

// New builds an Analyzer. secondary may be nil if no fallback is
// configured, in which case a file whose classification fails gets a
// placeholder classification and the remaining candidates still run on the
// primary provider.
func New(source reposource.RepoSource, primary, secondary llmprovider.Provider, logger *slog.Logger, cfg config.AnalysisConfig) *Analyzer {
	workers := cfg.BatchSize
	if workers <= 0 {
		workers = 4
	}
	timeout := time.Duration(cfg.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Analyzer{
		source:         source,
		primary:        primary,
		secondary:      secondary,
		logger:         logger.With("component", "analyzer"),
		workers:        workers,
		requestTimeout: timeout,
	}
}

// Result is what Run produces for one candidate index.
type Result struct {
	Index          int
	Classification llmprovider.Classification
	Err            error
}

// Run classifies every candidate in candidateIdx with bounded concurrency,
// fetching blob bytes via C2 and invoking the active provider's classify
// operation per spec §4.5 step 3. It never reorders entries: results are
// merged back into m by index after all workers finish, preserving
// manifest order (step 4). Cancellation stops scheduling new work; started
// requests run to completion or their own deadline (step 5).
func (a *Analyzer) Run(ctx context.Context, repoURL string, m *manifest.Manifest, candidateIdx []int) []Result {
	results := make([]Result, len(candidateIdx))

	g, gctx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, a.workers)

	for i, idx := range candidateIdx {
		i, idx := i, idx
		g.Go(func() error {
			select {
			case sem <- struct{}{}:
			case <-gctx.Done():
				results[i] = Result{Index: idx, Err: gctx.Err()}
				return nil
			}
			defer func() { <-sem }()

			r := a.classifyOne(gctx, repoURL, &m.Files[idx])
			r.Index = idx
			results[i] = r
			return nil
		})
	}

	_ = g.Wait() // per-file errors are captured in results, never propagated

	for _, r := range results {
		if r.Err != nil {
			continue
		}
		applyClassification(&m.Files[r.Index], r.Classification)
	}

	return results
}

// classifyOne fetches the blob and invokes the active provider, retrying
// once more on a non-throttling/malformed-response error (spec §4.5 step
// 3's "after 2 attempts") before falling back to the secondary provider or
// giving up and recording a placeholder classification. Throttling
// backoff across up to 5 attempts happens inside the provider itself.
func (a *Analyzer) classifyOne(ctx context.Context, repoURL string, entry *manifest.FileEntry) Result {
	if err := ctx.Err(); err != nil {
		return Result{Err: err}
	}
	// Once started, the file's work is detached from run cancellation and
	// bounded only by the per-request timeout.
	ctx = context.WithoutCancel(ctx)

	content, err := a.source.FetchBlob(ctx, repoURL, entry.BlobID)
	if err != nil {
		return Result{Classification: placeholderClassification(err)}
	}

	provider := a.activeProvider()

	var classification llmprovider.Classification
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		reqCtx, cancel := context.WithTimeout(ctx, a.requestTimeout)
		classification, lastErr = provider.Classify(reqCtx, entry.Path, entry.Extension, string(content))
		cancel()
		if lastErr == nil {
			return Result{Classification: classification}
		}
	}

	if a.secondary != nil && provider.Name() == a.primary.Name() && isProviderWideFailure(lastErr) {
		a.triggerFailover()
		reqCtx, cancel := context.WithTimeout(ctx, a.requestTimeout)
		classification, lastErr = a.secondary.Classify(reqCtx, entry.Path, entry.Extension, string(content))
		cancel()
		if lastErr == nil {
			return Result{Classification: classification}
		}
	}

	a.logger.Warn("classification failed, recording placeholder",
		"path", entry.Path, "error", lastErr)
	return Result{Classification: placeholderClassification(lastErr)}
}

// isProviderWideFailure reports whether err reflects a systemic problem with
// the provider (timeout, auth, network, rate-limit exhaustion) rather than a
// single file's malformed reply. Per spec §4.5 step 3, only the former
// should trigger failover to the secondary provider; a malformed response is
// per-file and non-fatal on its own.
func isProviderWideFailure(err error) bool {
	kind, ok := mferrors.KindOf(err)
	if !ok {
		return true
	}
	return kind != mferrors.KindMalformedResponse
}

// activeProvider returns the secondary provider once provider-wide failure
// has been detected, otherwise the primary — spec §4.5 step 3's "the
// per-file provider field reflects what actually ran".
func (a *Analyzer) activeProvider() llmprovider.Provider {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.failoverred && a.secondary != nil {
		return a.secondary
	}
	return a.primary
}

func (a *Analyzer) triggerFailover() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.failoverred {
		a.logger.Warn("provider-wide failure detected, switching remaining work to secondary provider",
			"primary", a.primary.Name())
	}
	a.failoverred = true
}

func placeholderClassification(cause error) llmprovider.Classification {
	return llmprovider.Classification{
		Category:          string(manifest.CategoryOther),
		Confidence:        0,
		SecurityRelevance: string(manifest.RelevanceLow),
		Reasoning:         fmt.Sprintf("%s%v", placeholderReasoningPrefix, cause),
	}
}

func applyClassification(entry *manifest.FileEntry, c llmprovider.Classification) {
	entry.Purpose = c.Purpose
	entry.Category = manifest.Category(c.Category)
	conf := c.Confidence
	entry.Confidence = &conf
	entry.SecurityRelevance = manifest.SecurityRelevance(c.SecurityRelevance)
	entry.Reasoning = c.Reasoning
	entry.Provider = c.Provider
	entry.Model = c.Model
}
