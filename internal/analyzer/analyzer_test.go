package analyzer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/rand"
	"sync/atomic"
	"testing"

	"github.com/rohankatakam/manifestaudit/internal/config"
	"github.com/rohankatakam/manifestaudit/internal/llmprovider"
	"github.com/rohankatakam/manifestaudit/internal/manifest"
	"github.com/rohankatakam/manifestaudit/internal/mferrors"
	"github.com/rohankatakam/manifestaudit/internal/reposource"
	"github.com/rohankatakam/manifestaudit/internal/tokens"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	blobs map[string][]byte
	err   error
}

func (f *fakeSource) Resolve(ctx context.Context, repoURL string) (string, string, error) {
	return "main", "abc123", nil
}
func (f *fakeSource) ListFiles(ctx context.Context, repoURL, commitID string) ([]reposource.FileRef, error) {
	return nil, nil
}
func (f *fakeSource) FetchBlob(ctx context.Context, repoURL, blobID string) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.blobs[blobID], nil
}
func (f *fakeSource) Clone(ctx context.Context, repoURL, commitID, destDir string) error { return nil }
func (f *fakeSource) TestConnection(ctx context.Context) error                          { return nil }

type fakeProvider struct {
	name      string
	failTimes int32
	failKind  *mferrors.Kind // nil means a plain, unclassified error
	calls     int32
	result    llmprovider.Classification
}

func (p *fakeProvider) Name() string                        { return p.name }
func (p *fakeProvider) TestConnection(ctx context.Context) error { return nil }
func (p *fakeProvider) Classify(ctx context.Context, path, extension, content string) (llmprovider.Classification, error) {
	n := atomic.AddInt32(&p.calls, 1)
	if n <= p.failTimes {
		if p.failKind != nil {
			return llmprovider.Classification{}, mferrors.New(*p.failKind, "simulated failure")
		}
		return llmprovider.Classification{}, errors.New("simulated failure")
	}
	r := p.result
	r.Provider = p.name
	return r, nil
}

func silentLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCandidates_FiltersByExtensionSizeAndPurpose(t *testing.T) {
	entries := []manifest.FileEntry{
		{Path: "a.go", Extension: ".go", Size: 100},
		{Path: "b.png", Extension: ".png", Size: 100},
		{Path: "c.go", Extension: ".go", Size: 10_000_000},
		{Path: "d.go", Extension: ".go", Size: 100, Purpose: "already classified"},
	}
	cfg := config.AnalysisConfig{FileExtensions: []string{".go"}, MaxFileSize: 1000}

	idx := Candidates(entries, cfg, false)

	assert.Equal(t, []int{0}, idx)
}

func TestCandidates_ReanalyzeIncludesClassified(t *testing.T) {
	entries := []manifest.FileEntry{
		{Path: "a.go", Extension: ".go", Size: 100, Purpose: "x"},
	}
	cfg := config.AnalysisConfig{FileExtensions: []string{".go"}, MaxFileSize: 1000}

	idx := Candidates(entries, cfg, true)

	assert.Equal(t, []int{0}, idx)
}

func TestAnalyzer_Run_HappyPath(t *testing.T) {
	source := &fakeSource{blobs: map[string][]byte{"blob1": []byte("package main")}}
	primary := &fakeProvider{name: "gemini", result: llmprovider.Classification{
		Purpose: "entrypoint", Category: "other", SecurityRelevance: "low", Confidence: 0.8,
	}}

	a := New(source, primary, nil, silentLogger(), config.AnalysisConfig{BatchSize: 2, RequestTimeout: 5})
	m := &manifest.Manifest{Files: []manifest.FileEntry{{Path: "main.go", BlobID: "blob1"}}}

	results := a.Run(context.Background(), "owner/repo", m, []int{0})

	require.Len(t, results, 1)
	assert.NoError(t, results[0].Err)
	assert.Equal(t, "entrypoint", m.Files[0].Purpose)
	assert.Equal(t, "gemini", m.Files[0].Provider)
}

func TestAnalyzer_Run_FallsBackToSecondaryOnProviderWideFailure(t *testing.T) {
	source := &fakeSource{blobs: map[string][]byte{"blob1": []byte("x")}}
	primary := &fakeProvider{name: "gemini", failTimes: 10} // always fails
	secondary := &fakeProvider{name: "openai", result: llmprovider.Classification{
		Purpose: "fallback worked", Category: "other", SecurityRelevance: "low",
	}}

	a := New(source, primary, secondary, silentLogger(), config.AnalysisConfig{BatchSize: 1, RequestTimeout: 5})
	m := &manifest.Manifest{Files: []manifest.FileEntry{{Path: "main.go", BlobID: "blob1"}}}

	a.Run(context.Background(), "owner/repo", m, []int{0})

	assert.Equal(t, "fallback worked", m.Files[0].Purpose)
	assert.Equal(t, "openai", m.Files[0].Provider)
}

func TestClassifyOne_MalformedResponseDoesNotTriggerFailover(t *testing.T) {
	malformed := mferrors.KindMalformedResponse
	source := &fakeSource{blobs: map[string][]byte{"blob1": []byte("x")}}
	// Primary always fails with a per-file malformed response.
	primary := &fakeProvider{name: "gemini", failTimes: 2, failKind: &malformed}
	secondary := &fakeProvider{name: "openai", result: llmprovider.Classification{
		Purpose: "served by secondary", Category: "other", SecurityRelevance: "low",
	}}

	a := New(source, primary, secondary, silentLogger(), config.AnalysisConfig{BatchSize: 1, RequestTimeout: 5})
	entry := &manifest.FileEntry{Path: "main.go", BlobID: "blob1"}

	result := a.classifyOne(context.Background(), "owner/repo", entry)

	assert.Contains(t, result.Classification.Reasoning, placeholderReasoningPrefix)
	assert.False(t, a.failoverred, "a malformed per-file reply must not latch provider-wide failover")
}

func TestClassifyOne_ProviderWideFailureTriggersFailover(t *testing.T) {
	source := &fakeSource{blobs: map[string][]byte{"blob1": []byte("x")}}
	primary := &fakeProvider{name: "gemini", failTimes: 2} // unclassified, systemic error
	secondary := &fakeProvider{name: "openai", result: llmprovider.Classification{
		Purpose: "served by secondary", Category: "other", SecurityRelevance: "low",
	}}

	a := New(source, primary, secondary, silentLogger(), config.AnalysisConfig{BatchSize: 1, RequestTimeout: 5})
	entry := &manifest.FileEntry{Path: "main.go", BlobID: "blob1"}

	result := a.classifyOne(context.Background(), "owner/repo", entry)

	assert.Equal(t, "served by secondary", result.Classification.Purpose)
	assert.True(t, a.failoverred)
}

func TestAnalyzer_Run_PlaceholderWhenNoFallbackAvailable(t *testing.T) {
	source := &fakeSource{blobs: map[string][]byte{"blob1": []byte("x")}}
	primary := &fakeProvider{name: "gemini", failTimes: 10}

	a := New(source, primary, nil, silentLogger(), config.AnalysisConfig{BatchSize: 1, RequestTimeout: 5})
	m := &manifest.Manifest{Files: []manifest.FileEntry{{Path: "main.go", BlobID: "blob1"}}}

	a.Run(context.Background(), "owner/repo", m, []int{0})

	assert.Equal(t, manifest.CategoryOther, m.Files[0].Category)
	assert.Contains(t, m.Files[0].Reasoning, placeholderReasoningPrefix)
}

func TestAnalyzer_Run_PreservesManifestOrder(t *testing.T) {
	source := &fakeSource{blobs: map[string][]byte{
		"b1": []byte("a"), "b2": []byte("b"), "b3": []byte("c"),
	}}
	primary := &fakeProvider{name: "gemini", result: llmprovider.Classification{Category: "other", SecurityRelevance: "low"}}

	a := New(source, primary, nil, silentLogger(), config.AnalysisConfig{BatchSize: 4, RequestTimeout: 5})
	m := &manifest.Manifest{Files: []manifest.FileEntry{
		{Path: "a.go", BlobID: "b1"},
		{Path: "b.go", BlobID: "b2"},
		{Path: "c.go", BlobID: "b3"},
	}}

	a.Run(context.Background(), "owner/repo", m, []int{0, 1, 2})

	assert.Equal(t, "a.go", m.Files[0].Path)
	assert.Equal(t, "b.go", m.Files[1].Path)
	assert.Equal(t, "c.go", m.Files[2].Path)
}

func TestBuildCostPreview_ExtrapolatesOverCandidates(t *testing.T) {
	source := &fakeSource{blobs: map[string][]byte{"b1": []byte("x"), "b2": []byte("y"), "b3": []byte("z")}}
	provider := &fakeProvider{name: "gemini", result: llmprovider.Classification{
		Category: "other", SecurityRelevance: "low", InputTokens: 100, OutputTokens: 50,
	}}
	entries := []manifest.FileEntry{
		{Path: "a.go", BlobID: "b1"},
		{Path: "b.go", BlobID: "b2"},
		{Path: "c.go", BlobID: "b3"},
	}
	rates := tokens.Rates{InputPerThousand: 1.0, OutputPerThousand: 2.0}

	preview, err := BuildCostPreview(context.Background(), rand.New(rand.NewSource(1)), source, "owner/repo", entries, []int{0, 1, 2}, provider, rates, 2)

	require.NoError(t, err)
	assert.Equal(t, 3, preview.CandidateCount)
	assert.Equal(t, 2, preview.SampleSize)
	assert.Greater(t, preview.ProjectedCostUSD, 0.0)
}
