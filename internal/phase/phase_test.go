package phase

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/rohankatakam/manifestaudit/internal/config"
	"github.com/rohankatakam/manifestaudit/internal/llmprovider"
	"github.com/rohankatakam/manifestaudit/internal/manifest"
	"github.com/rohankatakam/manifestaudit/internal/reposource"
	"github.com/rohankatakam/manifestaudit/internal/tokens"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	branch string
	commit string
	refs   []reposource.FileRef
	blobs  map[string][]byte
}

func (f *fakeSource) Resolve(ctx context.Context, repoURL string) (string, string, error) {
	return f.branch, f.commit, nil
}
func (f *fakeSource) ListFiles(ctx context.Context, repoURL, commitID string) ([]reposource.FileRef, error) {
	return f.refs, nil
}
func (f *fakeSource) FetchBlob(ctx context.Context, repoURL, blobID string) ([]byte, error) {
	return f.blobs[blobID], nil
}
func (f *fakeSource) Clone(ctx context.Context, repoURL, commitID, destDir string) error { return nil }
func (f *fakeSource) TestConnection(ctx context.Context) error                          { return nil }

func silentLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testController(t *testing.T, source *fakeSource) *Controller {
	cfg := config.Default()
	registry := llmprovider.NewRegistry(map[string]llmprovider.Provider{})
	accountant := tokens.NewAccountant(nil)
	return New(source, registry, accountant, nil, nil, silentLogger(), cfg)
}

func TestController_Inventory_SeedsManifest(t *testing.T) {
	source := &fakeSource{
		branch: "main",
		commit: "abc123",
		refs: []reposource.FileRef{
			{Path: "main.go", BlobID: "b1", Size: 100},
			{Path: "README.md", BlobID: "b2", Size: 50},
		},
	}
	c := testController(t, source)

	manifestPath := filepath.Join(t.TempDir(), "manifest.json")
	outcomes, err := c.Run(context.Background(), Options{
		RepoURL:      "owner/repo",
		ManifestPath: manifestPath,
		Phases:       []Name{Inventory},
	})

	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.Equal(t, StatusCompleted, outcomes[0].Status)

	m, err := manifest.Load(manifestPath)
	require.NoError(t, err)
	assert.Equal(t, "abc123", m.Repository.CommitSHA)
	assert.Len(t, m.Files, 2)
	assert.Equal(t, ".go", m.Files[0].Extension)
}

func TestController_RunsPhasesInCanonicalOrderRegardlessOfRequestOrder(t *testing.T) {
	source := &fakeSource{branch: "main", commit: "c1", refs: []reposource.FileRef{
		{Path: "a.go", BlobID: "b1", Size: 10},
	}, blobs: map[string][]byte{"b1": []byte("package main")}}
	c := testController(t, source)

	manifestPath := filepath.Join(t.TempDir(), "manifest.json")
	outcomes, err := c.Run(context.Background(), Options{
		RepoURL:      "owner/repo",
		ManifestPath: manifestPath,
		Phases:       []Name{TokenAccounting, Inventory}, // requested out of order
	})

	require.NoError(t, err)
	require.Len(t, outcomes, 2)
	assert.Equal(t, Inventory, outcomes[0].Phase)
	assert.Equal(t, TokenAccounting, outcomes[1].Phase)
}

func TestController_StaleManifestFailsFast(t *testing.T) {
	source := &fakeSource{branch: "main", commit: "c1", refs: []reposource.FileRef{
		{Path: "a.go", BlobID: "b1", Size: 10},
	}}
	c := testController(t, source)
	manifestPath := filepath.Join(t.TempDir(), "manifest.json")

	_, err := c.Run(context.Background(), Options{
		RepoURL: "owner/repo", ManifestPath: manifestPath, Phases: []Name{Inventory},
	})
	require.NoError(t, err)

	source.commit = "c2" // repo moved on
	outcomes, err := c.Run(context.Background(), Options{
		RepoURL: "owner/repo", ManifestPath: manifestPath, Phases: []Name{TokenAccounting},
	})

	require.Error(t, err)
	require.Len(t, outcomes, 1)
	assert.Equal(t, StatusFailed, outcomes[0].Status)
}

func TestController_CancelledBeforeStart(t *testing.T) {
	source := &fakeSource{branch: "main", commit: "c1"}
	c := testController(t, source)
	manifestPath := filepath.Join(t.TempDir(), "manifest.json")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcomes, err := c.Run(ctx, Options{
		RepoURL: "owner/repo", ManifestPath: manifestPath, Phases: []Name{Inventory},
	})

	require.Error(t, err)
	require.Len(t, outcomes, 1)
	assert.Equal(t, StatusCancelled, outcomes[0].Status)
}

func TestController_DryRunDoesNotWriteManifest(t *testing.T) {
	source := &fakeSource{branch: "main", commit: "c1", refs: []reposource.FileRef{
		{Path: "a.go", BlobID: "b1", Size: 10},
	}}
	c := testController(t, source)
	manifestPath := filepath.Join(t.TempDir(), "manifest.json")

	_, err := c.Run(context.Background(), Options{
		RepoURL: "owner/repo", ManifestPath: manifestPath, Phases: []Name{Inventory}, DryRun: true,
	})
	require.NoError(t, err)

	_, err = manifest.Load(manifestPath)
	assert.Error(t, err)
}
