package reposource

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/go-github/v57/github"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// GitHubSource implements RepoSource against the GitHub REST API, mirroring
// the teacher's internal/github/client.go: a rate-limited client plus a
// worker pool for file-tree fan-out.
type GitHubSource struct {
	client      *github.Client
	rateLimiter *rate.Limiter
	maxWorkers  int
}

// NewGitHubSource creates a GitHub-backed RepoSource. token may be empty
// for unauthenticated (rate-limited) access. rateLimit is requests/second.
func NewGitHubSource(token string, rateLimit int) *GitHubSource {
	var httpClient *http.Client
	if token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		httpClient = oauth2.NewClient(context.Background(), ts)
	}

	if rateLimit <= 0 {
		rateLimit = 10
	}

	return &GitHubSource{
		client:      github.NewClient(httpClient),
		rateLimiter: rate.NewLimiter(rate.Limit(rateLimit), 1),
		maxWorkers:  20,
	}
}

// ownerName splits "https://github.com/owner/name"(.git) or "owner/name"
// into its two components.
func ownerName(repoURL string) (owner, name string, err error) {
	trimmed := strings.TrimSuffix(repoURL, ".git")
	trimmed = strings.TrimPrefix(trimmed, "https://github.com/")
	trimmed = strings.TrimPrefix(trimmed, "github.com/")
	parts := strings.Split(strings.Trim(trimmed, "/"), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("cannot parse owner/repo from %q", repoURL)
	}
	return parts[0], parts[1], nil
}

func (s *GitHubSource) Resolve(ctx context.Context, repoURL string) (string, string, error) {
	owner, name, err := ownerName(repoURL)
	if err != nil {
		return "", "", err
	}

	var defaultBranch, sha string
	err = withRetry(ctx, defaultRetry, func(ctx context.Context) error {
		if err := s.rateLimiter.Wait(ctx); err != nil {
			return err
		}
		repo, resp, err := s.client.Repositories.Get(ctx, owner, name)
		if err != nil {
			return wrapGitHubErr(resp, err)
		}
		defaultBranch = repo.GetDefaultBranch()

		ref, resp, err := s.client.Git.GetRef(ctx, owner, name, "heads/"+defaultBranch)
		if err != nil {
			return wrapGitHubErr(resp, err)
		}
		sha = ref.GetObject().GetSHA()
		return nil
	})
	if err != nil {
		return "", "", err
	}
	return defaultBranch, sha, nil
}

func (s *GitHubSource) ListFiles(ctx context.Context, repoURL, commitID string) ([]FileRef, error) {
	owner, name, err := ownerName(repoURL)
	if err != nil {
		return nil, err
	}

	var tree *github.Tree
	err = withRetry(ctx, defaultRetry, func(ctx context.Context) error {
		if err := s.rateLimiter.Wait(ctx); err != nil {
			return err
		}
		t, resp, err := s.client.Git.GetTree(ctx, owner, name, commitID, true)
		if err != nil {
			return wrapGitHubErr(resp, err)
		}
		tree = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	refs := make([]FileRef, 0, len(tree.Entries))
	for _, entry := range tree.Entries {
		if entry.GetType() != "blob" {
			continue // excludes trees, and commit entries (submodules)
		}
		if entry.GetMode() == "120000" {
			continue // symlinks
		}
		refs = append(refs, FileRef{
			Path:   entry.GetPath(),
			BlobID: entry.GetSHA(),
			Size:   int64(entry.GetSize()),
		})
	}

	sort.Slice(refs, func(i, j int) bool { return refs[i].Path < refs[j].Path })
	return refs, nil
}

func (s *GitHubSource) FetchBlob(ctx context.Context, repoURL, blobID string) ([]byte, error) {
	owner, name, err := ownerName(repoURL)
	if err != nil {
		return nil, err
	}

	var content []byte
	err = withRetry(ctx, defaultRetry, func(ctx context.Context) error {
		if err := s.rateLimiter.Wait(ctx); err != nil {
			return err
		}
		blob, resp, err := s.client.Git.GetBlobRaw(ctx, owner, name, blobID)
		if err != nil {
			return wrapGitHubErr(resp, err)
		}
		content = blob
		return nil
	})
	return content, err
}

// Clone materializes a scratch working tree by fetching every blob at
// commitID into destDir in parallel, bounded by the same worker pool used
// for tree fan-out in the teacher's FetchFiles.
func (s *GitHubSource) Clone(ctx context.Context, repoURL, commitID, destDir string) error {
	refs, err := s.ListFiles(ctx, repoURL, commitID)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return fmt.Errorf("create scratch dir: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, s.maxWorkers)

	for _, ref := range refs {
		ref := ref
		g.Go(func() error {
			sem <- struct{}{}
			defer func() { <-sem }()

			data, err := s.FetchBlob(gctx, repoURL, ref.BlobID)
			if err != nil {
				return fmt.Errorf("fetch blob for %s: %w", ref.Path, err)
			}

			dest := filepath.Join(destDir, filepath.FromSlash(ref.Path))
			if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
				return fmt.Errorf("create parent dir for %s: %w", ref.Path, err)
			}
			return os.WriteFile(dest, data, 0o644)
		})
	}

	return g.Wait()
}

func (s *GitHubSource) TestConnection(ctx context.Context) error {
	return withRetry(ctx, defaultRetry, func(ctx context.Context) error {
		if err := s.rateLimiter.Wait(ctx); err != nil {
			return err
		}
		_, resp, err := s.client.RateLimits(ctx)
		if err != nil {
			return wrapGitHubErr(resp, err)
		}
		return nil
	})
}

func wrapGitHubErr(resp *github.Response, err error) error {
	if resp != nil && resp.Response != nil {
		return newHTTPStatusError(resp.StatusCode, err)
	}
	return err
}
