// Package reposource implements the RepoSource Adapter (C2): pinning a
// repository to a commit, enumerating its files deterministically, fetching
// blob bytes, and materializing a scratch working tree for the Scanner
// Runner. Grounded on the teacher's internal/github/client.go, generalized
// behind a RepoSource interface and given the transient/permanent retry
// split spec §4.2 requires.
package reposource

import "context"

// FileRef is one entry yielded by ListFiles: a path, its opaque content
// identity, and its size in bytes.
type FileRef struct {
	Path   string
	BlobID string
	Size   int64
}

// RepoSource is the interface the rest of the system consumes; GitHub is
// the only concrete implementation in this repository, but the interface
// keeps C5/C6 decoupled from it.
type RepoSource interface {
	// Resolve pins repoURL to a default branch name and a commit identity.
	// All later fetches within a phase use the returned commit id.
	Resolve(ctx context.Context, repoURL string) (defaultBranch, commitID string, err error)

	// ListFiles enumerates files at commitID in deterministic (lexicographic
	// by path) order, excluding submodules and symlinks.
	ListFiles(ctx context.Context, repoURL, commitID string) ([]FileRef, error)

	// FetchBlob retrieves the raw bytes for blobID. Safe for concurrent use.
	FetchBlob(ctx context.Context, repoURL, blobID string) ([]byte, error)

	// Clone materializes a working tree at exactly commitID under destDir,
	// for use by the Scanner Runner (C6).
	Clone(ctx context.Context, repoURL, commitID, destDir string) error

	// TestConnection verifies the source is reachable and credentials (if
	// any) are valid, for the `test-connection` CLI verb.
	TestConnection(ctx context.Context) error
}
