package remote

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/deevcs/dee/pkg/object"
)

// RemoteRepo is a repository entity known to the registry.
type RemoteRepo struct {
	ID   string
	Name string
}

var repoNamePattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// ValidateRepoName accepts a name only if it is a single path segment of
// [A-Za-z0-9._-] other than "." and "..". Clone uses the name as a
// directory name.
func ValidateRepoName(name string) error {
	if name == "." || name == ".." || !repoNamePattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidRepoName, name)
	}
	return nil
}

// BundleRecord is the registry's record of one uploaded bundle.
type BundleRecord struct {
	ID          string
	ContentHash string      // SHA-256 hex of the bundle file
	Branch      string      // branch the bundle was pushed from
	RepoID      string      // owning RemoteRepo
	Commit      object.Hash // tip commit carried by the bundle
	CreatedAt   time.Time
}

// RemotePath returns the channel path of the bundle: <repoID>/<hash>.bundle.
func (b BundleRecord) RemotePath() string {
	return bundleRemotePath(b.RepoID, b.ContentHash)
}

func bundleRemotePath(repoID, contentHash string) string {
	return repoID + "/" + contentHash + ".bundle"
}

// Registry is the remote metadata store.
//
// Repository returns ErrRemoteRepoNotFound for an unknown id.
// LookupByContentHash returns ErrBundleNotFound when no bundle matches.
// LatestBundle returns the most recent bundle for (repoID, branch) or
// ErrBundleNotFound.
type Registry interface {
	Repository(ctx context.Context, id string) (*RemoteRepo, error)
	RegisterBundle(ctx context.Context, rec BundleRecord) error
	LookupByContentHash(ctx context.Context, contentHash string) (*RemoteRepo, *BundleRecord, error)
	LatestBundle(ctx context.Context, repoID, branch string) (*BundleRecord, error)
}

// Channel moves bundle files between the local filesystem and the remote
// file store. Remote paths are slash-separated and relative to the
// channel's root.
type Channel interface {
	Authenticate(ctx context.Context, token string) error
	EnsureDir(ctx context.Context, remotePath string) error
	Upload(ctx context.Context, localPath, remotePath string) error
	Download(ctx context.Context, remotePath, localPath string) error
	Close() error
}
