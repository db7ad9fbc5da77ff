package remote

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/deevcs/dee/pkg/logging"
	"github.com/deevcs/dee/pkg/object"
	"github.com/deevcs/dee/pkg/repo"
)

// DefaultTimeout bounds a whole push, pull or clone when Options.Timeout is
// unset.
const DefaultTimeout = 60 * time.Second

// Options tune a Client.
type Options struct {
	Timeout      time.Duration // bound on every remote operation
	Retries      int           // extra attempts for failed transfers
	RetryBackoff time.Duration // first retry delay, doubled per attempt
	TempDir      string        // where bundles are staged; "" means os.TempDir
}

// Client synchronizes a local repository with a remote registry and file
// channel.
type Client struct {
	Repo     *repo.Repo
	Registry Registry
	Channel  Channel
	Options  Options
}

// NewClient returns a Client. r may be nil for Clone.
func NewClient(r *repo.Repo, reg Registry, ch Channel, opts Options) *Client {
	return &Client{Repo: r, Registry: reg, Channel: ch, Options: opts}
}

// PushResult describes a completed push.
type PushResult struct {
	Remote RemoteRepo
	Bundle BundleRecord
}

// PullResult describes a completed pull.
type PullResult struct {
	Remote   RemoteRepo
	Branch   string
	Commit   object.Hash
	UpToDate bool // local branch already at the bundle's tip
}

// Push uploads HEAD's history as a bundle and registers it.
//
// The bundle is uploaded to <repoID>/<contentHash>.bundle before the
// BundleRecord is registered, so a registered record always names a
// complete upload. The remote link is persisted on success.
func (c *Client) Push(ctx context.Context, remoteID string) (*PushResult, error) {
	if c.Repo == nil {
		return nil, fmt.Errorf("push: no local repository")
	}
	id, err := c.resolveRemoteID(remoteID)
	if err != nil {
		return nil, fmt.Errorf("push: %w", err)
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	var res *PushResult
	err = c.Repo.WithLock("push", func() error {
		rr, err := c.Registry.Repository(ctx, id)
		if err != nil {
			return fmt.Errorf("push: %w", registryErr("repository", err))
		}

		head, err := c.Repo.HeadCommit()
		if err != nil {
			return fmt.Errorf("push: %w", err)
		}
		commit, err := c.Repo.Objects.GetCommit(head)
		if err != nil {
			return fmt.Errorf("push: %w", err)
		}
		if len(commit.Parents) == 0 && len(commit.Files) == 0 {
			return fmt.Errorf("push: %w", ErrNoChanges)
		}

		branch, err := c.Repo.CurrentBranch()
		if err != nil {
			return fmt.Errorf("push: %w", err)
		}
		if branch == "" {
			branch = repo.DefaultBranch
		}

		createdAt := time.Now().UTC()
		bundlePath, contentHash, err := c.writeTempBundle(head, branch, createdAt)
		if err != nil {
			return fmt.Errorf("push: %w", err)
		}
		defer removeTemp(bundlePath)

		if err := c.authenticate(ctx, c.Repo); err != nil {
			return fmt.Errorf("push: %w", err)
		}
		if err := c.Channel.EnsureDir(ctx, rr.ID); err != nil {
			return fmt.Errorf("push: %w", transferErr("mkdir", rr.ID, err))
		}
		remotePath := bundleRemotePath(rr.ID, contentHash)
		err = retryTransfer(ctx, "upload", c.Options.Retries+1, c.Options.RetryBackoff, func() error {
			return transferErr("upload", remotePath, c.Channel.Upload(ctx, bundlePath, remotePath))
		})
		if err != nil {
			return fmt.Errorf("push: %w", err)
		}

		rec := BundleRecord{
			ID:          uuid.NewString(),
			ContentHash: contentHash,
			Branch:      branch,
			RepoID:      rr.ID,
			Commit:      head,
			CreatedAt:   createdAt,
		}
		if err := c.Registry.RegisterBundle(ctx, rec); err != nil {
			return fmt.Errorf("push: %w", registryErr("register bundle", err))
		}
		if err := c.Repo.SetRemoteLink(rr.ID); err != nil {
			return fmt.Errorf("push: %w", err)
		}

		res = &PushResult{Remote: *rr, Bundle: rec}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logging.Info("pushed bundle", "remote", res.Remote.ID, "branch", res.Bundle.Branch,
		"commit", string(res.Bundle.Commit), "bundle", res.Bundle.ContentHash)
	return res, nil
}

// Pull fetches the latest bundle of the current branch (main when HEAD is
// detached), moves the branch to its tip and materializes it. The download
// is skipped when the local branch already points at the bundle's tip.
func (c *Client) Pull(ctx context.Context, remoteID string) (*PullResult, error) {
	if c.Repo == nil {
		return nil, fmt.Errorf("pull: no local repository")
	}
	id, err := c.resolveRemoteID(remoteID)
	if err != nil {
		return nil, fmt.Errorf("pull: %w", err)
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	var res *PullResult
	err = c.Repo.WithLock("pull", func() error {
		rr, err := c.Registry.Repository(ctx, id)
		if err != nil {
			return fmt.Errorf("pull: %w", registryErr("repository", err))
		}
		if err := c.Repo.SetRemoteLink(rr.ID); err != nil {
			return fmt.Errorf("pull: %w", err)
		}

		branch, err := c.Repo.CurrentBranch()
		if err != nil {
			return fmt.Errorf("pull: %w", err)
		}
		if branch == "" {
			branch = repo.DefaultBranch
		}

		rec, err := c.Registry.LatestBundle(ctx, rr.ID, branch)
		if err != nil {
			return fmt.Errorf("pull %s: %w", branch, registryErr("latest bundle", err))
		}
		res = &PullResult{Remote: *rr, Branch: branch, Commit: rec.Commit}

		if rec.Commit != "" {
			local, err := c.Repo.ResolveRef(branch)
			if err == nil && local == rec.Commit {
				res.UpToDate = true
				return nil
			}
		}

		if err := c.authenticate(ctx, c.Repo); err != nil {
			return fmt.Errorf("pull: %w", err)
		}
		manifest, err := c.fetchBundle(ctx, c.Repo, rec)
		if err != nil {
			return fmt.Errorf("pull: %w", err)
		}
		res.Commit = manifest.Commit
		if err := c.Repo.ApplyBranch(branch, manifest.Commit); err != nil {
			return fmt.Errorf("pull: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if res.UpToDate {
		logging.Info("already up to date", "remote", res.Remote.ID, "branch", res.Branch)
	} else {
		logging.Info("pulled bundle", "remote", res.Remote.ID, "branch", res.Branch, "commit", string(res.Commit))
	}
	return res, nil
}

// Clone creates targetDir/<remote repo name> from the bundle whose content
// hash is contentHash. The directory must not exist or must be empty; it is
// removed again if any step fails.
func (c *Client) Clone(ctx context.Context, contentHash, targetDir string) (r *repo.Repo, err error) {
	contentHash = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(contentHash), ".bundle"))
	if contentHash == "" {
		return nil, fmt.Errorf("clone: bundle reference is required")
	}
	if targetDir == "" {
		targetDir = "."
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	rr, rec, err := c.Registry.LookupByContentHash(ctx, contentHash)
	if err != nil {
		return nil, fmt.Errorf("clone %s: %w", contentHash, registryErr("lookup bundle", err))
	}

	if err := ValidateRepoName(rr.Name); err != nil {
		return nil, fmt.Errorf("clone: %w", err)
	}
	dest := filepath.Join(targetDir, rr.Name)
	if err := ensureEmptyDir(dest); err != nil {
		return nil, fmt.Errorf("clone: %w", err)
	}
	defer func() {
		if err != nil {
			if rmErr := os.RemoveAll(dest); rmErr != nil {
				logging.WarnErr("remove failed clone", rmErr, "path", dest)
			}
		}
	}()

	r, err = repo.Init(dest)
	if err != nil {
		return nil, fmt.Errorf("clone: %w", err)
	}
	err = r.WithLock("clone", func() error {
		if err := c.authenticate(ctx, r); err != nil {
			return err
		}
		manifest, err := c.fetchBundle(ctx, r, rec)
		if err != nil {
			return err
		}
		branch := rec.Branch
		if branch == "" {
			branch = manifest.Branch
		}
		if branch == "" {
			branch = repo.DefaultBranch
		}
		if err := r.ApplyBranch(branch, manifest.Commit); err != nil {
			return err
		}
		return r.SetRemoteLink(rr.ID)
	})
	if err != nil {
		return nil, fmt.Errorf("clone: %w", err)
	}

	logging.Info("cloned repository", "remote", rr.ID, "path", dest, "branch", rec.Branch)
	return r, nil
}

// fetchBundle downloads rec, verifies its content hash and extracts its
// objects into r's object store.
func (c *Client) fetchBundle(ctx context.Context, r *repo.Repo, rec *BundleRecord) (*Manifest, error) {
	tmp, err := os.CreateTemp(c.Options.TempDir, "dee-fetch-*.bundle")
	if err != nil {
		return nil, fmt.Errorf("create temp bundle: %w", err)
	}
	localPath := tmp.Name()
	tmp.Close()
	defer removeTemp(localPath)

	remotePath := rec.RemotePath()
	err = retryTransfer(ctx, "download", c.Options.Retries+1, c.Options.RetryBackoff, func() error {
		return transferErr("download", remotePath, c.Channel.Download(ctx, remotePath, localPath))
	})
	if err != nil {
		return nil, err
	}

	got, err := HashFile(localPath)
	if err != nil {
		return nil, fmt.Errorf("hash bundle: %w", err)
	}
	if got != rec.ContentHash {
		return nil, transferErr("download", remotePath,
			fmt.Errorf("%w: content hash mismatch: expected %s, got %s", ErrInvalidBundle, rec.ContentHash, got))
	}

	f, err := os.Open(localPath)
	if err != nil {
		return nil, fmt.Errorf("open bundle: %w", err)
	}
	defer f.Close()
	manifest, err := ReadBundle(f, r.Objects)
	if err != nil {
		return nil, err
	}
	if rec.Commit != "" && manifest.Commit != rec.Commit {
		return nil, fmt.Errorf("%w: manifest commit %s does not match record %s", ErrInvalidBundle, manifest.Commit, rec.Commit)
	}
	return manifest, nil
}

// writeTempBundle writes the bundle for tip into a temp file and returns its
// path and SHA-256 content hash.
func (c *Client) writeTempBundle(tip object.Hash, branch string, createdAt time.Time) (string, string, error) {
	tmp, err := os.CreateTemp(c.Options.TempDir, "dee-push-*.bundle")
	if err != nil {
		return "", "", fmt.Errorf("create temp bundle: %w", err)
	}
	p := tmp.Name()

	sum := sha256.New()
	werr := WriteBundle(io.MultiWriter(tmp, sum), c.Repo.Objects, tip, branch, createdAt)
	cerr := tmp.Close()
	if err := errors.Join(werr, cerr); err != nil {
		removeTemp(p)
		return "", "", err
	}
	return p, hex.EncodeToString(sum.Sum(nil)), nil
}

func (c *Client) authenticate(ctx context.Context, r *repo.Repo) error {
	token, err := r.Token()
	if err != nil {
		return err
	}
	return transferErr("authenticate", "", c.Channel.Authenticate(ctx, token))
}

// resolveRemoteID falls back to the persisted remote link and validates the
// id as a UUID.
func (c *Client) resolveRemoteID(remoteID string) (string, error) {
	id := strings.TrimSpace(remoteID)
	if id == "" {
		linked, err := c.Repo.RemoteLink()
		if err != nil {
			return "", err
		}
		id = linked
	}
	if id == "" {
		return "", ErrRemoteIDRequired
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return "", fmt.Errorf("%w %q: %v", ErrInvalidRemoteID, id, err)
	}
	return parsed.String(), nil
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := c.Options.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return context.WithTimeout(ctx, timeout)
}

func ensureEmptyDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if len(entries) > 0 {
		return fmt.Errorf("%w: %s", ErrCloneTargetExists, dir)
	}
	return nil
}

func removeTemp(p string) {
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		logging.WarnErr("remove temp bundle", err, "path", p)
	}
}
