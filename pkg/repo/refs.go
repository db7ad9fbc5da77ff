package repo

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/deevcs/dee/pkg/object"
)

const (
	refLockRetryDelay = 5 * time.Millisecond
	refLockWaitLimit  = 2 * time.Second

	headsPrefix  = "refs/heads/"
	symrefPrefix = "ref: "
)

func branchRef(name string) string {
	return headsPrefix + name
}

// Head reads .dee/HEAD. If it is symbolic, the ref path (e.g.
// "refs/heads/main") is returned. Otherwise the raw content is returned as a
// detached commit id.
func (r *Repo) Head() (string, error) {
	data, err := os.ReadFile(r.headPath())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("head: %w", ErrNotInitialized)
		}
		return "", storageErr("read HEAD", r.headPath(), err)
	}
	content := strings.TrimSpace(string(data))
	if content == "" {
		return "", storageErr("read HEAD", r.headPath(), errors.New("empty HEAD"))
	}

	if strings.HasPrefix(content, symrefPrefix) {
		return strings.TrimSpace(strings.TrimPrefix(content, symrefPrefix)), nil
	}
	return content, nil
}

// HeadCommit resolves HEAD to a commit id.
func (r *Repo) HeadCommit() (object.Hash, error) {
	return r.ResolveRef("HEAD")
}

// CurrentBranch returns the branch HEAD points at, or "" when detached.
func (r *Repo) CurrentBranch() (string, error) {
	head, err := r.Head()
	if err != nil {
		return "", fmt.Errorf("current branch: %w", err)
	}
	if strings.HasPrefix(head, headsPrefix) {
		return strings.TrimPrefix(head, headsPrefix), nil
	}
	return "", nil
}

// ResolveRef resolves a ref name to a commit id.
//
// Resolution order:
//  1. "HEAD": read HEAD, following a symbolic ref.
//  2. "refs/...": read .dee/<name>.
//  3. a branch name: read refs/heads/<name>.
//  4. a full commit id present in the object store.
//
// A missing branch wraps ErrBranchNotFound; an empty ref file wraps
// ErrBranchEmpty.
func (r *Repo) ResolveRef(name string) (object.Hash, error) {
	name = strings.TrimSpace(name)
	if name == "HEAD" {
		head, err := r.Head()
		if err != nil {
			return "", err
		}
		if strings.HasPrefix(head, "refs/") {
			return r.ResolveRef(head)
		}
		return object.Hash(head), nil
	}

	refName := name
	if !strings.HasPrefix(name, "refs/") {
		if object.ValidHash(object.Hash(name)) && r.Objects.Has(object.Hash(name)) {
			if _, err := os.Stat(filepath.Join(r.MetaDir, branchRef(name))); err != nil {
				return object.Hash(name), nil
			}
		}
		refName = branchRef(name)
	}

	h, exists, err := readRefHash(filepath.Join(r.MetaDir, filepath.FromSlash(refName)))
	if err != nil {
		return "", storageErr("resolve ref", refName, err)
	}
	if !exists {
		return "", fmt.Errorf("resolve ref %q: %w", name, ErrBranchNotFound)
	}
	if h == "" {
		return "", fmt.Errorf("resolve ref %q: %w", name, ErrBranchEmpty)
	}
	return h, nil
}

// UpdateRef writes a hash to the named ref file under .dee/ using
// lockfile + rename atomic semantics. If expectedOld is provided, the update
// only succeeds when the current ref hash matches it ("" meaning the ref
// must not exist yet or be empty).
func (r *Repo) UpdateRef(name string, h object.Hash, expectedOld ...object.Hash) error {
	if len(expectedOld) > 1 {
		return fmt.Errorf("update ref %q: expected at most one old hash", name)
	}

	refPath := filepath.Join(r.MetaDir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(refPath), 0o755); err != nil {
		return storageErr("update ref: mkdir", refPath, err)
	}

	lockPath := refPath + ".lock"
	lockFile, err := acquireRefLock(lockPath)
	if err != nil {
		return storageErr("update ref: lock", lockPath, err)
	}
	cleanupLock := true
	defer func() {
		if lockFile != nil {
			_ = lockFile.Close()
		}
		if cleanupLock {
			_ = os.Remove(lockPath)
		}
	}()

	if len(expectedOld) == 1 {
		oldHash, _, err := readRefHash(refPath)
		if err != nil {
			return storageErr("update ref: read old hash", refPath, err)
		}
		if oldHash != expectedOld[0] {
			return fmt.Errorf("update ref %q: %w (expected %s, found %s)",
				name, ErrRefCASMismatch, shortHash(expectedOld[0]), shortHash(oldHash))
		}
	}

	if _, err := lockFile.WriteString(string(h) + "\n"); err != nil {
		return storageErr("update ref: write", lockPath, err)
	}
	if err := lockFile.Sync(); err != nil {
		return storageErr("update ref: sync", lockPath, err)
	}
	if err := lockFile.Close(); err != nil {
		lockFile = nil
		return storageErr("update ref: close", lockPath, err)
	}
	lockFile = nil

	if err := os.Rename(lockPath, refPath); err != nil {
		return storageErr("update ref: rename", refPath, err)
	}
	cleanupLock = false
	return nil
}

func (r *Repo) setHeadSymbolic(branch string) error {
	return writeFileAtomic(r.headPath(), []byte(symrefPrefix+branchRef(branch)+"\n"), 0o644)
}

func (r *Repo) setHeadDetached(h object.Hash) error {
	return writeFileAtomic(r.headPath(), []byte(string(h)+"\n"), 0o644)
}

// advanceHead moves whatever HEAD designates (its branch, or HEAD itself
// when detached) from old to h.
func (r *Repo) advanceHead(old, h object.Hash) error {
	head, err := r.Head()
	if err != nil {
		return err
	}
	if strings.HasPrefix(head, "refs/") {
		return r.UpdateRef(head, h, old)
	}
	if object.Hash(head) != old {
		return fmt.Errorf("update detached HEAD: %w (expected %s, found %s)",
			ErrRefCASMismatch, shortHash(old), shortHash(object.Hash(head)))
	}
	return r.setHeadDetached(h)
}

func acquireRefLock(lockPath string) (*os.File, error) {
	deadline := time.Now().Add(refLockWaitLimit)
	for {
		f, err := os.OpenFile(lockPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return f, nil
		}
		if os.IsExist(err) {
			if time.Now().After(deadline) {
				return nil, fmt.Errorf("timeout waiting for lock %q", lockPath)
			}
			time.Sleep(refLockRetryDelay)
			continue
		}
		return nil, err
	}
}

// readRefHash returns the hash stored in a ref file and whether the file
// exists at all.
func readRefHash(refPath string) (object.Hash, bool, error) {
	data, err := os.ReadFile(refPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", false, nil
		}
		return "", false, err
	}
	return object.Hash(strings.TrimSpace(string(data))), true, nil
}
