package repo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"

	"github.com/deevcs/dee/pkg/logging"
	"github.com/deevcs/dee/pkg/object"
)

var branchNamePattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// ValidateBranchName rejects names outside [A-Za-z0-9._-] as well as "."
// and "..".
func ValidateBranchName(name string) error {
	if name == "." || name == ".." || !branchNamePattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidBranchName, name)
	}
	return nil
}

// CreateBranch creates a new branch pointing at startPoint, which may be a
// branch name or a commit id. An empty startPoint means HEAD.
func (r *Repo) CreateBranch(name, startPoint string) (object.Hash, error) {
	if err := ValidateBranchName(name); err != nil {
		return "", fmt.Errorf("create branch: %w", err)
	}

	var target object.Hash
	err := r.WithLock("create branch", func() error {
		if startPoint == "" {
			startPoint = "HEAD"
		}
		h, err := r.ResolveRef(startPoint)
		if err != nil {
			return fmt.Errorf("create branch %q: start point: %w", name, err)
		}
		if _, err := r.readCommit(h); err != nil {
			return fmt.Errorf("create branch %q: start point %s: %w", name, shortHash(h), err)
		}

		if err := r.UpdateRef(branchRef(name), h, ""); err != nil {
			if errors.Is(err, ErrRefCASMismatch) {
				return fmt.Errorf("create branch %q: %w", name, ErrBranchExists)
			}
			return fmt.Errorf("create branch %q: %w", name, err)
		}
		target = h
		return nil
	})
	if err != nil {
		return "", err
	}

	logging.Debug("created branch", "branch", name, "commit", shortHash(target))
	return target, nil
}

// DeleteBranch removes refs/heads/<name>. The current branch cannot be
// deleted.
func (r *Repo) DeleteBranch(name string) error {
	if err := ValidateBranchName(name); err != nil {
		return fmt.Errorf("delete branch: %w", err)
	}
	return r.WithLock("delete branch", func() error {
		current, err := r.CurrentBranch()
		if err != nil {
			return fmt.Errorf("delete branch: %w", err)
		}
		if current == name {
			return fmt.Errorf("delete branch: cannot delete current branch %q", name)
		}

		refPath := filepath.Join(r.headsDir(), name)
		if err := os.Remove(refPath); err != nil {
			if os.IsNotExist(err) {
				return fmt.Errorf("delete branch %q: %w", name, ErrBranchNotFound)
			}
			return storageErr("delete branch", refPath, err)
		}
		return nil
	})
}

// ListBranches returns the branch names sorted alphabetically.
func (r *Repo) ListBranches() ([]string, error) {
	entries, err := os.ReadDir(r.headsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, storageErr("list branches", r.headsDir(), err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) == ".lock" {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}
