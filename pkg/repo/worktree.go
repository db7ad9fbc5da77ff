package repo

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/deevcs/dee/pkg/logging"
	"github.com/deevcs/dee/pkg/object"
)

// Worktree materializes commits into the working directory.
type Worktree struct {
	repo *Repo
}

// Worktree returns the working-directory manager for r.
func (r *Repo) Worktree() *Worktree {
	return &Worktree{repo: r}
}

// Materialize replaces the tracked files of the working directory with the
// files of c. Every path in tracked is removed first and emptied
// directories are pruned; then each file of c is written from the object
// store and its recorded mode applied. Untracked files are left alone.
//
// A file of c whose path fails object.ValidatePath aborts the call before
// anything is touched. Such tracked paths are never removed.
func (w *Worktree) Materialize(c *object.Commit, tracked map[string]bool) error {
	root := w.repo.RootDir

	for _, p := range c.Paths() {
		if err := object.ValidatePath(p); err != nil {
			return fmt.Errorf("materialize: %w", err)
		}
	}

	removed := make([]string, 0, len(tracked))
	for p := range tracked {
		removed = append(removed, p)
	}
	sort.Strings(removed)
	for _, p := range removed {
		if err := object.ValidatePath(p); err != nil {
			logging.Warn("not removing invalid tracked path", "path", p)
			continue
		}
		abs := filepath.Join(root, filepath.FromSlash(p))
		if err := os.Remove(abs); err != nil && !os.IsNotExist(err) {
			return storageErr("materialize: remove", abs, err)
		}
		w.removeEmptyParents(filepath.Dir(abs))
	}

	for _, p := range c.Paths() {
		e := c.Files[p]
		data, err := w.repo.Objects.GetBlob(e.Hash)
		if err != nil {
			return fmt.Errorf("materialize %q: %w", p, err)
		}

		abs := filepath.Join(root, filepath.FromSlash(p))
		if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
			return storageErr("materialize: mkdir", filepath.Dir(abs), err)
		}
		if err := writeFileAtomic(abs, data, filePermFromMode(e.Mode)); err != nil {
			return err
		}
	}
	return nil
}

// removeEmptyParents removes empty directories up to (but not including)
// the repository root.
func (w *Worktree) removeEmptyParents(dir string) {
	root := w.repo.RootDir
	for {
		if dir == root || !strings.HasPrefix(dir, root+string(filepath.Separator)) {
			return
		}
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			return
		}
		if err := os.Remove(dir); err != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}

// trackedFiles returns the union of index paths and HEAD commit paths.
func (r *Repo) trackedFiles() (map[string]bool, error) {
	files := make(map[string]bool)

	idx, err := r.ReadIndex()
	if err != nil {
		return nil, err
	}
	for p := range idx.Entries {
		files[p] = true
	}

	head, err := r.HeadCommit()
	if err != nil {
		return files, nil
	}
	c, err := r.readCommit(head)
	if err != nil {
		return nil, err
	}
	for p := range c.Files {
		files[p] = true
	}
	return files, nil
}

// ApplyBranch points branch at h, makes it the checked-out branch and
// materializes h into the working directory with a clean index. No CAS is
// applied to the ref. Callers must hold the repository lock (see WithLock).
func (r *Repo) ApplyBranch(branch string, h object.Hash) error {
	if err := ValidateBranchName(branch); err != nil {
		return err
	}
	c, err := r.readCommit(h)
	if err != nil {
		return fmt.Errorf("apply branch %q: %w", branch, err)
	}
	tracked, err := r.trackedFiles()
	if err != nil {
		return fmt.Errorf("apply branch %q: %w", branch, err)
	}
	if err := r.Worktree().Materialize(c, tracked); err != nil {
		return fmt.Errorf("apply branch %q: %w", branch, err)
	}
	if err := r.UpdateRef(branchRef(branch), h); err != nil {
		return fmt.Errorf("apply branch %q: %w", branch, err)
	}
	if err := r.setHeadSymbolic(branch); err != nil {
		return fmt.Errorf("apply branch %q: %w", branch, err)
	}
	if err := r.resetIndex(c); err != nil {
		return fmt.Errorf("apply branch %q: %w", branch, err)
	}
	return nil
}
