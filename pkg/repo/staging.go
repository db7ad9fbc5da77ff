package repo

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/deevcs/dee/pkg/logging"
	"github.com/deevcs/dee/pkg/object"
)

// Index is the staging area: the set of tracked files keyed by
// repository-relative slash path.
type Index struct {
	Entries map[string]object.IndexEntry `json:"entries"`
}

// NewIndex returns an empty index.
func NewIndex() *Index {
	return &Index{Entries: make(map[string]object.IndexEntry)}
}

// Paths returns the tracked paths in sorted order.
func (idx *Index) Paths() []string {
	paths := make([]string, 0, len(idx.Entries))
	for p := range idx.Entries {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// AddReport summarizes an Add call.
type AddReport struct {
	Staged    []string // new or changed paths
	Unchanged []string // paths whose content and mode matched the index
}

// Changed reports whether Add staged anything.
func (a *AddReport) Changed() bool {
	return len(a.Staged) > 0
}

// ReadIndex loads .dee/index.json. A missing file yields an empty index.
func (r *Repo) ReadIndex() (*Index, error) {
	data, err := os.ReadFile(r.indexPath())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return NewIndex(), nil
		}
		return nil, storageErr("read index", r.indexPath(), err)
	}

	var idx Index
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, storageErr("read index", r.indexPath(), err)
	}
	if idx.Entries == nil {
		idx.Entries = make(map[string]object.IndexEntry)
	}
	return &idx, nil
}

// WriteIndex atomically rewrites .dee/index.json.
func (r *Repo) WriteIndex(idx *Index) error {
	if idx == nil {
		idx = NewIndex()
	}
	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return fmt.Errorf("write index: marshal: %w", err)
	}
	return writeFileAtomic(r.indexPath(), data, 0o644)
}

// HasChanges returns the persisted dirty flag: true when something was
// staged since the last commit or checkout.
func (r *Repo) HasChanges() (bool, error) {
	st, err := r.readState()
	if err != nil {
		return false, err
	}
	return st.HasChanges, nil
}

// Add stages files. An empty paths slice stages the whole working tree.
// Directories are walked recursively; any path with a segment in the
// configured ignore set is skipped.
func (r *Repo) Add(paths []string) (*AddReport, error) {
	report := &AddReport{}
	err := r.WithLock("add", func() error {
		idx, err := r.ReadIndex()
		if err != nil {
			return fmt.Errorf("add: %w", err)
		}
		ignore, err := r.ignoreSet()
		if err != nil {
			return fmt.Errorf("add: %w", err)
		}

		targets := paths
		if len(targets) == 0 {
			targets = []string{r.RootDir}
		}

		for _, p := range targets {
			rel, err := r.repoRelPath(p)
			if err != nil {
				return fmt.Errorf("add: %w", err)
			}
			if err := r.addPath(idx, ignore, rel, report); err != nil {
				return fmt.Errorf("add: %w", err)
			}
		}

		if err := r.WriteIndex(idx); err != nil {
			return fmt.Errorf("add: %w", err)
		}
		if report.Changed() {
			if err := r.writeState(state{HasChanges: true}); err != nil {
				return fmt.Errorf("add: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(report.Staged)
	sort.Strings(report.Unchanged)
	logging.Debug("add finished", "staged", len(report.Staged), "unchanged", len(report.Unchanged))
	return report, nil
}

// addPath stages rel, which is "." for the root, a file, or a directory.
func (r *Repo) addPath(idx *Index, ignore *IgnoreSet, rel string, report *AddReport) error {
	if rel != "." && ignore.IsIgnored(rel) {
		logging.Debug("skipping ignored path", "path", rel)
		return nil
	}

	abs := filepath.Join(r.RootDir, filepath.FromSlash(rel))
	info, err := os.Lstat(abs)
	if err != nil {
		return storageErr("stat", abs, err)
	}
	if !info.IsDir() {
		if !info.Mode().IsRegular() {
			return nil
		}
		return r.stageFile(idx, rel, abs, info, report)
	}

	return filepath.WalkDir(abs, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return storageErr("walk", p, walkErr)
		}
		relPath, err := filepath.Rel(r.RootDir, p)
		if err != nil {
			return err
		}
		relPath = filepath.ToSlash(relPath)
		if relPath != "." && ignore.IsIgnored(relPath) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		if err := object.ValidatePath(relPath); err != nil {
			logging.Warn("skipping unstageable path", "path", relPath, "error", err)
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return storageErr("stat", p, err)
		}
		return r.stageFile(idx, relPath, p, info, report)
	})
}

func (r *Repo) stageFile(idx *Index, rel, abs string, info os.FileInfo, report *AddReport) error {
	if err := object.ValidatePath(rel); err != nil {
		return fmt.Errorf("stage: %w", err)
	}
	content, err := os.ReadFile(abs)
	if err != nil {
		return storageErr("read", abs, err)
	}

	h := object.HashBlob(content)
	mode := modeFromFileInfo(info)
	if prior, ok := idx.Entries[rel]; ok && prior.Hash == h && prior.Mode == mode {
		report.Unchanged = append(report.Unchanged, rel)
		return nil
	}

	if _, err := r.Staging.PutBlob(content); err != nil {
		return fmt.Errorf("stage %q: %w", rel, err)
	}

	idx.Entries[rel] = object.IndexEntry{
		Path:         rel,
		Hash:         h,
		Size:         int64(len(content)),
		MediaType:    detectMediaType(rel, content),
		Mode:         mode,
		OriginalName: path.Base(rel),
		Timestamp:    time.Now().UnixNano(),
		Checksum:     object.FastChecksum(content),
	}
	report.Staged = append(report.Staged, rel)
	return nil
}

// resetIndex replaces the index with the files of c and clears the dirty
// flag.
func (r *Repo) resetIndex(c *object.Commit) error {
	idx := NewIndex()
	for p, e := range c.Files {
		idx.Entries[p] = e
	}
	if err := r.WriteIndex(idx); err != nil {
		return err
	}
	return r.writeState(state{HasChanges: false})
}

func detectMediaType(name string, content []byte) string {
	if t := mime.TypeByExtension(path.Ext(name)); t != "" {
		return t
	}
	return http.DetectContentType(content)
}

// repoRelPath converts a path (absolute, or relative to CWD) into a slash
// path relative to the repository root. A relative path that does not
// resolve inside the repository via CWD is taken as repository-relative.
// Paths escaping the root are rejected.
func (r *Repo) repoRelPath(p string) (string, error) {
	var rel string
	if filepath.IsAbs(p) {
		var err error
		rel, err = filepath.Rel(r.RootDir, p)
		if err != nil {
			return "", fmt.Errorf("cannot make %q relative to %q: %w", p, r.RootDir, err)
		}
	} else {
		rel = filepath.Clean(p)
		if cwd, err := os.Getwd(); err == nil {
			if cand, err := filepath.Rel(r.RootDir, filepath.Join(cwd, p)); err == nil && !escapesRoot(cand) {
				rel = cand
			}
		}
	}

	if escapesRoot(rel) {
		return "", fmt.Errorf("path %q is outside repository %q", p, r.RootDir)
	}
	return filepath.ToSlash(rel), nil
}

func escapesRoot(rel string) bool {
	rel = filepath.ToSlash(rel)
	return rel == ".." || strings.HasPrefix(rel, "../") || filepath.IsAbs(rel)
}
