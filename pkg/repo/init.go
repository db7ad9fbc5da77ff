package repo

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/deevcs/dee/pkg/logging"
	"github.com/deevcs/dee/pkg/object"
)

// DefaultBranch is the branch created by Init.
const DefaultBranch = "main"

// tokenRand fills access tokens; tests replace it.
var tokenRand = rand.Read

// Init creates a new repository at path: the .dee/ directory structure, an
// empty index, a clean state, the default config, an empty root commit, a
// "main" branch pointing at it, HEAD as a symbolic ref to "main", and a
// fresh access token.
//
// If path already holds a repository, the opened repository is returned
// together with ErrAlreadyInitialized and nothing is modified. A failed Init
// removes the metadata directory it created.
func Init(path string) (*Repo, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("init: abs path: %w", err)
	}
	r := newRepo(abs)

	if info, err := os.Stat(r.MetaDir); err == nil && info.IsDir() {
		return r, ErrAlreadyInitialized
	}
	_, statErr := os.Lstat(r.MetaDir)
	created := errors.Is(statErr, fs.ErrNotExist)

	root, err := r.initLayout()
	if err != nil {
		if created {
			if rmErr := os.RemoveAll(r.MetaDir); rmErr != nil {
				logging.WarnErr("remove partial metadata directory", rmErr, "path", r.MetaDir)
			}
		}
		return nil, err
	}

	logging.Info("initialized repository", "root", abs, "root_commit", shortHash(root))
	return r, nil
}

// initLayout writes the metadata directory of a fresh repository and
// returns the root commit.
func (r *Repo) initLayout() (object.Hash, error) {
	dirs := []string{
		r.Objects.Root(),
		r.Staging.Root(),
		r.headsDir(),
		r.hooksDir(),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return "", storageErr("init: mkdir", d, err)
		}
	}

	if err := r.WriteIndex(NewIndex()); err != nil {
		return "", fmt.Errorf("init: %w", err)
	}
	if err := r.writeState(state{HasChanges: false}); err != nil {
		return "", fmt.Errorf("init: %w", err)
	}
	if err := r.WriteConfig(DefaultConfig()); err != nil {
		return "", fmt.Errorf("init: %w", err)
	}

	root, err := r.writeCommit(&object.Commit{
		Timestamp: time.Now().Unix(),
		Files:     map[string]object.IndexEntry{},
	})
	if err != nil {
		return "", fmt.Errorf("init: root commit: %w", err)
	}
	if err := r.UpdateRef(branchRef(DefaultBranch), root); err != nil {
		return "", fmt.Errorf("init: %w", err)
	}
	if err := r.setHeadSymbolic(DefaultBranch); err != nil {
		return "", fmt.Errorf("init: %w", err)
	}
	if err := r.writeToken(); err != nil {
		return "", fmt.Errorf("init: %w", err)
	}
	return root, nil
}

// Open searches upward from path for a .dee/ directory and opens the
// repository. Returns ErrNotInitialized if none is found.
func Open(path string) (*Repo, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("open: abs path: %w", err)
	}

	cur := abs
	for {
		info, err := os.Stat(filepath.Join(cur, MetaDirName))
		if err == nil && info.IsDir() {
			return newRepo(cur), nil
		}

		parent := filepath.Dir(cur)
		if parent == cur {
			return nil, fmt.Errorf("open %s: %w", abs, ErrNotInitialized)
		}
		cur = parent
	}
}

// IsInitialized reports whether path itself holds a repository.
func IsInitialized(path string) bool {
	info, err := os.Stat(filepath.Join(path, MetaDirName))
	return err == nil && info.IsDir()
}

// Token returns the repository's access token.
func (r *Repo) Token() (string, error) {
	data, err := os.ReadFile(r.tokenPath())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("token: %w", ErrNotInitialized)
		}
		return "", storageErr("read token", r.tokenPath(), err)
	}
	return strings.TrimSpace(string(data)), nil
}

func (r *Repo) writeToken() error {
	buf := make([]byte, 32)
	if _, err := tokenRand(buf); err != nil {
		return fmt.Errorf("generate token: %w", err)
	}
	return writeFileAtomic(r.tokenPath(), []byte(hex.EncodeToString(buf)+"\n"), 0o600)
}

// state is the persisted dirty flag.
type state struct {
	HasChanges bool `json:"has_changes"`
}

func (r *Repo) readState() (state, error) {
	var st state
	data, err := os.ReadFile(r.statePath())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return st, nil
		}
		return st, storageErr("read state", r.statePath(), err)
	}
	if err := json.Unmarshal(data, &st); err != nil {
		return st, storageErr("read state", r.statePath(), err)
	}
	return st, nil
}

func (r *Repo) writeState(st state) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("write state: marshal: %w", err)
	}
	return writeFileAtomic(r.statePath(), data, 0o644)
}
