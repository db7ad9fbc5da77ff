package repo

import (
	"path/filepath"

	"github.com/deevcs/dee/pkg/object"
)

// MetaDirName is the name of the repository metadata directory.
const MetaDirName = object.MetaDirName

// Repo represents an opened dee repository.
type Repo struct {
	RootDir string        // working directory root
	MetaDir string        // .dee/ directory
	Objects *object.Store // committed objects
	Staging *object.Store // blobs staged by add, promoted on commit

	commits *commitCache
}

func newRepo(root string) *Repo {
	meta := filepath.Join(root, MetaDirName)
	return &Repo{
		RootDir: root,
		MetaDir: meta,
		Objects: object.NewStore(filepath.Join(meta, "objects")),
		Staging: object.NewStore(filepath.Join(meta, "staging")),
		commits: newCommitCache(),
	}
}

func (r *Repo) headPath() string   { return filepath.Join(r.MetaDir, "HEAD") }
func (r *Repo) headsDir() string   { return filepath.Join(r.MetaDir, "refs", "heads") }
func (r *Repo) hooksDir() string   { return filepath.Join(r.MetaDir, "hooks") }
func (r *Repo) indexPath() string  { return filepath.Join(r.MetaDir, "index.json") }
func (r *Repo) statePath() string  { return filepath.Join(r.MetaDir, "state.json") }
func (r *Repo) tokenPath() string  { return filepath.Join(r.MetaDir, "token") }
func (r *Repo) configPath() string { return filepath.Join(r.MetaDir, "config.toml") }
func (r *Repo) lockPath() string   { return filepath.Join(r.MetaDir, "lock") }
