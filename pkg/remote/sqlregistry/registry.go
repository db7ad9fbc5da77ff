// Package sqlregistry implements remote.Registry on a SQLite database
// shared by everyone pushing to the same remote, typically on a network
// share next to the bundle directory.
package sqlregistry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/deevcs/dee/pkg/logging"
	"github.com/deevcs/dee/pkg/object"
	"github.com/deevcs/dee/pkg/remote"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

var pragmas = []string{
	"busy_timeout(5000)",
	"foreign_keys(1)",
	"journal_mode(wal)",
}

// Registry is a SQLite-backed remote.Registry.
type Registry struct {
	db   *sql.DB
	path string
}

var _ remote.Registry = (*Registry)(nil)

// Open opens (creating if needed) the registry database at path and brings
// its schema up to date.
func Open(path string) (*Registry, error) {
	if path == "" {
		return nil, errors.New("sqlregistry: database path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("sqlregistry: create %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite3", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("sqlregistry: open %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlregistry: ping %s: %w", path, err)
	}
	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlregistry: %w", err)
	}

	logging.Debug("registry opened", "path", path)
	return &Registry{db: db, path: path}, nil
}

func dsn(path string) string {
	q := url.Values{}
	for _, p := range pragmas {
		q.Add("_pragma", p)
	}
	return "file:" + filepath.ToSlash(path) + "?" + q.Encode()
}

// Close releases the database.
func (r *Registry) Close() error {
	return r.db.Close()
}

// CreateRepository provisions a new remote repository with a fresh id.
func (r *Registry) CreateRepository(ctx context.Context, name string) (*remote.RemoteRepo, error) {
	name = strings.TrimSpace(name)
	if err := remote.ValidateRepoName(name); err != nil {
		return nil, &remote.RegistryError{Op: "create repository", Err: err}
	}
	rr := &remote.RemoteRepo{ID: uuid.NewString(), Name: name}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO repositories (id, name, created_at) VALUES (?, ?, ?)`,
		rr.ID, rr.Name, time.Now().UnixNano())
	if err != nil {
		return nil, &remote.RegistryError{Op: "create repository", Err: err}
	}
	logging.Info("remote repository created", "id", rr.ID, "name", rr.Name)
	return rr, nil
}

// Repositories lists every repository ordered by name.
func (r *Registry) Repositories(ctx context.Context) ([]remote.RemoteRepo, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name FROM repositories ORDER BY name, id`)
	if err != nil {
		return nil, &remote.RegistryError{Op: "list repositories", Err: err}
	}
	defer rows.Close()

	var out []remote.RemoteRepo
	for rows.Next() {
		var rr remote.RemoteRepo
		if err := rows.Scan(&rr.ID, &rr.Name); err != nil {
			return nil, &remote.RegistryError{Op: "list repositories", Err: err}
		}
		out = append(out, rr)
	}
	if err := rows.Err(); err != nil {
		return nil, &remote.RegistryError{Op: "list repositories", Err: err}
	}
	return out, nil
}

func (r *Registry) Repository(ctx context.Context, id string) (*remote.RemoteRepo, error) {
	var rr remote.RemoteRepo
	err := r.db.QueryRowContext(ctx, `SELECT id, name FROM repositories WHERE id = ?`, id).Scan(&rr.ID, &rr.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("repository %s: %w", id, remote.ErrRemoteRepoNotFound)
	}
	if err != nil {
		return nil, &remote.RegistryError{Op: "repository", Err: err}
	}
	return &rr, nil
}

// RegisterBundle records rec. Registering a content hash that is already
// known is a no-op.
func (r *Registry) RegisterBundle(ctx context.Context, rec remote.BundleRecord) error {
	if _, err := r.Repository(ctx, rec.RepoID); err != nil {
		return err
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO bundles (id, content_hash, repo_id, branch, commit_hash, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(content_hash) DO NOTHING`,
		rec.ID, rec.ContentHash, rec.RepoID, rec.Branch, string(rec.Commit), rec.CreatedAt.UnixNano())
	if err != nil {
		return &remote.RegistryError{Op: "register bundle", Err: err}
	}
	logging.Debug("bundle registered", "repo", rec.RepoID, "branch", rec.Branch, "bundle", rec.ContentHash)
	return nil
}

func (r *Registry) LookupByContentHash(ctx context.Context, contentHash string) (*remote.RemoteRepo, *remote.BundleRecord, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT b.id, b.content_hash, b.repo_id, b.branch, b.commit_hash, b.created_at, r.name
		FROM bundles b JOIN repositories r ON r.id = b.repo_id
		WHERE b.content_hash = ?`, contentHash)

	var name string
	rec, err := scanBundle(row, &name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, fmt.Errorf("bundle %s: %w", contentHash, remote.ErrBundleNotFound)
	}
	if err != nil {
		return nil, nil, &remote.RegistryError{Op: "lookup bundle", Err: err}
	}
	return &remote.RemoteRepo{ID: rec.RepoID, Name: name}, rec, nil
}

func (r *Registry) LatestBundle(ctx context.Context, repoID, branch string) (*remote.BundleRecord, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, content_hash, repo_id, branch, commit_hash, created_at
		FROM bundles
		WHERE repo_id = ? AND branch = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT 1`, repoID, branch)

	rec, err := scanBundle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("bundle for %s/%s: %w", repoID, branch, remote.ErrBundleNotFound)
	}
	if err != nil {
		return nil, &remote.RegistryError{Op: "latest bundle", Err: err}
	}
	return rec, nil
}

func scanBundle(row *sql.Row, extra ...any) (*remote.BundleRecord, error) {
	var (
		rec       remote.BundleRecord
		commit    string
		createdAt int64
	)
	dest := append([]any{&rec.ID, &rec.ContentHash, &rec.RepoID, &rec.Branch, &commit, &createdAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	rec.Commit = object.Hash(commit)
	rec.CreatedAt = time.Unix(0, createdAt).UTC()
	return &rec, nil
}
