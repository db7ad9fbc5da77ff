// Package remotetest provides deterministic in-memory Registry and Channel
// implementations for exercising the sync client.
package remotetest

import (
	"context"
	"fmt"
	"os"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/deevcs/dee/pkg/remote"
)

// CallLog records operations across doubles in call order.
type CallLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *CallLog) record(call string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, call)
}

// Calls returns a copy of the recorded calls.
func (l *CallLog) Calls() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.calls))
	copy(out, l.calls)
	return out
}

// Index returns the position of the first call with the given prefix, or -1.
func (l *CallLog) Index(prefix string) int {
	for i, c := range l.Calls() {
		if strings.HasPrefix(c, prefix) {
			return i
		}
	}
	return -1
}

// Registry is an in-memory remote.Registry.
type Registry struct {
	Log *CallLog

	// Fail maps an operation name (repository, register, lookup, latest) to
	// the error it should return.
	Fail map[string]error

	mu      sync.Mutex
	repos   map[string]remote.RemoteRepo
	bundles []remote.BundleRecord
}

// NewRegistry returns an empty Registry recording into log (which may be nil).
func NewRegistry(log *CallLog) *Registry {
	return &Registry{Log: log, Fail: map[string]error{}, repos: map[string]remote.RemoteRepo{}}
}

// CreateRepository adds a remote repository and returns it.
func (r *Registry) CreateRepository(name string) remote.RemoteRepo {
	r.mu.Lock()
	defer r.mu.Unlock()
	rr := remote.RemoteRepo{ID: uuid.NewString(), Name: name}
	r.repos[rr.ID] = rr
	return rr
}

// Bundles returns the registered bundles in registration order.
func (r *Registry) Bundles() []remote.BundleRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]remote.BundleRecord, len(r.bundles))
	copy(out, r.bundles)
	return out
}

func (r *Registry) fail(op string) error {
	if err, ok := r.Fail[op]; ok {
		return err
	}
	return nil
}

func (r *Registry) Repository(ctx context.Context, id string) (*remote.RemoteRepo, error) {
	r.Log.record("registry.repository " + id)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := r.fail("repository"); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	rr, ok := r.repos[id]
	if !ok {
		return nil, fmt.Errorf("repository %s: %w", id, remote.ErrRemoteRepoNotFound)
	}
	return &rr, nil
}

func (r *Registry) RegisterBundle(ctx context.Context, rec remote.BundleRecord) error {
	r.Log.record("registry.register " + rec.ContentHash)
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := r.fail("register"); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.repos[rec.RepoID]; !ok {
		return fmt.Errorf("repository %s: %w", rec.RepoID, remote.ErrRemoteRepoNotFound)
	}
	r.bundles = append(r.bundles, rec)
	return nil
}

func (r *Registry) LookupByContentHash(ctx context.Context, contentHash string) (*remote.RemoteRepo, *remote.BundleRecord, error) {
	r.Log.record("registry.lookup " + contentHash)
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	if err := r.fail("lookup"); err != nil {
		return nil, nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.bundles) - 1; i >= 0; i-- {
		b := r.bundles[i]
		if b.ContentHash != contentHash {
			continue
		}
		rr, ok := r.repos[b.RepoID]
		if !ok {
			return nil, nil, fmt.Errorf("repository %s: %w", b.RepoID, remote.ErrRemoteRepoNotFound)
		}
		return &rr, &b, nil
	}
	return nil, nil, fmt.Errorf("bundle %s: %w", contentHash, remote.ErrBundleNotFound)
}

func (r *Registry) LatestBundle(ctx context.Context, repoID, branch string) (*remote.BundleRecord, error) {
	r.Log.record("registry.latest " + repoID + " " + branch)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := r.fail("latest"); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var found []remote.BundleRecord
	for _, b := range r.bundles {
		if b.RepoID == repoID && b.Branch == branch {
			found = append(found, b)
		}
	}
	if len(found) == 0 {
		return nil, fmt.Errorf("bundle for %s/%s: %w", repoID, branch, remote.ErrBundleNotFound)
	}
	// Stable sort keeps registration order for equal timestamps.
	sort.SliceStable(found, func(i, j int) bool { return found[i].CreatedAt.Before(found[j].CreatedAt) })
	latest := found[len(found)-1]
	return &latest, nil
}

// Channel is an in-memory remote.Channel storing files by remote path.
type Channel struct {
	Log *CallLog

	// Token, when set, is the only token Authenticate accepts.
	Token string
	// Fail maps an operation name (authenticate, mkdir, upload, download)
	// to the error it should return.
	Fail map[string]error

	mu      sync.Mutex
	files   map[string][]byte
	dirs    map[string]bool
	authed  bool
	closed  bool
	uploads int
	downs   int
}

// NewChannel returns an empty Channel recording into log (which may be nil).
func NewChannel(log *CallLog) *Channel {
	return &Channel{Log: log, Fail: map[string]error{}, files: map[string][]byte{}, dirs: map[string]bool{}}
}

// File returns the stored bytes for a remote path.
func (c *Channel) File(remotePath string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.files[remotePath]
	return b, ok
}

// PutFile stores data at remotePath directly.
func (c *Channel) PutFile(remotePath string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.files[remotePath] = data
}

// Downloads reports how many downloads succeeded.
func (c *Channel) Downloads() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.downs
}

// Uploads reports how many uploads succeeded.
func (c *Channel) Uploads() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.uploads
}

// Closed reports whether Close was called.
func (c *Channel) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Channel) fail(op string) error {
	if err, ok := c.Fail[op]; ok {
		return err
	}
	return nil
}

func (c *Channel) Authenticate(ctx context.Context, token string) error {
	c.Log.record("channel.authenticate")
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.fail("authenticate"); err != nil {
		return err
	}
	if c.Token != "" && token != c.Token {
		return fmt.Errorf("authentication rejected")
	}
	c.mu.Lock()
	c.authed = true
	c.mu.Unlock()
	return nil
}

func (c *Channel) EnsureDir(ctx context.Context, remotePath string) error {
	c.Log.record("channel.mkdir " + remotePath)
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.fail("mkdir"); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dirs[path.Clean(remotePath)] = true
	return nil
}

func (c *Channel) Upload(ctx context.Context, localPath, remotePath string) error {
	c.Log.record("channel.upload " + remotePath)
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.fail("upload"); err != nil {
		return err
	}
	data, err := os.ReadFile(localPath)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.authed {
		return fmt.Errorf("upload before authenticate")
	}
	if dir := path.Dir(remotePath); dir != "." && !c.dirs[dir] {
		return fmt.Errorf("remote directory %s does not exist", dir)
	}
	c.files[remotePath] = data
	c.uploads++
	return nil
}

func (c *Channel) Download(ctx context.Context, remotePath, localPath string) error {
	c.Log.record("channel.download " + remotePath)
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.fail("download"); err != nil {
		return err
	}
	c.mu.Lock()
	data, ok := c.files[remotePath]
	authed := c.authed
	c.mu.Unlock()
	if !authed {
		return fmt.Errorf("download before authenticate")
	}
	if !ok {
		return fmt.Errorf("remote file %s: %w", remotePath, os.ErrNotExist)
	}
	if err := os.WriteFile(localPath, data, 0o644); err != nil {
		return err
	}
	c.mu.Lock()
	c.downs++
	c.mu.Unlock()
	return nil
}

func (c *Channel) Close() error {
	c.Log.record("channel.close")
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

var (
	_ remote.Registry = (*Registry)(nil)
	_ remote.Channel  = (*Channel)(nil)
)
