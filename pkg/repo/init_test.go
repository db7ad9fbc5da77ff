package repo

import (
	"crypto/rand"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"testing"
)

func TestInit_CreatesStructure(t *testing.T) {
	dir := t.TempDir()

	r, err := Init(dir)
	if err != nil {
		t.Fatalf("Init(%q): %v", dir, err)
	}
	if r.RootDir != dir {
		t.Errorf("RootDir = %q, want %q", r.RootDir, dir)
	}
	if want := filepath.Join(dir, ".dee"); r.MetaDir != want {
		t.Errorf("MetaDir = %q, want %q", r.MetaDir, want)
	}

	for _, sub := range []string{"objects", "staging", "refs/heads", "hooks"} {
		info, err := os.Stat(filepath.Join(dir, ".dee", filepath.FromSlash(sub)))
		if err != nil {
			t.Fatalf("stat %s: %v", sub, err)
		}
		if !info.IsDir() {
			t.Errorf("%s is not a directory", sub)
		}
	}
	for _, f := range []string{"HEAD", "index.json", "state.json", "config.toml", "token"} {
		if _, err := os.Stat(filepath.Join(dir, ".dee", f)); err != nil {
			t.Errorf("stat %s: %v", f, err)
		}
	}

	head, err := os.ReadFile(filepath.Join(dir, ".dee", "HEAD"))
	if err != nil {
		t.Fatalf("read HEAD: %v", err)
	}
	if string(head) != "ref: refs/heads/main\n" {
		t.Errorf("HEAD = %q, want %q", head, "ref: refs/heads/main\n")
	}
}

func TestInit_RootCommitIsEmptyAndClean(t *testing.T) {
	r, err := Init(t.TempDir())
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	h, err := r.HeadCommit()
	if err != nil {
		t.Fatalf("HeadCommit: %v", err)
	}
	c, err := r.readCommit(h)
	if err != nil {
		t.Fatalf("readCommit: %v", err)
	}
	if len(c.Parents) != 0 {
		t.Errorf("root commit parents = %v, want none", c.Parents)
	}
	if len(c.Files) != 0 {
		t.Errorf("root commit files = %d, want 0", len(c.Files))
	}

	dirty, err := r.HasChanges()
	if err != nil {
		t.Fatalf("HasChanges: %v", err)
	}
	if dirty {
		t.Error("fresh repository reports changes")
	}

	branch, err := r.CurrentBranch()
	if err != nil {
		t.Fatalf("CurrentBranch: %v", err)
	}
	if branch != "main" {
		t.Errorf("CurrentBranch = %q, want main", branch)
	}
}

func TestInit_Token(t *testing.T) {
	r, err := Init(t.TempDir())
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	tok, err := r.Token()
	if err != nil {
		t.Fatalf("Token: %v", err)
	}
	if !regexp.MustCompile(`^[0-9a-f]{64}$`).MatchString(tok) {
		t.Errorf("token %q is not 32 hex-encoded bytes", tok)
	}

	info, err := os.Stat(r.tokenPath())
	if err != nil {
		t.Fatalf("stat token: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("token mode = %o, want 600", perm)
	}

	other, err := Init(t.TempDir())
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	otherTok, err := other.Token()
	if err != nil {
		t.Fatalf("Token: %v", err)
	}
	if otherTok == tok {
		t.Error("two repositories share a token")
	}
}

func TestInit_AlreadyInitialized(t *testing.T) {
	dir := t.TempDir()
	r1, err := Init(dir)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	head1, err := r1.HeadCommit()
	if err != nil {
		t.Fatalf("HeadCommit: %v", err)
	}

	r2, err := Init(dir)
	if !errors.Is(err, ErrAlreadyInitialized) {
		t.Fatalf("second Init error = %v, want ErrAlreadyInitialized", err)
	}
	if r2 == nil {
		t.Fatal("second Init returned nil repo")
	}
	head2, err := r2.HeadCommit()
	if err != nil {
		t.Fatalf("HeadCommit: %v", err)
	}
	if head1 != head2 {
		t.Errorf("re-init changed HEAD: %s -> %s", head1, head2)
	}
}

func TestInit_FailureRemovesMetadata(t *testing.T) {
	dir := t.TempDir()
	tokenRand = func([]byte) (int, error) { return 0, errors.New("entropy exhausted") }
	t.Cleanup(func() { tokenRand = rand.Read })

	if _, err := Init(dir); err == nil {
		t.Fatal("Init succeeded with a failing token source")
	}
	if _, err := os.Stat(filepath.Join(dir, MetaDirName)); !os.IsNotExist(err) {
		t.Fatalf("partial %s left behind (stat err=%v)", MetaDirName, err)
	}

	tokenRand = rand.Read
	r, err := Init(dir)
	if err != nil {
		t.Fatalf("Init after failure: %v", err)
	}
	if tok, err := r.Token(); err != nil || tok == "" {
		t.Errorf("Token() = %q, %v", tok, err)
	}
}

func TestInit_KeepsForeignMetadataFile(t *testing.T) {
	dir := t.TempDir()
	meta := filepath.Join(dir, MetaDirName)
	if err := os.WriteFile(meta, []byte("not a directory"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Init(dir); err == nil {
		t.Fatal("Init succeeded over a regular file")
	}
	if data, err := os.ReadFile(meta); err != nil || string(data) != "not a directory" {
		t.Errorf("%s = %q, %v; want untouched", MetaDirName, data, err)
	}
}

func TestOpen_FindsRepoFromSubdir(t *testing.T) {
	dir := t.TempDir()
	if _, err := Init(dir); err != nil {
		t.Fatalf("Init: %v", err)
	}
	sub := filepath.Join(dir, "a", "b")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}

	r, err := Open(sub)
	if err != nil {
		t.Fatalf("Open(%q): %v", sub, err)
	}
	if r.RootDir != dir {
		t.Errorf("RootDir = %q, want %q", r.RootDir, dir)
	}
}

func TestOpen_NotInitialized(t *testing.T) {
	_, err := Open(t.TempDir())
	if !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("Open error = %v, want ErrNotInitialized", err)
	}
}
