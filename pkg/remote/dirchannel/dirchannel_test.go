package dirchannel

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func authed(t *testing.T) (*Channel, string) {
	t.Helper()
	root := t.TempDir()
	c := New(root)
	if err := c.Authenticate(context.Background(), "token"); err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	return c, root
}

func TestUploadDownload(t *testing.T) {
	c, root := authed(t)
	ctx := context.Background()

	local := filepath.Join(t.TempDir(), "x.bundle")
	if err := os.WriteFile(local, []byte("bundle bytes"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := c.EnsureDir(ctx, "repo-1"); err != nil {
		t.Fatalf("EnsureDir: %v", err)
	}
	if err := c.Upload(ctx, local, "repo-1/abc.bundle"); err != nil {
		t.Fatalf("Upload: %v", err)
	}

	stored, err := os.ReadFile(filepath.Join(root, "repo-1", "abc.bundle"))
	if err != nil {
		t.Fatalf("stored bundle: %v", err)
	}
	if string(stored) != "bundle bytes" {
		t.Errorf("stored = %q", stored)
	}
	if _, err := os.Stat(filepath.Join(root, "repo-1", "abc.bundle.part")); !os.IsNotExist(err) {
		t.Errorf("partial file left behind (stat err=%v)", err)
	}

	out := filepath.Join(t.TempDir(), "out.bundle")
	if err := c.Download(ctx, "repo-1/abc.bundle", out); err != nil {
		t.Fatalf("Download: %v", err)
	}
	got, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "bundle bytes" {
		t.Errorf("downloaded = %q", got)
	}
}

func TestUpload_MissingSource(t *testing.T) {
	c, _ := authed(t)
	if err := c.Upload(context.Background(), filepath.Join(t.TempDir(), "missing"), "r/x.bundle"); !os.IsNotExist(err) {
		t.Fatalf("Upload error = %v, want not-exist", err)
	}
}

func TestDownload_Missing(t *testing.T) {
	c, _ := authed(t)
	err := c.Download(context.Background(), "repo/none.bundle", filepath.Join(t.TempDir(), "out"))
	if !os.IsNotExist(err) {
		t.Fatalf("Download error = %v, want not-exist", err)
	}
}

func TestRequiresAuthentication(t *testing.T) {
	c := New(t.TempDir())
	if err := c.EnsureDir(context.Background(), "r"); err == nil {
		t.Fatal("EnsureDir before Authenticate succeeded")
	}
	if err := c.Authenticate(context.Background(), ""); err == nil {
		t.Fatal("Authenticate accepted an empty token")
	}
	if err := New(filepath.Join(t.TempDir(), "nope")).Authenticate(context.Background(), "t"); err == nil {
		t.Fatal("Authenticate accepted a missing root")
	}

	ok, _ := authed(t)
	if err := ok.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := ok.EnsureDir(context.Background(), "r"); err == nil {
		t.Fatal("EnsureDir after Close succeeded")
	}
}

func TestRejectsEscapingPaths(t *testing.T) {
	c, _ := authed(t)
	if err := c.EnsureDir(context.Background(), "../outside"); err == nil {
		t.Fatal("EnsureDir accepted a path escaping the root")
	}
}

func TestCanceledContext(t *testing.T) {
	c, _ := authed(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.EnsureDir(ctx, "r"); err != context.Canceled {
		t.Fatalf("EnsureDir error = %v, want context.Canceled", err)
	}
}
