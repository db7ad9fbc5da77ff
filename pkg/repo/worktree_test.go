package repo

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/deevcs/dee/pkg/object"
)

func TestMaterialize_RejectsEscapingPaths(t *testing.T) {
	for _, bad := range []string{"../../escaped.txt", "sub/../.dee/HEAD", ".dee/HEAD", "/abs.txt"} {
		t.Run(bad, func(t *testing.T) {
			base := t.TempDir()
			r, err := Init(filepath.Join(base, "deep", "repo"))
			if err != nil {
				t.Fatalf("Init: %v", err)
			}
			commitFile(t, r, "a.txt", "keep", "initial")
			headBefore, err := os.ReadFile(r.headPath())
			if err != nil {
				t.Fatal(err)
			}

			blob, err := r.Objects.PutBlob([]byte("pwned"))
			if err != nil {
				t.Fatalf("PutBlob: %v", err)
			}
			c := &object.Commit{Timestamp: 2, Message: "crafted", Files: map[string]object.IndexEntry{
				bad: {Path: bad, Hash: blob, Size: 5, Mode: 0o644},
			}}
			tracked, err := r.trackedFiles()
			if err != nil {
				t.Fatalf("trackedFiles: %v", err)
			}

			err = r.Worktree().Materialize(c, tracked)
			if !errors.Is(err, object.ErrInvalidPath) {
				t.Fatalf("Materialize error = %v, want ErrInvalidPath", err)
			}
			if data, err := os.ReadFile(filepath.Join(r.RootDir, "a.txt")); err != nil || string(data) != "keep" {
				t.Errorf("a.txt = %q, %v; want untouched", data, err)
			}
			for _, p := range []string{filepath.Join(base, "escaped.txt"), filepath.Join(base, "deep", "escaped.txt")} {
				if _, err := os.Stat(p); !os.IsNotExist(err) {
					t.Errorf("%s written outside the repository (stat err=%v)", p, err)
				}
			}
			if headAfter, _ := os.ReadFile(r.headPath()); string(headAfter) != string(headBefore) {
				t.Errorf("HEAD changed: %q -> %q", headBefore, headAfter)
			}
		})
	}
}

func TestMaterialize_SkipsInvalidTrackedPaths(t *testing.T) {
	base := t.TempDir()
	outside := filepath.Join(base, "outside.txt")
	if err := os.WriteFile(outside, []byte("mine"), 0o644); err != nil {
		t.Fatal(err)
	}
	r, err := Init(filepath.Join(base, "repo"))
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	head, err := r.HeadCommit()
	if err != nil {
		t.Fatalf("HeadCommit: %v", err)
	}
	c, err := r.readCommit(head)
	if err != nil {
		t.Fatalf("readCommit: %v", err)
	}

	tracked := map[string]bool{"../outside.txt": true}
	if err := r.Worktree().Materialize(c, tracked); err != nil {
		t.Fatalf("Materialize: %v", err)
	}
	if data, err := os.ReadFile(outside); err != nil || string(data) != "mine" {
		t.Errorf("outside.txt = %q, %v; want untouched", data, err)
	}
}
