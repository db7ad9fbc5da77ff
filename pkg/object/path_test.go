package object

import (
	"errors"
	"testing"
)

func TestValidatePath(t *testing.T) {
	valid := []string{"a.txt", "dir with space/run.sh", "a/b/c", ".hidden", "sub/.deeper", "..x", "a:b.txt", "notes/10:30.txt"}
	for _, p := range valid {
		if err := ValidatePath(p); err != nil {
			t.Errorf("ValidatePath(%q) = %v, want nil", p, err)
		}
	}

	invalid := []string{
		"",
		"/etc/passwd",
		"../escaped.txt",
		"../../escaped.txt",
		"sub/../.dee/HEAD",
		"sub/..",
		".dee/HEAD",
		"nested/.dee/refs/heads/main",
		".dee",
		"./a.txt",
		"a//b",
		"a/",
		`..\escaped.txt`,
		"C:/windows",
		"nul\x00byte",
	}
	for _, p := range invalid {
		err := ValidatePath(p)
		if !errors.Is(err, ErrInvalidPath) {
			t.Errorf("ValidatePath(%q) = %v, want ErrInvalidPath", p, err)
		}
	}
}

func TestUnmarshalCommitRejectsEscapingPaths(t *testing.T) {
	blob := HashBlob([]byte("pwned"))
	for _, p := range []string{"../../escaped.txt", "sub/../.dee/HEAD", "/abs.txt"} {
		c := &Commit{Timestamp: 1, Message: "m", Files: map[string]IndexEntry{
			p: {Path: p, Hash: blob, Size: 5, Mode: 0o644},
		}}
		_, err := UnmarshalCommit(MarshalCommit(c))
		if !errors.Is(err, ErrInvalidPath) {
			t.Errorf("UnmarshalCommit with path %q: err = %v, want ErrInvalidPath", p, err)
		}
	}
}
