package repo

import (
	"errors"
	"testing"

	"github.com/deevcs/dee/pkg/object"
)

func TestMerge_FastForwardOtherBranch(t *testing.T) {
	r, err := Init(t.TempDir())
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	base := commitFile(t, r, "a.txt", "1", "one")
	if _, err := r.CreateBranch("stable", ""); err != nil {
		t.Fatalf("CreateBranch: %v", err)
	}
	tip := commitFile(t, r, "a.txt", "2", "two")

	res, err := r.Merge("main", "stable")
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if !res.FastForward || res.From != base || res.To != tip {
		t.Fatalf("Merge result = %+v, want fast-forward %s -> %s", res, base, tip)
	}
	got, err := r.ResolveRef("stable")
	if err != nil {
		t.Fatalf("ResolveRef(stable): %v", err)
	}
	if got != tip {
		t.Errorf("stable = %s, want %s", got, tip)
	}
	// stable is not checked out, so the worktree still shows main.
	if got := readWorktreeFile(t, r, "a.txt"); got != "2" {
		t.Errorf("a.txt = %q, want 2", got)
	}
}

func TestMerge_UpToDate(t *testing.T) {
	r, err := Init(t.TempDir())
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if _, err := r.CreateBranch("same", ""); err != nil {
		t.Fatalf("CreateBranch: %v", err)
	}
	res, err := r.Merge("same", "")
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if !res.UpToDate || res.FastForward {
		t.Errorf("Merge result = %+v, want up to date", res)
	}
}

func TestMerge_NonFastForwardLeavesTargetUntouched(t *testing.T) {
	r, err := Init(t.TempDir())
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	commitFile(t, r, "a.txt", "base", "base")
	if _, err := r.CreateBranch("feature", ""); err != nil {
		t.Fatalf("CreateBranch: %v", err)
	}
	mainTip := commitFile(t, r, "main.txt", "main", "main work")

	if _, err := r.Checkout("feature"); err != nil {
		t.Fatalf("Checkout(feature): %v", err)
	}
	featureTip := commitFile(t, r, "feature.txt", "feature", "feature work")

	_, err = r.Merge("feature", "main")
	var nff *NonFastForwardError
	if !errors.As(err, &nff) {
		t.Fatalf("Merge error = %v, want *NonFastForwardError", err)
	}
	if !errors.Is(err, ErrNonFastForward) {
		t.Errorf("error does not wrap ErrNonFastForward")
	}
	if nff.SourceHash != featureTip || nff.TargetHash != mainTip {
		t.Errorf("NonFastForwardError = %+v", nff)
	}

	got, err := r.ResolveRef("main")
	if err != nil {
		t.Fatalf("ResolveRef(main): %v", err)
	}
	if got != mainTip {
		t.Errorf("main moved to %s, want %s", got, mainTip)
	}
}

func TestMerge_RefreshFailureLeavesBranch(t *testing.T) {
	r, err := Init(t.TempDir())
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	base := commitFile(t, r, "a.txt", "1", "one")
	if _, err := r.CreateBranch("feature", ""); err != nil {
		t.Fatalf("CreateBranch: %v", err)
	}
	if _, err := r.Checkout("feature"); err != nil {
		t.Fatalf("Checkout(feature): %v", err)
	}
	tip := commitFile(t, r, "b.txt", "2", "two")
	if _, err := r.Checkout("main"); err != nil {
		t.Fatalf("Checkout(main): %v", err)
	}

	c, err := r.Objects.GetCommit(tip)
	if err != nil {
		t.Fatalf("GetCommit: %v", err)
	}
	if err := r.Objects.Remove(c.Files["b.txt"].Hash); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	if _, err := r.Merge("feature", ""); !errors.Is(err, object.ErrNotFound) {
		t.Fatalf("Merge error = %v, want ErrNotFound", err)
	}
	got, err := r.ResolveRef("main")
	if err != nil {
		t.Fatalf("ResolveRef(main): %v", err)
	}
	if got != base {
		t.Errorf("main = %s after failed refresh, want %s", got, base)
	}
	idx, err := r.ReadIndex()
	if err != nil {
		t.Fatalf("ReadIndex: %v", err)
	}
	if _, ok := idx.Entries["b.txt"]; ok {
		t.Error("index picked up b.txt from the failed merge")
	}
}

func TestMerge_BackwardsIsNonFastForward(t *testing.T) {
	r, err := Init(t.TempDir())
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if _, err := r.CreateBranch("old", ""); err != nil {
		t.Fatalf("CreateBranch: %v", err)
	}
	commitFile(t, r, "a.txt", "new", "new")

	if _, err := r.Merge("old", "main"); !errors.Is(err, ErrNonFastForward) {
		t.Fatalf("Merge(old into main) error = %v, want ErrNonFastForward", err)
	}
}

func TestIsAncestor(t *testing.T) {
	r, err := Init(t.TempDir())
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	root, err := r.HeadCommit()
	if err != nil {
		t.Fatalf("HeadCommit: %v", err)
	}
	h1 := commitFile(t, r, "a.txt", "1", "one")
	h2 := commitFile(t, r, "a.txt", "2", "two")

	tests := []struct {
		anc, desc object.Hash
		want      bool
	}{
		{root, h2, true},
		{h1, h2, true},
		{h2, h2, true},
		{h2, h1, false},
		{h2, root, false},
	}
	for _, tt := range tests {
		got, err := r.IsAncestor(tt.anc, tt.desc)
		if err != nil {
			t.Fatalf("IsAncestor: %v", err)
		}
		if got != tt.want {
			t.Errorf("IsAncestor(%s, %s) = %v, want %v", shortHash(tt.anc), shortHash(tt.desc), got, tt.want)
		}
	}
}

func TestIsAncestor_StepLimit(t *testing.T) {
	r, err := Init(t.TempDir())
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	root, err := r.HeadCommit()
	if err != nil {
		t.Fatalf("HeadCommit: %v", err)
	}
	commitFile(t, r, "a.txt", "1", "one")
	commitFile(t, r, "a.txt", "2", "two")
	tip := commitFile(t, r, "a.txt", "3", "three")

	old := ancestryStepsLimit
	ancestryStepsLimit = 1
	defer func() { ancestryStepsLimit = old }()

	if _, err := r.IsAncestor(root, tip); err == nil {
		t.Fatal("IsAncestor ignored the traversal limit")
	}
}
