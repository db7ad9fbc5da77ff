package repo

import (
	"errors"
	"fmt"
	"testing"
)

// divergedRepo builds main and feature branches that share "base" and then
// each add their own commits.
func divergedRepo(t *testing.T) *Repo {
	t.Helper()
	r, err := Init(t.TempDir())
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	commitFile(t, r, "shared.txt", "base", "base")
	if _, err := r.CreateBranch("feature", ""); err != nil {
		t.Fatalf("CreateBranch: %v", err)
	}
	commitFile(t, r, "main.txt", "main", "main work")

	if _, err := r.Checkout("feature"); err != nil {
		t.Fatalf("Checkout(feature): %v", err)
	}
	commitFile(t, r, "f1.txt", "one", "feature one")
	commitFile(t, r, "f2.txt", "two", "feature two")
	return r
}

func TestRebase_LinearReplay(t *testing.T) {
	r := divergedRepo(t)
	mainTip, err := r.ResolveRef("main")
	if err != nil {
		t.Fatalf("ResolveRef(main): %v", err)
	}

	res, err := r.Rebase("feature", "main")
	if err != nil {
		t.Fatalf("Rebase: %v", err)
	}
	if len(res.Replayed) != 2 {
		t.Fatalf("replayed %d commits, want 2", len(res.Replayed))
	}

	first, err := r.Objects.GetCommit(res.Replayed[0])
	if err != nil {
		t.Fatalf("GetCommit: %v", err)
	}
	if first.Parent() != mainTip {
		t.Errorf("first replayed parent = %s, want main tip %s", first.Parent(), mainTip)
	}
	if first.Message != "feature one" {
		t.Errorf("first replayed message = %q", first.Message)
	}

	tip, err := r.Objects.GetCommit(res.To)
	if err != nil {
		t.Fatalf("GetCommit: %v", err)
	}
	if got := fmt.Sprint(tip.Paths()); got != "[f1.txt f2.txt main.txt shared.txt]" {
		t.Errorf("rebased tip paths = %s", got)
	}

	contains, err := r.IsAncestor(mainTip, res.To)
	if err != nil {
		t.Fatalf("IsAncestor: %v", err)
	}
	if !contains {
		t.Error("rebased feature does not contain main")
	}

	// feature is checked out, so the worktree follows.
	if got := readWorktreeFile(t, r, "main.txt"); got != "main" {
		t.Errorf("main.txt = %q, want main", got)
	}

	// main can now fast-forward to feature.
	if _, err := r.Merge("feature", "main"); err != nil {
		t.Fatalf("Merge after rebase: %v", err)
	}
}

func TestRebase_ConflictWritesNothing(t *testing.T) {
	r, err := Init(t.TempDir())
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	commitFile(t, r, "shared.txt", "base", "base")
	if _, err := r.CreateBranch("feature", ""); err != nil {
		t.Fatalf("CreateBranch: %v", err)
	}
	commitFile(t, r, "shared.txt", "main edit", "main edit")

	if _, err := r.Checkout("feature"); err != nil {
		t.Fatalf("Checkout(feature): %v", err)
	}
	featureTip := commitFile(t, r, "shared.txt", "feature edit", "feature edit")

	before, err := r.Objects.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}

	_, err = r.Rebase("feature", "main")
	var conflict *RebaseConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("Rebase error = %v, want *RebaseConflictError", err)
	}
	if !errors.Is(err, ErrRebaseConflict) {
		t.Error("error does not wrap ErrRebaseConflict")
	}
	if fmt.Sprint(conflict.Paths) != "[shared.txt]" {
		t.Errorf("conflict paths = %v, want [shared.txt]", conflict.Paths)
	}

	got, err := r.ResolveRef("feature")
	if err != nil {
		t.Fatalf("ResolveRef(feature): %v", err)
	}
	if got != featureTip {
		t.Errorf("feature moved to %s on conflict", got)
	}
	after, err := r.Objects.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(after) != len(before) {
		t.Errorf("object count %d -> %d on conflict", len(before), len(after))
	}
	if got := readWorktreeFile(t, r, "shared.txt"); got != "feature edit" {
		t.Errorf("worktree changed on conflict: %q", got)
	}
}

func TestRebase_SameChangeOnBothSidesApplies(t *testing.T) {
	r, err := Init(t.TempDir())
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	commitFile(t, r, "shared.txt", "base", "base")
	if _, err := r.CreateBranch("feature", ""); err != nil {
		t.Fatalf("CreateBranch: %v", err)
	}
	commitFile(t, r, "shared.txt", "same", "main edit")
	if _, err := r.Checkout("feature"); err != nil {
		t.Fatalf("Checkout(feature): %v", err)
	}
	commitFile(t, r, "shared.txt", "same", "feature edit")

	if _, err := r.Rebase("feature", "main"); err != nil {
		t.Fatalf("Rebase: %v", err)
	}
}

func TestRebase_NoOpAndFastForward(t *testing.T) {
	r, err := Init(t.TempDir())
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	commitFile(t, r, "a.txt", "1", "one")
	if _, err := r.CreateBranch("behind", ""); err != nil {
		t.Fatalf("CreateBranch: %v", err)
	}
	tip := commitFile(t, r, "a.txt", "2", "two")

	res, err := r.Rebase("main", "behind")
	if err != nil {
		t.Fatalf("Rebase(main onto behind): %v", err)
	}
	if !res.UpToDate || res.To != tip {
		t.Errorf("Rebase(main onto behind) = %+v, want no-op", res)
	}

	res, err = r.Rebase("behind", "main")
	if err != nil {
		t.Fatalf("Rebase(behind onto main): %v", err)
	}
	if !res.FastForward || res.To != tip {
		t.Errorf("Rebase(behind onto main) = %+v, want fast-forward to %s", res, tip)
	}
}
