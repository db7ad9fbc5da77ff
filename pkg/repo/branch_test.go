package repo

import (
	"errors"
	"fmt"
	"sync"
	"testing"
)

func TestValidateBranchName(t *testing.T) {
	valid := []string{"main", "feature-1", "release_2.0", "a.b", "X"}
	for _, name := range valid {
		if err := ValidateBranchName(name); err != nil {
			t.Errorf("ValidateBranchName(%q) = %v, want nil", name, err)
		}
	}
	invalid := []string{"", ".", "..", "a/b", "with space", "tab\t", "ünïcode", "a:b"}
	for _, name := range invalid {
		if err := ValidateBranchName(name); !errors.Is(err, ErrInvalidBranchName) {
			t.Errorf("ValidateBranchName(%q) = %v, want ErrInvalidBranchName", name, err)
		}
	}
}

func TestBranch_CreateListDelete(t *testing.T) {
	r := initRepoWithFile(t, "main.go", []byte("package main\n"))
	headHash, err := r.Commit("initial commit")
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}

	got, err := r.CreateBranch("feature", "")
	if err != nil {
		t.Fatalf("CreateBranch(feature): %v", err)
	}
	if got != headHash {
		t.Errorf("feature = %s, want HEAD %s", got, headHash)
	}

	branches, err := r.ListBranches()
	if err != nil {
		t.Fatalf("ListBranches: %v", err)
	}
	if fmt.Sprint(branches) != "[feature main]" {
		t.Fatalf("ListBranches = %v, want [feature main]", branches)
	}

	if err := r.DeleteBranch("feature"); err != nil {
		t.Fatalf("DeleteBranch(feature): %v", err)
	}
	branches, err = r.ListBranches()
	if err != nil {
		t.Fatalf("ListBranches after delete: %v", err)
	}
	if fmt.Sprint(branches) != "[main]" {
		t.Fatalf("ListBranches after delete = %v, want [main]", branches)
	}

	if err := r.DeleteBranch("feature"); !errors.Is(err, ErrBranchNotFound) {
		t.Errorf("DeleteBranch(deleted) error = %v, want ErrBranchNotFound", err)
	}
}

func TestBranch_StartPoint(t *testing.T) {
	r, err := Init(t.TempDir())
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	first := commitFile(t, r, "a.txt", "1", "one")
	commitFile(t, r, "a.txt", "2", "two")

	byHash, err := r.CreateBranch("old", string(first))
	if err != nil {
		t.Fatalf("CreateBranch(old, hash): %v", err)
	}
	if byHash != first {
		t.Errorf("old = %s, want %s", byHash, first)
	}

	byName, err := r.CreateBranch("copy", "old")
	if err != nil {
		t.Fatalf("CreateBranch(copy, old): %v", err)
	}
	if byName != first {
		t.Errorf("copy = %s, want %s", byName, first)
	}

	if _, err := r.CreateBranch("bad", "nowhere"); !errors.Is(err, ErrBranchNotFound) {
		t.Errorf("CreateBranch(bad, nowhere) error = %v, want ErrBranchNotFound", err)
	}
}

func TestBranch_Errors(t *testing.T) {
	r, err := Init(t.TempDir())
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	if _, err := r.CreateBranch("main", ""); !errors.Is(err, ErrBranchExists) {
		t.Errorf("CreateBranch(main) error = %v, want ErrBranchExists", err)
	}
	if _, err := r.CreateBranch("bad name", ""); !errors.Is(err, ErrInvalidBranchName) {
		t.Errorf("CreateBranch(bad name) error = %v, want ErrInvalidBranchName", err)
	}
	if err := r.DeleteBranch("main"); err == nil {
		t.Error("DeleteBranch(current) succeeded")
	}
}

func TestCreateBranch_ConcurrentSingleWinner(t *testing.T) {
	r, err := Init(t.TempDir())
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	const workers = 12
	var wg sync.WaitGroup
	wg.Add(workers)
	errCh := make(chan error, workers)

	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			_, err := r.CreateBranch("feature", "")
			errCh <- err
		}()
	}
	wg.Wait()
	close(errCh)

	successes, duplicates := 0, 0
	for err := range errCh {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, ErrBranchExists):
			duplicates++
		default:
			t.Fatalf("unexpected CreateBranch error: %v", err)
		}
	}
	if successes != 1 || duplicates != workers-1 {
		t.Fatalf("successes = %d, duplicates = %d; want 1 and %d", successes, duplicates, workers-1)
	}
}
