package repo

import (
	"errors"
	"fmt"
	"strings"

	"github.com/deevcs/dee/pkg/object"
)

var (
	ErrNotInitialized     = errors.New("not a dee repository (run 'dee init')")
	ErrAlreadyInitialized = errors.New("repository already initialized")
	ErrNothingToCommit    = errors.New("nothing to commit")
	ErrInvalidBranchName  = errors.New("invalid branch name")
	ErrBranchNotFound     = errors.New("branch not found")
	ErrBranchEmpty        = errors.New("branch has no commit")
	ErrBranchExists       = errors.New("branch already exists")
	ErrNonFastForward     = errors.New("not a fast-forward")
	ErrRebaseConflict     = errors.New("rebase conflict")
	ErrRefCASMismatch     = errors.New("ref compare-and-swap mismatch")
	ErrHookFailed         = errors.New("hook failed")
)

// NonFastForwardError reports a merge whose target is not an ancestor of
// its source. The target ref is left untouched.
type NonFastForwardError struct {
	Source, Target         string
	SourceHash, TargetHash object.Hash
}

func (e *NonFastForwardError) Error() string {
	return fmt.Sprintf("merge %s into %s: %s (%s is not an ancestor of %s)",
		e.Source, e.Target, ErrNonFastForward, shortHash(e.TargetHash), shortHash(e.SourceHash))
}

func (e *NonFastForwardError) Is(target error) bool {
	return target == ErrNonFastForward
}

// RebaseConflictError lists the paths whose replay could not be applied
// unambiguously. Nothing is written when it is returned.
type RebaseConflictError struct {
	Branch, Onto string
	Commit       object.Hash
	Paths        []string
}

func (e *RebaseConflictError) Error() string {
	return fmt.Sprintf("rebase %s onto %s: %s replaying %s: %s",
		e.Branch, e.Onto, ErrRebaseConflict, shortHash(e.Commit), strings.Join(e.Paths, ", "))
}

func (e *RebaseConflictError) Is(target error) bool {
	return target == ErrRebaseConflict
}

func storageErr(op, path string, err error) error {
	return &object.StorageError{Op: op, Path: path, Err: err}
}

func shortHash(h object.Hash) string {
	s := string(h)
	if len(s) > 8 {
		return s[:8]
	}
	return s
}
