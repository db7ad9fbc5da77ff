package repo

import (
	"fmt"

	"github.com/deevcs/dee/pkg/logging"
	"github.com/deevcs/dee/pkg/object"
)

// MergeResult describes a completed merge.
type MergeResult struct {
	Source, Target string
	From, To       object.Hash // target tip before and after
	UpToDate       bool
	FastForward    bool
}

// Merge fast-forwards target to source. An empty target means the current
// branch. When the target is not an ancestor of the source a
// *NonFastForwardError is returned and the target is left untouched. When
// the target is checked out, the worktree and index follow the new tip.
func (r *Repo) Merge(source, target string) (*MergeResult, error) {
	var res *MergeResult
	err := r.WithLock("merge", func() error {
		if target == "" {
			cur, err := r.CurrentBranch()
			if err != nil {
				return fmt.Errorf("merge: %w", err)
			}
			if cur == "" {
				return fmt.Errorf("merge: no target branch and HEAD is detached: %w", ErrBranchNotFound)
			}
			target = cur
		}
		for _, name := range []string{source, target} {
			if err := ValidateBranchName(name); err != nil {
				return fmt.Errorf("merge: %w", err)
			}
		}

		srcHash, err := r.ResolveRef(branchRef(source))
		if err != nil {
			return fmt.Errorf("merge: source: %w", err)
		}
		tgtHash, err := r.ResolveRef(branchRef(target))
		if err != nil {
			return fmt.Errorf("merge: target: %w", err)
		}

		res = &MergeResult{Source: source, Target: target, From: tgtHash, To: tgtHash}
		if srcHash == tgtHash {
			res.UpToDate = true
			return nil
		}

		ff, err := r.IsAncestor(tgtHash, srcHash)
		if err != nil {
			return fmt.Errorf("merge: %w", err)
		}
		if !ff {
			return &NonFastForwardError{Source: source, Target: target, SourceHash: srcHash, TargetHash: tgtHash}
		}

		if err := r.moveBranch(target, tgtHash, srcHash); err != nil {
			return fmt.Errorf("merge: %w", err)
		}
		res.To = srcHash
		res.FastForward = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if res.FastForward {
		logging.Info("fast-forward merge", "source", source, "target", target,
			"from", shortHash(res.From), "to", shortHash(res.To))
	}
	return res, nil
}

// moveBranch moves branch from old to h with a CAS and refreshes the
// worktree when the branch is checked out. The worktree and index are
// updated before the ref, so a failed refresh leaves the branch at old.
func (r *Repo) moveBranch(branch string, old, h object.Hash) error {
	cur, err := r.CurrentBranch()
	if err != nil {
		return err
	}
	if cur != branch {
		return r.UpdateRef(branchRef(branch), h, old)
	}

	if tip, err := r.ResolveRef(branch); err != nil {
		return err
	} else if tip != old {
		return fmt.Errorf("move %s: %w", branch, ErrRefCASMismatch)
	}
	tracked, err := r.trackedFiles()
	if err != nil {
		return err
	}
	c, err := r.readCommit(h)
	if err != nil {
		return err
	}
	if err := r.Worktree().Materialize(c, tracked); err != nil {
		return err
	}
	if err := r.resetIndex(c); err != nil {
		return err
	}
	return r.UpdateRef(branchRef(branch), h, old)
}
