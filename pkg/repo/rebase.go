package repo

import (
	"fmt"

	"github.com/deevcs/dee/pkg/diff"
	"github.com/deevcs/dee/pkg/logging"
	"github.com/deevcs/dee/pkg/object"
)

// RebaseResult describes a completed rebase.
type RebaseResult struct {
	Branch, Onto string
	From, To     object.Hash // branch tip before and after
	Replayed     []object.Hash
	UpToDate     bool // branch already contained onto
	FastForward  bool // branch was an ancestor of onto
}

// Rebase replays the commits of branch that onto does not have on top of
// onto, parent to child. Each commit's change set is its diff against its
// first parent. A path conflicts when the current base holds a version
// different from both the commit's parent version and the commit's own
// version; any conflict returns a *RebaseConflictError and nothing is
// written.
func (r *Repo) Rebase(branch, onto string) (*RebaseResult, error) {
	for _, name := range []string{branch, onto} {
		if err := ValidateBranchName(name); err != nil {
			return nil, fmt.Errorf("rebase: %w", err)
		}
	}

	var res *RebaseResult
	err := r.WithLock("rebase", func() error {
		branchTip, err := r.ResolveRef(branchRef(branch))
		if err != nil {
			return fmt.Errorf("rebase: branch: %w", err)
		}
		ontoTip, err := r.ResolveRef(branchRef(onto))
		if err != nil {
			return fmt.Errorf("rebase: onto: %w", err)
		}
		res = &RebaseResult{Branch: branch, Onto: onto, From: branchTip, To: branchTip}

		contains, err := r.IsAncestor(ontoTip, branchTip)
		if err != nil {
			return fmt.Errorf("rebase: %w", err)
		}
		if contains {
			res.UpToDate = true
			return nil
		}

		behind, err := r.IsAncestor(branchTip, ontoTip)
		if err != nil {
			return fmt.Errorf("rebase: %w", err)
		}
		if behind {
			if err := r.moveBranch(branch, branchTip, ontoTip); err != nil {
				return fmt.Errorf("rebase: %w", err)
			}
			res.To = ontoTip
			res.FastForward = true
			return nil
		}

		planned, err := r.planRebase(branch, onto, branchTip, ontoTip)
		if err != nil {
			return err
		}

		for _, c := range planned {
			h, err := r.writeCommit(c)
			if err != nil {
				return fmt.Errorf("rebase: %w", err)
			}
			res.Replayed = append(res.Replayed, h)
		}
		newTip := res.Replayed[len(res.Replayed)-1]
		if err := r.moveBranch(branch, branchTip, newTip); err != nil {
			return fmt.Errorf("rebase: %w", err)
		}
		res.To = newTip
		return nil
	})
	if err != nil {
		return nil, err
	}

	logging.Info("rebased", "branch", branch, "onto", onto,
		"replayed", len(res.Replayed), "to", shortHash(res.To))
	return res, nil
}

// planRebase builds the replayed commits in memory without writing them.
func (r *Repo) planRebase(branch, onto string, branchTip, ontoTip object.Hash) ([]*object.Commit, error) {
	base, err := r.ancestors(ontoTip)
	if err != nil {
		return nil, fmt.Errorf("rebase: %w", err)
	}
	pending, err := r.collectUntil(branchTip, base)
	if err != nil {
		return nil, fmt.Errorf("rebase: %w", err)
	}
	order, err := r.topoOrder(pending)
	if err != nil {
		return nil, fmt.Errorf("rebase: %w", err)
	}

	ontoCommit, err := r.readCommit(ontoTip)
	if err != nil {
		return nil, fmt.Errorf("rebase: %w", err)
	}
	files := copyFiles(ontoCommit.Files)
	parent := ontoTip

	planned := make([]*object.Commit, 0, len(order))
	for _, h := range order {
		c, err := r.readCommit(h)
		if err != nil {
			return nil, fmt.Errorf("rebase: %w", err)
		}
		prevFiles := map[string]object.IndexEntry{}
		if p := c.Parent(); p != "" {
			pc, err := r.readCommit(p)
			if err != nil {
				return nil, fmt.Errorf("rebase: %w", err)
			}
			prevFiles = pc.Files
		}

		var conflicts []string
		for _, ch := range diff.Snapshots(prevFiles, c.Files) {
			p := ch.Path
			baseEntry, inBase := files[p]
			prevEntry, inPrev := prevFiles[p]
			newEntry, inNew := c.Files[p]
			if !sameVersion(baseEntry, inBase, prevEntry, inPrev) && !sameVersion(baseEntry, inBase, newEntry, inNew) {
				conflicts = append(conflicts, p)
				continue
			}
			if inNew {
				files[p] = newEntry
			} else {
				delete(files, p)
			}
		}
		if len(conflicts) > 0 {
			return nil, &RebaseConflictError{Branch: branch, Onto: onto, Commit: h, Paths: conflicts}
		}

		replayed := &object.Commit{
			Parents:   []object.Hash{parent},
			Timestamp: c.Timestamp,
			Message:   c.Message,
			Files:     copyFiles(files),
		}
		planned = append(planned, replayed)
		parent = object.HashCommit(replayed)
	}
	return planned, nil
}

// sameVersion compares two optional entries by content hash and mode.
func sameVersion(a object.IndexEntry, aok bool, b object.IndexEntry, bok bool) bool {
	if aok != bok {
		return false
	}
	if !aok {
		return true
	}
	return a.Hash == b.Hash && a.Mode == b.Mode
}

func copyFiles(in map[string]object.IndexEntry) map[string]object.IndexEntry {
	out := make(map[string]object.IndexEntry, len(in))
	for p, e := range in {
		out[p] = e
	}
	return out
}
