package repo

import (
	"fmt"

	"github.com/deevcs/dee/pkg/logging"
	"github.com/deevcs/dee/pkg/object"
)

// Checkout switches the working directory to branch name.
//
//  1. Validate the name and resolve refs/heads/<name>.
//  2. Run the pre-checkout hook; a failure aborts.
//  3. Materialize the branch commit over the tracked files.
//  4. Reset the index to the commit (clean) and point HEAD at the branch.
//  5. Run the post-checkout hook; a failure is only logged.
func (r *Repo) Checkout(name string) (object.Hash, error) {
	if err := ValidateBranchName(name); err != nil {
		return "", fmt.Errorf("checkout: %w", err)
	}

	var target object.Hash
	err := r.WithLock("checkout", func() error {
		h, err := r.ResolveRef(branchRef(name))
		if err != nil {
			return fmt.Errorf("checkout: %w", err)
		}
		c, err := r.readCommit(h)
		if err != nil {
			return fmt.Errorf("checkout: %w", err)
		}

		if err := r.runHook(hookPreCheckout, name); err != nil {
			return fmt.Errorf("checkout %q: %w", name, err)
		}

		tracked, err := r.trackedFiles()
		if err != nil {
			return fmt.Errorf("checkout: %w", err)
		}
		if err := r.Worktree().Materialize(c, tracked); err != nil {
			return fmt.Errorf("checkout: %w", err)
		}
		if err := r.resetIndex(c); err != nil {
			return fmt.Errorf("checkout: %w", err)
		}
		if err := r.setHeadSymbolic(name); err != nil {
			return fmt.Errorf("checkout: %w", err)
		}
		target = h
		return nil
	})
	if err != nil {
		return "", err
	}

	if err := r.runHook(hookPostCheckout, name); err != nil {
		logging.WarnErr("post-checkout hook failed", err, "branch", name)
	}
	logging.Debug("checked out", "branch", name, "commit", shortHash(target))
	return target, nil
}
