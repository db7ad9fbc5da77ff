package repo

import (
	"errors"
	"fmt"
	"time"

	"github.com/deevcs/dee/pkg/logging"
	"github.com/deevcs/dee/pkg/object"
)

// LogEntry pairs a commit with its id.
type LogEntry struct {
	Hash   object.Hash
	Commit *object.Commit
}

// Commit records the index as a new commit on top of HEAD.
//
//  1. Refuse when the dirty flag is clear.
//  2. Promote every index blob from staging into the object store.
//  3. Build a commit whose files equal the index, parent = HEAD commit.
//  4. Advance the current branch (or detached HEAD) with a CAS on the parent.
//  5. Clear the dirty flag and prune the staging store.
func (r *Repo) Commit(message string) (object.Hash, error) {
	var commitHash object.Hash
	err := r.WithLock("commit", func() error {
		dirty, err := r.HasChanges()
		if err != nil {
			return fmt.Errorf("commit: %w", err)
		}
		if !dirty {
			return fmt.Errorf("commit: %w", ErrNothingToCommit)
		}

		idx, err := r.ReadIndex()
		if err != nil {
			return fmt.Errorf("commit: %w", err)
		}
		for _, p := range idx.Paths() {
			if err := r.promoteBlob(idx.Entries[p].Hash); err != nil {
				return fmt.Errorf("commit: %q: %w", p, err)
			}
		}

		parent, err := r.HeadCommit()
		if err != nil {
			return fmt.Errorf("commit: resolve HEAD: %w", err)
		}

		files := make(map[string]object.IndexEntry, len(idx.Entries))
		for p, e := range idx.Entries {
			files[p] = e
		}
		commitHash, err = r.writeCommit(&object.Commit{
			Parents:   []object.Hash{parent},
			Timestamp: time.Now().Unix(),
			Message:   message,
			Files:     files,
		})
		if err != nil {
			return fmt.Errorf("commit: %w", err)
		}

		if err := r.advanceHead(parent, commitHash); err != nil {
			return fmt.Errorf("commit: %w", err)
		}
		if err := r.writeState(state{HasChanges: false}); err != nil {
			return fmt.Errorf("commit: %w", err)
		}
		r.pruneStaging()
		return nil
	})
	if err != nil {
		return "", err
	}

	logging.Info("committed", "commit", shortHash(commitHash), "message", message)
	return commitHash, nil
}

// promoteBlob copies a staged blob into the object store, verifying that its
// content still hashes to h.
func (r *Repo) promoteBlob(h object.Hash) error {
	if r.Objects.Has(h) {
		return nil
	}
	data, err := r.Staging.GetBlob(h)
	if err != nil {
		return fmt.Errorf("promote blob %s: %w", shortHash(h), err)
	}
	if got := object.HashBlob(data); got != h {
		return storageErr("promote blob", r.Staging.Path(h), fmt.Errorf("hash mismatch: got %s", shortHash(got)))
	}
	if _, err := r.Objects.PutBlob(data); err != nil {
		return fmt.Errorf("promote blob %s: %w", shortHash(h), err)
	}
	return nil
}

func (r *Repo) pruneStaging() {
	staged, err := r.Staging.List()
	if err != nil {
		logging.WarnErr("list staging store", err)
		return
	}
	for _, h := range staged {
		if err := r.Staging.Remove(h); err != nil {
			logging.WarnErr("prune staged blob", err, "blob", shortHash(h))
		}
	}
}

// Log walks first-parent history from start, newest first, returning at
// most limit entries. A limit <= 0 means no limit.
func (r *Repo) Log(start object.Hash, limit int) ([]LogEntry, error) {
	var entries []LogEntry
	current := start
	for current != "" && (limit <= 0 || len(entries) < limit) {
		c, err := r.readCommit(current)
		if err != nil {
			if errors.Is(err, object.ErrNotFound) && len(entries) > 0 {
				break
			}
			return nil, fmt.Errorf("log: %w", err)
		}
		entries = append(entries, LogEntry{Hash: current, Commit: c})
		current = c.Parent()
	}
	return entries, nil
}
