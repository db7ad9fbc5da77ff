package repo

import (
	"errors"
	"fmt"

	"github.com/deevcs/dee/pkg/diff"
	"github.com/deevcs/dee/pkg/object"
)

// Diff lists the paths that differ between the snapshot at from and the
// snapshot at to. An empty from means HEAD; an empty to means the staging
// index, i.e. what the next commit would record.
func (r *Repo) Diff(from, to string) ([]diff.FileChange, error) {
	if from == "" {
		from = "HEAD"
	}
	before, err := r.snapshot(from)
	if err != nil {
		return nil, fmt.Errorf("diff: %w", err)
	}

	var after map[string]object.IndexEntry
	if to == "" {
		idx, err := r.ReadIndex()
		if err != nil {
			return nil, fmt.Errorf("diff: %w", err)
		}
		after = idx.Entries
	} else if after, err = r.snapshot(to); err != nil {
		return nil, fmt.Errorf("diff: %w", err)
	}
	return diff.Snapshots(before, after), nil
}

func (r *Repo) snapshot(ref string) (map[string]object.IndexEntry, error) {
	h, err := r.ResolveRef(ref)
	if err != nil {
		return nil, err
	}
	c, err := r.readCommit(h)
	if err != nil {
		return nil, err
	}
	return c.Files, nil
}

// ReadBlob returns blob content from the object store, falling back to
// staged blobs not yet committed.
func (r *Repo) ReadBlob(h object.Hash) ([]byte, error) {
	data, err := r.Objects.GetBlob(h)
	if err == nil || !errors.Is(err, object.ErrNotFound) {
		return data, err
	}
	return r.Staging.GetBlob(h)
}
