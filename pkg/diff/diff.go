// Package diff compares commit snapshots and renders line-level changes
// between file revisions.
package diff

import (
	"sort"

	"github.com/deevcs/dee/pkg/object"
)

// ChangeType classifies what happened to a path between two snapshots.
type ChangeType int

const (
	Added    ChangeType = iota // path exists only in the after snapshot
	Removed                    // path exists only in the before snapshot
	Modified                   // content or mode differs
)

func (t ChangeType) String() string {
	switch t {
	case Added:
		return "A"
	case Removed:
		return "D"
	case Modified:
		return "M"
	default:
		return "?"
	}
}

// FileChange records one changed path. Before is nil for Added, After is
// nil for Removed.
type FileChange struct {
	Type   ChangeType
	Path   string
	Before *object.IndexEntry
	After  *object.IndexEntry
}

// ModeOnly reports whether a modification left the content unchanged.
func (c FileChange) ModeOnly() bool {
	return c.Type == Modified && c.Before.Hash == c.After.Hash
}

// Snapshots lists the paths that differ between two file maps, sorted by
// path. Entries are equal when both content hash and mode match.
func Snapshots(before, after map[string]object.IndexEntry) []FileChange {
	var changes []FileChange
	for p, a := range after {
		a := a
		b, ok := before[p]
		switch {
		case !ok:
			changes = append(changes, FileChange{Type: Added, Path: p, After: &a})
		case b.Hash != a.Hash || b.Mode != a.Mode:
			b := b
			changes = append(changes, FileChange{Type: Modified, Path: p, Before: &b, After: &a})
		}
	}
	for p, b := range before {
		if _, ok := after[p]; !ok {
			b := b
			changes = append(changes, FileChange{Type: Removed, Path: p, Before: &b})
		}
	}
	sort.Slice(changes, func(i, j int) bool { return changes[i].Path < changes[j].Path })
	return changes
}
