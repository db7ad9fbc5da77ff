package object

import "sort"

// Hash is a 64-character hex-encoded SHA-256 digest.
type Hash string

// ObjectType identifies the kind of object stored.
type ObjectType string

const (
	TypeBlob   ObjectType = "blob"
	TypeCommit ObjectType = "commit"
)

// IndexEntry describes one tracked file: the blob holding its content plus
// the metadata captured when it was staged.
type IndexEntry struct {
	Path         string `json:"path"`
	Hash         Hash   `json:"hash"`
	Size         int64  `json:"size"`
	MediaType    string `json:"type"`
	Mode         uint32 `json:"mode"`
	OriginalName string `json:"original_name"`
	Timestamp    int64  `json:"timestamp"`
	Checksum     uint32 `json:"checksum"`
}

// SameContent reports whether two entries refer to the same bytes with the
// same permissions. The fast checksum is compared first because it is
// cheaper to reject on.
func (e IndexEntry) SameContent(o IndexEntry) bool {
	if e.Checksum != o.Checksum || e.Size != o.Size {
		return false
	}
	return e.Hash == o.Hash && e.Mode == o.Mode
}

// Commit is an immutable full snapshot of the tracked files.
type Commit struct {
	Parents   []Hash
	Timestamp int64
	Message   string
	Files     map[string]IndexEntry
}

// Paths returns the commit's file paths in sorted order.
func (c *Commit) Paths() []string {
	paths := make([]string, 0, len(c.Files))
	for p := range c.Files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Parent returns the first parent, or "" for a root commit.
func (c *Commit) Parent() Hash {
	if len(c.Parents) == 0 {
		return ""
	}
	return c.Parents[0]
}
