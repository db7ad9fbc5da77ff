package repo

import (
	"path/filepath"
	"strings"
)

// IgnoreSet matches repository-relative paths against exact path segments.
type IgnoreSet struct {
	segments map[string]struct{}
}

// NewIgnoreSet builds an IgnoreSet from segment names. The metadata
// directory is always included.
func NewIgnoreSet(segments []string) *IgnoreSet {
	s := &IgnoreSet{segments: make(map[string]struct{}, len(segments)+1)}
	for _, seg := range segments {
		seg = strings.Trim(strings.TrimSpace(seg), "/")
		if seg != "" {
			s.segments[seg] = struct{}{}
		}
	}
	s.segments[MetaDirName] = struct{}{}
	return s
}

// IsIgnored reports whether any segment of the slash- or OS-separated
// relative path is in the set.
func (s *IgnoreSet) IsIgnored(rel string) bool {
	rel = filepath.ToSlash(rel)
	for _, seg := range strings.Split(rel, "/") {
		if _, ok := s.segments[seg]; ok {
			return true
		}
	}
	return false
}

func (r *Repo) ignoreSet() (*IgnoreSet, error) {
	cfg, err := r.ReadConfig()
	if err != nil {
		return nil, err
	}
	return NewIgnoreSet(cfg.Core.Ignore), nil
}
