package object

import (
	"fmt"
	"sort"
	"strings"
)

// Reachable returns every object hash reachable from the given commit roots:
// the commits themselves, all of their ancestors, and every blob referenced
// by any of those commits. Missing roots are an error; a missing ancestor
// stops traversal along that edge.
func (s *Store) Reachable(roots []Hash) ([]Hash, error) {
	present, _, err := s.walk(roots)
	if err != nil {
		return nil, err
	}
	return sortedHashes(present), nil
}

// Missing returns the hashes referenced from roots (transitively) that are
// absent from the store. An empty result means the history is complete.
func (s *Store) Missing(roots []Hash) ([]Hash, error) {
	_, missing, err := s.walk(roots)
	if err != nil {
		return nil, err
	}
	return sortedHashes(missing), nil
}

func (s *Store) walk(roots []Hash) (present, missing map[Hash]struct{}, err error) {
	roots = uniqueNormalizedHashes(roots)
	for _, r := range roots {
		if !s.Has(r) {
			return nil, nil, fmt.Errorf("reachable: root %s: %w", r, ErrNotFound)
		}
	}

	present = make(map[Hash]struct{}, len(roots))
	missing = make(map[Hash]struct{})
	stack := make([]Hash, 0, len(roots))
	stack = append(stack, roots...)
	for len(stack) > 0 {
		h := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if h == "" {
			continue
		}
		if _, ok := present[h]; ok {
			continue
		}
		if !s.Has(h) {
			missing[h] = struct{}{}
			continue
		}
		present[h] = struct{}{}

		objType, data, err := s.Read(h)
		if err != nil {
			return nil, nil, fmt.Errorf("reachable read %s: %w", h, err)
		}
		refs, err := referencedHashes(objType, data)
		if err != nil {
			return nil, nil, fmt.Errorf("reachable parse %s (%s): %w", h, objType, err)
		}
		stack = append(stack, refs...)
	}
	return present, missing, nil
}

func sortedHashes(set map[Hash]struct{}) []Hash {
	hashes := make([]Hash, 0, len(set))
	for h := range set {
		hashes = append(hashes, h)
	}
	sort.Slice(hashes, func(i, j int) bool { return hashes[i] < hashes[j] })
	return hashes
}

func referencedHashes(objType ObjectType, data []byte) ([]Hash, error) {
	switch objType {
	case TypeBlob:
		return nil, nil
	case TypeCommit:
		commit, err := UnmarshalCommit(data)
		if err != nil {
			return nil, err
		}
		refs := make([]Hash, 0, len(commit.Parents)+len(commit.Files))
		refs = append(refs, commit.Parents...)
		for _, e := range commit.Files {
			refs = append(refs, e.Hash)
		}
		return refs, nil
	default:
		return nil, fmt.Errorf("unsupported object type %q", objType)
	}
}

func uniqueNormalizedHashes(in []Hash) []Hash {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[Hash]struct{}, len(in))
	out := make([]Hash, 0, len(in))
	for _, h := range in {
		h = Hash(strings.TrimSpace(string(h)))
		if h == "" {
			continue
		}
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
