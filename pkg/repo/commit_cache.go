package repo

import (
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/deevcs/dee/pkg/object"
)

const (
	commitCacheTTL     = 10 * time.Minute
	commitCacheCleanup = 15 * time.Minute
)

// commitCache memoizes decoded commits. Commits are immutable and keyed by
// their content hash, so entries never go stale; the TTL only bounds memory
// in long-lived processes.
type commitCache struct {
	c *cache.Cache
}

func newCommitCache() *commitCache {
	return &commitCache{c: cache.New(commitCacheTTL, commitCacheCleanup)}
}

// readCommit returns the commit with hash h, consulting the cache first.
func (r *Repo) readCommit(h object.Hash) (*object.Commit, error) {
	if v, ok := r.commits.c.Get(string(h)); ok {
		return v.(*object.Commit), nil
	}
	c, err := r.Objects.GetCommit(h)
	if err != nil {
		return nil, fmt.Errorf("read commit %s: %w", shortHash(h), err)
	}
	r.commits.c.SetDefault(string(h), c)
	return c, nil
}

// writeCommit stores c and primes the cache.
func (r *Repo) writeCommit(c *object.Commit) (object.Hash, error) {
	h, err := r.Objects.PutCommit(c)
	if err != nil {
		return "", fmt.Errorf("write commit: %w", err)
	}
	r.commits.c.SetDefault(string(h), c)
	return h, nil
}
