package repo

import (
	"time"

	"github.com/deevcs/dee/pkg/logging"
)

const (
	repoLockRetryDelay = 10 * time.Millisecond
	repoLockWaitLimit  = 10 * time.Second
)

// WithLock runs fn while holding the advisory exclusive repository lock.
// The lock is released on every exit path, including panics and errors.
// Callers must not nest WithLock on the same repository.
func (r *Repo) WithLock(op string, fn func() error) error {
	unlock, err := acquireRepoLock(r.lockPath())
	if err != nil {
		return storageErr(op+": lock", r.lockPath(), err)
	}
	defer func() {
		if err := unlock(); err != nil {
			logging.WarnErr("release repository lock", err, "op", op)
		}
	}()
	logging.Debug("repository locked", "op", op, "root", r.RootDir)
	return fn()
}
