//go:build !unix

package repo

import (
	"fmt"
	"os"
	"time"
)

// acquireRepoLock falls back to an O_EXCL lockfile where flock is missing.
func acquireRepoLock(path string) (func() error, error) {
	lockPath := path + ".held"
	deadline := time.Now().Add(repoLockWaitLimit)
	for {
		f, err := os.OpenFile(lockPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			f.Close()
			return func() error { return os.Remove(lockPath) }, nil
		}
		if !os.IsExist(err) {
			return nil, err
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("timeout waiting for lock %q", lockPath)
		}
		time.Sleep(repoLockRetryDelay)
	}
}
