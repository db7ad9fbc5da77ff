package remote

import (
	"context"
	"errors"
	"time"

	"github.com/deevcs/dee/pkg/logging"
)

const defaultRetryBackoff = 500 * time.Millisecond

// retryTransfer runs fn up to maxAttempts times with exponential backoff.
// Context errors and errors that are not transfer failures are returned
// immediately.
func retryTransfer(ctx context.Context, op string, maxAttempts int, backoff time.Duration, fn func() error) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if backoff <= 0 {
		backoff = defaultRetryBackoff
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			logging.Warn("retrying transfer", "op", op, "attempt", attempt+1, "err", lastErr)
			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return transferErr(op, "", ctx.Err())
			case <-timer.C:
			}
			backoff *= 2
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !isRetryable(lastErr) {
			return lastErr
		}
	}
	return lastErr
}

func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return errors.Is(err, ErrTransferFailure)
}
