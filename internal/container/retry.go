// SPDX-License-Identifier: MPL-2.0

package container

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

const (
	queryMaxAttempts = 3
	queryBaseBackoff = 200 * time.Millisecond
)

// RetryWithBackoff retries op up to maxAttempts times with exponential backoff.
// It checks ctx.Err() between retries to respect cancellation immediately.
//
// op returns (shouldRetry bool, err error). If shouldRetry is false, err is
// returned immediately (nil on success, non-nil on permanent failure).
// On retry exhaustion, the last error is returned.
func RetryWithBackoff(
	ctx context.Context,
	maxAttempts int,
	baseBackoff time.Duration,
	op func(attempt int) (retry bool, err error),
) error {
	var lastErr error
	for attempt := range maxAttempts {
		if attempt > 0 {
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("retry aborted: %w", err)
			}
			time.Sleep(baseBackoff * time.Duration(1<<(attempt-1)))
		}

		retry, err := op(attempt)
		if err == nil {
			return nil
		}
		if !retry {
			return err
		}
		lastErr = err
	}
	return lastErr
}

// queryWithRetry runs a read-only engine command, retrying transient
// failures. Only queries go through here: retrying a mutating command such
// as "run --name" could collide with its own first attempt.
func (e *BaseCLIEngine) queryWithRetry(ctx context.Context, args ...string) (string, error) {
	var out string
	err := RetryWithBackoff(ctx, queryMaxAttempts, queryBaseBackoff, func(attempt int) (bool, error) {
		var runErr error
		out, runErr = e.RunCommand(ctx, args...)
		if runErr != nil && IsTransientError(runErr) {
			slog.Debug("transient engine error, retrying", "attempt", attempt+1, "args", args, "error", runErr)
			return true, runErr
		}
		return false, runErr
	})
	return out, err
}
