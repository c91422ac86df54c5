package retry

import (
	"context"
	"errors"
	"time"

	"github.com/markdave123-py/contexta-ingest/internal/logger"
)

// ErrInvalidMaxAttempts is returned when Do is called with attempts <= 0.
var ErrInvalidMaxAttempts = errors.New("retry: max attempts must be positive")

type permanentError struct {
	err error
}

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent marks err as not worth retrying. Do returns the unwrapped error immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Do runs op up to maxAttempts times, sleeping baseDelay * 2^(attempt-1) between tries.
// It stops early on success, on a Permanent error, or when ctx is done.
// Returns the error from the last attempt if all attempts fail.
func Do(ctx context.Context, maxAttempts int, baseDelay time.Duration, op func(ctx context.Context) error) error {
	if maxAttempts <= 0 {
		return ErrInvalidMaxAttempts
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = op(ctx)
		if lastErr == nil {
			if attempt > 1 {
				logger.Debug("operation succeeded after retry", "attempt", attempt)
			}
			return nil
		}

		var perm *permanentError
		if errors.As(lastErr, &perm) {
			return perm.err
		}

		if attempt == maxAttempts {
			break
		}
		logger.Debug("operation failed, will retry", "attempt", attempt, "max_attempts", maxAttempts, "error", lastErr)

		delay := baseDelay << (attempt - 1)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return lastErr
}
