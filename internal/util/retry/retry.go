package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Policy bounds how an operation is retried. Attempts is the number of
// retries after the first attempt, so the operation runs Attempts+1 times in
// total. Delay is the fixed wait between attempts; upgrade failures are
// typically transient readiness-timing issues, so the delay does not grow.
type Policy struct {
	Attempts int
	Delay    time.Duration
}

// Do runs the operation under the policy. A nil policy means exactly one
// attempt. Context cancellation is respected while waiting between attempts.
//
// Errors wrapped with Fatal() stop the loop immediately; the underlying
// error is returned unwrapped so callers see the operation's own
// classification. On exhausted attempts the last error is returned as-is.
func Do(ctx context.Context, policy *Policy, operation func() error) error {
	attempts := 0
	var delay time.Duration
	if policy != nil {
		attempts = policy.Attempts
		delay = policy.Delay
	}

	var lastErr error
	for attempt := 0; attempt <= attempts; attempt++ {
		err := operation()
		if err == nil {
			return nil
		}
		lastErr = err

		var fatal *FatalError
		if errors.As(err, &fatal) {
			return fatal.Err
		}

		if attempt < attempts {
			select {
			case <-ctx.Done():
				return fmt.Errorf("aborted while waiting to retry after %d attempts: %w", attempt+1, ctx.Err())
			case <-time.After(delay):
			}
		}
	}

	return lastErr
}

// FatalError wraps an error to mark it as fatal (non-retryable).
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string {
	return e.Err.Error()
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// Fatal marks an error as fatal (non-retryable).
// Operations that encounter fatal errors will not be retried.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &FatalError{Err: err}
}

// IsFatal checks if an error is fatal (non-retryable).
func IsFatal(err error) bool {
	var fatalErr *FatalError
	return errors.As(err, &fatalErr)
}
