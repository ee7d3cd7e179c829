package cmdexec

import (
	"errors"
	"fmt"
	"time"
)

// TimeoutError reports that the command's wall-clock deadline elapsed and
// the process was killed.
type TimeoutError struct {
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("command timed out after %s", e.After)
}

// KilledError reports that the command was killed because the caller's
// context was cancelled.
type KilledError struct{}

func (e *KilledError) Error() string {
	return "command killed"
}

// ExitError reports a non-zero process exit.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("command exited with code %d", e.Code)
}

// IsTimeout reports whether err is a TimeoutError.
func IsTimeout(err error) bool {
	var t *TimeoutError
	return errors.As(err, &t)
}

// IsKilled reports whether err is a KilledError.
func IsKilled(err error) bool {
	var k *KilledError
	return errors.As(err, &k)
}
