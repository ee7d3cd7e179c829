package helm

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Qovery/engine-sub003/internal/cmdexec"
)

// ErrorKind is the closed classification of a failed helm operation.
type ErrorKind string

const (
	// KindInvalidConfig marks unusable engine input, e.g. a bad
	// kubeconfig path or an unwritable chart directory. Fatal.
	KindInvalidConfig ErrorKind = "invalid-config"
	// KindReleaseDoesNotExist marks a probe of an absent release.
	// Idempotent operations treat it as "nothing to clean up".
	KindReleaseDoesNotExist ErrorKind = "release-does-not-exist"
	// KindReleaseLocked marks a release stuck in a pending-* state by a
	// concurrent or killed helm process.
	KindReleaseLocked ErrorKind = "release-locked"
	// KindCannotRollback marks a rollback of revision 1, which has no
	// predecessor to roll back to.
	KindCannotRollback ErrorKind = "cannot-rollback"
	// KindRollbacked marks an upgrade that helm itself undid.
	KindRollbacked ErrorKind = "rollbacked"
	// KindTimeout marks a command that exceeded its deadline or reported
	// a wait timeout on stderr.
	KindTimeout ErrorKind = "timeout"
	// KindKilled marks a command terminated by caller cancellation.
	// Never retried.
	KindKilled ErrorKind = "killed"
	// KindCmdError is the catch-all for any other command failure.
	KindCmdError ErrorKind = "cmd-error"
)

// Stderr fragments helm emits for the states the engine must recognize.
const (
	notFoundMessage   = "release: not found"
	lockedMessage     = "another operation (install/upgrade/rollback) is in progress"
	rolledBackMessage = "has been rolled back"
)

// debugMarker tags helm's verbose chatter. Lines carrying it are still
// forwarded to output sinks but never count as failure evidence.
const debugMarker = " [debug] "

// Error is a classified helm operation failure. It always carries the
// chart name, the operation kind, the accumulated stderr, and the names of
// the environment variables the command ran with. Values stay redacted.
type Error struct {
	Kind      ErrorKind
	Chart     string
	Operation string
	Stderr    string
	EnvVars   []string
	Err       error
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "helm %s", e.Operation)
	if e.Chart != "" {
		fmt.Fprintf(&b, " of chart %q", e.Chart)
	}
	fmt.Fprintf(&b, " failed (%s)", e.Kind)
	if e.Stderr != "" {
		fmt.Fprintf(&b, ": %s", e.Stderr)
	} else if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if len(e.EnvVars) > 0 {
		fmt.Fprintf(&b, " (env: %s)", strings.Join(e.EnvVars, ", "))
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether another attempt can reasonably succeed.
// Timeouts and generic command failures are usually transient readiness
// issues; everything else either cannot change on retry or must not be
// retried (cancellation).
func (e *Error) Retryable() bool {
	return e.Kind == KindTimeout || e.Kind == KindCmdError
}

// KindOf returns err's classification, or the empty kind when err is not a
// helm error.
func KindOf(err error) ErrorKind {
	var helmErr *Error
	if errors.As(err, &helmErr) {
		return helmErr.Kind
	}
	return ""
}

// IsKind reports whether err carries the given classification.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

// IsRetryable reports whether err is a helm error worth another attempt.
func IsRetryable(err error) bool {
	var helmErr *Error
	if errors.As(err, &helmErr) {
		return helmErr.Retryable()
	}
	return false
}

// classify maps a failed invocation to exactly one error kind. The
// subprocess verdict (killed, deadline) wins over stderr text; stderr
// fragments are checked from most to least specific.
func classify(runErr error, stderr string) ErrorKind {
	switch {
	case cmdexec.IsKilled(runErr):
		return KindKilled
	case cmdexec.IsTimeout(runErr):
		return KindTimeout
	case strings.Contains(stderr, lockedMessage):
		return KindReleaseLocked
	case strings.Contains(stderr, rolledBackMessage):
		return KindRollbacked
	case strings.Contains(stderr, "timed out waiting"),
		strings.Contains(stderr, "deadline exceeded"):
		return KindTimeout
	default:
		return KindCmdError
	}
}
