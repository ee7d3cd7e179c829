package helm

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Qovery/engine-sub003/internal/cmdexec"
)

func TestClassify(t *testing.T) {
	exit1 := &cmdexec.ExitError{Code: 1}

	tests := []struct {
		name   string
		runErr error
		stderr string
		want   ErrorKind
	}{
		{
			name:   "cancellation wins over everything",
			runErr: &cmdexec.KilledError{},
			stderr: "Error: UPGRADE FAILED: another operation (install/upgrade/rollback) is in progress",
			want:   KindKilled,
		},
		{
			name:   "process deadline",
			runErr: &cmdexec.TimeoutError{After: time.Minute},
			stderr: "",
			want:   KindTimeout,
		},
		{
			name:   "locked release",
			runErr: exit1,
			stderr: "Error: UPGRADE FAILED: another operation (install/upgrade/rollback) is in progress",
			want:   KindReleaseLocked,
		},
		{
			name:   "helm rolled the change back",
			runErr: exit1,
			stderr: "Error: UPGRADE FAILED: release failed, and has been rolled back due to atomic being set",
			want:   KindRollbacked,
		},
		{
			name:   "wait timeout on stderr",
			runErr: exit1,
			stderr: "Error: UPGRADE FAILED: timed out waiting for the condition",
			want:   KindTimeout,
		},
		{
			name:   "context deadline text on stderr",
			runErr: exit1,
			stderr: "Error: UPGRADE FAILED: context deadline exceeded",
			want:   KindTimeout,
		},
		{
			name:   "anything else is a command error",
			runErr: exit1,
			stderr: "Error: UPGRADE FAILED: template: loki/templates/config.yaml: parse error",
			want:   KindCmdError,
		},
		{
			name:   "empty stderr is a command error",
			runErr: exit1,
			stderr: "",
			want:   KindCmdError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classify(tt.runErr, tt.stderr))
		})
	}
}

func TestErrorRetryable(t *testing.T) {
	retryable := map[ErrorKind]bool{
		KindInvalidConfig:       false,
		KindReleaseDoesNotExist: false,
		KindReleaseLocked:       false,
		KindCannotRollback:      false,
		KindRollbacked:          false,
		KindTimeout:             true,
		KindKilled:              false,
		KindCmdError:            true,
	}

	for kind, want := range retryable {
		err := &Error{Kind: kind}
		assert.Equal(t, want, err.Retryable(), "kind %s", kind)
	}
}

func TestErrorMessage(t *testing.T) {
	err := &Error{
		Kind:      KindCmdError,
		Chart:     "loki",
		Operation: OpUpgrade,
		Stderr:    "Error: UPGRADE FAILED: something broke",
		EnvVars:   []string{"AWS_ACCESS_KEY_ID", "AWS_SECRET_ACCESS_KEY"},
	}

	msg := err.Error()
	assert.Contains(t, msg, "upgrade")
	assert.Contains(t, msg, `"loki"`)
	assert.Contains(t, msg, "cmd-error")
	assert.Contains(t, msg, "something broke")
	assert.Contains(t, msg, "AWS_ACCESS_KEY_ID")
	// names only, never values
	assert.NotContains(t, msg, "=")
}

func TestErrorMessage_UnderlyingErrorWhenNoStderr(t *testing.T) {
	err := &Error{
		Kind:      KindInvalidConfig,
		Operation: "new-client",
		Err:       errors.New("kubeconfig is not usable: stat /nope: no such file or directory"),
	}
	assert.Contains(t, err.Error(), "kubeconfig is not usable")
}

func TestKindOf(t *testing.T) {
	helmErr := &Error{Kind: KindReleaseLocked, Chart: "loki"}
	wrapped := fmt.Errorf("deploying level 1: %w", helmErr)

	assert.Equal(t, KindReleaseLocked, KindOf(helmErr))
	assert.Equal(t, KindReleaseLocked, KindOf(wrapped))
	assert.Equal(t, ErrorKind(""), KindOf(errors.New("plain")))
	assert.Equal(t, ErrorKind(""), KindOf(nil))

	assert.True(t, IsKind(wrapped, KindReleaseLocked))
	assert.False(t, IsKind(wrapped, KindTimeout))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(&Error{Kind: KindTimeout}))
	assert.True(t, IsRetryable(fmt.Errorf("wrapped: %w", &Error{Kind: KindCmdError})))
	assert.False(t, IsRetryable(&Error{Kind: KindKilled}))
	assert.False(t, IsRetryable(errors.New("not a helm error")))
	assert.False(t, IsRetryable(nil))
}

func TestErrorUnwrap(t *testing.T) {
	inner := &cmdexec.ExitError{Code: 3}
	err := &Error{Kind: KindCmdError, Err: inner}

	var exitErr *cmdexec.ExitError
	assert.True(t, errors.As(err, &exitErr))
	assert.Equal(t, 3, exitErr.Code)
}
