// Package cmdexec runs external commands with line-streamed output.
//
// The deployment engine shells out to helm and kubectl rather than linking
// their logic in-process. This package is the single place that execution
// happens: callers describe a Command, pass sinks for stdout/stderr lines,
// and get back a typed error distinguishing timeouts, cancellation, and
// non-zero exits.
package cmdexec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"
)

// LineSink receives one output line at a time, without the trailing newline.
// A nil sink discards output.
type LineSink func(line string)

// Command describes a single external command invocation.
type Command struct {
	// Bin is the binary to execute, resolved via PATH.
	Bin string

	// Args are the command arguments, excluding the binary name.
	Args []string

	// Env is merged over the parent process environment. Later values win
	// over inherited ones.
	Env map[string]string

	// Timeout bounds the command's wall-clock runtime. Zero means no
	// deadline beyond the caller's context.
	Timeout time.Duration
}

// Runner executes commands. The production implementation is ExecRunner;
// tests substitute scripted fakes.
type Runner interface {
	Run(ctx context.Context, cmd Command, stdout, stderr LineSink) error
}

// ExecRunner runs commands via os/exec.
type ExecRunner struct{}

// NewExecRunner returns a Runner backed by os/exec.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

// Run executes the command and streams its output to the sinks. The process
// is killed when the context is cancelled (KilledError) or when the command
// timeout elapses (TimeoutError). A non-zero exit surfaces as ExitError.
func (r *ExecRunner) Run(ctx context.Context, cmd Command, stdout, stderr LineSink) error {
	if cmd.Bin == "" {
		return fmt.Errorf("command binary not set")
	}

	runCtx := ctx
	if cmd.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, cmd.Timeout)
		defer cancel()
	}

	// #nosec G204 - binary and arguments come from internal descriptors, not user input
	c := exec.CommandContext(runCtx, cmd.Bin, cmd.Args...)
	c.Env = mergedEnv(cmd.Env)

	outWriter := &lineWriter{sink: stdout}
	errWriter := &lineWriter{sink: stderr}
	c.Stdout = outWriter
	c.Stderr = errWriter

	runErr := c.Run()
	outWriter.flush()
	errWriter.flush()

	if runErr == nil {
		return nil
	}

	// Cancellation and deadline both kill the process; the distinction
	// matters to callers, so classify before looking at the exit status.
	if errors.Is(ctx.Err(), context.Canceled) {
		return &KilledError{}
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return &TimeoutError{After: cmd.Timeout}
	}

	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) {
		return &ExitError{Code: exitErr.ExitCode()}
	}

	return fmt.Errorf("running %s: %w", cmd.Bin, runErr)
}

// mergedEnv combines the parent environment with the command's extra
// variables. Extra keys are appended in sorted order; os/exec keeps the last
// value for duplicate keys, so extras override inherited ones.
func mergedEnv(extra map[string]string) []string {
	env := os.Environ()
	if len(extra) == 0 {
		return env
	}

	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		env = append(env, k+"="+extra[k])
	}
	return env
}

// lineWriter splits a byte stream into lines and forwards them to a sink.
// Partial lines are buffered until the next newline or the final flush.
type lineWriter struct {
	sink LineSink
	buf  bytes.Buffer
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.buf.Write(p)
	for {
		i := bytes.IndexByte(w.buf.Bytes(), '\n')
		if i < 0 {
			break
		}
		line := string(w.buf.Next(i))
		w.buf.Next(1)
		w.emit(line)
	}
	return len(p), nil
}

// flush emits any buffered partial line. Called once after the process exits.
func (w *lineWriter) flush() {
	if w.buf.Len() > 0 {
		w.emit(w.buf.String())
		w.buf.Reset()
	}
}

func (w *lineWriter) emit(line string) {
	line = strings.TrimSuffix(line, "\r")
	if w.sink != nil {
		w.sink(line)
	}
}
