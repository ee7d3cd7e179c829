package testing

import (
	"context"
	"sync"

	"github.com/Qovery/engine-sub003/internal/cmdexec"
)

// Response is one scripted outcome for a FakeRunner invocation.
type Response struct {
	Stdout []string
	Stderr []string
	Err    error
}

// FakeRunner is a scripted cmdexec.Runner. Responses are queued per
// subcommand (the first positional argument, e.g. "status" or "upgrade")
// and consumed in FIFO order; a call with no scripted response succeeds
// with no output. Every call is recorded for transcript assertions.
type FakeRunner struct {
	mu        sync.Mutex
	calls     []cmdexec.Command
	responses map[string][]Response
}

// NewFakeRunner creates an empty scripted runner.
func NewFakeRunner() *FakeRunner {
	return &FakeRunner{responses: make(map[string][]Response)}
}

// On queues a response for the given subcommand and returns the runner
// for chaining.
func (f *FakeRunner) On(subcommand string, resp Response) *FakeRunner {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[subcommand] = append(f.responses[subcommand], resp)
	return f
}

// Run implements cmdexec.Runner.
func (f *FakeRunner) Run(_ context.Context, cmd cmdexec.Command, stdout, stderr cmdexec.LineSink) error {
	f.mu.Lock()
	f.calls = append(f.calls, cmd)
	var resp Response
	key := subcommandOf(cmd)
	if queue := f.responses[key]; len(queue) > 0 {
		resp = queue[0]
		f.responses[key] = queue[1:]
	}
	f.mu.Unlock()

	for _, line := range resp.Stdout {
		if stdout != nil {
			stdout(line)
		}
	}
	for _, line := range resp.Stderr {
		if stderr != nil {
			stderr(line)
		}
	}
	return resp.Err
}

// Calls returns every command run so far, in order.
func (f *FakeRunner) Calls() []cmdexec.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]cmdexec.Command, len(f.calls))
	copy(out, f.calls)
	return out
}

// CallsFor returns the recorded commands whose subcommand matches.
func (f *FakeRunner) CallsFor(subcommand string) []cmdexec.Command {
	var out []cmdexec.Command
	for _, cmd := range f.Calls() {
		if subcommandOf(cmd) == subcommand {
			out = append(out, cmd)
		}
	}
	return out
}

func subcommandOf(cmd cmdexec.Command) string {
	if len(cmd.Args) == 0 {
		return ""
	}
	return cmd.Args[0]
}
