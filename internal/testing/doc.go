// Package testing provides test utilities, fakes, and fixtures for unit and integration tests.
//
// This package centralizes common testing patterns to avoid duplication across test files:
//   - FakeRunner: Scripted subprocess runner with per-subcommand response queues
//   - StatusJSON / ListJSON: Canned helm CLI JSON payloads
//   - TempKubeconfig: Minimal kubeconfig written to a test temp directory
//
// Usage:
//
//	runner := testing.NewFakeRunner().
//	    On("status", testing.Response{Stderr: []string{testing.NotFoundStderr}, Err: errors.New("exit 1")}).
//	    On("upgrade", testing.Response{Stdout: []string{"Release installed"}})
//
//	calls := runner.CallsFor("upgrade")
package testing
