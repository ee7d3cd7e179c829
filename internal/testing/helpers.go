package testing

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// minimal but structurally valid kubeconfig for clients that parse it
const kubeconfigYAML = `apiVersion: v1
kind: Config
clusters:
- cluster:
    server: https://127.0.0.1:6443
  name: test
contexts:
- context:
    cluster: test
    user: test
  name: test
current-context: test
users:
- name: test
  user:
    token: test-token
`

// TestContext returns a context with a reasonable timeout for tests.
func TestContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// TempKubeconfig writes a minimal kubeconfig into the test's temp
// directory and returns its path.
func TempKubeconfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kubeconfig.yaml")
	if err := os.WriteFile(path, []byte(kubeconfigYAML), 0600); err != nil {
		t.Fatalf("failed to write kubeconfig: %v", err)
	}
	return path
}

// TempChartDir creates an empty chart directory for descriptors that need
// a writable chart path.
func TempChartDir(t *testing.T) string {
	t.Helper()
	return t.TempDir()
}
