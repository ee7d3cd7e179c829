package charts

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Qovery/engine-sub003/internal/cmdexec"
	"github.com/Qovery/engine-sub003/internal/helm"
)

const (
	kubectlBin     = "kubectl"
	kubectlTimeout = 2 * time.Minute
)

// applyCRDs force-applies the chart's declared CRD files through
// kubectl server-side apply, taking over fields owned by previous
// managers. Helm does not reliably upgrade existing CRDs, so this runs
// outside the release upgrade and is critical when it fails.
func applyCRDs(ctx context.Context, deps *Deps, chartName string, update *helm.CRDsUpdate) error {
	for _, resource := range update.Resources {
		file := filepath.Join(update.Path, resource)

		var errLines []string
		cmd := cmdexec.Command{
			Bin: kubectlBin,
			Args: []string{
				"apply",
				"--kubeconfig", deps.Kubeconfig,
				"--server-side",
				"--force-conflicts",
				"--validate=false",
				"-f", file,
			},
			Env:     deps.Env,
			Timeout: kubectlTimeout,
		}

		deps.Log.Info("applying CRDs", "file", file)
		err := deps.Runner.Run(ctx, cmd, logSink(deps.Log, "stdout"), func(line string) {
			errLines = append(errLines, line)
		})
		if err != nil {
			return fmt.Errorf("failed to apply CRDs of chart %s from %s: %w: %s",
				chartName, file, err, strings.Join(errLines, "\n"))
		}
	}
	return nil
}

// deleteCRDs removes the objects declared in the chart's CRD files,
// ignoring ones already gone. Runs best-effort on the destroy path.
func deleteCRDs(ctx context.Context, deps *Deps, update *helm.CRDsUpdate) error {
	for _, resource := range update.Resources {
		file := filepath.Join(update.Path, resource)

		data, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("failed to read CRD file %s: %w", file, err)
		}
		if err := deps.Kube.DeleteManifests(ctx, data); err != nil {
			return err
		}
	}
	return nil
}
