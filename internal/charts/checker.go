package charts

import (
	"context"
	"fmt"
	"time"

	"github.com/Qovery/engine-sub003/internal/helm"
)

// InstallationChecker verifies that a deployed release actually works,
// beyond helm reporting the upgrade as complete.
type InstallationChecker interface {
	Check(ctx context.Context, deps *Deps, chart *helm.ChartInfo) error
}

// PodsReadyChecker passes once every pod under the label selector in
// the chart's namespace is running and ready.
type PodsReadyChecker struct {
	// LabelSelector scopes the pods to check. Empty means every pod in
	// the namespace.
	LabelSelector string

	// Timeout bounds the wait. Zero falls back to the chart's own
	// timeout.
	Timeout time.Duration
}

func (c *PodsReadyChecker) Check(ctx context.Context, deps *Deps, chart *helm.ChartInfo) error {
	timeout := c.Timeout
	if timeout == 0 {
		timeout = chart.EffectiveTimeout()
	}
	return deps.Kube.WaitForPodsReady(ctx, chart.Namespace, c.LabelSelector, timeout)
}

// ReleaseDeployedChecker passes once helm reports the release status as
// deployed. Cheaper than a pods wait, useful for charts that create no
// workload pods.
type ReleaseDeployedChecker struct{}

func (c *ReleaseDeployedChecker) Check(ctx context.Context, deps *Deps, chart *helm.ChartInfo) error {
	status, err := deps.Helm.Status(ctx, chart)
	if err != nil {
		return err
	}
	if !status.Deployed() {
		return fmt.Errorf("release %s status is %q, expected deployed", chart.Name, status.Status)
	}
	return nil
}
