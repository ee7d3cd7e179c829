package charts

import (
	"context"
	"fmt"
	"os"

	"github.com/Qovery/engine-sub003/internal/helm"
	"github.com/Qovery/engine-sub003/internal/k8s"
	"github.com/Qovery/engine-sub003/internal/util/retry"
)

// CommonChart runs the standard helm-driven lifecycle for one chart:
// crash-pod cleanup and CRD force-apply before the mutation, snapshot
// around it, retry-wrapped upgrade (or uninstall), then installation
// verification and companion reconciliation.
type CommonChart struct {
	ChartInfo helm.ChartInfo

	// PodsSelector scopes crash-pod cleanup and, when the checker has
	// none of its own, installation verification. Empty means every pod
	// in the chart's namespace.
	PodsSelector string

	// Checker verifies the release after a deploy. Optional.
	Checker InstallationChecker

	// Companion is the autoscaler-config chart bound to this one.
	// Optional.
	Companion *VPACompanion
}

var _ Chart = (*CommonChart)(nil)

// Info returns the chart descriptor.
func (c *CommonChart) Info() *helm.ChartInfo {
	return &c.ChartInfo
}

// CheckPrerequisites verifies every referenced local values file exists
// before any cluster state is touched.
func (c *CommonChart) CheckPrerequisites() error {
	for _, file := range c.ChartInfo.ValuesFiles {
		if _, err := os.Stat(file); err != nil {
			return fmt.Errorf("values file for chart %s: %w", c.ChartInfo.Name, err)
		}
	}
	return nil
}

// PreExec prepares the namespace for a deploy: best-effort deletion of
// crash-looping pods, force-apply of declared CRDs (critical, helm does
// not reliably upgrade existing CRDs), and the bound companion chart
// first. Destroys have nothing to prepare.
func (c *CommonChart) PreExec(ctx context.Context, deps *Deps, payload Payload) error {
	if c.ChartInfo.Action != helm.Deploy {
		return nil
	}

	deleted, err := deps.Kube.DeleteCrashLoopingPods(ctx, c.ChartInfo.Namespace, c.PodsSelector)
	if err != nil {
		deps.Log.Error(err, "failed to clean crash-looping pods")
	} else if len(deleted) > 0 {
		deps.Log.Info("cleaned crash-looping pods", "pods", deleted)
	}

	if c.ChartInfo.CRDsUpdate != nil {
		if err := applyCRDs(ctx, deps, c.ChartInfo.Name, c.ChartInfo.CRDsUpdate); err != nil {
			return err
		}
		payload[crdsAppliedKey] = "true"
	}

	if c.Companion != nil {
		if err := c.runCompanion(ctx, deps, c.Companion.ActionFor(c.ChartInfo.Action)); err != nil {
			return err
		}
	}

	return nil
}

// Exec runs the chart's mutating command.
func (c *CommonChart) Exec(ctx context.Context, deps *Deps, payload Payload) error {
	if c.ChartInfo.Action == helm.Destroy {
		return c.execDestroy(ctx, deps)
	}
	return c.execDeploy(ctx, deps, payload)
}

func (c *CommonChart) execDeploy(ctx context.Context, deps *Deps, payload Payload) error {
	chart := &c.ChartInfo

	// An installed version predating the last breaking version cannot
	// be upgraded in place; skip-if-installed only counts once that
	// guard has passed.
	if chart.LastBreakingVersion != nil || chart.SkipIfAlreadyInstalled {
		installed, err := deps.Helm.InstalledChartVersion(ctx, chart)
		if err != nil {
			deps.Log.Error(err, "cannot determine installed chart version, proceeding with upgrade")
		}
		if installed != nil {
			if chart.LastBreakingVersion != nil && installed.LessThan(chart.LastBreakingVersion) {
				deps.Log.Info("installed version predates last breaking version, uninstalling first",
					"installed", installed.String(), "breaking", chart.LastBreakingVersion.String())
				if err := deps.Helm.Uninstall(ctx, chart); err != nil {
					return err
				}
			} else if chart.SkipIfAlreadyInstalled {
				deps.Log.Info("chart already installed, skipping", "installed", installed.String())
				return nil
			}
		}
	}

	if len(chart.BackupResources) > 0 {
		if err := takeSnapshot(ctx, deps, chart, payload); err != nil {
			deps.Log.Error(err, "chart resources are not backupable")
		}
	}
	defer discardSnapshot(ctx, deps, payload)

	// PreExec normally applies the CRDs already; the payload marker
	// keeps this gate idempotent when it did.
	if chart.CRDsUpdate != nil && payload[crdsAppliedKey] == "" {
		if err := applyCRDs(ctx, deps, chart.Name, chart.CRDsUpdate); err != nil {
			return err
		}
		payload[crdsAppliedKey] = "true"
	}

	upgrade := func() error {
		err := deps.Helm.Upgrade(ctx, chart, logSink(deps.Log, "stdout"), logSink(deps.Log, "stderr"))
		if err != nil && !helm.IsRetryable(err) {
			return retry.Fatal(err)
		}
		return err
	}
	if err := retry.Do(ctx, chart.Retry, upgrade); err != nil {
		return err
	}

	restoreSnapshot(ctx, deps, payload)
	return nil
}

func (c *CommonChart) execDestroy(ctx context.Context, deps *Deps) error {
	if c.ChartInfo.CRDsUpdate != nil {
		if err := deleteCRDs(ctx, deps, c.ChartInfo.CRDsUpdate); err != nil {
			deps.Log.Error(err, "failed to delete chart CRDs")
		}
	}
	return deps.Helm.Uninstall(ctx, &c.ChartInfo)
}

// PostExec verifies the installation and reconciles the companion to
// the parent's action: a destroyed parent tears its companion down too.
func (c *CommonChart) PostExec(ctx context.Context, deps *Deps, payload Payload) error {
	if c.ChartInfo.Action == helm.Deploy && c.Checker != nil && !c.ChartInfo.DryRun {
		if err := c.Checker.Check(ctx, deps, &c.ChartInfo); err != nil {
			return fmt.Errorf("installation check failed: %w", err)
		}
	}

	if c.ChartInfo.Action == helm.Destroy && c.Companion != nil {
		if err := c.runCompanion(ctx, deps, helm.Destroy); err != nil {
			return err
		}
	}

	return nil
}

// OnDeployFailure dumps the recent events of the chart's namespace so
// the deployment error arrives with its cluster-side context.
func (c *CommonChart) OnDeployFailure(ctx context.Context, deps *Deps, payload Payload, deployErr error) {
	deps.Log.Error(deployErr, "chart deployment failed, dumping recent namespace events")

	events, err := deps.Kube.RecentEvents(ctx, c.ChartInfo.Namespace)
	if err != nil {
		deps.Log.Error(err, "failed to dump namespace events")
		return
	}
	for i := range events {
		deps.Log.Info("namespace event", "event", k8s.FormatEvent(&events[i]))
	}
}

// runCompanion deploys or tears down the bound companion chart.
func (c *CommonChart) runCompanion(ctx context.Context, deps *Deps, action helm.Action) error {
	info := c.Companion.ChartInfo
	info.Action = action
	log := deps.Log.WithValues("companion", info.Name)

	switch action {
	case helm.Destroy:
		log.Info("tearing down autoscaler companion")
		if err := deps.Helm.Uninstall(ctx, &info); err != nil {
			return fmt.Errorf("companion %s: %w", info.Name, err)
		}
	default:
		log.Info("deploying autoscaler companion")
		if err := deps.Helm.Upgrade(ctx, &info, logSink(log, "stdout"), logSink(log, "stderr")); err != nil {
			return fmt.Errorf("companion %s: %w", info.Name, err)
		}
	}
	return nil
}
