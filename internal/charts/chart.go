// Package charts implements the staged deployment pipeline that takes a
// chart descriptor through prerequisite checks, pre-deploy fixes, the
// mutating helm command, post-deploy verification, and failure
// diagnostics, plus the leveled sequencer that orders charts into
// dependency stages.
package charts

import (
	"context"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/go-logr/logr"
	corev1 "k8s.io/api/core/v1"

	"github.com/Qovery/engine-sub003/internal/cmdexec"
	"github.com/Qovery/engine-sub003/internal/helm"
	"github.com/Qovery/engine-sub003/internal/metrics"
)

// Payload is the key/value bag threaded through one chart's pipeline
// stages. It is created per run and discarded at the end.
type Payload map[string]string

// Payload keys shared between stages.
const (
	snapshotDirKey    = "snapshot-dir"
	snapshotPrefixKey = "snapshot-prefix"
	crdsAppliedKey    = "crds-applied"
)

// HelmClient is the release-management surface the pipeline drives.
type HelmClient interface {
	Status(ctx context.Context, chart *helm.ChartInfo) (*helm.ReleaseStatus, error)
	Upgrade(ctx context.Context, chart *helm.ChartInfo, stdout, stderr cmdexec.LineSink) error
	Uninstall(ctx context.Context, chart *helm.ChartInfo) error
	InstalledChartVersion(ctx context.Context, chart *helm.ChartInfo) (*semver.Version, error)
}

// Kube is the Kubernetes surface the pipeline uses around helm.
type Kube interface {
	DeleteCrashLoopingPods(ctx context.Context, namespace, labelSelector string) ([]string, error)
	RecentEvents(ctx context.Context, namespace string) ([]corev1.Event, error)
	SnapshotResources(ctx context.Context, namespace string, resources []string, dir string) ([]string, error)
	RestoreSnapshot(ctx context.Context, dir, fieldManager string) error
	DeleteManifests(ctx context.Context, manifests []byte) error
	WaitForPodsReady(ctx context.Context, namespace, labelSelector string, timeout time.Duration) error
}

// SnapshotStore is the optional off-cluster archive for resource
// snapshots taken before risky upgrades.
type SnapshotStore interface {
	UploadSnapshot(ctx context.Context, prefix, dir string) ([]string, error)
	DownloadSnapshot(ctx context.Context, prefix, dir string) ([]string, error)
	DeleteSnapshot(ctx context.Context, prefix string) error
}

// Deps bundles the collaborators a chart pipeline runs against. Store
// is optional; everything else is required.
type Deps struct {
	Helm       HelmClient
	Kube       Kube
	Runner     cmdexec.Runner
	Store      SnapshotStore
	Kubeconfig string
	Env        map[string]string
	Log        logr.Logger
}

// Chart is one deployable unit in a plan level. CommonChart is the
// standard implementation; tests substitute scripted ones.
type Chart interface {
	Info() *helm.ChartInfo
	CheckPrerequisites() error
	PreExec(ctx context.Context, deps *Deps, payload Payload) error
	Exec(ctx context.Context, deps *Deps, payload Payload) error
	PostExec(ctx context.Context, deps *Deps, payload Payload) error
	OnDeployFailure(ctx context.Context, deps *Deps, payload Payload, deployErr error)
}

// Pipeline drives charts through their stages with a shared set of
// collaborators.
type Pipeline struct {
	deps Deps
}

// NewPipeline creates a Pipeline around the given collaborators.
func NewPipeline(deps Deps) *Pipeline {
	return &Pipeline{deps: deps}
}

// Run executes every stage of one chart in order. A stage failure
// aborts the remaining stages; an Exec failure additionally triggers
// the chart's failure diagnostics before the error is returned.
func (p *Pipeline) Run(ctx context.Context, chart Chart) error {
	info := chart.Info()
	log := p.deps.Log.WithValues("chart", info.Name, "namespace", info.Namespace, "action", string(info.Action))
	deps := p.deps
	deps.Log = log

	payload := Payload{}
	start := time.Now()

	err := p.runStages(ctx, chart, &deps, payload)
	metrics.RecordChartRun(info.Name, string(info.Action), err, time.Since(start))
	if err != nil {
		return err
	}

	log.Info("chart completed", "duration", time.Since(start).Round(time.Millisecond).String())
	return nil
}

func (p *Pipeline) runStages(ctx context.Context, chart Chart, deps *Deps, payload Payload) error {
	if err := chart.CheckPrerequisites(); err != nil {
		return err
	}
	if err := chart.PreExec(ctx, deps, payload); err != nil {
		return err
	}
	if err := chart.Exec(ctx, deps, payload); err != nil {
		chart.OnDeployFailure(ctx, deps, payload, err)
		return err
	}
	return chart.PostExec(ctx, deps, payload)
}

// logSink forwards subprocess output lines to the logger at debug
// verbosity, tagged with the stream they came from.
func logSink(log logr.Logger, stream string) cmdexec.LineSink {
	return func(line string) {
		log.V(1).Info(line, "stream", stream)
	}
}
