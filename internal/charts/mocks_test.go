package charts

import (
	"context"
	"sync"
	"time"

	"github.com/Masterminds/semver/v3"
	corev1 "k8s.io/api/core/v1"

	"github.com/Qovery/engine-sub003/internal/cmdexec"
	"github.com/Qovery/engine-sub003/internal/helm"
)

// MockHelm is a mock implementation of HelmClient for testing.
type MockHelm struct {
	mu sync.Mutex

	// Configurable responses
	StatusFunc                func(ctx context.Context, chart *helm.ChartInfo) (*helm.ReleaseStatus, error)
	UpgradeFunc               func(ctx context.Context, chart *helm.ChartInfo) error
	UninstallFunc             func(ctx context.Context, chart *helm.ChartInfo) error
	InstalledChartVersionFunc func(ctx context.Context, chart *helm.ChartInfo) (*semver.Version, error)

	// Call tracking
	StatusCalls           []string
	UpgradeCalls          []helm.ChartInfo
	UninstallCalls        []helm.ChartInfo
	InstalledVersionCalls []string
	// Ops records every call across methods as "<op> <chart>", in order.
	Ops []string
}

func (m *MockHelm) Status(ctx context.Context, chart *helm.ChartInfo) (*helm.ReleaseStatus, error) {
	m.mu.Lock()
	m.StatusCalls = append(m.StatusCalls, chart.Name)
	m.Ops = append(m.Ops, "status "+chart.Name)
	m.mu.Unlock()

	if m.StatusFunc != nil {
		return m.StatusFunc(ctx, chart)
	}
	return &helm.ReleaseStatus{Revision: 1, Status: "deployed"}, nil
}

func (m *MockHelm) Upgrade(ctx context.Context, chart *helm.ChartInfo, stdout, stderr cmdexec.LineSink) error {
	m.mu.Lock()
	m.UpgradeCalls = append(m.UpgradeCalls, *chart)
	m.Ops = append(m.Ops, "upgrade "+chart.Name)
	m.mu.Unlock()

	if m.UpgradeFunc != nil {
		return m.UpgradeFunc(ctx, chart)
	}
	return nil
}

func (m *MockHelm) Uninstall(ctx context.Context, chart *helm.ChartInfo) error {
	m.mu.Lock()
	m.UninstallCalls = append(m.UninstallCalls, *chart)
	m.Ops = append(m.Ops, "uninstall "+chart.Name)
	m.mu.Unlock()

	if m.UninstallFunc != nil {
		return m.UninstallFunc(ctx, chart)
	}
	return nil
}

func (m *MockHelm) InstalledChartVersion(ctx context.Context, chart *helm.ChartInfo) (*semver.Version, error) {
	m.mu.Lock()
	m.InstalledVersionCalls = append(m.InstalledVersionCalls, chart.Name)
	m.Ops = append(m.Ops, "installed-version "+chart.Name)
	m.mu.Unlock()

	if m.InstalledChartVersionFunc != nil {
		return m.InstalledChartVersionFunc(ctx, chart)
	}
	return nil, nil // Default: not installed
}

// UpgradeNames returns the chart names passed to Upgrade, in order.
func (m *MockHelm) UpgradeNames() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.UpgradeCalls))
	for _, call := range m.UpgradeCalls {
		names = append(names, call.Name)
	}
	return names
}

// CrashPodCall tracks arguments to DeleteCrashLoopingPods.
type CrashPodCall struct {
	Namespace string
	Selector  string
}

// SnapshotCall tracks arguments to SnapshotResources.
type SnapshotCall struct {
	Namespace string
	Resources []string
	Dir       string
}

// RestoreCall tracks arguments to RestoreSnapshot.
type RestoreCall struct {
	Dir          string
	FieldManager string
}

// WaitCall tracks arguments to WaitForPodsReady.
type WaitCall struct {
	Namespace string
	Selector  string
	Timeout   time.Duration
}

// MockKube is a mock implementation of Kube for testing.
type MockKube struct {
	mu sync.Mutex

	// Configurable responses
	DeleteCrashLoopingPodsFunc func(ctx context.Context, namespace, labelSelector string) ([]string, error)
	RecentEventsFunc           func(ctx context.Context, namespace string) ([]corev1.Event, error)
	SnapshotResourcesFunc      func(ctx context.Context, namespace string, resources []string, dir string) ([]string, error)
	RestoreSnapshotFunc        func(ctx context.Context, dir, fieldManager string) error
	DeleteManifestsFunc        func(ctx context.Context, manifests []byte) error
	WaitForPodsReadyFunc       func(ctx context.Context, namespace, labelSelector string, timeout time.Duration) error

	// Call tracking
	CrashPodCalls        []CrashPodCall
	RecentEventsCalls    []string
	SnapshotCalls        []SnapshotCall
	RestoreCalls         []RestoreCall
	DeleteManifestsCalls [][]byte
	WaitCalls            []WaitCall
}

func (m *MockKube) DeleteCrashLoopingPods(ctx context.Context, namespace, labelSelector string) ([]string, error) {
	m.mu.Lock()
	m.CrashPodCalls = append(m.CrashPodCalls, CrashPodCall{Namespace: namespace, Selector: labelSelector})
	m.mu.Unlock()

	if m.DeleteCrashLoopingPodsFunc != nil {
		return m.DeleteCrashLoopingPodsFunc(ctx, namespace, labelSelector)
	}
	return nil, nil
}

func (m *MockKube) RecentEvents(ctx context.Context, namespace string) ([]corev1.Event, error) {
	m.mu.Lock()
	m.RecentEventsCalls = append(m.RecentEventsCalls, namespace)
	m.mu.Unlock()

	if m.RecentEventsFunc != nil {
		return m.RecentEventsFunc(ctx, namespace)
	}
	return nil, nil
}

func (m *MockKube) SnapshotResources(ctx context.Context, namespace string, resources []string, dir string) ([]string, error) {
	m.mu.Lock()
	m.SnapshotCalls = append(m.SnapshotCalls, SnapshotCall{Namespace: namespace, Resources: resources, Dir: dir})
	m.mu.Unlock()

	if m.SnapshotResourcesFunc != nil {
		return m.SnapshotResourcesFunc(ctx, namespace, resources, dir)
	}
	return nil, nil // Default: nothing to snapshot
}

func (m *MockKube) RestoreSnapshot(ctx context.Context, dir, fieldManager string) error {
	m.mu.Lock()
	m.RestoreCalls = append(m.RestoreCalls, RestoreCall{Dir: dir, FieldManager: fieldManager})
	m.mu.Unlock()

	if m.RestoreSnapshotFunc != nil {
		return m.RestoreSnapshotFunc(ctx, dir, fieldManager)
	}
	return nil
}

func (m *MockKube) DeleteManifests(ctx context.Context, manifests []byte) error {
	m.mu.Lock()
	m.DeleteManifestsCalls = append(m.DeleteManifestsCalls, manifests)
	m.mu.Unlock()

	if m.DeleteManifestsFunc != nil {
		return m.DeleteManifestsFunc(ctx, manifests)
	}
	return nil
}

func (m *MockKube) WaitForPodsReady(ctx context.Context, namespace, labelSelector string, timeout time.Duration) error {
	m.mu.Lock()
	m.WaitCalls = append(m.WaitCalls, WaitCall{Namespace: namespace, Selector: labelSelector, Timeout: timeout})
	m.mu.Unlock()

	if m.WaitForPodsReadyFunc != nil {
		return m.WaitForPodsReadyFunc(ctx, namespace, labelSelector, timeout)
	}
	return nil
}

// TransferCall tracks arguments to UploadSnapshot and DownloadSnapshot.
type TransferCall struct {
	Prefix string
	Dir    string
}

// MockStore is a mock implementation of SnapshotStore for testing.
type MockStore struct {
	mu sync.Mutex

	// Configurable responses
	UploadSnapshotFunc   func(ctx context.Context, prefix, dir string) ([]string, error)
	DownloadSnapshotFunc func(ctx context.Context, prefix, dir string) ([]string, error)
	DeleteSnapshotFunc   func(ctx context.Context, prefix string) error

	// Call tracking
	UploadCalls   []TransferCall
	DownloadCalls []TransferCall
	DeleteCalls   []string
}

func (m *MockStore) UploadSnapshot(ctx context.Context, prefix, dir string) ([]string, error) {
	m.mu.Lock()
	m.UploadCalls = append(m.UploadCalls, TransferCall{Prefix: prefix, Dir: dir})
	m.mu.Unlock()

	if m.UploadSnapshotFunc != nil {
		return m.UploadSnapshotFunc(ctx, prefix, dir)
	}
	return []string{prefix}, nil
}

func (m *MockStore) DownloadSnapshot(ctx context.Context, prefix, dir string) ([]string, error) {
	m.mu.Lock()
	m.DownloadCalls = append(m.DownloadCalls, TransferCall{Prefix: prefix, Dir: dir})
	m.mu.Unlock()

	if m.DownloadSnapshotFunc != nil {
		return m.DownloadSnapshotFunc(ctx, prefix, dir)
	}
	return nil, nil
}

func (m *MockStore) DeleteSnapshot(ctx context.Context, prefix string) error {
	m.mu.Lock()
	m.DeleteCalls = append(m.DeleteCalls, prefix)
	m.mu.Unlock()

	if m.DeleteSnapshotFunc != nil {
		return m.DeleteSnapshotFunc(ctx, prefix)
	}
	return nil
}

// scriptedChart is a minimal Chart that records which stages ran.
type scriptedChart struct {
	mu     sync.Mutex
	info   helm.ChartInfo
	stages []string

	CheckErr error
	PreErr   error
	PostErr  error
	ExecFunc func(ctx context.Context) error
}

func (c *scriptedChart) record(stage string) {
	c.mu.Lock()
	c.stages = append(c.stages, stage)
	c.mu.Unlock()
}

func (c *scriptedChart) Info() *helm.ChartInfo { return &c.info }

func (c *scriptedChart) CheckPrerequisites() error {
	c.record("check")
	return c.CheckErr
}

func (c *scriptedChart) PreExec(ctx context.Context, deps *Deps, payload Payload) error {
	c.record("pre")
	return c.PreErr
}

func (c *scriptedChart) Exec(ctx context.Context, deps *Deps, payload Payload) error {
	c.record("exec")
	if c.ExecFunc != nil {
		return c.ExecFunc(ctx)
	}
	return nil
}

func (c *scriptedChart) PostExec(ctx context.Context, deps *Deps, payload Payload) error {
	c.record("post")
	return c.PostErr
}

func (c *scriptedChart) OnDeployFailure(ctx context.Context, deps *Deps, payload Payload, deployErr error) {
	c.record("on-failure")
}

// Stages returns the stage names run so far, in order.
func (c *scriptedChart) Stages() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.stages))
	copy(out, c.stages)
	return out
}
