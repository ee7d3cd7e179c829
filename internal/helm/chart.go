// Package helm drives the helm CLI for release management. It wraps
// upgrade, rollback, uninstall, status and list behind a typed client that
// classifies raw subprocess failures into a closed error taxonomy and
// clears stale release locks before mutating a release.
package helm

import (
	"time"

	"github.com/Masterminds/semver/v3"

	"github.com/Qovery/engine-sub003/internal/util/retry"
)

// Action is what the deployment engine should do with a chart.
type Action string

const (
	// Deploy installs the release or upgrades it in place.
	Deploy Action = "deploy"
	// Destroy removes the release and its declared CRD resources.
	Destroy Action = "destroy"
)

// defaultTimeout applies when a descriptor does not set its own timeout.
const defaultTimeout = 5 * time.Minute

// SetValue is a single --set (or --set-string) override.
type SetValue struct {
	Key   string
	Value string
}

// ValuesFragment is a rendered YAML values document generated at deploy
// time. It is written to `<chart path>/<Name>_override.yaml` and passed to
// helm via -f after every static values file, so its entries win.
type ValuesFragment struct {
	Name    string
	Content string
}

// CRDsUpdate declares CRD manifests that must be applied outside the
// normal chart upgrade. Helm does not reliably upgrade existing CRDs, so
// they are force-applied server-side before the release mutation.
type CRDsUpdate struct {
	// Path is the directory or URL prefix holding the manifests.
	Path string
	// Resources are the manifest file names under Path.
	Resources []string
}

// ChartInfo describes one chart deployment. It is an immutable value
// object: built by the config layer or tests, read-only to the engine.
// Construct a fresh descriptor per deployment plan instead of reusing one.
type ChartInfo struct {
	Name      string
	Path      string
	Namespace string
	Action    Action

	Timeout      time.Duration
	Wait         bool
	Atomic       bool
	DryRun       bool
	ForceUpgrade bool
	RecreatePods bool

	// Values and StringValues become --set / --set-string arguments.
	Values       []SetValue
	StringValues []SetValue
	// ValuesFiles are static files passed via -f, in order.
	ValuesFiles []string
	// GeneratedValues are rendered fragments appended after ValuesFiles.
	GeneratedValues []ValuesFragment

	// LastBreakingVersion marks the oldest release version that upgrades
	// in place. An installed version older than it is uninstalled before
	// deploying.
	LastBreakingVersion *semver.Version
	// SkipIfAlreadyInstalled short-circuits the deploy when any version
	// of the release is already present.
	SkipIfAlreadyInstalled bool

	CRDsUpdate *CRDsUpdate
	// BackupResources lists resource kinds snapshotted before an upgrade
	// and restored after it succeeds.
	BackupResources []string

	// Retry wraps the upgrade command only. Nil means a single attempt.
	Retry *retry.Policy
}

// EffectiveTimeout returns the chart's timeout, falling back to the
// default when unset.
func (c *ChartInfo) EffectiveTimeout() time.Duration {
	if c.Timeout <= 0 {
		return defaultTimeout
	}
	return c.Timeout
}
