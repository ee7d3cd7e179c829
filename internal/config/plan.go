package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"
)

// releaseNameRegex is compiled once at package init for release name
// validation. Helm release names must be DNS-safe.
var releaseNameRegex = regexp.MustCompile(`^[a-z0-9]([-a-z0-9]*[a-z0-9])?$`)

// maxReleaseNameLength is helm's limit on release names.
const maxReleaseNameLength = 53

// Plan is the on-disk deployment plan: which charts to run, in which
// order, against which cluster.
type Plan struct {
	// Kubeconfig is the path to the kubeconfig file for the target
	// cluster. Optional; the --kubeconfig flag and the KUBECONFIG
	// environment variable take precedence.
	Kubeconfig string `yaml:"kubeconfig,omitempty"`

	// Environment is passed to every helm and kubectl subprocess on top
	// of the engine's own environment. Cloud provider credentials for
	// value lookups go here. Values never appear in logs or errors.
	Environment map[string]string `yaml:"environment,omitempty"`

	// Parallel runs the charts of each level concurrently. Levels still
	// complete before the next one starts.
	Parallel bool `yaml:"parallel,omitempty"`

	// AutoscalingEnabled is the cluster-wide vertical autoscaling
	// switch. When false, every chart's vpa companion is torn down
	// instead of deployed.
	AutoscalingEnabled bool `yaml:"autoscaling_enabled,omitempty"`

	// Store is the optional S3-compatible object store snapshots are
	// uploaded to. Without it snapshots only live in a local temp dir
	// for the duration of the run.
	Store *StoreSpec `yaml:"store,omitempty"`

	// Levels are the dependency stages, deployed in order and destroyed
	// in reverse. Charts within one level are unordered.
	Levels []LevelSpec `yaml:"levels"`
}

// LevelSpec is one dependency stage of the plan.
type LevelSpec struct {
	// Name labels the level in logs and errors. Optional; defaults to
	// the level's position.
	Name string `yaml:"name,omitempty"`

	// Charts deployed at this level.
	Charts []ChartSpec `yaml:"charts"`
}

// ChartSpec configures one helm release.
type ChartSpec struct {
	// Name is the helm release name. Must be DNS-safe: lowercase
	// alphanumeric and hyphens, at most 53 characters.
	Name string `yaml:"name"`

	// Path is the chart directory passed to helm.
	Path string `yaml:"path"`

	// Namespace the release is installed into. Created on demand.
	Namespace string `yaml:"namespace"`

	// Timeout bounds each helm command for this chart (default: 5m).
	Timeout Duration `yaml:"timeout,omitempty"`

	// Wait makes helm wait for resources to become ready before
	// reporting success.
	Wait bool `yaml:"wait,omitempty"`

	// Atomic rolls the upgrade back automatically when it fails.
	Atomic bool `yaml:"atomic,omitempty"`

	// ForceUpgrade passes --force, replacing resources through
	// delete/recreate when a patch cannot apply.
	ForceUpgrade bool `yaml:"force_upgrade,omitempty"`

	// RecreatePods restarts the release's pods after the upgrade.
	RecreatePods bool `yaml:"recreate_pods,omitempty"`

	// Values become --set arguments, in order, so later entries win.
	Values []SetValueSpec `yaml:"values,omitempty"`

	// StringValues become --set-string arguments, keeping numerals and
	// booleans as strings.
	StringValues []SetValueSpec `yaml:"string_values,omitempty"`

	// ValuesFiles are static values files passed via -f, in order.
	// Checked for existence before the run starts.
	ValuesFiles []string `yaml:"values_files,omitempty"`

	// LastBreakingVersion is the oldest release version that upgrades
	// in place. An older installed version is uninstalled before
	// deploying. Semantic version string, e.g. "2.0.0".
	LastBreakingVersion string `yaml:"last_breaking_version,omitempty"`

	// SkipIfAlreadyInstalled leaves any installed version of the
	// release untouched instead of upgrading it.
	SkipIfAlreadyInstalled bool `yaml:"skip_if_already_installed,omitempty"`

	// BackupResources lists resource kinds snapshotted before the
	// upgrade and restored once it succeeds, e.g. ["prometheusrules"].
	BackupResources []string `yaml:"backup_resources,omitempty"`

	// CRDs declares manifests force-applied before the release
	// mutation. Helm does not reliably upgrade existing CRDs.
	CRDs *CRDsSpec `yaml:"crds,omitempty"`

	// Retry re-runs a failed upgrade when the failure is transient.
	Retry *RetrySpec `yaml:"retry,omitempty"`

	// Check verifies the release after a deploy. One of "pods-ready"
	// or "release-deployed"; empty disables verification.
	Check Check `yaml:"check,omitempty"`

	// PodsSelector is a label selector scoping crash-pod cleanup and
	// the pods-ready check. Empty means every pod in the namespace.
	PodsSelector string `yaml:"pods_selector,omitempty"`

	// CheckTimeout bounds the pods-ready check. Zero falls back to the
	// chart timeout.
	CheckTimeout Duration `yaml:"check_timeout,omitempty"`

	// VPA is the autoscaler-config companion chart deployed alongside
	// this one while autoscaling is enabled, torn down otherwise.
	VPA *VPASpec `yaml:"vpa,omitempty"`
}

// SetValueSpec is a single chart value override.
type SetValueSpec struct {
	Key   string `yaml:"key"`
	Value string `yaml:"value"`
}

// CRDsSpec declares CRD manifests applied outside the chart upgrade.
type CRDsSpec struct {
	// Path is the directory holding the manifest files.
	Path string `yaml:"path"`

	// Resources are the manifest file names under Path, applied in
	// order.
	Resources []string `yaml:"resources"`
}

// RetrySpec configures upgrade retries for transient failures.
type RetrySpec struct {
	// Attempts is the number of re-runs after the first failure.
	Attempts int `yaml:"attempts"`

	// Delay between attempts, e.g. "30s".
	Delay Duration `yaml:"delay,omitempty"`
}

// VPASpec configures the autoscaler-config companion of a chart.
type VPASpec struct {
	// Name is the companion's helm release name. Must be DNS-safe.
	Name string `yaml:"name"`

	// Path is the companion chart directory.
	Path string `yaml:"path"`

	// Namespace defaults to the owning chart's namespace.
	Namespace string `yaml:"namespace,omitempty"`

	// Timeout bounds the companion's helm commands (default: 5m).
	Timeout Duration `yaml:"timeout,omitempty"`

	// Values become --set arguments for the companion.
	Values []SetValueSpec `yaml:"values,omitempty"`

	// ValuesFiles are passed via -f, in order.
	ValuesFiles []string `yaml:"values_files,omitempty"`
}

// StoreSpec is the S3-compatible endpoint snapshots are kept in.
type StoreSpec struct {
	// Endpoint URL, e.g. "https://s3.eu-west-1.amazonaws.com" or a
	// minio address.
	Endpoint string `yaml:"endpoint"`

	// Region for request signing (default: "us-east-1", which
	// minio-style endpoints accept).
	Region string `yaml:"region,omitempty"`

	// Bucket holding the snapshots. Created on demand.
	Bucket string `yaml:"bucket"`

	// AccessKey for the store. If empty, the ENGINE_STORE_ACCESS_KEY
	// environment variable is used.
	AccessKey string `yaml:"access_key,omitempty"`

	// SecretKey for the store. If empty, the ENGINE_STORE_SECRET_KEY
	// environment variable is used.
	SecretKey string `yaml:"secret_key,omitempty"`

	// ForcePathStyle addresses the bucket by path instead of
	// subdomain, as minio-style endpoints require.
	ForcePathStyle bool `yaml:"force_path_style,omitempty"`
}

// Check selects how a deployed release is verified.
type Check string

const (
	// CheckNone skips verification.
	CheckNone Check = ""

	// CheckPodsReady waits until every pod under the chart's selector
	// is running and ready.
	CheckPodsReady Check = "pods-ready"

	// CheckReleaseDeployed asserts the release status is "deployed".
	CheckReleaseDeployed Check = "release-deployed"
)

// ValidChecks returns all valid non-empty checks.
func ValidChecks() []Check {
	return []Check{CheckPodsReady, CheckReleaseDeployed}
}

// IsValid returns true if the check is known.
func (c Check) IsValid() bool {
	switch c {
	case CheckNone, CheckPodsReady, CheckReleaseDeployed:
		return true
	default:
		return false
	}
}

// Duration is a time.Duration that unmarshals from Go duration strings
// such as "90s" or "5m".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Validate validates the plan and returns an error if invalid.
func (p *Plan) Validate() error {
	var errs []error

	if len(p.Levels) == 0 {
		errs = append(errs, errors.New("at least one level is required"))
	}

	// Release names must be unique across the whole plan, companions
	// included: they share the cluster and the snapshot key space.
	seen := make(map[string]bool)
	for i := range p.Levels {
		level := &p.Levels[i]
		if len(level.Charts) == 0 {
			errs = append(errs, fmt.Errorf("levels[%d] has no charts", i))
		}
		for j := range level.Charts {
			chart := &level.Charts[j]
			errs = append(errs, chart.validate(i, j, seen)...)
		}
	}

	if p.Store != nil {
		errs = append(errs, p.Store.validate()...)
	}

	return errors.Join(errs...)
}

func (c *ChartSpec) validate(level, pos int, seen map[string]bool) []error {
	var errs []error
	at := fmt.Sprintf("levels[%d].charts[%d]", level, pos)

	if c.Name == "" {
		errs = append(errs, fmt.Errorf("%s.name is required", at))
	} else if !isValidReleaseName(c.Name) {
		errs = append(errs, fmt.Errorf("%s.name %q must be DNS-safe and at most %d characters", at, c.Name, maxReleaseNameLength))
	} else if seen[c.Name] {
		errs = append(errs, fmt.Errorf("duplicate release name %q", c.Name))
	} else {
		seen[c.Name] = true
	}

	if c.Path == "" {
		errs = append(errs, fmt.Errorf("%s.path is required", at))
	}
	if c.Namespace == "" {
		errs = append(errs, fmt.Errorf("%s.namespace is required", at))
	}
	if c.Timeout < 0 {
		errs = append(errs, fmt.Errorf("%s.timeout must not be negative", at))
	}

	if c.LastBreakingVersion != "" {
		if _, err := semver.NewVersion(c.LastBreakingVersion); err != nil {
			errs = append(errs, fmt.Errorf("%s.last_breaking_version %q is not a semantic version", at, c.LastBreakingVersion))
		}
	}

	if !c.Check.IsValid() {
		errs = append(errs, fmt.Errorf("%s.check must be one of: %v", at, ValidChecks()))
	}

	if c.CRDs != nil {
		if c.CRDs.Path == "" {
			errs = append(errs, fmt.Errorf("%s.crds.path is required", at))
		}
		if len(c.CRDs.Resources) == 0 {
			errs = append(errs, fmt.Errorf("%s.crds.resources is required", at))
		}
	}

	if c.Retry != nil {
		if c.Retry.Attempts < 1 {
			errs = append(errs, fmt.Errorf("%s.retry.attempts must be at least 1", at))
		}
		if c.Retry.Delay < 0 {
			errs = append(errs, fmt.Errorf("%s.retry.delay must not be negative", at))
		}
	}

	if c.VPA != nil {
		if c.VPA.Name == "" {
			errs = append(errs, fmt.Errorf("%s.vpa.name is required", at))
		} else if !isValidReleaseName(c.VPA.Name) {
			errs = append(errs, fmt.Errorf("%s.vpa.name %q must be DNS-safe and at most %d characters", at, c.VPA.Name, maxReleaseNameLength))
		} else if seen[c.VPA.Name] {
			errs = append(errs, fmt.Errorf("duplicate release name %q", c.VPA.Name))
		} else {
			seen[c.VPA.Name] = true
		}
		if c.VPA.Path == "" {
			errs = append(errs, fmt.Errorf("%s.vpa.path is required", at))
		}
	}

	return errs
}

func (s *StoreSpec) validate() []error {
	var errs []error

	if s.Endpoint == "" {
		errs = append(errs, errors.New("store.endpoint is required"))
	}
	if s.Bucket == "" {
		errs = append(errs, errors.New("store.bucket is required"))
	}
	if s.AccessKey == "" && os.Getenv(StoreAccessKeyEnv) == "" {
		errs = append(errs, fmt.Errorf("store.access_key or the %s environment variable is required", StoreAccessKeyEnv))
	}
	if s.SecretKey == "" && os.Getenv(StoreSecretKeyEnv) == "" {
		errs = append(errs, fmt.Errorf("store.secret_key or the %s environment variable is required", StoreSecretKeyEnv))
	}

	return errs
}

// HasStore returns true if a snapshot store is configured.
func (p *Plan) HasStore() bool {
	return p.Store != nil
}

// ChartCount returns the number of charts across all levels, companions
// excluded.
func (p *Plan) ChartCount() int {
	n := 0
	for i := range p.Levels {
		n += len(p.Levels[i].Charts)
	}
	return n
}

func isValidReleaseName(name string) bool {
	return len(name) <= maxReleaseNameLength && releaseNameRegex.MatchString(name)
}
