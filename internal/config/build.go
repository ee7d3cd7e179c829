package config

import (
	"fmt"
	"os"
	"time"

	"github.com/Masterminds/semver/v3"

	"github.com/Qovery/engine-sub003/internal/charts"
	"github.com/Qovery/engine-sub003/internal/helm"
	"github.com/Qovery/engine-sub003/internal/store"
	"github.com/Qovery/engine-sub003/internal/util/retry"
)

const (
	// StoreAccessKeyEnv supplies the store access key when the plan
	// omits store.access_key.
	StoreAccessKeyEnv = "ENGINE_STORE_ACCESS_KEY"

	// StoreSecretKeyEnv supplies the store secret key when the plan
	// omits store.secret_key.
	StoreSecretKeyEnv = "ENGINE_STORE_SECRET_KEY"
)

// defaultStoreRegion is used for request signing when the plan does not
// name a region. Minio-style endpoints accept it.
const defaultStoreRegion = "us-east-1"

// Build converts the plan into its executable form for the given
// action. Every chart in the result carries that action; dryRun marks
// deploys that must not mutate the cluster.
func (p *Plan) Build(action helm.Action, dryRun bool) (*charts.Plan, error) {
	plan := &charts.Plan{Levels: make([]charts.Level, 0, len(p.Levels))}

	for i := range p.Levels {
		spec := &p.Levels[i]
		level := charts.Level{Name: spec.Name, Charts: make([]charts.Chart, 0, len(spec.Charts))}

		for j := range spec.Charts {
			chart, err := p.buildChart(&spec.Charts[j], action, dryRun)
			if err != nil {
				return nil, fmt.Errorf("chart %s: %w", spec.Charts[j].Name, err)
			}
			level.Charts = append(level.Charts, chart)
		}

		plan.Levels = append(plan.Levels, level)
	}

	return plan, nil
}

func (p *Plan) buildChart(spec *ChartSpec, action helm.Action, dryRun bool) (*charts.CommonChart, error) {
	info := helm.ChartInfo{
		Name:         spec.Name,
		Path:         spec.Path,
		Namespace:    spec.Namespace,
		Action:       action,
		Timeout:      time.Duration(spec.Timeout),
		Wait:         spec.Wait,
		Atomic:       spec.Atomic,
		DryRun:       dryRun,
		ForceUpgrade: spec.ForceUpgrade,
		RecreatePods: spec.RecreatePods,

		Values:       setValues(spec.Values),
		StringValues: setValues(spec.StringValues),
		ValuesFiles:  spec.ValuesFiles,

		SkipIfAlreadyInstalled: spec.SkipIfAlreadyInstalled,
		BackupResources:        spec.BackupResources,
	}

	if spec.LastBreakingVersion != "" {
		version, err := semver.NewVersion(spec.LastBreakingVersion)
		if err != nil {
			return nil, fmt.Errorf("last_breaking_version %q: %w", spec.LastBreakingVersion, err)
		}
		info.LastBreakingVersion = version
	}

	if spec.CRDs != nil {
		info.CRDsUpdate = &helm.CRDsUpdate{Path: spec.CRDs.Path, Resources: spec.CRDs.Resources}
	}

	if spec.Retry != nil {
		info.Retry = &retry.Policy{Attempts: spec.Retry.Attempts, Delay: time.Duration(spec.Retry.Delay)}
	}

	chart := &charts.CommonChart{
		ChartInfo:    info,
		PodsSelector: spec.PodsSelector,
		Checker:      spec.checker(),
	}

	if spec.VPA != nil {
		chart.Companion = p.companion(spec.VPA, spec.Namespace)
	}

	return chart, nil
}

func (c *ChartSpec) checker() charts.InstallationChecker {
	switch c.Check {
	case CheckPodsReady:
		return &charts.PodsReadyChecker{
			LabelSelector: c.PodsSelector,
			Timeout:       time.Duration(c.CheckTimeout),
		}
	case CheckReleaseDeployed:
		return &charts.ReleaseDeployedChecker{}
	default:
		return nil
	}
}

// companion builds the autoscaler companion of a chart. The companion's
// action is derived at run time from the owner's, never set here.
func (p *Plan) companion(spec *VPASpec, ownerNamespace string) *charts.VPACompanion {
	namespace := spec.Namespace
	if namespace == "" {
		namespace = ownerNamespace
	}

	return &charts.VPACompanion{
		ChartInfo: helm.ChartInfo{
			Name:        spec.Name,
			Path:        spec.Path,
			Namespace:   namespace,
			Timeout:     time.Duration(spec.Timeout),
			Values:      setValues(spec.Values),
			ValuesFiles: spec.ValuesFiles,
		},
		AutoscalingEnabled: p.AutoscalingEnabled,
	}
}

// StoreConfig resolves the plan's store block into a store
// configuration, filling credentials from the environment when the
// plan omits them. Call only when HasStore reports true.
func (p *Plan) StoreConfig() store.Config {
	s := p.Store

	region := s.Region
	if region == "" {
		region = defaultStoreRegion
	}

	return store.Config{
		Endpoint:       s.Endpoint,
		Region:         region,
		Bucket:         s.Bucket,
		AccessKey:      stringOrEnv(s.AccessKey, StoreAccessKeyEnv),
		SecretKey:      stringOrEnv(s.SecretKey, StoreSecretKeyEnv),
		ForcePathStyle: s.ForcePathStyle,
	}
}

// stringOrEnv returns val, falling back to the environment variable
// when val is empty.
func stringOrEnv(val, envVar string) string {
	if val != "" {
		return val
	}
	return os.Getenv(envVar)
}

func setValues(specs []SetValueSpec) []helm.SetValue {
	if len(specs) == 0 {
		return nil
	}
	values := make([]helm.SetValue, 0, len(specs))
	for _, s := range specs {
		values = append(values, helm.SetValue{Key: s.Key, Value: s.Value})
	}
	return values
}
