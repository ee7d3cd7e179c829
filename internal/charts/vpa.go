package charts

import (
	"github.com/Qovery/engine-sub003/internal/helm"
)

// VPACompanion is the autoscaler-config chart bound to an owner chart.
// It holds the VerticalPodAutoscaler objects for the owner's workloads
// and never acts on its own: its action is always derived from the
// owner's action and the cluster-wide autoscaling switch.
type VPACompanion struct {
	ChartInfo          helm.ChartInfo
	AutoscalingEnabled bool
}

// ActionFor returns the action the companion takes when its owner runs
// the given action. The companion deploys only when the owner deploys
// and autoscaling is enabled; anything else tears it down so no
// autoscaler objects outlive their owner or a disabled switch.
func (v *VPACompanion) ActionFor(owner helm.Action) helm.Action {
	if owner == helm.Deploy && v.AutoscalingEnabled {
		return helm.Deploy
	}
	return helm.Destroy
}
