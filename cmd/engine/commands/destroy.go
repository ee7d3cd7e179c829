package commands

import (
	"github.com/spf13/cobra"

	"github.com/Qovery/engine-sub003/cmd/engine/handlers"
)

// Destroy returns the destroy command.
//
// The destroy command removes every release of the plan from the target
// cluster. Levels are processed in reverse deployment order so dependents
// are gone before their dependencies.
func Destroy() *cobra.Command {
	var opts handlers.Options

	cmd := &cobra.Command{
		Use:   "destroy",
		Short: "Uninstall every release of the plan",
		Long: `Destroy removes every release of the plan from the target cluster.

Levels are processed in reverse deployment order so dependents go away
before their dependencies. Autoscaler companion releases are removed
together with their owning chart. Releases that are already absent are
treated as successfully destroyed.

Example:
  engine destroy -f production.yaml

WARNING: This operation is irreversible. Cluster state managed by the
plan's charts will be lost.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Destroy(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.PlanPath, "plan", "f", "", "Path to the plan file (required)")
	cmd.Flags().StringVar(&opts.Kubeconfig, "kubeconfig", "", "Path to the kubeconfig file")
	cmd.Flags().BoolVar(&opts.Parallel, "parallel", false, "Run the charts of each level concurrently")
	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-bind-address", "", "Address to serve Prometheus metrics on during the run")
	_ = cmd.MarkFlagRequired("plan")

	return cmd
}
