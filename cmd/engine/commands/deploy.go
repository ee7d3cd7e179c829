package commands

import (
	"github.com/spf13/cobra"

	"github.com/Qovery/engine-sub003/cmd/engine/handlers"
)

// Deploy returns the command for deploying a plan to the target cluster.
//
// This command runs the complete deployment workflow: loading and
// validating the plan, checking client tool prerequisites, wiring the
// helm and Kubernetes clients, and deploying every level in order.
//
// Optional flags:
//
//	--plan, -f: Path to the plan YAML file (default: auto-detect engine.yaml)
//	--kubeconfig: Path to the kubeconfig file (overrides KUBECONFIG and the plan)
//	--parallel: Run the charts of each level concurrently
//	--dry-run: Validate and render without mutating the cluster
//	--metrics-bind-address: Serve Prometheus metrics during the run
//
// Environment variables:
//
//	KUBECONFIG: Path to the kubeconfig file when --kubeconfig is not set
func Deploy() *cobra.Command {
	var opts handlers.Options

	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Deploy every chart of the plan, level by level",
		Long: `Deploy every chart of the plan to the target cluster.

Charts are grouped into levels; a level only starts once the previous
one has completely finished. Within a level charts run one after the
other, or concurrently with --parallel.

If no plan file is specified, it looks for engine.yaml in the current
directory.

Examples:
  # Deploy the plan in ./engine.yaml
  engine deploy

  # Deploy a specific plan, charts within a level in parallel
  engine deploy -f production.yaml --parallel

  # Validate the plan and render values without touching the cluster
  engine deploy -f production.yaml --dry-run`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Deploy(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.PlanPath, "plan", "f", "", "Path to the plan file (default: engine.yaml)")
	cmd.Flags().StringVar(&opts.Kubeconfig, "kubeconfig", "", "Path to the kubeconfig file")
	cmd.Flags().BoolVar(&opts.Parallel, "parallel", false, "Run the charts of each level concurrently")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "Validate and render without mutating the cluster")
	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-bind-address", "", "Address to serve Prometheus metrics on during the run")

	return cmd
}
