package commands

import (
	"github.com/spf13/cobra"

	"github.com/Qovery/engine-sub003/cmd/engine/handlers"
)

// Releases returns the command listing helm releases on a cluster.
func Releases() *cobra.Command {
	var opts handlers.ReleasesOptions

	cmd := &cobra.Command{
		Use:   "releases",
		Short: "List helm releases on the target cluster",
		Long: `List helm releases on the target cluster, including pending and
failed ones.

Examples:
  # Releases in the default namespace
  engine releases --kubeconfig ./kubeconfig

  # Releases in one namespace
  engine releases --kubeconfig ./kubeconfig -n logging

  # Releases across all namespaces
  engine releases --kubeconfig ./kubeconfig -A`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Releases(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.Kubeconfig, "kubeconfig", "", "Path to the kubeconfig file")
	cmd.Flags().StringVarP(&opts.Namespace, "namespace", "n", "", "List releases in this namespace only")
	cmd.Flags().BoolVarP(&opts.AllNamespaces, "all-namespaces", "A", false, "List releases across all namespaces")

	return cmd
}
