package commands

import (
	"github.com/spf13/cobra"

	"github.com/Qovery/engine-sub003/cmd/engine/handlers"
)

// Check returns the command verifying client tool prerequisites.
//
// Deployments shell out to helm and kubectl; this command reports
// whether they are installed and which versions were found.
func Check() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify required client tools are installed",
		RunE: func(_ *cobra.Command, _ []string) error {
			return handlers.Check()
		},
	}
}
