package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/rayform/cmd/rayform/handlers"
)

// Apply returns the command for creating or updating a deployment.
func Apply() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Create or update the Ray cluster",
		Long: `Create or update the Ray cluster described by the configuration.

Resources that already exist are left untouched, so running apply twice with
the same configuration changes nothing. After the cluster is up, the node
addresses are written to the outputs file and, when configured, to S3.

Examples:
  # Apply rayform.yaml from the current directory
  rayform apply

  # Apply a specific configuration
  rayform apply -c staging.yaml`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Apply(cmd.Context(), configPath)
		},
	}

	addConfigFlag(cmd, &configPath)

	return cmd
}
