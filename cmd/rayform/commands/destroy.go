package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/rayform/cmd/rayform/handlers"
)

// Destroy returns the destroy command.
func Destroy() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "destroy",
		Short: "Destroy the Ray cluster and all associated resources",
		Long: `Destroy removes every resource of the deployment:
  - Head and worker instances
  - Route table and its subnet association
  - Internet gateway
  - Subnet
  - Security group
  - VPC
  - Generated key pair
  - Published outputs

Resources are found by name and by deployment tag, so destroy also removes
workers left over from a larger worker count.

WARNING: This operation is irreversible.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Destroy(cmd.Context(), configPath)
		},
	}

	addConfigFlag(cmd, &configPath)

	return cmd
}
