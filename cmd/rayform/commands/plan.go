package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/rayform/cmd/rayform/handlers"
)

// Plan returns the command that previews what apply would change.
func Plan() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show what apply would change",
		Long: `Compare the configuration with the resources that exist in AWS.

Every resource is reported as create, update, no-op or conflict. Plan only
reads; it never creates or modifies anything.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Plan(cmd.Context(), configPath)
		},
	}

	addConfigFlag(cmd, &configPath)

	return cmd
}
