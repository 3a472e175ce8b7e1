package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/rayform/cmd/rayform/handlers"
	"github.com/imamik/rayform/internal/config"
)

// Init returns the command for interactively creating a configuration.
func Init() *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Interactively create a configuration",
		Long: `Interactively create a rayform configuration file.

The wizard asks for the deployment name, region, instance type, worker count,
whether the Ray port is reachable from outside and an optional existing key
pair. Everything else uses defaults that can be edited in the file.

When stdin is not a terminal the default configuration is written as is.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Init(cmd.Context(), outputPath)
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", config.DefaultConfigFilename, "Output file path")

	return cmd
}
