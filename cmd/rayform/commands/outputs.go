package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/rayform/cmd/rayform/handlers"
)

// Outputs returns the command that prints the published node addresses.
func Outputs() *cobra.Command {
	var (
		configPath string
		format     string
	)

	cmd := &cobra.Command{
		Use:   "outputs",
		Short: "Print the cluster node addresses",
		Long: `Print the outputs of the last apply.

Reads the local outputs file, falling back to the published copy in S3 when
outputs.s3_bucket is configured.

Examples:
  rayform outputs
  rayform outputs -o json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Outputs(cmd.Context(), configPath, format)
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVarP(&format, "output", "o", "", "Output format: yaml or json (default: table)")

	return cmd
}
