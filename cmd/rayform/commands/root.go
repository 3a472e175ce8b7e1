// Package commands defines the CLI command structure and flag bindings.
//
// Command execution is delegated to handler functions in the handlers
// package.
package commands

import "github.com/spf13/cobra"

// Root returns the root command for the rayform CLI.
func Root() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rayform",
		Short: "Provision Ray clusters on AWS",
		Long: `rayform provisions a Ray cluster on AWS.

It creates a VPC, an internet gateway, a public subnet with a default route,
a security group, one head node and N worker nodes. Workers are bootstrapped
to join the head node over its private address.

Set LOG_LEVEL (trace, debug, info, warn, error) to control log verbosity.`,
		SilenceUsage: true,
	}

	cmd.AddCommand(Init())
	cmd.AddCommand(Plan())
	cmd.AddCommand(Apply())
	cmd.AddCommand(Outputs())
	cmd.AddCommand(Destroy())
	cmd.AddCommand(Version())

	return cmd
}

// addConfigFlag binds the shared --config flag.
func addConfigFlag(cmd *cobra.Command, path *string) {
	cmd.Flags().StringVarP(path, "config", "c", "", "Path to configuration file (default: rayform.yaml)")
}
