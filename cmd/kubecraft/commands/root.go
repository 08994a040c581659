// Package commands defines the CLI command structure and flag bindings.
//
// This package contains cobra command definitions that handle argument parsing,
// flag binding, and validation. Command execution is delegated to handler
// functions in the handlers package.
package commands

import "github.com/spf13/cobra"

// Root returns the root command for the kubecraft CLI.
//
// The root command serves as the entry point and parent for all subcommands.
// It provides basic CLI metadata and organizes the command hierarchy.
func Root() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kubecraft",
		Short: "Provision per-tenant Minecraft servers on Kubernetes",
	}

	// Core commands
	cmd.AddCommand(Serve())
	cmd.AddCommand(Init())
	cmd.AddCommand(Doctor())
	cmd.AddCommand(Volumes())

	// Utility commands
	cmd.AddCommand(Version())
	cmd.AddCommand(Completion())

	return cmd
}
