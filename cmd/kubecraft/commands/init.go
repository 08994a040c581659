package commands

import (
	"github.com/spf13/cobra"

	"github.com/kubecraft/kubecraft/cmd/kubecraft/handlers"
)

// Init returns the command for interactively creating a configuration file.
//
// This command guides operators through creating a server configuration YAML
// file using an interactive wizard with text inputs and select prompts.
//
// Flags:
//
//	--output, -o: Path to output file (default "kubecraft.yaml")
func Init() *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Interactively create a configuration file",
		Long: `Interactively create a configuration file.

This command walks you through configuring the provisioning server
step by step. It will ask about:

  - Platform (namespace and game domain)
  - Storage (NFS export backing persistent volumes)
  - Images (game server and task images)
  - Serving (bind address and log level)
  - Workload defaults (storage capacity and sizing)

Secrets are never written to the file. Export VELOCITY_SECRET and
INTERNAL_API_KEY before starting the server.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Init(cmd.Context(), outputPath)
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "kubecraft.yaml", "Output file path")

	return cmd
}
