package commands

import (
	"github.com/spf13/cobra"

	"github.com/kubecraft/kubecraft/cmd/kubecraft/handlers"
)

// Volumes returns the command listing managed storage claims.
//
// Optional flags:
//
//	--config, -c: Path to configuration YAML file
//	--json: Output in JSON format
func Volumes() *cobra.Command {
	var configPath string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "volumes",
		Short: "List managed storage claims",
		Long: `List every storage claim this system manages.

The listing shows the claim name, phase, capacity, and age, matching
what the API serves on /k8s/volumes.

Examples:
  # List storage claims
  kubecraft volumes --config kubecraft.yaml

  # Get the listing in JSON format
  kubecraft volumes --json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Volumes(cmd.Context(), configPath, jsonOutput)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to configuration file")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	return cmd
}
