package commands

import (
	"github.com/spf13/cobra"

	"github.com/kubecraft/kubecraft/cmd/kubecraft/handlers"
)

// Doctor returns the command for diagnosing configuration and connectivity.
//
// This command validates the configuration and probes the managed cluster,
// with styled output on interactive terminals.
//
// Optional flags:
//
//	--config, -c: Path to configuration YAML file
//	--json: Output in JSON format
func Doctor() *cobra.Command {
	var configPath string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Diagnose configuration and platform connectivity",
		Long: `Diagnose the kubecraft configuration and platform connectivity.

The report covers:
  - Configuration validity (file, environment, required secrets)
  - Kubernetes connectivity for the configured namespace
  - Whether the archive store is configured
  - How many managed storage claims exist

Examples:
  # Diagnose with a configuration file
  kubecraft doctor --config kubecraft.yaml

  # Get the report in JSON format
  kubecraft doctor --json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Doctor(cmd.Context(), configPath, jsonOutput)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to configuration file")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	return cmd
}
