package commands

import (
	"github.com/spf13/cobra"

	"github.com/kubecraft/kubecraft/cmd/kubecraft/handlers"
)

// Serve returns the command running the provisioning API server.
//
// Optional flags:
//
//	--config, -c: Path to configuration YAML file (default: built-in defaults plus environment)
func Serve() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the provisioning API server",
		Long: `Run the provisioning API server.

The server connects to the Kubernetes cluster it manages (in-cluster
service account first, kubeconfig as fallback) and serves the
provisioning API until it receives SIGINT or SIGTERM.

Configuration is resolved from built-in defaults, the optional YAML
file, and environment variables, in that order. VELOCITY_SECRET and
INTERNAL_API_KEY must be present in the environment.

Examples:
  # Serve with defaults plus environment
  kubecraft serve

  # Serve with a configuration file
  kubecraft serve --config kubecraft.yaml`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Serve(cmd.Context(), configPath, version)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to configuration file")

	return cmd
}
