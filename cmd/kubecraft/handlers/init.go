package handlers

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"regexp"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/mattn/go-isatty"
	"gopkg.in/yaml.v3"
	"k8s.io/apimachinery/pkg/api/resource"

	"github.com/kubecraft/kubecraft/internal/config"
)

// namespaceRegex validates namespace names: lowercase alphanumeric with hyphens.
var namespaceRegex = regexp.MustCompile(`^[a-z0-9](?:[a-z0-9-]{0,61}[a-z0-9])?$`)

// Factory function variables for init - can be replaced in tests.
var (
	// initFileExists checks if a file exists.
	initFileExists = func(path string) bool {
		_, err := os.Stat(path)
		return err == nil
	}

	// stdinIsTerminal reports whether the wizard can actually prompt.
	stdinIsTerminal = func() bool {
		return isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd())
	}

	// runWizard collects the configuration interactively.
	runWizard = runConfigWizard

	// writeConfigFile writes the rendered configuration to a file.
	writeConfigFile = os.WriteFile
)

// Init handles the init command.
//
// It runs the interactive wizard and writes the selected configuration to
// outputPath. The wizard needs a terminal; scripted environments should
// write the file directly and rely on environment variables instead.
func Init(ctx context.Context, outputPath string) error {
	if !stdinIsTerminal() {
		return errors.New("init needs an interactive terminal; write the configuration file directly instead")
	}

	if initFileExists(outputPath) {
		fmt.Printf("Warning: %s already exists and will be overwritten.\n\n", outputPath)
	}

	printWelcome()

	cfg, err := runWizard(ctx)
	if err != nil {
		return fmt.Errorf("wizard canceled: %w", err)
	}

	data, err := renderConfig(cfg)
	if err != nil {
		return fmt.Errorf("failed to render config: %w", err)
	}

	if err := writeConfigFile(outputPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	printInitSuccess(outputPath, cfg)

	return nil
}

// runConfigWizard walks the operator through the configuration groups,
// starting from the built-in defaults.
func runConfigWizard(ctx context.Context) (*config.Config, error) {
	cfg := config.Default()

	if err := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Namespace").
				Description("Kubernetes namespace all managed resources live in").
				Value(&cfg.Namespace).
				Validate(validateNamespace),
			huh.NewInput().
				Title("Game Domain").
				Description("DNS zone game and management addresses are derived from").
				Placeholder("mc.example.com").
				Value(&cfg.GameDomain).
				Validate(validateDomain),
		).Title("Platform"),
	).RunWithContext(ctx); err != nil {
		return nil, fmt.Errorf("platform: %w", err)
	}

	if err := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("NFS Server").
				Description("Address of the NFS export backing persistent volumes").
				Value(&cfg.NFS.Server).
				Validate(validateRequired("NFS server")),
			huh.NewInput().
				Title("NFS Base Path").
				Description("Directory on the export under which server directories are created").
				Value(&cfg.NFS.BasePath).
				Validate(validateAbsolutePath),
		).Title("Storage"),
	).RunWithContext(ctx); err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}

	if err := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Server Image").
				Description("Container image running the game server").
				Value(&cfg.Images.Server).
				Validate(validateRequired("server image")),
			huh.NewInput().
				Title("Task Image").
				Description("Image running init containers and storage preparation tasks").
				Value(&cfg.Images.Busybox).
				Validate(validateRequired("task image")),
		).Title("Images"),
	).RunWithContext(ctx); err != nil {
		return nil, fmt.Errorf("images: %w", err)
	}

	if err := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Listen Address").
				Description("HTTP API bind address").
				Value(&cfg.ListenAddr).
				Validate(validateListenAddr),
			huh.NewSelect[string]().
				Title("Log Level").
				Options(
					huh.NewOption("debug", "debug"),
					huh.NewOption("info", "info"),
					huh.NewOption("warn", "warn"),
					huh.NewOption("error", "error"),
				).
				Value(&cfg.LogLevel),
		).Title("Serving"),
	).RunWithContext(ctx); err != nil {
		return nil, fmt.Errorf("serving: %w", err)
	}

	if err := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Default Storage Capacity").
				Description("Capacity requested when a server omits one").
				Value(&cfg.Defaults.StorageCapacity).
				Validate(validateQuantity),
			huh.NewInput().
				Title("Default Memory Limit").
				Value(&cfg.Defaults.MemoryLimit).
				Validate(validateQuantity),
			huh.NewInput().
				Title("Default CPU Limit").
				Value(&cfg.Defaults.CPULimit).
				Validate(validateQuantity),
		).Title("Workload Defaults"),
	).RunWithContext(ctx); err != nil {
		return nil, fmt.Errorf("workload defaults: %w", err)
	}

	return cfg, nil
}

func validateNamespace(s string) error {
	if !namespaceRegex.MatchString(s) {
		return errors.New("must be lowercase alphanumeric with hyphens, at most 63 characters")
	}
	return nil
}

func validateDomain(s string) error {
	if s == "" {
		return errors.New("game domain is required")
	}
	if strings.ContainsAny(s, " /:") {
		return errors.New("must be a bare DNS name")
	}
	return nil
}

func validateRequired(name string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", name)
		}
		return nil
	}
}

func validateAbsolutePath(s string) error {
	if !strings.HasPrefix(s, "/") {
		return errors.New("must be an absolute path")
	}
	return nil
}

func validateListenAddr(s string) error {
	if _, _, err := net.SplitHostPort(s); err != nil {
		return errors.New("must be a host:port address, for example :8000")
	}
	return nil
}

func validateQuantity(s string) error {
	if _, err := resource.ParseQuantity(s); err != nil {
		return errors.New("must be a Kubernetes quantity, for example 10Gi or 2")
	}
	return nil
}

// renderConfig marshals cfg to YAML under a usage header. Secrets are
// environment-only and never written to the file.
func renderConfig(cfg *config.Config) ([]byte, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, err
	}

	header := `# kubecraft configuration.
#
# VELOCITY_SECRET and INTERNAL_API_KEY are read from the environment and
# intentionally absent from this file.
`
	return append([]byte(header), data...), nil
}

// printWelcome prints the welcome message.
func printWelcome() {
	fmt.Println()
	fmt.Println("kubecraft - Minecraft servers on Kubernetes")
	fmt.Println("===========================================")
	fmt.Println()
	fmt.Println("This wizard creates a server configuration with sensible defaults.")
	fmt.Println("Secrets stay out of the file: export VELOCITY_SECRET and")
	fmt.Println("INTERNAL_API_KEY before starting the server.")
	fmt.Println()
}

// printInitSuccess prints the success message with summary and next steps.
func printInitSuccess(outputPath string, cfg *config.Config) {
	fmt.Println()
	fmt.Println("Configuration saved!")
	fmt.Println()
	fmt.Printf("  File: %s\n", outputPath)
	fmt.Println()

	fmt.Println("Summary")
	fmt.Println("-------")
	fmt.Printf("  Namespace:   %s\n", cfg.Namespace)
	fmt.Printf("  Game Domain: %s\n", cfg.GameDomain)
	fmt.Printf("  NFS Export:  %s:%s\n", cfg.NFS.Server, cfg.NFS.BasePath)
	fmt.Printf("  Listen Addr: %s\n", cfg.ListenAddr)
	fmt.Printf("  Log Level:   %s\n", cfg.LogLevel)
	fmt.Println()

	fmt.Println("Next Steps")
	fmt.Println("----------")
	fmt.Println("  1. Export the required secrets:")
	fmt.Println("     export VELOCITY_SECRET=<proxy-forwarding-secret>")
	fmt.Println("     export INTERNAL_API_KEY=<api-key>")
	fmt.Println()
	fmt.Printf("  2. Review %s if needed\n", outputPath)
	fmt.Println()
	fmt.Println("  3. Start the server:")
	fmt.Printf("     kubecraft serve --config %s\n", outputPath)
	fmt.Println()
}
