package handlers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/kubecraft/kubecraft/internal/logger"
	"github.com/kubecraft/kubecraft/internal/provisioning/storage"
)

// volumeEntry mirrors the JSON the API serves on /k8s/volumes.
type volumeEntry struct {
	Name              string `json:"name"`
	Namespace         string `json:"namespace"`
	CreationTimestamp string `json:"creation_timestamp"`
	Status            string `json:"status"`
	Capacity          string `json:"capacity"`
}

// Volumes handles the volumes command.
//
// It lists every managed storage claim in the configured namespace, styled
// for interactive terminals and plain otherwise.
func Volumes(ctx context.Context, configPath string, jsonOutput bool) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	client, err := newKubeClient(cfg.Namespace, logger.Nop())
	if err != nil {
		return fmt.Errorf("failed to connect to kubernetes: %w", err)
	}

	mgr := newManager(client, cfg, loadTimeouts(), nil, logger.Nop())
	claims, err := mgr.ListStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to list storage: %w", err)
	}

	if jsonOutput {
		entries := make([]volumeEntry, 0, len(claims))
		for _, claim := range claims {
			entries = append(entries, volumeEntry{
				Name:              claim.Name,
				Namespace:         claim.Namespace,
				CreationTimestamp: claim.CreatedAt.UTC().Format(time.RFC3339),
				Status:            claim.Phase,
				Capacity:          claim.Capacity,
			})
		}
		return printJSON(entries)
	}

	if isInteractiveTTY() {
		printVolumesStyled(cfg.Namespace, claims)
		return nil
	}

	printVolumesPlain(cfg.Namespace, claims)
	return nil
}

func printVolumesPlain(namespace string, claims []storage.ClaimInfo) {
	fmt.Println()
	fmt.Printf("  Managed storage in %s\n", namespace)
	fmt.Println("  " + strings.Repeat("─", 35))

	if len(claims) == 0 {
		fmt.Println("  No managed storage claims found.")
		fmt.Println()
		return
	}

	fmt.Printf("  %-24s %-10s %-10s %s\n", "NAME", "STATUS", "CAPACITY", "AGE")
	for _, claim := range claims {
		fmt.Printf("  %-24s %-10s %-10s %s\n", claim.Name, claim.Phase, claim.Capacity, claimAge(claim.CreatedAt))
	}
	fmt.Println()
}

// printVolumesStyled renders the listing for interactive terminals.
func printVolumesStyled(namespace string, claims []storage.ClaimInfo) {
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#f9fafb"))
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#3b82f6"))
	nameStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#22c55e"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#6b7280"))

	fmt.Println()
	fmt.Println(titleStyle.Render(fmt.Sprintf("  Managed storage in %s", namespace)))
	fmt.Println(dimStyle.Render("  " + strings.Repeat("=", 30)))
	fmt.Println()

	if len(claims) == 0 {
		fmt.Println(dimStyle.Render("  No managed storage claims found."))
		fmt.Println()
		return
	}

	fmt.Println(headerStyle.Render(fmt.Sprintf("  %-24s %-10s %-10s %s", "NAME", "STATUS", "CAPACITY", "AGE")))
	for _, claim := range claims {
		fmt.Printf("  %s %-10s %-10s %s\n",
			nameStyle.Render(fmt.Sprintf("%-24s", claim.Name)),
			claim.Phase,
			claim.Capacity,
			dimStyle.Render(claimAge(claim.CreatedAt)),
		)
	}
	fmt.Println()
}

// claimAge renders the claim age the way kubectl does, coarsest unit only.
func claimAge(created time.Time) string {
	if created.IsZero() {
		return "unknown"
	}

	age := time.Since(created)
	switch {
	case age < time.Minute:
		return fmt.Sprintf("%ds", int(age.Seconds()))
	case age < time.Hour:
		return fmt.Sprintf("%dm", int(age.Minutes()))
	case age < 24*time.Hour:
		return fmt.Sprintf("%dh", int(age.Hours()))
	default:
		return fmt.Sprintf("%dd", int(age.Hours()/24))
	}
}
