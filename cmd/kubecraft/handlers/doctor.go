package handlers

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/kubecraft/kubecraft/internal/logger"
)

// DoctorReport is the diagnostic snapshot of configuration and platform.
type DoctorReport struct {
	ConfigValid bool   `json:"configValid"`
	ConfigError string `json:"configError,omitempty"`

	Namespace   string `json:"namespace,omitempty"`
	GameDomain  string `json:"gameDomain,omitempty"`
	ListenAddr  string `json:"listenAddr,omitempty"`
	NFSServer   string `json:"nfsServer,omitempty"`
	NFSBasePath string `json:"nfsBasePath,omitempty"`

	Kubernetes       bool   `json:"kubernetes"`
	KubernetesDetail string `json:"kubernetesDetail,omitempty"`

	BackupsConfigured bool `json:"backupsConfigured"`
	ManagedClaims     int  `json:"managedClaims"`
}

// Doctor handles the doctor command.
//
// It validates the configuration, probes the managed cluster, and renders a
// report. A failed probe is part of the report, not a command error, so the
// command only fails when the report itself cannot be produced.
func Doctor(ctx context.Context, configPath string, jsonOutput bool) error {
	report := buildDoctorReport(ctx, configPath)

	if jsonOutput {
		return printJSON(report)
	}

	if isInteractiveTTY() {
		printDoctorStyled(report)
		return nil
	}

	printDoctorPlain(report)
	return nil
}

func buildDoctorReport(ctx context.Context, configPath string) *DoctorReport {
	report := &DoctorReport{}

	cfg, err := loadConfig(configPath)
	if err != nil {
		report.ConfigError = err.Error()
		return report
	}

	report.ConfigValid = true
	report.Namespace = cfg.Namespace
	report.GameDomain = cfg.GameDomain
	report.ListenAddr = cfg.ListenAddr
	report.NFSServer = cfg.NFS.Server
	report.NFSBasePath = cfg.NFS.BasePath
	report.BackupsConfigured = cfg.Backup.Enabled()

	client, err := newKubeClient(cfg.Namespace, logger.Nop())
	if err != nil {
		report.KubernetesDetail = err.Error()
		return report
	}

	mgr := newManager(client, cfg, loadTimeouts(), nil, logger.Nop())
	health := mgr.Health(ctx)
	report.Kubernetes = health.Healthy
	report.KubernetesDetail = health.Detail

	if health.Healthy {
		if claims, err := mgr.ListStorage(ctx); err == nil {
			report.ManagedClaims = len(claims)
		}
	}

	return report
}

func printDoctorPlain(report *DoctorReport) {
	fmt.Println()
	fmt.Println("  kubecraft doctor")
	fmt.Println("  " + strings.Repeat("═", 16))
	fmt.Println()

	fmt.Println("  Configuration")
	fmt.Println("  " + strings.Repeat("─", 35))
	printRow("Config", report.ConfigValid, report.ConfigError)
	if report.ConfigValid {
		fmt.Printf("      Namespace:   %s\n", report.Namespace)
		fmt.Printf("      Game Domain: %s\n", report.GameDomain)
		fmt.Printf("      Listen Addr: %s\n", report.ListenAddr)
		fmt.Printf("      NFS Export:  %s:%s\n", report.NFSServer, report.NFSBasePath)
	}
	fmt.Println()

	fmt.Println("  Platform")
	fmt.Println("  " + strings.Repeat("─", 35))
	printRow("Kubernetes", report.Kubernetes, report.KubernetesDetail)
	if report.Kubernetes {
		printRow("Managed Claims", true, strconv.Itoa(report.ManagedClaims))
	}
	printRow("Archive Store", report.BackupsConfigured, backupsExtra(report.BackupsConfigured))
	fmt.Println()

	if !report.ConfigValid {
		fmt.Println("  Fix the configuration and run 'kubecraft doctor' again.")
		fmt.Println()
	}
}

func backupsExtra(configured bool) string {
	if configured {
		return ""
	}
	return "not configured (optional)"
}

// printDoctorStyled renders the report for interactive terminals.
func printDoctorStyled(report *DoctorReport) {
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#f9fafb"))
	sectionStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#3b82f6"))
	nameStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#6b7280"))
	okStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#22c55e"))
	badStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#ef4444"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#6b7280"))

	row := func(name string, ok bool, extra string) {
		state := okStyle.Render("ok")
		if !ok {
			state = badStyle.Render("fail")
		}
		line := fmt.Sprintf("  %s  %s", nameStyle.Render(fmt.Sprintf("%-18s", name)), state)
		if extra != "" {
			line += "  " + dimStyle.Render(extra)
		}
		fmt.Println(line)
	}

	fmt.Println()
	fmt.Println(titleStyle.Render("  kubecraft doctor"))
	fmt.Println(dimStyle.Render("  " + strings.Repeat("=", 30)))
	fmt.Println()

	fmt.Println(sectionStyle.Render("  Configuration"))
	fmt.Println(dimStyle.Render("  " + strings.Repeat("-", 35)))
	row("config", report.ConfigValid, report.ConfigError)
	if report.ConfigValid {
		fmt.Printf("  %s  %s\n", nameStyle.Render(fmt.Sprintf("%-18s", "namespace")), report.Namespace)
		fmt.Printf("  %s  %s\n", nameStyle.Render(fmt.Sprintf("%-18s", "game domain")), report.GameDomain)
		fmt.Printf("  %s  %s\n", nameStyle.Render(fmt.Sprintf("%-18s", "listen addr")), report.ListenAddr)
		fmt.Printf("  %s  %s:%s\n", nameStyle.Render(fmt.Sprintf("%-18s", "nfs export")), report.NFSServer, report.NFSBasePath)
	}
	fmt.Println()

	fmt.Println(sectionStyle.Render("  Platform"))
	fmt.Println(dimStyle.Render("  " + strings.Repeat("-", 35)))
	row("kubernetes", report.Kubernetes, report.KubernetesDetail)
	if report.Kubernetes {
		row("managed claims", true, strconv.Itoa(report.ManagedClaims))
	}
	if report.BackupsConfigured {
		row("archive store", true, "")
	} else {
		fmt.Printf("  %s  %s\n", nameStyle.Render(fmt.Sprintf("%-18s", "archive store")), dimStyle.Render("off (optional)"))
	}
	fmt.Println()
}
