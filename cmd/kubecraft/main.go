// Package main is the entry point for the kubecraft CLI.
//
// kubecraft provisions and tears down per-tenant Minecraft servers on a
// Kubernetes cluster. The serve command runs the HTTP control plane; the
// remaining commands are operator tooling for configuration and diagnosis.
//
// Commands: serve, init, doctor, volumes, version, completion.
//
// For detailed usage information, run:
//
//	kubecraft --help
package main

import (
	"fmt"
	"os"

	"github.com/kubecraft/kubecraft/cmd/kubecraft/commands"
)

// Version information set by goreleaser at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.SetVersionInfo(version, commit, date)
	if err := commands.Root().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
