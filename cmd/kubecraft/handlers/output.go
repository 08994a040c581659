package handlers

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
)

func isInteractiveTTY() bool {
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

// printJSON renders v indented to stdout.
func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func printRow(name string, ok bool, extra string) {
	indicator := "✅" // green check
	if !ok {
		indicator = "❌" // red X
	}

	if extra != "" {
		fmt.Printf("  %s  %-20s %s\n", indicator, name, extra)
	} else {
		fmt.Printf("  %s  %s\n", indicator, name)
	}
}
