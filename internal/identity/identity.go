// Package identity normalizes caller-supplied server and storage names into
// identifiers that are safe to embed in Kubernetes resource names.
package identity

import (
	"regexp"
	"strings"
)

var (
	invalidChars = regexp.MustCompile(`[^a-z0-9-]`)
	dashRuns     = regexp.MustCompile(`-+`)
)

// Sanitize lowercases a name, removes every character outside [a-z0-9-],
// collapses runs of dashes and trims leading and trailing dashes.
//
// The function is deterministic and idempotent: applying it to its own
// output returns the same value, so identities can be re-sanitized at any
// layer without drift.
func Sanitize(name string) string {
	s := strings.ToLower(name)
	s = invalidChars.ReplaceAllString(s, "")
	s = dashRuns.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}
