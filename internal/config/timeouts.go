package config

import (
	"os"
	"time"
)

// Timeouts holds all configurable timeout values.
// These values can be customized via environment variables.
type Timeouts struct {
	ClaimBind    time.Duration // Timeout for a claim to reach the Bound phase
	TaskComplete time.Duration // Timeout for the storage preparation Job to finish
	TaskCleanup  time.Duration // Timeout for a stale preparation Job to disappear after deletion
	PollInterval time.Duration // Interval between condition checks while waiting
	Shutdown     time.Duration // Grace period for draining the HTTP server
}

// LoadTimeouts loads timeout configuration from environment variables.
// If an environment variable is not set or invalid, a default value is used.
//
// Environment Variables:
//   - KUBECRAFT_TIMEOUT_CLAIM_BIND (default: 60s)
//   - KUBECRAFT_TIMEOUT_TASK_COMPLETE (default: 60s)
//   - KUBECRAFT_TIMEOUT_TASK_CLEANUP (default: 30s)
//   - KUBECRAFT_POLL_INTERVAL (default: 2s)
//   - KUBECRAFT_TIMEOUT_SHUTDOWN (default: 10s)
func LoadTimeouts() *Timeouts {
	return &Timeouts{
		ClaimBind:    parseDuration("KUBECRAFT_TIMEOUT_CLAIM_BIND", 60*time.Second),
		TaskComplete: parseDuration("KUBECRAFT_TIMEOUT_TASK_COMPLETE", 60*time.Second),
		TaskCleanup:  parseDuration("KUBECRAFT_TIMEOUT_TASK_CLEANUP", 30*time.Second),
		PollInterval: parseDuration("KUBECRAFT_POLL_INTERVAL", 2*time.Second),
		Shutdown:     parseDuration("KUBECRAFT_TIMEOUT_SHUTDOWN", 10*time.Second),
	}
}

// parseDuration parses a duration from an environment variable.
// If the variable is not set or parsing fails, the default value is returned.
func parseDuration(envVar string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}

	d, err := time.ParseDuration(val)
	if err != nil {
		return defaultVal
	}

	return d
}
