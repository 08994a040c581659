package kube

import (
	"errors"
	"fmt"
	"time"
)

// ErrJobFailed marks a Job that reached its failed terminal state. Callers
// that can capture pod logs wrap it with more context.
var ErrJobFailed = errors.New("job failed")

// TimeoutError reports that a bounded wait on a resource condition expired.
// It is distinguishable from platform faults via IsTimeout.
type TimeoutError struct {
	Kind    string
	Name    string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timed out after %s waiting for %s %q", e.Timeout, e.Kind, e.Name)
}

// IsTimeout reports whether err is, or wraps, a wait deadline expiry.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}
