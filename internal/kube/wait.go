package kube

import (
	"context"
	"fmt"
	"time"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/kubecraft/kubecraft/internal/labels"
	"github.com/kubecraft/kubecraft/internal/ptr"
)

// waitFor polls cond until it reports true, errors, or the timeout expires.
// A deadline expiry surfaces as a TimeoutError; caller cancellation is
// propagated as the context's own error.
func (c *Client) waitFor(ctx context.Context, kind, name string, interval, timeout time.Duration, cond wait.ConditionWithContextFunc) error {
	err := wait.PollUntilContextTimeout(ctx, interval, timeout, true, cond)
	if err == nil {
		return nil
	}
	if wait.Interrupted(err) {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &TimeoutError{Kind: kind, Name: name, Timeout: timeout}
	}
	return err
}

// WaitForClaimBound waits for a PersistentVolumeClaim to reach the Bound
// phase. A claim that is not visible yet is tolerated and re-checked.
func (c *Client) WaitForClaimBound(ctx context.Context, name string, interval, timeout time.Duration) error {
	return c.waitFor(ctx, "claim", name, interval, timeout, func(ctx context.Context) (bool, error) {
		claim, err := c.cs.CoreV1().PersistentVolumeClaims(c.namespace).Get(ctx, name, metav1.GetOptions{})
		if err != nil {
			if apierrors.IsNotFound(err) {
				return false, nil
			}
			return false, fmt.Errorf("failed to read claim %q: %w", name, err)
		}
		return claim.Status.Phase == corev1.ClaimBound, nil
	})
}

// WaitForJobComplete waits for a Job to reach a terminal state. Success
// returns nil; a failed Job aborts the wait with ErrJobFailed.
func (c *Client) WaitForJobComplete(ctx context.Context, name string, interval, timeout time.Duration) error {
	return c.waitFor(ctx, "job", name, interval, timeout, func(ctx context.Context) (bool, error) {
		job, err := c.cs.BatchV1().Jobs(c.namespace).Get(ctx, name, metav1.GetOptions{})
		if err != nil {
			if apierrors.IsNotFound(err) {
				return false, nil
			}
			return false, fmt.Errorf("failed to read job %q: %w", name, err)
		}
		if job.Status.Succeeded > 0 {
			return true, nil
		}
		if job.Status.Failed > 0 {
			return false, fmt.Errorf("job %q: %w", name, ErrJobFailed)
		}
		return false, nil
	})
}

// WaitForJobGone waits until a deleted Job is no longer visible, so a
// replacement with the same name can be created without a conflict.
func (c *Client) WaitForJobGone(ctx context.Context, name string, interval, timeout time.Duration) error {
	return c.waitFor(ctx, "job", name, interval, timeout, func(ctx context.Context) (bool, error) {
		_, err := c.cs.BatchV1().Jobs(c.namespace).Get(ctx, name, metav1.GetOptions{})
		if err != nil {
			if apierrors.IsNotFound(err) {
				return true, nil
			}
			return false, fmt.Errorf("failed to read job %q: %w", name, err)
		}
		return false, nil
	})
}

// PodLogsForJob retrieves the logs of the first pod spawned by a Job.
// Returns an empty string when no pod is visible.
func (c *Client) PodLogsForJob(ctx context.Context, job string) (string, error) {
	pods, err := c.cs.CoreV1().Pods(c.namespace).List(ctx, metav1.ListOptions{
		LabelSelector: labels.TaskPodSelector(job),
	})
	if err != nil {
		return "", fmt.Errorf("failed to list pods for job %q: %w", job, err)
	}
	if len(pods.Items) == 0 {
		return "", nil
	}

	logOptions := &corev1.PodLogOptions{
		TailLines: ptr.Int64(100),
	}
	raw, err := c.cs.CoreV1().Pods(c.namespace).GetLogs(pods.Items[0].Name, logOptions).DoRaw(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get pod logs: %w", err)
	}
	return string(raw), nil
}
