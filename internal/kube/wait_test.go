package kube

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	k8stesting "k8s.io/client-go/testing"
)

const (
	testInterval = time.Millisecond
	testTimeout  = 50 * time.Millisecond
)

func boundClaim(name string) *corev1.PersistentVolumeClaim {
	return &corev1.PersistentVolumeClaim{
		ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: testNamespace},
		Status:     corev1.PersistentVolumeClaimStatus{Phase: corev1.ClaimBound},
	}
}

func TestWaitForClaimBound(t *testing.T) {
	client, _ := newTestClient(boundClaim("alpha-data"))

	err := client.WaitForClaimBound(context.Background(), "alpha-data", testInterval, testTimeout)
	assert.NoError(t, err)
}

func TestWaitForClaimBoundTimesOut(t *testing.T) {
	pending := &corev1.PersistentVolumeClaim{
		ObjectMeta: metav1.ObjectMeta{Name: "alpha-data", Namespace: testNamespace},
		Status:     corev1.PersistentVolumeClaimStatus{Phase: corev1.ClaimPending},
	}
	client, _ := newTestClient(pending)

	err := client.WaitForClaimBound(context.Background(), "alpha-data", testInterval, testTimeout)
	require.Error(t, err)
	assert.True(t, IsTimeout(err), "expected a timeout error, got %v", err)
	assert.Contains(t, err.Error(), "alpha-data")
}

func TestWaitForClaimBoundToleratesAbsentClaim(t *testing.T) {
	// The claim never shows up: the wait must expire as a timeout, not
	// abort on the missing resource.
	client, _ := newTestClient()

	err := client.WaitForClaimBound(context.Background(), "alpha-data", testInterval, testTimeout)
	require.Error(t, err)
	assert.True(t, IsTimeout(err))
}

func TestWaitForClaimBoundAbortsOnPlatformFault(t *testing.T) {
	client, cs := newTestClient()
	cs.PrependReactor("get", "persistentvolumeclaims", func(_ k8stesting.Action) (bool, runtime.Object, error) {
		return true, nil, fmt.Errorf("etcd unavailable")
	})

	err := client.WaitForClaimBound(context.Background(), "alpha-data", testInterval, testTimeout)
	require.Error(t, err)
	assert.False(t, IsTimeout(err))
	assert.Contains(t, err.Error(), "etcd unavailable")
}

func TestWaitCancelledByCaller(t *testing.T) {
	client, _ := newTestClient()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := client.WaitForClaimBound(ctx, "alpha-data", testInterval, time.Minute)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.False(t, IsTimeout(err))
}

func TestWaitForJobComplete(t *testing.T) {
	job := &batchv1.Job{
		ObjectMeta: metav1.ObjectMeta{Name: "create-nfs-dir-alpha", Namespace: testNamespace},
		Status:     batchv1.JobStatus{Succeeded: 1},
	}
	client, _ := newTestClient(job)

	err := client.WaitForJobComplete(context.Background(), "create-nfs-dir-alpha", testInterval, testTimeout)
	assert.NoError(t, err)
}

func TestWaitForJobCompleteFailure(t *testing.T) {
	job := &batchv1.Job{
		ObjectMeta: metav1.ObjectMeta{Name: "create-nfs-dir-alpha", Namespace: testNamespace},
		Status:     batchv1.JobStatus{Failed: 1},
	}
	client, _ := newTestClient(job)

	err := client.WaitForJobComplete(context.Background(), "create-nfs-dir-alpha", testInterval, testTimeout)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrJobFailed))
	assert.False(t, IsTimeout(err))
}

func TestWaitForJobCompleteTimesOut(t *testing.T) {
	job := &batchv1.Job{
		ObjectMeta: metav1.ObjectMeta{Name: "create-nfs-dir-alpha", Namespace: testNamespace},
	}
	client, _ := newTestClient(job)

	err := client.WaitForJobComplete(context.Background(), "create-nfs-dir-alpha", testInterval, testTimeout)
	require.Error(t, err)
	assert.True(t, IsTimeout(err))
}

func TestWaitForJobGone(t *testing.T) {
	client, _ := newTestClient()

	err := client.WaitForJobGone(context.Background(), "create-nfs-dir-alpha", testInterval, testTimeout)
	assert.NoError(t, err)
}

func TestWaitForJobGoneTimesOut(t *testing.T) {
	job := &batchv1.Job{
		ObjectMeta: metav1.ObjectMeta{Name: "create-nfs-dir-alpha", Namespace: testNamespace},
	}
	client, _ := newTestClient(job)

	err := client.WaitForJobGone(context.Background(), "create-nfs-dir-alpha", testInterval, testTimeout)
	require.Error(t, err)
	assert.True(t, IsTimeout(err))
}

func TestPodLogsForJob(t *testing.T) {
	pod := &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name:      "create-nfs-dir-alpha-x7k2p",
			Namespace: testNamespace,
			Labels:    map[string]string{"job-name": "create-nfs-dir-alpha"},
		},
	}
	client, _ := newTestClient(pod)

	logs, err := client.PodLogsForJob(context.Background(), "create-nfs-dir-alpha")
	require.NoError(t, err)
	assert.Equal(t, "fake logs", logs)
}

func TestPodLogsForJobNoPods(t *testing.T) {
	client, _ := newTestClient()

	logs, err := client.PodLogsForJob(context.Background(), "create-nfs-dir-alpha")
	require.NoError(t, err)
	assert.Empty(t, logs)
}
