package storage

import (
	"context"
	"errors"
	"fmt"

	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/kubecraft/kubecraft/internal/kube"
	"github.com/kubecraft/kubecraft/internal/labels"
	"github.com/kubecraft/kubecraft/internal/naming"
	"github.com/kubecraft/kubecraft/internal/ptr"
)

// TaskError reports a failed preparation Job together with the logs of its
// pod, when they could be retrieved.
type TaskError struct {
	Job  string
	Logs string
	Err  error
}

func (e *TaskError) Error() string {
	if e.Logs == "" {
		return fmt.Sprintf("storage preparation failed: %v", e.Err)
	}
	return fmt.Sprintf("storage preparation failed: %v\npod logs:\n%s", e.Err, e.Logs)
}

func (e *TaskError) Unwrap() error {
	return e.Err
}

// IsTaskFailure reports whether err stems from a failed preparation Job.
func IsTaskFailure(err error) bool {
	var taskErr *TaskError
	return errors.As(err, &taskErr)
}

// prepareDirectory runs a one-shot Job that creates and chowns the NFS
// directory of a storage identity. A stale Job under the same name is
// deleted first, and the replacement is only created once the old one is
// fully gone so the names cannot collide.
func (m *Manager) prepareDirectory(ctx context.Context, storage string) error {
	name := naming.StorageDirJob(storage)

	if err := m.client.DeleteJob(ctx, name); err != nil {
		return err
	}
	if err := m.client.WaitForJobGone(ctx, name, m.cfg.Timeouts.PollInterval, m.cfg.Timeouts.TaskCleanup); err != nil {
		return err
	}

	job := m.buildTaskJob(storage)
	if _, err := m.client.Interface().BatchV1().Jobs(m.client.Namespace()).Create(ctx, job, metav1.CreateOptions{}); err != nil {
		return fmt.Errorf("creating job %q: %w", name, err)
	}
	m.log.Infow("preparing storage directory", "job", name, "path", naming.StorageDir(m.cfg.NFSBasePath, storage))

	err := m.client.WaitForJobComplete(ctx, name, m.cfg.Timeouts.PollInterval, m.cfg.Timeouts.TaskComplete)
	if err == nil {
		return nil
	}
	if errors.Is(err, kube.ErrJobFailed) {
		logs, logErr := m.client.PodLogsForJob(ctx, name)
		if logErr != nil {
			m.log.Warnw("could not fetch task pod logs", "job", name, "error", logErr)
		}
		return &TaskError{Job: name, Logs: logs, Err: err}
	}
	return err
}

func (m *Manager) buildTaskJob(storage string) *batchv1.Job {
	name := naming.StorageDirJob(storage)
	path := naming.StorageDir(m.cfg.NFSBasePath, storage)

	return &batchv1.Job{
		ObjectMeta: metav1.ObjectMeta{Name: name},
		Spec: batchv1.JobSpec{
			TTLSecondsAfterFinished: ptr.Int32(60),
			BackoffLimit:            ptr.Int32(3),
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{Labels: labels.ForTaskPod(name)},
				Spec: corev1.PodSpec{
					Containers: []corev1.Container{
						{
							Name:    "nfs-dir-creator",
							Image:   m.cfg.TaskImage,
							Command: []string{"sh", "-c"},
							// 1000:1000 is the uid/gid the server runs as.
							Args: []string{fmt.Sprintf(
								"mkdir -p %[1]s && chmod 755 %[1]s && chown 1000:1000 %[1]s && echo 'Directory created: %[1]s'",
								path,
							)},
							VolumeMounts: []corev1.VolumeMount{
								{Name: "nfs-root", MountPath: m.cfg.NFSBasePath},
							},
						},
					},
					Volumes: []corev1.Volume{
						{
							Name: "nfs-root",
							VolumeSource: corev1.VolumeSource{
								NFS: &corev1.NFSVolumeSource{
									Server: m.cfg.NFSServer,
									Path:   m.cfg.NFSBasePath,
								},
							},
						},
					},
					RestartPolicy: corev1.RestartPolicyNever,
				},
			},
		},
	}
}
