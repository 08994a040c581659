package storage

import (
	"context"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/kubecraft/kubecraft/internal/labels"
	"github.com/kubecraft/kubecraft/internal/naming"
	"github.com/kubecraft/kubecraft/internal/ptr"
)

// storageClass binds the pre-created volume to its claim without involving
// a dynamic provisioner.
const storageClass = "manual"

// ensureVolume creates the NFS-backed PersistentVolume unless it already
// exists. An existing volume with an unexpected export path is kept and
// only warned about, so a changed base path does not orphan running
// servers.
func (m *Manager) ensureVolume(ctx context.Context, storage, capacity string) error {
	name := naming.PersistentVolume(storage)
	path := naming.StorageDir(m.cfg.NFSBasePath, storage)

	existing, err := m.client.GetVolume(ctx, name)
	if err != nil {
		return err
	}
	if existing != nil {
		if existing.Spec.NFS == nil || existing.Spec.NFS.Path != path {
			m.log.Warnw("existing volume does not match expected export path", "volume", name, "expected", path)
		} else {
			m.log.Debugw("reusing existing volume", "volume", name)
		}
		return nil
	}

	quantity, err := resource.ParseQuantity(capacity)
	if err != nil {
		return fmt.Errorf("invalid storage capacity %q: %w", capacity, err)
	}

	mode := corev1.PersistentVolumeFilesystem
	volume := &corev1.PersistentVolume{
		ObjectMeta: metav1.ObjectMeta{
			Name:   name,
			Labels: labels.ForVolume(storage),
		},
		Spec: corev1.PersistentVolumeSpec{
			Capacity:                      corev1.ResourceList{corev1.ResourceStorage: quantity},
			VolumeMode:                    &mode,
			AccessModes:                   []corev1.PersistentVolumeAccessMode{corev1.ReadWriteOnce},
			PersistentVolumeReclaimPolicy: corev1.PersistentVolumeReclaimRetain,
			StorageClassName:              storageClass,
			PersistentVolumeSource: corev1.PersistentVolumeSource{
				NFS: &corev1.NFSVolumeSource{Server: m.cfg.NFSServer, Path: path},
			},
		},
	}

	if _, err := m.client.Interface().CoreV1().PersistentVolumes().Create(ctx, volume, metav1.CreateOptions{}); err != nil {
		return fmt.Errorf("creating volume %q: %w", name, err)
	}
	m.log.Infow("created volume", "volume", name, "path", path)
	return nil
}

// createClaim creates the claim pre-bound to the identity's volume.
func (m *Manager) createClaim(ctx context.Context, storage, capacity string) error {
	name := naming.Claim(storage)

	quantity, err := resource.ParseQuantity(capacity)
	if err != nil {
		return fmt.Errorf("invalid storage capacity %q: %w", capacity, err)
	}

	claim := &corev1.PersistentVolumeClaim{
		ObjectMeta: metav1.ObjectMeta{
			Name:   name,
			Labels: labels.ForStorage(storage),
		},
		Spec: corev1.PersistentVolumeClaimSpec{
			StorageClassName: ptr.String(storageClass),
			AccessModes:      []corev1.PersistentVolumeAccessMode{corev1.ReadWriteOnce},
			Resources: corev1.VolumeResourceRequirements{
				Requests: corev1.ResourceList{corev1.ResourceStorage: quantity},
			},
			VolumeName: naming.PersistentVolume(storage),
		},
	}

	if _, err := m.client.Interface().CoreV1().PersistentVolumeClaims(m.client.Namespace()).Create(ctx, claim, metav1.CreateOptions{}); err != nil {
		return fmt.Errorf("creating claim %q: %w", name, err)
	}
	m.log.Infow("created claim", "claim", name)
	return nil
}
