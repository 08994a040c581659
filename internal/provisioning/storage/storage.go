// Package storage provisions the persistent side of a game server: the NFS
// directory, the PersistentVolume pointing at it and the claim binding the
// two. Storage is created once per identity and reused on every later
// provisioning run; removal is a separate explicit operation and rollback
// of a failed provisioning run never touches it.
package storage

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/kubecraft/kubecraft/internal/config"
	"github.com/kubecraft/kubecraft/internal/kube"
	"github.com/kubecraft/kubecraft/internal/labels"
	"github.com/kubecraft/kubecraft/internal/naming"
)

// Config carries the NFS export settings and wait budgets.
type Config struct {
	// NFSServer is the address of the NFS server backing all volumes.
	NFSServer string

	// NFSBasePath is the export directory server directories live under.
	NFSBasePath string

	// TaskImage runs the directory preparation Job.
	TaskImage string

	// Timeouts bound the claim-bind and Job waits.
	Timeouts config.Timeouts
}

// Manager provisions, lists and removes persistent storage.
type Manager struct {
	client *kube.Client
	cfg    Config
	log    *zap.SugaredLogger
}

// NewManager creates a manager for the given NFS settings.
func NewManager(client *kube.Client, cfg Config, log *zap.SugaredLogger) *Manager {
	return &Manager{client: client, cfg: cfg, log: log}
}

// Ensure makes the storage of an identity available: when the claim already
// exists it is reused untouched, otherwise the directory is prepared, the
// volume and claim are created and the claim is awaited Bound. Reports
// whether new storage was created.
func (m *Manager) Ensure(ctx context.Context, storage, capacity string) (bool, error) {
	claim := naming.Claim(storage)

	exists, err := m.client.ClaimExists(ctx, claim)
	if err != nil {
		return false, err
	}
	if exists {
		m.log.Infow("reusing existing storage", "claim", claim)
		return false, nil
	}

	if err := m.prepareDirectory(ctx, storage); err != nil {
		return false, err
	}
	if err := m.ensureVolume(ctx, storage, capacity); err != nil {
		return false, err
	}
	if err := m.createClaim(ctx, storage, capacity); err != nil {
		return false, err
	}

	if err := m.client.WaitForClaimBound(ctx, claim, m.cfg.Timeouts.PollInterval, m.cfg.Timeouts.ClaimBind); err != nil {
		return false, err
	}

	m.log.Infow("storage ready", "claim", claim)
	return true, nil
}

// Delete removes the claim and volume of a storage identity. The data on
// the NFS export itself is left in place.
func (m *Manager) Delete(ctx context.Context, storage string) error {
	m.log.Infow("deleting persistent storage", "storage", storage)

	if err := m.client.DeleteClaim(ctx, naming.Claim(storage)); err != nil {
		return err
	}
	return m.client.DeleteVolume(ctx, naming.PersistentVolume(storage))
}

// ClaimInfo summarizes one managed claim for listings.
type ClaimInfo struct {
	Name      string
	Namespace string
	CreatedAt time.Time
	Phase     string
	Capacity  string
}

// List returns every managed claim in the namespace. Capacity reads "N/A"
// until the claim is bound and the real capacity is known.
func (m *Manager) List(ctx context.Context) ([]ClaimInfo, error) {
	claims, err := m.client.Interface().CoreV1().PersistentVolumeClaims(m.client.Namespace()).List(ctx, metav1.ListOptions{
		LabelSelector: labels.StorageSelector(),
	})
	if err != nil {
		return nil, fmt.Errorf("listing claims: %w", err)
	}

	infos := make([]ClaimInfo, 0, len(claims.Items))
	for _, claim := range claims.Items {
		capacity := "N/A"
		if quantity, ok := claim.Status.Capacity[corev1.ResourceStorage]; ok {
			capacity = quantity.String()
		}

		infos = append(infos, ClaimInfo{
			Name:      claim.Name,
			Namespace: claim.Namespace,
			CreatedAt: claim.CreationTimestamp.Time,
			Phase:     string(claim.Status.Phase),
			Capacity:  capacity,
		})
	}
	return infos, nil
}
