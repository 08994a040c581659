// Package proxyconfig maintains the shared ConfigMap that tells every game
// server to accept forwarded connections from the Velocity proxy.
package proxyconfig

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/yaml"

	"github.com/kubecraft/kubecraft/internal/kube"
	"github.com/kubecraft/kubecraft/internal/naming"
)

// settings is the proxy forwarding section of the server configuration file.
type settings struct {
	Proxies proxies `json:"proxies"`
}

type proxies struct {
	Velocity velocity `json:"velocity"`
}

type velocity struct {
	Enabled    bool   `json:"enabled"`
	OnlineMode bool   `json:"online-mode"`
	Secret     string `json:"secret"`
}

// Manager ensures the shared proxy ConfigMap exists and carries the current
// forwarding secret. The ConfigMap is shared by every server and is never
// deleted during teardown.
type Manager struct {
	client *kube.Client
	secret string
	log    *zap.SugaredLogger

	// mu serializes ensure calls so concurrent provisioning runs cannot
	// interleave the get-then-write sequence.
	mu sync.Mutex
}

// NewManager creates a manager writing the given forwarding secret.
func NewManager(client *kube.Client, secret string, log *zap.SugaredLogger) *Manager {
	return &Manager{client: client, secret: secret, log: log}
}

// Ensure creates the shared ConfigMap, or patches its data if it already
// exists, so the forwarding secret is always current.
func (m *Manager) Ensure(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := m.renderData()
	if err != nil {
		return err
	}

	cms := m.client.Interface().CoreV1().ConfigMaps(m.client.Namespace())

	_, err = cms.Get(ctx, naming.SharedConfig, metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		cm := &corev1.ConfigMap{
			ObjectMeta: metav1.ObjectMeta{Name: naming.SharedConfig},
			Data:       data,
		}
		if _, err := cms.Create(ctx, cm, metav1.CreateOptions{}); err != nil {
			return fmt.Errorf("creating configmap %q: %w", naming.SharedConfig, err)
		}
		m.log.Infow("created shared proxy config", "configmap", naming.SharedConfig)
		return nil
	}
	if err != nil {
		return fmt.Errorf("getting configmap %q: %w", naming.SharedConfig, err)
	}

	patch, err := json.Marshal(map[string]any{"data": data})
	if err != nil {
		return fmt.Errorf("encoding configmap patch: %w", err)
	}
	if _, err := cms.Patch(ctx, naming.SharedConfig, types.StrategicMergePatchType, patch, metav1.PatchOptions{}); err != nil {
		return fmt.Errorf("patching configmap %q: %w", naming.SharedConfig, err)
	}

	m.log.Debugw("refreshed shared proxy config", "configmap", naming.SharedConfig)
	return nil
}

func (m *Manager) renderData() (map[string]string, error) {
	s := settings{
		Proxies: proxies{
			Velocity: velocity{
				Enabled:    true,
				OnlineMode: false,
				Secret:     m.secret,
			},
		},
	}

	raw, err := yaml.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("rendering proxy settings: %w", err)
	}
	return map[string]string{naming.SharedConfigKey: string(raw)}, nil
}
