// Package gameserver creates and removes the ephemeral resource set of a
// game server: its Deployment, Service, management Ingress and per-server
// management ConfigMap. Persistent storage is owned by the storage package
// and is never touched here.
package gameserver

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/kubecraft/kubecraft/internal/kube"
	"github.com/kubecraft/kubecraft/internal/naming"
)

const (
	// gamePort is the TCP port game clients connect to.
	gamePort = 25565

	// managementPort is the HTTP port of the in-server management API.
	managementPort = 4567

	// pluginsCacheClaim is the pre-provisioned read-only claim holding the
	// plugin jars copied into every server on startup.
	pluginsCacheClaim = "plugins-cache"

	// priorityClass applied to every server pod.
	priorityClass = "high-priority-customer"
)

// Config carries the cluster-level settings server workloads are built with.
type Config struct {
	// Image runs the game server itself.
	Image string

	// InitImage runs the file-copy init containers.
	InitImage string

	// Domain is the public DNS zone management hosts are exposed under.
	Domain string

	// ProxySecret is the forwarding secret shared with the proxy.
	ProxySecret string
}

// Resources are the per-server compute settings, as Kubernetes quantity
// strings.
type Resources struct {
	MemoryLimit   string
	MemoryRequest string
	CPULimit      string
	CPURequest    string
}

// Manager creates and deletes the ephemeral resources of game servers.
type Manager struct {
	client *kube.Client
	cfg    Config
	log    *zap.SugaredLogger
}

// NewManager creates a manager for the given cluster settings.
func NewManager(client *kube.Client, cfg Config, log *zap.SugaredLogger) *Manager {
	return &Manager{client: client, cfg: cfg, log: log}
}

// CreateConfig creates the per-server management API ConfigMap carrying the
// caller-supplied API key.
func (m *Manager) CreateConfig(ctx context.Context, server, apiKey string) error {
	cm, err := buildServerConfig(server, apiKey)
	if err != nil {
		return err
	}

	if _, err := m.client.Interface().CoreV1().ConfigMaps(m.client.Namespace()).Create(ctx, cm, metav1.CreateOptions{}); err != nil {
		return fmt.Errorf("creating configmap %q: %w", cm.Name, err)
	}

	m.log.Infow("created server config", "configmap", cm.Name)
	return nil
}

// Create creates the Deployment, Service and Ingress for a server backed by
// the given storage claim. It fails fast on the first error; the caller is
// responsible for compensation.
func (m *Manager) Create(ctx context.Context, server, storage string, res Resources) error {
	dep, err := buildDeployment(server, storage, m.cfg, res)
	if err != nil {
		return err
	}

	if _, err := m.client.Interface().AppsV1().Deployments(m.client.Namespace()).Create(ctx, dep, metav1.CreateOptions{}); err != nil {
		return fmt.Errorf("creating deployment %q: %w", dep.Name, err)
	}
	m.log.Infow("created deployment", "deployment", dep.Name)

	svc := buildService(server)
	if _, err := m.client.Interface().CoreV1().Services(m.client.Namespace()).Create(ctx, svc, metav1.CreateOptions{}); err != nil {
		return fmt.Errorf("creating service %q: %w", svc.Name, err)
	}
	m.log.Infow("created service", "service", svc.Name)

	ing := buildIngress(server, m.cfg.Domain)
	if _, err := m.client.Interface().NetworkingV1().Ingresses(m.client.Namespace()).Create(ctx, ing, metav1.CreateOptions{}); err != nil {
		return fmt.Errorf("creating ingress %q: %w", ing.Name, err)
	}
	m.log.Infow("created ingress", "ingress", ing.Name, "host", naming.ManagementHost(server, m.cfg.Domain))

	return nil
}

// Delete removes a server's ephemeral resources, tolerating absence of each.
// The shared proxy ConfigMap and all storage survive.
func (m *Manager) Delete(ctx context.Context, server string) error {
	m.log.Infow("removing ephemeral resources", "server", server)

	if err := m.client.DeleteDeployment(ctx, naming.Deployment(server)); err != nil {
		return err
	}
	if err := m.client.DeleteService(ctx, naming.Service(server)); err != nil {
		return err
	}
	if err := m.client.DeleteIngress(ctx, naming.Ingress(server)); err != nil {
		return err
	}
	return m.client.DeleteConfigMap(ctx, naming.ServerConfigMap(server))
}
