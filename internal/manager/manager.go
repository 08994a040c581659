// Package manager is the orchestration facade: it owns per-identity
// serialization, assembles provisioning runs from compensable steps and
// routes teardown requests to the storage and gameserver managers.
package manager

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kubecraft/kubecraft/internal/backup"
	"github.com/kubecraft/kubecraft/internal/config"
	"github.com/kubecraft/kubecraft/internal/identity"
	"github.com/kubecraft/kubecraft/internal/kube"
	"github.com/kubecraft/kubecraft/internal/locks"
	"github.com/kubecraft/kubecraft/internal/metrics"
	"github.com/kubecraft/kubecraft/internal/naming"
	"github.com/kubecraft/kubecraft/internal/provisioning"
	"github.com/kubecraft/kubecraft/internal/provisioning/gameserver"
	"github.com/kubecraft/kubecraft/internal/provisioning/proxyconfig"
	"github.com/kubecraft/kubecraft/internal/provisioning/storage"
)

// ErrArchivesDisabled is returned by archive operations when no archive
// store is configured.
var ErrArchivesDisabled = errors.New("archive store not configured")

// CreateRequest describes one server to provision. Empty sizing fields fall
// back to the configured defaults.
type CreateRequest struct {
	// Server is the requested server identity. Sanitized before use.
	Server string

	// Storage is the requested storage identity. Sanitized before use.
	Storage string

	// APIKey is baked into the server's management config.
	APIKey string

	Resources       gameserver.Resources
	StorageCapacity string
}

// ServerEndpoints reports where a provisioned server is reachable.
type ServerEndpoints struct {
	Server        string
	Storage       string
	GameAddress   string
	ManagementURL string
}

// Health is the readiness of the platform connection.
type Health struct {
	Healthy bool
	Detail  string
}

// Manager coordinates all server lifecycle operations.
type Manager struct {
	client   *kube.Client
	cfg      *config.Config
	storage  *storage.Manager
	servers  *gameserver.Manager
	proxy    *proxyconfig.Manager
	archives backup.ArchiveStore
	locks    *locks.KeyedMutex
	log      *zap.SugaredLogger
}

// New wires a manager from the loaded configuration. archives may be nil
// when no archive store is configured.
func New(client *kube.Client, cfg *config.Config, timeouts *config.Timeouts, archives backup.ArchiveStore, log *zap.SugaredLogger) *Manager {
	return &Manager{
		client: client,
		cfg:    cfg,
		storage: storage.NewManager(client, storage.Config{
			NFSServer:   cfg.NFS.Server,
			NFSBasePath: cfg.NFS.BasePath,
			TaskImage:   cfg.Images.Busybox,
			Timeouts:    *timeouts,
		}, log),
		servers: gameserver.NewManager(client, gameserver.Config{
			Image:       cfg.Images.Server,
			InitImage:   cfg.Images.Busybox,
			Domain:      cfg.GameDomain,
			ProxySecret: cfg.VelocitySecret,
		}, log),
		proxy:    proxyconfig.NewManager(client, cfg.VelocitySecret, log),
		archives: archives,
		locks:    locks.New(),
		log:      log,
	}
}

// normalize sanitizes a caller-supplied name and rejects names with nothing
// usable left after sanitizing.
func normalize(kind, name string) (string, error) {
	sanitized := identity.Sanitize(name)
	if sanitized == "" {
		return "", fmt.Errorf("invalid %s name %q", kind, name)
	}
	return sanitized, nil
}

func (m *Manager) applyDefaults(req *CreateRequest) {
	d := m.cfg.Defaults
	if req.StorageCapacity == "" {
		req.StorageCapacity = d.StorageCapacity
	}
	if req.Resources.MemoryLimit == "" {
		req.Resources.MemoryLimit = d.MemoryLimit
	}
	if req.Resources.MemoryRequest == "" {
		req.Resources.MemoryRequest = d.MemoryRequest
	}
	if req.Resources.CPULimit == "" {
		req.Resources.CPULimit = d.CPULimit
	}
	if req.Resources.CPURequest == "" {
		req.Resources.CPURequest = d.CPURequest
	}
}

// CreateServer provisions a server end to end. The run is serialized per
// server and storage identity, existing storage is reused untouched, and a
// failure rolls back everything created by the run except storage and the
// shared proxy config.
func (m *Manager) CreateServer(ctx context.Context, req CreateRequest) (*ServerEndpoints, error) {
	server, err := normalize("server", req.Server)
	if err != nil {
		return nil, err
	}
	storageID, err := normalize("storage", req.Storage)
	if err != nil {
		return nil, err
	}
	if req.APIKey == "" {
		return nil, errors.New("management API key must not be empty")
	}
	m.applyDefaults(&req)

	// Lock order is fixed (server before storage) so concurrent runs that
	// share either identity cannot deadlock.
	releaseServer := m.locks.Lock("server/" + server)
	defer releaseServer()
	releaseStorage := m.locks.Lock("storage/" + storageID)
	defer releaseStorage()

	m.log.Infow("provisioning server", "server", server, "storage", storageID)
	start := time.Now()

	run := provisioning.New(m.log,
		provisioning.Step{
			Name:      "cleanup ephemeral resources",
			Completed: provisioning.StateEphemeralCleanedUp,
			Run: func(ctx context.Context) error {
				return m.servers.Delete(ctx, server)
			},
		},
		provisioning.Step{
			Name:      "ensure shared proxy config",
			Completed: provisioning.StateSharedConfigReady,
			Run: func(ctx context.Context) error {
				return m.proxy.Ensure(ctx)
			},
		},
		provisioning.Step{
			Name:      "create server config",
			Completed: provisioning.StatePerServerConfigReady,
			Run: func(ctx context.Context) error {
				return m.servers.CreateConfig(ctx, server, req.APIKey)
			},
			Compensate: func(ctx context.Context) error {
				return m.client.DeleteConfigMap(ctx, naming.ServerConfigMap(server))
			},
		},
		provisioning.Step{
			// Storage is deliberately never compensated: it may predate
			// this run and holds world data.
			Name:      "ensure storage",
			Completed: provisioning.StateStorageReady,
			Run: func(ctx context.Context) error {
				_, err := m.storage.Ensure(ctx, storageID, req.StorageCapacity)
				return err
			},
		},
		provisioning.Step{
			Name:      "create ephemeral set",
			Completed: provisioning.StateEphemeralSetCreated,
			Run: func(ctx context.Context) error {
				return m.servers.Create(ctx, server, storageID, req.Resources)
			},
			Compensate: func(ctx context.Context) error {
				return m.servers.Delete(ctx, server)
			},
		},
	)

	if err := run.Execute(ctx); err != nil {
		metrics.RecordProvision(metrics.ResultFailure, time.Since(start).Seconds())
		metrics.RecordRollback()
		return nil, err
	}
	metrics.RecordProvision(metrics.ResultSuccess, time.Since(start).Seconds())

	m.log.Infow("server provisioned", "server", server, "took", time.Since(start).Round(time.Millisecond))

	return &ServerEndpoints{
		Server:        server,
		Storage:       storageID,
		GameAddress:   naming.GameAddress(server, m.cfg.GameDomain),
		ManagementURL: naming.ManagementURL(server, m.cfg.GameDomain),
	}, nil
}

// PauseServer removes a server's ephemeral resources while keeping its
// storage, so a later CreateServer with the same identities resumes the
// world. Returns the normalized server identity.
func (m *Manager) PauseServer(ctx context.Context, name string) (string, error) {
	server, err := normalize("server", name)
	if err != nil {
		return "", err
	}

	release := m.locks.Lock("server/" + server)
	defer release()

	if err := m.servers.Delete(ctx, server); err != nil {
		metrics.RecordTeardown(metrics.ScopePause, metrics.ResultFailure)
		return "", err
	}
	metrics.RecordTeardown(metrics.ScopePause, metrics.ResultSuccess)
	return server, nil
}

// DeleteServer removes a server completely: ephemeral resources, storage
// and, when configured, its archives. Archive pruning is best effort and
// never fails the teardown. Returns the normalized identities.
func (m *Manager) DeleteServer(ctx context.Context, serverName, storageName string) (string, string, error) {
	server, err := normalize("server", serverName)
	if err != nil {
		return "", "", err
	}
	storageID, err := normalize("storage", storageName)
	if err != nil {
		return "", "", err
	}

	releaseServer := m.locks.Lock("server/" + server)
	defer releaseServer()
	releaseStorage := m.locks.Lock("storage/" + storageID)
	defer releaseStorage()

	m.log.Infow("deleting server", "server", server, "storage", storageID)

	if err := m.servers.Delete(ctx, server); err != nil {
		metrics.RecordTeardown(metrics.ScopeFull, metrics.ResultFailure)
		return "", "", err
	}
	if err := m.storage.Delete(ctx, storageID); err != nil {
		metrics.RecordTeardown(metrics.ScopeFull, metrics.ResultFailure)
		return "", "", err
	}
	m.pruneArchives(ctx, storageID)

	metrics.RecordTeardown(metrics.ScopeFull, metrics.ResultSuccess)
	return server, storageID, nil
}

// DeleteStorage removes only the persistent side of a server, including its
// archives when configured. Returns the normalized storage identity.
func (m *Manager) DeleteStorage(ctx context.Context, storageName string) (string, error) {
	storageID, err := normalize("storage", storageName)
	if err != nil {
		return "", err
	}

	release := m.locks.Lock("storage/" + storageID)
	defer release()

	if err := m.storage.Delete(ctx, storageID); err != nil {
		metrics.RecordTeardown(metrics.ScopeData, metrics.ResultFailure)
		return "", err
	}
	m.pruneArchives(ctx, storageID)

	metrics.RecordTeardown(metrics.ScopeData, metrics.ResultSuccess)
	return storageID, nil
}

func (m *Manager) pruneArchives(ctx context.Context, storageID string) {
	if m.archives == nil {
		return
	}
	if err := m.archives.Prune(ctx, storageID); err != nil {
		m.log.Warnw("failed to prune archives", "storage", storageID, "error", err)
	}
}

// ListStorage returns every managed claim.
func (m *Manager) ListStorage(ctx context.Context) ([]storage.ClaimInfo, error) {
	return m.storage.List(ctx)
}

// ListArchives returns the stored archives of a storage identity, or
// ErrArchivesDisabled when no archive store is configured.
func (m *Manager) ListArchives(ctx context.Context, storageName string) ([]backup.Archive, error) {
	if m.archives == nil {
		return nil, ErrArchivesDisabled
	}
	storageID, err := normalize("storage", storageName)
	if err != nil {
		return nil, err
	}
	return m.archives.List(ctx, storageID)
}

// Health probes the platform connection.
func (m *Manager) Health(ctx context.Context) Health {
	if err := m.client.Healthy(ctx); err != nil {
		return Health{Healthy: false, Detail: fmt.Sprintf("error: %v", err)}
	}
	return Health{Healthy: true, Detail: "connected"}
}
