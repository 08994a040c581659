// Package handlers implements the business logic for CLI commands.
//
// This package contains handler functions that are called by command definitions
// in the commands package. Handlers are framework-agnostic and can be tested
// independently of the CLI framework.
package handlers

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/kubecraft/kubecraft/internal/api"
	"github.com/kubecraft/kubecraft/internal/backup"
	"github.com/kubecraft/kubecraft/internal/config"
	"github.com/kubecraft/kubecraft/internal/kube"
	"github.com/kubecraft/kubecraft/internal/logger"
	"github.com/kubecraft/kubecraft/internal/manager"
)

// Factory function variables - can be replaced in tests for dependency injection.
var (
	// loadConfig resolves the configuration from defaults, file, and environment.
	loadConfig = config.Load

	// loadTimeouts resolves the waiter timeouts from the environment.
	loadTimeouts = config.LoadTimeouts

	// newKubeClient connects to the managed cluster.
	newKubeClient = kube.NewClient

	// newManager wires the provisioning manager.
	newManager = manager.New

	// newArchiveStore connects to the optional S3 archive store.
	newArchiveStore = func(b config.BackupConfig, log *zap.SugaredLogger) (backup.ArchiveStore, error) {
		return backup.NewS3Store(b.Endpoint, b.Region, b.AccessKey, b.SecretKey, b.Bucket, log)
	}
)

// Serve handles the serve command.
//
// It wires configuration, logging, the cluster client, and the optional
// archive store into a manager, then serves the HTTP API until the process
// receives SIGINT or SIGTERM.
func Serve(ctx context.Context, configPath, version string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	timeouts := loadTimeouts()

	log := logger.New(cfg.LogLevel)

	client, err := newKubeClient(cfg.Namespace, log)
	if err != nil {
		return fmt.Errorf("failed to connect to kubernetes: %w", err)
	}

	var archives backup.ArchiveStore
	if cfg.Backup.Enabled() {
		archives, err = newArchiveStore(cfg.Backup, log)
		if err != nil {
			return fmt.Errorf("failed to connect archive store: %w", err)
		}
		log.Infow("archive store connected", "endpoint", cfg.Backup.Endpoint, "bucket", cfg.Backup.Bucket)
	}

	mgr := newManager(client, cfg, timeouts, archives, log)

	health := mgr.Health(ctx)
	log.Infow("kubernetes connection",
		"healthy", health.Healthy,
		"detail", health.Detail,
		"namespace", cfg.Namespace,
	)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := api.NewServer(mgr, cfg.InternalAPIKey, version, log)
	return srv.Run(ctx, cfg.ListenAddr, timeouts.Shutdown)
}
