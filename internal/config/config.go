// Package config loads and validates the runtime configuration.
//
// Configuration is resolved in three layers: built-in defaults, an optional
// YAML file, then environment variables. The environment variable names match
// the original deployment of this service, so existing manifests keep
// working. Secrets are environment-only and never read from the file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the full runtime configuration of the service.
type Config struct {
	// Namespace is the Kubernetes namespace all managed resources live in.
	Namespace string `yaml:"namespace"`
	// GameDomain is the DNS zone game and management addresses are derived from.
	GameDomain string `yaml:"gameDomain"`
	// ListenAddr is the HTTP API bind address.
	ListenAddr string `yaml:"listenAddr"`
	// LogLevel controls the structured logger (debug, info, warn, error).
	LogLevel string `yaml:"logLevel"`

	NFS      NFSConfig        `yaml:"nfs"`
	Images   ImageConfig      `yaml:"images"`
	Defaults WorkloadDefaults `yaml:"defaults"`
	Backup   BackupConfig     `yaml:"backup"`

	// VelocitySecret is the proxy forwarding secret shared with every server.
	// Environment-only (VELOCITY_SECRET), required.
	VelocitySecret string `yaml:"-"`
	// InternalAPIKey guards the HTTP API. Environment-only (INTERNAL_API_KEY),
	// required.
	InternalAPIKey string `yaml:"-"`
}

// NFSConfig describes the NFS export backing all persistent volumes.
type NFSConfig struct {
	Server   string `yaml:"server"`
	BasePath string `yaml:"basePath"`
}

// ImageConfig holds the container images used in managed workloads.
type ImageConfig struct {
	Server  string `yaml:"server"`
	Busybox string `yaml:"busybox"`
}

// WorkloadDefaults are the sizing values used when a request omits them.
type WorkloadDefaults struct {
	StorageCapacity string `yaml:"storageCapacity"`
	MemoryLimit     string `yaml:"memoryLimit"`
	MemoryRequest   string `yaml:"memoryRequest"`
	CPULimit        string `yaml:"cpuLimit"`
	CPURequest      string `yaml:"cpuRequest"`
}

// BackupConfig points at the optional S3-compatible archive store for world
// backups. The feature is active only when Enabled returns true.
type BackupConfig struct {
	Endpoint string `yaml:"endpoint"`
	Region   string `yaml:"region"`
	Bucket   string `yaml:"bucket"`

	// Credentials are environment-only (BACKUP_S3_ACCESS_KEY / BACKUP_S3_SECRET_KEY).
	AccessKey string `yaml:"-"`
	SecretKey string `yaml:"-"`
}

// Enabled reports whether the archive store is fully configured.
func (b BackupConfig) Enabled() bool {
	return b.Endpoint != "" && b.Bucket != "" && b.AccessKey != "" && b.SecretKey != ""
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Namespace:  "minecraft-servers",
		GameDomain: "mc.msdca.shop",
		ListenAddr: ":8000",
		LogLevel:   "info",
		NFS: NFSConfig{
			Server:   "100.75.219.111",
			BasePath: "/mnt/nfs-minecraft",
		},
		Images: ImageConfig{
			Server:  "itzg/minecraft-server:latest",
			Busybox: "busybox:1.35",
		},
		Defaults: WorkloadDefaults{
			StorageCapacity: "10Gi",
			MemoryLimit:     "3Gi",
			MemoryRequest:   "3Gi",
			CPULimit:        "2",
			CPURequest:      "2",
		},
		Backup: BackupConfig{
			Region: "us-east-1",
		},
	}
}

// Load resolves the configuration from defaults, the optional YAML file at
// path, and environment variables, then validates it.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := unmarshalStrict(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// unmarshalStrict decodes YAML rejecting unknown fields, so typos in config
// files surface instead of silently falling back to defaults.
func unmarshalStrict(data []byte, out any) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (c *Config) applyEnv() {
	setFromEnv(&c.Namespace, "K8S_NAMESPACE")
	setFromEnv(&c.GameDomain, "GAME_DOMAIN")
	setFromEnv(&c.ListenAddr, "KUBECRAFT_LISTEN_ADDR")
	setFromEnv(&c.LogLevel, "LOG_LEVEL")
	setFromEnv(&c.NFS.Server, "NFS_SERVER")
	setFromEnv(&c.NFS.BasePath, "NFS_BASE_PATH")
	setFromEnv(&c.Images.Server, "MINECRAFT_IMAGE")
	setFromEnv(&c.Images.Busybox, "BUSYBOX_IMAGE")
	setFromEnv(&c.Defaults.StorageCapacity, "DEFAULT_STORAGE_CAPACITY")
	setFromEnv(&c.Defaults.MemoryLimit, "MEMORY_LIMIT")
	setFromEnv(&c.Defaults.MemoryRequest, "MEMORY_REQUEST")
	setFromEnv(&c.Defaults.CPULimit, "CPU_LIMIT")
	setFromEnv(&c.Defaults.CPURequest, "CPU_REQUEST")
	setFromEnv(&c.VelocitySecret, "VELOCITY_SECRET")
	setFromEnv(&c.InternalAPIKey, "INTERNAL_API_KEY")
	setFromEnv(&c.Backup.Endpoint, "BACKUP_S3_ENDPOINT")
	setFromEnv(&c.Backup.Region, "BACKUP_S3_REGION")
	setFromEnv(&c.Backup.Bucket, "BACKUP_S3_BUCKET")
	setFromEnv(&c.Backup.AccessKey, "BACKUP_S3_ACCESS_KEY")
	setFromEnv(&c.Backup.SecretKey, "BACKUP_S3_SECRET_KEY")
}

// setFromEnv overrides dst when the environment variable is set and non-empty.
func setFromEnv(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// Validate checks that required values are present.
func (c *Config) Validate() error {
	if c.VelocitySecret == "" {
		return fmt.Errorf("VELOCITY_SECRET must be set")
	}
	if c.InternalAPIKey == "" {
		return fmt.Errorf("INTERNAL_API_KEY must be set")
	}
	if c.Namespace == "" {
		return fmt.Errorf("namespace must not be empty")
	}
	if c.GameDomain == "" {
		return fmt.Errorf("gameDomain must not be empty")
	}
	if c.NFS.Server == "" {
		return fmt.Errorf("nfs.server must not be empty")
	}
	if c.NFS.BasePath == "" {
		return fmt.Errorf("nfs.basePath must not be empty")
	}
	return nil
}
