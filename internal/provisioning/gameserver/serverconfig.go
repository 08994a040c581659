package gameserver

import (
	"fmt"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/yaml"

	"github.com/kubecraft/kubecraft/internal/naming"
)

// managementConfig is the settings file consumed by the in-server management
// API plugin. Field names follow the plugin's own configuration schema.
type managementConfig struct {
	Port                   int       `json:"port"`
	Debug                  bool      `json:"debug"`
	UseKeyAuth             bool      `json:"useKeyAuth"`
	Key                    string    `json:"key"`
	NormalizeMessages      bool      `json:"normalizeMessages"`
	TLS                    tlsConfig `json:"tls"`
	CORSOrigins            []string  `json:"corsOrigins"`
	WebsocketConsoleBuffer int       `json:"websocketConsoleBuffer"`
	DisableSwagger         bool      `json:"disable-swagger"`
	BlockedPaths           []string  `json:"blocked-paths"`
}

type tlsConfig struct {
	Enabled bool `json:"enabled"`
}

// buildServerConfig renders the per-server ConfigMap carrying the management
// API settings, keyed by the caller-supplied API key.
func buildServerConfig(server, apiKey string) (*corev1.ConfigMap, error) {
	cfg := managementConfig{
		Port:                   managementPort,
		UseKeyAuth:             true,
		Key:                    apiKey,
		NormalizeMessages:      true,
		CORSOrigins:            []string{"*"},
		WebsocketConsoleBuffer: 1000,
		BlockedPaths:           []string{},
	}

	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("rendering management config: %w", err)
	}

	return &corev1.ConfigMap{
		ObjectMeta: metav1.ObjectMeta{Name: naming.ServerConfigMap(server)},
		Data:       map[string]string{naming.ServerConfigKey: string(raw)},
	}, nil
}
