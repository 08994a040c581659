package naming

import "testing"

func TestNamingFunctions(t *testing.T) {
	server := "alpha"
	storage := "alpha-data"
	domain := "play.example.com"

	tests := []struct {
		name     string
		got      string
		expected string
	}{
		{
			name:     "Deployment",
			got:      Deployment(server),
			expected: "alpha",
		},
		{
			name:     "Service",
			got:      Service(server),
			expected: "alpha-svc",
		},
		{
			name:     "Ingress",
			got:      Ingress(server),
			expected: "servertap-alpha-ingress",
		},
		{
			name:     "ServerConfigMap",
			got:      ServerConfigMap(server),
			expected: "servertap-config-alpha",
		},
		{
			name:     "Claim",
			got:      Claim(storage),
			expected: "alpha-data",
		},
		{
			name:     "PersistentVolume",
			got:      PersistentVolume(storage),
			expected: "pv-alpha-data",
		},
		{
			name:     "StorageDirJob",
			got:      StorageDirJob(storage),
			expected: "create-nfs-dir-alpha-data",
		},
		{
			name:     "StorageDir",
			got:      StorageDir("/mnt/nfs-minecraft", storage),
			expected: "/mnt/nfs-minecraft/alpha-data",
		},
		{
			name:     "GameAddress",
			got:      GameAddress(server, domain),
			expected: "alpha.play.example.com",
		},
		{
			name:     "ManagementHost",
			got:      ManagementHost(server, domain),
			expected: "alpha-api.play.example.com",
		},
		{
			name:     "ManagementURL",
			got:      ManagementURL(server, domain),
			expected: "http://alpha-api.play.example.com",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, tt.got)
			}
		})
	}
}

func TestSharedConfigName(t *testing.T) {
	if SharedConfig != "paper-global-config" {
		t.Errorf("Expected %q, got %q", "paper-global-config", SharedConfig)
	}
}
