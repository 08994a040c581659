// Package naming derives the name of every Kubernetes resource managed for a
// game server from its normalized identities.
//
// All resource names are produced here and nowhere else, so that creation,
// teardown and probing always agree on which resources belong to an identity.
package naming

import "fmt"

// SharedConfig is the cluster-wide proxy trust ConfigMap shared by all
// servers. It is created on demand and never deleted.
const SharedConfig = "paper-global-config"

// SharedConfigKey is the data key under which the proxy settings file is
// stored in the shared ConfigMap. Init containers copy it into the server
// data directory under the same file name.
const SharedConfigKey = "paper-global.yml"

// ServerConfigKey is the data key holding the per-server management API
// settings file.
const ServerConfigKey = "config.yml"

// Deployment returns the Deployment name for a server identity.
func Deployment(server string) string {
	return server
}

// Service returns the Service name for a server identity.
func Service(server string) string {
	return fmt.Sprintf("%s-svc", server)
}

// Ingress returns the management Ingress name for a server identity.
func Ingress(server string) string {
	return fmt.Sprintf("servertap-%s-ingress", server)
}

// ServerConfigMap returns the per-server management ConfigMap name.
func ServerConfigMap(server string) string {
	return fmt.Sprintf("servertap-config-%s", server)
}

// Claim returns the PersistentVolumeClaim name for a storage identity.
func Claim(storage string) string {
	return storage
}

// PersistentVolume returns the PV name backing a storage identity.
func PersistentVolume(storage string) string {
	return fmt.Sprintf("pv-%s", storage)
}

// StorageDirJob returns the name of the one-shot Job that prepares the
// NFS directory for a storage identity.
func StorageDirJob(storage string) string {
	return fmt.Sprintf("create-nfs-dir-%s", storage)
}

// StorageDir returns the NFS export path backing a storage identity.
func StorageDir(basePath, storage string) string {
	return fmt.Sprintf("%s/%s", basePath, storage)
}

// GameAddress returns the address game clients connect to.
func GameAddress(server, domain string) string {
	return fmt.Sprintf("%s.%s", server, domain)
}

// ManagementHost returns the hostname serving the management API.
func ManagementHost(server, domain string) string {
	return fmt.Sprintf("%s-api.%s", server, domain)
}

// ManagementURL returns the full management API URL reported to callers.
func ManagementURL(server, domain string) string {
	return fmt.Sprintf("http://%s", ManagementHost(server, domain))
}
