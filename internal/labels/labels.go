// Package labels provides consistent labeling for managed game-server resources.
//
// Label keys fall into two groups: the kubecraft.io domain prefix identifies
// resources owned by this system, and the short legacy keys are the values
// external consumers (the reverse proxy discovery and the storage listing
// filter) select on. Both sets are applied so either selector works.
package labels

// Standard label keys.
const (
	// KeyManagedBy identifies the management system on every owned resource.
	KeyManagedBy = "kubecraft.io/managed-by"

	// Short keys relied on by selectors and external tooling.
	KeyApp        = "app"
	KeyType       = "type"
	KeyServerFlag = "minecraft-server"
	KeySubdomain  = "subdomain"
	KeyJob        = "job"
)

// Label values.
const (
	ManagedBy   = "kubecraft"
	TypeServer  = "minecraft-server"
	TypeStorage = "minecraft-storage"
)

// ForServer returns the labels applied to a server's Deployment and pods.
func ForServer(server string) map[string]string {
	return map[string]string{
		KeyApp:       server,
		KeyType:      TypeServer,
		KeyManagedBy: ManagedBy,
	}
}

// SelectorForServer returns the immutable pod selector for a server's
// Deployment and Service. Kept narrower than ForServer so extra labels can
// be added to pods without breaking existing selectors.
func SelectorForServer(server string) map[string]string {
	return map[string]string{
		KeyApp:  server,
		KeyType: TypeServer,
	}
}

// ForService returns the labels applied to a server's Service. The
// subdomain and minecraft-server flags are consumed by proxy discovery.
func ForService(server string) map[string]string {
	l := ForServer(server)
	l[KeyServerFlag] = "true"
	l[KeySubdomain] = server
	return l
}

// ForStorage returns the labels applied to a storage identity's claim.
// The type key is what StorageSelector matches on.
func ForStorage(storage string) map[string]string {
	return map[string]string{
		KeyApp:       storage,
		KeyType:      TypeStorage,
		KeyManagedBy: ManagedBy,
	}
}

// ForVolume returns the labels applied to a storage identity's PV.
func ForVolume(storage string) map[string]string {
	return map[string]string{
		KeyApp:       storage,
		KeyManagedBy: ManagedBy,
	}
}

// ForTaskPod returns the labels applied to the pods of a preparation Job.
func ForTaskPod(job string) map[string]string {
	return map[string]string{
		KeyJob:       job,
		KeyManagedBy: ManagedBy,
	}
}

// StorageSelector returns the label selector matching every claim this
// system manages.
func StorageSelector() string {
	return KeyType + "=" + TypeStorage
}

// TaskPodSelector returns the label selector matching the pods spawned by
// a Job. The job-name label is set by Kubernetes itself.
func TaskPodSelector(job string) string {
	return "job-name=" + job
}
