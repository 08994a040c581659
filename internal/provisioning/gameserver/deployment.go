package gameserver

import (
	"fmt"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/intstr"

	"github.com/kubecraft/kubecraft/internal/labels"
	"github.com/kubecraft/kubecraft/internal/naming"
	"github.com/kubecraft/kubecraft/internal/ptr"
)

// Pod volume names.
const (
	dataVolume         = "minecraft-data"
	pluginsVolume      = "plugins-cache"
	serverConfigVolume = "servertap-config"
	sharedConfigVolume = "paper-config"
)

// buildDeployment assembles the server Deployment. The selector stays
// narrower than the pod labels so labels can be added later without breaking
// the immutable selector.
func buildDeployment(server, storage string, cfg Config, res Resources) (*appsv1.Deployment, error) {
	requirements, err := parseResources(res)
	if err != nil {
		return nil, err
	}

	return &appsv1.Deployment{
		ObjectMeta: metav1.ObjectMeta{
			Name:   naming.Deployment(server),
			Labels: labels.ForServer(server),
		},
		Spec: appsv1.DeploymentSpec{
			Replicas: ptr.Int32(1),
			Selector: &metav1.LabelSelector{MatchLabels: labels.SelectorForServer(server)},
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{Labels: labels.ForServer(server)},
				Spec: corev1.PodSpec{
					PriorityClassName: priorityClass,
					RestartPolicy:     corev1.RestartPolicyAlways,
					SecurityContext: &corev1.PodSecurityContext{
						FSGroup:      ptr.Int64(1000),
						RunAsNonRoot: ptr.Bool(true),
					},
					InitContainers: initContainers(cfg.InitImage),
					Containers:     []corev1.Container{serverContainer(cfg, requirements)},
					Volumes:        volumes(server, storage),
				},
			},
		},
	}, nil
}

// parseQuantity rejects what ParseQuantity alone would let through:
// inputs like "-" parse to a zero quantity, which the scheduler would
// treat as no request at all.
func parseQuantity(what, value string) (resource.Quantity, error) {
	q, err := resource.ParseQuantity(value)
	if err != nil {
		return resource.Quantity{}, fmt.Errorf("invalid %s %q: %w", what, value, err)
	}
	if q.Sign() <= 0 {
		return resource.Quantity{}, fmt.Errorf("invalid %s %q: must be positive", what, value)
	}
	return q, nil
}

func parseResources(res Resources) (corev1.ResourceRequirements, error) {
	memLimit, err := parseQuantity("memory limit", res.MemoryLimit)
	if err != nil {
		return corev1.ResourceRequirements{}, err
	}
	memRequest, err := parseQuantity("memory request", res.MemoryRequest)
	if err != nil {
		return corev1.ResourceRequirements{}, err
	}
	cpuLimit, err := parseQuantity("cpu limit", res.CPULimit)
	if err != nil {
		return corev1.ResourceRequirements{}, err
	}
	cpuRequest, err := parseQuantity("cpu request", res.CPURequest)
	if err != nil {
		return corev1.ResourceRequirements{}, err
	}

	return corev1.ResourceRequirements{
		Limits: corev1.ResourceList{
			corev1.ResourceCPU:    cpuLimit,
			corev1.ResourceMemory: memLimit,
		},
		Requests: corev1.ResourceList{
			corev1.ResourceCPU:    cpuRequest,
			corev1.ResourceMemory: memRequest,
		},
	}, nil
}

// initContainers stage plugins and configuration files into the data volume
// before the server starts. They run as the server user so the copied files
// stay writable.
func initContainers(image string) []corev1.Container {
	asServerUser := &corev1.SecurityContext{
		RunAsUser:  ptr.Int64(1000),
		RunAsGroup: ptr.Int64(1000),
	}

	return []corev1.Container{
		{
			Name:    "copy-plugins-from-cache",
			Image:   image,
			Command: []string{"sh", "-c"},
			Args: []string{
				"set -e; " +
					"mkdir -p /data/plugins; " +
					"cp /plugins-cache/*.jar /data/plugins/ 2>/dev/null || true; " +
					"chmod 644 /data/plugins/*.jar 2>/dev/null || true; " +
					"echo 'Plugins copied from cache:'; " +
					"ls -lh /data/plugins/",
			},
			VolumeMounts: []corev1.VolumeMount{
				{Name: dataVolume, MountPath: "/data"},
				{Name: pluginsVolume, MountPath: "/plugins-cache", ReadOnly: true},
			},
			SecurityContext: asServerUser,
		},
		{
			Name:    "copy-servertap-config",
			Image:   image,
			Command: []string{"sh", "-c"},
			Args: []string{
				"set -e; mkdir -p /data/plugins/ServerTap; " +
					"cp /config/config.yml /data/plugins/ServerTap/config.yml; " +
					"chmod 644 /data/plugins/ServerTap/config.yml; " +
					"echo 'ServerTap config copied successfully.'",
			},
			VolumeMounts: []corev1.VolumeMount{
				{Name: dataVolume, MountPath: "/data"},
				{Name: serverConfigVolume, MountPath: "/config"},
			},
			SecurityContext: asServerUser,
		},
		{
			Name:    "copy-paper-config",
			Image:   image,
			Command: []string{"sh", "-c"},
			Args: []string{
				"set -e; mkdir -p /data/config; " +
					"cp /paper-config/paper-global.yml /data/config/paper-global.yml; " +
					"chmod 644 /data/config/paper-global.yml; " +
					"echo 'Paper config copied successfully.'",
			},
			VolumeMounts: []corev1.VolumeMount{
				{Name: dataVolume, MountPath: "/data"},
				{Name: sharedConfigVolume, MountPath: "/paper-config"},
			},
			SecurityContext: asServerUser,
		},
	}
}

func serverContainer(cfg Config, requirements corev1.ResourceRequirements) corev1.Container {
	return corev1.Container{
		Name:  "minecraft",
		Image: cfg.Image,
		Ports: []corev1.ContainerPort{
			{Name: "minecraft", ContainerPort: gamePort},
			{Name: "servertap", ContainerPort: managementPort},
		},
		Env: []corev1.EnvVar{
			{Name: "EULA", Value: "TRUE"},
			{Name: "TYPE", Value: "PAPER"},
			{Name: "VERSION", Value: "1.21.1"},
			{Name: "MEMORY", Value: "2G"},
			{Name: "ONLINE_MODE", Value: "FALSE"},
			{Name: "MAX_TICK_TIME", Value: "-1"},
			{Name: "PAPER_PROXY_SECRET", Value: cfg.ProxySecret},
			{Name: "CFG_PAPER_PROXIES_VELOCITY_ENABLED", Value: "true"},
			{Name: "CFG_PAPER_PROXIES_VELOCITY_ONLINE_MODE", Value: "false"},
			{Name: "CFG_PAPER_PROXIES_VELOCITY_SECRET", Value: cfg.ProxySecret},
		},
		Resources: requirements,
		SecurityContext: &corev1.SecurityContext{
			RunAsNonRoot:             ptr.Bool(true),
			RunAsUser:                ptr.Int64(1000),
			RunAsGroup:               ptr.Int64(1000),
			AllowPrivilegeEscalation: ptr.Bool(false),
		},
		VolumeMounts: []corev1.VolumeMount{{Name: dataVolume, MountPath: "/data"}},
		// The world load after a restart can take minutes, so readiness is
		// probed patiently and liveness far more so.
		ReadinessProbe: &corev1.Probe{
			ProbeHandler:        corev1.ProbeHandler{TCPSocket: &corev1.TCPSocketAction{Port: intstr.FromInt32(gamePort)}},
			InitialDelaySeconds: 60,
			PeriodSeconds:       5,
			FailureThreshold:    20,
		},
		LivenessProbe: &corev1.Probe{
			ProbeHandler:        corev1.ProbeHandler{TCPSocket: &corev1.TCPSocketAction{Port: intstr.FromInt32(gamePort)}},
			InitialDelaySeconds: 180,
			PeriodSeconds:       30,
			FailureThreshold:    3,
		},
	}
}

func volumes(server, storage string) []corev1.Volume {
	return []corev1.Volume{
		{
			Name: dataVolume,
			VolumeSource: corev1.VolumeSource{
				PersistentVolumeClaim: &corev1.PersistentVolumeClaimVolumeSource{
					ClaimName: naming.Claim(storage),
				},
			},
		},
		{
			Name: pluginsVolume,
			VolumeSource: corev1.VolumeSource{
				PersistentVolumeClaim: &corev1.PersistentVolumeClaimVolumeSource{
					ClaimName: pluginsCacheClaim,
					ReadOnly:  true,
				},
			},
		},
		{
			Name: serverConfigVolume,
			VolumeSource: corev1.VolumeSource{
				ConfigMap: &corev1.ConfigMapVolumeSource{
					LocalObjectReference: corev1.LocalObjectReference{Name: naming.ServerConfigMap(server)},
				},
			},
		},
		{
			Name: sharedConfigVolume,
			VolumeSource: corev1.VolumeSource{
				ConfigMap: &corev1.ConfigMapVolumeSource{
					LocalObjectReference: corev1.LocalObjectReference{Name: naming.SharedConfig},
				},
			},
		},
	}
}
