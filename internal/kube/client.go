// Package kube wraps the Kubernetes API for game-server provisioning.
//
// The wrapper keeps three concerns in one place: tolerant deletes (absence is
// success), existence probes (absence is data, not an error) and bounded
// condition waits. Everything else goes through the typed clientset directly.
package kube

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	corev1 "k8s.io/api/core/v1"
)

// Client wraps a namespaced Kubernetes clientset.
type Client struct {
	cs        kubernetes.Interface
	namespace string
	log       *zap.SugaredLogger
}

// NewClient creates a client from the in-cluster service account when
// running inside a pod, falling back to the local kubeconfig otherwise.
func NewClient(namespace string, log *zap.SugaredLogger) (*Client, error) {
	cfg, err := rest.InClusterConfig()
	if err != nil {
		loadingRules := clientcmd.NewDefaultClientConfigLoadingRules()
		cfg, err = clientcmd.NewNonInteractiveDeferredLoadingClientConfig(
			loadingRules, &clientcmd.ConfigOverrides{}).ClientConfig()
		if err != nil {
			return nil, fmt.Errorf("failed to load kubeconfig: %w", err)
		}
		log.Debugw("using local kubeconfig")
	} else {
		log.Debugw("using in-cluster config")
	}

	cs, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create clientset: %w", err)
	}

	return NewFromClientset(cs, namespace, log), nil
}

// NewFromClientset creates a client from an existing clientset.
// Used by tests to inject a fake.
func NewFromClientset(cs kubernetes.Interface, namespace string, log *zap.SugaredLogger) *Client {
	return &Client{cs: cs, namespace: namespace, log: log}
}

// Interface exposes the underlying clientset for typed resource operations.
func (c *Client) Interface() kubernetes.Interface {
	return c.cs
}

// Namespace returns the namespace all managed resources live in.
func (c *Client) Namespace() string {
	return c.namespace
}

// Healthy verifies connectivity to the API server by listing a single pod
// in the managed namespace.
func (c *Client) Healthy(ctx context.Context) error {
	_, err := c.cs.CoreV1().Pods(c.namespace).List(ctx, metav1.ListOptions{Limit: 1})
	if err != nil {
		return fmt.Errorf("failed to reach API server: %w", err)
	}
	return nil
}

// ClaimExists probes for a PersistentVolumeClaim. Absence is not an error.
func (c *Client) ClaimExists(ctx context.Context, name string) (bool, error) {
	_, err := c.cs.CoreV1().PersistentVolumeClaims(c.namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		if apierrors.IsNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to probe claim %q: %w", name, err)
	}
	return true, nil
}

// GetVolume probes for a PersistentVolume, returning nil when it does not
// exist so callers can inspect the spec of an existing volume.
func (c *Client) GetVolume(ctx context.Context, name string) (*corev1.PersistentVolume, error) {
	pv, err := c.cs.CoreV1().PersistentVolumes().Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		if apierrors.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to probe volume %q: %w", name, err)
	}
	return pv, nil
}

// DeleteDeployment deletes a Deployment, treating absence as success.
func (c *Client) DeleteDeployment(ctx context.Context, name string) error {
	err := c.cs.AppsV1().Deployments(c.namespace).Delete(ctx, name, metav1.DeleteOptions{})
	return c.swallowNotFound("deployment", name, err)
}

// DeleteService deletes a Service, treating absence as success.
func (c *Client) DeleteService(ctx context.Context, name string) error {
	err := c.cs.CoreV1().Services(c.namespace).Delete(ctx, name, metav1.DeleteOptions{})
	return c.swallowNotFound("service", name, err)
}

// DeleteIngress deletes an Ingress, treating absence as success.
func (c *Client) DeleteIngress(ctx context.Context, name string) error {
	err := c.cs.NetworkingV1().Ingresses(c.namespace).Delete(ctx, name, metav1.DeleteOptions{})
	return c.swallowNotFound("ingress", name, err)
}

// DeleteConfigMap deletes a ConfigMap, treating absence as success.
func (c *Client) DeleteConfigMap(ctx context.Context, name string) error {
	err := c.cs.CoreV1().ConfigMaps(c.namespace).Delete(ctx, name, metav1.DeleteOptions{})
	return c.swallowNotFound("configmap", name, err)
}

// DeleteClaim deletes a PersistentVolumeClaim, treating absence as success.
func (c *Client) DeleteClaim(ctx context.Context, name string) error {
	err := c.cs.CoreV1().PersistentVolumeClaims(c.namespace).Delete(ctx, name, metav1.DeleteOptions{})
	return c.swallowNotFound("claim", name, err)
}

// DeleteVolume deletes a PersistentVolume, treating absence as success.
func (c *Client) DeleteVolume(ctx context.Context, name string) error {
	err := c.cs.CoreV1().PersistentVolumes().Delete(ctx, name, metav1.DeleteOptions{})
	return c.swallowNotFound("volume", name, err)
}

// DeleteJob deletes a Job and its pods (background propagation), treating
// absence as success.
func (c *Client) DeleteJob(ctx context.Context, name string) error {
	propagation := metav1.DeletePropagationBackground
	err := c.cs.BatchV1().Jobs(c.namespace).Delete(ctx, name, metav1.DeleteOptions{
		PropagationPolicy: &propagation,
	})
	return c.swallowNotFound("job", name, err)
}

// swallowNotFound converts a NotFound delete error into success and wraps
// everything else with the resource kind and name.
func (c *Client) swallowNotFound(kind, name string, err error) error {
	if err == nil {
		c.log.Debugw("deleted resource", "kind", kind, "name", name)
		return nil
	}
	if apierrors.IsNotFound(err) {
		c.log.Debugw("resource already absent", "kind", kind, "name", name)
		return nil
	}
	return fmt.Errorf("failed to delete %s %q: %w", kind, name, err)
}
