package gameserver

import (
	corev1 "k8s.io/api/core/v1"
	networkingv1 "k8s.io/api/networking/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/intstr"

	"github.com/kubecraft/kubecraft/internal/labels"
	"github.com/kubecraft/kubecraft/internal/naming"
	"github.com/kubecraft/kubecraft/internal/ptr"
)

// buildService exposes both the game port and the management port inside the
// cluster. The subdomain label on the Service is what proxy discovery routes
// players by.
func buildService(server string) *corev1.Service {
	return &corev1.Service{
		ObjectMeta: metav1.ObjectMeta{
			Name:   naming.Service(server),
			Labels: labels.ForService(server),
		},
		Spec: corev1.ServiceSpec{
			Selector: map[string]string{labels.KeyApp: server},
			Type:     corev1.ServiceTypeClusterIP,
			Ports: []corev1.ServicePort{
				{Name: "minecraft", Port: gamePort, TargetPort: intstr.FromInt32(gamePort)},
				{Name: "api", Port: managementPort, TargetPort: intstr.FromInt32(managementPort)},
			},
		},
	}
}

// buildIngress routes the public management host to the management port.
// The websocket annotation keeps console connections alive through nginx.
func buildIngress(server, domain string) *networkingv1.Ingress {
	serviceName := naming.Service(server)
	pathType := networkingv1.PathTypePrefix

	return &networkingv1.Ingress{
		ObjectMeta: metav1.ObjectMeta{
			Name: naming.Ingress(server),
			Annotations: map[string]string{
				"nginx.ingress.kubernetes.io/websocket-services": serviceName,
			},
		},
		Spec: networkingv1.IngressSpec{
			IngressClassName: ptr.String("nginx"),
			Rules: []networkingv1.IngressRule{
				{
					Host: naming.ManagementHost(server, domain),
					IngressRuleValue: networkingv1.IngressRuleValue{
						HTTP: &networkingv1.HTTPIngressRuleValue{
							Paths: []networkingv1.HTTPIngressPath{
								{
									Path:     "/",
									PathType: &pathType,
									Backend: networkingv1.IngressBackend{
										Service: &networkingv1.IngressServiceBackend{
											Name: serviceName,
											Port: networkingv1.ServiceBackendPort{Number: managementPort},
										},
									},
								},
							},
						},
					},
				},
			},
		},
	}
}
