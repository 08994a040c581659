package e2e

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/kubernetes/fake"
	k8stesting "k8s.io/client-go/testing"

	"github.com/kubecraft/kubecraft/internal/config"
	"github.com/kubecraft/kubecraft/internal/kube"
	"github.com/kubecraft/kubecraft/internal/logger"
	"github.com/kubecraft/kubecraft/internal/manager"
	"github.com/kubecraft/kubecraft/internal/naming"
)

const namespace = "minecraft-servers"

// simulateControllers makes created Jobs complete and created claims bind
// immediately, standing in for the cluster's controllers.
func simulateControllers(cs *fake.Clientset) {
	cs.PrependReactor("create", "jobs", func(action k8stesting.Action) (bool, runtime.Object, error) {
		job := action.(k8stesting.CreateAction).GetObject().(*batchv1.Job)
		job.Status.Succeeded = 1
		return false, nil, nil
	})
	cs.PrependReactor("create", "persistentvolumeclaims", func(action k8stesting.Action) (bool, runtime.Object, error) {
		claim := action.(k8stesting.CreateAction).GetObject().(*corev1.PersistentVolumeClaim)
		claim.Status.Phase = corev1.ClaimBound
		return false, nil, nil
	})
}

func buildManager(cs *fake.Clientset) *manager.Manager {
	client := kube.NewFromClientset(cs, namespace, logger.Nop())

	cfg := config.Default()
	cfg.Namespace = namespace
	cfg.GameDomain = "play.example.com"
	cfg.VelocitySecret = "velocity-secret"
	cfg.InternalAPIKey = "internal-key"

	timeouts := &config.Timeouts{
		ClaimBind:    50 * time.Millisecond,
		TaskComplete: 50 * time.Millisecond,
		TaskCleanup:  50 * time.Millisecond,
		PollInterval: time.Millisecond,
		Shutdown:     time.Second,
	}

	return manager.New(client, cfg, timeouts, nil, logger.Nop())
}

func request(server, storage string) manager.CreateRequest {
	return manager.CreateRequest{Server: server, Storage: storage, APIKey: "tap-key"}
}

var _ = Describe("Server lifecycle", func() {
	var (
		mgr *manager.Manager
		cs  *fake.Clientset
		ctx context.Context
	)

	BeforeEach(func() {
		cs = fake.NewSimpleClientset()
		simulateControllers(cs)
		mgr = buildManager(cs)
		ctx = context.Background()
	})

	Describe("provisioning", func() {
		It("creates the full resource set and reports the endpoints", func() {
			endpoints, err := mgr.CreateServer(ctx, request("Alpha", "Alpha-Data"))
			Expect(err).NotTo(HaveOccurred())
			Expect(endpoints.Server).To(Equal("alpha"))
			Expect(endpoints.Storage).To(Equal("alpha-data"))
			Expect(endpoints.GameAddress).To(Equal("alpha.play.example.com"))
			Expect(endpoints.ManagementURL).To(Equal("http://alpha-api.play.example.com"))

			By("creating the workload and its network surface")
			_, err = cs.AppsV1().Deployments(namespace).Get(ctx, "alpha", metav1.GetOptions{})
			Expect(err).NotTo(HaveOccurred())
			_, err = cs.CoreV1().Services(namespace).Get(ctx, "alpha-svc", metav1.GetOptions{})
			Expect(err).NotTo(HaveOccurred())
			_, err = cs.NetworkingV1().Ingresses(namespace).Get(ctx, "servertap-alpha-ingress", metav1.GetOptions{})
			Expect(err).NotTo(HaveOccurred())

			By("creating the per-server and shared configuration")
			_, err = cs.CoreV1().ConfigMaps(namespace).Get(ctx, "servertap-config-alpha", metav1.GetOptions{})
			Expect(err).NotTo(HaveOccurred())
			_, err = cs.CoreV1().ConfigMaps(namespace).Get(ctx, naming.SharedConfig, metav1.GetOptions{})
			Expect(err).NotTo(HaveOccurred())

			By("preparing and binding the storage")
			claim, err := cs.CoreV1().PersistentVolumeClaims(namespace).Get(ctx, "alpha-data", metav1.GetOptions{})
			Expect(err).NotTo(HaveOccurred())
			Expect(claim.Spec.VolumeName).To(Equal("pv-alpha-data"))
			_, err = cs.CoreV1().PersistentVolumes().Get(ctx, "pv-alpha-data", metav1.GetOptions{})
			Expect(err).NotTo(HaveOccurred())
		})

		It("derives identical names for equivalent identities", func() {
			first, err := mgr.CreateServer(ctx, request("My Server!", "My Server! Data"))
			Expect(err).NotTo(HaveOccurred())
			Expect(first.Server).To(Equal("myserver"))

			_, _, err = mgr.DeleteServer(ctx, "MY SERVER!", "my server! data")
			Expect(err).NotTo(HaveOccurred())

			second, err := mgr.CreateServer(ctx, request("MyServer", "MyServerData"))
			Expect(err).NotTo(HaveOccurred())
			Expect(second.Server).To(Equal(first.Server))
			Expect(second.GameAddress).To(Equal(first.GameAddress))
		})
	})

	Describe("pausing", func() {
		It("removes the ephemeral set and keeps the world data", func() {
			_, err := mgr.CreateServer(ctx, request("Alpha", "Alpha-Data"))
			Expect(err).NotTo(HaveOccurred())

			server, err := mgr.PauseServer(ctx, "Alpha")
			Expect(err).NotTo(HaveOccurred())
			Expect(server).To(Equal("alpha"))

			_, err = cs.AppsV1().Deployments(namespace).Get(ctx, "alpha", metav1.GetOptions{})
			Expect(apierrors.IsNotFound(err)).To(BeTrue())
			_, err = cs.CoreV1().Services(namespace).Get(ctx, "alpha-svc", metav1.GetOptions{})
			Expect(apierrors.IsNotFound(err)).To(BeTrue())

			_, err = cs.CoreV1().PersistentVolumeClaims(namespace).Get(ctx, "alpha-data", metav1.GetOptions{})
			Expect(err).NotTo(HaveOccurred())
		})

		It("resumes on the existing storage without preparing it again", func() {
			prepares := 0
			cs.PrependReactor("create", "jobs", func(action k8stesting.Action) (bool, runtime.Object, error) {
				prepares++
				return false, nil, nil
			})

			_, err := mgr.CreateServer(ctx, request("Alpha", "Alpha-Data"))
			Expect(err).NotTo(HaveOccurred())
			Expect(prepares).To(Equal(1))

			_, err = mgr.PauseServer(ctx, "Alpha")
			Expect(err).NotTo(HaveOccurred())

			_, err = mgr.CreateServer(ctx, request("Alpha", "Alpha-Data"))
			Expect(err).NotTo(HaveOccurred())

			By("reusing the bound claim instead of running another preparation task")
			Expect(prepares).To(Equal(1))

			_, err = cs.AppsV1().Deployments(namespace).Get(ctx, "alpha", metav1.GetOptions{})
			Expect(err).NotTo(HaveOccurred())
		})
	})

	Describe("failure handling", func() {
		It("rolls back the ephemeral set but keeps storage and shared config", func() {
			cs.PrependReactor("create", "ingresses", func(action k8stesting.Action) (bool, runtime.Object, error) {
				return true, nil, errors.New("admission denied")
			})

			_, err := mgr.CreateServer(ctx, request("Alpha", "Alpha-Data"))
			Expect(err).To(HaveOccurred())

			_, err = cs.AppsV1().Deployments(namespace).Get(ctx, "alpha", metav1.GetOptions{})
			Expect(apierrors.IsNotFound(err)).To(BeTrue())
			_, err = cs.CoreV1().ConfigMaps(namespace).Get(ctx, "servertap-config-alpha", metav1.GetOptions{})
			Expect(apierrors.IsNotFound(err)).To(BeTrue())

			By("leaving the prepared storage for the next attempt")
			_, err = cs.CoreV1().PersistentVolumeClaims(namespace).Get(ctx, "alpha-data", metav1.GetOptions{})
			Expect(err).NotTo(HaveOccurred())
			_, err = cs.CoreV1().ConfigMaps(namespace).Get(ctx, naming.SharedConfig, metav1.GetOptions{})
			Expect(err).NotTo(HaveOccurred())
		})

		It("provisions cleanly after a rolled back attempt", func() {
			denied := true
			cs.PrependReactor("create", "ingresses", func(action k8stesting.Action) (bool, runtime.Object, error) {
				if denied {
					return true, nil, errors.New("admission denied")
				}
				return false, nil, nil
			})

			_, err := mgr.CreateServer(ctx, request("Alpha", "Alpha-Data"))
			Expect(err).To(HaveOccurred())

			denied = false
			endpoints, err := mgr.CreateServer(ctx, request("Alpha", "Alpha-Data"))
			Expect(err).NotTo(HaveOccurred())
			Expect(endpoints.Server).To(Equal("alpha"))
		})
	})

	Describe("teardown", func() {
		It("removes everything including storage", func() {
			_, err := mgr.CreateServer(ctx, request("Alpha", "Alpha-Data"))
			Expect(err).NotTo(HaveOccurred())

			server, storage, err := mgr.DeleteServer(ctx, "Alpha", "Alpha-Data")
			Expect(err).NotTo(HaveOccurred())
			Expect(server).To(Equal("alpha"))
			Expect(storage).To(Equal("alpha-data"))

			_, err = cs.AppsV1().Deployments(namespace).Get(ctx, "alpha", metav1.GetOptions{})
			Expect(apierrors.IsNotFound(err)).To(BeTrue())
			_, err = cs.CoreV1().PersistentVolumeClaims(namespace).Get(ctx, "alpha-data", metav1.GetOptions{})
			Expect(apierrors.IsNotFound(err)).To(BeTrue())
			_, err = cs.CoreV1().PersistentVolumes().Get(ctx, "pv-alpha-data", metav1.GetOptions{})
			Expect(apierrors.IsNotFound(err)).To(BeTrue())
		})

		It("tears down storage alone for a paused server", func() {
			_, err := mgr.CreateServer(ctx, request("Alpha", "Alpha-Data"))
			Expect(err).NotTo(HaveOccurred())
			_, err = mgr.PauseServer(ctx, "Alpha")
			Expect(err).NotTo(HaveOccurred())

			storage, err := mgr.DeleteStorage(ctx, "Alpha-Data")
			Expect(err).NotTo(HaveOccurred())
			Expect(storage).To(Equal("alpha-data"))

			_, err = cs.CoreV1().PersistentVolumeClaims(namespace).Get(ctx, "alpha-data", metav1.GetOptions{})
			Expect(apierrors.IsNotFound(err)).To(BeTrue())

			claims, err := mgr.ListStorage(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(claims).To(BeEmpty())
		})

		It("tolerates tearing down a server that never existed", func() {
			server, storage, err := mgr.DeleteServer(ctx, "ghost", "ghost-data")
			Expect(err).NotTo(HaveOccurred())
			Expect(server).To(Equal("ghost"))
			Expect(storage).To(Equal("ghost-data"))
		})
	})

	Describe("shared proxy config", func() {
		It("serves every server from one upserted config", func() {
			_, err := mgr.CreateServer(ctx, request("Alpha", "Alpha-Data"))
			Expect(err).NotTo(HaveOccurred())
			_, err = mgr.CreateServer(ctx, request("Beta", "Beta-Data"))
			Expect(err).NotTo(HaveOccurred())

			shared, err := cs.CoreV1().ConfigMaps(namespace).Get(ctx, naming.SharedConfig, metav1.GetOptions{})
			Expect(err).NotTo(HaveOccurred())
			Expect(shared.Data).To(HaveKey(naming.SharedConfigKey))
			Expect(shared.Data[naming.SharedConfigKey]).To(ContainSubstring("velocity"))

			By("keeping the shared config through a single teardown")
			_, _, err = mgr.DeleteServer(ctx, "Alpha", "Alpha-Data")
			Expect(err).NotTo(HaveOccurred())
			_, err = cs.CoreV1().ConfigMaps(namespace).Get(ctx, naming.SharedConfig, metav1.GetOptions{})
			Expect(err).NotTo(HaveOccurred())
		})
	})

	Describe("storage listing", func() {
		It("reports the claims the system manages", func() {
			_, err := mgr.CreateServer(ctx, request("Alpha", "Alpha-Data"))
			Expect(err).NotTo(HaveOccurred())
			_, err = mgr.CreateServer(ctx, request("Beta", "Beta-Data"))
			Expect(err).NotTo(HaveOccurred())

			claims, err := mgr.ListStorage(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(claims).To(HaveLen(2))

			names := []string{claims[0].Name, claims[1].Name}
			Expect(names).To(ConsistOf("alpha-data", "beta-data"))
		})
	})
})
