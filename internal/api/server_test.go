package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/kubernetes/fake"
	k8stesting "k8s.io/client-go/testing"

	"github.com/kubecraft/kubecraft/internal/backup"
	"github.com/kubecraft/kubecraft/internal/config"
	"github.com/kubecraft/kubecraft/internal/kube"
	"github.com/kubecraft/kubecraft/internal/logger"
	"github.com/kubecraft/kubecraft/internal/manager"
)

const (
	testNamespace = "test-servers"
	testAPIKey    = "internal-key"
)

type stubArchives struct {
	archives []backup.Archive
	pruned   []string
}

func (s *stubArchives) List(ctx context.Context, storage string) ([]backup.Archive, error) {
	return s.archives, nil
}

func (s *stubArchives) Prune(ctx context.Context, storage string) error {
	s.pruned = append(s.pruned, storage)
	return nil
}

func newTestServer(archives backup.ArchiveStore, objects ...runtime.Object) (*Server, *fake.Clientset) {
	cs := fake.NewSimpleClientset(objects...)
	client := kube.NewFromClientset(cs, testNamespace, logger.Nop())

	cfg := config.Default()
	cfg.Namespace = testNamespace
	cfg.GameDomain = "play.example.com"
	cfg.VelocitySecret = "velocity-secret"
	cfg.InternalAPIKey = testAPIKey

	timeouts := &config.Timeouts{
		ClaimBind:    50 * time.Millisecond,
		TaskComplete: 50 * time.Millisecond,
		TaskCleanup:  50 * time.Millisecond,
		PollInterval: time.Millisecond,
		Shutdown:     time.Second,
	}

	mgr := manager.New(client, cfg, timeouts, archives, logger.Nop())
	return NewServer(mgr, testAPIKey, "test", logger.Nop()), cs
}

// succeedAsync makes created Jobs complete and created claims bind
// immediately, standing in for the controllers a real cluster runs.
func succeedAsync(cs *fake.Clientset) {
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

func doRequest(s *Server, method, path, body string, authed bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if authed {
		req.Header.Set("X-API-Key", testAPIKey)
	}

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

const createBody = `{"pod_name":"Alpha","pvc_name":"Alpha-Data","servertap_key":"tap-key"}`

func TestAuthRejectsMissingKey(t *testing.T) {
	s, _ := newTestServer(nil)

	rec := doRequest(s, http.MethodPost, "/k8s/server", createBody, false)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Invalid API Key", decodeBody(t, rec)["detail"])
}

func TestAuthRejectsWrongKey(t *testing.T) {
	s, _ := newTestServer(nil)

	req := httptest.NewRequest(http.MethodGet, "/k8s/volumes", nil)
	req.Header.Set("X-API-Key", "guess")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestBannerAndHealthAreUnauthenticated(t *testing.T) {
	s, _ := newTestServer(nil)

	rec := doRequest(s, http.MethodGet, "/", "", false)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "test", decodeBody(t, rec)["version"])

	rec = doRequest(s, http.MethodGet, "/health", "", false)
	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "connected", body["kubernetes"])
}

func TestHealthReportsPlatformErrors(t *testing.T) {
	s, cs := newTestServer(nil)
	cs.PrependReactor("list", "pods", func(action k8stesting.Action) (bool, runtime.Object, error) {
		return true, nil, errors.New("connection refused")
	})

	rec := doRequest(s, http.MethodGet, "/health", "", false)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "unhealthy", body["status"])
	assert.Contains(t, body["kubernetes"], "connection refused")
}

func TestCreateServer(t *testing.T) {
	s, cs := newTestServer(nil)
	succeedAsync(cs)

	rec := doRequest(s, http.MethodPost, "/k8s/server", createBody, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decodeBody(t, rec)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, "alpha", body["pod_name"])
	assert.Equal(t, "alpha-data", body["pvc_name"])
	assert.Equal(t, "alpha.play.example.com", body["game_url"])
	assert.Equal(t, "http://alpha-api.play.example.com", body["api_url"])

	// Omitted sizing fields took the documented API defaults.
	dep, err := cs.AppsV1().Deployments(testNamespace).Get(context.Background(), "alpha", metav1.GetOptions{})
	require.NoError(t, err)
	game := dep.Spec.Template.Spec.Containers[0]
	assert.Equal(t, "4Gi", game.Resources.Limits.Memory().String())
	assert.Equal(t, "2Gi", game.Resources.Requests.Memory().String())
	assert.Equal(t, "1", game.Resources.Requests.Cpu().String())
}

func TestCreateServerHonorsRequestedSizing(t *testing.T) {
	s, cs := newTestServer(nil)
	succeedAsync(cs)

	body := `{"pod_name":"alpha","pvc_name":"alpha-data","servertap_key":"k","memory_limit":"6Gi","cpu_limit":"4"}`
	rec := doRequest(s, http.MethodPost, "/k8s/server", body, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	dep, err := cs.AppsV1().Deployments(testNamespace).Get(context.Background(), "alpha", metav1.GetOptions{})
	require.NoError(t, err)
	game := dep.Spec.Template.Spec.Containers[0]
	assert.Equal(t, "6Gi", game.Resources.Limits.Memory().String())
	assert.Equal(t, "4", game.Resources.Limits.Cpu().String())
}

func TestCreateServerRejectsIncompleteBody(t *testing.T) {
	s, _ := newTestServer(nil)

	rec := doRequest(s, http.MethodPost, "/k8s/server", `{"pod_name":"alpha","pvc_name":"alpha-data"}`, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeBody(t, rec)["detail"], "ServertapKey")
}

func TestCreateServerFailureCarriesCause(t *testing.T) {
	s, cs := newTestServer(nil)
	succeedAsync(cs)
	cs.PrependReactor("create", "ingresses", func(action k8stesting.Action) (bool, runtime.Object, error) {
		return true, nil, errors.New("admission denied")
	})

	rec := doRequest(s, http.MethodPost, "/k8s/server", createBody, true)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, decodeBody(t, rec)["detail"], "admission denied")
}

func TestPauseServer(t *testing.T) {
	s, cs := newTestServer(nil)
	succeedAsync(cs)
	ctx := context.Background()

	rec := doRequest(s, http.MethodPost, "/k8s/server", createBody, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doRequest(s, http.MethodPost, "/k8s/server/Alpha/pause", "", true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, "alpha", body["pod_name"])
	assert.Contains(t, body["message"], "(paused)")

	// The workload is gone but the claim survived.
	_, err := cs.AppsV1().Deployments(testNamespace).Get(ctx, "alpha", metav1.GetOptions{})
	assert.True(t, apierrors.IsNotFound(err))
	_, err = cs.CoreV1().PersistentVolumeClaims(testNamespace).Get(ctx, "alpha-data", metav1.GetOptions{})
	assert.NoError(t, err)
}

func TestDeleteServer(t *testing.T) {
	s, cs := newTestServer(nil)
	succeedAsync(cs)
	ctx := context.Background()

	rec := doRequest(s, http.MethodPost, "/k8s/server", createBody, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doRequest(s, http.MethodDelete, "/k8s/server/Alpha/Alpha-Data", "", true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.Equal(t, "cleaned", body["status"])
	assert.Equal(t, "alpha", body["pod_name"])
	assert.Equal(t, "alpha-data", body["pvc_name"])

	_, err := cs.CoreV1().PersistentVolumeClaims(testNamespace).Get(ctx, "alpha-data", metav1.GetOptions{})
	assert.True(t, apierrors.IsNotFound(err))
}

func TestListVolumes(t *testing.T) {
	created := metav1.NewTime(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	claim := &corev1.PersistentVolumeClaim{
		ObjectMeta: metav1.ObjectMeta{
			Name:              "alpha-data",
			Namespace:         testNamespace,
			CreationTimestamp: created,
			Labels:            map[string]string{"type": "minecraft-storage"},
		},
		Status: corev1.PersistentVolumeClaimStatus{
			Phase: corev1.ClaimBound,
			Capacity: corev1.ResourceList{
				corev1.ResourceStorage: resource.MustParse("10Gi"),
			},
		},
	}
	s, _ := newTestServer(nil, claim)

	rec := doRequest(s, http.MethodGet, "/k8s/volumes", "", true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var volumes []map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &volumes))
	require.Len(t, volumes, 1)
	assert.Equal(t, "alpha-data", volumes[0]["name"])
	assert.Equal(t, testNamespace, volumes[0]["namespace"])
	assert.Equal(t, "2025-06-01T12:00:00Z", volumes[0]["creation_timestamp"])
	assert.Equal(t, "Bound", volumes[0]["status"])
	assert.Equal(t, "10Gi", volumes[0]["capacity"])
}

func TestListVolumesEmptyIsArray(t *testing.T) {
	s, _ := newTestServer(nil)

	rec := doRequest(s, http.MethodGet, "/k8s/volumes", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestDeleteVolume(t *testing.T) {
	claim := &corev1.PersistentVolumeClaim{
		ObjectMeta: metav1.ObjectMeta{Name: "alpha-data", Namespace: testNamespace},
	}
	volume := &corev1.PersistentVolume{
		ObjectMeta: metav1.ObjectMeta{Name: "pv-alpha-data"},
	}
	s, cs := newTestServer(nil, claim, volume)
	ctx := context.Background()

	rec := doRequest(s, http.MethodDelete, "/k8s/volume/Alpha-Data", "", true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.Equal(t, "persistent_data_deleted", body["status"])
	assert.Equal(t, "alpha-data", body["pvc_name"])

	_, err := cs.CoreV1().PersistentVolumeClaims(testNamespace).Get(ctx, "alpha-data", metav1.GetOptions{})
	assert.True(t, apierrors.IsNotFound(err))
	_, err = cs.CoreV1().PersistentVolumes().Get(ctx, "pv-alpha-data", metav1.GetOptions{})
	assert.True(t, apierrors.IsNotFound(err))
}

func TestListArchivesWithoutStore(t *testing.T) {
	s, _ := newTestServer(nil)

	rec := doRequest(s, http.MethodGet, "/k8s/volume/alpha-data/backups", "", true)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, decodeBody(t, rec)["detail"], "not configured")
}

func TestListArchives(t *testing.T) {
	archives := &stubArchives{archives: []backup.Archive{{
		Key:          "alpha-data/2025-06-01.tar.gz",
		Size:         42,
		LastModified: time.Date(2025, 6, 1, 3, 0, 0, 0, time.UTC),
	}}}
	s, _ := newTestServer(archives)

	rec := doRequest(s, http.MethodGet, "/k8s/volume/alpha-data/backups", "", true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		PVCName string            `json:"pvc_name"`
		Backups []archiveResponse `json:"backups"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "alpha-data", body.PVCName)
	require.Len(t, body.Backups, 1)
	assert.Equal(t, "alpha-data/2025-06-01.tar.gz", body.Backups[0].Key)
	assert.Equal(t, int64(42), body.Backups[0].Size)
	assert.Equal(t, "2025-06-01T03:00:00Z", body.Backups[0].LastModified)
}

func TestRequestIDEchoed(t *testing.T) {
	s, _ := newTestServer(nil)

	rec := doRequest(s, http.MethodGet, "/health", "", false)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "given-id")
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, "given-id", rec.Header().Get("X-Request-ID"))
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := newTestServer(nil)

	// Drive one observed request so the API series exist.
	doRequest(s, http.MethodGet, "/health", "", false)

	rec := doRequest(s, http.MethodGet, "/metrics", "", false)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "kubecraft_api_requests_total")
}

func TestUnknownRouteIs404(t *testing.T) {
	s, _ := newTestServer(nil)

	rec := doRequest(s, http.MethodGet, "/nope", "", false)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
