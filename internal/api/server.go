// Package api exposes the provisioning manager over HTTP.
//
// The surface mirrors the manager one to one: provisioning, the three
// teardown scopes, storage listing, and archive listing, plus the
// unauthenticated banner, health, and metrics endpoints. Responses are JSON
// and failures carry a single "detail" field with the cause, so existing
// clients of the previous control plane keep working unchanged.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/kubecraft/kubecraft/internal/manager"
	"github.com/kubecraft/kubecraft/internal/metrics"
)

// Server is the HTTP front of the provisioning manager.
type Server struct {
	mgr     *manager.Manager
	version string
	engine  *gin.Engine
	log     *zap.SugaredLogger
}

// NewServer wires routes and middleware around a manager. apiKey guards
// every route under /k8s.
func NewServer(mgr *manager.Manager, apiKey, version string, log *zap.SugaredLogger) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		mgr:     mgr,
		version: version,
		engine:  gin.New(),
		log:     log,
	}

	s.engine.Use(recovery(log), requestID(), accessLog(log), observe())

	s.engine.GET("/", s.root)
	s.engine.GET("/health", s.health)
	s.engine.GET("/metrics", gin.WrapH(metrics.Handler()))

	guarded := s.engine.Group("/k8s", apiKeyAuth(apiKey))
	guarded.POST("/server", s.createServer)
	guarded.POST("/server/:pod_name/pause", s.pauseServer)
	guarded.DELETE("/server/:pod_name/:pvc_name", s.deleteServer)
	guarded.GET("/volumes", s.listVolumes)
	guarded.DELETE("/volume/:pvc_name", s.deleteVolume)
	guarded.GET("/volume/:pvc_name/backups", s.listArchives)

	return s
}

// Handler returns the routed handler. Used by tests and by Run.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves the API on addr until ctx is canceled, then drains in-flight
// requests for at most grace before returning.
func (s *Server) Run(ctx context.Context, addr string, grace time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	s.log.Infow("http api listening", "addr", addr)

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	s.log.Infow("draining http api", "grace", grace.String())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
