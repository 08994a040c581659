package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kubecraft/kubecraft/internal/manager"
	"github.com/kubecraft/kubecraft/internal/provisioning/gameserver"
)

// createServerRequest is the provisioning payload. The field names and the
// sizing defaults are the wire contract of the previous control plane.
type createServerRequest struct {
	PodName         string `json:"pod_name" binding:"required"`
	PVCName         string `json:"pvc_name" binding:"required"`
	ServertapKey    string `json:"servertap_key" binding:"required"`
	MemoryLimit     string `json:"memory_limit"`
	MemoryRequest   string `json:"memory_request"`
	CPULimit        string `json:"cpu_limit"`
	CPURequest      string `json:"cpu_request"`
	StorageCapacity string `json:"storage_capacity"`
}

// applyWireDefaults fills omitted sizing fields with the documented API
// defaults. Requests built elsewhere fall back to the configured defaults
// inside the manager instead.
func (r *createServerRequest) applyWireDefaults() {
	if r.MemoryLimit == "" {
		r.MemoryLimit = "4Gi"
	}
	if r.MemoryRequest == "" {
		r.MemoryRequest = "2Gi"
	}
	if r.CPULimit == "" {
		r.CPULimit = "2"
	}
	if r.CPURequest == "" {
		r.CPURequest = "1"
	}
	if r.StorageCapacity == "" {
		r.StorageCapacity = "10Gi"
	}
}

type volumeResponse struct {
	Name              string `json:"name"`
	Namespace         string `json:"namespace"`
	CreationTimestamp string `json:"creation_timestamp"`
	Status            string `json:"status"`
	Capacity          string `json:"capacity"`
}

type archiveResponse struct {
	Key          string `json:"key"`
	Size         int64  `json:"size"`
	LastModified string `json:"last_modified"`
}

func (s *Server) root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "kubecraft provisioning API",
		"version": s.version,
	})
}

func (s *Server) health(c *gin.Context) {
	h := s.mgr.Health(c.Request.Context())
	status := "healthy"
	if !h.Healthy {
		status = "unhealthy"
	}
	c.JSON(http.StatusOK, gin.H{
		"status":     status,
		"kubernetes": h.Detail,
	})
}

func (s *Server) createServer(c *gin.Context) {
	var req createServerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}
	req.applyWireDefaults()

	endpoints, err := s.mgr.CreateServer(c.Request.Context(), manager.CreateRequest{
		Server:  req.PodName,
		Storage: req.PVCName,
		APIKey:  req.ServertapKey,
		Resources: gameserver.Resources{
			MemoryLimit:   req.MemoryLimit,
			MemoryRequest: req.MemoryRequest,
			CPULimit:      req.CPULimit,
			CPURequest:    req.CPURequest,
		},
		StorageCapacity: req.StorageCapacity,
	})
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "success",
		"pod_name": endpoints.Server,
		"pvc_name": endpoints.Storage,
		"game_url": endpoints.GameAddress,
		"api_url":  endpoints.ManagementURL,
	})
}

func (s *Server) pauseServer(c *gin.Context) {
	name, err := s.mgr.PauseServer(c.Request.Context(), c.Param("pod_name"))
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "success",
		"message":  "Server " + name + " resources cleaned up (paused).",
		"pod_name": name,
	})
}

func (s *Server) deleteServer(c *gin.Context) {
	server, storage, err := s.mgr.DeleteServer(c.Request.Context(), c.Param("pod_name"), c.Param("pvc_name"))
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "cleaned",
		"pod_name": server,
		"pvc_name": storage,
	})
}

func (s *Server) listVolumes(c *gin.Context) {
	claims, err := s.mgr.ListStorage(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}

	volumes := make([]volumeResponse, 0, len(claims))
	for _, claim := range claims {
		volumes = append(volumes, volumeResponse{
			Name:              claim.Name,
			Namespace:         claim.Namespace,
			CreationTimestamp: claim.CreatedAt.UTC().Format(time.RFC3339),
			Status:            claim.Phase,
			Capacity:          claim.Capacity,
		})
	}

	c.JSON(http.StatusOK, volumes)
}

func (s *Server) deleteVolume(c *gin.Context) {
	name, err := s.mgr.DeleteStorage(c.Request.Context(), c.Param("pvc_name"))
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "persistent_data_deleted",
		"pvc_name": name,
	})
}

func (s *Server) listArchives(c *gin.Context) {
	name := c.Param("pvc_name")
	list, err := s.mgr.ListArchives(c.Request.Context(), name)
	if err != nil {
		s.fail(c, err)
		return
	}

	archives := make([]archiveResponse, 0, len(list))
	for _, a := range list {
		archives = append(archives, archiveResponse{
			Key:          a.Key,
			Size:         a.Size,
			LastModified: a.LastModified.UTC().Format(time.RFC3339),
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"pvc_name": name,
		"backups":  archives,
	})
}

// fail renders a manager error. Archive listing without a configured store
// answers 503 so callers can tell "off" from "broken"; everything else is a
// plain 500 with the cause in detail, matching the previous control plane.
func (s *Server) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, manager.ErrArchivesDisabled) {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"detail": err.Error()})
}
