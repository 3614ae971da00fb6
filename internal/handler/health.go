package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/health-triage/internal/snapshot"
	"go.uber.org/zap"
)

// ServiceName is reported by the health endpoint.
const ServiceName = "health-triage"

// HealthHandler handles health check requests.
type HealthHandler struct {
	logger *zap.Logger
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		logger: logger.Named("health_handler"),
	}
}

// Handle processes GET /health requests.
func (h *HealthHandler) Handle(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"ok":      true,
		"service": ServiceName,
		"ts":      time.Now().UTC().Format(time.RFC3339Nano),
	})
}

// SnapshotHolder exposes the last loaded snapshot. snapshot.Store
// implements it.
type SnapshotHolder interface {
	Snapshot() *snapshot.Snapshot
}

// ReadyHandler handles readiness check requests.
type ReadyHandler struct {
	snapshots SnapshotHolder
	logger    *zap.Logger
}

// NewReadyHandler creates a new ReadyHandler.
func NewReadyHandler(snapshots SnapshotHolder, logger *zap.Logger) *ReadyHandler {
	return &ReadyHandler{
		snapshots: snapshots,
		logger:    logger.Named("ready_handler"),
	}
}

// Handle processes GET /ready requests. The service is ready once a
// configuration snapshot has been loaded.
func (h *ReadyHandler) Handle(c *gin.Context) {
	snap := h.snapshots.Snapshot()
	if snap == nil {
		h.logger.Debug("readiness check failed, no snapshot loaded")
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"ok":     false,
			"status": "not_ready",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ok":               true,
		"status":           "ready",
		"snapshot_version": snap.Version(),
		"rules":            len(snap.Rules()),
		"loaded_at":        snap.LoadedAt().Format(time.RFC3339),
		"time":             time.Now().UTC().Format(time.RFC3339),
	})
}
