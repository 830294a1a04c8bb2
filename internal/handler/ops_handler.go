package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-card-sync/internal/models"
	"github.com/noah-isme/sma-card-sync/internal/service"
	appErrors "github.com/noah-isme/sma-card-sync/pkg/errors"
	"github.com/noah-isme/sma-card-sync/pkg/response"
)

type syncStatusReader interface {
	Status() models.SyncStatus
}

// OpsHandler exposes liveness, readiness, status and metrics for the worker.
type OpsHandler struct {
	loop    syncStatusReader
	metrics *service.MetricsService
}

// NewOpsHandler constructs an ops handler.
func NewOpsHandler(loop syncStatusReader, metrics *service.MetricsService) *OpsHandler {
	return &OpsHandler{loop: loop, metrics: metrics}
}

// Register mounts the ops routes on r.
func (h *OpsHandler) Register(r gin.IRouter) {
	r.GET("/health", h.Health)
	r.GET("/ready", h.Ready)
	r.GET("/status", h.Status)
	r.GET("/metrics", h.Prometheus)
}

// Health responds with a generic OK payload for liveness usage.
func (h *OpsHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready reports whether the sync loop is still alive.
func (h *OpsHandler) Ready(c *gin.Context) {
	if h.loop == nil {
		response.Error(c, http.StatusServiceUnavailable, appErrors.Clone(appErrors.ErrInternal, "sync loop not wired"))
		return
	}
	status := h.loop.Status()
	if status.State == models.LoopStateCancelled {
		response.Error(c, http.StatusServiceUnavailable, appErrors.Clone(appErrors.ErrInternal, "sync loop stopped"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready", "state": status.State})
}

// Status returns the last cycle snapshot.
func (h *OpsHandler) Status(c *gin.Context) {
	if h.loop == nil {
		response.Error(c, http.StatusServiceUnavailable, appErrors.Clone(appErrors.ErrInternal, "sync loop not wired"))
		return
	}
	response.JSON(c, http.StatusOK, h.loop.Status())
}

// Prometheus serves the Prometheus metrics endpoint.
func (h *OpsHandler) Prometheus(c *gin.Context) {
	if h.metrics == nil {
		c.Status(http.StatusServiceUnavailable)
		return
	}
	h.metrics.Handler().ServeHTTP(c.Writer, c.Request)
}
