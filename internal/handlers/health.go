package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Shimizu-Technology/caj2pdf-api/internal/models"
)

// retryAfterSeconds is what clients are told to wait while modules load or
// the queue is full.
const retryAfterSeconds = 5

// HealthCheck returns the API health status.
// GET /api/v1/health
func (h *Handler) HealthCheck(c *gin.Context) {
	// Check database connectivity
	dbStatus := "healthy"
	if err := h.Store.HealthCheck(c.Request.Context()); err != nil {
		dbStatus = "unhealthy: " + err.Error()
	}

	c.JSON(http.StatusOK, models.HealthResponse{
		Status:       "ok",
		Version:      h.Version,
		Database:     dbStatus,
		ModulesReady: h.Pool.Ready(),
		Workers:      h.Pool.WorkerCount(),
		Queued:       h.Pool.QueueSize(),
	})
}

// Ready reports whether both conversion modules have finished loading.
// GET /api/v1/ready
//
// Load balancers should only route conversions here once this returns 200.
func (h *Handler) Ready(c *gin.Context) {
	if !h.Pool.Ready() {
		c.Header("Retry-After", strconv.Itoa(retryAfterSeconds))
		c.JSON(http.StatusServiceUnavailable, models.ErrorResponse{
			Error:   "module_not_ready",
			Message: "Conversion modules are still loading",
			Code:    http.StatusServiceUnavailable,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
