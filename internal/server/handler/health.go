package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Pinger is a dependency whose reachability /health reports.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles health check endpoints
type HealthHandler struct {
	models func() map[string]bool
	cache  Pinger
}

// NewHealthHandler creates a new health handler. models reports which tasks
// are loaded; cache may be nil.
func NewHealthHandler(models func() map[string]bool, cache Pinger) *HealthHandler {
	return &HealthHandler{models: models, cache: cache}
}

// HealthStatus represents the health check response
type HealthStatus struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components"`
}

// Health handles GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	components := make(map[string]string)
	healthy := true

	for task, loaded := range h.models() {
		if loaded {
			components[task] = "ok"
		} else {
			components[task] = "not loaded"
			healthy = false
		}
	}

	if h.cache != nil {
		if err := h.cache.Ping(ctx); err != nil {
			components["cache"] = "error: " + err.Error()
			healthy = false
		} else {
			components["cache"] = "ok"
		}
	} else {
		components["cache"] = "not configured"
	}

	status := "healthy"
	httpStatus := http.StatusOK
	if !healthy {
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, HealthStatus{
		Status:     status,
		Components: components,
	})
}

// Ready handles GET /ready
func (h *HealthHandler) Ready(c *gin.Context) {
	for task, loaded := range h.models() {
		if !loaded {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready", "reason": task + " model not loaded"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
