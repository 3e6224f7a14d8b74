// Package handlers implements the HTTP endpoint handlers.
package handlers

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"

	retrievo "github.com/soundprediction/retrievo"
)

// Build information, settable at build time with ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	GoVersion = runtime.Version()
)

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	retrievo retrievo.Retrievo
}

// NewHealthHandler creates a health handler.
func NewHealthHandler(client retrievo.Retrievo) *HealthHandler {
	return &HealthHandler{retrievo: client}
}

// HealthCheck handles GET /health.
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"service":   "retrievo",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   Version,
	})
}

// ReadinessCheck handles GET /ready: the service is ready once the indexes
// answer a stats call.
func (h *HealthHandler) ReadinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if h.retrievo == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready"})
		return
	}

	stats, err := h.retrievo.Stats(ctx)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"error":  err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"stats":  stats,
	})
}
