package handlers

import (
	"context"
	"net/http"
	"time"

	"staypricing/internal/utils"

	"github.com/gin-gonic/gin"
)

// Pinger is a dependency the health check pings.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	version      string
	dependencies map[string]Pinger
}

func NewHealthHandler(version string, dependencies map[string]Pinger) *HealthHandler {
	return &HealthHandler{version: version, dependencies: dependencies}
}

func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	checks := make(map[string]string, len(h.dependencies))
	healthy := true
	for name, dep := range h.dependencies {
		if err := dep.Ping(ctx); err != nil {
			checks[name] = err.Error()
			healthy = false
			continue
		}
		checks[name] = "ok"
	}

	data := gin.H{"version": h.version, "checks": checks}
	if !healthy {
		c.JSON(http.StatusServiceUnavailable, utils.APIResponse{
			Status:    utils.StatusError,
			Message:   "Service degraded",
			Data:      data,
			Timestamp: time.Now(),
		})
		return
	}

	utils.SuccessResponse(c, "Service healthy", data)
}
