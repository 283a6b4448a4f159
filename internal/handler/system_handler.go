package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/NaviWasm/service-mapview/internal/application"
	"github.com/NaviWasm/service-mapview/internal/response"
)

// SystemHandler serves health and metrics.
type SystemHandler struct {
	service     *application.ViewService
	serviceName string
}

// NewSystemHandler creates a new SystemHandler.
func NewSystemHandler(service *application.ViewService, serviceName string) *SystemHandler {
	return &SystemHandler{service: service, serviceName: serviceName}
}

// RegisterRoutes registers /health and the metrics endpoint.
func (h *SystemHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/health", h.Health)
	r.GET("/api/v1/metrics", h.Metrics)
}

// Health handles GET /health.
func (h *SystemHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": h.serviceName,
	})
}

// Metrics handles GET /api/v1/metrics.
func (h *SystemHandler) Metrics(c *gin.Context) {
	ctx := c.Request.Context()
	response.Success(c, h.service.Metrics().Snapshot(h.service.ActiveViews(ctx)))
}
