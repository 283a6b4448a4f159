package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/NaviWasm/service-mapview/internal/application"
	"github.com/NaviWasm/service-mapview/internal/response"
	"github.com/NaviWasm/service-mapview/internal/routing"
)

// NavigationHandler serves the development stand-in for the routing service.
type NavigationHandler struct {
	service *application.NavigationService
}

// NewNavigationHandler creates a new NavigationHandler.
func NewNavigationHandler(service *application.NavigationService) *NavigationHandler {
	return &NavigationHandler{service: service}
}

// RegisterRoutes registers the route endpoint at routing.DefaultPath.
func (h *NavigationHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST(routing.DefaultPath, h.CalculateRoute)
}

// CalculateRoute handles POST /api/v1/navigation/route. The body is the bare
// route response the route client expects, not the envelope.
func (h *NavigationHandler) CalculateRoute(c *gin.Context) {
	var req routing.RouteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.CalculateRoute(req)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
