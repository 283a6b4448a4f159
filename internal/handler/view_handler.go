package handler

import (
	"errors"
	"io"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/NaviWasm/service-mapview/internal/application"
	"github.com/NaviWasm/service-mapview/internal/response"
)

// ViewHandler handles HTTP requests for map view operations.
type ViewHandler struct {
	service *application.ViewService
}

// NewViewHandler creates a new ViewHandler.
func NewViewHandler(service *application.ViewService) *ViewHandler {
	return &ViewHandler{service: service}
}

// RegisterRoutes registers all view routes on the given router group.
func (h *ViewHandler) RegisterRoutes(r *gin.RouterGroup) {
	views := r.Group("/api/v1/views")
	{
		views.POST("", h.CreateView)
		views.GET("", h.ListViews)
		views.GET("/:id", h.GetView)
		views.DELETE("/:id", h.DeleteView)
		views.POST("/:id/clicks", h.Click)
		views.POST("/:id/reset", h.Reset)
	}
}

// CreateView handles POST /api/v1/views. The body is optional.
func (h *ViewHandler) CreateView(c *gin.Context) {
	var req application.CreateViewRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.CreateView(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, result)
}

// ListViews handles GET /api/v1/views.
func (h *ViewHandler) ListViews(c *gin.Context) {
	result, err := h.service.ListViews(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// GetView handles GET /api/v1/views/:id.
func (h *ViewHandler) GetView(c *gin.Context) {
	viewID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid view ID")
		return
	}

	result, err := h.service.GetView(c.Request.Context(), viewID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// DeleteView handles DELETE /api/v1/views/:id.
func (h *ViewHandler) DeleteView(c *gin.Context) {
	viewID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid view ID")
		return
	}

	if err := h.service.DeleteView(c.Request.Context(), viewID); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

// Click handles POST /api/v1/views/:id/clicks. A rejected click still
// returns the unchanged state.
func (h *ViewHandler) Click(c *gin.Context) {
	viewID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid view ID")
		return
	}

	var req application.ClickRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.Click(c.Request.Context(), viewID, req)
	if err != nil {
		if result != nil {
			response.FailWithData(c, response.StatusOf(err), err.Error(), result)
			return
		}
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// Reset handles POST /api/v1/views/:id/reset.
func (h *ViewHandler) Reset(c *gin.Context) {
	viewID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid view ID")
		return
	}

	result, err := h.service.Reset(c.Request.Context(), viewID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}
