// Package response writes the JSON envelope shared by every endpoint.
package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/NaviWasm/service-mapview/internal/domain/view"
	"github.com/NaviWasm/service-mapview/internal/placement"
	"github.com/NaviWasm/service-mapview/internal/routing"
)

// InternalErrorMessage is the only detail a client sees for a 500.
const InternalErrorMessage = "An unexpected error occurred. Please try again later."

// Body is the envelope of every JSON response.
type Body struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Success writes a 200 with data.
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Body{Success: true, Data: data})
}

// Created writes a 201 with data.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Body{Success: true, Data: data})
}

// NoContent writes a 204.
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// BadRequest writes a 400 with message.
func BadRequest(c *gin.Context, message string) {
	Fail(c, http.StatusBadRequest, message)
}

// Fail writes status with message and aborts the chain.
func Fail(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, Body{Success: false, Error: message})
}

// FailWithData writes status with message and the data still worth showing.
func FailWithData(c *gin.Context, status int, message string, data interface{}) {
	c.AbortWithStatusJSON(status, Body{Success: false, Error: message, Data: data})
}

// Error maps err to a status and writes it. Unknown errors become a 500
// without detail.
func Error(c *gin.Context, err error) {
	status := StatusOf(err)
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		Fail(c, status, InternalErrorMessage)
		return
	}
	Fail(c, status, err.Error())
}

// StatusOf returns the HTTP status for err.
func StatusOf(err error) int {
	switch {
	case errors.Is(err, view.ErrViewNotFound), errors.Is(err, view.ErrStreamMissing):
		return http.StatusNotFound
	case errors.Is(err, view.ErrViewClosed):
		return http.StatusGone
	case errors.Is(err, placement.ErrInvalidCoordinate), errors.Is(err, routing.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, placement.ErrSurfaceNotReady), errors.Is(err, view.ErrTooManyViews):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
