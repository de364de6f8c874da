// Package response writes the JSON envelope used by every /api/v1 and /v1 endpoint:
//
//	{"status_code": 200, "message": "...", "success": true, "data": ...}
package response

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mailnow/mailnow-admin/internal/apperr"
)

// Envelope is the response body shape.
type Envelope struct {
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
	Success    bool   `json:"success"`
	Data       any    `json:"data"`
}

// OK writes a 200 envelope.
func OK(c *gin.Context, message string, data any) {
	JSON(c, http.StatusOK, message, data)
}

// Created writes a 201 envelope.
func Created(c *gin.Context, message string, data any) {
	JSON(c, http.StatusCreated, message, data)
}

// JSON writes an envelope with the given status. Success is derived from the status.
func JSON(c *gin.Context, status int, message string, data any) {
	c.JSON(status, Envelope{
		StatusCode: status,
		Message:    message,
		Success:    status < http.StatusBadRequest,
		Data:       data,
	})
}

// Abort writes an error envelope and stops the handler chain.
func Abort(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, Envelope{StatusCode: status, Message: message})
}

// Error maps err through the apperr taxonomy and aborts with it. Validation errors carry
// the offending field in data. Internal errors are logged with the request id and hidden.
func Error(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		slog.Error("request failed",
			"request_id", c.GetString("request_id"),
			"method", c.Request.Method,
			"path", c.FullPath(),
			"error", err)
	}

	var data any
	var ve *apperr.ValidationError
	if errors.As(err, &ve) && ve.Field != "" {
		data = gin.H{"field": ve.Field}
	}
	c.AbortWithStatusJSON(status, Envelope{
		StatusCode: status,
		Message:    apperr.PublicMessage(err),
		Data:       data,
	})
}

// BadRequest aborts with a 400 for malformed bodies or parameters.
func BadRequest(c *gin.Context, message string) {
	Abort(c, http.StatusBadRequest, message)
}
