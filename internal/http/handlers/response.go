// Package handlers provides HTTP handler implementations for the public API.
//
// This file holds the shared response helpers. Every endpoint answers errors
// with the same ErrorResponse envelope so clients can branch on a stable
// machine-readable code instead of parsing messages, and every 5xx is logged
// once here with the request-scoped logger rather than ad hoc in each handler.
//
// A failed save looks like:
//
//	HTTP/1.1 401 Unauthorized
//	{
//	  "request_id": "4f2a9c1e-77d0-4b6a-9a1f-2f6d1c3b5e90",
//	  "code": "unauthorized",
//	  "message": "user identity required"
//	}
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/plateful/plate-backend/internal/http/middleware"
)

// ErrorResponse is the error envelope shared by all endpoints. RequestID echoes
// the X-Request-ID correlation header when one was attached; Code is one of the
// errors.go constants; Message is safe to surface to end users.
type ErrorResponse struct {
	RequestID string `json:"request_id,omitempty" example:"4f2a9c1e-77d0-4b6a-9a1f-2f6d1c3b5e90"`
	Code      string `json:"code" example:"not_found"`
	Message   string `json:"message" example:"saved item not found"`
}

// fail aborts the request with an ErrorResponse. Server-side failures (5xx)
// are additionally logged with the request-scoped logger so every internal
// error leaves exactly one log line carrying the correlation id.
func fail(c *gin.Context, status int, code, msg string) {
	if status >= http.StatusInternalServerError {
		middleware.LoggerFrom(c).Error().
			Int("status", status).
			Str("code", code).
			Str("message", msg).
			Msg("api error")
	}

	c.AbortWithStatusJSON(status, ErrorResponse{
		RequestID: c.Writer.Header().Get("X-Request-ID"),
		Code:      code,
		Message:   msg,
	})
}

// Fail exposes the envelope to other packages (the router's NoRoute/NoMethod
// fallbacks) without exporting the rest of the helpers.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

// ok writes body as JSON with the given status.
func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}

// noContent answers 204 for operations with nothing to return.
func noContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
