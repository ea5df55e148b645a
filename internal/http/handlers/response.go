package handlers

// Response helpers shared by every endpoint. Errors always use the
// ErrorResponse envelope with a stable code:
//
//	HTTP/1.1 404 Not Found
//	{ "request_id": "...", "code": "not_found", "message": "conversation not found" }

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-rag-chat-backend/internal/http/middleware"
)

// ErrorResponse is the error envelope returned by all endpoints.
type ErrorResponse struct {
	// RequestID echoes X-Request-ID for correlating client errors with logs.
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Code is stable and machine-readable (see errors.go).
	Code string `json:"code" example:"not_found"`
	// Message is safe to show to users.
	Message string `json:"message" example:"conversation not found"`
}

// fail aborts with the error envelope. Server-side statuses are logged
// through the request-scoped logger with the last error attached to the
// context: model gateway failures (502, 503) at warn, everything else at
// error.
func fail(c *gin.Context, status int, code, msg string) {
	if status >= http.StatusInternalServerError {
		lg := middleware.LoggerFrom(c)
		ev := lg.Error()
		if status == http.StatusBadGateway || status == http.StatusServiceUnavailable {
			ev = lg.Warn()
		}
		if last := c.Errors.Last(); last != nil {
			ev = ev.Err(last.Err)
		}
		ev.Int("status", status).Str("code", code).Msg(msg)
	}

	c.AbortWithStatusJSON(status, ErrorResponse{
		RequestID: c.Writer.Header().Get("X-Request-ID"),
		Code:      code,
		Message:   msg,
	})
}

// Fail writes the error envelope for callers outside this package, such as
// the router's NoRoute and NoMethod handlers.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

func ok(c *gin.Context, status int, body any) { c.JSON(status, body) }

func noContent(c *gin.Context) { c.Status(http.StatusNoContent) }
