// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file covers per-request context: the correlation ID, the
// request-scoped logger and panic recovery.
//
//   - RequestID() reuses or generates X-Request-ID and stores it in the Gin
//     context.
//   - ScopedLogger() builds a zerolog.Logger carrying request_id, method,
//     route and, on conversation routes, conversation_id. Handlers get it via
//     LoggerFrom; services get it via log.Ctx on the request context, so a
//     summarization or gateway failure logged deep in a turn still names the
//     request and conversation it belongs to.
//   - Recovery() converts panics into the standard JSON 500 body.
//
// Access logging lives in RedactingLogger. Recommended order:
// RequestID, ScopedLogger, RedactingLogger, Recovery.
package middleware

import (
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// requestIDKey is the Gin context key under which the request ID is stored.
	requestIDKey = "requestID"
	// requestIDHeader is the HTTP header used to propagate the correlation ID.
	requestIDHeader = "X-Request-ID"
	// loggerKey is the Gin context key of the request-scoped logger.
	loggerKey = "logger"
	// conversationRoute marks routes whose :id parameter is a conversation.
	conversationRoute = "/conversations/:id"
)

// RequestID attaches (or propagates) a correlation identifier per request.
// An incoming X-Request-ID is reused; otherwise a UUIDv4 is generated. The
// ID is echoed in the response header and stored in the Gin context.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(requestIDHeader)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Set(requestIDKey, rid)
		c.Writer.Header().Set(requestIDHeader, rid)
		c.Next()
	}
}

// routeOf returns the matched route template, or the raw path on 404.
func routeOf(c *gin.Context) string {
	if p := c.FullPath(); p != "" {
		return p
	}
	return c.Request.URL.Path
}

// conversationIDOf returns the conversation id of a conversation route, or "".
func conversationIDOf(c *gin.Context) string {
	if !strings.Contains(c.FullPath(), conversationRoute) {
		return ""
	}
	return c.Param("id")
}

// scopedLogger builds the request-scoped logger and stores it both in the Gin
// context and in the request context for log.Ctx. The logger keeps the
// request context, so hooks can read the active span from it.
func scopedLogger(c *gin.Context) *zerolog.Logger {
	rid, _ := c.Get(requestIDKey)

	lc := log.With().
		Ctx(c.Request.Context()).
		Str("request_id", asString(rid)).
		Str("method", c.Request.Method).
		Str("path", routeOf(c))
	if id := conversationIDOf(c); id != "" {
		lc = lc.Str("conversation_id", id)
	}
	l := lc.Logger()

	c.Set(loggerKey, &l)
	c.Request = c.Request.WithContext(l.WithContext(c.Request.Context()))
	return &l
}

// ScopedLogger attaches the request-scoped logger. It emits nothing itself.
// Place it after RequestID().
func ScopedLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		scopedLogger(c)
		c.Next()
	}
}

// Recovery intercepts panics, logs the value with a stack trace through the
// request-scoped logger and, when nothing was written yet, responds with
//
//	{ "request_id": "...", "code": "internal_error", "message": "internal server error" }
//
// A panic after the response started only aborts with 500.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			rid, _ := c.Get(requestIDKey)
			ev := LoggerFrom(c).Error()
			if _, scoped := c.Get(loggerKey); !scoped {
				ev = ev.Str("request_id", asString(rid))
			}
			ev.Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Msg("panic recovered")

			if c.Writer.Written() {
				c.AbortWithStatus(http.StatusInternalServerError)
				return
			}
			c.Header(requestIDHeader, asString(rid))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"request_id": asString(rid),
				"code":       "internal_error",
				"message":    "internal server error",
			})
		}()
		c.Next()
	}
}

// LoggerFrom returns the request-scoped logger, or the global logger when
// ScopedLogger is not installed. The result is never nil.
func LoggerFrom(c *gin.Context) *zerolog.Logger {
	if v, ok := c.Get(loggerKey); ok {
		if lg, ok := v.(*zerolog.Logger); ok {
			return lg
		}
	}
	l := log.With().Logger()
	return &l
}

// asString converts an arbitrary value to a string, returning "" when it is
// not a string.
func asString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// truncate cuts s to limit bytes and appends an ellipsis. A limit <= 0
// disables truncation.
func truncate(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	return s[:limit] + "…"
}
