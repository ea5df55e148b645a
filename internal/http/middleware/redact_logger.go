package middleware

// Access logging with scrubbed request metadata.
//
// RedactingLogger writes one "http_request" line per request. Bodies are never
// logged: message and document text stay out of the logs entirely. The query
// string and header values pass through regex scrubbing (ids, emails, phone
// numbers) and credential headers are masked outright.

import (
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const (
	redactedValue = "[REDACTED]"
	// maxQueryLogLength bounds the logged query string.
	maxQueryLogLength = 512
)

// alwaysMasked are header names whose values never reach the logs.
var alwaysMasked = []string{"authorization", "cookie", "set-cookie"}

// UUIDs go first; the phone pattern would otherwise eat their digit groups.
var scrubbers = []struct {
	re   *regexp.Regexp
	repl string
}{
	{regexp.MustCompile(`(?i)\b[0-9a-f]{8}-[0-9a-f]{4}-[1-5][0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}\b`), "[REDACTED:id]"},
	{regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`), "[REDACTED:email]"},
	{regexp.MustCompile(`\b(?:\+?\d{1,3}[ .-]?)?(?:\(?\d{2,4}\)?[ .-]?)?\d{3,4}[ .-]?\d{4}\b`), "[REDACTED:phone]"},
}

// RedactOptions configures RedactingLogger.
type RedactOptions struct {
	// MaskHeaders lists extra header names (case-insensitive) whose values
	// are replaced with "[REDACTED]".
	MaskHeaders []string
}

func scrub(s string) string {
	for _, sc := range scrubbers {
		if s == "" {
			return s
		}
		s = sc.re.ReplaceAllString(s, sc.repl)
	}
	return s
}

// scrubHeaders copies h with masked or scrubbed values.
func scrubHeaders(h map[string][]string, masked map[string]bool) map[string]string {
	out := make(map[string]string, len(h))
	for k, vv := range h {
		if masked[strings.ToLower(k)] {
			out[k] = redactedValue
			continue
		}
		out[k] = scrub(strings.Join(vv, ", "))
	}
	return out
}

// levelFor picks the log level from the final status.
func levelFor(l *zerolog.Logger, status int) *zerolog.Event {
	switch {
	case status >= 500:
		return l.Error()
	case status >= 400:
		return l.Warn()
	default:
		return l.Info()
	}
}

// RedactingLogger returns the access-log middleware. It logs through the
// request-scoped logger when ScopedLogger runs before it, so the line carries
// request_id, route and conversation_id from there; otherwise it resolves the
// request id itself (response header first, then request header).
func RedactingLogger(opts RedactOptions) gin.HandlerFunc {
	masked := make(map[string]bool, len(alwaysMasked)+len(opts.MaskHeaders))
	for _, h := range alwaysMasked {
		masked[h] = true
	}
	for _, h := range opts.MaskHeaders {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			masked[h] = true
		}
	}

	return func(c *gin.Context) {
		start := time.Now()
		query := scrub(truncate(c.Request.URL.RawQuery, maxQueryLogLength))
		headers := scrubHeaders(c.Request.Header, masked)

		c.Next()

		status := c.Writer.Status()
		ev := levelFor(LoggerFrom(c), status)
		if _, scoped := c.Get(loggerKey); !scoped {
			rid := c.Writer.Header().Get(requestIDHeader)
			if rid == "" {
				rid = c.GetHeader(requestIDHeader)
			}
			ev = ev.Str("request_id", rid).
				Str("method", c.Request.Method).
				Str("path", routeOf(c))
		}
		if key, ok := GetIdempotencyKey(c); ok && key != "" {
			ev = ev.Bool("replayed", IsReplay(c))
		}
		if len(c.Errors) > 0 {
			ev = ev.Str("errors", c.Errors.String())
		}

		ev.Str("query", query).
			Str("remote_ip", c.ClientIP()).
			Int64("bytes_in", c.Request.ContentLength).
			Int("status", status).
			Int("bytes", c.Writer.Size()).
			Dur("latency", time.Since(start)).
			Interface("headers", headers).
			Msg("http_request")
	}
}
