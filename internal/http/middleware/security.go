package middleware

// Response hardening for the JSON API. No Content-Security-Policy: the API
// never serves HTML apart from the optional Swagger UI, which sets its own.

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	exposeHeadersHeader = "Access-Control-Expose-Headers"
	defaultHSTSMaxAge   = 180 * 24 * time.Hour
)

// SecurityOptions selects the optional header groups of SecurityHeaders.
type SecurityOptions struct {
	// EnableHSTS sends Strict-Transport-Security on HTTPS requests. Only
	// enable it when TLS reaches the process or a trusted proxy.
	EnableHSTS bool
	// HSTSMaxAge defaults to 180 days when <= 0.
	HSTSMaxAge time.Duration
	// NoStore marks every response uncacheable. Transcripts and documents
	// are private to the deployment.
	NoStore bool
	// EnablePolicy sends Permissions-Policy and X-Permitted-Cross-Domain-Policies.
	EnablePolicy bool
	// ExposeHeaders are added to Access-Control-Expose-Headers, after
	// X-Request-ID when that header is set.
	ExposeHeaders []string
}

// SecurityHeaders sets nosniff, frame denial and no-referrer on every
// response, plus the groups enabled in opt.
func SecurityHeaders(opt SecurityOptions) gin.HandlerFunc {
	static := [][2]string{
		{"X-Content-Type-Options", "nosniff"},
		{"X-Frame-Options", "DENY"},
		{"Referrer-Policy", "no-referrer"},
	}
	if opt.EnablePolicy {
		static = append(static,
			[2]string{"Permissions-Policy", "geolocation=(), microphone=(), camera=(), payment=()"},
			[2]string{"X-Permitted-Cross-Domain-Policies", "none"})
	}
	if opt.NoStore {
		static = append(static,
			[2]string{"Cache-Control", "no-store"},
			[2]string{"Pragma", "no-cache"},
			[2]string{"Expires", "0"})
	}

	age := opt.HSTSMaxAge
	if age <= 0 {
		age = defaultHSTSMaxAge
	}
	hsts := "max-age=" + strconv.Itoa(int(age.Seconds())) + "; includeSubDomains; preload"

	return func(c *gin.Context) {
		h := c.Writer.Header()
		for _, kv := range static {
			h.Set(kv[0], kv[1])
		}
		if opt.EnableHSTS && isHTTPS(c.Request) {
			h.Set("Strict-Transport-Security", hsts)
		}
		if h.Get(requestIDHeader) != "" {
			exposeHeader(h, requestIDHeader)
		}
		for _, name := range opt.ExposeHeaders {
			exposeHeader(h, name)
		}
		c.Next()
	}
}

// exposeHeader appends name to Access-Control-Expose-Headers unless it is
// blank or already listed (case-insensitive).
func exposeHeader(h http.Header, name string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return
	}
	cur := h.Get(exposeHeadersHeader)
	if cur == "" {
		h.Set(exposeHeadersHeader, name)
		return
	}
	for _, p := range strings.Split(cur, ",") {
		if strings.EqualFold(strings.TrimSpace(p), name) {
			return
		}
	}
	h.Set(exposeHeadersHeader, cur+", "+name)
}

// isHTTPS reports a TLS connection or X-Forwarded-Proto: https.
func isHTTPS(r *http.Request) bool {
	return r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}
