package middleware

// Idempotency-Key handling for message posts.
//
// IdempotencyValidator checks the header, stores the key for handlers and,
// on conversation routes, asks a lookup whether a reply for (conversation,
// key) is already recorded. A hit marks the request as a replay: the handler
// answers from the stored assistant message and the rate limiter lets it
// through. Serving the replay is left to the handler.

import (
	"context"
	"net/http"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"
)

// HeaderIdempotencyKey carries the client's idempotency key.
const HeaderIdempotencyKey = "Idempotency-Key"

const (
	ctxKeyIdemKey    = "idem.key"
	ctxKeyIdemReplay = "idem.replay"
	ctxKeyRateBypass = "rate.bypass"

	defaultIdempotencyKeyMaxLen = 200
)

var defaultIdempotencyKeyPattern = regexp.MustCompile(`^[A-Za-z0-9._~\-:]+$`)

// GetIdempotencyKey returns the validated key, if any.
func GetIdempotencyKey(c *gin.Context) (string, bool) {
	s, _ := c.Value(ctxKeyIdemKey).(string)
	return s, s != ""
}

// IsReplay reports whether a recorded reply exists for this request's
// conversation and key.
func IsReplay(c *gin.Context) bool {
	b, _ := c.Value(ctxKeyIdemReplay).(bool)
	return b
}

// IdempotencyOptions configures key validation.
type IdempotencyOptions struct {
	// MaxLen caps the key length; <= 0 means 200.
	MaxLen int
	// Pattern restricts the key; nil means ^[A-Za-z0-9._~\-:]+$.
	Pattern *regexp.Regexp
}

// IdempotencyLookup reports whether a still-valid reply is recorded for
// (conversationID, key) at now. Errors are logged and treated as a miss.
type IdempotencyLookup func(ctx context.Context, conversationID, key string, now time.Time) (exists bool, err error)

// IdempotencyValidator is a no-op without the header. An invalid key is
// rejected with 400 "bad_idempotency_key". lookup may be nil.
func IdempotencyValidator(opts IdempotencyOptions, lookup IdempotencyLookup) gin.HandlerFunc {
	maxLen := opts.MaxLen
	if maxLen <= 0 {
		maxLen = defaultIdempotencyKeyMaxLen
	}
	pat := opts.Pattern
	if pat == nil {
		pat = defaultIdempotencyKeyPattern
	}

	return func(c *gin.Context) {
		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			c.Next()
			return
		}
		if len(key) > maxLen || !pat.MatchString(key) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"request_id": c.Writer.Header().Get(requestIDHeader),
				"code":       "bad_idempotency_key",
				"message":    "invalid Idempotency-Key",
			})
			return
		}
		c.Set(ctxKeyIdemKey, key)

		if id := conversationIDOf(c); lookup != nil && id != "" {
			exists, err := lookup(c.Request.Context(), id, key, time.Now().UTC())
			if err != nil {
				LoggerFrom(c).Warn().Err(err).Str("conversation_id", id).Msg("idempotency lookup failed")
			}
			if exists {
				c.Set(ctxKeyIdemReplay, true)
				c.Set(ctxKeyRateBypass, true)
			}
		}
		c.Next()
	}
}
