package middleware

// Per-key token-bucket rate limiting.
//
// Each identity (conversation or client IP) gets its own
// golang.org/x/time/rate bucket. Idle buckets are swept opportunistically.
// Buckets live in process memory, so limits are per replica. Replays flagged
// by IdempotencyValidator skip the limiter: they do not reach the model.

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const (
	// bucketIdleTTL is how long an unused bucket survives a sweep.
	bucketIdleTTL = 10 * time.Minute
	// sweepEvery is the number of lookups between sweeps.
	sweepEvery = 5000
)

// keyFunc maps a request to its bucket identity.
type keyFunc func(*gin.Context) string

// KeyByClientIP buckets by client address ("ip:203.0.113.7").
func KeyByClientIP() keyFunc {
	return func(c *gin.Context) string { return "ip:" + c.ClientIP() }
}

// KeyByConversationOrIP buckets conversation routes per conversation, so one
// busy conversation cannot starve a client's other traffic, and everything
// else per client IP.
func KeyByConversationOrIP() keyFunc {
	return func(c *gin.Context) string {
		if id := conversationIDOf(c); id != "" {
			return "conversation:" + id
		}
		return "ip:" + c.ClientIP()
	}
}

type bucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// RateLimiter holds one token bucket per key. Safe for concurrent use.
type RateLimiter struct {
	limit rate.Limit
	burst int
	keyFn keyFunc
	ttl   time.Duration

	mu      sync.Mutex
	buckets map[string]*bucket
	lookups uint64
}

// NewRateLimiter returns a limiter refilling rps tokens per second with the
// given burst (coerced to at least 1), keyed by keyFn.
func NewRateLimiter(rps float64, burst int, keyFn keyFunc) *RateLimiter {
	return &RateLimiter{
		limit:   rate.Limit(rps),
		burst:   max(burst, 1),
		keyFn:   keyFn,
		ttl:     bucketIdleTTL,
		buckets: make(map[string]*bucket),
	}
}

// bucketFor returns the bucket for key, creating it when absent. The sweep
// runs before the lookup so a stale bucket is evicted even when it is the
// one requested.
func (rl *RateLimiter) bucketFor(key string) *rate.Limiter {
	now := time.Now()
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if rl.lookups++; rl.lookups >= sweepEvery {
		for k, b := range rl.buckets {
			if now.Sub(b.lastSeen) >= rl.ttl {
				delete(rl.buckets, k)
			}
		}
		rl.lookups = 0
	}

	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(rl.limit, rl.burst)}
		rl.buckets[key] = b
	}
	b.lastSeen = now
	return b.lim
}

// IsRateBypass reports whether IdempotencyValidator flagged the request as a
// replay that should not consume tokens.
func IsRateBypass(c *gin.Context) bool {
	b, _ := c.Value(ctxKeyRateBypass).(bool)
	return b
}

// retryAfter returns whole seconds until lim has a token again, at least 1.
// The probe reservation is cancelled so it does not consume the token.
func retryAfter(lim *rate.Limiter) int {
	r := lim.Reserve()
	defer r.Cancel()
	if !r.OK() {
		return 1
	}
	return max(int(math.Ceil(r.Delay().Seconds())), 1)
}

// Handler enforces the limit. A denied request gets 429 with Retry-After and
// the standard error body (code "rate_limited").
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if IsRateBypass(c) {
			c.Next()
			return
		}
		lim := rl.bucketFor(rl.keyFn(c))
		if lim.Allow() {
			c.Next()
			return
		}

		rid, _ := c.Get(requestIDKey)
		if asString(rid) == "" {
			rid = c.Writer.Header().Get(requestIDHeader)
		}
		c.Header("Retry-After", strconv.Itoa(retryAfter(lim)))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"request_id": asString(rid),
			"code":       "rate_limited",
			"message":    "rate limit exceeded",
		})
	}
}
