package middleware

// Prometheus instrumentation.
//
// Route labels use the registered Gin template (c.FullPath()) so conversation
// and document ids never become label values; unmatched requests fall back to
// the raw path. Turn endpoints get their own latency histogram because a turn
// spans summarization, retrieval and the model call and dwarfs everything
// else the API does.

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// sizeBuckets fit JSON payloads from a short reply up to a large document.
var sizeBuckets = prometheus.ExponentialBuckets(256, 4, 8) // 256B..4MiB

var (
	httpReqs = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "HTTP requests by method, route and status code.",
	}, []string{"method", "path", "status"})

	httpLat = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	httpInflight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_requests_inflight",
		Help: "HTTP requests currently being served.",
	})

	httpReqSize = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_size_bytes",
		Help:    "Declared HTTP request body size in bytes.",
		Buckets: sizeBuckets,
	}, []string{"method", "path"})

	httpRespSize = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_response_size_bytes",
		Help:    "HTTP response body size in bytes.",
		Buckets: sizeBuckets,
	}, []string{"method", "path"})

	// turnLat covers requests that run a conversation turn.
	turnLat = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "conversation_turn_duration_seconds",
		Help:    "Latency of turn-producing requests by endpoint and outcome.",
		Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 20, 30, 60},
	}, []string{"endpoint", "outcome"})

	replays = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "idempotent_replays_total",
		Help: "Message posts answered from a recorded reply.",
	})
)

func init() {
	prometheus.MustRegister(httpReqs, httpLat, httpInflight, httpReqSize, httpRespSize, turnLat, replays)
}

// turnEndpoint names the turn-producing route, or "" for any other request.
func turnEndpoint(method, route string) string {
	if method != http.MethodPost {
		return ""
	}
	switch {
	case strings.HasSuffix(route, "/conversations"):
		return "start"
	case strings.HasSuffix(route, "/conversations/:id/messages"):
		return "continue"
	}
	return ""
}

// turnOutcome buckets a turn's final status.
func turnOutcome(status int) string {
	switch {
	case status < 400:
		return "ok"
	case status == http.StatusBadGateway || status == http.StatusServiceUnavailable:
		return "llm_error"
	case status < 500:
		return "client_error"
	default:
		return "error"
	}
}

// Metrics records the HTTP collectors for every request, plus the turn
// histogram and replay counter on turn endpoints. Expose them with
// gin.WrapH(promhttp.Handler()).
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		httpInflight.Inc()
		defer httpInflight.Dec()

		c.Next()

		elapsed := time.Since(start).Seconds()
		method, route := c.Request.Method, routeOf(c)
		status := c.Writer.Status()

		httpReqs.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
		httpLat.WithLabelValues(method, route).Observe(elapsed)
		if n := c.Request.ContentLength; n > 0 {
			httpReqSize.WithLabelValues(method, route).Observe(float64(n))
		}
		// -1 means nothing was written.
		if n := c.Writer.Size(); n >= 0 {
			httpRespSize.WithLabelValues(method, route).Observe(float64(n))
		}

		if ep := turnEndpoint(method, c.FullPath()); ep != "" {
			if IsReplay(c) {
				replays.Inc()
			}
			turnLat.WithLabelValues(ep, turnOutcome(status)).Observe(elapsed)
		}
	}
}
