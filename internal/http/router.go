// Package httpapi mounts the public API on a Gin engine: the middleware
// chain, the ops endpoints and the conversation, message, link and document
// routes, with services built from the injected database, gateway and lock.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/tbourn/go-rag-chat-backend/docs"
	"github.com/tbourn/go-rag-chat-backend/internal/config"
	"github.com/tbourn/go-rag-chat-backend/internal/http/handlers"
	"github.com/tbourn/go-rag-chat-backend/internal/http/middleware"
	"github.com/tbourn/go-rag-chat-backend/internal/lock"
	"github.com/tbourn/go-rag-chat-backend/internal/repo"
	"github.com/tbourn/go-rag-chat-backend/internal/services"
)

// Headers clients may send and read across origins.
var (
	corsAllowHeaders  = []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.HeaderIdempotencyKey, "If-None-Match"}
	corsExposeHeaders = []string{"X-Request-ID", "Content-Length", "ETag", handlers.HeaderConversationID, handlers.HeaderIdempotencyReplayed}
)

// RegisterRoutes attaches the middleware chain, the ops endpoints and the
// versioned API under cfg.APIBasePath to r.
//
// gw answers model calls for every turn. locker serializes turns per
// conversation; nil selects an in-process lock.
//
// Chain order: tracing, request id, scoped logger, access log, recovery,
// body limit, gzip, metrics, idempotency, rate limit, CORS, security headers.
// Idempotency runs before the limiter so replays can bypass it.
func RegisterRoutes(r *gin.Engine, db *gorm.DB, gw services.Gateway, locker lock.Locker, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = defaultMaxBody
	}
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByConversationOrIP())

	r.Use(
		otelgin.Middleware(cfg.OTEL.ServiceName),
		middleware.RequestID(),
		middleware.ScopedLogger(),
		middleware.RedactingLogger(middleware.RedactOptions{MaskHeaders: []string{"X-API-Key"}}),
		middleware.Recovery(),
		limitBody(maxBody),
		gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})),
		middleware.Metrics(),
		middleware.IdempotencyValidator(middleware.IdempotencyOptions{MaxLen: 200}, replayLookup(db)),
		rl.Handler(),
	)
	r.Use(corsChain(cfg.CORS.AllowedOrigins)...)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:    cfg.Security.EnableHSTS,
		HSTSMaxAge:    cfg.Security.HSTSMaxAge,
		EnablePolicy:  true,
		ExposeHeaders: []string{"X-Request-ID", "ETag", handlers.HeaderConversationID},
	}))

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	if cfg.SwaggerEnabled {
		docs.SwaggerInfo.BasePath = cfg.APIBasePath
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	h := newHandlers(db, gw, locker, cfg)
	api := groupWithPrefix(r, cfg.APIBasePath)

	api.POST("/conversations", h.StartConversation)
	api.GET("/conversations", h.ListConversations)
	api.GET("/conversations/:id", h.GetConversation)
	api.DELETE("/conversations/:id", h.DeleteConversation)

	api.POST("/conversations/:id/messages", h.PostMessage)
	api.GET("/conversations/:id/messages", h.ListMessages)

	api.POST("/conversations/:id/documents", h.LinkDocument)
	api.GET("/conversations/:id/documents", h.ListLinkedDocuments)
	api.DELETE("/conversations/:id/documents/:documentId", h.UnlinkDocument)

	api.POST("/documents/upload", h.UploadDocument)
	api.GET("/documents", h.ListDocuments)
	api.GET("/documents/:id", h.GetDocument)
	api.PUT("/documents/:id", h.UpdateDocument)
	api.DELETE("/documents/:id", h.DeleteDocument)
}

// defaultMaxBody caps request bodies when MAX_BODY_BYTES is unset.
const defaultMaxBody = 1 << 20

// newHandlers builds the engine and services shared by every route.
func newHandlers(db *gorm.DB, gw services.Gateway, locker lock.Locker, cfg config.Config) *handlers.Handlers {
	eng := &services.Engine{
		DB:               db,
		Gateway:          gw,
		Locker:           locker,
		SummaryThreshold: cfg.Engine.SummaryThreshold,
		SummaryCutoff:    cfg.Engine.SummaryCutoff,
		RetrievalLimit:   cfg.Engine.RetrievalLimit,
	}
	h := handlers.New(
		&services.ConversationService{DB: db, Engine: eng, MaxMessageRunes: cfg.Engine.MaxMessageRunes},
		&services.MessageService{DB: db, Engine: eng, MaxMessageRunes: cfg.Engine.MaxMessageRunes},
		&services.DocumentService{DB: db, ChunkSize: cfg.Engine.ChunkSize},
		&services.LinkService{DB: db},
	)
	h.DB = db
	h.IdempotencyTTL = cfg.IdempotencyTTL
	return h
}

// replayLookup reports whether a live reply is recorded for (conversation, key).
func replayLookup(db *gorm.DB) middleware.IdempotencyLookup {
	return func(ctx context.Context, conversationID, key string, now time.Time) (bool, error) {
		_, err := repo.GetIdempotency(ctx, db, conversationID, key, now)
		if errors.Is(err, repo.ErrNotFound) {
			return false, nil
		}
		return err == nil, err
	}
}

// corsChain returns the CORS handlers. With no allowlist every origin is
// accepted and Access-Control-Allow-Origin is "*" even on requests without an
// Origin header. With an allowlist, listed origins are echoed back.
func corsChain(origins []string) []gin.HandlerFunc {
	cc := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  corsAllowHeaders,
		ExposeHeaders: corsExposeHeaders,
		MaxAge:        12 * time.Hour,
	}

	if len(origins) == 0 {
		cc.AllowAllOrigins = true
		star := func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		}
		return []gin.HandlerFunc{star, cors.New(cc)}
	}

	cc.AllowOrigins = origins
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}
	echo := func(c *gin.Context) {
		if origin := c.GetHeader("Origin"); allowed[origin] {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Add("Vary", "Origin")
		}
		c.Next()
	}
	return []gin.HandlerFunc{echo, cors.New(cc)}
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
