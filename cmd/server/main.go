// Command server runs the RAG chat HTTP API.
//
// Configuration comes from the environment (optionally seeded from a .env
// file). See internal/config for the full list of variables.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/go-rag-chat-backend/internal/config"
	httpapi "github.com/tbourn/go-rag-chat-backend/internal/http"
	"github.com/tbourn/go-rag-chat-backend/internal/llm"
	"github.com/tbourn/go-rag-chat-backend/internal/lock"
	"github.com/tbourn/go-rag-chat-backend/internal/observability"
	"github.com/tbourn/go-rag-chat-backend/internal/repo"
	"github.com/tbourn/go-rag-chat-backend/internal/sysutil"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

// purgeInterval is how often expired idempotency records are removed.
const purgeInterval = time.Hour

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	sysutil.ConfigureLogger(cfg.LogLevel, cfg.LogPretty, os.Stderr, observability.TraceHook{})

	appVersion := sysutil.FirstNonEmpty(os.Getenv("APP_VERSION"), version)
	log.Info().Str("version", appVersion).Str("port", cfg.Port).Msg("starting")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, appVersion)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open database")
	}
	if !sysutil.IsTruthy(os.Getenv("SKIP_MIGRATIONS")) {
		if err := repo.AutoMigrate(db); err != nil {
			log.Fatal().Err(err).Msg("migrate database")
		}
	}

	locker, closeLocker, err := newLocker(ctx, cfg.Redis)
	if err != nil {
		log.Fatal().Err(err).Str("addr", cfg.Redis.Addr).Msg("connect redis")
	}
	defer closeLocker()

	if cfg.LLM.APIKey == "" {
		log.Warn().Msg("GROQ_API_KEY is not set; turns will fail with llm_unavailable")
	}
	gateway := llm.New(llm.Config{
		Endpoint:    cfg.LLM.Endpoint,
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Timeout:     cfg.LLM.Timeout,
	})

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, db, gateway, locker, cfg)

	go purgeIdempotency(ctx, db)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("model", gateway.Model()).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("server failed")
		}
	}

	// In-flight turns wait on the model, so allow up to one write timeout.
	sctx, cancel := context.WithTimeout(context.Background(), cfg.WriteTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// newLocker returns the Redis lease lock when an address is configured and
// the in-process lock otherwise. The returned func releases the client.
func newLocker(ctx context.Context, cfg config.RedisConfig) (lock.Locker, func(), error) {
	if cfg.Addr == "" {
		return lock.NewLocal(), func() {}, nil
	}
	client, err := lock.OpenRedis(ctx, cfg.Addr, cfg.Password, cfg.DB)
	if err != nil {
		return nil, nil, err
	}
	log.Info().Str("addr", cfg.Addr).Dur("ttl", cfg.LockTTL).Msg("using redis conversation lock")
	return lock.NewRedis(client, cfg.LockTTL), func() { closeRedis(client) }, nil
}

func closeRedis(client *redis.Client) {
	if err := client.Close(); err != nil {
		log.Warn().Err(err).Msg("close redis")
	}
}

// purgeIdempotency removes expired replay records until ctx is done.
func purgeIdempotency(ctx context.Context, db *gorm.DB) {
	t := time.NewTicker(purgeInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			n, err := repo.PurgeExpiredIdempotency(ctx, db, now.UTC())
			if err != nil {
				log.Warn().Err(err).Msg("purge idempotency records")
				continue
			}
			if n > 0 {
				log.Debug().Int64("deleted", n).Msg("purged expired idempotency records")
			}
		}
	}
}
