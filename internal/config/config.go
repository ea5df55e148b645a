// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes server timeouts,
// logging, the database path, the LLM gateway, the conversation engine
// budgets, the optional Redis lock backend, rate limiting and observability.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "go-rag-chat-backend")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// LLMConfig defines the chat-completion gateway settings.
type LLMConfig struct {
	APIKey      string        // GROQ_API_KEY (empty: every turn fails with llm_unavailable)
	Model       string        // GROQ_MODEL
	Endpoint    string        // LLM_ENDPOINT
	Temperature float64       // LLM_TEMPERATURE in [0..2]
	MaxTokens   int           // LLM_MAX_TOKENS
	Timeout     time.Duration // LLM_TIMEOUT
}

// EngineConfig defines the conversation-context engine budgets.
type EngineConfig struct {
	SummaryThreshold int // SUMMARY_TOKEN_THRESHOLD (estimated tokens)
	SummaryCutoff    int // SUMMARY_CUTOFF_SEQUENCE (messages with sequence <= cutoff are folded)
	ChunkSize        int // CHUNK_SIZE (characters per document chunk)
	RetrievalLimit   int // RETRIEVAL_LIMIT (max chunks per rag turn)
	MaxMessageRunes  int // MAX_MESSAGE_RUNES (0 disables)
}

// RedisConfig defines the optional distributed lock backend. An empty Addr
// keeps locking in-process.
type RedisConfig struct {
	Addr     string        // REDIS_ADDR
	Password string        // REDIS_PASSWORD
	DB       int           // REDIS_DB
	LockTTL  time.Duration // LOCK_TTL
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 90s (a turn may call the model twice)
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	MaxBodyBytes      int64         // request body cap
	GinMode           string        // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for API routes

	// App
	DBPath string // SQLite path

	// Conversation engine and model gateway
	LLM    LLMConfig
	Engine EngineConfig
	Redis  RedisConfig

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Idempotency
	IdempotencyTTL time.Duration // how long a given Idempotency-Key is valid

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 90*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		MaxBodyBytes:      int64(getint("MAX_BODY_BYTES", 4<<20)),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging / Docs
		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		// App
		DBPath: getenv("DB_PATH", "app.db"),

		// LLM gateway
		LLM: LLMConfig{
			APIKey:      os.Getenv("GROQ_API_KEY"),
			Model:       getenv("GROQ_MODEL", "llama-3.1-8b-instant"),
			Endpoint:    getenv("LLM_ENDPOINT", "https://api.groq.com/openai/v1/chat/completions"),
			Temperature: getfloat("LLM_TEMPERATURE", 0.7),
			MaxTokens:   getint("LLM_MAX_TOKENS", 512),
			Timeout:     getdur("LLM_TIMEOUT", 30*time.Second),
		},

		// Conversation engine
		Engine: EngineConfig{
			SummaryThreshold: getint("SUMMARY_TOKEN_THRESHOLD", 3000),
			SummaryCutoff:    getint("SUMMARY_CUTOFF_SEQUENCE", 6),
			ChunkSize:        getint("CHUNK_SIZE", 500),
			RetrievalLimit:   getint("RETRIEVAL_LIMIT", 3),
			MaxMessageRunes:  getint("MAX_MESSAGE_RUNES", 8000),
		},

		// Distributed locking
		Redis: RedisConfig{
			Addr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getint("REDIS_DB", 0),
			LockTTL:  getdur("LOCK_TTL", 45*time.Second),
		},

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Idempotency
		IdempotencyTTL: getdur("IDEMPOTENCY_TTL", 24*time.Hour),

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "go-rag-chat-backend"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	cfg.normalize()
	return cfg, cfg.validate()
}

// normalize folds accepted aliases and falls back for unknown Gin modes.
func (c *Config) normalize() {
	if c.LogLevel == "warning" {
		c.LogLevel = "warn"
	}
	switch c.GinMode {
	case "debug", "release", "test":
	default:
		c.GinMode = "release"
	}
}

// validate returns the first violated rule, in declaration order.
func (c Config) validate() error {
	blank := func(s string) bool { return strings.TrimSpace(s) == "" }
	rules := []struct {
		bad bool
		msg string
	}{
		{!validLogLevel(c.LogLevel), "LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic"},
		{blank(c.Port), "PORT must not be empty"},
		{c.ReadTimeout <= 0 || c.ReadHeaderTimeout <= 0 || c.WriteTimeout <= 0 || c.IdleTimeout <= 0, "timeouts must be positive durations"},
		{c.MaxHeaderBytes <= 0, "MAX_HEADER_BYTES must be > 0"},
		{c.MaxBodyBytes <= 0, "MAX_BODY_BYTES must be > 0"},
		{blank(c.DBPath), "DB_PATH must not be empty"},
		{blank(c.LLM.Endpoint) || blank(c.LLM.Model), "LLM_ENDPOINT and GROQ_MODEL must not be empty"},
		{c.LLM.Temperature < 0 || c.LLM.Temperature > 2, "LLM_TEMPERATURE must be between 0 and 2"},
		{c.LLM.MaxTokens < 1, "LLM_MAX_TOKENS must be >= 1"},
		{c.LLM.Timeout <= 0, "LLM_TIMEOUT must be > 0"},
		{c.WriteTimeout <= 2*c.LLM.Timeout, "WRITE_TIMEOUT must exceed twice LLM_TIMEOUT"},
		{c.Engine.SummaryThreshold < 1, "SUMMARY_TOKEN_THRESHOLD must be >= 1"},
		{c.Engine.SummaryCutoff < 1, "SUMMARY_CUTOFF_SEQUENCE must be >= 1"},
		{c.Engine.ChunkSize < 1, "CHUNK_SIZE must be >= 1"},
		{c.Engine.RetrievalLimit < 1, "RETRIEVAL_LIMIT must be >= 1"},
		{c.Engine.MaxMessageRunes < 0, "MAX_MESSAGE_RUNES must be >= 0"},
		{c.Redis.DB < 0, "REDIS_DB must be >= 0"},
		{c.Redis.LockTTL <= 0, "LOCK_TTL must be > 0"},
		{c.RateRPS < 0, "RATE_RPS must be >= 0"},
		{c.RateBurst < 1, "RATE_BURST must be >= 1"},
		{c.Security.HSTSMaxAge < 0, "HSTS_MAX_AGE must be >= 0"},
		{c.IdempotencyTTL <= 0, "IDEMPOTENCY_TTL must be > 0"},
		{c.OTEL.SampleRatio < 0 || c.OTEL.SampleRatio > 1, "OTEL_TRACES_SAMPLER_ARG must be in [0,1]"},
	}
	for _, r := range rules {
		if r.bad {
			return errors.New(r.msg)
		}
	}
	return nil
}

func validLogLevel(l string) bool {
	switch l {
	case "debug", "info", "warn", "error", "fatal", "panic":
		return true
	}
	return false
}

// Env readers. A set but unparsable value falls back to the default.

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
