// Package llm is the gateway to a hosted, OpenAI-compatible chat-completion
// API (Groq by default). A Client sends an ordered list of role/content
// messages and returns the text of the top completion.
//
// Configuration is injected at construction through Config; nothing is read
// from the environment at call time. Calls are bounded by Config.Timeout in
// addition to any deadline already on the caller's context. The client never
// retries.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Defaults match the hosted Groq endpoint the service was built against.
const (
	DefaultEndpoint    = "https://api.groq.com/openai/v1/chat/completions"
	DefaultModel       = "llama-3.1-8b-instant"
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 512
	DefaultTimeout     = 30 * time.Second
)

// maxErrorBody caps how much of an error response is kept in a GatewayError.
const maxErrorBody = 64 << 10

// Message is a single chat turn sent to the model.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Config holds the endpoint, credential and sampling parameters.
type Config struct {
	Endpoint    string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// Client calls the chat-completion endpoint. It is safe for concurrent use.
type Client struct {
	cfg  Config
	http *http.Client
}

var (
	llmRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_requests_total",
			Help: "Chat-completion calls by outcome.",
		},
		[]string{"outcome"},
	)
	llmLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "llm_request_duration_seconds",
			Help:    "Latency of chat-completion calls in seconds.",
			Buckets: []float64{.1, .25, .5, 1, 2, 5, 10, 20, 30},
		},
	)
)

func init() {
	prometheus.MustRegister(llmRequests, llmLatency)
}

// New returns a Client for cfg. Zero-valued fields fall back to the package
// defaults, except APIKey which is required at call time.
func New(cfg Config) *Client {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = DefaultTemperature
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Client{cfg: cfg, http: &http.Client{}}
}

// Model returns the configured model identifier.
func (c *Client) Model() string { return c.cfg.Model }

type completionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
}

type completionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete sends messages and returns the content of the first choice.
//
// It fails with ErrAuthentication when no API key is configured and with a
// *GatewayError on any non-2xx response.
func (c *Client) Complete(ctx context.Context, messages []Message) (string, error) {
	ctx, span := otel.Tracer("llm/Client").Start(ctx, "Complete",
		trace.WithAttributes(
			attribute.String("llm.model", c.cfg.Model),
			attribute.Int("llm.messages", len(messages)),
		),
	)
	defer span.End()

	if c.cfg.APIKey == "" {
		llmRequests.WithLabelValues("unauthenticated").Inc()
		span.SetStatus(codes.Error, "missing api key")
		return "", ErrAuthentication
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	start := time.Now()
	reply, err := c.do(ctx, messages)
	elapsed := time.Since(start)
	llmLatency.Observe(elapsed.Seconds())

	if err != nil {
		outcome := "error"
		var gerr *GatewayError
		if errors.As(err, &gerr) {
			outcome = "gateway_error"
			span.SetAttributes(attribute.Int("http.status_code", gerr.StatusCode))
		}
		llmRequests.WithLabelValues(outcome).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		log.Ctx(ctx).Debug().Err(err).Dur("latency", elapsed).Str("model", c.cfg.Model).Msg("llm call failed")
		return "", err
	}

	llmRequests.WithLabelValues("ok").Inc()
	log.Ctx(ctx).Debug().Dur("latency", elapsed).Str("model", c.cfg.Model).Int("reply_len", len(reply)).Msg("llm call ok")
	return reply, nil
}

func (c *Client) do(ctx context.Context, messages []Message) (string, error) {
	body, err := json.Marshal(completionRequest{
		Model:       c.cfg.Model,
		Messages:    messages,
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("llm: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("llm: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("llm: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", &GatewayError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	var parsed completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("llm: decode response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", errors.New("llm: response has no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}
