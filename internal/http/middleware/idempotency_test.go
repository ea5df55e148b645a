package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestIdempotencyAccessors_IgnoreForeignTypes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodPost, "/", nil)

	if _, ok := GetIdempotencyKey(c); ok || IsReplay(c) {
		t.Fatal("fresh context reports idempotency state")
	}
	c.Set(ctxKeyIdemKey, 123)
	c.Set(ctxKeyIdemReplay, "yes")
	if _, ok := GetIdempotencyKey(c); ok || IsReplay(c) {
		t.Fatal("non-string key or non-bool replay must read as absent")
	}
	c.Set(ctxKeyIdemKey, "k")
	c.Set(ctxKeyIdemReplay, true)
	if k, ok := GetIdempotencyKey(c); !ok || k != "k" || !IsReplay(c) {
		t.Fatalf("stored state not read back: %q %v %v", k, ok, IsReplay(c))
	}
}

func TestIdempotencyValidator_HeaderValidation(t *testing.T) {
	cases := []struct {
		name     string
		opts     IdempotencyOptions
		header   string
		wantCode int
		wantKey  string
	}{
		{"absent header is a no-op", IdempotencyOptions{}, "", http.StatusOK, ""},
		{"default pattern accepts token chars", IdempotencyOptions{}, "abc-123:v1.~_", http.StatusOK, "abc-123:v1.~_"},
		{"default pattern rejects spaces", IdempotencyOptions{}, "two words", http.StatusBadRequest, ""},
		{"default max length", IdempotencyOptions{}, strings.Repeat("k", defaultIdempotencyKeyMaxLen+1), http.StatusBadRequest, ""},
		{"custom max length", IdempotencyOptions{MaxLen: 5}, "abcdef", http.StatusBadRequest, ""},
		{"custom pattern", IdempotencyOptions{Pattern: regexp.MustCompile(`^[0-9]+$`)}, "abc123", http.StatusBadRequest, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gin.SetMode(gin.TestMode)
			lookups := 0
			lookup := func(context.Context, string, string, time.Time) (bool, error) {
				lookups++
				return false, nil
			}
			r := gin.New()
			r.Use(IdempotencyValidator(tc.opts, lookup))
			r.POST("/conversations/:id/messages", func(c *gin.Context) {
				key, _ := GetIdempotencyKey(c)
				if key != tc.wantKey {
					t.Errorf("key = %q; want %q", key, tc.wantKey)
				}
				c.Status(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodPost, "/conversations/c1/messages", nil)
			if tc.header != "" {
				req.Header.Set(HeaderIdempotencyKey, tc.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tc.wantCode {
				t.Fatalf("status = %d; want %d", w.Code, tc.wantCode)
			}
			if tc.wantCode == http.StatusBadRequest {
				var body map[string]any
				if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil || body["code"] != "bad_idempotency_key" {
					t.Fatalf("body = %s (%v)", w.Body.String(), err)
				}
			}
			if wantLookups := map[bool]int{true: 1, false: 0}[tc.wantKey != ""]; lookups != wantLookups {
				t.Fatalf("lookups = %d; want %d", lookups, wantLookups)
			}
		})
	}
}

func TestIdempotencyValidator_Valid_WithLookup_MissAndHit(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("lookup miss", func(t *testing.T) {
		r := gin.New()
		lookup := func(_ context.Context, conversationID, key string, now time.Time) (bool, error) {
			if key == "" || now.IsZero() {
				t.Fatalf("lookup args not populated: key=%q now=%v", key, now)
			}
			if conversationID != "c42" {
				t.Fatalf("expected conversation path param c42, got %q", conversationID)
			}
			return false, nil
		}
		r.Use(IdempotencyValidator(IdempotencyOptions{}, lookup))
		r.POST("/conversations/:id/messages", func(c *gin.Context) {
			if IsReplay(c) || IsRateBypass(c) {
				t.Fatalf("expected no replay/bypass on miss")
			}
			c.Status(http.StatusOK)
		})

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/conversations/c42/messages", nil)
		req.Header.Set(HeaderIdempotencyKey, "key-1")
		r.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("miss: expected 200, got %d", w.Code)
		}
	})

	t.Run("lookup hit sets replay and bypass", func(t *testing.T) {
		r := gin.New()
		lookup := func(_ context.Context, conversationID, key string, _ time.Time) (bool, error) {
			if conversationID != "abc" || key != "k-9" {
				t.Fatalf("unexpected conversation/key: %q %q", conversationID, key)
			}
			return true, nil
		}
		r.Use(IdempotencyValidator(IdempotencyOptions{}, lookup))
		r.POST("/conversations/:id/messages", func(c *gin.Context) {
			if !IsReplay(c) {
				t.Fatalf("expected IsReplay=true on hit")
			}
			if !IsRateBypass(c) {
				t.Fatalf("expected IsRateBypass=true on hit")
			}
			c.Status(http.StatusOK)
		})

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/conversations/abc/messages", nil)
		req.Header.Set(HeaderIdempotencyKey, "k-9")
		r.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("hit: expected 200, got %d", w.Code)
		}
	})

	t.Run("lookup skipped without conversation and errors tolerated", func(t *testing.T) {
		r := gin.New()
		calls := 0
		lookup := func(_ context.Context, _, _ string, _ time.Time) (bool, error) {
			calls++
			return false, errors.New("db down")
		}
		r.Use(IdempotencyValidator(IdempotencyOptions{}, lookup))
		r.POST("/documents/upload", func(c *gin.Context) { c.Status(http.StatusCreated) })
		r.POST("/conversations/:id/messages", func(c *gin.Context) {
			if IsReplay(c) {
				t.Fatalf("lookup error must not mark a replay")
			}
			c.Status(http.StatusOK)
		})

		req := httptest.NewRequest(http.MethodPost, "/documents/upload", nil)
		req.Header.Set(HeaderIdempotencyKey, "k-1")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != http.StatusCreated || calls != 0 {
			t.Fatalf("no-conversation route: code=%d calls=%d", w.Code, calls)
		}

		req = httptest.NewRequest(http.MethodPost, "/conversations/c1/messages", nil)
		req.Header.Set(HeaderIdempotencyKey, "k-1")
		w = httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != http.StatusOK || calls != 1 {
			t.Fatalf("lookup error path: code=%d calls=%d", w.Code, calls)
		}
	})
}
