package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// serveWithLogger runs h behind a stub of RequestID and ScopedLogger that
// writes to the returned buffer.
func serveWithLogger(t *testing.T, h gin.HandlerFunc) (*httptest.ResponseRecorder, *bytes.Buffer) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	var buf bytes.Buffer
	lg := zerolog.New(&buf)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Header("X-Request-ID", "rid-r")
		c.Set("logger", &lg)
		c.Next()
	})
	r.GET("/x", h)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	return w, &buf
}

func TestFail_EnvelopeAndLogLevels(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		code    string
		wantLvl string // "" means nothing logged
	}{
		{"client error not logged", http.StatusNotFound, ErrCodeNotFound, ""},
		{"gateway failure at warn", http.StatusBadGateway, ErrCodeLLMGateway, "warn"},
		{"unavailable at warn", http.StatusServiceUnavailable, ErrCodeLLMUnavailable, "warn"},
		{"internal at error", http.StatusInternalServerError, ErrCodeInternal, "error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w, buf := serveWithLogger(t, func(c *gin.Context) {
				_ = c.Error(errors.New("root cause"))
				fail(c, tc.status, tc.code, "something happened")
			})

			if w.Code != tc.status {
				t.Fatalf("status = %d; want %d", w.Code, tc.status)
			}
			var er ErrorResponse
			if err := json.Unmarshal(w.Body.Bytes(), &er); err != nil {
				t.Fatalf("json: %v", err)
			}
			if er != (ErrorResponse{RequestID: "rid-r", Code: tc.code, Message: "something happened"}) {
				t.Fatalf("body = %+v", er)
			}

			logs := buf.String()
			if tc.wantLvl == "" {
				if logs != "" {
					t.Fatalf("unexpected log: %s", logs)
				}
				return
			}
			if !strings.Contains(logs, `"level":"`+tc.wantLvl+`"`) || !strings.Contains(logs, `"error":"root cause"`) {
				t.Fatalf("log = %s; want level %s with the attached error", logs, tc.wantLvl)
			}
		})
	}
}

func TestSuccessHelpers(t *testing.T) {
	w, _ := serveWithLogger(t, func(c *gin.Context) {
		ok(c, http.StatusCreated, StatusResponse{Status: "created"})
	})
	if w.Code != http.StatusCreated || strings.TrimSpace(w.Body.String()) != `{"status":"created"}` {
		t.Fatalf("ok: %d %s", w.Code, w.Body.String())
	}

	w, _ = serveWithLogger(t, noContent)
	if w.Code != http.StatusNoContent || w.Body.Len() != 0 {
		t.Fatalf("noContent: %d %q", w.Code, w.Body.String())
	}

	w, _ = serveWithLogger(t, func(c *gin.Context) {
		Fail(c, http.StatusMethodNotAllowed, ErrCodeMethodNotAllowed, "method not allowed")
	})
	if w.Code != http.StatusMethodNotAllowed || !strings.Contains(w.Body.String(), ErrCodeMethodNotAllowed) {
		t.Fatalf("Fail: %d %s", w.Code, w.Body.String())
	}
}
