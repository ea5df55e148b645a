package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tbourn/go-rag-chat-backend/internal/llm"
	"github.com/tbourn/go-rag-chat-backend/internal/repo"
	"github.com/tbourn/go-rag-chat-backend/internal/services"
)

// ---------- test plumbing ----------

// fakeGateway answers every prompt with a fixed reply (or error) and keeps
// the last prompt for assertions.
type fakeGateway struct {
	mu    sync.Mutex
	reply string
	err   error
	calls int
	last  []llm.Message
}

func (f *fakeGateway) Complete(_ context.Context, msgs []llm.Message) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.last = append([]llm.Message(nil), msgs...)
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func (f *fakeGateway) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeGateway) lastPrompt() []llm.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

type testEnv struct {
	r  *gin.Engine
	db *gorm.DB
	gw *fakeGateway
	h  *Handlers
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := repo.OpenSQLite(filepath.Join(t.TempDir(), "handlers.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}

	gw := &fakeGateway{reply: "Hi"}
	eng := &services.Engine{DB: db, Gateway: gw}
	h := New(
		&services.ConversationService{DB: db, Engine: eng},
		&services.MessageService{DB: db, Engine: eng},
		&services.DocumentService{DB: db},
		&services.LinkService{DB: db},
	)
	h.DB = db

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("X-Request-ID", "rid-test")
		c.Next()
	})
	r.POST("/conversations", h.StartConversation)
	r.GET("/conversations", h.ListConversations)
	r.GET("/conversations/:id", h.GetConversation)
	r.DELETE("/conversations/:id", h.DeleteConversation)
	r.POST("/conversations/:id/messages", h.PostMessage)
	r.GET("/conversations/:id/messages", h.ListMessages)
	r.POST("/conversations/:id/documents", h.LinkDocument)
	r.GET("/conversations/:id/documents", h.ListLinkedDocuments)
	r.DELETE("/conversations/:id/documents/:documentId", h.UnlinkDocument)
	r.POST("/documents/upload", h.UploadDocument)
	r.GET("/documents", h.ListDocuments)
	r.GET("/documents/:id", h.GetDocument)
	r.PUT("/documents/:id", h.UpdateDocument)
	r.DELETE("/documents/:id", h.DeleteDocument)

	return &testEnv{r: r, db: db, gw: gw, h: h}
}

// do performs a request. headers are given as alternating name/value pairs.
func (e *testEnv) do(method, target, body string, headers ...string) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	e.r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %T: %v (body=%s)", out, err, w.Body.String())
	}
	return out
}

func expectError(t *testing.T, w *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	if w.Code != status {
		t.Fatalf("status = %d; want %d (body=%s)", w.Code, status, w.Body.String())
	}
	er := decode[ErrorResponse](t, w)
	if er.Code != code || er.RequestID != "rid-test" {
		t.Fatalf("error body = %+v; want code %q", er, code)
	}
}

// startConversation runs POST /conversations and returns the new id.
func (e *testEnv) startConversation(t *testing.T, mode, first string) string {
	t.Helper()
	w := e.do(http.MethodPost, "/conversations", `{"mode":"`+mode+`","first_message":"`+first+`"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("start: %d %s", w.Code, w.Body.String())
	}
	return decode[StartConversationResponse](t, w).ConversationID
}

func (e *testEnv) uploadDocument(t *testing.T, name, content string) string {
	t.Helper()
	body, _ := json.Marshal(DocumentRequest{Name: name, Content: content})
	w := e.do(http.MethodPost, "/documents/upload", string(body))
	if w.Code != http.StatusCreated {
		t.Fatalf("upload: %d %s", w.Code, w.Body.String())
	}
	return decode[DocumentWriteResponse](t, w).DocumentID
}

const missingID = "00000000-0000-4000-8000-000000000000"
