package handlers

import (
	"net/http"
	"testing"

	"github.com/tbourn/go-rag-chat-backend/internal/domain"
	"github.com/tbourn/go-rag-chat-backend/internal/llm"
)

func TestStartConversation_CreatesAndAnswers(t *testing.T) {
	e := newEnv(t)

	w := e.do(http.MethodPost, "/conversations", `{"first_message":"Hello"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d; want 201 (body=%s)", w.Code, w.Body.String())
	}
	got := decode[StartConversationResponse](t, w)
	if got.ConversationID == "" || got.Mode != domain.ModeOpen || got.Reply != "Hi" {
		t.Fatalf("response = %+v", got)
	}
	if h := w.Header().Get(HeaderConversationID); h != got.ConversationID {
		t.Fatalf("%s = %q; want %q", HeaderConversationID, h, got.ConversationID)
	}

	w = e.do(http.MethodGet, "/conversations/"+got.ConversationID, "")
	if w.Code != http.StatusOK {
		t.Fatalf("get: %d %s", w.Code, w.Body.String())
	}
	detail := decode[ConversationDetailResponse](t, w)
	if len(detail.Messages) != 2 {
		t.Fatalf("messages = %d; want 2", len(detail.Messages))
	}
	if m := detail.Messages[0]; m.Role != domain.RoleUser || m.Content != "Hello" || m.Sequence != 1 {
		t.Fatalf("first = %+v", m)
	}
	if m := detail.Messages[1]; m.Role != domain.RoleAssistant || m.Content != "Hi" || m.Sequence != 2 {
		t.Fatalf("second = %+v", m)
	}

	etag := w.Header().Get("ETag")
	if etag == "" {
		t.Fatal("expected ETag on conversation detail")
	}
	w = e.do(http.MethodGet, "/conversations/"+got.ConversationID, "", "If-None-Match", etag)
	if w.Code != http.StatusNotModified {
		t.Fatalf("conditional get = %d; want 304", w.Code)
	}
}

func TestStartConversation_RAGMode(t *testing.T) {
	e := newEnv(t)
	w := e.do(http.MethodPost, "/conversations", `{"mode":" RAG ","first_message":"hello"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d (body=%s)", w.Code, w.Body.String())
	}
	if got := decode[StartConversationResponse](t, w); got.Mode != domain.ModeRAG {
		t.Fatalf("mode = %q; want rag", got.Mode)
	}
}

func TestStartConversation_Validation(t *testing.T) {
	e := newEnv(t)

	cases := []struct {
		name string
		body string
	}{
		{"invalid json", `{"first_message":`},
		{"invalid mode", `{"mode":"chat","first_message":"hi"}`},
		{"blank message", `{"first_message":"   "}`},
		{"missing message", `{}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := e.do(http.MethodPost, "/conversations", tc.body)
			expectError(t, w, http.StatusBadRequest, ErrCodeBadRequest)
			if w.Header().Get(HeaderConversationID) != "" {
				t.Fatal("no conversation should be reported for invalid input")
			}
		})
	}
	if n := e.gw.callCount(); n != 0 {
		t.Fatalf("gateway calls = %d; want 0", n)
	}
}

func TestStartConversation_GatewayFailures(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"no api key", llm.ErrAuthentication, http.StatusServiceUnavailable, ErrCodeLLMUnavailable},
		{"upstream status", &llm.GatewayError{StatusCode: 429, Body: "slow down"}, http.StatusBadGateway, ErrCodeLLMGateway},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := newEnv(t)
			e.gw.err = tc.err

			w := e.do(http.MethodPost, "/conversations", `{"first_message":"Hello"}`)
			expectError(t, w, tc.status, tc.code)

			id := w.Header().Get(HeaderConversationID)
			if id == "" {
				t.Fatal("conversation id must be reported when the turn fails")
			}
			w = e.do(http.MethodGet, "/conversations/"+id, "")
			detail := decode[ConversationDetailResponse](t, w)
			if len(detail.Messages) != 1 || detail.Messages[0].Role != domain.RoleUser {
				t.Fatalf("transcript = %+v; want only the user message", detail.Messages)
			}
		})
	}
}

func TestListConversations_PaginationAndETag(t *testing.T) {
	e := newEnv(t)

	w := e.do(http.MethodGet, "/conversations", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	empty := decode[ListConversationsResponse](t, w)
	if empty.Conversations == nil || len(empty.Conversations) != 0 || empty.Pagination.Total != 0 {
		t.Fatalf("empty list = %+v", empty)
	}

	for i := 0; i < 3; i++ {
		e.startConversation(t, "open", "hi")
	}

	w = e.do(http.MethodGet, "/conversations?page=2&page_size=2", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	page := decode[ListConversationsResponse](t, w)
	if len(page.Conversations) != 1 {
		t.Fatalf("page 2 items = %d; want 1", len(page.Conversations))
	}
	want := Pagination{Page: 2, PageSize: 2, Total: 3, TotalPages: 2, HasNext: false}
	if page.Pagination != want {
		t.Fatalf("pagination = %+v; want %+v", page.Pagination, want)
	}

	etag := w.Header().Get("ETag")
	if etag == "" {
		t.Fatal("expected ETag")
	}
	w = e.do(http.MethodGet, "/conversations", "", "If-None-Match", etag)
	if w.Code != http.StatusNotModified {
		t.Fatalf("conditional list = %d; want 304", w.Code)
	}

	e.startConversation(t, "open", "one more")
	w = e.do(http.MethodGet, "/conversations", "", "If-None-Match", etag)
	if w.Code != http.StatusOK {
		t.Fatalf("list after change = %d; want 200", w.Code)
	}
}

func TestGetConversation_Errors(t *testing.T) {
	e := newEnv(t)
	expectError(t, e.do(http.MethodGet, "/conversations/not-a-uuid", ""), http.StatusBadRequest, ErrCodeBadRequest)
	expectError(t, e.do(http.MethodGet, "/conversations/"+missingID, ""), http.StatusNotFound, ErrCodeNotFound)
}

func TestDeleteConversation(t *testing.T) {
	e := newEnv(t)
	id := e.startConversation(t, "open", "Hello")

	w := e.do(http.MethodDelete, "/conversations/"+id, "")
	if w.Code != http.StatusOK {
		t.Fatalf("delete = %d (body=%s)", w.Code, w.Body.String())
	}
	if got := decode[StatusResponse](t, w); got.Status != "deleted" {
		t.Fatalf("status body = %+v", got)
	}

	expectError(t, e.do(http.MethodDelete, "/conversations/"+id, ""), http.StatusNotFound, ErrCodeNotFound)
	expectError(t, e.do(http.MethodGet, "/conversations/"+id+"/messages", ""), http.StatusNotFound, ErrCodeNotFound)
	expectError(t, e.do(http.MethodDelete, "/conversations/nope", ""), http.StatusBadRequest, ErrCodeBadRequest)
}
