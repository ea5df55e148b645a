package services

import (
	"errors"
	"strings"
	"testing"

	"github.com/tbourn/go-rag-chat-backend/internal/domain"
	"github.com/tbourn/go-rag-chat-backend/internal/llm"
	"github.com/tbourn/go-rag-chat-backend/internal/repo"
)

func TestNormalizeMode(t *testing.T) {
	cases := map[string]struct {
		want string
		err  error
	}{
		"":       {domain.ModeOpen, nil},
		" RAG ":  {domain.ModeRAG, nil},
		"open":   {domain.ModeOpen, nil},
		"vector": {"", ErrInvalidMode},
	}
	for in, tc := range cases {
		got, err := NormalizeMode(in)
		if got != tc.want || !errors.Is(err, tc.err) {
			t.Fatalf("NormalizeMode(%q) = %q, %v; want %q, %v", in, got, err, tc.want, tc.err)
		}
	}
}

func TestConversationService_Start_Validation(t *testing.T) {
	db := newServiceDB(t)
	gw := &fakeGateway{reply: "x"}
	s := &ConversationService{DB: db, Engine: &Engine{DB: db, Gateway: gw}, MaxMessageRunes: 5}

	if _, _, err := s.Start(bg, "bogus", "hi"); !errors.Is(err, ErrInvalidMode) {
		t.Fatalf("want ErrInvalidMode, got %v", err)
	}
	if _, _, err := s.Start(bg, "", "   "); !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("want ErrEmptyMessage, got %v", err)
	}
	if _, _, err := s.Start(bg, "", "toolong"); !errors.Is(err, ErrTooLong) {
		t.Fatalf("want ErrTooLong, got %v", err)
	}
	if n, _ := repo.CountConversations(bg, db); n != 0 {
		t.Fatalf("validation failures must not create conversations, got %d", n)
	}
	if gw.callCount() != 0 {
		t.Fatalf("gateway must not be called on validation failure")
	}
}

func TestConversationService_Start_Hello(t *testing.T) {
	db := newServiceDB(t)
	s := &ConversationService{DB: db, Engine: &Engine{DB: db, Gateway: &fakeGateway{reply: "Hi"}}}

	conv, res, err := s.Start(bg, "", "Hello")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if conv.Mode != domain.ModeOpen || res.Reply.Content != "Hi" {
		t.Fatalf("unexpected start result: conv=%+v reply=%+v", conv, res.Reply)
	}

	got, msgs, err := s.Get(bg, conv.ID)
	if err != nil || got.ID != conv.ID {
		t.Fatalf("Get = %+v, %v", got, err)
	}
	if len(msgs) != 2 ||
		msgs[0].Sequence != 1 || msgs[0].Role != "user" || msgs[0].Content != "Hello" ||
		msgs[1].Sequence != 2 || msgs[1].Role != "assistant" || msgs[1].Content != "Hi" {
		t.Fatalf("unexpected transcript: %+v", msgs)
	}
}

func TestConversationService_Start_GatewayFailureStillReturnsConversation(t *testing.T) {
	db := newServiceDB(t)
	s := &ConversationService{DB: db, Engine: &Engine{DB: db, Gateway: &fakeGateway{err: llm.ErrAuthentication}}}

	conv, res, err := s.Start(bg, "rag", "Hello")
	if !errors.Is(err, llm.ErrAuthentication) {
		t.Fatalf("want ErrAuthentication, got %v", err)
	}
	if conv == nil || res != nil {
		t.Fatalf("conversation must be returned without a result, got conv=%v res=%v", conv, res)
	}
	if n, _ := repo.CountMessages(bg, db, conv.ID); n != 1 {
		t.Fatalf("user message must stay persisted, count=%d", n)
	}
}

func TestConversationService_Get_NotFound(t *testing.T) {
	db := newServiceDB(t)
	s := &ConversationService{DB: db}
	if _, _, err := s.Get(bg, "nope"); !errors.Is(err, ErrConversationNotFound) {
		t.Fatalf("want ErrConversationNotFound, got %v", err)
	}
}

func TestConversationService_ListPage(t *testing.T) {
	db := newServiceDB(t)
	s := &ConversationService{DB: db}

	items, total, err := s.ListPage(bg, 0, 0)
	if err != nil || total != 0 || items == nil || len(items) != 0 {
		t.Fatalf("empty ListPage = %v, %d, %v", items, total, err)
	}
	for i := 0; i < 3; i++ {
		mustConversation(t, db, domain.ModeOpen)
	}
	items, total, err = s.ListPage(bg, 2, 2)
	if err != nil || total != 3 || len(items) != 1 {
		t.Fatalf("page 2 = %d items, total %d, %v", len(items), total, err)
	}
}

func TestConversationService_Delete(t *testing.T) {
	db := newServiceDB(t)
	s := &ConversationService{DB: db, Engine: &Engine{DB: db, Gateway: &fakeGateway{reply: "r"}}}
	conv, _, err := s.Start(bg, "open", strings.Repeat("x", 3))
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := s.Delete(bg, conv.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if n, _ := repo.CountMessages(bg, db, conv.ID); n != 0 {
		t.Fatalf("messages must be cascaded, count=%d", n)
	}
	if err := s.Delete(bg, conv.ID); !errors.Is(err, ErrConversationNotFound) {
		t.Fatalf("want ErrConversationNotFound, got %v", err)
	}
}
