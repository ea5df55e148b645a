package services

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"gorm.io/gorm"

	"github.com/tbourn/go-rag-chat-backend/internal/domain"
	"github.com/tbourn/go-rag-chat-backend/internal/llm"
	"github.com/tbourn/go-rag-chat-backend/internal/repo"
)

// ---------- test helpers ----------

func newServiceDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := repo.OpenSQLite(filepath.Join(t.TempDir(), "svc.db"))
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
	return db
}

// fakeGateway records every prompt and answers from a script.
type fakeGateway struct {
	mu      sync.Mutex
	calls   [][]llm.Message
	replies []string
	reply   string
	err     error
}

func (f *fakeGateway) Complete(_ context.Context, msgs []llm.Message) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]llm.Message, len(msgs))
	copy(cp, msgs)
	f.calls = append(f.calls, cp)
	if f.err != nil {
		return "", f.err
	}
	if len(f.replies) > 0 {
		r := f.replies[0]
		f.replies = f.replies[1:]
		return r, nil
	}
	return f.reply, nil
}

func (f *fakeGateway) lastCall(t *testing.T) []llm.Message {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		t.Fatalf("gateway was never called")
	}
	return f.calls[len(f.calls)-1]
}

func (f *fakeGateway) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func mustConversation(t *testing.T, db *gorm.DB, mode string) *domain.Conversation {
	t.Helper()
	c, err := repo.CreateConversation(context.Background(), db, mode)
	if err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}
	return c
}

func mustMessage(t *testing.T, db *gorm.DB, convID, role, content string, seq int) {
	t.Helper()
	if _, err := repo.CreateMessage(context.Background(), db, convID, role, content, seq); err != nil {
		t.Fatalf("CreateMessage seq %d: %v", seq, err)
	}
}

func sequences(t *testing.T, db *gorm.DB, convID string) []int {
	t.Helper()
	msgs, err := repo.ListMessages(context.Background(), db, convID)
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	out := make([]int, len(msgs))
	for i, m := range msgs {
		out[i] = m.Sequence
	}
	return out
}

var bg = context.Background()
