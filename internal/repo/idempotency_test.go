package repo

import (
	"errors"
	"testing"
	"time"

	"github.com/tbourn/go-rag-chat-backend/internal/domain"
)

func TestGetIdempotency_NoConversationID_ReturnsNotFound(t *testing.T) {
	db := newTestDB(t, &domain.Idempotency{})
	rec, err := GetIdempotency(bg, db, "   ", "k1", time.Now().UTC())
	if rec != nil || !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected (nil, ErrNotFound) for empty conversation id, got (%v, %v)", rec, err)
	}
}

func TestGetIdempotency_NoTable_Error(t *testing.T) {
	db := newTestDB(t /* no migrations */)
	if _, err := GetIdempotency(bg, db, "c1", "k1", time.Now().UTC()); err == nil || errors.Is(err, ErrNotFound) {
		t.Fatalf("expected raw DB error without table, got %v", err)
	}
}

func TestIdempotency_CreateGetExpireDuplicate(t *testing.T) {
	db := newTestDB(t, &domain.Idempotency{})
	now := time.Now().UTC()

	rec, err := CreateIdempotency(bg, db, "c1", "k1", "m1", 200, []byte(`{"reply":"r1"}`), time.Hour)
	if err != nil {
		t.Fatalf("CreateIdempotency: %v", err)
	}
	if rec.ID == "" || !rec.ExpiresAt.After(rec.CreatedAt) {
		t.Fatalf("unexpected record: %+v", rec)
	}

	got, err := GetIdempotency(bg, db, "c1", "k1", now)
	if err != nil || got.MessageID != "m1" || got.Status != 200 || string(got.Response) != `{"reply":"r1"}` {
		t.Fatalf("GetIdempotency = %+v, %v", got, err)
	}

	// Same key in another conversation is independent.
	if _, err := CreateIdempotency(bg, db, "c2", "k1", "m2", 200, nil, time.Hour); err != nil {
		t.Fatalf("same key, other conversation: %v", err)
	}
	if _, err := CreateIdempotency(bg, db, "c1", "k1", "m3", 200, nil, time.Hour); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("want ErrDuplicate, got %v", err)
	}

	// Past the TTL the record is invisible.
	if _, err := GetIdempotency(bg, db, "c1", "k1", now.Add(2*time.Hour)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expired record should be ErrNotFound, got %v", err)
	}

	n, err := PurgeExpiredIdempotency(bg, db, now.Add(2*time.Hour))
	if err != nil || n != 2 {
		t.Fatalf("PurgeExpiredIdempotency = %d, %v", n, err)
	}
}
