package lock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestLocal_SerializesSameKey(t *testing.T) {
	l := NewLocal()
	ctx := context.Background()

	var (
		mu      sync.Mutex
		inside  int
		maxSeen int
		wg      sync.WaitGroup
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(ctx, "c1")
			if err != nil {
				t.Errorf("Lock: %v", err)
				return
			}
			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			inside--
			mu.Unlock()
			unlock()
		}()
	}
	wg.Wait()

	if maxSeen != 1 {
		t.Fatalf("critical section entered concurrently: max=%d", maxSeen)
	}
	if l.size() != 0 {
		t.Fatalf("slots leaked: %d", l.size())
	}
}

func TestLocal_DifferentKeysDoNotBlock(t *testing.T) {
	var l Local
	ctx := context.Background()

	u1, err := l.Lock(ctx, "a")
	if err != nil {
		t.Fatalf("lock a: %v", err)
	}
	defer u1()

	tctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	u2, err := l.Lock(tctx, "b")
	if err != nil {
		t.Fatalf("lock b should not block: %v", err)
	}
	u2()
}

func TestLocal_ContextCancelWhileWaiting(t *testing.T) {
	l := NewLocal()
	unlock, err := l.Lock(context.Background(), "k")
	if err != nil {
		t.Fatalf("lock: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := l.Lock(ctx, "k"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("want deadline exceeded, got %v", err)
	}

	unlock()
	unlock() // idempotent

	if l.size() != 0 {
		t.Fatalf("slots leaked after cancel: %d", l.size())
	}

	u, err := l.Lock(context.Background(), "k")
	if err != nil {
		t.Fatalf("relock: %v", err)
	}
	u()
}

func TestRedis_NilClient(t *testing.T) {
	r := &Redis{}
	if _, err := r.Lock(context.Background(), "k"); err == nil {
		t.Fatalf("expected error for nil client")
	}
}

func TestOpenRedis_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := OpenRedis(ctx, "127.0.0.1:1", "", 0); err == nil {
		t.Fatalf("expected ping error for unreachable redis")
	}
}

func TestNewRedis_DefaultTTL(t *testing.T) {
	r := NewRedis(nil, 0)
	if r.TTL != DefaultTTL || r.Retry <= 0 {
		t.Fatalf("defaults not applied: %+v", r)
	}
}
