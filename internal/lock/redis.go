package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultTTL bounds how long a crashed holder can keep a key locked.
	// Live holders renew the lease every TTL/3, so a turn may outlast it.
	DefaultTTL = 45 * time.Second

	defaultRetry = 50 * time.Millisecond
	keyPrefix    = "lock:conversation:"
)

// releaseScript deletes the key only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// renewScript extends the lease only if it still holds our token.
var renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// Redis is a lease lock backed by SET NX PX. While held, the lease is renewed
// every TTL/3 until unlock. Unlock releases the lease only when it is still
// owned by the caller.
type Redis struct {
	Client *redis.Client
	TTL    time.Duration
	Retry  time.Duration
}

// NewRedis returns a Redis lock with the given lease TTL. A non-positive ttl
// means DefaultTTL.
func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Redis{Client: client, TTL: ttl, Retry: defaultRetry}
}

// Lock implements Locker. It polls until the key is acquired or ctx is done.
func (r *Redis) Lock(ctx context.Context, key string) (func(), error) {
	if r.Client == nil {
		return nil, errors.New("lock: redis client is nil")
	}
	ttl := r.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	retry := r.Retry
	if retry <= 0 {
		retry = defaultRetry
	}

	k := keyPrefix + key
	token := uuid.NewString()
	for {
		ok, err := r.Client.SetNX(ctx, k, token, ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("lock: acquire %q: %w", key, err)
		}
		if ok {
			break
		}
		t := time.NewTimer(retry)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}

	stop := make(chan struct{})
	renewed := make(chan struct{})
	go r.renew(k, token, ttl, stop, renewed)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-renewed
			// Release on a fresh context so a cancelled request still frees the lease.
			rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = releaseScript.Run(rctx, r.Client, []string{k}, token).Err()
		})
	}, nil
}

// renew extends the lease on k every ttl/3 until stop is closed or the lease
// is found to belong to someone else.
func (r *Redis) renew(k, token string, ttl time.Duration, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	t := time.NewTicker(max(ttl/3, time.Millisecond))
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		n, err := renewScript.Run(ctx, r.Client, []string{k}, token, ttl.Milliseconds()).Int()
		cancel()
		switch {
		case err != nil:
			log.Warn().Err(err).Str("key", k).Msg("lock lease renewal failed")
		case n == 0:
			log.Warn().Str("key", k).Msg("lock lease lost")
			return
		}
	}
}

// OpenRedis connects to addr and verifies the connection with a PING.
func OpenRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis failed: %w", err)
	}
	return client, nil
}
