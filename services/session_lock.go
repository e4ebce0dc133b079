package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// SessionLocker serialises the read-modify-write of one session's aggregates. Different
// sessions never contend. The returned func releases the lock.
type SessionLocker interface {
	Lock(ctx context.Context, sessionID string) (unlock func(), err error)
}

// LocalSessionLocker is an in-process keyed mutex
type LocalSessionLocker struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func NewLocalSessionLocker() *LocalSessionLocker {
	return &LocalSessionLocker{locks: make(map[string]*refMutex)}
}

func (l *LocalSessionLocker) Lock(ctx context.Context, sessionID string) (func(), error) {
	l.mu.Lock()
	m, ok := l.locks[sessionID]
	if !ok {
		m = &refMutex{}
		l.locks[sessionID] = m
	}
	m.refs++
	l.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		l.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(l.locks, sessionID)
		}
		l.mu.Unlock()
	}, nil
}

// releaseScript deletes the key only if this holder still owns it
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisSessionLocker holds a SET NX PX lease so replicas sharing a database serialise too
type RedisSessionLocker struct {
	rdb        *redis.Client
	ttl        time.Duration
	retryEvery time.Duration
}

func NewRedisSessionLocker(rdb *redis.Client) *RedisSessionLocker {
	return &RedisSessionLocker{
		rdb:        rdb,
		ttl:        10 * time.Second,
		retryEvery: 25 * time.Millisecond,
	}
}

func lockKey(sessionID string) string {
	return "mockprep:session-lock:" + sessionID
}

func (l *RedisSessionLocker) Lock(ctx context.Context, sessionID string) (func(), error) {
	token, err := newLockToken()
	if err != nil {
		return nil, err
	}
	key := lockKey(sessionID)

	for {
		ok, err := l.rdb.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire session lock: %w", err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("failed to acquire session lock: %w", ctx.Err())
		case <-time.After(l.retryEvery):
		}
	}

	return func() {
		// the caller's context may already be cancelled; release regardless
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(releaseCtx, l.rdb, []string{key}, token).Err(); err != nil {
			slog.Error("Failed to release session lock", "error", err, "session_id", sessionID)
		}
	}, nil
}

func newLockToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate lock token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
