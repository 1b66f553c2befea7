package redis

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/wappstudy/wappstudy-backend/internal/pkg/envutil"
	"github.com/wappstudy/wappstudy-backend/internal/pkg/logger"
)

// ConversationLocker serializes message processing per enrollment. Acquire
// blocks until the lock is held or the context expires; the returned release
// function is safe to call once.
type ConversationLocker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
	Close() error
}

type redisLocker struct {
	log      *logger.Logger
	rdb      *goredis.Client
	prefix   string
	ttl      time.Duration
	pollWait time.Duration
}

// Lua compare-and-delete so a held-over release cannot drop someone else's lock.
const releaseScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`

func NewConversationLocker(log *logger.Logger) (ConversationLocker, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}

	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}

	ttlSec := envutil.Int("CONVERSATION_LOCK_TTL_SECONDS", 60)

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &redisLocker{
		log:      log.With("client", "ConversationLocker"),
		rdb:      rdb,
		prefix:   "conversation_lock:",
		ttl:      time.Duration(ttlSec) * time.Second,
		pollWait: 100 * time.Millisecond,
	}, nil
}

func (l *redisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	if l == nil || l.rdb == nil {
		return nil, fmt.Errorf("conversation locker not initialized")
	}
	if strings.TrimSpace(key) == "" {
		return nil, fmt.Errorf("lock key required")
	}

	lockKey := l.prefix + key
	token := uuid.New().String()

	for {
		ok, err := l.rdb.SetNX(ctx, lockKey, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("redis setnx: %w", err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.pollWait):
		}
	}

	var once sync.Once
	release := func() {
		once.Do(func() {
			rctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := l.rdb.Eval(rctx, releaseScript, []string{lockKey}, token).Err(); err != nil {
				l.log.Warn("failed to release conversation lock", "key", key, "error", err)
			}
		})
	}
	return release, nil
}

func (l *redisLocker) Close() error {
	if l == nil || l.rdb == nil {
		return nil
	}
	return l.rdb.Close()
}

// localLocker is the single-process fallback when REDIS_ADDR is not set.
type localLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewLocalLocker() ConversationLocker {
	return &localLocker{locks: map[string]*sync.Mutex{}}
}

func (l *localLocker) Acquire(ctx context.Context, key string) (func(), error) {
	if strings.TrimSpace(key) == "" {
		return nil, fmt.Errorf("lock key required")
	}

	l.mu.Lock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	l.mu.Unlock()

	acquired := make(chan struct{})
	go func() {
		m.Lock()
		close(acquired)
	}()

	select {
	case <-acquired:
	case <-ctx.Done():
		// The goroutine will eventually hold the mutex; hand it straight back.
		go func() {
			<-acquired
			m.Unlock()
		}()
		return nil, ctx.Err()
	}

	var once sync.Once
	release := func() {
		once.Do(m.Unlock)
	}
	return release, nil
}

func (l *localLocker) Close() error { return nil }
