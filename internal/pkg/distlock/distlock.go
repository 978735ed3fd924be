package distlock

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/warmup-scheduler/internal/pkg/logger"
)

// DistLock is the interface for per-key locking.
// Implementations must be safe for use from a single goroutine;
// concurrent use across goroutines requires separate lock instances.
type DistLock interface {
	// Acquire tries to acquire the lock. Returns true if successful.
	Acquire(ctx context.Context) (bool, error)
	// Release releases the lock if we still own it.
	Release(ctx context.Context) error
}

// Locker hands out locks for string keys.
type Locker interface {
	NewLock(key string) DistLock
}

// NewLocker picks the backend: Redis when a client is configured (shared
// across instances), otherwise an in-process lock table.
func NewLocker(client *redis.Client, ttl time.Duration) Locker {
	if client != nil {
		return &RedisLocker{client: client, ttl: ttl}
	}
	return NewLocalLocker()
}

// RedisLocker creates RedisLocks sharing one client and TTL.
type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
}

func (r *RedisLocker) NewLock(key string) DistLock {
	return NewRedisLock(r.client, key, r.ttl)
}

// =============================================================================
// In-process lock (single-instance deployments on the file store)
// =============================================================================

// LocalLocker is a table of held keys. Locks from the same LocalLocker
// exclude each other; nothing is shared between processes.
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]struct{})}
}

func (l *LocalLocker) NewLock(key string) DistLock {
	return &LocalLock{table: l, key: key}
}

// LocalLock implements DistLock against a LocalLocker.
type LocalLock struct {
	table *LocalLocker
	key   string
	owned bool
}

func (l *LocalLock) Acquire(_ context.Context) (bool, error) {
	l.table.mu.Lock()
	defer l.table.mu.Unlock()
	if _, busy := l.table.held[l.key]; busy {
		return false, nil
	}
	l.table.held[l.key] = struct{}{}
	l.owned = true
	return true, nil
}

func (l *LocalLock) Release(_ context.Context) error {
	if !l.owned {
		return nil
	}
	l.table.mu.Lock()
	delete(l.table.held, l.key)
	l.table.mu.Unlock()
	l.owned = false
	return nil
}

// WithLock runs fn while holding the lock for key. Acquisition is retried
// until wait elapses; if it still fails fn runs anyway and the collision is
// logged, so callers keep last-writer-wins semantics instead of stalling.
func WithLock(ctx context.Context, locker Locker, key string, wait time.Duration, fn func() error) error {
	if locker == nil {
		return fn()
	}
	lock := locker.NewLock(key)
	acquired := acquire(ctx, lock, wait)
	if !acquired {
		logger.Warn("[distlock] proceeding without lock", "key", key)
		return fn()
	}
	defer func() {
		// Release on a fresh context so a cancelled caller does not leave the key held.
		relCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := lock.Release(relCtx); err != nil {
			logger.Warn("[distlock] release failed", "key", key, "error", err)
		}
	}()
	return fn()
}

func acquire(ctx context.Context, lock DistLock, wait time.Duration) bool {
	deadline := time.Now().Add(wait)
	backoff := 5 * time.Millisecond
	for {
		ok, err := lock.Acquire(ctx)
		if err != nil {
			logger.Warn("[distlock] acquire failed", "error", err)
			return false
		}
		if ok {
			return true
		}
		if time.Now().Add(backoff).After(deadline) {
			return false
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(backoff):
		}
		if backoff < 50*time.Millisecond {
			backoff *= 2
		}
	}
}
