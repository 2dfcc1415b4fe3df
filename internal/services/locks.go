package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// SessionLocker serializes the read-modify-write-persist critical section per
// session. The lock is never held across external I/O such as the provider
// fetch. Acquire blocks for a bounded time and returns a ConflictError when
// the budget is exhausted, so no caller waits indefinitely.
type SessionLocker interface {
	Acquire(ctx context.Context, sessionID uuid.UUID) (release func(), err error)
}

const (
	lockTTL          = 10 * time.Second
	lockPollInterval = 50 * time.Millisecond
	lockMaxAttempts  = 40
)

// RedisSessionLocker uses SetNX with a TTL so a crashed holder cannot wedge a
// session forever.
type RedisSessionLocker struct {
	client *redis.Client
}

func NewRedisSessionLocker(client *redis.Client) *RedisSessionLocker {
	return &RedisSessionLocker{client: client}
}

func (l *RedisSessionLocker) Acquire(ctx context.Context, sessionID uuid.UUID) (func(), error) {
	lockKey := fmt.Sprintf("session_lock:%s", sessionID.String())

	for attempt := 0; attempt < lockMaxAttempts; attempt++ {
		locked, err := l.client.SetNX(ctx, lockKey, "1", lockTTL).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire session lock: %w", err)
		}
		if locked {
			return func() {
				l.client.Del(context.Background(), lockKey)
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockPollInterval):
		}
	}

	return nil, &ConflictError{Message: "Session is busy, try again"}
}

// MemorySessionLocker serializes sessions within a single process. Used in
// tests and single-node deployments without Redis.
type MemorySessionLocker struct {
	mu    sync.Mutex
	slots map[uuid.UUID]chan struct{}
}

func NewMemorySessionLocker() *MemorySessionLocker {
	return &MemorySessionLocker{slots: make(map[uuid.UUID]chan struct{})}
}

func (l *MemorySessionLocker) slot(sessionID uuid.UUID) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	slot, ok := l.slots[sessionID]
	if !ok {
		slot = make(chan struct{}, 1)
		l.slots[sessionID] = slot
	}
	return slot
}

func (l *MemorySessionLocker) Acquire(ctx context.Context, sessionID uuid.UUID) (func(), error) {
	slot := l.slot(sessionID)

	budget := time.NewTimer(time.Duration(lockMaxAttempts) * lockPollInterval)
	defer budget.Stop()

	select {
	case slot <- struct{}{}:
		return func() { <-slot }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-budget.C:
		return nil, &ConflictError{Message: "Session is busy, try again"}
	}
}
