package middleware

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Revocations remembers tokens ended by logout until they would have
// expired anyway.
type Revocations interface {
	Revoke(ctx context.Context, tokenID string, until time.Time) error
	Revoked(ctx context.Context, tokenID string) (bool, error)
}

// NewRevocations keeps the list in Redis so every instance sees a logout,
// or in process memory when rdb is nil.
func NewRevocations(rdb *redis.Client, prefix string) Revocations {
	if rdb == nil {
		return &memoryRevocations{until: map[string]time.Time{}}
	}
	return &redisRevocations{rdb: rdb, prefix: prefix}
}

type redisRevocations struct {
	rdb    *redis.Client
	prefix string
}

func (r *redisRevocations) key(id string) string { return r.prefix + ":" + id }

func (r *redisRevocations) Revoke(ctx context.Context, tokenID string, until time.Time) error {
	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}
	return r.rdb.SetEx(ctx, r.key(tokenID), 1, ttl).Err()
}

func (r *redisRevocations) Revoked(ctx context.Context, tokenID string) (bool, error) {
	err := r.rdb.Get(ctx, r.key(tokenID)).Err()
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, redis.Nil):
		return false, nil
	}
	return false, err
}

type memoryRevocations struct {
	mu    sync.Mutex
	until map[string]time.Time
}

func (m *memoryRevocations) Revoke(_ context.Context, tokenID string, until time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	for id, t := range m.until {
		if t.Before(now) {
			delete(m.until, id)
		}
	}
	if until.After(now) {
		m.until[tokenID] = until
	}
	return nil
}

func (m *memoryRevocations) Revoked(_ context.Context, tokenID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.until[tokenID]
	return ok && time.Now().Before(t), nil
}
