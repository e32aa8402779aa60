package storage

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	"taskboard-api/domain"
)

const snapshotCacheKey = "board:snapshot"

// Cache fronts the Store with a Redis-backed copy of the rendered snapshot
// JSON served by GET /api/data. A nil client disables caching; every commit
// evicts so viewers never read a stale board.
type Cache struct {
	base  *Store
	redis *redis.Client
	ttl   time.Duration
}

// NewCache creates a caching wrapper around the given store.
func NewCache(base *Store, client *redis.Client, ttl time.Duration) *Cache {
	if base == nil {
		panic("storage.NewCache: base store is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	return &Cache{base: base, redis: client, ttl: ttl}
}

// Snapshot returns a deep copy of the current board state.
func (c *Cache) Snapshot() *domain.Snapshot {
	return c.base.Snapshot()
}

// SnapshotJSON returns the full board snapshot encoded as JSON, serving from
// Redis when a fresh copy is cached.
func (c *Cache) SnapshotJSON(ctx context.Context) ([]byte, error) {
	if data, ok := c.loadFromCache(ctx); ok {
		return data, nil
	}
	data, err := sonic.ConfigStd.Marshal(c.base.Snapshot())
	if err != nil {
		return nil, err
	}
	c.store(ctx, data)
	return data, nil
}

// Commit delegates to the underlying store and evicts the cached snapshot.
func (c *Cache) Commit(mutate func(*domain.Snapshot) (*domain.Task, error)) (*domain.Task, error) {
	task, err := c.base.Commit(mutate)
	if err != nil {
		return nil, err
	}
	c.evict(context.Background())
	return task, nil
}

func (c *Cache) loadFromCache(ctx context.Context) ([]byte, bool) {
	if c.redis == nil {
		return nil, false
	}
	data, err := c.redis.Get(ctx, snapshotCacheKey).Bytes()
	if err != nil {
		if err != redis.Nil {
			// On redis errors fall back to the store without failing.
			_ = c.redis.Del(ctx, snapshotCacheKey).Err()
		}
		return nil, false
	}
	return data, true
}

func (c *Cache) store(ctx context.Context, data []byte) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	_ = c.redis.Set(ctx, snapshotCacheKey, data, c.ttl).Err()
}

func (c *Cache) evict(ctx context.Context) {
	if c.redis == nil {
		return
	}
	_, _ = c.redis.Del(ctx, snapshotCacheKey).Result()
}
