// Package cache is a Redis-backed read-through cache for hot queries.
// Entries are grouped into query kinds, each with its own TTL and its own
// version counter. Eviction bumps the kind's version, which orphans every
// live entry of that kind at once: invalidation is deliberately coarse,
// trading recomputation for the impossibility of a missed per-key eviction.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Kind identifies a cached query family.
type Kind string

const (
	KindUserByEmail     Kind = "user_by_email"
	KindAdminDocs       Kind = "admin_docs"
	KindUserDocs        Kind = "user_docs"
	KindIPBlock         Kind = "ip_block"
	KindPendingPayments Kind = "pending_payments"
)

type Cache struct {
	rdb  *redis.Client
	ttls map[Kind]time.Duration
}

// Options carries the Redis connection settings and per-kind TTLs.
type Options struct {
	Addr     string
	Password string
	DB       int
	TTLs     map[Kind]time.Duration
}

// New connects to Redis and verifies the connection with a ping.
func New(ctx context.Context, opts Options) (*Cache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis at %s: %w", opts.Addr, err)
	}
	return &Cache{rdb: rdb, ttls: opts.TTLs}, nil
}

func (c *Cache) ttl(kind Kind) time.Duration {
	if d, ok := c.ttls[kind]; ok {
		return d
	}
	return time.Minute
}

func (c *Cache) versionKey(kind Kind) string {
	return fmt.Sprintf("ver:%s", kind)
}

func (c *Cache) entryKey(ctx context.Context, kind Kind, arg string) (string, error) {
	ver, err := c.rdb.Get(ctx, c.versionKey(kind)).Int64()
	if err != nil && err != redis.Nil {
		return "", err
	}
	return fmt.Sprintf("%s:v%d:%s", kind, ver, arg), nil
}

// Get loads a cached value into dest. found is false on miss.
func (c *Cache) Get(ctx context.Context, kind Kind, arg string, dest any) (bool, error) {
	key, err := c.entryKey(ctx, kind, arg)
	if err != nil {
		return false, fmt.Errorf("resolve cache key for %s: %w", kind, err)
	}
	val, err := c.rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache get %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(val), dest); err != nil {
		return false, fmt.Errorf("cache decode %s: %w", key, err)
	}
	return true, nil
}

// Set stores a value under the kind's current version with the kind's TTL.
func (c *Cache) Set(ctx context.Context, kind Kind, arg string, value any) error {
	key, err := c.entryKey(ctx, kind, arg)
	if err != nil {
		return fmt.Errorf("resolve cache key for %s: %w", kind, err)
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache encode %s: %w", key, err)
	}
	if err := c.rdb.Set(ctx, key, data, c.ttl(kind)).Err(); err != nil {
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	return nil
}

// Evict invalidates every live entry of the kind by bumping its version.
// Orphaned entries expire via their TTL.
func (c *Cache) Evict(ctx context.Context, kind Kind) error {
	if err := c.rdb.Incr(ctx, c.versionKey(kind)).Err(); err != nil {
		return fmt.Errorf("evict cache kind %s: %w", kind, err)
	}
	return nil
}

// GetOrCompute is the read-through entry point: a hit returns the cached
// value, a miss computes, stores, and returns it. Cache failures degrade to
// computing fresh; they never fail the request.
func GetOrCompute[T any](ctx context.Context, c *Cache, kind Kind, arg string, compute func(context.Context) (T, error)) (T, error) {
	var cached T
	if found, err := c.Get(ctx, kind, arg, &cached); err == nil && found {
		return cached, nil
	}
	fresh, err := compute(ctx)
	if err != nil {
		return fresh, err
	}
	_ = c.Set(ctx, kind, arg, fresh)
	return fresh, nil
}
