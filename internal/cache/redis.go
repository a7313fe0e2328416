// Package cache shortcuts the poll hot path. Every display re-requests
// its channel every 3 seconds; with a wall of displays that is the same
// LEFT JOIN over and over. Serialized poll responses are parked in Redis
// under a TTL shorter than the poll interval and dropped eagerly on any
// mutation, so an operator edit is still visible within one tick.
//
// The cache is strictly optional: a nil client degrades every call to a
// no-op / miss and the registry serves reads directly.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// NewRedis connects a client from a redis:// URL. Empty URL means the
// deployment runs without a cache; callers get nil, nil.
func NewRedis(ctx context.Context, redisURL string, logger *zap.Logger) (*redis.Client, error) {
	if redisURL == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	logger.Info("redis connection established", zap.String("addr", opts.Addr))
	return client, nil
}

// ChannelCache stores serialized channel poll responses keyed by name.
type ChannelCache struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewChannelCache accepts a nil client; every method then behaves as a
// miss or no-op.
func NewChannelCache(rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *ChannelCache {
	return &ChannelCache{rdb: rdb, ttl: ttl, logger: logger}
}

func key(name string) string { return "channel:" + name }

// Get returns the cached payload for a channel, or ok=false on miss.
// Redis being down is treated as a miss, never as a request failure;
// the poll path must keep working without the cache.
func (c *ChannelCache) Get(ctx context.Context, name string) ([]byte, bool) {
	if c == nil || c.rdb == nil {
		return nil, false
	}
	payload, err := c.rdb.Get(ctx, key(name)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Debug("channel cache get failed", zap.String("channel", name), zap.Error(err))
		}
		return nil, false
	}
	return payload, true
}

// Set parks a payload under the configured TTL. Best-effort.
func (c *ChannelCache) Set(ctx context.Context, name string, payload []byte) {
	if c == nil || c.rdb == nil {
		return
	}
	if err := c.rdb.Set(ctx, key(name), payload, c.ttl).Err(); err != nil {
		c.logger.Debug("channel cache set failed", zap.String("channel", name), zap.Error(err))
	}
}

// Invalidate drops the cached payloads for the named channels. Called on
// every mutating action so displays never see a stale binding longer
// than one poll tick.
func (c *ChannelCache) Invalidate(ctx context.Context, names ...string) {
	if c == nil || c.rdb == nil || len(names) == 0 {
		return
	}
	keys := make([]string, len(names))
	for i, n := range names {
		keys[i] = key(n)
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		c.logger.Debug("channel cache invalidate failed", zap.Strings("channels", names), zap.Error(err))
	}
}
