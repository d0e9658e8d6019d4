package news

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"overlaybackend/internal/metrics"
)

// RedisCache shares composed headline lists between instances. Entries are
// namespaced by a generation counter so invalidation is a single INCR.
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time
}

// NewRedisCacheWithURL connects to the Redis server at url.
func NewRedisCacheWithURL(url string, ttl time.Duration, logger *slog.Logger) (*RedisCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return NewRedisCache(redis.NewClient(opts), ttl, logger), nil
}

// NewRedisCache wraps an existing client.
func NewRedisCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisCache{
		client: client,
		prefix: "overlay:stream",
		ttl:    ttl,
		logger: logger.With("cache", "redis"),
		now:    time.Now,
	}
}

// Close closes the Redis connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

func (c *RedisCache) Get(ctx context.Context, key CacheKey) (CacheEntry, bool) {
	gen, err := c.generation(ctx)
	if err != nil {
		c.logger.Warn("cache generation lookup failed", "error", err)
		metrics.RecordCacheMiss()
		return CacheEntry{}, false
	}

	raw, err := c.client.Get(ctx, c.entryKey(gen, key)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("cache get failed", "key", key.String(), "error", err)
		}
		metrics.RecordCacheMiss()
		return CacheEntry{}, false
	}

	var entry CacheEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		c.logger.Warn("cache entry decode failed", "key", key.String(), "error", err)
		metrics.RecordCacheMiss()
		return CacheEntry{}, false
	}
	if c.now().Sub(entry.CreatedAt) >= c.ttl {
		metrics.RecordCacheMiss()
		return CacheEntry{}, false
	}
	metrics.RecordCacheHit()
	entry.Headlines = cloneHeadlines(entry.Headlines)
	return entry, true
}

func (c *RedisCache) Put(ctx context.Context, key CacheKey, headlines []Headline) CacheEntry {
	entry := CacheEntry{Headlines: cloneHeadlines(headlines), CreatedAt: c.now().UTC()}
	raw, err := json.Marshal(entry)
	if err != nil {
		c.logger.Error("cache entry encode failed", "key", key.String(), "error", err)
		return entry
	}

	gen, err := c.generation(ctx)
	if err != nil {
		c.logger.Warn("cache generation lookup failed", "error", err)
		return entry
	}

	pipe := c.client.TxPipeline()
	pipe.Set(ctx, c.entryKey(gen, key), raw, c.ttl)
	pipe.Set(ctx, c.lastKey(), raw, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		c.logger.Warn("cache put failed", "key", key.String(), "error", err)
	}
	return entry
}

func (c *RedisCache) Last(ctx context.Context) (CacheEntry, bool) {
	raw, err := c.client.Get(ctx, c.lastKey()).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("cache last lookup failed", "error", err)
		}
		return CacheEntry{}, false
	}
	var entry CacheEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		c.logger.Warn("cache last decode failed", "error", err)
		return CacheEntry{}, false
	}
	entry.Headlines = cloneHeadlines(entry.Headlines)
	return entry, true
}

// ForgetHeadlines rewrites the last snapshot under WATCH so a concurrent Put
// from another instance is not overwritten.
func (c *RedisCache) ForgetHeadlines(ctx context.Context, ids []string) {
	if len(ids) == 0 {
		return
	}
	key := c.lastKey()
	err := c.client.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}
		var entry CacheEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			return err
		}
		entry.Headlines = withoutIDs(entry.Headlines, ids)
		updated, err := json.Marshal(entry)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, updated, 0)
			return nil
		})
		return err
	}, key)
	if err != nil {
		c.logger.Error("cache forget failed", "ids", len(ids), "error", err)
	}
}

func (c *RedisCache) InvalidateAll(ctx context.Context) {
	if err := c.client.Incr(ctx, c.generationKey()).Err(); err != nil {
		c.logger.Error("cache invalidation failed", "error", err)
		return
	}
	metrics.RecordInvalidation()
}

func (c *RedisCache) Clear(ctx context.Context) {
	c.InvalidateAll(ctx)
	if err := c.client.Del(ctx, c.lastKey()).Err(); err != nil {
		c.logger.Error("cache clear failed", "error", err)
	}
}

func (c *RedisCache) generation(ctx context.Context) (int64, error) {
	gen, err := c.client.Get(ctx, c.generationKey()).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

func (c *RedisCache) generationKey() string { return c.prefix + ":gen" }

func (c *RedisCache) lastKey() string { return c.prefix + ":last" }

func (c *RedisCache) entryKey(gen int64, key CacheKey) string {
	return c.prefix + ":" + strconv.FormatInt(gen, 10) + ":" + key.String()
}
