package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// equivalenceKeyPrefix namespaces cache keys in a shared Redis instance
	equivalenceKeyPrefix = "salesdw:equivalence:"

	// equivalenceTTL bounds staleness if a mapping is ever corrected by hand
	// in the warehouse
	equivalenceTTL = 24 * time.Hour
)

// RedisEquivalenceCache caches source-code to canonical-SKU mappings in Redis
// so concurrent ETL processes share resolution work. Cache errors degrade to
// misses; the warehouse remains the source of truth.
type RedisEquivalenceCache struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisEquivalenceCache creates a new RedisEquivalenceCache
func NewRedisEquivalenceCache(client *redis.Client, logger *zap.Logger) *RedisEquivalenceCache {
	return &RedisEquivalenceCache{
		client: client,
		logger: logger,
	}
}

// Get returns the cached canonical SKU for a source code. Any Redis error is
// reported as a miss.
func (c *RedisEquivalenceCache) Get(ctx context.Context, code string) (string, bool) {
	sku, err := c.client.Get(ctx, equivalenceKeyPrefix+code).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("equivalence cache read failed", zap.Error(err))
		}
		return "", false
	}
	return sku, true
}

// Set records a source-code to canonical-SKU mapping. Failures are logged and
// swallowed.
func (c *RedisEquivalenceCache) Set(ctx context.Context, code, canonicalSKU string) {
	if err := c.client.Set(ctx, equivalenceKeyPrefix+code, canonicalSKU, equivalenceTTL).Err(); err != nil {
		c.logger.Warn("equivalence cache write failed", zap.Error(err))
	}
}

// NewRedisClient builds a Redis client and verifies connectivity
func NewRedisClient(ctx context.Context, host string, port int, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}
