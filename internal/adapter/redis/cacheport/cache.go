// Package cacheport keeps query results in Redis as JSON
package cacheport

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"gitlab.com/baseline-2025.net/internal/core/ports/primary"
	"gitlab.com/baseline-2025.net/internal/core/ports/secondary"
)

var _ secondary.Cache = (*Cache)(nil)

const keyPrefix = "cache:"

type Cache struct {
	redisClient *redis.Client
	logger      primary.Logger
}

func NewCache(redisClient *redis.Client, logger primary.Logger) *Cache {
	return &Cache{
		redisClient: redisClient,
		logger:      logger,
	}
}

func (c *Cache) Get(ctx context.Context, key string, dst interface{}) (bool, error) {
	data, err := c.redisClient.Get(ctx, keyPrefix+key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		c.logger.Error("Failed to read cache", "key", key, "error", err)
		return false, fmt.Errorf("failed to read cache: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, fmt.Errorf("failed to unmarshal cached %s: %w", key, err)
	}
	return true, nil
}

// Set stores value; a zero ttl keeps it until invalidated
func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}
	if err := c.redisClient.Set(ctx, keyPrefix+key, data, ttl).Err(); err != nil {
		c.logger.Error("Failed to write cache", "key", key, "error", err)
		return fmt.Errorf("failed to write cache: %w", err)
	}
	return nil
}

// InvalidatePrefix deletes every key under prefix, scanning in pages
func (c *Cache) InvalidatePrefix(ctx context.Context, prefix string) error {
	var cursor uint64
	for {
		keys, next, err := c.redisClient.Scan(ctx, cursor, keyPrefix+prefix+"*", 200).Result()
		if err != nil {
			c.logger.Error("Failed to scan cache", "prefix", prefix, "error", err)
			return fmt.Errorf("failed to scan cache: %w", err)
		}
		if len(keys) > 0 {
			if err := c.redisClient.Del(ctx, keys...).Err(); err != nil {
				c.logger.Error("Failed to invalidate cache", "prefix", prefix, "error", err)
				return fmt.Errorf("failed to invalidate cache: %w", err)
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}
