// Package cache stores generated answers in Redis so repeated questions skip
// retrieval and generation.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hyperjump/healthrag/internal/models"
)

const keyPrefix = "healthrag:answer:"

// RedisCache is an answer cache backed by Redis.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache connects to the Redis server at url (redis://host:port/db)
// and checks it is reachable.
func NewRedisCache(ctx context.Context, url string, ttl time.Duration) (*RedisCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return NewRedisCacheWithClient(client, ttl), nil
}

// NewRedisCacheWithClient wraps an existing client.
func NewRedisCacheWithClient(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

// Key derives the cache key of a normalized question within namespace.
// Using the index build ID as namespace invalidates answers on rebuild.
func Key(namespace, question string) string {
	sum := sha256.Sum256([]byte(namespace + "\x00" + question))
	return keyPrefix + hex.EncodeToString(sum[:])
}

// Get returns the cached answer for key. A miss returns (nil, false, nil).
func (c *RedisCache) Get(ctx context.Context, key string) (*models.QueryResult, bool, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var res models.QueryResult
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, false, fmt.Errorf("decode cached answer: %w", err)
	}
	return &res, true, nil
}

// Set stores res under key for the configured TTL.
func (c *RedisCache) Set(ctx context.Context, key string, res *models.QueryResult) error {
	data, err := json.Marshal(res)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, data, c.ttl).Err()
}

// Close closes the Redis client.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
