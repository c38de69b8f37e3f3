// Package cache holds the Redis projection of room -> group bindings.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"roomchat/internal/common"
	"roomchat/internal/config"
)

const groupKeyPrefix = "room:group:"

type RedisGroupCache struct {
	Client *redis.Client
}

func NewRedisClient(cfg *config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

func NewRedisGroupCache(ctx context.Context, client *redis.Client) (*RedisGroupCache, error) {
	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return &RedisGroupCache{Client: client}, nil
}

func groupKey(roomID string) string {
	return groupKeyPrefix + roomID
}

func (c *RedisGroupCache) Get(ctx context.Context, roomID string) (string, error) {
	id, err := c.Client.Get(ctx, groupKey(roomID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", common.ErrCacheMiss
	}
	if err != nil {
		return "", fmt.Errorf("redis get %s: %w", roomID, err)
	}
	return id, nil
}

// Set stores the binding; a non-positive ttl keeps it until deleted.
func (c *RedisGroupCache) Set(ctx context.Context, roomID, groupID string, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := c.Client.Set(ctx, groupKey(roomID), groupID, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", roomID, err)
	}
	return nil
}

func (c *RedisGroupCache) Delete(ctx context.Context, roomID string) error {
	if err := c.Client.Del(ctx, groupKey(roomID)).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", roomID, err)
	}
	return nil
}

func (c *RedisGroupCache) Close() error {
	return c.Client.Close()
}
