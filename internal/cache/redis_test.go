package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roomchat/internal/common"
	"roomchat/internal/config"
)

func setupCache(t *testing.T) (*RedisGroupCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	cfg := &config.Config{Redis: config.RedisConfig{Addr: mr.Addr()}}

	c, err := NewRedisGroupCache(context.Background(), NewRedisClient(cfg))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestRedisGroupCache_SetGetDelete(t *testing.T) {
	c, mr := setupCache(t)
	ctx := context.Background()

	_, err := c.Get(ctx, "room-1")
	assert.ErrorIs(t, err, common.ErrCacheMiss)

	require.NoError(t, c.Set(ctx, "room-1", "group-1", time.Hour))
	got, err := c.Get(ctx, "room-1")
	require.NoError(t, err)
	assert.Equal(t, "group-1", got)
	assert.True(t, mr.Exists("room:group:room-1"))

	require.NoError(t, c.Delete(ctx, "room-1"))
	_, err = c.Get(ctx, "room-1")
	assert.ErrorIs(t, err, common.ErrCacheMiss)

	// deleting a missing key is fine
	assert.NoError(t, c.Delete(ctx, "room-1"))
}

func TestRedisGroupCache_Expiry(t *testing.T) {
	c, mr := setupCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "room-1", "group-1", time.Minute))
	mr.FastForward(2 * time.Minute)

	_, err := c.Get(ctx, "room-1")
	assert.ErrorIs(t, err, common.ErrCacheMiss)
}

func TestRedisGroupCache_NoTTL(t *testing.T) {
	c, mr := setupCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "room-1", "group-1", 0))
	assert.Equal(t, time.Duration(0), mr.TTL("room:group:room-1"))
}

func TestRedisGroupCache_ServerDown(t *testing.T) {
	c, mr := setupCache(t)
	mr.Close()

	_, err := c.Get(context.Background(), "room-1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, common.ErrCacheMiss)
}

func TestNewRedisGroupCache_Unreachable(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
	defer client.Close()

	_, err := NewRedisGroupCache(context.Background(), client)
	assert.Error(t, err)
}
