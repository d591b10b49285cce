package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis, func()) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	return client, mr, func() {
		client.Close()
		mr.Close()
	}
}

func TestRedisLimiter_DeniesAfterMax(t *testing.T) {
	client, _, cleanup := setupTestRedis(t)
	defer cleanup()

	limiter, err := NewRedisLimiter(client, Config{MaxRequests: 2, Window: time.Minute}, "test:")
	require.NoError(t, err)

	ctx := context.Background()
	now := time.Now()
	for i := 0; i < 2; i++ {
		d, err := limiter.Check(ctx, "203.0.113.9", now)
		require.NoError(t, err)
		assert.True(t, d.Allowed)
	}

	d, err := limiter.Check(ctx, "203.0.113.9", now)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)
	assert.InDelta(t, 60, d.RetryAfterSeconds(), 1)
}

func TestRedisLimiter_WindowExpires(t *testing.T) {
	client, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	limiter, err := NewRedisLimiter(client, Config{MaxRequests: 1, Window: time.Minute}, "test:")
	require.NoError(t, err)

	ctx := context.Background()
	d, err := limiter.Check(ctx, "id", time.Now())
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.True(t, mr.Exists("test:id"))

	d, _ = limiter.Check(ctx, "id", time.Now())
	assert.False(t, d.Allowed)

	mr.FastForward(61 * time.Second)

	d, err = limiter.Check(ctx, "id", time.Now())
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestRedisLimiter_BackendError(t *testing.T) {
	client, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	limiter, err := NewRedisLimiter(client, DefaultConfig(), "")
	require.NoError(t, err)

	mr.Close()
	_, err = limiter.Check(context.Background(), "id", time.Now())
	assert.Error(t, err)
}
