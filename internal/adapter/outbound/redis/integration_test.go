//go:build integration

package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startRedis(ctx context.Context, t *testing.T) redis.UniversalClient {
	t.Helper()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		terminateCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		require.NoError(t, container.Terminate(terminateCtx))
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	mappedPort, err := container.MappedPort(ctx, "6379/tcp")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: fmt.Sprintf("%s:%s", host, mappedPort.Port())})
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(ctx).Err())
	return client
}

func TestRedisAdapters(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	client := startRedis(ctx, t)

	t.Run("probe lock", func(t *testing.T) {
		lock := NewProbeLock(client)

		token, ok, err := lock.Acquire(ctx, "ws_CO_1", time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.NotEmpty(t, token)

		_, ok, err = lock.Acquire(ctx, "ws_CO_1", time.Minute)
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, lock.Release(ctx, "ws_CO_1", token))

		_, ok, err = lock.Acquire(ctx, "ws_CO_1", time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("probe lock expires", func(t *testing.T) {
		lock := NewProbeLock(client)

		_, ok, err := lock.Acquire(ctx, "ws_CO_2", 100*time.Millisecond)
		require.NoError(t, err)
		require.True(t, ok)

		assert.Eventually(t, func() bool {
			_, ok, err := lock.Acquire(ctx, "ws_CO_2", time.Minute)
			return err == nil && ok
		}, 2*time.Second, 50*time.Millisecond)
	})

	t.Run("expired holder cannot release the next holder", func(t *testing.T) {
		lock := NewProbeLock(client)

		stale, ok, err := lock.Acquire(ctx, "ws_CO_3", 100*time.Millisecond)
		require.NoError(t, err)
		require.True(t, ok)

		var current string
		require.Eventually(t, func() bool {
			token, ok, err := lock.Acquire(ctx, "ws_CO_3", time.Minute)
			if err != nil || !ok {
				return false
			}
			current = token
			return true
		}, 2*time.Second, 50*time.Millisecond)

		require.NoError(t, lock.Release(ctx, "ws_CO_3", stale))

		_, ok, err = lock.Acquire(ctx, "ws_CO_3", time.Minute)
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, lock.Release(ctx, "ws_CO_3", current))
		_, ok, err = lock.Acquire(ctx, "ws_CO_3", time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("rate limiter", func(t *testing.T) {
		limiter := NewRateLimiter(client)

		for i := 0; i < 3; i++ {
			ok, err := limiter.Allow(ctx, "initiate:254712345678", 3, time.Minute)
			require.NoError(t, err)
			assert.True(t, ok)
		}

		ok, err := limiter.Allow(ctx, "initiate:254712345678", 3, time.Minute)
		require.NoError(t, err)
		assert.False(t, ok)

		remaining, err := limiter.GetRemaining(ctx, "initiate:254712345678", 3, time.Minute)
		require.NoError(t, err)
		assert.Equal(t, 0, remaining)

		remaining, err = limiter.GetRemaining(ctx, "initiate:254700000000", 3, time.Minute)
		require.NoError(t, err)
		assert.Equal(t, 3, remaining)
	})
}
