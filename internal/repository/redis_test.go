package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisLockRepository(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()

	client := redis.NewClient(&redis.Options{
		Addr: s.Addr(),
	})
	defer client.Close()

	repo := NewRedisLockRepository(client, time.Second)
	ctx := context.Background()

	t.Run("AcquireAndRelease", func(t *testing.T) {
		ok, err := repo.TryAcquire(ctx, "bus:1:2026-01-10")
		require.NoError(t, err)
		assert.True(t, ok)

		// Same key is held until released
		ok, err = repo.TryAcquire(ctx, "bus:1:2026-01-10")
		require.NoError(t, err)
		assert.False(t, ok)

		err = repo.Release(ctx, "bus:1:2026-01-10")
		require.NoError(t, err)

		ok, err = repo.TryAcquire(ctx, "bus:1:2026-01-10")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("IndependentKeys", func(t *testing.T) {
		ok, err := repo.TryAcquire(ctx, "hotel:7")
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = repo.TryAcquire(ctx, "hotel:8")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("TTLExpiry", func(t *testing.T) {
		ok, err := repo.TryAcquire(ctx, "tour:3")
		require.NoError(t, err)
		assert.True(t, ok)

		s.FastForward(time.Second + time.Millisecond)

		ok, err = repo.TryAcquire(ctx, "tour:3")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("StaleHolderCannotReleaseNewLock", func(t *testing.T) {
		first := NewRedisLockRepository(client, time.Second)
		ok, err := first.TryAcquire(ctx, "bus:9:2026-01-10")
		require.NoError(t, err)
		require.True(t, ok)

		// First holder sleeps past its TTL; the lock falls to a new holder.
		s.FastForward(time.Second + time.Millisecond)

		second := NewRedisLockRepository(client, time.Second)
		ok, err = second.TryAcquire(ctx, "bus:9:2026-01-10")
		require.NoError(t, err)
		require.True(t, ok)

		// The stale holder's release must not free the new holder's lock.
		require.NoError(t, first.Release(ctx, "bus:9:2026-01-10"))

		ok, err = repo.TryAcquire(ctx, "bus:9:2026-01-10")
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, second.Release(ctx, "bus:9:2026-01-10"))
		ok, err = repo.TryAcquire(ctx, "bus:9:2026-01-10")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("ReleaseUnheldKey", func(t *testing.T) {
		err := repo.Release(ctx, "never-acquired")
		assert.NoError(t, err)
	})

	t.Run("NilClient", func(t *testing.T) {
		repo := NewRedisLockRepository(nil, time.Second)
		_, err := repo.TryAcquire(ctx, "x")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "redis client is nil")

		err = repo.Release(ctx, "x")
		assert.Error(t, err)
	})

	t.Run("Ping", func(t *testing.T) {
		err := Ping(ctx, client)
		assert.NoError(t, err)
	})

	t.Run("Close", func(t *testing.T) {
		err := Close(client)
		assert.NoError(t, err)
	})
}
