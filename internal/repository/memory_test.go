package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLockRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("AcquireAndRelease", func(t *testing.T) {
		repo := NewMemoryLockRepository(time.Minute)

		ok, err := repo.TryAcquire(ctx, "bus:1:2026-01-10")
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = repo.TryAcquire(ctx, "bus:1:2026-01-10")
		require.NoError(t, err)
		assert.False(t, ok)

		err = repo.Release(ctx, "bus:1:2026-01-10")
		require.NoError(t, err)

		ok, err = repo.TryAcquire(ctx, "bus:1:2026-01-10")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("ExpiredEntryCanBeReacquired", func(t *testing.T) {
		repo := NewMemoryLockRepository(time.Millisecond)

		ok, err := repo.TryAcquire(ctx, "hotel:7")
		require.NoError(t, err)
		assert.True(t, ok)

		time.Sleep(5 * time.Millisecond)

		ok, err = repo.TryAcquire(ctx, "hotel:7")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("ConcurrentAcquireSingleWinner", func(t *testing.T) {
		repo := NewMemoryLockRepository(time.Minute)

		const goroutines = 50
		var wg sync.WaitGroup
		results := make(chan bool, goroutines)

		for i := 0; i < goroutines; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				ok, err := repo.TryAcquire(ctx, "tour:3")
				if err == nil && ok {
					results <- true
				}
			}()
		}

		wg.Wait()
		close(results)

		winners := 0
		for range results {
			winners++
		}
		assert.Equal(t, 1, winners, "exactly one goroutine should hold the lock")
	})
}
