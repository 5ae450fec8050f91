package repository

import (
	"context"
	"sync"
	"time"
)

// MemoryLockRepository is the in-process fallback used when Redis is
// unavailable. Entries expire after ttl, same as the Redis variant.
type MemoryLockRepository struct {
	locks sync.Map
	ttl   time.Duration
}

type lockEntry struct {
	expiresAt time.Time
}

func NewMemoryLockRepository(ttl time.Duration) *MemoryLockRepository {
	return &MemoryLockRepository{
		ttl: ttl,
	}
}

func (r *MemoryLockRepository) TryAcquire(ctx context.Context, key string) (bool, error) {
	now := time.Now()
	entry := &lockEntry{expiresAt: now.Add(r.ttl)}

	for {
		actual, loaded := r.locks.LoadOrStore(key, entry)
		if !loaded {
			return true, nil
		}
		existing := actual.(*lockEntry)
		if now.Before(existing.expiresAt) {
			return false, nil
		}
		// Expired entry: only the goroutine that deletes it may retry,
		// otherwise two callers could both win the same key.
		if r.locks.CompareAndDelete(key, actual) {
			continue
		}
		return false, nil
	}
}

func (r *MemoryLockRepository) Release(ctx context.Context, key string) error {
	r.locks.Delete(key)
	return nil
}
