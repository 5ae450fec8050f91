package repository

import (
	"context"
	"sync/atomic"
	"time"

	"voyago/internal/domain"

	"github.com/rs/zerolog"
)

type FailoverLockRepository struct {
	primary   domain.LockRepository
	fallback  domain.LockRepository
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck time.Time
}

func NewFailoverLockRepository(primary, fallback domain.LockRepository, logger *zerolog.Logger) *FailoverLockRepository {
	return &FailoverLockRepository{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (r *FailoverLockRepository) TryAcquire(ctx context.Context, key string) (bool, error) {
	if !r.isDown.Load() {
		ok, err := r.primary.TryAcquire(ctx, key)
		if err == nil {
			return ok, nil
		}
		r.logger.Error().Err(err).Msg("Primary lock repository failed, falling back to memory")
		r.isDown.Store(true)
		r.lastCheck = time.Now()
	}

	// Try to recover after 1 minute
	if r.isDown.Load() && time.Since(r.lastCheck) > time.Minute {
		ok, err := r.primary.TryAcquire(ctx, key)
		if err == nil {
			r.isDown.Store(false)
			return ok, nil
		}
		r.lastCheck = time.Now()
	}

	return r.fallback.TryAcquire(ctx, key)
}

func (r *FailoverLockRepository) Release(ctx context.Context, key string) error {
	if !r.isDown.Load() {
		err := r.primary.Release(ctx, key)
		if err == nil {
			return nil
		}
		r.logger.Error().Err(err).Msg("Primary lock repository failed, falling back to memory")
		r.isDown.Store(true)
		r.lastCheck = time.Now()
	}

	return r.fallback.Release(ctx, key)
}
