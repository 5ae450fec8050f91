package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"voyago/internal/config"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// unlockScript deletes the lock only while it still carries this holder's
// token. A holder that slept past its TTL finds someone else's token and
// leaves the lock alone.
var unlockScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`)

// RedisLockRepository holds per-key write locks via SET NX with a TTL.
// The TTL bounds how long an abandoned lock can block other writers.
// Each acquire stores a fresh token so Release frees only its own lock.
type RedisLockRepository struct {
	client *redis.Client
	ttl    time.Duration
	tokens sync.Map
}

// NewRedisClient создает новый клиент Redis на основе конфигурации
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	options := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	}

	client := redis.NewClient(options)

	return client
}

func NewRedisLockRepository(client *redis.Client, ttl time.Duration) *RedisLockRepository {
	return &RedisLockRepository{
		client: client,
		ttl:    ttl,
	}
}

func (r *RedisLockRepository) TryAcquire(ctx context.Context, key string) (bool, error) {
	if r.client == nil {
		return false, fmt.Errorf("redis client is nil")
	}
	token := uuid.NewString()
	ok, err := r.client.SetNX(ctx, lockKey(key), token, r.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock in redis: %w", err)
	}
	if ok {
		r.tokens.Store(key, token)
	}
	return ok, nil
}

func (r *RedisLockRepository) Release(ctx context.Context, key string) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	token, held := r.tokens.LoadAndDelete(key)
	if !held {
		return nil
	}
	if err := unlockScript.Run(ctx, r.client, []string{lockKey(key)}, token).Err(); err != nil {
		return fmt.Errorf("failed to release lock in redis: %w", err)
	}
	return nil
}

func lockKey(key string) string {
	return "inventory_lock:" + key
}

// Ping проверяет соединение с Redis
func Ping(ctx context.Context, client *redis.Client) error {
	_, err := client.Ping(ctx).Result()
	if err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

// Close закрывает соединение с Redis
func Close(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}
