package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisResultPrefix = "icpay:transfer:"
	redisLockPrefix   = "icpay:lock:"
	redisLockTTL      = 30 * time.Second
	redisPollInterval = 50 * time.Millisecond
)

// RedisStore is a guard store shared across process instances. Cached
// results live under a TTL'd key; the in-flight claim is a SET NX lock
// so only one instance submits a given transfer at a time.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultGuardTTL
	}
	return &RedisStore{client: client, ttl: ttl}
}

var _ Store = (*RedisStore)(nil)

func (s *RedisStore) Begin(ctx context.Context, key string) (Status, *Result, error) {
	cached, err := s.lookup(ctx, key)
	if err != nil {
		return StatusNotFound, nil, err
	}
	if cached != nil {
		return StatusCached, cached, nil
	}

	acquired, err := s.client.SetNX(ctx, redisLockPrefix+key, "processing", redisLockTTL).Result()
	if err != nil {
		return StatusNotFound, nil, fmt.Errorf("acquire transfer lock: %w", err)
	}
	if !acquired {
		return StatusInFlight, nil, nil
	}
	return StatusNotFound, nil, nil
}

func (s *RedisStore) Wait(ctx context.Context, key string) (*Result, error) {
	ticker := time.NewTicker(redisPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			cached, err := s.lookup(ctx, key)
			if err != nil {
				return nil, err
			}
			if cached != nil {
				return cached, nil
			}

			held, err := s.client.Exists(ctx, redisLockPrefix+key).Result()
			if err != nil {
				return nil, fmt.Errorf("check transfer lock: %w", err)
			}
			if held == 0 {
				// Claimant failed without caching a result.
				return nil, nil
			}
		}
	}
}

func (s *RedisStore) Complete(ctx context.Context, key string, result *Result) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode transfer result: %w", err)
	}
	if err := s.client.Set(ctx, redisResultPrefix+key, payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("cache transfer result: %w", err)
	}
	return s.client.Del(ctx, redisLockPrefix+key).Err()
}

func (s *RedisStore) Fail(ctx context.Context, key string) error {
	return s.client.Del(ctx, redisLockPrefix+key).Err()
}

func (s *RedisStore) lookup(ctx context.Context, key string) (*Result, error) {
	payload, err := s.client.Get(ctx, redisResultPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cached transfer result: %w", err)
	}

	var result Result
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, fmt.Errorf("decode cached transfer result: %w", err)
	}
	return &result, nil
}
