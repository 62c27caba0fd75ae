package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/clearpay/portal/internal/ports"
)

const rateKeyPrefix = "portal:rate:"

// RedisRateLimitStore counts requests per fingerprint with INCR + window TTL.
type RedisRateLimitStore struct {
	client *redis.Client
}

func NewRedisRateLimitStore(client *redis.Client) *RedisRateLimitStore {
	return &RedisRateLimitStore{client: client}
}

func (s *RedisRateLimitStore) Allow(ctx context.Context, key string, limit int, window time.Duration, _ time.Time) (ports.RateDecision, error) {
	redisKey := rateKeyPrefix + key

	count, err := s.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return ports.RateDecision{}, err
	}
	if count == 1 {
		if err := s.client.Expire(ctx, redisKey, window).Err(); err != nil {
			return ports.RateDecision{}, err
		}
	}

	if int(count) > limit {
		retryAfter, ttlErr := s.client.TTL(ctx, redisKey).Result()
		if ttlErr != nil || retryAfter < 0 {
			retryAfter = window
		}
		return ports.RateDecision{Allowed: false, Remaining: 0, RetryAfter: retryAfter}, nil
	}

	return ports.RateDecision{Allowed: true, Remaining: limit - int(count)}, nil
}

// Sweep is a no-op: bucket keys expire with their window.
func (s *RedisRateLimitStore) Sweep(context.Context, time.Time) (int, error) {
	return 0, nil
}
