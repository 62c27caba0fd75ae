package cache

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const refreshKeyPrefix = "portal:refresh:"

// swapScript is the rotation compare-and-swap. Running it server-side makes
// "verify the stored token, then replace it" one atomic step, so a reused
// refresh token loses the race deterministically.
var swapScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
	return 1
end
return 0
`)

// RedisRefreshTokenStore keeps the single currently-valid refresh token hash
// per principal with token-aligned TTL.
type RedisRefreshTokenStore struct {
	client *redis.Client
}

func NewRedisRefreshTokenStore(client *redis.Client) *RedisRefreshTokenStore {
	return &RedisRefreshTokenStore{client: client}
}

func (s *RedisRefreshTokenStore) Replace(ctx context.Context, principalID uuid.UUID, tokenHash string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		ttl = time.Minute
	}
	return s.client.Set(ctx, refreshKeyPrefix+principalID.String(), tokenHash, ttl).Err()
}

func (s *RedisRefreshTokenStore) Swap(ctx context.Context, principalID uuid.UUID, currentHash, nextHash string, expiresAt time.Time) (bool, error) {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		ttl = time.Minute
	}
	res, err := swapScript.Run(ctx, s.client,
		[]string{refreshKeyPrefix + principalID.String()},
		currentHash, nextHash, ttl.Milliseconds(),
	).Int()
	if err != nil {
		return false, err
	}
	return res == 1, nil
}

func (s *RedisRefreshTokenStore) Revoke(ctx context.Context, principalID uuid.UUID) error {
	return s.client.Del(ctx, refreshKeyPrefix+principalID.String()).Err()
}
