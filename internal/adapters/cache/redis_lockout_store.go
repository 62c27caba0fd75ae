package cache

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/clearpay/portal/internal/ports"
)

const lockoutKeyPrefix = "portal:lockout:"

// RedisLockoutStore implements the lockout ledger in Redis hashes for
// multi-instance deployments. Stale entries are reclaimed by key TTL instead
// of the in-process sweeper.
type RedisLockoutStore struct {
	client *redis.Client
}

func NewRedisLockoutStore(client *redis.Client) *RedisLockoutStore {
	return &RedisLockoutStore{client: client}
}

func (s *RedisLockoutStore) RecordFailure(ctx context.Context, key, fingerprint string, now time.Time, policy ports.LockoutPolicy) (ports.LockoutRecord, bool, error) {
	redisKey := lockoutKeyPrefix + key

	count, err := s.client.HIncrBy(ctx, redisKey, "failed_count", 1).Result()
	if err != nil {
		return ports.LockoutRecord{}, false, err
	}

	_, err = s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSetNX(ctx, redisKey, "first_attempt", now.Unix())
		p.HSet(ctx, redisKey, "last_attempt", now.Unix())
		if fingerprint != "" {
			p.SAdd(ctx, redisKey+":fps", fingerprint)
			p.Expire(ctx, redisKey+":fps", 24*time.Hour)
		}
		p.Expire(ctx, redisKey, 24*time.Hour)
		return nil
	})
	if err != nil {
		return ports.LockoutRecord{}, false, err
	}

	if int(count) >= policy.Threshold {
		priorLockouts, _ := s.client.HGet(ctx, redisKey, "lockout_count").Int()
		duration := policy.Duration(priorLockouts)
		unlockAt := now.Add(duration).UTC()

		_, err = s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.HSet(ctx, redisKey, "failed_count", 0)
			p.HSet(ctx, redisKey, "locked_at", now.Unix())
			p.HSet(ctx, redisKey, "unlock_at", unlockAt.Unix())
			p.HIncrBy(ctx, redisKey, "lockout_count", 1)
			p.Expire(ctx, redisKey, duration+24*time.Hour)
			return nil
		})
		if err != nil {
			return ports.LockoutRecord{}, false, err
		}
		record, _, err := s.Status(ctx, key, now)
		return record, true, err
	}

	record, _, err := s.Status(ctx, key, now)
	return record, false, err
}

func (s *RedisLockoutStore) Status(ctx context.Context, key string, now time.Time) (ports.LockoutRecord, bool, error) {
	redisKey := lockoutKeyPrefix + key

	data, err := s.client.HGetAll(ctx, redisKey).Result()
	if err != nil {
		return ports.LockoutRecord{}, false, err
	}
	if len(data) == 0 {
		return ports.LockoutRecord{}, false, nil
	}

	record := ports.LockoutRecord{}
	record.FailedCount, _ = strconv.Atoi(data["failed_count"])
	record.LockoutCount, _ = strconv.Atoi(data["lockout_count"])
	record.FirstAttempt = unixField(data, "first_attempt")
	record.LastAttempt = unixField(data, "last_attempt")
	if fps, fpErr := s.client.SMembers(ctx, redisKey+":fps").Result(); fpErr == nil {
		record.Fingerprints = fps
	}

	if raw, ok := data["unlock_at"]; ok && raw != "" {
		if unix, convErr := strconv.ParseInt(raw, 10, 64); convErr == nil && unix > 0 {
			unlockAt := time.Unix(unix, 0).UTC()
			if unlockAt.After(now) {
				lockedAt := unixField(data, "locked_at")
				record.LockedAt = &lockedAt
				record.UnlockAt = &unlockAt
				return record, true, nil
			}
			// Expired lock: clear the envelope but keep the escalation history.
			_ = s.client.HDel(ctx, redisKey, "locked_at", "unlock_at").Err()
		}
	}

	return record, false, nil
}

func (s *RedisLockoutStore) RecordSuccess(ctx context.Context, key string) error {
	return s.client.HSet(ctx, lockoutKeyPrefix+key, "failed_count", 0).Err()
}

func (s *RedisLockoutStore) Unlock(ctx context.Context, key string) error {
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, lockoutKeyPrefix+key, "failed_count", 0)
		p.HDel(ctx, lockoutKeyPrefix+key, "locked_at", "unlock_at")
		return nil
	})
	return err
}

// Sweep is a no-op: Redis key TTLs reclaim stale entries.
func (s *RedisLockoutStore) Sweep(context.Context, time.Time, time.Duration) (int, error) {
	return 0, nil
}

func unixField(data map[string]string, field string) time.Time {
	raw, ok := data[field]
	if !ok || raw == "" {
		return time.Time{}
	}
	unix, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || unix <= 0 {
		return time.Time{}
	}
	return time.Unix(unix, 0).UTC()
}
