package cache

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"github.com/clearpay/portal/internal/domain"
)

const eventLogKey = "portal:security:events"

// RedisEventLog is a capped list of security events shared across instances.
// LPUSH keeps newest-first ordering so Recent is a single LRANGE.
type RedisEventLog struct {
	client   *redis.Client
	capacity int64
}

func NewRedisEventLog(client *redis.Client, capacity int) *RedisEventLog {
	if capacity <= 0 {
		capacity = 4096
	}
	return &RedisEventLog{client: client, capacity: int64(capacity)}
}

func (l *RedisEventLog) Append(ctx context.Context, event domain.SecurityEvent) error {
	raw, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = l.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.LPush(ctx, eventLogKey, raw)
		p.LTrim(ctx, eventLogKey, 0, l.capacity-1)
		return nil
	})
	return err
}

func (l *RedisEventLog) Recent(ctx context.Context, limit int) ([]domain.SecurityEvent, error) {
	if limit <= 0 {
		limit = int(l.capacity)
	}
	raws, err := l.client.LRange(ctx, eventLogKey, 0, int64(limit)-1).Result()
	if err != nil {
		return nil, err
	}
	events := make([]domain.SecurityEvent, 0, len(raws))
	for _, raw := range raws {
		var event domain.SecurityEvent
		if err := json.Unmarshal([]byte(raw), &event); err != nil {
			continue
		}
		events = append(events, event)
	}
	return events, nil
}

func (l *RedisEventLog) Stats(ctx context.Context) (domain.EventStats, error) {
	events, err := l.Recent(ctx, int(l.capacity))
	if err != nil {
		return domain.EventStats{}, err
	}
	stats := domain.EventStats{
		Total:         len(events),
		ByType:        make(map[string]int),
		ByFingerprint: make(map[string]int),
	}
	for _, event := range events {
		stats.ByType[event.Type]++
		if event.Fingerprint != "" {
			stats.ByFingerprint[event.Fingerprint]++
		}
	}
	return stats, nil
}
