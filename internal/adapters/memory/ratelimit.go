package memory

import (
	"context"
	"sync"
	"time"

	"github.com/clearpay/portal/internal/ports"
)

// RateLimitStore buckets request counts per fingerprint over a rolling window.
type RateLimitStore struct {
	mu      sync.Mutex
	buckets map[string]*rateBucket
}

type rateBucket struct {
	count       int
	windowStart time.Time
}

func NewRateLimitStore() *RateLimitStore {
	return &RateLimitStore{buckets: make(map[string]*rateBucket)}
}

func (s *RateLimitStore) Allow(_ context.Context, key string, limit int, window time.Duration, now time.Time) (ports.RateDecision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bucket, ok := s.buckets[key]
	if !ok || now.Sub(bucket.windowStart) >= window {
		bucket = &rateBucket{windowStart: now}
		s.buckets[key] = bucket
	}

	if bucket.count >= limit {
		return ports.RateDecision{
			Allowed:    false,
			Remaining:  0,
			RetryAfter: bucket.windowStart.Add(window).Sub(now),
		}, nil
	}

	bucket.count++
	return ports.RateDecision{
		Allowed:   true,
		Remaining: limit - bucket.count,
	}, nil
}

func (s *RateLimitStore) Sweep(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, bucket := range s.buckets {
		// Buckets older than an hour are provably rolled over for any sane window.
		if now.Sub(bucket.windowStart) >= time.Hour {
			delete(s.buckets, key)
			removed++
		}
	}
	return removed, nil
}
