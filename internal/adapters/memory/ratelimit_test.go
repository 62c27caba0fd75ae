package memory

import (
	"context"
	"testing"
	"time"
)

func TestRateLimitWithinBudget(t *testing.T) {
	t.Parallel()

	store := NewRateLimitStore()
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		decision, err := store.Allow(ctx, "fp-1", 5, time.Minute, now)
		if err != nil {
			t.Fatalf("allow: %v", err)
		}
		if !decision.Allowed {
			t.Fatalf("request %d within budget must be allowed", i+1)
		}
		if decision.Remaining != 5-(i+1) {
			t.Fatalf("request %d: remaining %d", i+1, decision.Remaining)
		}
	}

	decision, err := store.Allow(ctx, "fp-1", 5, time.Minute, now.Add(10*time.Second))
	if err != nil {
		t.Fatalf("allow: %v", err)
	}
	if decision.Allowed {
		t.Fatalf("request over budget must be denied")
	}
	if decision.RetryAfter != 50*time.Second {
		t.Fatalf("retry-after must point at the window end, got %v", decision.RetryAfter)
	}
}

func TestRateLimitWindowRollover(t *testing.T) {
	t.Parallel()

	store := NewRateLimitStore()
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		store.Allow(ctx, "fp-1", 5, time.Minute, now)
	}
	if decision, _ := store.Allow(ctx, "fp-1", 5, time.Minute, now); decision.Allowed {
		t.Fatalf("budget exhausted")
	}

	decision, err := store.Allow(ctx, "fp-1", 5, time.Minute, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("allow: %v", err)
	}
	if !decision.Allowed {
		t.Fatalf("fresh window must reset the budget")
	}
}

func TestRateLimitKeysAreIndependent(t *testing.T) {
	t.Parallel()

	store := NewRateLimitStore()
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		store.Allow(ctx, "fp-1", 5, time.Minute, now)
	}
	decision, err := store.Allow(ctx, "fp-2", 5, time.Minute, now)
	if err != nil {
		t.Fatalf("allow: %v", err)
	}
	if !decision.Allowed {
		t.Fatalf("a different fingerprint must have its own budget")
	}
}

func TestRateLimitSweep(t *testing.T) {
	t.Parallel()

	store := NewRateLimitStore()
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	store.Allow(ctx, "old", 5, time.Minute, now)
	store.Allow(ctx, "fresh", 5, time.Minute, now.Add(2*time.Hour))

	removed, err := store.Sweep(ctx, now.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if removed != 1 {
		t.Fatalf("sweep must remove only rolled-over buckets, removed %d", removed)
	}
}
