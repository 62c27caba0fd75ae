package ports

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/clearpay/portal/internal/domain"
)

// LockoutPolicy tunes the progressive lockout state machine. Each successive
// lockout for the same identity lasts BaseDuration * Multiplier^priorLockouts,
// capped at MaxDuration.
type LockoutPolicy struct {
	Threshold    int
	BaseDuration time.Duration
	Multiplier   int
	MaxDuration  time.Duration
}

// Duration resolves the cool-down for the given prior-lockout count.
func (p LockoutPolicy) Duration(priorLockouts int) time.Duration {
	d := p.BaseDuration
	for i := 0; i < priorLockouts; i++ {
		d *= time.Duration(p.Multiplier)
		if d >= p.MaxDuration {
			return p.MaxDuration
		}
	}
	if d > p.MaxDuration {
		return p.MaxDuration
	}
	return d
}

// LockoutRecord is the per-identity failure ledger. The failure counter resets
// on lock, success, or explicit unlock; LockoutCount never decreases so future
// lockouts keep escalating.
type LockoutRecord struct {
	FailedCount  int
	FirstAttempt time.Time
	LastAttempt  time.Time
	Fingerprints []string
	LockoutCount int
	LockedAt     *time.Time
	UnlockAt     *time.Time
}

// Remaining reports the time left on an active lock, zero when unlocked.
func (r LockoutRecord) Remaining(now time.Time) time.Duration {
	if r.UnlockAt == nil || !r.UnlockAt.After(now) {
		return 0
	}
	return r.UnlockAt.Sub(now)
}

// LockoutStore holds brute-force protection state keyed by case-folded identity.
// RecordFailure must be a single atomic check-and-increment so two concurrent
// failures cannot under-count toward the threshold.
type LockoutStore interface {
	// RecordFailure increments the counter and transitions to locked when the
	// threshold is reached. The bool result reports whether this call caused a
	// new lock.
	RecordFailure(ctx context.Context, key, fingerprint string, now time.Time, policy LockoutPolicy) (LockoutRecord, bool, error)
	// Status reports the current record and whether the identity is locked.
	// An expired lock is cleared on read; repeated calls for an unlocked
	// identity never mutate state.
	Status(ctx context.Context, key string, now time.Time) (LockoutRecord, bool, error)
	// RecordSuccess resets the failure counter but keeps the historical
	// lockout count.
	RecordSuccess(ctx context.Context, key string) error
	// Unlock is the administrative override: clears both lock and counter.
	Unlock(ctx context.Context, key string) error
	// Sweep reclaims records idle longer than the given window. It only removes
	// provably expired entries, so it cannot race an in-flight check into a
	// false unlocked state.
	Sweep(ctx context.Context, now time.Time, idle time.Duration) (int, error)
}

// RateDecision is the outcome of a rate-limit check.
type RateDecision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// RateLimitStore counts requests per client fingerprint over a time window.
type RateLimitStore interface {
	// Allow performs an atomic count-and-check against the bucket for key.
	Allow(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (RateDecision, error)
	Sweep(ctx context.Context, now time.Time) (int, error)
}

// RefreshTokenStore keeps the single currently-valid refresh token per
// principal, stored as a one-way hash. Swap is the rotation primitive: an
// atomic compare-and-replace so an already-rotated token can never be
// exchanged twice.
type RefreshTokenStore interface {
	Replace(ctx context.Context, principalID uuid.UUID, tokenHash string, expiresAt time.Time) error
	Swap(ctx context.Context, principalID uuid.UUID, currentHash, nextHash string, expiresAt time.Time) (bool, error)
	Revoke(ctx context.Context, principalID uuid.UUID) error
}

// EventLog is the append-only security event record. Events are never mutated;
// consumers only read for inspection and operator dashboards.
type EventLog interface {
	Append(ctx context.Context, event domain.SecurityEvent) error
	Recent(ctx context.Context, limit int) ([]domain.SecurityEvent, error)
	Stats(ctx context.Context) (domain.EventStats, error)
}
