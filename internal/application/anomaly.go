package application

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/clearpay/portal/internal/domain"
)

// sessionTracker remembers the fingerprints and user-agents recently seen per
// principal. It is advisory in-process state; entries age out with the window.
type sessionTracker struct {
	mu     sync.Mutex
	window time.Duration
	seen   map[uuid.UUID]*principalActivity
}

type principalActivity struct {
	fingerprints map[string]time.Time
	userAgents   map[string]time.Time
}

func newSessionTracker(window time.Duration) *sessionTracker {
	return &sessionTracker{
		window: window,
		seen:   make(map[uuid.UUID]*principalActivity),
	}
}

// ObserveSession records the client surface of an authenticated request and
// emits a session-anomaly event when a new fingerprint appears shortly after
// another, or the user-agent changes mid-session.
func (s *Service) ObserveSession(ctx context.Context, principalID uuid.UUID, fingerprint, userAgent string) {
	now := s.nowFn()
	newFingerprint, newUserAgent := s.sessions.observe(principalID, fingerprint, userAgent, now)

	if newFingerprint {
		s.emit(ctx, domain.EventSessionAnomaly, domain.SeverityMedium, fingerprint, map[string]string{
			"principal_id": principalID.String(),
			"change":       "fingerprint",
		})
	}
	if newUserAgent {
		s.emit(ctx, domain.EventSessionAnomaly, domain.SeverityMedium, fingerprint, map[string]string{
			"principal_id": principalID.String(),
			"change":       "user_agent",
		})
	}
}

// observe returns whether the fingerprint or user-agent is new while other
// recent activity exists for the principal.
func (t *sessionTracker) observe(principalID uuid.UUID, fingerprint, userAgent string, now time.Time) (newFingerprint, newUserAgent bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	activity, ok := t.seen[principalID]
	if !ok {
		activity = &principalActivity{
			fingerprints: make(map[string]time.Time),
			userAgents:   make(map[string]time.Time),
		}
		t.seen[principalID] = activity
	}

	cutoff := now.Add(-t.window)
	prune(activity.fingerprints, cutoff)
	prune(activity.userAgents, cutoff)

	if fingerprint != "" {
		if _, known := activity.fingerprints[fingerprint]; !known && len(activity.fingerprints) > 0 {
			newFingerprint = true
		}
		activity.fingerprints[fingerprint] = now
	}
	if userAgent != "" {
		if _, known := activity.userAgents[userAgent]; !known && len(activity.userAgents) > 0 {
			newUserAgent = true
		}
		activity.userAgents[userAgent] = now
	}
	return newFingerprint, newUserAgent
}

func (t *sessionTracker) sweep(now time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	cutoff := now.Add(-t.window)
	removed := 0
	for id, activity := range t.seen {
		prune(activity.fingerprints, cutoff)
		prune(activity.userAgents, cutoff)
		if len(activity.fingerprints) == 0 && len(activity.userAgents) == 0 {
			delete(t.seen, id)
			removed++
		}
	}
	return removed
}

func prune(entries map[string]time.Time, cutoff time.Time) {
	for key, seenAt := range entries {
		if seenAt.Before(cutoff) {
			delete(entries, key)
		}
	}
}
