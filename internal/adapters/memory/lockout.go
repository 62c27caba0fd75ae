package memory

import (
	"context"
	"sync"
	"time"

	"github.com/clearpay/portal/internal/ports"
)

// LockoutStore is the single-process implementation of the lockout ledger.
// All transitions happen under one mutex so check-and-increment is atomic.
type LockoutStore struct {
	mu      sync.Mutex
	records map[string]*lockoutEntry
}

type lockoutEntry struct {
	failedCount  int
	firstAttempt time.Time
	lastAttempt  time.Time
	fingerprints map[string]struct{}
	lockoutCount int
	lockedAt     *time.Time
	unlockAt     *time.Time
}

func NewLockoutStore() *LockoutStore {
	return &LockoutStore{records: make(map[string]*lockoutEntry)}
}

func (s *LockoutStore) RecordFailure(_ context.Context, key, fingerprint string, now time.Time, policy ports.LockoutPolicy) (ports.LockoutRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.records[key]
	if !ok {
		entry = &lockoutEntry{
			firstAttempt: now,
			fingerprints: make(map[string]struct{}),
		}
		s.records[key] = entry
	}

	entry.failedCount++
	entry.lastAttempt = now
	if fingerprint != "" {
		entry.fingerprints[fingerprint] = struct{}{}
	}

	if entry.failedCount >= policy.Threshold {
		duration := policy.Duration(entry.lockoutCount)
		lockedAt := now
		unlockAt := now.Add(duration)
		entry.lockedAt = &lockedAt
		entry.unlockAt = &unlockAt
		entry.lockoutCount++
		entry.failedCount = 0
		return entry.snapshot(), true, nil
	}

	return entry.snapshot(), false, nil
}

func (s *LockoutStore) Status(_ context.Context, key string, now time.Time) (ports.LockoutRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.records[key]
	if !ok {
		return ports.LockoutRecord{}, false, nil
	}
	if entry.unlockAt != nil && !entry.unlockAt.After(now) {
		// locked -> unlocked: the cool-down has passed.
		entry.lockedAt = nil
		entry.unlockAt = nil
	}
	return entry.snapshot(), entry.unlockAt != nil && entry.unlockAt.After(now), nil
}

func (s *LockoutStore) RecordSuccess(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, ok := s.records[key]; ok {
		entry.failedCount = 0
	}
	return nil
}

func (s *LockoutStore) Unlock(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, ok := s.records[key]; ok {
		entry.failedCount = 0
		entry.lockedAt = nil
		entry.unlockAt = nil
	}
	return nil
}

func (s *LockoutStore) Sweep(_ context.Context, now time.Time, idle time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, entry := range s.records {
		if entry.unlockAt != nil && entry.unlockAt.After(now) {
			continue
		}
		if now.Sub(entry.lastAttempt) >= idle {
			delete(s.records, key)
			removed++
		}
	}
	return removed, nil
}

func (e *lockoutEntry) snapshot() ports.LockoutRecord {
	fingerprints := make([]string, 0, len(e.fingerprints))
	for fp := range e.fingerprints {
		fingerprints = append(fingerprints, fp)
	}
	record := ports.LockoutRecord{
		FailedCount:  e.failedCount,
		FirstAttempt: e.firstAttempt,
		LastAttempt:  e.lastAttempt,
		Fingerprints: fingerprints,
		LockoutCount: e.lockoutCount,
	}
	if e.lockedAt != nil {
		lockedAt := *e.lockedAt
		record.LockedAt = &lockedAt
	}
	if e.unlockAt != nil {
		unlockAt := *e.unlockAt
		record.UnlockAt = &unlockAt
	}
	return record
}
