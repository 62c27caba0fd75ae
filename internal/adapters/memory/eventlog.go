package memory

import (
	"context"
	"sync"

	"github.com/clearpay/portal/internal/domain"
)

const defaultEventCapacity = 4096

// EventLog is an append-only ring buffer of security events. Once capacity is
// reached the oldest events are dropped; events themselves are never mutated.
type EventLog struct {
	mu       sync.RWMutex
	events   []domain.SecurityEvent
	capacity int
}

func NewEventLog(capacity int) *EventLog {
	if capacity <= 0 {
		capacity = defaultEventCapacity
	}
	return &EventLog{capacity: capacity}
}

func (l *EventLog) Append(_ context.Context, event domain.SecurityEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.events = append(l.events, event)
	if len(l.events) > l.capacity {
		l.events = l.events[len(l.events)-l.capacity:]
	}
	return nil
}

// Recent returns up to limit events, newest first.
func (l *EventLog) Recent(_ context.Context, limit int) ([]domain.SecurityEvent, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if limit <= 0 || limit > len(l.events) {
		limit = len(l.events)
	}
	out := make([]domain.SecurityEvent, 0, limit)
	for i := len(l.events) - 1; i >= len(l.events)-limit; i-- {
		out = append(out, l.events[i])
	}
	return out, nil
}

func (l *EventLog) Stats(_ context.Context) (domain.EventStats, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	stats := domain.EventStats{
		Total:         len(l.events),
		ByType:        make(map[string]int),
		ByFingerprint: make(map[string]int),
	}
	for _, event := range l.events {
		stats.ByType[event.Type]++
		if event.Fingerprint != "" {
			stats.ByFingerprint[event.Fingerprint]++
		}
	}
	return stats, nil
}
