package application

import (
	"context"
	"log/slog"
	"time"

	"github.com/clearpay/portal/internal/domain"
)

const serviceName = "portal-security"

// emit appends a security event to the log. The append uses a cancel-free
// context: security bookkeeping must complete even when the surrounding
// request has been aborted.
func (s *Service) emit(ctx context.Context, eventType string, severity domain.EventSeverity, fingerprint string, detail map[string]string) {
	event := domain.SecurityEvent{
		Type:        eventType,
		Severity:    severity,
		OccurredAt:  s.nowFn(),
		Fingerprint: fingerprint,
		Detail:      detail,
	}
	if err := s.events.Append(context.WithoutCancel(ctx), event); err != nil {
		slog.Default().ErrorContext(ctx, "failed to append security event",
			"service", serviceName,
			"module", "application",
			"layer", "application",
			"operation", "emit_event",
			"outcome", "failure",
			"event_type", eventType,
			"error", err,
		)
		return
	}
	if severity == domain.SeverityHigh || severity == domain.SeverityCritical {
		slog.Default().WarnContext(ctx, "security event recorded",
			"service", serviceName,
			"module", "application",
			"layer", "application",
			"operation", "emit_event",
			"outcome", "recorded",
			"event_type", eventType,
			"severity", severity,
			"fingerprint", fingerprint,
		)
	}
}

// RecentEvents exposes the log to operators, newest first.
func (s *Service) RecentEvents(ctx context.Context, limit int) ([]domain.SecurityEvent, error) {
	return s.events.Recent(ctx, limit)
}

// EventStats aggregates counts by type and fingerprint for the dashboard.
func (s *Service) EventStats(ctx context.Context) (domain.EventStats, error) {
	return s.events.Stats(ctx)
}

// LoginHistory returns recent persisted login attempts for operators.
func (s *Service) LoginHistory(ctx context.Context, limit int, since *time.Time) ([]domain.LoginAttempt, error) {
	if s.loginAttempts == nil {
		return nil, nil
	}
	return s.loginAttempts.ListRecent(ctx, limit, since)
}
