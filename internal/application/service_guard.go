package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/clearpay/portal/internal/domain"
)

// AllowRequest enforces the per-fingerprint request budget ahead of the
// authentication endpoints. It protects the endpoint irrespective of which
// identity is targeted, while the lockout ledger protects one identity
// irrespective of origin.
func (s *Service) AllowRequest(ctx context.Context, fingerprint string) error {
	if s.cfg.RateLimit <= 0 || s.cfg.RateLimitWindow <= 0 {
		return nil
	}

	decision, err := s.rates.Allow(ctx, fingerprint, s.cfg.RateLimit, s.cfg.RateLimitWindow, s.nowFn())
	if err != nil {
		slog.Default().ErrorContext(ctx, "rate-limit state unavailable",
			"service", serviceName,
			"module", "application",
			"layer", "application",
			"operation", "rate_limit",
			"outcome", "failure",
			"fingerprint", fingerprint,
			"error", err,
		)
		return fmt.Errorf("%w: rate-limit state unavailable", domain.ErrInternal)
	}
	if !decision.Allowed {
		s.emit(ctx, domain.EventRateLimited, domain.SeverityMedium, fingerprint, map[string]string{
			"retry_after": decision.RetryAfter.Round(time.Second).String(),
		})
		return &domain.RateLimitError{RetryAfter: decision.RetryAfter}
	}
	return nil
}
