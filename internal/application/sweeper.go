package application

import (
	"context"
	"log/slog"
	"time"
)

// Sweep runs one reclamation pass over the lockout records, rate-limit
// buckets, and session tracker. It only removes provably expired entries, so
// it cannot race an in-flight check into a false unlocked state. Exposed so
// tests can drive reclamation deterministically.
func (s *Service) Sweep(ctx context.Context) {
	now := s.nowFn()

	lockoutsRemoved, err := s.lockouts.Sweep(ctx, now, s.cfg.LockoutIdleTTL)
	if err != nil {
		slog.Default().WarnContext(ctx, "lockout sweep failed",
			"service", serviceName,
			"module", "application",
			"layer", "application",
			"operation", "sweep",
			"outcome", "failure",
			"error", err,
		)
	}
	bucketsRemoved, err := s.rates.Sweep(ctx, now)
	if err != nil {
		slog.Default().WarnContext(ctx, "rate-limit sweep failed",
			"service", serviceName,
			"module", "application",
			"layer", "application",
			"operation", "sweep",
			"outcome", "failure",
			"error", err,
		)
	}
	sessionsRemoved := s.sessions.sweep(now)

	if lockoutsRemoved+bucketsRemoved+sessionsRemoved > 0 {
		slog.Default().InfoContext(ctx, "maintenance sweep completed",
			"service", serviceName,
			"module", "application",
			"layer", "application",
			"operation", "sweep",
			"outcome", "success",
			"lockouts_removed", lockoutsRemoved,
			"buckets_removed", bucketsRemoved,
			"sessions_removed", sessionsRemoved,
		)
	}
}

// Sweeper drives periodic reclamation on its own timer, decoupled from
// request handling, with an explicit stop handle for deterministic shutdown.
type Sweeper struct {
	service  *Service
	interval time.Duration
	stop     chan struct{}
	done     chan struct{}
}

func NewSweeper(service *Service, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Sweeper{
		service:  service,
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (w *Sweeper) Start(ctx context.Context) {
	go func() {
		defer close(w.done)
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				w.service.Sweep(ctx)
			case <-w.stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop halts the timer and waits for any in-progress pass to finish.
func (w *Sweeper) Stop() {
	close(w.stop)
	<-w.done
}
