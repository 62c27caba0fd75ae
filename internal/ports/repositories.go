package ports

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/clearpay/portal/internal/domain"
)

// PrincipalRepository is the persistence collaborator boundary. The security
// core never issues queries itself; it is handed principal records by these
// lookups and manipulates only in-memory security state.
type PrincipalRepository interface {
	FindByEmail(ctx context.Context, email string, kind domain.PrincipalKind) (domain.Principal, error)
	FindByID(ctx context.Context, id uuid.UUID) (domain.Principal, error)
	Create(ctx context.Context, principal domain.Principal) (domain.Principal, error)
	// UpdateLoginBookkeeping records last-login state after a successful
	// authentication.
	UpdateLoginBookkeeping(ctx context.Context, id uuid.UUID, lastLoginAt time.Time) error
}

// LoginAttemptRepository persists login outcomes for audit and the operator
// dashboard. Failures here are logged, never propagated to the caller.
type LoginAttemptRepository interface {
	Insert(ctx context.Context, attempt domain.LoginAttempt) error
	ListRecent(ctx context.Context, limit int, since *time.Time) ([]domain.LoginAttempt, error)
}
