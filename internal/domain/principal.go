package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PrincipalKind is the closed set of human actor types served by the portal.
// Tokens carry this as a validated variant, never a free-form role string.
type PrincipalKind string

const (
	KindCustomer PrincipalKind = "customer"
	KindEmployee PrincipalKind = "employee"
)

// ParsePrincipalKind validates a kind at deserialization time so downstream
// code never compares unchecked strings.
func ParsePrincipalKind(raw string) (PrincipalKind, error) {
	switch PrincipalKind(raw) {
	case KindCustomer:
		return KindCustomer, nil
	case KindEmployee:
		return KindEmployee, nil
	default:
		return "", fmt.Errorf("%w: unknown principal kind %q", ErrInvalidInput, raw)
	}
}

// PrincipalStatus is a soft state; principals are never deleted.
type PrincipalStatus string

const (
	StatusActive    PrincipalStatus = "active"
	StatusSuspended PrincipalStatus = "suspended"
	StatusInactive  PrincipalStatus = "inactive"
)

// Principal is the canonical identity aggregate for both customers and employees.
// Kind-specific metadata stays flat here; the persistence adapter owns the mapping.
type Principal struct {
	ID           uuid.UUID
	Kind         PrincipalKind
	Email        string
	FullName     string
	PasswordHash string
	Status       PrincipalStatus

	// Customer metadata.
	AccountNumber string

	// Employee metadata.
	EmployeeID  string
	Department  string
	Permissions []string

	LastLoginAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CanAuthenticate gates login on soft account state.
func (p Principal) CanAuthenticate() bool {
	return p.Status == StatusActive
}

// HasPermission reports whether an employee principal carries a named permission.
// Customers have no permission set and always return false.
func (p Principal) HasPermission(name string) bool {
	if p.Kind != KindEmployee {
		return false
	}
	for _, perm := range p.Permissions {
		if perm == name {
			return true
		}
	}
	return false
}

// LoginAttempt records authentication outcomes for audit and lockout controls.
// Keeping this explicit makes fraud/risk signal generation deterministic.
type LoginAttempt struct {
	ID            int64
	PrincipalID   *uuid.UUID
	Kind          PrincipalKind
	Email         string
	AttemptAt     time.Time
	IPAddress     string
	UserAgent     string
	Fingerprint   string
	Status        string
	FailureReason string
}
