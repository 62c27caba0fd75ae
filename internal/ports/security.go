package ports

import (
	"time"

	"github.com/google/uuid"

	"github.com/clearpay/portal/internal/domain"
)

// PasswordHasher is a memory-hard, adaptive-cost one-way function with a
// per-password random salt embedded in the digest. Verify must return false,
// never an error callers can branch on, for a malformed digest, so "bad hash"
// is indistinguishable from "bad password" through control flow.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, digest string) bool
}

// TokenClass separates access and refresh credentials. Verification is always
// pinned to a class; a refresh token never passes as an access token.
type TokenClass string

const (
	TokenAccess  TokenClass = "access"
	TokenRefresh TokenClass = "refresh"
)

// SessionClaims is the signed claim set bound into each session credential.
type SessionClaims struct {
	PrincipalID uuid.UUID
	Kind        domain.PrincipalKind
	Class       TokenClass
	TokenID     uuid.UUID
	IssuedAt    time.Time
	NotBefore   time.Time
	ExpiresAt   time.Time
}

// TokenSigner mints and verifies signed session credentials. The signer is the
// sole authority over valid signatures; Parse pins the algorithm and the
// class-specific audience at verification time and collapses every failure
// mode into domain.ErrInvalidToken.
type TokenSigner interface {
	Sign(claims SessionClaims) (string, error)
	Parse(raw string, class TokenClass) (SessionClaims, error)
}
