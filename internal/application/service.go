package application

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/clearpay/portal/internal/domain"
	"github.com/clearpay/portal/internal/ports"
)

// Config carries the security-policy knobs resolved by bootstrap.
type Config struct {
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	Lockout        ports.LockoutPolicy
	LockoutIdleTTL time.Duration

	RateLimit       int
	RateLimitWindow time.Duration

	// AllowedOrigins is the explicit front-end origin allow-list used as the
	// second line of CSRF defense.
	AllowedOrigins []string

	// AnomalyWindow bounds how long a fingerprint or user-agent is remembered
	// per principal for session anomaly detection.
	AnomalyWindow time.Duration
}

// Service composes the security core: credential hashing, token issuance and
// rotation, lockout ledger, rate limiting, CSRF guard, threat classification,
// and the security event log.
type Service struct {
	cfg           Config
	principals    ports.PrincipalRepository
	loginAttempts ports.LoginAttemptRepository
	lockouts      ports.LockoutStore
	rates         ports.RateLimitStore
	refreshTokens ports.RefreshTokenStore
	events        ports.EventLog
	hasher        ports.PasswordHasher
	tokenSigner   ports.TokenSigner
	sessions      *sessionTracker
	nowFn         func() time.Time
}

type Dependencies struct {
	Config        Config
	Principals    ports.PrincipalRepository
	LoginAttempts ports.LoginAttemptRepository
	Lockouts      ports.LockoutStore
	Rates         ports.RateLimitStore
	RefreshTokens ports.RefreshTokenStore
	Events        ports.EventLog
	Hasher        ports.PasswordHasher
	TokenSigner   ports.TokenSigner
}

func NewService(deps Dependencies) *Service {
	cfg := deps.Config
	if cfg.AnomalyWindow <= 0 {
		cfg.AnomalyWindow = 30 * time.Minute
	}
	return &Service{
		cfg:           cfg,
		principals:    deps.Principals,
		loginAttempts: deps.LoginAttempts,
		lockouts:      deps.Lockouts,
		rates:         deps.Rates,
		refreshTokens: deps.RefreshTokens,
		events:        deps.Events,
		hasher:        deps.Hasher,
		tokenSigner:   deps.TokenSigner,
		sessions:      newSessionTracker(cfg.AnomalyWindow),
		nowFn:         func() time.Time { return time.Now().UTC() },
	}
}

// lockoutKey scopes the ledger per identity namespace; customer and employee
// logins with the same email never share a failure counter.
func lockoutKey(kind domain.PrincipalKind, email string) string {
	return "login:" + string(kind) + ":" + email
}

// normalizeEmail canonicalizes and validates email format before comparison.
func normalizeEmail(email string) (string, error) {
	trimmed := strings.ToLower(strings.TrimSpace(email))
	if trimmed == "" {
		return "", fmt.Errorf("%w: email is required", domain.ErrInvalidInput)
	}
	if _, err := mail.ParseAddress(trimmed); err != nil {
		return "", fmt.Errorf("%w: invalid email", domain.ErrInvalidInput)
	}
	return trimmed, nil
}

// hashToken stores one-way token fingerprints instead of raw identifiers.
func hashToken(token string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(token)))
	return hex.EncodeToString(sum[:])
}
