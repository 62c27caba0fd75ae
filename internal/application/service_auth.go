package application

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/clearpay/portal/internal/domain"
	"github.com/clearpay/portal/internal/ports"
)

// RegisterCustomer creates a customer principal. Registration is the only
// self-service provisioning path; employee records are created out of band.
func (s *Service) RegisterCustomer(ctx context.Context, req RegisterCustomerRequest) (PrincipalSummary, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return PrincipalSummary{}, err
	}
	if err := domain.ValidatePasswordPolicy(req.Password); err != nil {
		return PrincipalSummary{}, err
	}

	passwordHash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return PrincipalSummary{}, fmt.Errorf("hash password: %w", err)
	}

	now := s.nowFn()
	principal, err := s.principals.Create(ctx, domain.Principal{
		ID:            uuid.New(),
		Kind:          domain.KindCustomer,
		Email:         email,
		FullName:      strings.TrimSpace(req.FullName),
		PasswordHash:  passwordHash,
		Status:        domain.StatusActive,
		AccountNumber: newAccountNumber(),
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	if err != nil {
		return PrincipalSummary{}, err
	}

	return summarize(principal), nil
}

// Login authenticates one identity namespace. The lockout check runs before
// password verification so a locked identity short-circuits without paying
// the hashing cost and without leaking whether the password would have matched.
func (s *Service) Login(ctx context.Context, kind domain.PrincipalKind, req LoginRequest) (LoginResult, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return LoginResult{}, err
	}
	if err := domain.ValidatePasswordInput(req.Password); err != nil {
		return LoginResult{}, err
	}

	fingerprint := domain.Fingerprint(req.IPAddress, req.UserAgent)
	lockKey := lockoutKey(kind, email)
	now := s.nowFn()

	record, locked, err := s.lockouts.Status(ctx, lockKey, now)
	if err != nil {
		// Failing open here would let a brute-forcer through whenever the
		// ledger is unreachable.
		return LoginResult{}, fmt.Errorf("%w: lockout state unavailable", domain.ErrInternal)
	}
	if locked {
		s.auditAttempt(ctx, nil, kind, email, req, fingerprint, "FAILED", "ACCOUNT_LOCKED")
		return LoginResult{}, &domain.LockoutError{Remaining: record.Remaining(now)}
	}

	principal, err := s.principals.FindByEmail(ctx, email, kind)
	if err != nil {
		return LoginResult{}, s.failLogin(ctx, nil, kind, email, req, fingerprint, "USER_NOT_FOUND")
	}
	if !principal.CanAuthenticate() {
		return LoginResult{}, s.failLogin(ctx, &principal.ID, kind, email, req, fingerprint, "ACCOUNT_INACTIVE")
	}

	if !s.hasher.Verify(req.Password, principal.PasswordHash) {
		return LoginResult{}, s.failLogin(ctx, &principal.ID, kind, email, req, fingerprint, "INVALID_PASSWORD")
	}

	if err := s.lockouts.RecordSuccess(ctx, lockKey); err != nil {
		slog.Default().WarnContext(ctx, "failed to reset lockout counter",
			"service", serviceName,
			"module", "application",
			"layer", "application",
			"operation", "login",
			"outcome", "warning",
			"error", err,
		)
	}
	s.auditAttempt(ctx, &principal.ID, kind, email, req, fingerprint, "SUCCESS", "")
	if err := s.principals.UpdateLoginBookkeeping(ctx, principal.ID, now); err != nil {
		slog.Default().WarnContext(ctx, "failed to update login bookkeeping",
			"service", serviceName,
			"module", "application",
			"layer", "application",
			"operation", "login",
			"outcome", "warning",
			"principal_id", principal.ID,
			"error", err,
		)
	}

	pair, err := s.issuePair(ctx, principal.ID, kind)
	if err != nil {
		return LoginResult{}, err
	}

	s.ObserveSession(ctx, principal.ID, fingerprint, req.UserAgent)

	return LoginResult{Principal: summarize(principal), Credentials: pair}, nil
}

// failLogin records a failed attempt in the audit trail and the lockout
// ledger, returning either the uniform credentials error or a fresh lockout.
func (s *Service) failLogin(ctx context.Context, principalID *uuid.UUID, kind domain.PrincipalKind, email string, req LoginRequest, fingerprint, reason string) error {
	s.auditAttempt(ctx, principalID, kind, email, req, fingerprint, "FAILED", reason)
	s.emit(ctx, domain.EventAuthFailure, domain.SeverityMedium, fingerprint, map[string]string{
		"kind":   string(kind),
		"reason": reason,
	})

	now := s.nowFn()
	record, newlyLocked, err := s.lockouts.RecordFailure(ctx, lockoutKey(kind, email), fingerprint, now, s.cfg.Lockout)
	if err != nil {
		slog.Default().ErrorContext(ctx, "failed to update lockout state",
			"service", serviceName,
			"module", "application",
			"layer", "application",
			"operation", "login",
			"outcome", "failure",
			"error_code", "LOCKOUT_STATE_UNAVAILABLE",
			"error", err,
		)
		return domain.ErrInvalidCredentials
	}
	if newlyLocked {
		s.emit(ctx, domain.EventAccountLockout, domain.SeverityHigh, fingerprint, map[string]string{
			"kind":          string(kind),
			"lockout_count": strconv.Itoa(record.LockoutCount),
			"unlock_at":     record.UnlockAt.Format(time.RFC3339),
		})
		return &domain.LockoutError{Remaining: record.Remaining(now)}
	}
	return domain.ErrInvalidCredentials
}

// Rotate exchanges a refresh token for a fresh credential pair. The stored
// token is swapped atomically, so a token that has already been rotated can
// never be exchanged again.
func (s *Service) Rotate(ctx context.Context, rawRefresh string, fingerprint string) (LoginResult, error) {
	claims, err := s.tokenSigner.Parse(rawRefresh, ports.TokenRefresh)
	if err != nil {
		s.emit(ctx, domain.EventTokenRejected, domain.SeverityMedium, fingerprint, map[string]string{
			"class": string(ports.TokenRefresh),
		})
		return LoginResult{}, domain.ErrInvalidToken
	}

	principal, err := s.principals.FindByID(ctx, claims.PrincipalID)
	if err != nil || !principal.CanAuthenticate() {
		return LoginResult{}, domain.ErrInvalidToken
	}

	now := s.nowFn()
	nextTokenID := uuid.New()
	refreshExpiresAt := now.Add(s.cfg.RefreshTokenTTL)

	swapped, err := s.refreshTokens.Swap(ctx, claims.PrincipalID, hashToken(claims.TokenID.String()), hashToken(nextTokenID.String()), refreshExpiresAt)
	if err != nil {
		return LoginResult{}, fmt.Errorf("%w: refresh store unavailable", domain.ErrInternal)
	}
	if !swapped {
		// Reuse of a superseded refresh token is a strong replay signal.
		s.emit(ctx, domain.EventTokenRejected, domain.SeverityHigh, fingerprint, map[string]string{
			"class":  string(ports.TokenRefresh),
			"reason": "superseded",
		})
		return LoginResult{}, domain.ErrInvalidToken
	}

	pair, err := s.mintPair(claims.PrincipalID, claims.Kind, nextTokenID, now, refreshExpiresAt)
	if err != nil {
		return LoginResult{}, err
	}

	s.emit(ctx, domain.EventTokenRotated, domain.SeverityLow, fingerprint, map[string]string{
		"principal_id": claims.PrincipalID.String(),
	})

	return LoginResult{Principal: summarize(principal), Credentials: pair}, nil
}

// Logout revokes the stored refresh token, ending the session line. It is
// best-effort: an already-invalid credential still results in cleared cookies.
func (s *Service) Logout(ctx context.Context, rawAccess, rawRefresh, fingerprint string) {
	var principalID uuid.UUID
	if claims, err := s.tokenSigner.Parse(rawAccess, ports.TokenAccess); err == nil {
		principalID = claims.PrincipalID
	} else if claims, err := s.tokenSigner.Parse(rawRefresh, ports.TokenRefresh); err == nil {
		principalID = claims.PrincipalID
	} else {
		return
	}

	if err := s.refreshTokens.Revoke(ctx, principalID); err != nil {
		slog.Default().WarnContext(ctx, "failed to revoke refresh token",
			"service", serviceName,
			"module", "application",
			"layer", "application",
			"operation", "logout",
			"outcome", "warning",
			"principal_id", principalID,
			"error", err,
		)
		return
	}
	s.emit(ctx, domain.EventTokenRevoked, domain.SeverityLow, fingerprint, map[string]string{
		"principal_id": principalID.String(),
	})
}

// Revoke drops the stored refresh token for a principal (administrative path).
func (s *Service) Revoke(ctx context.Context, principalID uuid.UUID) error {
	return s.refreshTokens.Revoke(ctx, principalID)
}

// ValidateAccess verifies an access token for the request pipeline. Failures
// are uniform and recorded.
func (s *Service) ValidateAccess(ctx context.Context, raw, fingerprint string) (ports.SessionClaims, error) {
	claims, err := s.tokenSigner.Parse(raw, ports.TokenAccess)
	if err != nil {
		s.emit(ctx, domain.EventTokenRejected, domain.SeverityMedium, fingerprint, map[string]string{
			"class": string(ports.TokenAccess),
		})
		return ports.SessionClaims{}, domain.ErrInvalidToken
	}
	return claims, nil
}

// FindPrincipal resolves a principal for authenticated read paths.
func (s *Service) FindPrincipal(ctx context.Context, id uuid.UUID) (PrincipalSummary, error) {
	principal, err := s.principals.FindByID(ctx, id)
	if err != nil {
		return PrincipalSummary{}, domain.ErrNotFound
	}
	return summarize(principal), nil
}

// CheckLocked reports lockout state without mutating the failure counter.
func (s *Service) CheckLocked(ctx context.Context, kind domain.PrincipalKind, email string) (LockedStatus, error) {
	normalized, err := normalizeEmail(email)
	if err != nil {
		return LockedStatus{}, err
	}
	now := s.nowFn()
	record, locked, err := s.lockouts.Status(ctx, lockoutKey(kind, normalized), now)
	if err != nil {
		return LockedStatus{}, fmt.Errorf("%w: lockout state unavailable", domain.ErrInternal)
	}
	return LockedStatus{Locked: locked, Remaining: record.Remaining(now)}, nil
}

// Unlock is the administrative override: clears both lock and failure counter.
func (s *Service) Unlock(ctx context.Context, kind domain.PrincipalKind, email string) error {
	normalized, err := normalizeEmail(email)
	if err != nil {
		return err
	}
	if err := s.lockouts.Unlock(ctx, lockoutKey(kind, normalized)); err != nil {
		return fmt.Errorf("%w: lockout state unavailable", domain.ErrInternal)
	}
	s.emit(ctx, domain.EventAccountUnlock, domain.SeverityLow, "", map[string]string{
		"kind": string(kind),
	})
	return nil
}

// issuePair mints a fresh access/refresh pair and installs the refresh token
// as the single valid one for the principal.
func (s *Service) issuePair(ctx context.Context, principalID uuid.UUID, kind domain.PrincipalKind) (CredentialPair, error) {
	now := s.nowFn()
	refreshTokenID := uuid.New()
	refreshExpiresAt := now.Add(s.cfg.RefreshTokenTTL)

	pair, err := s.mintPair(principalID, kind, refreshTokenID, now, refreshExpiresAt)
	if err != nil {
		return CredentialPair{}, err
	}
	if err := s.refreshTokens.Replace(ctx, principalID, hashToken(refreshTokenID.String()), refreshExpiresAt); err != nil {
		return CredentialPair{}, fmt.Errorf("%w: refresh store unavailable", domain.ErrInternal)
	}
	return pair, nil
}

func (s *Service) mintPair(principalID uuid.UUID, kind domain.PrincipalKind, refreshTokenID uuid.UUID, now, refreshExpiresAt time.Time) (CredentialPair, error) {
	accessExpiresAt := now.Add(s.cfg.AccessTokenTTL)

	access, err := s.tokenSigner.Sign(ports.SessionClaims{
		PrincipalID: principalID,
		Kind:        kind,
		Class:       ports.TokenAccess,
		TokenID:     uuid.New(),
		IssuedAt:    now,
		NotBefore:   now,
		ExpiresAt:   accessExpiresAt,
	})
	if err != nil {
		return CredentialPair{}, fmt.Errorf("sign access token: %w", err)
	}

	refresh, err := s.tokenSigner.Sign(ports.SessionClaims{
		PrincipalID: principalID,
		Kind:        kind,
		Class:       ports.TokenRefresh,
		TokenID:     refreshTokenID,
		IssuedAt:    now,
		NotBefore:   now,
		ExpiresAt:   refreshExpiresAt,
	})
	if err != nil {
		return CredentialPair{}, fmt.Errorf("sign refresh token: %w", err)
	}

	return CredentialPair{
		AccessToken:      access,
		AccessExpiresAt:  accessExpiresAt,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExpiresAt,
	}, nil
}

// auditAttempt persists login outcomes; failures here are logged, never
// surfaced, so audit-store trouble cannot change authentication results.
func (s *Service) auditAttempt(ctx context.Context, principalID *uuid.UUID, kind domain.PrincipalKind, email string, req LoginRequest, fingerprint, status, reason string) {
	if s.loginAttempts == nil {
		return
	}
	if err := s.loginAttempts.Insert(context.WithoutCancel(ctx), domain.LoginAttempt{
		PrincipalID:   principalID,
		Kind:          kind,
		Email:         email,
		AttemptAt:     s.nowFn(),
		IPAddress:     req.IPAddress,
		UserAgent:     req.UserAgent,
		Fingerprint:   fingerprint,
		Status:        status,
		FailureReason: reason,
	}); err != nil {
		slog.Default().WarnContext(ctx, "failed to persist login attempt",
			"service", serviceName,
			"module", "application",
			"layer", "application",
			"operation", "record_login_attempt",
			"outcome", "failure",
			"reason", reason,
			"error", err,
		)
	}
}

// newAccountNumber mints a customer account reference.
func newAccountNumber() string {
	id := uuid.New()
	return fmt.Sprintf("CP-%X", id[:6])
}
