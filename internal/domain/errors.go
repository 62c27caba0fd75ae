package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidInput flags malformed request shapes before any security state mutates.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidCredentials hides whether the email or the password failed.
	// The reason is to prevent account-enumeration side channels.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountLocked signals temporary lockout after repeated failed attempts.
	ErrAccountLocked = errors.New("account locked")
	// ErrRateLimited is fingerprint-scoped and independent of the targeted identity.
	ErrRateLimited = errors.New("rate limited")
	// ErrInvalidToken is the uniform failure for every token rejection mode
	// (expired, malformed, wrong signature, wrong audience) to avoid oracle leakage.
	ErrInvalidToken = errors.New("invalid token")
	// ErrCSRFRejected covers token mismatch, missing marker header, and origin violations.
	ErrCSRFRejected = errors.New("csrf rejected")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("resource not found")
	ErrConflict     = errors.New("conflict")
	// ErrInternal is the only class allowed to carry diagnostic detail,
	// and only in non-production configuration.
	ErrInternal = errors.New("internal failure")
)

// LockoutError carries the remaining cool-down so the transport can answer
// with a retry hint. It unwraps to ErrAccountLocked for classification.
type LockoutError struct {
	Remaining time.Duration
}

func (e *LockoutError) Error() string {
	return fmt.Sprintf("account locked for %s", e.Remaining.Round(time.Second))
}

func (e *LockoutError) Unwrap() error { return ErrAccountLocked }

// RateLimitError carries the window remainder as a retry-after hint.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter.Round(time.Second))
}

func (e *RateLimitError) Unwrap() error { return ErrRateLimited }
