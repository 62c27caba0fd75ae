package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// EventSeverity orders security events for operator triage.
type EventSeverity string

const (
	SeverityLow      EventSeverity = "low"
	SeverityMedium   EventSeverity = "medium"
	SeverityHigh     EventSeverity = "high"
	SeverityCritical EventSeverity = "critical"
)

// Security event type tags. Injection and command classes are high severity;
// reconnaissance is low.
const (
	EventAuthFailure    = "auth_failure"
	EventAccountLockout = "account_lockout"
	EventAccountUnlock  = "account_unlock"
	EventRateLimited    = "rate_limited"
	EventTokenRejected  = "token_rejected"
	EventTokenRotated   = "token_rotated"
	EventTokenRevoked   = "token_revoked"
	EventCSRFRejected   = "csrf_rejected"
	EventSQLInjection   = "sql_injection"
	EventXSSProbe       = "xss_probe"
	EventShellInjection = "shell_injection"
	EventPathTraversal  = "path_traversal"
	EventNoSQLInjection = "nosql_injection"
	EventReconProbe     = "recon_probe"
	EventSessionAnomaly = "session_anomaly"
)

// SecurityEvent is an immutable, append-only record. Detail never contains
// passwords, digests, or full tokens; only identifiers and classifications.
type SecurityEvent struct {
	Type        string            `json:"type"`
	Severity    EventSeverity     `json:"severity"`
	OccurredAt  time.Time         `json:"occurredAt"`
	Fingerprint string            `json:"fingerprint"`
	Detail      map[string]string `json:"detail,omitempty"`
}

// EventStats aggregates the log for the operator dashboard.
type EventStats struct {
	Total         int            `json:"total"`
	ByType        map[string]int `json:"byType"`
	ByFingerprint map[string]int `json:"byFingerprint"`
}

// Fingerprint buckets a client by network address plus user-agent.
// It is deliberately distinct from authenticated identity: the rate limiter
// defends an endpoint against one client regardless of which emails it targets.
func Fingerprint(ipAddress, userAgent string) string {
	sum := sha256.Sum256([]byte(ipAddress + "|" + userAgent))
	return hex.EncodeToString(sum[:8])
}
