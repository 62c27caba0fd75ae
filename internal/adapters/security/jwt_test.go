package security

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/clearpay/portal/internal/domain"
	"github.com/clearpay/portal/internal/ports"
)

func testSigner(t *testing.T) *JWTSigner {
	t.Helper()
	signer, err := NewEphemeralJWTSigner("test-key-1", 24*time.Hour)
	if err != nil {
		t.Fatalf("create signer: %v", err)
	}
	return signer
}

func testClaims(class ports.TokenClass, ttl time.Duration) ports.SessionClaims {
	now := time.Now().UTC()
	return ports.SessionClaims{
		PrincipalID: uuid.New(),
		Kind:        domain.KindCustomer,
		Class:       class,
		TokenID:     uuid.New(),
		IssuedAt:    now,
		NotBefore:   now,
		ExpiresAt:   now.Add(ttl),
	}
}

func TestJWTSignParseRoundTrip(t *testing.T) {
	t.Parallel()

	signer := testSigner(t)
	claims := testClaims(ports.TokenAccess, 15*time.Minute)

	raw, err := signer.Sign(claims)
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}

	parsed, err := signer.Parse(raw, ports.TokenAccess)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if parsed.PrincipalID != claims.PrincipalID {
		t.Fatalf("principal id mismatch: got %s want %s", parsed.PrincipalID, claims.PrincipalID)
	}
	if parsed.TokenID != claims.TokenID {
		t.Fatalf("token id mismatch")
	}
	if parsed.Kind != domain.KindCustomer {
		t.Fatalf("kind mismatch: %s", parsed.Kind)
	}
}

func TestJWTClassConfusionRejected(t *testing.T) {
	t.Parallel()

	signer := testSigner(t)

	access, err := signer.Sign(testClaims(ports.TokenAccess, 15*time.Minute))
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}
	if _, err := signer.Parse(access, ports.TokenRefresh); !errors.Is(err, domain.ErrInvalidToken) {
		t.Fatalf("access token must not parse as refresh, got %v", err)
	}

	refresh, err := signer.Sign(testClaims(ports.TokenRefresh, time.Hour))
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}
	if _, err := signer.Parse(refresh, ports.TokenAccess); !errors.Is(err, domain.ErrInvalidToken) {
		t.Fatalf("refresh token must not parse as access, got %v", err)
	}
}

func TestJWTTamperedTokenRejected(t *testing.T) {
	t.Parallel()

	signer := testSigner(t)
	raw, err := signer.Sign(testClaims(ports.TokenAccess, 15*time.Minute))
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}

	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		t.Fatalf("unexpected token shape")
	}
	tampered := parts[0] + "." + parts[1] + "." + strings.Repeat("A", len(parts[2]))
	if _, err := signer.Parse(tampered, ports.TokenAccess); !errors.Is(err, domain.ErrInvalidToken) {
		t.Fatalf("tampered signature must be rejected, got %v", err)
	}

	other := testSigner(t)
	if _, err := other.Parse(raw, ports.TokenAccess); !errors.Is(err, domain.ErrInvalidToken) {
		t.Fatalf("token from a different key must be rejected, got %v", err)
	}
}

func TestJWTExpiredTokenRejected(t *testing.T) {
	t.Parallel()

	signer := testSigner(t)
	claims := testClaims(ports.TokenAccess, 15*time.Minute)
	claims.IssuedAt = time.Now().UTC().Add(-time.Hour)
	claims.NotBefore = claims.IssuedAt
	// Past the 30s verification leeway.
	claims.ExpiresAt = time.Now().UTC().Add(-2 * time.Minute)

	raw, err := signer.Sign(claims)
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}
	if _, err := signer.Parse(raw, ports.TokenAccess); !errors.Is(err, domain.ErrInvalidToken) {
		t.Fatalf("expired token must be rejected, got %v", err)
	}
}

func TestJWTMaxAgeCeiling(t *testing.T) {
	t.Parallel()

	signer, err := NewEphemeralJWTSigner("test-key-1", time.Minute)
	if err != nil {
		t.Fatalf("create signer: %v", err)
	}

	claims := testClaims(ports.TokenAccess, time.Hour)
	claims.IssuedAt = time.Now().UTC().Add(-10 * time.Minute)
	claims.NotBefore = claims.IssuedAt

	raw, err := signer.Sign(claims)
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}
	if _, err := signer.Parse(raw, ports.TokenAccess); !errors.Is(err, domain.ErrInvalidToken) {
		t.Fatalf("token older than max age must be rejected even before exp, got %v", err)
	}
}

func TestJWTPublicKeyExport(t *testing.T) {
	t.Parallel()

	signer := testSigner(t)
	pemKey, err := signer.PublicKeyPEM()
	if err != nil {
		t.Fatalf("export public key: %v", err)
	}
	if !strings.Contains(pemKey, "BEGIN PUBLIC KEY") {
		t.Fatalf("expected PEM-encoded public key, got %q", pemKey)
	}
	if signer.KeyID() != "test-key-1" {
		t.Fatalf("unexpected key id %q", signer.KeyID())
	}
}
