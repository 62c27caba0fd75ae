package security

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/clearpay/portal/internal/domain"
	"github.com/clearpay/portal/internal/ports"
)

const (
	tokenIssuer     = "clearpay-portal"
	audienceAccess  = "portal-api"
	audienceRefresh = "portal-refresh"
)

// JWTSigner implements RS256 session credential signing and verification.
// Keys are held at adapter level so the application layer stays
// crypto-library agnostic.
type JWTSigner struct {
	kid        string
	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
	maxAge     time.Duration
	nowFn      func() time.Time
}

// NewJWTSigner builds a signer from configured PEM keys. maxAge is the ceiling
// on token age independent of the embedded expiry, defending against
// clock-skew abuse of long-dated exp claims.
func NewJWTSigner(kid, privateKeyPEM, publicKeyPEM string, maxAge time.Duration) (*JWTSigner, error) {
	if kid == "" {
		return nil, errors.New("jwt key id (kid) is required")
	}
	if privateKeyPEM == "" || publicKeyPEM == "" {
		return nil, errors.New("jwt private/public keys are required")
	}

	priv, err := parseRSAPrivate(privateKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	pub, err := parseRSAPublic(publicKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}

	return &JWTSigner{
		kid:        kid,
		privateKey: priv,
		publicKey:  pub,
		maxAge:     maxAge,
		nowFn:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// NewEphemeralJWTSigner creates an in-memory keypair for local/dev use.
// This exists to unblock runtime startup when static keys are intentionally absent.
func NewEphemeralJWTSigner(kid string, maxAge time.Duration) (*JWTSigner, error) {
	if kid == "" {
		kid = "ephemeral-key-1"
	}
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, err
	}
	return &JWTSigner{
		kid:        kid,
		privateKey: privateKey,
		publicKey:  &privateKey.PublicKey,
		maxAge:     maxAge,
		nowFn:      func() time.Time { return time.Now().UTC() },
	}, nil
}

type sessionJWTClaims struct {
	Kind  string `json:"kind"`
	Class string `json:"class"`
	jwt.RegisteredClaims
}

func audienceFor(class ports.TokenClass) string {
	if class == ports.TokenRefresh {
		return audienceRefresh
	}
	return audienceAccess
}

func (s *JWTSigner) Sign(claims ports.SessionClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, sessionJWTClaims{
		Kind:  string(claims.Kind),
		Class: string(claims.Class),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   claims.PrincipalID.String(),
			ID:        claims.TokenID.String(),
			Issuer:    tokenIssuer,
			Audience:  jwt.ClaimStrings{audienceFor(claims.Class)},
			IssuedAt:  jwt.NewNumericDate(claims.IssuedAt),
			NotBefore: jwt.NewNumericDate(claims.NotBefore),
			ExpiresAt: jwt.NewNumericDate(claims.ExpiresAt),
		},
	})
	token.Header["kid"] = s.kid
	return token.SignedString(s.privateKey)
}

// Parse verifies signature, expiry, not-before, issuer, class-specific
// audience, and the maximum-age ceiling. The algorithm is pinned here; the
// alg field inside the token is never trusted. Every failure mode collapses
// into domain.ErrInvalidToken so callers cannot build a validity oracle.
func (s *JWTSigner) Parse(raw string, class ports.TokenClass) (ports.SessionClaims, error) {
	parsed, err := jwt.ParseWithClaims(raw, &sessionJWTClaims{}, func(token *jwt.Token) (any, error) {
		if token.Method.Alg() != jwt.SigningMethodRS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %s", token.Method.Alg())
		}
		return s.publicKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithAudience(audienceFor(class)),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(30*time.Second),
	)
	if err != nil {
		return ports.SessionClaims{}, domain.ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*sessionJWTClaims)
	if !ok || !parsed.Valid {
		return ports.SessionClaims{}, domain.ErrInvalidToken
	}
	if string(class) != claims.Class {
		return ports.SessionClaims{}, domain.ErrInvalidToken
	}

	kind, err := domain.ParsePrincipalKind(claims.Kind)
	if err != nil {
		return ports.SessionClaims{}, domain.ErrInvalidToken
	}
	principalID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return ports.SessionClaims{}, domain.ErrInvalidToken
	}
	tokenID, err := uuid.Parse(claims.ID)
	if err != nil {
		return ports.SessionClaims{}, domain.ErrInvalidToken
	}
	if claims.IssuedAt == nil || claims.ExpiresAt == nil {
		return ports.SessionClaims{}, domain.ErrInvalidToken
	}
	if s.maxAge > 0 && s.nowFn().Sub(claims.IssuedAt.Time) > s.maxAge {
		return ports.SessionClaims{}, domain.ErrInvalidToken
	}

	out := ports.SessionClaims{
		PrincipalID: principalID,
		Kind:        kind,
		Class:       class,
		TokenID:     tokenID,
		IssuedAt:    claims.IssuedAt.Time.UTC(),
		ExpiresAt:   claims.ExpiresAt.Time.UTC(),
	}
	if claims.NotBefore != nil {
		out.NotBefore = claims.NotBefore.Time.UTC()
	}
	return out, nil
}

// KeyID exposes the active signing key identifier.
func (s *JWTSigner) KeyID() string { return s.kid }

// PublicKeyPEM exports the verification key so sibling services can validate
// tokens locally instead of calling back for every request.
func (s *JWTSigner) PublicKeyPEM() (string, error) {
	der, err := x509.MarshalPKIXPublicKey(s.publicKey)
	if err != nil {
		return "", fmt.Errorf("marshal public key: %w", err)
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})), nil
}

func parseRSAPrivate(raw string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(raw))
	if block == nil {
		return nil, errors.New("invalid private PEM")
	}
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	keyAny, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	key, ok := keyAny.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.New("private key is not RSA")
	}
	return key, nil
}

func parseRSAPublic(raw string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(raw))
	if block == nil {
		return nil, errors.New("invalid public PEM")
	}
	if key, err := x509.ParsePKCS1PublicKey(block.Bytes); err == nil {
		return key, nil
	}
	keyAny, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	key, ok := keyAny.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("public key is not RSA")
	}
	return key, nil
}
