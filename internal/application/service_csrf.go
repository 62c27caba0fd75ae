package application

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/clearpay/portal/internal/domain"
)

const (
	csrfTokenBytes = 32
	// RequestedWithValue is the programmatic-request marker browsers cannot
	// attach cross-origin without a CORS preflight.
	RequestedWithValue = "XMLHttpRequest"
)

// IssueCSRFToken mints a fresh random token for the double-submit pattern.
// Each explicit fetch re-mints, so two consecutive fetches return distinct
// values and only the most recently issued one validates against the cookie.
func (s *Service) IssueCSRFToken(context.Context) (string, error) {
	raw := make([]byte, csrfTokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("%w: csrf token generation", domain.ErrInternal)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// ValidateCSRF enforces the double-submit contract on state-changing methods:
// the submitted token must equal the cookie token, the declared content type
// must be the structured API type, and the programmatic marker header must be
// present. Origin/Referer, when present, are checked against the allow-list
// as an independent second line of defense.
func (s *Service) ValidateCSRF(ctx context.Context, check CSRFCheck) error {
	switch check.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return nil
	}

	if err := s.validateCSRF(check); err != nil {
		s.emit(ctx, domain.EventCSRFRejected, domain.SeverityMedium, check.Fingerprint, map[string]string{
			"method": check.Method,
		})
		return err
	}
	return nil
}

func (s *Service) validateCSRF(check CSRFCheck) error {
	if check.CookieToken == "" || check.HeaderToken == "" {
		return domain.ErrCSRFRejected
	}
	if subtle.ConstantTimeCompare([]byte(check.CookieToken), []byte(check.HeaderToken)) != 1 {
		return domain.ErrCSRFRejected
	}

	// Legacy form-encoded submissions are exactly what browsers can trigger
	// without scripting; only the structured API type passes.
	mediaType, _, err := mime.ParseMediaType(check.ContentType)
	if err != nil || mediaType != "application/json" {
		return domain.ErrCSRFRejected
	}

	if check.RequestedWith != RequestedWithValue {
		return domain.ErrCSRFRejected
	}

	if check.Origin != "" && !s.originAllowed(check.Origin) {
		return domain.ErrCSRFRejected
	}
	if check.Origin == "" && check.Referer != "" {
		ref, err := url.Parse(check.Referer)
		if err != nil || !s.originAllowed(ref.Scheme+"://"+ref.Host) {
			return domain.ErrCSRFRejected
		}
	}

	return nil
}

func (s *Service) originAllowed(origin string) bool {
	origin = strings.TrimSuffix(strings.ToLower(origin), "/")
	for _, allowed := range s.cfg.AllowedOrigins {
		if origin == strings.TrimSuffix(strings.ToLower(allowed), "/") {
			return true
		}
	}
	return false
}
