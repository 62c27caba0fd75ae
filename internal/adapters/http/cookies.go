package http

import (
	"net/http"
	"time"

	"github.com/clearpay/portal/internal/application"
)

const (
	accessCookieName  = "portal_access"
	refreshCookieName = "portal_refresh"
	csrfCookieName    = "portal_csrf"
	csrfHeaderName    = "X-CSRF-Token"

	// refreshCookiePath restricts the refresh credential's visibility to the
	// rotation endpoint only.
	refreshCookiePath = "/portal/v1/auth/refresh"
)

// CookiePolicy carries the transport flags resolved by bootstrap. Secure is
// disabled only for local plain-HTTP development.
type CookiePolicy struct {
	Secure  bool
	CSRFTTL time.Duration
}

func (h *Handler) setSessionCookies(w http.ResponseWriter, pair application.CredentialPair) {
	http.SetCookie(w, &http.Cookie{
		Name:     accessCookieName,
		Value:    pair.AccessToken,
		Path:     "/",
		Expires:  pair.AccessExpiresAt,
		HttpOnly: true,
		Secure:   h.cookies.Secure,
		SameSite: http.SameSiteStrictMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    pair.RefreshToken,
		Path:     refreshCookiePath,
		Expires:  pair.RefreshExpiresAt,
		HttpOnly: true,
		Secure:   h.cookies.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *Handler) setCSRFCookie(w http.ResponseWriter, token string) {
	ttl := h.cookies.CSRFTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	http.SetCookie(w, &http.Cookie{
		Name:     csrfCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   h.cookies.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *Handler) clearSessionCookies(w http.ResponseWriter) {
	expire := func(name, path string) {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     path,
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   h.cookies.Secure,
			SameSite: http.SameSiteStrictMode,
		})
	}
	expire(accessCookieName, "/")
	expire(refreshCookieName, refreshCookiePath)
	expire(csrfCookieName, "/")
}
