package http

import (
	"net/http"

	"github.com/clearpay/portal/internal/application"
	"github.com/clearpay/portal/internal/domain"
)

func (h *Handler) registerCustomer(w http.ResponseWriter, r *http.Request) {
	var req application.RegisterCustomerRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "register_customer", err)
		return
	}
	req.IPAddress = readIP(r)
	req.UserAgent = r.UserAgent()

	summary, err := h.service.RegisterCustomer(r.Context(), req)
	if err != nil {
		writeMappedError(r.Context(), w, "register_customer", err)
		return
	}
	writeSuccess(w, http.StatusCreated, summary)
}

// registerEmployee always refuses. Employee records are provisioned through
// internal HR tooling, never through the public portal.
func (h *Handler) registerEmployee(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusForbidden, "EMPLOYEE_SELF_REGISTRATION", "employee accounts are provisioned internally")
}

func (h *Handler) loginCustomer(w http.ResponseWriter, r *http.Request) {
	h.login(w, r, domain.KindCustomer)
}

func (h *Handler) loginEmployee(w http.ResponseWriter, r *http.Request) {
	h.login(w, r, domain.KindEmployee)
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request, kind domain.PrincipalKind) {
	var req application.LoginRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "login", err)
		return
	}
	req.IPAddress = readIP(r)
	req.UserAgent = r.UserAgent()

	result, err := h.service.Login(r.Context(), kind, req)
	if err != nil {
		writeMappedError(r.Context(), w, "login", err)
		return
	}

	h.setSessionCookies(w, result.Credentials)
	writeSuccess(w, http.StatusOK, result.Principal)
}

// refresh rotates the session. The refresh credential arrives only via its
// path-scoped cookie.
func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(refreshCookieName)
	if err != nil || cookie.Value == "" {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing refresh credential")
		return
	}

	result, err := h.service.Rotate(r.Context(), cookie.Value, clientFingerprint(r))
	if err != nil {
		h.clearSessionCookies(w)
		writeMappedError(r.Context(), w, "refresh", err)
		return
	}

	h.setSessionCookies(w, result.Credentials)
	writeSuccess(w, http.StatusOK, result.Principal)
}

// logout is best-effort: cookies are cleared even when the presented
// credentials are already invalid.
func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	var rawAccess, rawRefresh string
	if cookie, err := r.Cookie(accessCookieName); err == nil {
		rawAccess = cookie.Value
	}
	if cookie, err := r.Cookie(refreshCookieName); err == nil {
		rawRefresh = cookie.Value
	}

	h.service.Logout(r.Context(), rawAccess, rawRefresh, clientFingerprint(r))
	h.clearSessionCookies(w)
	writeMessage(w, http.StatusOK, "logged out")
}

type unlockRequest struct {
	Kind  string `json:"kind"`
	Email string `json:"email"`
}

// unlock clears a lockout ahead of its expiry (operator override).
func (h *Handler) unlock(w http.ResponseWriter, r *http.Request) {
	var req unlockRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "unlock", err)
		return
	}
	kind, err := domain.ParsePrincipalKind(req.Kind)
	if err != nil {
		writeMappedError(r.Context(), w, "unlock", err)
		return
	}

	if err := h.service.Unlock(r.Context(), kind, req.Email); err != nil {
		writeMappedError(r.Context(), w, "unlock", err)
		return
	}
	writeMessage(w, http.StatusOK, "account unlocked")
}
