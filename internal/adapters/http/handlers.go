package http

import (
	"net/http"
)

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeMessage(w, http.StatusOK, "ok")
}

func (h *Handler) readyz(w http.ResponseWriter, _ *http.Request) {
	writeMessage(w, http.StatusOK, "ready")
}

// csrfToken mints a fresh double-submit token: set as a session-scoped cookie
// and echoed in the body for the client to resubmit via the header.
func (h *Handler) csrfToken(w http.ResponseWriter, r *http.Request) {
	token, err := h.service.IssueCSRFToken(r.Context())
	if err != nil {
		writeMappedError(r.Context(), w, "csrf_token", err)
		return
	}
	h.setCSRFCookie(w, token)
	writeSuccess(w, http.StatusOK, map[string]string{"csrfToken": token})
}

// me returns the authenticated principal's summary.
func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing credentials")
		return
	}
	summary, err := h.service.FindPrincipal(r.Context(), claims.PrincipalID)
	if err != nil {
		writeMappedError(r.Context(), w, "me", err)
		return
	}
	writeSuccess(w, http.StatusOK, summary)
}
