package http

import (
	"net/http"
	"time"
)

const (
	defaultEventLimit   = 50
	maxEventLimit       = 500
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

func clampLimit(n, fallback, max int) int {
	if n <= 0 {
		return fallback
	}
	if n > max {
		return max
	}
	return n
}

func (h *Handler) securityEvents(w http.ResponseWriter, r *http.Request) {
	limit := clampLimit(parseIntDefault(r.URL.Query().Get("limit"), defaultEventLimit), defaultEventLimit, maxEventLimit)

	events, err := h.service.RecentEvents(r.Context(), limit)
	if err != nil {
		writeMappedError(r.Context(), w, "security_events", err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{
		"events": events,
		"count":  len(events),
	})
}

func (h *Handler) securityStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.EventStats(r.Context())
	if err != nil {
		writeMappedError(r.Context(), w, "security_stats", err)
		return
	}
	writeSuccess(w, http.StatusOK, stats)
}

func (h *Handler) loginHistory(w http.ResponseWriter, r *http.Request) {
	limit := clampLimit(parseIntDefault(r.URL.Query().Get("limit"), defaultHistoryLimit), defaultHistoryLimit, maxHistoryLimit)

	var since *time.Time
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "since must be RFC3339")
			return
		}
		since = &parsed
	}

	attempts, err := h.service.LoginHistory(r.Context(), limit, since)
	if err != nil {
		writeMappedError(r.Context(), w, "login_history", err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{
		"attempts": attempts,
		"count":    len(attempts),
	})
}
