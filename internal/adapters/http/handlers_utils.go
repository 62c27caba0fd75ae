package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/clearpay/portal/internal/domain"
)

func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("request body must contain a single JSON value")
	}
	return nil
}

func parseIntDefault(raw string, fallback int) int {
	if strings.TrimSpace(raw) == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

func readIP(r *http.Request) string {
	if xff := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); xff != "" {
		parts := strings.Split(xff, ",")
		if len(parts) > 0 {
			return strings.TrimSpace(parts[0])
		}
	}
	host := strings.TrimSpace(r.RemoteAddr)
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		return host[:idx]
	}
	return host
}

// writeMappedError translates domain errors to HTTP once, including the
// retry hints carried by lockout and rate-limit errors.
func writeMappedError(ctx context.Context, w http.ResponseWriter, operation string, err error) {
	var lockoutErr *domain.LockoutError
	if errors.As(err, &lockoutErr) {
		minutes := int(math.Ceil(lockoutErr.Remaining.Minutes()))
		if minutes < 1 {
			minutes = 1
		}
		logHTTPOperationError(ctx, operation, http.StatusLocked, "ACCOUNT_LOCKED", "account temporarily locked", err)
		w.Header().Set("Retry-After", strconv.Itoa(int(lockoutErr.Remaining.Seconds())))
		writeJSON(w, http.StatusLocked, apiError{
			Status:            "error",
			Code:              "ACCOUNT_LOCKED",
			Message:           "account temporarily locked",
			RetryAfterMinutes: minutes,
		})
		return
	}

	var rateErr *domain.RateLimitError
	if errors.As(err, &rateErr) {
		seconds := int(math.Ceil(rateErr.RetryAfter.Seconds()))
		if seconds < 1 {
			seconds = 1
		}
		logHTTPOperationError(ctx, operation, http.StatusTooManyRequests, "RATE_LIMITED", "too many requests", err)
		w.Header().Set("Retry-After", strconv.Itoa(seconds))
		writeError(w, http.StatusTooManyRequests, "RATE_LIMITED", "too many requests")
		return
	}

	status, code, msg := mapDomainError(err)
	logHTTPOperationError(ctx, operation, status, code, msg, err)
	writeError(w, status, code, msg)
}

func writeValidationError(ctx context.Context, w http.ResponseWriter, operation string, err error) {
	code := "VALIDATION_ERROR"
	msg := err.Error()
	logHTTPOperationError(ctx, operation, http.StatusBadRequest, code, msg, err)
	writeError(w, http.StatusBadRequest, code, msg)
}
