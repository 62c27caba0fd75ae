package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/clearpay/portal/internal/application"
)

// Handler is the HTTP adapter entrypoint for the portal security surface.
// Keeping only the application dependency here preserves clean adapter boundaries.
type Handler struct {
	service *application.Service
	cookies CookiePolicy
}

// NewHandler constructs an HTTP handler bound to the application service.
func NewHandler(service *application.Service, cookies CookiePolicy) *Handler {
	return &Handler{service: service, cookies: cookies}
}

// NewRouter registers portal HTTP routes and the middleware pipeline.
// Order matters: request identity and recovery first, then the advisory
// classifier, then the rate limiter, so every request is fingerprinted and
// budgeted before any handler runs.
func NewRouter(handler *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(recoverMiddleware)
	r.Use(loggingMiddleware)
	r.Use(handler.classifyMiddleware)
	r.Use(handler.rateLimitMiddleware)

	r.Get("/healthz", handler.healthz)
	r.Get("/readyz", handler.readyz)

	r.Route("/portal/v1", func(r chi.Router) {
		r.Get("/csrf-token", handler.csrfToken)

		r.Route("/auth", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(handler.csrfMiddleware)
				r.Post("/customer/register", handler.registerCustomer)
				r.Post("/employee/register", handler.registerEmployee)
				r.Post("/customer/login", handler.loginCustomer)
				r.Post("/employee/login", handler.loginEmployee)
			})

			// Refresh and logout ride on SameSite=Strict cookies and carry no
			// JSON body, so the double-submit guard does not apply.
			r.Post("/refresh", handler.refresh)
			r.Post("/logout", handler.logout)
		})

		r.Group(func(r chi.Router) {
			r.Use(handler.authMiddleware)
			r.Get("/me", handler.me)

			r.Group(func(r chi.Router) {
				r.Use(handler.requireEmployee)
				r.With(handler.csrfMiddleware).Post("/security/unlock", handler.unlock)
				r.Get("/security/events", handler.securityEvents)
				r.Get("/security/stats", handler.securityStats)
				r.Get("/security/login-history", handler.loginHistory)
			})
		})
	})

	return r
}
