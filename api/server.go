/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:        Request logging
  2. Recoverer:     Panic recovery (500 instead of crash)
  3. RequestID:     Unique ID per request for tracing
  4. CORS:          Cross-origin requests for the student/admin frontends
  5. Authenticate:  Bearer JWT -> auth.Identity in the request context
                    (everything under /api)

ROUTE GROUPS:
  /api/hostel-exit/*   Exit requests
  /healthz             Liveness, unauthenticated

SEE ALSO:
  - handlers.go: Handler implementations
  - auth/token.go: Token verification
  - cmd/server/main.go: Server startup
*/
package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/warp/exit-engine/auth"
)

// DefaultAllowedOrigins is used when no origins are configured.
var DefaultAllowedOrigins = []string{"http://localhost:5173", "http://localhost:8080"}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	if len(allowedOrigins) == 0 {
		allowedOrigins = DefaultAllowedOrigins
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", h.Health)

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Use(h.Authenticate)

		r.Route("/hostel-exit", func(r chi.Router) {
			r.Post("/", h.SubmitExitRequest)
			r.Get("/", h.ListExitRequests)
			r.Get("/my", h.ListMyExitRequests)
			r.Get("/{id}", h.GetExitRequest)
			r.Post("/{id}/approve", h.ApproveExitRequest)
			r.Post("/{id}/reject", h.RejectExitRequest)
		})
	})

	return r
}

// Authenticate verifies the bearer token and stores the identity in the
// request context. Authorization decisions are left to exitreq.Service.
func (h *Handler) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := auth.BearerToken(r.Header.Get("Authorization"))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Authentication required", err)
			return
		}

		id, err := h.Verifier.Verify(token)
		if err != nil {
			msg := "Invalid token"
			if errors.Is(err, auth.ErrExpiredToken) {
				msg = "Token expired"
			}
			writeError(w, http.StatusUnauthorized, msg, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), id)))
	})
}
