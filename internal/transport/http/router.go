package http

import (
	"net/http"

	"github.com/calling-tree-api/internal/application/escalation"
	"github.com/calling-tree-api/internal/config"
	"github.com/calling-tree-api/internal/domain"
	jwtinfra "github.com/calling-tree-api/internal/infrastructure/jwt"
	"github.com/calling-tree-api/internal/transport/http/handler"
	appmiddleware "github.com/calling-tree-api/internal/transport/http/middleware"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/time/rate"
)

// Deps holds everything the router needs wired in.
type Deps struct {
	Engine      escalation.Service
	Progress    handler.ProgressReader
	JWTProvider *jwtinfra.Provider
}

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	var authMw func(http.Handler) http.Handler
	if deps.JWTProvider != nil {
		authMw = appmiddleware.Auth(deps.JWTProvider)
	} else {
		authMw = func(next http.Handler) http.Handler { return next }
	}

	// 5 requests/second, burst of 10 — trigger and escalate are fan-out heavy,
	// so they get the tighter limit.
	sensitiveRL := appmiddleware.NewRateLimiter(rate.Limit(5), 10)

	healthH := handler.NewHealthHandler()
	notifH := handler.NewNotificationHandler(deps.Engine, deps.Progress)

	r.Route("/v1", func(r chi.Router) {
		// ── Public routes (no auth) ──────────────────────────────────────────
		r.Get("/health-check/{action}", healthH.Ping)
		r.Post("/health-check/{action}", healthH.Ping)

		// ── Authenticated routes ─────────────────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(authMw)

			// Any authenticated user
			r.Post("/notifications/{id}/acknowledge", notifH.Acknowledge)
			r.Post("/notifications/{id}/delivered", notifH.Delivered)
			r.Get("/notifications/{id}", notifH.Get)
			r.Get("/notifications/{id}/status", notifH.Status)
			r.Get("/notifications/{id}/levels/{level}/complete", notifH.LevelComplete)

			// Initiation and manual escalation are restricted
			r.Group(func(r chi.Router) {
				r.Use(appmiddleware.RequireRole(domain.RoleAdmin, domain.RoleManager))

				r.With(sensitiveRL.Limit).Post("/notifications", notifH.Trigger)
				r.With(sensitiveRL.Limit).Post("/notifications/{id}/escalate", notifH.Escalate)
				r.Get("/trees/{treeID}/notifications", notifH.ListByTree)
			})
		})
	})

	return r
}
