package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/mkessler/hypercloud/internal/auth"
	"github.com/mkessler/hypercloud/internal/handlers"
	"github.com/mkessler/hypercloud/internal/middleware"
)

// RegisterRoutes registers all application routes under /v1. The
// session middleware runs on every route; handlers that need a session
// enforce it via RequireSession.
func RegisterRoutes(
	router chi.Router,
	authHandler *handlers.AuthHandler,
	userHandler *handlers.UserHandler,
	sessions *auth.SessionManager,
) {
	rateLimitConfig := middleware.DefaultAuthRateLimit()

	router.Route("/v1", func(r chi.Router) {
		r.Use(auth.SessionMiddleware(sessions))

		// Account lifecycle, rate limited per client IP
		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimitByIP(rateLimitConfig))
			r.Post("/register", authHandler.Register)
			r.Get("/verify", authHandler.Verify)
			r.Post("/verify", authHandler.Verify)
			r.Post("/login", authHandler.Login)
		})

		r.Post("/logout", authHandler.Logout)

		// Public profile
		r.Get("/users/{username}", userHandler.GetProfile)

		// Session required, rate limited per user
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireSession)
			r.Use(middleware.RateLimitBySession(middleware.DefaultAccountRateLimit()))
			r.Get("/account", userHandler.GetAccount)
			r.Post("/account", userHandler.UpdateAccount)
		})
	})
}
