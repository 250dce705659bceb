package routes

import (
	"github.com/floretapp/floret/internal/auth"
	"github.com/floretapp/floret/internal/handlers"
	"github.com/floretapp/floret/internal/middleware"
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all application routes
func RegisterRoutes(
	router chi.Router,
	authHandler *handlers.AuthHandler,
	userHandler *handlers.UserHandler,
	deviceHandler *handlers.DeviceHandler,
	tokenManager *auth.TokenManager,
) {
	authRateLimit := middleware.DefaultAuthRateLimit()
	linkRateLimit := middleware.DefaultMagicLinkRateLimit()

	// Public routes - no authentication required
	router.With(middleware.RateLimitByIP(authRateLimit)).Post("/auth/signup", authHandler.Signup)
	router.With(middleware.RateLimitByIP(authRateLimit)).Post("/auth/login", authHandler.Login)
	router.With(middleware.RateLimitByIP(authRateLimit)).Post("/auth/password-reset/request", authHandler.RequestPasswordReset)
	router.With(middleware.RateLimitByIP(linkRateLimit)).Get("/magic_link/", authHandler.MagicLink)

	// Protected routes - session required
	router.Group(func(r chi.Router) {
		r.Use(auth.SessionMiddleware(tokenManager))

		r.Post("/auth/logout", authHandler.Logout)

		// Reached via the session the reset magic link just established
		r.Post("/auth/password-reset", authHandler.ResetPassword)

		r.Get("/profile", userHandler.GetProfile)
		r.Put("/profile", userHandler.UpdateProfile)

		r.Get("/devices", deviceHandler.ListDevices)
		r.Get("/devices/{id}", deviceHandler.GetDevice)
		r.Put("/devices/{id}/name", deviceHandler.RenameDevice)
		r.Post("/devices/{id}/trust", deviceHandler.ToggleTrust)
		r.Post("/devices/{id}/block", deviceHandler.BlockDevice)
		r.Post("/devices/{id}/unblock", deviceHandler.UnblockDevice)
		r.Post("/devices/{id}/forget", deviceHandler.ForgetDevice)
		r.Delete("/devices/{id}", deviceHandler.DeleteDevice)
		r.Post("/devices/{id}/origins/{originID}/block", deviceHandler.ToggleOriginBlock)
	})
}
