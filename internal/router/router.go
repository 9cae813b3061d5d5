package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"go-shop-admin/internal/config"
	"go-shop-admin/internal/handler"
	"go-shop-admin/internal/middleware"
)

// Handlers is the set of HTTP handlers mounted by New.
type Handlers struct {
	Health     *handler.HealthHandler
	Auth       *handler.AuthHandler
	OAuth      *handler.OAuthHandler
	User       *handler.UserHandler
	Role       *handler.RoleHandler
	Permission *handler.PermissionHandler
	Order      *handler.OrderHandler
	Audit      *handler.AuditHandler
}

func New(cfg *config.Config, authMiddleware *middleware.AuthMiddleware, h Handlers) http.Handler {
	r := chi.NewRouter()
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(cfg.RateLimitRPM, cfg.AuthRateLimitRPM)

	r.Use(middleware.ClientIP(cfg.TrustedProxies))
	r.Use(middleware.Recovery)
	r.Use(middleware.Logging)
	r.Use(middleware.Metrics)
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(middleware.SecurityHeaders)
	r.Use(rateLimitMiddleware.Handler)

	r.Get("/health", h.Health.Health)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	authed := authMiddleware.RequireAuth
	can := authMiddleware.RequirePermissions

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(middleware.Timeout(cfg.RequestTimeout))

		api.Route("/auth", func(auth chi.Router) {
			auth.Post("/register", h.Auth.Register)
			auth.Post("/login", h.Auth.Login)
			auth.Post("/logout", h.Auth.Logout)
			auth.Post("/refresh", h.Auth.Refresh)
			auth.Post("/verify-email", h.Auth.VerifyEmail)
			auth.Post("/resend-verification", h.Auth.ResendVerification)
			auth.Post("/forgot-password", h.Auth.ForgotPassword)
			auth.Post("/verify-reset-code", h.Auth.VerifyResetCode)
			auth.Post("/change-password", h.Auth.ChangePassword)
			auth.With(authed).Post("/reset-password", h.Auth.ResetPassword)
			auth.With(authed).Get("/me", h.Auth.Me)
			auth.With(authed).Put("/profile", h.Auth.UpdateProfile)

			auth.Get("/{provider}", h.OAuth.Redirect)
			auth.Get("/{provider}/callback", h.OAuth.Callback)
		})

		api.Group(func(admin chi.Router) {
			admin.Use(authed)

			admin.With(can("user:read")).Get("/users", h.User.List)
			admin.With(can("user:read")).Get("/users/{id}", h.User.Get)
			admin.With(can("user:create")).Post("/users", h.User.Create)
			admin.With(can("user:update")).Put("/users/{id}", h.User.Update)
			admin.With(can("user:update")).Patch("/users/status/{id}", h.User.SetStatus)
			admin.With(can("user:update")).Patch("/users/{id}", h.User.SoftDelete)
			admin.With(can("user:delete")).Delete("/users/{id}", h.User.Delete)

			admin.With(can("role:read")).Get("/roles", h.Role.List)
			admin.With(can("role:read")).Get("/roles/{id}", h.Role.Get)
			admin.With(can("role:create")).Post("/roles", h.Role.Create)
			admin.With(can("role:update")).Put("/roles/{id}", h.Role.Update)
			admin.With(can("role:update")).Patch("/roles/{id}", h.Role.SoftDelete)
			admin.With(can("role:delete")).Delete("/roles/{id}", h.Role.Delete)

			admin.With(can("permission:read")).Get("/permissions", h.Permission.List)
			admin.With(can("permission:read")).Get("/permissions/{id}", h.Permission.Get)
			admin.With(can("permission:create")).Post("/permissions", h.Permission.Create)
			admin.With(can("permission:update")).Put("/permissions/{id}", h.Permission.Update)
			admin.With(can("permission:update")).Patch("/permissions/{id}", h.Permission.SoftDelete)
			admin.With(can("permission:delete")).Delete("/permissions/{id}", h.Permission.Delete)

			admin.With(can("order:create")).Post("/orders", h.Order.Create)
			admin.With(can("order:get")).Get("/orders/{userId}", h.Order.ListByUser)

			admin.With(can("audit:read")).Get("/audit", h.Audit.List)
		})
	})

	return r
}
