// Package httptransport composes the HTTP surface: middleware stack, route
// classification into rate-limit tiers, authentication, and the role and
// ownership gates. Handlers stay thin; everything interesting happens in the
// domain services.
package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"gatehouse/internal/auth/device"
	"gatehouse/internal/auth/models"
	"gatehouse/internal/authz"
	"gatehouse/internal/platform/health"
	platformmetrics "gatehouse/internal/platform/metrics"
	"gatehouse/internal/platform/middleware"
	ratelimitmetrics "gatehouse/internal/ratelimit/metrics"
	ratelimitmodels "gatehouse/internal/ratelimit/models"
)

// RouterDeps carries everything the router wires together.
type RouterDeps struct {
	Auth           *AuthHandler
	Accounts       *AccountHandler
	Health         *health.Handler
	Metrics        *platformmetrics.HTTPMetrics
	LimiterMetrics *ratelimitmetrics.Metrics
	Sessions       authz.SessionValidator
	Limiter        Limiter
	Global         *rate.Limiter
	Logger         *slog.Logger
	Production     bool
}

// NewRouter builds the full request pipeline.
//
// Tier assignment per route group: registration is strict, login and
// password reset have their own narrow tiers, authenticated reads are
// standard, admin routes relaxed, anonymous content public. Auth routes
// additionally suppress caching.
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.ClientIP)
	r.Use(middleware.Logger(deps.Logger))
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Middleware)
	}
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(middleware.SecurityHeaders(deps.Production))
	if deps.Global != nil {
		r.Use(GlobalThrottle(deps.Global, deps.LimiterMetrics))
	}

	limit := func(class ratelimitmodels.EndpointClass) func(http.Handler) http.Handler {
		return RateLimit(deps.Limiter, class, deps.Logger)
	}

	deps.Health.Register(r)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/auth", func(r chi.Router) {
		r.Use(middleware.NoStore)
		r.Use(middleware.ContentTypeJSON)
		r.Use(device.Middleware(device.NewService(true)))

		r.With(limit(ratelimitmodels.ClassLogin)).Post("/login", deps.Auth.handleLogin)
		r.With(limit(ratelimitmodels.ClassStrict)).Post("/register", deps.Auth.handleRegister)
		r.With(limit(ratelimitmodels.ClassPasswordReset)).Post("/password-reset", deps.Auth.handlePasswordReset)

		r.Group(func(r chi.Router) {
			r.Use(authz.Authenticate(deps.Sessions))
			r.With(limit(ratelimitmodels.ClassStandard)).Get("/me", deps.Accounts.handleMe)
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(authz.Authenticate(deps.Sessions))

		r.With(
			limit(ratelimitmodels.ClassStandard),
			authz.RequireOwnerOrAdminMiddleware("id"),
		).Get("/accounts/{id}", deps.Accounts.handleGetAccount)

		r.With(
			limit(ratelimitmodels.ClassRelaxed),
			authz.RequireRolesMiddleware(models.RoleAdmin),
		).Get("/admin/accounts/{id}", deps.Accounts.handleGetAccount)
	})

	return r
}
