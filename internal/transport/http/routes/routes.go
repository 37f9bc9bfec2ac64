package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/arklim/timeclock-auth/internal/core/port"
	"github.com/arklim/timeclock-auth/internal/infra/config"
	"github.com/arklim/timeclock-auth/internal/transport/http/handlers"
	"github.com/arklim/timeclock-auth/internal/transport/http/middleware"
)

// ServiceSet groups the services the HTTP layer depends on.
type ServiceSet struct {
	Auth  handlers.LoginService
	Users interface {
		handlers.SessionUserResolver
		handlers.UserManager
	}
}

// Dependencies encapsulates the objects required to register routes.
type Dependencies struct {
	Config      *config.AppConfig
	Logger      *zap.Logger
	RateLimiter *middleware.RateLimiter
	Metrics     *middleware.HTTPMetrics
	// MetricsHandler serves /metrics; promhttp.Handler() when nil.
	MetricsHandler http.Handler
	Services       ServiceSet
	Sessions       port.SessionIssuer
	Database       HealthChecker
	Cache          HealthChecker
}

// HealthChecker exposes readiness behaviour for a backing dependency.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Register configures the Gin engine with routes and middleware.
func Register(deps Dependencies) *gin.Engine {
	if deps.Config.App.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if err := r.SetTrustedProxies(deps.Config.App.TrustedProxies); err != nil {
		deps.Logger.Error("invalid trusted proxies, forwarding headers ignored",
			zap.Strings("trusted_proxies", deps.Config.App.TrustedProxies),
			zap.Error(err),
		)
		_ = r.SetTrustedProxies(nil)
	}
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.EnrichContext())
	r.Use(deps.Metrics.Handler())
	if deps.Sessions != nil {
		r.Use(middleware.SessionFromCookie(deps.Sessions, cookieName(deps.Config)))
	}
	r.Use(middleware.Logger(deps.Logger))

	healthOptions := make([]handlers.HealthOption, 0, 2)
	if deps.Database != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("postgres", deps.Database.Ping))
	}
	if deps.Cache != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("redis", deps.Cache.Ping))
	}
	healthHandler := handlers.NewHealthHandler(healthOptions...)

	r.GET("/healthz", healthHandler.Status)
	r.GET("/readyz", healthHandler.Readiness)

	metricsHandler := deps.MetricsHandler
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	r.GET("/metrics", gin.WrapH(metricsHandler))

	if deps.Services.Auth == nil || deps.Services.Users == nil {
		return r
	}

	api := r.Group("/api/v1")
	{
		authHandler := handlers.NewAuthHandler(deps.Services.Auth, deps.Services.Users, handlers.CookieSettings{
			Name:   cookieName(deps.Config),
			Secure: deps.Config.App.IsProduction(),
			TTL:    deps.Config.Session.TTL,
		})
		authHandler.RegisterRoutes(api.Group("/auth"), buildLoginMiddlewares(deps)...)

		adminUsers := api.Group("/admin/users", middleware.RequireAdmin())
		handlers.NewUserHandler(deps.Services.Users).RegisterRoutes(adminUsers)
	}

	return r
}

func cookieName(cfg *config.AppConfig) string {
	if cfg.Session.CookieName != "" {
		return cfg.Session.CookieName
	}
	return "session"
}

func buildLoginMiddlewares(deps Dependencies) []gin.HandlerFunc {
	if deps.RateLimiter == nil {
		return nil
	}

	limit := deps.Config.RateLimit.LoginMaxAttempts
	if limit <= 0 {
		return nil
	}

	window := deps.Config.RateLimit.WindowDuration
	if window <= 0 {
		window = time.Minute
	}

	rule := middleware.RateLimitRule{
		Name:       "auth_login_ip",
		Limit:      limit,
		Window:     window,
		Identifier: middleware.ClientIPIdentifier(),
	}

	return []gin.HandlerFunc{deps.RateLimiter.RateLimit(rule)}
}
