// Package router assembles the gin engine: global middleware, the public,
// tenant and admin route groups, and the handlers mounted on them.
package router

import (
	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/erp/mfgerp/internal/infrastructure/auth"
	"github.com/erp/mfgerp/internal/infrastructure/config"
	"github.com/erp/mfgerp/internal/infrastructure/logger"
	"github.com/erp/mfgerp/internal/interfaces/http/middleware"
)

// RouteRegistrar defines the interface for registering routes
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// Config carries what the middleware chain needs
type Config struct {
	ServiceName    string
	TracingEnabled bool
	// Meter enables HTTP metrics when set
	Meter       metric.Meter
	HTTP        config.HTTPConfig
	Tenancy     config.TenancyConfig
	JWT         *auth.JWTService
	Revocations auth.RevocationList
	// RateLimiter limits scoped routes per tenant when set
	RateLimiter *limiter.Limiter
	// ErrorReporting sends panics and 5xx responses to Sentry
	ErrorReporting bool
	Logger         *zap.Logger
}

// Router manages HTTP route registration
type Router struct {
	engine     *gin.Engine
	cfg        Config
	apiVersion string
	public     []RouteRegistrar
	tenant     []RouteRegistrar
	admin      []RouteRegistrar
}

// RouterOption is a functional option for Router configuration
type RouterOption func(*Router)

// WithAPIVersion sets the API version prefix (e.g., "v1", "v2")
func WithAPIVersion(version string) RouterOption {
	return func(r *Router) {
		r.apiVersion = version
	}
}

// NewRouter creates a Router and installs the global middleware on engine
func NewRouter(engine *gin.Engine, cfg Config, opts ...RouterOption) *Router {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	r := &Router{engine: engine, cfg: cfg, apiVersion: "v1"}
	for _, opt := range opts {
		opt(r)
	}

	engine.Use(
		middleware.RequestID(),
		logger.GinMiddleware(cfg.Logger),
		logger.Recovery(cfg.Logger),
	)
	if cfg.ErrorReporting {
		engine.Use(middleware.ErrorReporting())
	}
	engine.Use(
		middleware.Secure(),
		middleware.CORSWithConfig(middleware.CORSConfigFrom(cfg.HTTP)),
	)
	if cfg.HTTP.MaxBodySize > 0 {
		engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))
	}
	engine.Use(
		middleware.Tracing(cfg.ServiceName, cfg.TracingEnabled),
		middleware.SpanErrorMarker(),
	)
	if cfg.Meter != nil {
		engine.Use(middleware.HTTPMetrics(cfg.Meter, cfg.Logger))
	}
	return r
}

// Public registers routes that need no authentication
func (r *Router) Public(registrars ...RouteRegistrar) *Router {
	r.public = append(r.public, registrars...)
	return r
}

// Tenant registers routes that run under the caller's tenant context
func (r *Router) Tenant(registrars ...RouteRegistrar) *Router {
	r.tenant = append(r.tenant, registrars...)
	return r
}

// Admin registers platform admin routes under /admin
func (r *Router) Admin(registrars ...RouteRegistrar) *Router {
	r.admin = append(r.admin, registrars...)
	return r
}

// Setup mounts every registered group on the engine
func (r *Router) Setup() *gin.Engine {
	api := r.engine.Group("/api/" + r.apiVersion)
	for _, reg := range r.public {
		reg.RegisterRoutes(api)
	}

	jwtCfg := middleware.DefaultJWTConfig(r.cfg.JWT)
	jwtCfg.Revocations = r.cfg.Revocations
	jwtCfg.Logger = r.cfg.Logger

	scoped := api.Group("")
	scoped.Use(
		middleware.JWTAuthMiddlewareWithConfig(jwtCfg),
		middleware.TenantContextMiddleware(middleware.TenantContextConfigFrom(r.cfg.Tenancy, r.cfg.Logger)),
		middleware.TracingAttributeInjector(),
	)
	if r.cfg.RateLimiter != nil {
		scoped.Use(middleware.TenantRateLimit(r.cfg.RateLimiter, r.cfg.Logger))
	}
	for _, reg := range r.tenant {
		reg.RegisterRoutes(scoped)
	}

	admin := scoped.Group("/admin")
	admin.Use(middleware.RequireRole(auth.RoleAdmin))
	for _, reg := range r.admin {
		reg.RegisterRoutes(admin)
	}
	return r.engine
}

// RouteFunc adapts a function to RouteRegistrar
type RouteFunc func(rg *gin.RouterGroup)

// RegisterRoutes implements RouteRegistrar
func (f RouteFunc) RegisterRoutes(rg *gin.RouterGroup) {
	f(rg)
}
