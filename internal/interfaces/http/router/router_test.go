package router

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erp/mfgerp/internal/domain/tenancy"
	"github.com/erp/mfgerp/internal/infrastructure/auth"
	"github.com/erp/mfgerp/internal/infrastructure/config"
	"github.com/erp/mfgerp/internal/interfaces/http/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newJWT() *auth.JWTService {
	return auth.NewJWTService(config.JWTConfig{
		Secret:                "router-test-secret-key-32-chars!",
		Issuer:                "mfgerp-test",
		AccessTokenExpiration: time.Minute,
	})
}

func bearer(t *testing.T, svc *auth.JWTService, in auth.GenerateTokenInput) string {
	t.Helper()
	token, _, err := svc.GenerateAccessToken(in)
	require.NoError(t, err)
	return middleware.BearerPrefix + token
}

func newTestRouter(jwt *auth.JWTService) *gin.Engine {
	r := NewRouter(gin.New(), Config{ServiceName: "test", JWT: jwt})
	r.Public(RouteFunc(func(rg *gin.RouterGroup) {
		rg.GET("/health", func(c *gin.Context) { c.String(http.StatusOK, "up") })
	}))
	r.Tenant(RouteFunc(func(rg *gin.RouterGroup) {
		rg.GET("/whoami", func(c *gin.Context) {
			tc, ok := tenancy.FromContext(c.Request.Context())
			if !ok {
				c.Status(http.StatusInternalServerError)
				return
			}
			c.String(http.StatusOK, tc.String())
		})
	}))
	r.Admin(RouteFunc(func(rg *gin.RouterGroup) {
		rg.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	}))
	return r.Setup()
}

func TestRouter_PublicRoutesNeedNoToken(t *testing.T) {
	engine := newTestRouter(newJWT())

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
}

func TestRouter_TenantRoutes(t *testing.T) {
	jwt := newJWT()
	engine := newTestRouter(jwt)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/whoami", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/whoami", nil)
	req.Header.Set(middleware.AuthHeaderKey, bearer(t, jwt, auth.GenerateTokenInput{TenantID: 8, UserID: 2}))
	req.Header.Set("x-branch-id", "4")
	w = httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "tenant=8 branch=4", w.Body.String())
}

func TestRouter_AdminRoutesNeedRole(t *testing.T) {
	jwt := newJWT()
	engine := newTestRouter(jwt)

	send := func(roles ...string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/ping", nil)
		req.Header.Set(middleware.AuthHeaderKey, bearer(t, jwt, auth.GenerateTokenInput{UserID: 2, Roles: roles}))
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusForbidden, send())
	assert.Equal(t, http.StatusOK, send(auth.RoleAdmin))
}

func TestRouter_WithAPIVersion(t *testing.T) {
	r := NewRouter(gin.New(), Config{JWT: newJWT()}, WithAPIVersion("v2"))
	r.Public(RouteFunc(func(rg *gin.RouterGroup) {
		rg.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	}))
	engine := r.Setup()

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v2/ping", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_BodyLimit(t *testing.T) {
	r := NewRouter(gin.New(), Config{JWT: newJWT(), HTTP: config.HTTPConfig{MaxBodySize: 8}})
	r.Public(RouteFunc(func(rg *gin.RouterGroup) {
		rg.POST("/echo", func(c *gin.Context) { c.Status(http.StatusOK) })
	}))
	engine := r.Setup()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/echo", nil)
	req.ContentLength = 64
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestRouter_TenantRateLimit(t *testing.T) {
	jwt := newJWT()
	lim, err := middleware.NewTenantLimiter("1-M", nil, "")
	require.NoError(t, err)
	r := NewRouter(gin.New(), Config{JWT: jwt, RateLimiter: lim})
	r.Public(RouteFunc(func(rg *gin.RouterGroup) {
		rg.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	}))
	r.Tenant(RouteFunc(func(rg *gin.RouterGroup) {
		rg.GET("/orders", func(c *gin.Context) { c.Status(http.StatusOK) })
	}))
	engine := r.Setup()

	token := bearer(t, jwt, auth.GenerateTokenInput{TenantID: 3, UserID: 1})
	send := func(path string) int {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set(middleware.AuthHeaderKey, token)
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, send("/api/v1/orders"))
	assert.Equal(t, http.StatusTooManyRequests, send("/api/v1/orders"))
	// public routes are not limited
	assert.Equal(t, http.StatusOK, send("/api/v1/health"))
	assert.Equal(t, http.StatusOK, send("/api/v1/health"))
}

func TestRouter_ErrorReportingKeepsRecovery(t *testing.T) {
	r := NewRouter(gin.New(), Config{JWT: newJWT(), ErrorReporting: true})
	r.Public(RouteFunc(func(rg *gin.RouterGroup) {
		rg.GET("/boom", func(c *gin.Context) { panic("allocator exploded") })
	}))
	engine := r.Setup()

	w := httptest.NewRecorder()
	assert.NotPanics(t, func() {
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/boom", nil))
	})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
