package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/erp/mfgerp/internal/domain/tenancy"
	"github.com/erp/mfgerp/internal/infrastructure/auth"
	"github.com/erp/mfgerp/internal/infrastructure/logger"
	"github.com/erp/mfgerp/internal/interfaces/http/dto"
)

type scopeCapture struct {
	tc      tenancy.Context
	found   bool
	ctxSeen context.Context
}

func tenantRouter(t *testing.T, cfg TenantContextConfig, seen *scopeCapture) (*gin.Engine, *auth.JWTService) {
	t.Helper()
	svc := newTestJWTService()
	router := gin.New()
	router.Use(JWTAuthMiddleware(svc), TenantContextMiddleware(cfg))
	router.GET("/test", func(c *gin.Context) {
		seen.tc, seen.found = tenancy.FromContext(c.Request.Context())
		seen.ctxSeen = c.Request.Context()
		c.JSON(http.StatusOK, dto.Response{Success: true, Scope: ScopeAnnotation(c)})
	})
	return router, svc
}

func TestTenantContextMiddleware_TenantAndBranch(t *testing.T) {
	seen := &scopeCapture{}
	router, svc := tenantRouter(t, TenantContextConfig{}, seen)
	token := issueToken(t, svc, auth.GenerateTokenInput{TenantID: 42, UserID: 7})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set(AuthHeaderKey, BearerPrefix+token)
	req.Header.Set("company-branch-id", "3")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, seen.found)
	assert.Equal(t, int64(42), seen.tc.TenantID)
	assert.Equal(t, int64(7), seen.tc.ActorID)
	require.True(t, seen.tc.HasBranch())
	assert.Equal(t, int64(3), seen.tc.Branch())

	assert.Equal(t, int64(42), logger.GetTenantID(seen.ctxSeen))
	assert.Equal(t, int64(3), logger.GetBranchID(seen.ctxSeen))
	assert.Equal(t, int64(7), logger.GetUserID(seen.ctxSeen))
}

func TestTenantContextMiddleware_HeaderPriority(t *testing.T) {
	seen := &scopeCapture{}
	router, svc := tenantRouter(t, TenantContextConfig{}, seen)
	token := issueToken(t, svc, auth.GenerateTokenInput{TenantID: 42, UserID: 7})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set(AuthHeaderKey, BearerPrefix+token)
	req.Header.Set("x-branch-id", "9")
	req.Header.Set("company_branch_id", "5")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(5), seen.tc.Branch())
}

func TestTenantContextMiddleware_InvalidBranchHeader(t *testing.T) {
	seen := &scopeCapture{}
	router, svc := tenantRouter(t, TenantContextConfig{}, seen)
	token := issueToken(t, svc, auth.GenerateTokenInput{TenantID: 42, UserID: 7})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set(AuthHeaderKey, BearerPrefix+token)
	req.Header.Set("company-branch-id", "main")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, dto.ErrCodeInvalidInput, decodeError(t, w).Code)
	assert.False(t, seen.found)
}

func TestTenantContextMiddleware_ClaimBranchIsFallback(t *testing.T) {
	seen := &scopeCapture{}
	router, svc := tenantRouter(t, TenantContextConfig{}, seen)
	branch := int64(11)
	token := issueToken(t, svc, auth.GenerateTokenInput{TenantID: 42, BranchID: &branch, UserID: 7})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set(AuthHeaderKey, BearerPrefix+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(11), seen.tc.Branch())

	req.Header.Set("company-branch-id", "2")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(2), seen.tc.Branch())
}

func TestTenantContextMiddleware_NoTenantPropagates(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	seen := &scopeCapture{}
	router, svc := tenantRouter(t, TenantContextConfig{Logger: zap.New(core)}, seen)
	token := issueToken(t, svc, auth.GenerateTokenInput{UserID: 1, Roles: []string{auth.RoleAdmin}})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set(AuthHeaderKey, BearerPrefix+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, seen.found)
	assert.False(t, seen.tc.HasTenant())
	assert.Error(t, seen.tc.Validate())
	assert.Equal(t, 1, logs.FilterMessage("request carries no tenant").Len())
}

func TestTenantContextMiddleware_Annotation(t *testing.T) {
	decodeScope := func(w *httptest.ResponseRecorder) *dto.Scope {
		var resp dto.Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		return resp.Scope
	}

	t.Run("off by default", func(t *testing.T) {
		router, svc := tenantRouter(t, TenantContextConfig{}, &scopeCapture{})
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set(AuthHeaderKey, BearerPrefix+issueToken(t, svc, auth.GenerateTokenInput{TenantID: 1, UserID: 1}))
		req.Header.Set("company-branch-id", "3")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Nil(t, decodeScope(w))
	})

	t.Run("branch echoed", func(t *testing.T) {
		router, svc := tenantRouter(t, TenantContextConfig{AnnotateResponses: true}, &scopeCapture{})
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set(AuthHeaderKey, BearerPrefix+issueToken(t, svc, auth.GenerateTokenInput{TenantID: 1, UserID: 1}))
		req.Header.Set("company-branch-id", "3")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		scope := decodeScope(w)
		require.NotNil(t, scope)
		require.NotNil(t, scope.BranchID)
		assert.Equal(t, int64(3), *scope.BranchID)
	})

	t.Run("tenant-wide echoes null branch", func(t *testing.T) {
		router, svc := tenantRouter(t, TenantContextConfig{AnnotateResponses: true}, &scopeCapture{})
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set(AuthHeaderKey, BearerPrefix+issueToken(t, svc, auth.GenerateTokenInput{TenantID: 1, UserID: 1}))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Contains(t, w.Body.String(), `"scope":{"branch_id":null}`)
	})
}

func TestTenantContextMiddleware_TeardownAfterPanic(t *testing.T) {
	svc := newTestJWTService()
	var after context.Context

	router := gin.New()
	router.Use(func(c *gin.Context) {
		defer func() {
			after = c.Request.Context()
			if r := recover(); r != nil {
				c.AbortWithStatus(http.StatusInternalServerError)
			}
		}()
		c.Next()
	})
	router.Use(JWTAuthMiddleware(svc), TenantContextMiddleware(TenantContextConfig{}))
	router.GET("/boom", func(c *gin.Context) {
		_, ok := tenancy.FromContext(c.Request.Context())
		require.True(t, ok)
		panic("handler failed")
	})

	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	req.Header.Set(AuthHeaderKey, BearerPrefix+issueToken(t, svc, auth.GenerateTokenInput{TenantID: 5, UserID: 1}))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	_, ok := tenancy.FromContext(after)
	assert.False(t, ok, "tenant context must not outlive the handler chain")
}

func TestTenantContextMiddleware_TeardownAfterSuccess(t *testing.T) {
	svc := newTestJWTService()
	var after context.Context

	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Next()
		after = c.Request.Context()
	})
	router.Use(JWTAuthMiddleware(svc), TenantContextMiddleware(TenantContextConfig{}))
	router.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	req.Header.Set(AuthHeaderKey, BearerPrefix+issueToken(t, svc, auth.GenerateTokenInput{TenantID: 5, UserID: 1}))
	router.ServeHTTP(httptest.NewRecorder(), req)

	_, ok := tenancy.FromContext(after)
	assert.False(t, ok)
}

func TestTenantContext_Unset(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	tc := TenantContext(c)
	assert.False(t, tc.HasTenant())
}
