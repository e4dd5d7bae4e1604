package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erp/mfgerp/internal/infrastructure/auth"
	"github.com/erp/mfgerp/internal/interfaces/http/dto"
)

func rateLimitedRouter(t *testing.T, rate string) (*gin.Engine, *auth.JWTService) {
	t.Helper()
	lim, err := NewTenantLimiter(rate, nil, "")
	require.NoError(t, err)

	svc := newTestJWTService()
	router := gin.New()
	router.Use(JWTAuthMiddleware(svc), TenantContextMiddleware(TenantContextConfig{}), TenantRateLimit(lim, nil))
	router.GET("/test", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return router, svc
}

func TestTenantRateLimit_PerTenantBudget(t *testing.T) {
	router, svc := rateLimitedRouter(t, "2-M")
	tenant1 := issueToken(t, svc, auth.GenerateTokenInput{TenantID: 1, UserID: 1})
	tenant2 := issueToken(t, svc, auth.GenerateTokenInput{TenantID: 2, UserID: 1})

	call := func(token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set(AuthHeaderKey, BearerPrefix+token)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	w := call(tenant1)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "2", w.Header().Get(HeaderRateLimitLimit))
	assert.Equal(t, "1", w.Header().Get(HeaderRateLimitRemaining))

	assert.Equal(t, http.StatusNoContent, call(tenant1).Code)

	w = call(tenant1)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), dto.ErrCodeRateLimited)

	// another tenant has its own budget
	assert.Equal(t, http.StatusNoContent, call(tenant2).Code)
}

func TestNewTenantLimiter_InvalidRate(t *testing.T) {
	_, err := NewTenantLimiter("lots", nil, "")
	assert.Error(t, err)
}
