package middleware

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"
	"go.uber.org/zap"

	"github.com/erp/mfgerp/internal/interfaces/http/dto"
)

// Rate limit response headers
const (
	HeaderRateLimitLimit     = "X-RateLimit-Limit"
	HeaderRateLimitRemaining = "X-RateLimit-Remaining"
	HeaderRateLimitReset     = "X-RateLimit-Reset"
)

// NewTenantLimiter parses a rate such as "600-M" and returns a limiter
// backed by redis when a client is given, so all instances share one budget
// per tenant, or by process memory otherwise.
func NewTenantLimiter(rate string, client redis.UniversalClient, prefix string) (*limiter.Limiter, error) {
	r, err := limiter.NewRateFromFormatted(rate)
	if err != nil {
		return nil, fmt.Errorf("invalid tenant rate limit %q: %w", rate, err)
	}
	var store limiter.Store
	if client != nil {
		store, err = sredis.NewStoreWithOptions(client, limiter.StoreOptions{Prefix: prefix + "ratelimit"})
		if err != nil {
			return nil, fmt.Errorf("create rate limit store: %w", err)
		}
	} else {
		store = memory.NewStore()
	}
	return limiter.New(store, r), nil
}

// TenantRateLimit limits requests per tenant. Requests without a tenant are
// keyed by client IP. It must run after TenantContextMiddleware. When the
// limiter store fails the request is let through.
func TenantRateLimit(lim *limiter.Limiter, log *zap.Logger) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(c *gin.Context) {
		key := "ip:" + c.ClientIP()
		if tc := TenantContext(c); tc.HasTenant() {
			key = "tenant:" + strconv.FormatInt(tc.TenantID, 10)
		}

		lc, err := lim.Get(c.Request.Context(), key)
		if err != nil {
			log.Warn("rate limit check failed", zap.String("key", key), zap.Error(err))
			c.Next()
			return
		}

		c.Header(HeaderRateLimitLimit, strconv.FormatInt(lc.Limit, 10))
		c.Header(HeaderRateLimitRemaining, strconv.FormatInt(lc.Remaining, 10))
		c.Header(HeaderRateLimitReset, strconv.FormatInt(lc.Reset, 10))

		if lc.Reached {
			log.Info("rate limit exceeded", zap.String("key", key), zap.Int64("limit", lc.Limit))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, dto.NewErrorResponseWithRequestID(
				dto.ErrCodeRateLimited, "Too many requests, please retry later", c.GetString(RequestIDKey)))
			return
		}
		c.Next()
	}
}
