package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/erp/mfgerp/internal/domain/tenancy"
	"github.com/erp/mfgerp/internal/infrastructure/config"
	"github.com/erp/mfgerp/internal/infrastructure/logger"
	"github.com/erp/mfgerp/internal/interfaces/http/dto"
)

// scopeAnnotationKey marks a request whose successful JSON responses carry
// the scope block
const scopeAnnotationKey = "scope_annotation"

// TenantContextConfig holds configuration for the tenant context middleware
type TenantContextConfig struct {
	// BranchHeaders are checked in order; the first non-empty one wins.
	BranchHeaders []string
	// AnnotateResponses adds scope.branch_id to successful JSON responses.
	AnnotateResponses bool
	Logger            *zap.Logger
}

// TenantContextConfigFrom maps the tenancy config section
func TenantContextConfigFrom(cfg config.TenancyConfig, log *zap.Logger) TenantContextConfig {
	return TenantContextConfig{
		BranchHeaders:     cfg.BranchHeaders,
		AnnotateResponses: cfg.AnnotateResponses,
		Logger:            log,
	}
}

// TenantContextMiddleware builds the tenancy.Context of the request from the
// verified JWT claims and the optional branch header, and stores it in the
// request context. It must run after JWTAuthMiddleware.
//
// A token without a tenant yields a context without one; tenant-scoped
// store calls then fail with a missing tenant error. When the handler chain
// returns, or panics through, the request is restored to its previous
// context.
func TenantContextMiddleware(cfg TenantContextConfig) gin.HandlerFunc {
	headers := cfg.BranchHeaders
	if len(headers) == 0 {
		headers = tenancy.BranchHeaders
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return func(c *gin.Context) {
		claims := GetJWTClaims(c)
		if claims == nil {
			c.Next()
			return
		}

		branchID, err := tenancy.ResolveBranchFrom(c.GetHeader, headers)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, dto.NewErrorResponseWithRequestID(
				dto.ErrCodeInvalidInput, err.Error(), c.GetString(RequestIDKey)))
			return
		}
		if branchID == nil && claims.BranchID != nil {
			b := *claims.BranchID
			branchID = &b
		}

		tc := tenancy.New(claims.TenantID, branchID, claims.UserID)

		original := c.Request
		defer func() { c.Request = original }()

		ctx := tenancy.WithContext(original.Context(), tc)
		ctx = logger.WithScope(ctx, tc.TenantID, tc.Branch(), tc.ActorID)
		c.Request = original.WithContext(ctx)

		if tc.HasBranch() {
			c.Set(logger.GinBranchIDKey, tc.Branch())
		}
		if cfg.AnnotateResponses {
			c.Set(scopeAnnotationKey, &dto.Scope{BranchID: tc.BranchID})
		}
		if !tc.HasTenant() {
			log.Debug("request carries no tenant", zap.Int64("user_id", tc.ActorID))
		}

		c.Next()
	}
}

// ScopeAnnotation returns the scope block for the response of the current
// request, or nil when annotation is off.
func ScopeAnnotation(c *gin.Context) *dto.Scope {
	if v, ok := c.Get(scopeAnnotationKey); ok {
		if s, ok := v.(*dto.Scope); ok {
			return s
		}
	}
	return nil
}

// TenantContext returns the tenancy.Context of the request. The zero value
// is returned for requests that went through no tenant middleware.
func TenantContext(c *gin.Context) tenancy.Context {
	tc, _ := tenancy.FromContext(c.Request.Context())
	return tc
}
