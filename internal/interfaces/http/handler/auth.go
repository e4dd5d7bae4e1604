package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/erp/mfgerp/internal/infrastructure/auth"
	"github.com/erp/mfgerp/internal/infrastructure/logger"
	"github.com/erp/mfgerp/internal/interfaces/http/dto"
	"github.com/erp/mfgerp/internal/interfaces/http/middleware"
)

// AuthHandler serves session endpoints. Tokens are issued by the identity
// provider; this service only validates and revokes them.
type AuthHandler struct {
	BaseHandler
	revocations auth.RevocationList
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(revocations auth.RevocationList) *AuthHandler {
	return &AuthHandler{revocations: revocations}
}

// SessionResponse describes the caller and the scope the request ran under
type SessionResponse struct {
	UserID    int64     `json:"user_id"`
	Username  string    `json:"username,omitempty"`
	Roles     []string  `json:"roles,omitempty"`
	TenantID  int64     `json:"tenant_id"`
	BranchID  *int64    `json:"branch_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Me returns the verified identity of the caller
func (h *AuthHandler) Me(c *gin.Context) {
	claims := middleware.GetJWTClaims(c)
	if claims == nil {
		h.Error(c, http.StatusUnauthorized, dto.ErrCodeUnauthorized, "Authentication required")
		return
	}
	tc := middleware.TenantContext(c)
	resp := SessionResponse{
		UserID:   claims.UserID,
		Username: claims.Username,
		Roles:    claims.Roles,
		TenantID: tc.TenantID,
		BranchID: tc.BranchID,
	}
	if claims.ExpiresAt != nil {
		resp.ExpiresAt = claims.ExpiresAt.Time
	}
	h.Success(c, resp)
}

// Logout revokes the presented token until it would have expired anyway
func (h *AuthHandler) Logout(c *gin.Context) {
	claims := middleware.GetJWTClaims(c)
	if claims == nil {
		h.Error(c, http.StatusUnauthorized, dto.ErrCodeUnauthorized, "Authentication required")
		return
	}
	if claims.ID == "" {
		h.BadRequest(c, "Token has no id and cannot be revoked")
		return
	}
	if err := h.revocations.Revoke(c.Request.Context(), claims.ID, claims.GetRemainingTTL()); err != nil {
		h.HandleError(c, err)
		return
	}
	logger.L(c.Request.Context()).Info("token revoked", zap.String("jti", claims.ID))
	h.NoContent(c)
}

// RegisterRoutes mounts the session endpoints under rg
func (h *AuthHandler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/auth")
	g.GET("/me", h.Me)
	g.POST("/logout", h.Logout)
}
