package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/erp/mfgerp/internal/application/settings"
	"github.com/erp/mfgerp/internal/interfaces/http/middleware"
)

// SettingsHandler serves the tenant's display settings
type SettingsHandler struct {
	BaseHandler
	settings *settings.Service
}

// NewSettingsHandler creates a new SettingsHandler
func NewSettingsHandler(svc *settings.Service) *SettingsHandler {
	return &SettingsHandler{settings: svc}
}

// Get returns the effective timezone and formats
func (h *SettingsHandler) Get(c *gin.Context) {
	resp, err := h.settings.Get(c.Request.Context(), middleware.TenantContext(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// Put replaces the timezone and formats
func (h *SettingsHandler) Put(c *gin.Context) {
	var req settings.UpdateSettingsRequest
	if !h.bindJSON(c, &req) {
		return
	}
	resp, err := h.settings.Update(c.Request.Context(), middleware.TenantContext(c), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// RegisterRoutes mounts the settings endpoints under rg
func (h *SettingsHandler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/settings")
	g.GET("/company", h.Get)
	g.PUT("/company", h.Put)
}
