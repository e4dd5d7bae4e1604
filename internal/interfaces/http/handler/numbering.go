package handler

import (
	"github.com/gin-gonic/gin"

	appnumbering "github.com/erp/mfgerp/internal/application/numbering"
	"github.com/erp/mfgerp/internal/interfaces/http/middleware"
)

// NumberingHandler lets a tenant configure document numbering
type NumberingHandler struct {
	BaseHandler
	configs *appnumbering.ConfigService
}

// NewNumberingHandler creates a new NumberingHandler
func NewNumberingHandler(configs *appnumbering.ConfigService) *NumberingHandler {
	return &NumberingHandler{configs: configs}
}

// List returns the effective setup of every document type
func (h *NumberingHandler) List(c *gin.Context) {
	configs, err := h.configs.List(c.Request.Context(), middleware.TenantContext(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, configs)
}

// Get godoc
// @Summary      Get the numbering setup of a document type
// @Tags         numbering
// @Produce      json
// @Param        type path string true "Document type" Enums(PO, GRN, INV, SO, QT, DC, PS, JW)
// @Success      200 {object} dto.Response
// @Failure      422 {object} dto.Response "Unknown document type"
// @Router       /numbering/{type} [get]
func (h *NumberingHandler) Get(c *gin.Context) {
	cfg, err := h.configs.Get(c.Request.Context(), middleware.TenantContext(c), c.Param("type"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, cfg)
}

// Put godoc
// @Summary      Replace the numbering setup of a document type
// @Description  Affects numbers issued afterwards. Issued numbers are never rewritten.
// @Tags         numbering
// @Accept       json
// @Produce      json
// @Param        type path string true "Document type"
// @Param        request body appnumbering.UpsertConfigRequest true "Setup"
// @Success      200 {object} dto.Response
// @Router       /numbering/{type} [put]
func (h *NumberingHandler) Put(c *gin.Context) {
	var req appnumbering.UpsertConfigRequest
	if !h.bindJSON(c, &req) {
		return
	}
	cfg, err := h.configs.Upsert(c.Request.Context(), middleware.TenantContext(c), c.Param("type"), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, cfg)
}

// Preview shows the number the next document of the type would get
// without consuming it
func (h *NumberingHandler) Preview(c *gin.Context) {
	preview, err := h.configs.Preview(c.Request.Context(), middleware.TenantContext(c), c.Param("type"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, preview)
}

// RegisterRoutes mounts the numbering endpoints under rg
func (h *NumberingHandler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/numbering")
	g.GET("", h.List)
	g.GET("/:type", h.Get)
	g.PUT("/:type", h.Put)
	g.GET("/:type/preview", h.Preview)
}
