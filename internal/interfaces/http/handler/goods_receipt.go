package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/erp/mfgerp/internal/application/trade"
	"github.com/erp/mfgerp/internal/interfaces/http/middleware"
)

// GoodsReceiptHandler serves goods receipt notes
type GoodsReceiptHandler struct {
	BaseHandler
	grns *trade.GoodsReceiptService
}

// NewGoodsReceiptHandler creates a new GoodsReceiptHandler
func NewGoodsReceiptHandler(grns *trade.GoodsReceiptService) *GoodsReceiptHandler {
	return &GoodsReceiptHandler{grns: grns}
}

// Create records a goods receipt, optionally against a purchase order
func (h *GoodsReceiptHandler) Create(c *gin.Context) {
	var req trade.CreateGoodsReceiptRequest
	if !h.bindJSON(c, &req) {
		return
	}
	grn, err := h.grns.Create(c.Request.Context(), middleware.TenantContext(c), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, grn)
}

func (h *GoodsReceiptHandler) Get(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	grn, err := h.grns.Get(c.Request.Context(), middleware.TenantContext(c), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, grn)
}

func (h *GoodsReceiptHandler) List(c *gin.Context) {
	var filter trade.GoodsReceiptListFilter
	if !h.bindQuery(c, &filter) {
		return
	}
	items, total, err := h.grns.List(c.Request.Context(), middleware.TenantContext(c), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	page, pageSize := pageOf(filter.Page, filter.PageSize)
	h.SuccessWithMeta(c, items, total, page, pageSize)
}

// Delete removes a goods receipt note permanently
func (h *GoodsReceiptHandler) Delete(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	if err := h.grns.Delete(c.Request.Context(), middleware.TenantContext(c), id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// RegisterRoutes mounts the GRN endpoints under rg
func (h *GoodsReceiptHandler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/grns")
	g.POST("", h.Create)
	g.GET("", h.List)
	g.GET("/:id", h.Get)
	g.DELETE("/:id", h.Delete)
}
