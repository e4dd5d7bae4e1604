package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/erp/mfgerp/internal/application/trade"
	"github.com/erp/mfgerp/internal/interfaces/http/middleware"
)

// InvoiceHandler serves invoices
type InvoiceHandler struct {
	BaseHandler
	invoices *trade.InvoiceService
}

// NewInvoiceHandler creates a new InvoiceHandler
func NewInvoiceHandler(invoices *trade.InvoiceService) *InvoiceHandler {
	return &InvoiceHandler{invoices: invoices}
}

// Create godoc
// @Summary      Issue an invoice
// @Tags         invoices
// @Accept       json
// @Produce      json
// @Param        request body trade.CreateInvoiceRequest true "Invoice"
// @Success      201 {object} dto.Response
// @Router       /invoices [post]
func (h *InvoiceHandler) Create(c *gin.Context) {
	var req trade.CreateInvoiceRequest
	if !h.bindJSON(c, &req) {
		return
	}
	inv, err := h.invoices.Create(c.Request.Context(), middleware.TenantContext(c), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, inv)
}

func (h *InvoiceHandler) Get(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	inv, err := h.invoices.Get(c.Request.Context(), middleware.TenantContext(c), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, inv)
}

func (h *InvoiceHandler) List(c *gin.Context) {
	var filter trade.InvoiceListFilter
	if !h.bindQuery(c, &filter) {
		return
	}
	items, total, err := h.invoices.List(c.Request.Context(), middleware.TenantContext(c), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	page, pageSize := pageOf(filter.Page, filter.PageSize)
	h.SuccessWithMeta(c, items, total, page, pageSize)
}

// Cancel voids an unpaid invoice
func (h *InvoiceHandler) Cancel(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	if err := h.invoices.Cancel(c.Request.Context(), middleware.TenantContext(c), id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// RegisterRoutes mounts the invoice endpoints under rg
func (h *InvoiceHandler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/invoices")
	g.POST("", h.Create)
	g.GET("", h.List)
	g.GET("/:id", h.Get)
	g.POST("/:id/cancel", h.Cancel)
}
