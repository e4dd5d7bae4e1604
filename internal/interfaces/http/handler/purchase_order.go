package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/erp/mfgerp/internal/application/trade"
	"github.com/erp/mfgerp/internal/interfaces/http/middleware"
)

// PurchaseOrderHandler serves purchase orders
type PurchaseOrderHandler struct {
	BaseHandler
	orders *trade.PurchaseOrderService
}

// NewPurchaseOrderHandler creates a new PurchaseOrderHandler
func NewPurchaseOrderHandler(orders *trade.PurchaseOrderService) *PurchaseOrderHandler {
	return &PurchaseOrderHandler{orders: orders}
}

// Create godoc
// @Summary      Raise a purchase order
// @Description  Allocates the next PO number of the tenant in the same transaction as the insert
// @Tags         purchase-orders
// @Accept       json
// @Produce      json
// @Param        request body trade.CreatePurchaseOrderRequest true "Purchase order"
// @Success      201 {object} dto.Response
// @Failure      404 {object} dto.Response "Client not found"
// @Failure      409 {object} dto.Response "Sequence busy"
// @Router       /purchase-orders [post]
func (h *PurchaseOrderHandler) Create(c *gin.Context) {
	var req trade.CreatePurchaseOrderRequest
	if !h.bindJSON(c, &req) {
		return
	}
	po, err := h.orders.Create(c.Request.Context(), middleware.TenantContext(c), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, po)
}

// Get godoc
// @Summary      Get a purchase order
// @Tags         purchase-orders
// @Produce      json
// @Param        id path int true "Purchase order ID"
// @Success      200 {object} dto.Response
// @Router       /purchase-orders/{id} [get]
func (h *PurchaseOrderHandler) Get(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	po, err := h.orders.Get(c.Request.Context(), middleware.TenantContext(c), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, po)
}

// List returns the purchase orders of the current branch, or of the whole
// tenant with all_branches=true.
func (h *PurchaseOrderHandler) List(c *gin.Context) {
	var filter trade.PurchaseOrderListFilter
	if !h.bindQuery(c, &filter) {
		return
	}
	items, total, err := h.orders.List(c.Request.Context(), middleware.TenantContext(c), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	page, pageSize := pageOf(filter.Page, filter.PageSize)
	h.SuccessWithMeta(c, items, total, page, pageSize)
}

// Update edits a draft purchase order
func (h *PurchaseOrderHandler) Update(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req trade.UpdatePurchaseOrderRequest
	if !h.bindJSON(c, &req) {
		return
	}
	po, err := h.orders.Update(c.Request.Context(), middleware.TenantContext(c), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, po)
}

// Cancel marks a purchase order cancelled. Its number is not reused.
func (h *PurchaseOrderHandler) Cancel(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	if err := h.orders.Cancel(c.Request.Context(), middleware.TenantContext(c), id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// RegisterRoutes mounts the purchase order endpoints under rg
func (h *PurchaseOrderHandler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/purchase-orders")
	g.POST("", h.Create)
	g.GET("", h.List)
	g.GET("/:id", h.Get)
	g.PUT("/:id", h.Update)
	g.DELETE("/:id", h.Cancel)
}
