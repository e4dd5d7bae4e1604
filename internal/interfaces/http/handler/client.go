package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/erp/mfgerp/internal/application/partner"
	"github.com/erp/mfgerp/internal/interfaces/http/middleware"
)

// ClientHandler serves the tenant's client master
type ClientHandler struct {
	BaseHandler
	clients *partner.ClientService
}

// NewClientHandler creates a new ClientHandler
func NewClientHandler(clients *partner.ClientService) *ClientHandler {
	return &ClientHandler{clients: clients}
}

// Create godoc
// @Summary      Create a client
// @Tags         clients
// @Accept       json
// @Produce      json
// @Param        request body partner.CreateClientRequest true "Client"
// @Success      201 {object} dto.Response
// @Failure      409 {object} dto.Response
// @Router       /clients [post]
func (h *ClientHandler) Create(c *gin.Context) {
	var req partner.CreateClientRequest
	if !h.bindJSON(c, &req) {
		return
	}
	client, err := h.clients.Create(c.Request.Context(), middleware.TenantContext(c), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, client)
}

// Get godoc
// @Summary      Get a client
// @Tags         clients
// @Produce      json
// @Param        id path int true "Client ID"
// @Success      200 {object} dto.Response
// @Failure      404 {object} dto.Response
// @Router       /clients/{id} [get]
func (h *ClientHandler) Get(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	client, err := h.clients.Get(c.Request.Context(), middleware.TenantContext(c), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, client)
}

// List godoc
// @Summary      List clients
// @Tags         clients
// @Produce      json
// @Param        search query string false "Matches code, name or GSTIN"
// @Param        include_inactive query bool false "Include deactivated clients"
// @Success      200 {object} dto.Response
// @Router       /clients [get]
func (h *ClientHandler) List(c *gin.Context) {
	var filter partner.ClientListFilter
	if !h.bindQuery(c, &filter) {
		return
	}
	items, total, err := h.clients.List(c.Request.Context(), middleware.TenantContext(c), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	page, pageSize := pageOf(filter.Page, filter.PageSize)
	h.SuccessWithMeta(c, items, total, page, pageSize)
}

// Update godoc
// @Summary      Update a client
// @Tags         clients
// @Accept       json
// @Produce      json
// @Param        id path int true "Client ID"
// @Param        request body partner.UpdateClientRequest true "Changed fields"
// @Success      200 {object} dto.Response
// @Router       /clients/{id} [put]
func (h *ClientHandler) Update(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req partner.UpdateClientRequest
	if !h.bindJSON(c, &req) {
		return
	}
	client, err := h.clients.Update(c.Request.Context(), middleware.TenantContext(c), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, client)
}

// Deactivate marks a client inactive. The row is kept.
func (h *ClientHandler) Deactivate(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	if err := h.clients.Deactivate(c.Request.Context(), middleware.TenantContext(c), id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// Activate reactivates a client
func (h *ClientHandler) Activate(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	client, err := h.clients.Activate(c.Request.Context(), middleware.TenantContext(c), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, client)
}

// RegisterRoutes mounts the client endpoints under rg
func (h *ClientHandler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/clients")
	g.POST("", h.Create)
	g.GET("", h.List)
	g.GET("/:id", h.Get)
	g.PUT("/:id", h.Update)
	g.DELETE("/:id", h.Deactivate)
	g.POST("/:id/activate", h.Activate)
}
