package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	appevent "github.com/erp/mfgerp/internal/application/event"
	"github.com/erp/mfgerp/internal/application/partner"
)

// AdminHandler serves platform administration endpoints. Every route must
// be mounted behind middleware.RequireRole(auth.RoleAdmin).
type AdminHandler struct {
	BaseHandler
	clients *partner.ClientService
	outbox  *appevent.OutboxService
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(clients *partner.ClientService, outbox *appevent.OutboxService) *AdminHandler {
	return &AdminHandler{clients: clients, outbox: outbox}
}

// LookupClients godoc
// @Summary      Search clients of every tenant
// @Description  Reads across tenants. Each call is logged with the caller.
// @Tags         admin
// @Produce      json
// @Param        tenant_id query int false "Restrict to one tenant"
// @Param        code query string false "Client code"
// @Param        gstin query string false "GSTIN"
// @Success      200 {object} dto.Response
// @Router       /admin/clients [get]
func (h *AdminHandler) LookupClients(c *gin.Context) {
	var filter partner.AdminClientFilter
	if !h.bindQuery(c, &filter) {
		return
	}
	items, total, err := h.clients.AdminLookup(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	page, pageSize := pageOf(filter.Page, filter.PageSize)
	h.SuccessWithMeta(c, items, total, page, pageSize)
}

// DeadLetters lists outbox events that exhausted their retries
func (h *AdminHandler) DeadLetters(c *gin.Context) {
	var filter appevent.OutboxFilter
	if !h.bindQuery(c, &filter) {
		return
	}
	result, err := h.outbox.GetDeadLetterEntries(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, result.Items, result.Total, result.Page, result.PageSize)
}

// OutboxEntry returns one outbox event
func (h *AdminHandler) OutboxEntry(c *gin.Context) {
	id, ok := h.eventID(c)
	if !ok {
		return
	}
	entry, err := h.outbox.GetEntry(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, entry)
}

// RetryDeadLetter puts a dead event back into the delivery queue
func (h *AdminHandler) RetryDeadLetter(c *gin.Context) {
	id, ok := h.eventID(c)
	if !ok {
		return
	}
	entry, err := h.outbox.RetryDeadEntry(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, entry)
}

// RetryAllDeadLetters requeues every dead event
func (h *AdminHandler) RetryAllDeadLetters(c *gin.Context) {
	n, err := h.outbox.RetryAllDeadEntries(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, gin.H{"retried": n})
}

// OutboxStats returns event counts per delivery status
func (h *AdminHandler) OutboxStats(c *gin.Context) {
	stats, err := h.outbox.GetStats(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, stats)
}

func (h *AdminHandler) eventID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid event id")
		return uuid.Nil, false
	}
	return id, true
}

// RegisterRoutes mounts the admin endpoints under rg
func (h *AdminHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/clients", h.LookupClients)
	rg.GET("/outbox/dead", h.DeadLetters)
	rg.GET("/outbox/stats", h.OutboxStats)
	rg.POST("/outbox/dead/retry", h.RetryAllDeadLetters)
	rg.GET("/outbox/:id", h.OutboxEntry)
	rg.POST("/outbox/:id/retry", h.RetryDeadLetter)
}
