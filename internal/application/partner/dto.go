package partner

import (
	"context"

	"github.com/erp/mfgerp/internal/domain/timefmt"
	"github.com/erp/mfgerp/internal/infrastructure/persistence/models"
)

// CreateClientRequest represents a request to create a client
type CreateClientRequest struct {
	Code            string `json:"code" binding:"required,min=1,max=50"`
	Name            string `json:"name" binding:"required,min=1,max=200"`
	ContactName     string `json:"contact_name" binding:"max=100"`
	ContactPhone    string `json:"contact_phone" binding:"max=50"`
	Email           string `json:"email" binding:"omitempty,email,max=200"`
	GSTIN           string `json:"gstin" binding:"omitempty,len=15,alphanum"`
	BillingAddress  string `json:"billing_address"`
	ShippingAddress string `json:"shipping_address"`
	PaymentTerms    int    `json:"payment_terms" binding:"min=0,max=365"`
	Remark          string `json:"remark" binding:"max=2000"`
}

// UpdateClientRequest represents a request to update a client. Nil fields
// are left unchanged.
type UpdateClientRequest struct {
	Name            *string `json:"name" binding:"omitempty,min=1,max=200"`
	ContactName     *string `json:"contact_name" binding:"omitempty,max=100"`
	ContactPhone    *string `json:"contact_phone" binding:"omitempty,max=50"`
	Email           *string `json:"email" binding:"omitempty,email,max=200"`
	GSTIN           *string `json:"gstin" binding:"omitempty,len=15,alphanum"`
	BillingAddress  *string `json:"billing_address"`
	ShippingAddress *string `json:"shipping_address"`
	PaymentTerms    *int    `json:"payment_terms" binding:"omitempty,min=0,max=365"`
	Remark          *string `json:"remark" binding:"omitempty,max=2000"`
}

// ClientListFilter represents the query of the client list
type ClientListFilter struct {
	Page            int    `form:"page" binding:"omitempty,min=1"`
	PageSize        int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy         string `form:"order_by"`
	OrderDir        string `form:"order_dir" binding:"omitempty,oneof=asc desc ASC DESC"`
	Search          string `form:"search"`
	IncludeInactive bool   `form:"include_inactive"`
}

// AdminClientFilter is the query of the cross-tenant client lookup
type AdminClientFilter struct {
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	TenantID int64  `form:"tenant_id" binding:"omitempty,min=1"`
	Code     string `form:"code"`
	GSTIN    string `form:"gstin"`
	Search   string `form:"search"`
}

// ClientResponse represents a client in API responses
type ClientResponse struct {
	ID              int64   `json:"id"`
	TenantID        int64   `json:"tenant_id"`
	Code            string  `json:"code"`
	Name            string  `json:"name"`
	ContactName     string  `json:"contact_name"`
	ContactPhone    string  `json:"contact_phone"`
	Email           string  `json:"email"`
	GSTIN           string  `json:"gstin"`
	BillingAddress  string  `json:"billing_address"`
	ShippingAddress string  `json:"shipping_address"`
	PaymentTerms    int     `json:"payment_terms"`
	Status          string  `json:"status"`
	Remark          string  `json:"remark"`
	CreatedBy       *int64  `json:"created_by"`
	CreatedAt       *string `json:"created_at"`
	UpdatedAt       *string `json:"updated_at"`
}

// ToClientResponse converts a stored client
func ToClientResponse(ctx context.Context, m *models.ClientModel, d timefmt.Display) ClientResponse {
	return ClientResponse{
		ID:              m.ID,
		TenantID:        m.TenantID,
		Code:            m.Code,
		Name:            m.Name,
		ContactName:     m.ContactName,
		ContactPhone:    m.ContactPhone,
		Email:           m.Email,
		GSTIN:           m.GSTIN,
		BillingAddress:  m.BillingAddress,
		ShippingAddress: m.ShippingAddress,
		PaymentTerms:    m.PaymentTerms,
		Status:          m.Status,
		Remark:          m.Remark,
		CreatedBy:       m.CreatedBy,
		CreatedAt:       d.Timestamp(ctx, m.CreatedAt),
		UpdatedAt:       d.Timestamp(ctx, m.UpdatedAt),
	}
}
