package trade

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/erp/mfgerp/internal/domain/timefmt"
	"github.com/erp/mfgerp/internal/infrastructure/persistence/models"
)

// =============================================================================
// Purchase order DTOs
// =============================================================================

// CreatePurchaseOrderRequest represents a request to raise a purchase order
type CreatePurchaseOrderRequest struct {
	ClientID     int64           `json:"client_id" binding:"required,min=1"`
	PODate       *time.Time      `json:"po_date"`
	DeliveryDate *time.Time      `json:"delivery_date"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
	TaxAmount    decimal.Decimal `json:"tax_amount"`
	Remark       string          `json:"remark" binding:"max=2000"`
}

// UpdatePurchaseOrderRequest represents a request to edit a draft purchase order
type UpdatePurchaseOrderRequest struct {
	DeliveryDate *time.Time       `json:"delivery_date"`
	TotalAmount  *decimal.Decimal `json:"total_amount"`
	TaxAmount    *decimal.Decimal `json:"tax_amount"`
	Remark       *string          `json:"remark" binding:"omitempty,max=2000"`
}

// PurchaseOrderListFilter represents the query of the purchase order list
type PurchaseOrderListFilter struct {
	Page        int    `form:"page" binding:"omitempty,min=1"`
	PageSize    int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy     string `form:"order_by"`
	OrderDir    string `form:"order_dir" binding:"omitempty,oneof=asc desc ASC DESC"`
	Search      string `form:"search"`
	Status      string `form:"status" binding:"omitempty,oneof=DRAFT APPROVED CANCELLED"`
	ClientID    int64  `form:"client_id" binding:"omitempty,min=1"`
	AllBranches bool   `form:"all_branches"`
	Cancelled   bool   `form:"include_cancelled"`
}

// PurchaseOrderResponse represents a purchase order in API responses.
// Dates and audit timestamps are rendered in the tenant's display format.
type PurchaseOrderResponse struct {
	ID             int64           `json:"id"`
	TenantID       int64           `json:"tenant_id"`
	BranchID       *int64          `json:"branch_id"`
	DocumentNumber string          `json:"document_number"`
	SequenceNo     int64           `json:"sequence_no"`
	ClientID       int64           `json:"client_id"`
	PODate         *string         `json:"po_date"`
	DeliveryDate   *string         `json:"delivery_date"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	TaxAmount      decimal.Decimal `json:"tax_amount"`
	Status         string          `json:"status"`
	Remark         string          `json:"remark"`
	CreatedBy      *int64          `json:"created_by"`
	CreatedAt      *string         `json:"created_at"`
	UpdatedAt      *string         `json:"updated_at"`
}

// ToPurchaseOrderResponse converts a stored purchase order
func ToPurchaseOrderResponse(ctx context.Context, m *models.PurchaseOrderModel, d timefmt.Display) PurchaseOrderResponse {
	return PurchaseOrderResponse{
		ID:             m.ID,
		TenantID:       m.TenantID,
		BranchID:       m.BranchID,
		DocumentNumber: m.DocumentNumber,
		SequenceNo:     m.SequenceNo,
		ClientID:       m.ClientID,
		PODate:         d.Date(ctx, m.PODate),
		DeliveryDate:   d.Date(ctx, m.DeliveryDate),
		TotalAmount:    m.TotalAmount,
		TaxAmount:      m.TaxAmount,
		Status:         m.Status,
		Remark:         m.Remark,
		CreatedBy:      m.CreatedBy,
		CreatedAt:      d.Timestamp(ctx, m.CreatedAt),
		UpdatedAt:      d.Timestamp(ctx, m.UpdatedAt),
	}
}

// =============================================================================
// Goods receipt note DTOs
// =============================================================================

// CreateGoodsReceiptRequest represents a request to record received material.
// When PurchaseOrderID is set the client is taken from the order.
type CreateGoodsReceiptRequest struct {
	PurchaseOrderID *int64          `json:"purchase_order_id" binding:"omitempty,min=1"`
	ClientID        int64           `json:"client_id" binding:"omitempty,min=1"`
	GRNDate         *time.Time      `json:"grn_date"`
	ChallanNo       string          `json:"challan_no" binding:"max=50"`
	ReceivedQty     decimal.Decimal `json:"received_qty"`
	Remark          string          `json:"remark" binding:"max=2000"`
}

// GoodsReceiptListFilter represents the query of the GRN list
type GoodsReceiptListFilter struct {
	Page            int    `form:"page" binding:"omitempty,min=1"`
	PageSize        int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy         string `form:"order_by"`
	OrderDir        string `form:"order_dir" binding:"omitempty,oneof=asc desc ASC DESC"`
	Search          string `form:"search"`
	PurchaseOrderID int64  `form:"purchase_order_id" binding:"omitempty,min=1"`
	AllBranches     bool   `form:"all_branches"`
}

// GoodsReceiptResponse represents a GRN in API responses
type GoodsReceiptResponse struct {
	ID              int64           `json:"id"`
	TenantID        int64           `json:"tenant_id"`
	BranchID        *int64          `json:"branch_id"`
	DocumentNumber  string          `json:"document_number"`
	SequenceNo      int64           `json:"sequence_no"`
	PurchaseOrderID *int64          `json:"purchase_order_id"`
	ClientID        int64           `json:"client_id"`
	GRNDate         *string         `json:"grn_date"`
	ChallanNo       string          `json:"challan_no"`
	ReceivedQty     decimal.Decimal `json:"received_qty"`
	Remark          string          `json:"remark"`
	CreatedBy       *int64          `json:"created_by"`
	CreatedAt       *string         `json:"created_at"`
	UpdatedAt       *string         `json:"updated_at"`
}

// ToGoodsReceiptResponse converts a stored GRN
func ToGoodsReceiptResponse(ctx context.Context, m *models.GoodsReceiptNoteModel, d timefmt.Display) GoodsReceiptResponse {
	return GoodsReceiptResponse{
		ID:              m.ID,
		TenantID:        m.TenantID,
		BranchID:        m.BranchID,
		DocumentNumber:  m.DocumentNumber,
		SequenceNo:      m.SequenceNo,
		PurchaseOrderID: m.PurchaseOrderID,
		ClientID:        m.ClientID,
		GRNDate:         d.Date(ctx, m.GRNDate),
		ChallanNo:       m.ChallanNo,
		ReceivedQty:     m.ReceivedQty,
		Remark:          m.Remark,
		CreatedBy:       m.CreatedBy,
		CreatedAt:       d.Timestamp(ctx, m.CreatedAt),
		UpdatedAt:       d.Timestamp(ctx, m.UpdatedAt),
	}
}

// =============================================================================
// Invoice DTOs
// =============================================================================

// CreateInvoiceRequest represents a request to issue an invoice
type CreateInvoiceRequest struct {
	ClientID    int64           `json:"client_id" binding:"required,min=1"`
	InvoiceDate *time.Time      `json:"invoice_date"`
	DueDate     *time.Time      `json:"due_date"`
	SubTotal    decimal.Decimal `json:"sub_total"`
	TaxAmount   decimal.Decimal `json:"tax_amount"`
	Remark      string          `json:"remark" binding:"max=2000"`
}

// InvoiceListFilter represents the query of the invoice list
type InvoiceListFilter struct {
	Page        int    `form:"page" binding:"omitempty,min=1"`
	PageSize    int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy     string `form:"order_by"`
	OrderDir    string `form:"order_dir" binding:"omitempty,oneof=asc desc ASC DESC"`
	Search      string `form:"search"`
	Status      string `form:"status" binding:"omitempty,oneof=ISSUED PAID CANCELLED"`
	ClientID    int64  `form:"client_id" binding:"omitempty,min=1"`
	AllBranches bool   `form:"all_branches"`
	Cancelled   bool   `form:"include_cancelled"`
}

// InvoiceResponse represents an invoice in API responses
type InvoiceResponse struct {
	ID             int64           `json:"id"`
	TenantID       int64           `json:"tenant_id"`
	BranchID       *int64          `json:"branch_id"`
	DocumentNumber string          `json:"document_number"`
	SequenceNo     int64           `json:"sequence_no"`
	ClientID       int64           `json:"client_id"`
	InvoiceDate    *string         `json:"invoice_date"`
	DueDate        *string         `json:"due_date"`
	SubTotal       decimal.Decimal `json:"sub_total"`
	TaxAmount      decimal.Decimal `json:"tax_amount"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	Status         string          `json:"status"`
	Remark         string          `json:"remark"`
	CreatedBy      *int64          `json:"created_by"`
	CreatedAt      *string         `json:"created_at"`
	UpdatedAt      *string         `json:"updated_at"`
}

// ToInvoiceResponse converts a stored invoice
func ToInvoiceResponse(ctx context.Context, m *models.InvoiceModel, d timefmt.Display) InvoiceResponse {
	return InvoiceResponse{
		ID:             m.ID,
		TenantID:       m.TenantID,
		BranchID:       m.BranchID,
		DocumentNumber: m.DocumentNumber,
		SequenceNo:     m.SequenceNo,
		ClientID:       m.ClientID,
		InvoiceDate:    d.Date(ctx, m.InvoiceDate),
		DueDate:        d.Date(ctx, m.DueDate),
		SubTotal:       m.SubTotal,
		TaxAmount:      m.TaxAmount,
		TotalAmount:    m.TotalAmount,
		Status:         m.Status,
		Remark:         m.Remark,
		CreatedBy:      m.CreatedBy,
		CreatedAt:      d.Timestamp(ctx, m.CreatedAt),
		UpdatedAt:      d.Timestamp(ctx, m.UpdatedAt),
	}
}
