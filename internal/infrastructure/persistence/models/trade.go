package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Purchase order statuses
const (
	PurchaseOrderStatusDraft     = "DRAFT"
	PurchaseOrderStatusApproved  = "APPROVED"
	PurchaseOrderStatusCancelled = "CANCELLED"
)

// Invoice statuses
const (
	InvoiceStatusIssued    = "ISSUED"
	InvoiceStatusPaid      = "PAID"
	InvoiceStatusCancelled = "CANCELLED"
)

// PurchaseOrderModel is a numbered purchase order raised by a branch.
type PurchaseOrderModel struct {
	DocumentModel
	ClientID     int64           `gorm:"not null;index"`
	PODate       time.Time       `gorm:"column:po_date;not null"`
	DeliveryDate *time.Time      `gorm:"column:delivery_date"`
	TotalAmount  decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	TaxAmount    decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	Status       string          `gorm:"type:varchar(20);not null;default:'DRAFT'"`
	Remark       string          `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (PurchaseOrderModel) TableName() string {
	return "purchase_orders"
}

// GoodsReceiptNoteModel records material received against a purchase order.
type GoodsReceiptNoteModel struct {
	DocumentModel
	PurchaseOrderID *int64          `gorm:"index"`
	ClientID        int64           `gorm:"not null;index"`
	GRNDate         time.Time       `gorm:"column:grn_date;not null"`
	ChallanNo       string          `gorm:"type:varchar(50)"`
	ReceivedQty     decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	Remark          string          `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (GoodsReceiptNoteModel) TableName() string {
	return "goods_receipt_notes"
}

// InvoiceModel is a numbered sales invoice.
type InvoiceModel struct {
	DocumentModel
	ClientID    int64     `gorm:"not null;index"`
	InvoiceDate time.Time `gorm:"not null"`
	DueDate     *time.Time
	SubTotal    decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	TaxAmount   decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	TotalAmount decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	Status      string          `gorm:"type:varchar(20);not null;default:'ISSUED'"`
	Remark      string          `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (InvoiceModel) TableName() string {
	return "invoices"
}
