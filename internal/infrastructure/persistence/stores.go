package persistence

import (
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/erp/mfgerp/internal/infrastructure/persistence/models"
	"github.com/erp/mfgerp/internal/infrastructure/persistence/tenant"
)

// Scoped stores of the business entities
type (
	ClientStore           = tenant.Store[models.ClientModel, *models.ClientModel]
	PurchaseOrderStore    = tenant.Store[models.PurchaseOrderModel, *models.PurchaseOrderModel]
	GoodsReceiptNoteStore = tenant.Store[models.GoodsReceiptNoteModel, *models.GoodsReceiptNoteModel]
	InvoiceStore          = tenant.Store[models.InvoiceModel, *models.InvoiceModel]
)

// ClientDescriptor: tenant-wide, deactivated instead of removed
var ClientDescriptor = tenant.EntityDescriptor{
	Name:          "client",
	Delete:        tenant.SoftDelete("status", models.ClientStatusInactive),
	SortFields:    tenant.MergeSortFields("code", "name", "status"),
	DefaultSort:   "created_at",
	SearchColumns: []string{"code", "name", "contact_name", "gstin"},
}

// PurchaseOrderDescriptor: branch scoped, cancelled instead of removed
var PurchaseOrderDescriptor = tenant.EntityDescriptor{
	Name:          "purchase order",
	BranchScoped:  true,
	Delete:        tenant.SoftDelete("status", models.PurchaseOrderStatusCancelled),
	SortFields:    tenant.MergeSortFields("sequence_no", "document_number", "po_date", "total_amount", "status"),
	DefaultSort:   "sequence_no",
	SearchColumns: []string{"document_number", "remark"},
}

// GoodsReceiptNoteDescriptor: branch scoped, removed on delete
var GoodsReceiptNoteDescriptor = tenant.EntityDescriptor{
	Name:          "goods receipt note",
	BranchScoped:  true,
	Delete:        tenant.HardDelete(),
	SortFields:    tenant.MergeSortFields("sequence_no", "document_number", "grn_date"),
	DefaultSort:   "sequence_no",
	SearchColumns: []string{"document_number", "challan_no"},
}

// InvoiceDescriptor: branch scoped, cancelled instead of removed
var InvoiceDescriptor = tenant.EntityDescriptor{
	Name:          "invoice",
	BranchScoped:  true,
	Delete:        tenant.SoftDelete("status", models.InvoiceStatusCancelled),
	SortFields:    tenant.MergeSortFields("sequence_no", "document_number", "invoice_date", "total_amount", "status"),
	DefaultSort:   "sequence_no",
	SearchColumns: []string{"document_number"},
}

// NewClientStore creates the scoped client store
func NewClientStore(db *gorm.DB, logger *zap.Logger) *ClientStore {
	return tenant.NewStore[models.ClientModel](db, ClientDescriptor, logger)
}

// NewPurchaseOrderStore creates the scoped purchase order store
func NewPurchaseOrderStore(db *gorm.DB, logger *zap.Logger) *PurchaseOrderStore {
	return tenant.NewStore[models.PurchaseOrderModel](db, PurchaseOrderDescriptor, logger)
}

// NewGoodsReceiptNoteStore creates the scoped GRN store
func NewGoodsReceiptNoteStore(db *gorm.DB, logger *zap.Logger) *GoodsReceiptNoteStore {
	return tenant.NewStore[models.GoodsReceiptNoteModel](db, GoodsReceiptNoteDescriptor, logger)
}

// NewInvoiceStore creates the scoped invoice store
func NewInvoiceStore(db *gorm.DB, logger *zap.Logger) *InvoiceStore {
	return tenant.NewStore[models.InvoiceModel](db, InvoiceDescriptor, logger)
}
