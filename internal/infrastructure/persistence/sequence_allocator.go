package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/erp/mfgerp/internal/domain/numbering"
	"github.com/erp/mfgerp/internal/domain/shared"
	"github.com/erp/mfgerp/internal/infrastructure/persistence/models"
)

// DocumentTables maps a document type to the table that stores issued
// documents of that type. The allocator seeds a missing counter from the
// highest sequence_no already present there.
type DocumentTables map[numbering.DocumentType]string

// DefaultDocumentTables returns the tables of the numbered documents this
// service persists.
func DefaultDocumentTables() DocumentTables {
	return DocumentTables{
		numbering.DocumentTypePurchaseOrder: models.PurchaseOrderModel{}.TableName(),
		numbering.DocumentTypeGoodsReceipt:  models.GoodsReceiptNoteModel{}.TableName(),
		numbering.DocumentTypeInvoice:       models.InvoiceModel{}.TableName(),
	}
}

const defaultAllocationAttempts = 5

// GormSequenceAllocator hands out per-tenant, per-type sequence values from
// the document_sequences counter table. Allocate must run inside the
// transaction that inserts the document: the counter row stays locked
// until that transaction ends, so a rolled back insert also rolls back the
// sequence.
type GormSequenceAllocator struct {
	tables   DocumentTables
	attempts int
	logger   *zap.Logger
}

// NewGormSequenceAllocator creates an allocator. attempts bounds the
// update/insert loop of one allocation.
func NewGormSequenceAllocator(tables DocumentTables, attempts int, logger *zap.Logger) *GormSequenceAllocator {
	if tables == nil {
		tables = DefaultDocumentTables()
	}
	if attempts <= 0 {
		attempts = defaultAllocationAttempts
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GormSequenceAllocator{tables: tables, attempts: attempts, logger: logger}
}

// Allocate increments the counter of (tenantID, docType) and returns the new
// value. When no counter exists yet it is created from the high-water mark
// of documents already issued. Losing the creation race to a concurrent
// transaction loops back to the increment.
func (a *GormSequenceAllocator) Allocate(ctx context.Context, tx *gorm.DB, tenantID int64, docType numbering.DocumentType) (int64, error) {
	if tenantID <= 0 {
		return 0, shared.ErrMissingTenant
	}
	db := tx.WithContext(ctx)

	for attempt := 1; attempt <= a.attempts; attempt++ {
		seq, ok, err := a.increment(db, tenantID, docType)
		if err != nil {
			return 0, a.wrap(err, tenantID, docType)
		}
		if ok {
			return seq, nil
		}

		seed, err := a.highWaterMark(db, tenantID, docType)
		if err != nil {
			return 0, a.wrap(err, tenantID, docType)
		}
		row := models.DocumentSequenceModel{
			TenantID:     tenantID,
			DocumentType: string(docType),
			LastValue:    seed + 1,
			UpdatedAt:    time.Now(),
		}
		res := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
		if res.Error != nil {
			return 0, a.wrap(res.Error, tenantID, docType)
		}
		if res.RowsAffected == 1 {
			return row.LastValue, nil
		}

		a.logger.Debug("sequence counter created concurrently, retrying increment",
			zap.Int64("tenant_id", tenantID),
			zap.String("document_type", string(docType)),
			zap.Int("attempt", attempt),
		)
	}

	a.logger.Warn("sequence allocation attempts exhausted",
		zap.Int64("tenant_id", tenantID),
		zap.String("document_type", string(docType)),
		zap.Int("attempts", a.attempts),
	)
	return 0, shared.ErrSequenceConflict
}

// Peek returns the value the next allocation would produce without
// changing anything.
func (a *GormSequenceAllocator) Peek(ctx context.Context, db *gorm.DB, tenantID int64, docType numbering.DocumentType) (int64, error) {
	if tenantID <= 0 {
		return 0, shared.ErrMissingTenant
	}
	db = db.WithContext(ctx)

	var row models.DocumentSequenceModel
	err := db.Where(&models.DocumentSequenceModel{TenantID: tenantID, DocumentType: string(docType)}).
		Take(&row).Error
	if err == nil {
		return row.LastValue + 1, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, fmt.Errorf("failed to read sequence counter: %w", err)
	}
	seed, err := a.highWaterMark(db, tenantID, docType)
	if err != nil {
		return 0, fmt.Errorf("failed to read issued documents: %w", err)
	}
	return seed + 1, nil
}

// increment bumps an existing counter. The UPDATE takes the row lock, which
// is held until the surrounding transaction ends.
func (a *GormSequenceAllocator) increment(db *gorm.DB, tenantID int64, docType numbering.DocumentType) (int64, bool, error) {
	res := db.Model(&models.DocumentSequenceModel{}).
		Where("tenant_id = ? AND document_type = ?", tenantID, string(docType)).
		Updates(map[string]any{
			"last_value": gorm.Expr("last_value + 1"),
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return 0, false, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, false, nil
	}

	var row models.DocumentSequenceModel
	if err := db.Where("tenant_id = ? AND document_type = ?", tenantID, string(docType)).
		Take(&row).Error; err != nil {
		return 0, false, err
	}
	return row.LastValue, true, nil
}

// highWaterMark returns the largest sequence_no the tenant already holds
// for docType, or 0 when the type has no registered table.
func (a *GormSequenceAllocator) highWaterMark(db *gorm.DB, tenantID int64, docType numbering.DocumentType) (int64, error) {
	table, ok := a.tables[docType]
	if !ok {
		return 0, nil
	}
	var maxSeq int64
	err := db.Table(table).
		Where("tenant_id = ?", tenantID).
		Select("COALESCE(MAX(sequence_no), 0)").
		Scan(&maxSeq).Error
	if err != nil {
		return 0, err
	}
	return maxSeq, nil
}

func (a *GormSequenceAllocator) wrap(err error, tenantID int64, docType numbering.DocumentType) error {
	if isContention(err) {
		a.logger.Warn("sequence allocation hit lock contention",
			zap.Int64("tenant_id", tenantID),
			zap.String("document_type", string(docType)),
			zap.Error(err),
		)
		return fmt.Errorf("%w: %v", shared.ErrSequenceConflict, err)
	}
	return fmt.Errorf("failed to allocate %s sequence: %w", docType, err)
}
