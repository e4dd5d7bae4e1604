package persistence

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/erp/mfgerp/internal/domain/numbering"
	"github.com/erp/mfgerp/internal/domain/shared"
	"github.com/erp/mfgerp/internal/infrastructure/persistence/models"
)

// GormNumberingConfigRepository stores tenant numbering configurations
type GormNumberingConfigRepository struct {
	db *gorm.DB
}

// NewGormNumberingConfigRepository creates a new GormNumberingConfigRepository
func NewGormNumberingConfigRepository(db *gorm.DB) *GormNumberingConfigRepository {
	return &GormNumberingConfigRepository{db: db}
}

// WithTx returns a new repository instance with the given transaction
func (r *GormNumberingConfigRepository) WithTx(tx *gorm.DB) *GormNumberingConfigRepository {
	return &GormNumberingConfigRepository{db: tx}
}

// BindTx returns the repository as a numbering.ConfigSource reading through tx
func (r *GormNumberingConfigRepository) BindTx(tx *gorm.DB) numbering.ConfigSource {
	return r.WithTx(tx)
}

// FindConfig returns the stored configuration, or nil when the tenant has
// not configured docType.
func (r *GormNumberingConfigRepository) FindConfig(ctx context.Context, tenantID int64, docType numbering.DocumentType) (*numbering.Config, error) {
	if tenantID <= 0 {
		return nil, shared.ErrMissingTenant
	}
	var model models.NumberingConfigModel
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND document_type = ?", tenantID, string(docType)).
		Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	cfg := model.ToDomain()
	return &cfg, nil
}

// ListByTenant returns every stored configuration of a tenant ordered by type.
func (r *GormNumberingConfigRepository) ListByTenant(ctx context.Context, tenantID int64) ([]numbering.Config, error) {
	if tenantID <= 0 {
		return nil, shared.ErrMissingTenant
	}
	var rows []models.NumberingConfigModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("document_type").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	configs := make([]numbering.Config, len(rows))
	for i := range rows {
		configs[i] = rows[i].ToDomain()
	}
	return configs, nil
}

// Upsert inserts or replaces the configuration of (cfg.TenantID, cfg.DocumentType).
func (r *GormNumberingConfigRepository) Upsert(ctx context.Context, cfg numbering.Config) error {
	if cfg.TenantID <= 0 {
		return shared.ErrMissingTenant
	}
	now := time.Now()
	model := models.NumberingConfigModel{CreatedAt: now, UpdatedAt: now}
	model.FromDomain(cfg)

	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "document_type"}},
			DoUpdates: clause.AssignmentColumns([]string{"prefix", "separator", "digit_width", "updated_at"}),
		}).
		Create(&model).Error
}
