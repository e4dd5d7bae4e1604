package persistence

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/erp/mfgerp/internal/domain/shared"
	"github.com/erp/mfgerp/internal/domain/timefmt"
	"github.com/erp/mfgerp/internal/infrastructure/persistence/models"
)

// GormCompanySettingsRepository stores per-tenant display settings
type GormCompanySettingsRepository struct {
	db *gorm.DB
}

// NewGormCompanySettingsRepository creates a new GormCompanySettingsRepository
func NewGormCompanySettingsRepository(db *gorm.DB) *GormCompanySettingsRepository {
	return &GormCompanySettingsRepository{db: db}
}

// Find returns the stored settings, or nil when the tenant has none.
func (r *GormCompanySettingsRepository) Find(ctx context.Context, tenantID int64) (*timefmt.Settings, error) {
	if tenantID <= 0 {
		return nil, shared.ErrMissingTenant
	}
	var model models.CompanySettingsModel
	err := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID).Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	s := model.ToDomain()
	return &s, nil
}

// Save inserts or replaces the settings of a tenant.
func (r *GormCompanySettingsRepository) Save(ctx context.Context, tenantID int64, s timefmt.Settings) error {
	if tenantID <= 0 {
		return shared.ErrMissingTenant
	}
	now := time.Now()
	model := models.CompanySettingsModel{CreatedAt: now, UpdatedAt: now}
	model.FromDomain(tenantID, s)

	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tenant_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"timezone", "date_format", "time_format", "updated_at"}),
		}).
		Create(&model).Error
}
