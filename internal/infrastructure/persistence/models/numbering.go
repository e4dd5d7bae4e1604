package models

import (
	"time"

	"github.com/erp/mfgerp/internal/domain/numbering"
)

// NumberingConfigModel stores a tenant's rendering setup per document type.
type NumberingConfigModel struct {
	ID           int64     `gorm:"primaryKey;autoIncrement"`
	TenantID     int64     `gorm:"not null;uniqueIndex:idx_numbering_configs_tenant_type,priority:1"`
	DocumentType string    `gorm:"type:varchar(10);not null;uniqueIndex:idx_numbering_configs_tenant_type,priority:2"`
	Prefix       string    `gorm:"type:varchar(20);not null"`
	Separator    string    `gorm:"type:varchar(3);not null;default:'-'"`
	DigitWidth   int       `gorm:"not null;default:3"`
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (NumberingConfigModel) TableName() string {
	return "numbering_configs"
}

// ToDomain converts the persistence model to a numbering.Config
func (m *NumberingConfigModel) ToDomain() numbering.Config {
	return numbering.Config{
		TenantID:     m.TenantID,
		DocumentType: numbering.DocumentType(m.DocumentType),
		Prefix:       m.Prefix,
		Separator:    m.Separator,
		DigitWidth:   m.DigitWidth,
	}
}

// FromDomain populates the persistence model from a numbering.Config
func (m *NumberingConfigModel) FromDomain(c numbering.Config) {
	m.TenantID = c.TenantID
	m.DocumentType = string(c.DocumentType)
	m.Prefix = c.Prefix
	m.Separator = c.Separator
	m.DigitWidth = c.DigitWidth
}

// DocumentSequenceModel is the counter row holding the last issued
// sequence of one (tenant, document type) pair.
type DocumentSequenceModel struct {
	TenantID     int64     `gorm:"primaryKey;autoIncrement:false"`
	DocumentType string    `gorm:"primaryKey;type:varchar(10)"`
	LastValue    int64     `gorm:"not null;default:0"`
	UpdatedAt    time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (DocumentSequenceModel) TableName() string {
	return "document_sequences"
}
