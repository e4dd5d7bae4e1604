package models

import (
	"time"

	"github.com/erp/mfgerp/internal/domain/timefmt"
)

// CompanySettingsModel holds per-tenant display preferences.
type CompanySettingsModel struct {
	TenantID   int64     `gorm:"primaryKey;autoIncrement:false"`
	Timezone   string    `gorm:"type:varchar(64);not null;default:'UTC'"`
	DateFormat string    `gorm:"type:varchar(32);not null;default:'DD-MM-YYYY'"`
	TimeFormat string    `gorm:"type:varchar(10);not null;default:'24-hour'"`
	CreatedAt  time.Time `gorm:"not null"`
	UpdatedAt  time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (CompanySettingsModel) TableName() string {
	return "company_settings"
}

// ToDomain converts the persistence model to timefmt.Settings
func (m *CompanySettingsModel) ToDomain() timefmt.Settings {
	return timefmt.Settings{
		Timezone:   m.Timezone,
		DateFormat: m.DateFormat,
		TimeStyle:  timefmt.TimeStyle(m.TimeFormat),
	}.WithDefaults()
}

// FromDomain populates the persistence model from timefmt.Settings
func (m *CompanySettingsModel) FromDomain(tenantID int64, s timefmt.Settings) {
	m.TenantID = tenantID
	m.Timezone = s.Timezone
	m.DateFormat = s.DateFormat
	m.TimeFormat = string(s.TimeStyle)
}
