package models

import (
	"time"
)

// BaseModel provides the identity and audit columns shared by all tables.
type BaseModel struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// PrimaryKey returns the row id.
func (m *BaseModel) PrimaryKey() int64 {
	return m.ID
}

// TenantScope holds the ownership columns of a scoped record.
// TenantID never changes after insert; BranchID is nil for tenant-wide rows.
type TenantScope struct {
	TenantID int64  `gorm:"not null;index"`
	BranchID *int64 `gorm:"index"`
}

// Scope exposes the ownership columns to the scoped store.
func (s *TenantScope) Scope() *TenantScope {
	return s
}

// ScopedModel is the base of every tenant-owned table.
type ScopedModel struct {
	BaseModel
	TenantScope
	CreatedBy *int64 `gorm:"index"`
}

// DocumentModel adds the issued number columns of a numbered document.
type DocumentModel struct {
	ScopedModel
	SequenceNo     int64  `gorm:"not null"`
	DocumentNumber string `gorm:"type:varchar(50);not null"`
}

// Number returns the rendered document number.
func (m *DocumentModel) Number() string {
	return m.DocumentNumber
}

// AssignNumber records an issued number on the document.
func (m *DocumentModel) AssignNumber(seq int64, value string) {
	m.SequenceNo = seq
	m.DocumentNumber = value
}
