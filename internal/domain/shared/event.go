package shared

import (
	"time"

	"github.com/google/uuid"
)

// DomainEvent represents an event that occurred in the domain
type DomainEvent interface {
	EventID() uuid.UUID
	EventType() string
	OccurredAt() time.Time
	AggregateID() int64
	AggregateType() string
	TenantID() int64
}

// BaseDomainEvent provides common fields for all domain events
type BaseDomainEvent struct {
	ID            uuid.UUID `json:"id"`
	Type          string    `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggID         int64     `json:"aggregate_id"`
	AggType       string    `json:"aggregate_type"`
	TenantIDValue int64     `json:"tenant_id"`
}

func (e *BaseDomainEvent) EventID() uuid.UUID    { return e.ID }
func (e *BaseDomainEvent) EventType() string     { return e.Type }
func (e *BaseDomainEvent) OccurredAt() time.Time { return e.Timestamp }
func (e *BaseDomainEvent) AggregateID() int64    { return e.AggID }
func (e *BaseDomainEvent) AggregateType() string { return e.AggType }
func (e *BaseDomainEvent) TenantID() int64       { return e.TenantIDValue }

// NewBaseDomainEvent creates a new base domain event
func NewBaseDomainEvent(eventType, aggType string, aggID, tenantID int64) BaseDomainEvent {
	return BaseDomainEvent{
		ID:            uuid.New(),
		Type:          eventType,
		Timestamp:     time.Now().UTC(),
		AggID:         aggID,
		AggType:       aggType,
		TenantIDValue: tenantID,
	}
}

// EventTypeDocumentNumbered is published when a numbered document is created
const EventTypeDocumentNumbered = "document.numbered"

// DocumentNumberedEvent carries an issued document number to integrations
// (mail, SMS, payment links). Consumers only see fully rendered values.
type DocumentNumberedEvent struct {
	BaseDomainEvent
	DocumentType   string `json:"document_type"`
	DocumentNumber string `json:"document_number"`
	SequenceNo     int64  `json:"sequence_no"`
	BranchID       *int64 `json:"branch_id,omitempty"`
}

// NewDocumentNumberedEvent creates a document.numbered event
func NewDocumentNumberedEvent(tenantID, documentID int64, branchID *int64, docType, number string, seq int64) *DocumentNumberedEvent {
	return &DocumentNumberedEvent{
		BaseDomainEvent: NewBaseDomainEvent(EventTypeDocumentNumbered, docType, documentID, tenantID),
		DocumentType:    docType,
		DocumentNumber:  number,
		SequenceNo:      seq,
		BranchID:        branchID,
	}
}
