package event

import (
	"context"
	"encoding/json"
	"fmt"

	"gorm.io/gorm"

	"github.com/erp/mfgerp/internal/domain/shared"
)

// OutboxPublisher writes domain events to the outbox inside the caller's
// transaction, so an event exists exactly when its document does.
type OutboxPublisher struct {
	maxRetries int
}

// NewOutboxPublisher creates a new outbox publisher. maxRetries <= 0 keeps
// shared.DefaultMaxRetries.
func NewOutboxPublisher(maxRetries int) *OutboxPublisher {
	return &OutboxPublisher{maxRetries: maxRetries}
}

// PublishWithTx serializes events as JSON and stores them through tx
func (p *OutboxPublisher) PublishWithTx(ctx context.Context, tx *gorm.DB, events ...shared.DomainEvent) error {
	if len(events) == 0 {
		return nil
	}

	entries := make([]*shared.OutboxEntry, 0, len(events))
	for _, event := range events {
		payload, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("serialize %s event: %w", event.EventType(), err)
		}
		entry := shared.NewOutboxEntry(event, payload)
		if p.maxRetries > 0 {
			entry.MaxRetries = p.maxRetries
		}
		entries = append(entries, entry)
	}

	return NewGormOutboxRepository(tx).Save(ctx, entries...)
}
