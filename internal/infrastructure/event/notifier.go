package event

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/erp/mfgerp/internal/domain/shared"
)

// Notifier delivers an outbox entry to an external integration (mail, SMS,
// payment links). A returned error schedules a retry.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, entry *shared.OutboxEntry) error
}

// NotifierFunc adapts a function to the Notifier interface
type NotifierFunc struct {
	NameValue string
	Fn        func(ctx context.Context, entry *shared.OutboxEntry) error
}

func (f NotifierFunc) Name() string { return f.NameValue }

func (f NotifierFunc) Notify(ctx context.Context, entry *shared.OutboxEntry) error {
	return f.Fn(ctx, entry)
}

// LoggingNotifier writes delivered events to the log. It is registered when
// no external integration is configured.
type LoggingNotifier struct {
	logger *zap.Logger
}

// NewLoggingNotifier creates a logging notifier
func NewLoggingNotifier(logger *zap.Logger) *LoggingNotifier {
	return &LoggingNotifier{logger: logger}
}

func (n *LoggingNotifier) Name() string { return "log" }

func (n *LoggingNotifier) Notify(_ context.Context, entry *shared.OutboxEntry) error {
	fields := []zap.Field{
		zap.String("event_id", entry.EventID.String()),
		zap.String("event_type", entry.EventType),
		zap.Int64("tenant_id", entry.TenantID),
		zap.Int64("aggregate_id", entry.AggregateID),
	}

	if entry.EventType == shared.EventTypeDocumentNumbered {
		var evt shared.DocumentNumberedEvent
		if err := json.Unmarshal(entry.Payload, &evt); err != nil {
			return fmt.Errorf("decode %s payload: %w", entry.EventType, err)
		}
		fields = append(fields,
			zap.String("document_type", evt.DocumentType),
			zap.String("document_number", evt.DocumentNumber),
			zap.Int64("sequence_no", evt.SequenceNo),
		)
	}

	n.logger.Info("outbox event delivered", fields...)
	return nil
}
