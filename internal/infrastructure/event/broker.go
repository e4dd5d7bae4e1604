package event

import (
	"context"
	"fmt"
	"strconv"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"

	"github.com/erp/mfgerp/internal/domain/shared"
)

// Message metadata keys set by BrokerNotifier
const (
	MetadataTenantID      = "tenant_id"
	MetadataEventType     = "event_type"
	MetadataAggregateType = "aggregate_type"
	MetadataAggregateID   = "aggregate_id"
)

// BrokerNotifier republishes outbox entries on a message broker. The message
// uuid is the event id, so a redelivered entry carries the same uuid.
type BrokerNotifier struct {
	publisher   message.Publisher
	topicPrefix string
}

// NewBrokerNotifier creates a notifier publishing to topicPrefix + event type
func NewBrokerNotifier(publisher message.Publisher, topicPrefix string) *BrokerNotifier {
	return &BrokerNotifier{publisher: publisher, topicPrefix: topicPrefix}
}

// Topic returns the topic events of eventType are published on
func (n *BrokerNotifier) Topic(eventType string) string {
	return n.topicPrefix + eventType
}

func (n *BrokerNotifier) Name() string { return "broker" }

func (n *BrokerNotifier) Notify(ctx context.Context, entry *shared.OutboxEntry) error {
	msg := message.NewMessage(entry.EventID.String(), entry.Payload)
	msg.Metadata.Set(MetadataTenantID, strconv.FormatInt(entry.TenantID, 10))
	msg.Metadata.Set(MetadataEventType, entry.EventType)
	msg.Metadata.Set(MetadataAggregateType, entry.AggregateType)
	msg.Metadata.Set(MetadataAggregateID, strconv.FormatInt(entry.AggregateID, 10))

	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	for k, v := range carrier {
		msg.Metadata.Set(k, v)
	}

	topic := n.Topic(entry.EventType)
	if err := n.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

// Consume feeds messages of topic to n until ctx is cancelled or the
// subscription closes. Rejected messages are logged and acknowledged;
// delivery retries happen in the outbox, before the broker.
func Consume(ctx context.Context, sub message.Subscriber, topic string, n Notifier, logger *zap.Logger) error {
	messages, err := sub.Subscribe(ctx, topic)
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", topic, err)
	}
	propagator := otel.GetTextMapPropagator()
	for msg := range messages {
		entry, err := entryFromMessage(msg)
		if err != nil {
			logger.Error("dropping malformed broker message",
				zap.String("topic", topic),
				zap.String("message_id", msg.UUID),
				zap.Error(err),
			)
			msg.Ack()
			continue
		}

		carrier := propagation.MapCarrier{}
		for k, v := range msg.Metadata {
			carrier[k] = v
		}
		msgCtx := propagator.Extract(ctx, carrier)

		if err := n.Notify(msgCtx, entry); err != nil {
			logger.Warn("broker consumer failed",
				zap.String("topic", topic),
				zap.String("notifier", n.Name()),
				zap.String("event_id", msg.UUID),
				zap.Error(err),
			)
		}
		msg.Ack()
	}
	return nil
}

func entryFromMessage(msg *message.Message) (*shared.OutboxEntry, error) {
	eventID, err := uuid.Parse(msg.UUID)
	if err != nil {
		return nil, fmt.Errorf("event id: %w", err)
	}
	tenantID, err := strconv.ParseInt(msg.Metadata.Get(MetadataTenantID), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("tenant id: %w", err)
	}
	aggregateID, _ := strconv.ParseInt(msg.Metadata.Get(MetadataAggregateID), 10, 64)
	return &shared.OutboxEntry{
		TenantID:      tenantID,
		EventID:       eventID,
		EventType:     msg.Metadata.Get(MetadataEventType),
		AggregateID:   aggregateID,
		AggregateType: msg.Metadata.Get(MetadataAggregateType),
		Payload:       msg.Payload,
	}, nil
}

// WatermillLogger adapts zap to watermill.LoggerAdapter
type WatermillLogger struct {
	logger *zap.Logger
}

// NewWatermillLogger creates a watermill logger writing to logger
func NewWatermillLogger(logger *zap.Logger) *WatermillLogger {
	return &WatermillLogger{logger: logger.Named("watermill")}
}

func (l *WatermillLogger) Error(msg string, err error, fields watermill.LogFields) {
	l.logger.Error(msg, append(zapFields(fields), zap.Error(err))...)
}

func (l *WatermillLogger) Info(msg string, fields watermill.LogFields) {
	l.logger.Info(msg, zapFields(fields)...)
}

func (l *WatermillLogger) Debug(msg string, fields watermill.LogFields) {
	l.logger.Debug(msg, zapFields(fields)...)
}

func (l *WatermillLogger) Trace(msg string, fields watermill.LogFields) {
	l.logger.Debug(msg, zapFields(fields)...)
}

func (l *WatermillLogger) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &WatermillLogger{logger: l.logger.With(zapFields(fields)...)}
}

func zapFields(fields watermill.LogFields) []zap.Field {
	out := make([]zap.Field, 0, len(fields))
	for k, v := range fields {
		out = append(out, zap.Any(k, v))
	}
	return out
}
