package events

import (
	"context"
	"encoding/json"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const eventSource = "service-mapview"

// Publisher delivers route events. Implementations must not block the
// caller on network I/O.
type Publisher interface {
	Publish(ctx context.Context, evt RouteEvent)
}

// NopPublisher drops every event.
type NopPublisher struct{}

// Publish does nothing.
func (NopPublisher) Publish(context.Context, RouteEvent) {}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// KafkaPublisher writes route events as CloudEvents to a Kafka topic using
// an asynchronous writer.
type KafkaPublisher struct {
	writer messageWriter
	logger *zap.Logger
}

// NewKafkaPublisher creates a publisher writing to topic on brokers.
func NewKafkaPublisher(brokers []string, topic string, logger *zap.Logger) *KafkaPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafkago.Hash{},
		BatchTimeout:           50 * time.Millisecond,
		RequiredAcks:           kafkago.RequireOne,
		Async:                  true,
		AllowAutoTopicCreation: true,
		Completion: func(msgs []kafkago.Message, err error) {
			if err != nil {
				logger.Error("failed to publish route events",
					zap.String("topic", topic),
					zap.Int("messages", len(msgs)),
					zap.Error(err),
				)
			}
		},
	}
	return &KafkaPublisher{writer: w, logger: logger}
}

// Publish enqueues evt. Encoding and enqueue errors are logged.
func (p *KafkaPublisher) Publish(ctx context.Context, evt RouteEvent) {
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = time.Now().UTC()
	}
	ce, err := NewCloudEvent(eventSource, evt.Type, evt)
	if err != nil {
		p.logger.Error("failed to create cloud event",
			zap.String("event_type", evt.Type),
			zap.Error(err),
		)
		return
	}
	ce.Subject = evt.ViewID.String()

	value, err := json.Marshal(ce)
	if err != nil {
		p.logger.Error("failed to encode cloud event",
			zap.String("event_type", evt.Type),
			zap.Error(err),
		)
		return
	}

	msg := kafkago.Message{Key: []byte(evt.ViewID.String()), Value: value}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("failed to publish event",
			zap.String("event_type", evt.Type),
			zap.String("view_id", evt.ViewID.String()),
			zap.Error(err),
		)
	}
}

// Close flushes pending messages and closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
