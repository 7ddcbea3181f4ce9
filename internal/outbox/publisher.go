// Package outbox publishes events that were committed together with the
// data they describe, and consumes them on the other side.
package outbox

import (
	"context"
	"fmt"

	"github.com/fjod/skinet/internal/domain"
	"github.com/segmentio/kafka-go"
)

const (
	DefaultTopic   = "storefront-outbox"
	eventTypeKey   = "event_type"
	maxMessageSize = 10e6
)

type Publisher interface {
	Publish(ctx context.Context, event domain.OutboxEvent) error
}

// Handler reacts to one published event.
type Handler interface {
	Handle(ctx context.Context, eventType string, payload []byte) error
}

type KafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPublisher(topic string, brokers ...string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.LeastBytes{},
			AllowAutoTopicCreation: true,
		},
	}
}

// Publish keys messages by aggregate so events of one aggregate stay ordered.
func (p *KafkaPublisher) Publish(ctx context.Context, event domain.OutboxEvent) error {
	msg := kafka.Message{
		Key:   []byte(event.AggregateID),
		Value: event.Payload,
		Headers: []kafka.Header{
			{Key: eventTypeKey, Value: []byte(event.EventType)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write event %d: %w", event.ID, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// LocalPublisher hands events straight to a handler when no broker is
// configured.
type LocalPublisher struct {
	handler Handler
}

func NewLocalPublisher(handler Handler) *LocalPublisher {
	return &LocalPublisher{handler: handler}
}

func (p *LocalPublisher) Publish(ctx context.Context, event domain.OutboxEvent) error {
	return p.handler.Handle(ctx, event.EventType, event.Payload)
}
