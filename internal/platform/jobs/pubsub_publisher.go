package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/pubsub"

	"github.com/partsdesk/api/internal/services"
)

// PubSubReceiptEventPublisher publishes receipt lifecycle events to a Pub/Sub topic.
type PubSubReceiptEventPublisher struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
}

// NewPubSubReceiptEventPublisher constructs a Pub/Sub backed receipt event publisher.
func NewPubSubReceiptEventPublisher(topic *pubsub.Topic) (*PubSubReceiptEventPublisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub receipt publisher: topic is required")
	}
	return &PubSubReceiptEventPublisher{
		topic:   topic,
		marshal: json.Marshal,
	}, nil
}

// PublishReceiptEvent enqueues a receipt event message on the configured topic.
func (p *PubSubReceiptEventPublisher) PublishReceiptEvent(ctx context.Context, event services.ReceiptEvent) error {
	if p == nil || p.topic == nil {
		return errors.New("pubsub receipt publisher: not initialised")
	}

	data, err := p.marshal(event)
	if err != nil {
		return fmt.Errorf("marshal receipt event: %w", err)
	}

	attrs := make(map[string]string)
	setAttr(attrs, "eventType", event.Type)
	setAttr(attrs, "receiptId", event.ReceiptID)
	setAttr(attrs, "receiptNumber", event.ReceiptNumber)
	setAttr(attrs, "status", string(event.CurrentStatus))
	setAttr(attrs, "actorId", event.ActorID)

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	})

	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish receipt event: %w", err)
	}
	return nil
}

// PubSubStockEventPublisher publishes stock movement events to a Pub/Sub topic.
type PubSubStockEventPublisher struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
}

// NewPubSubStockEventPublisher constructs a Pub/Sub backed stock event publisher.
func NewPubSubStockEventPublisher(topic *pubsub.Topic) (*PubSubStockEventPublisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub stock publisher: topic is required")
	}
	return &PubSubStockEventPublisher{
		topic:   topic,
		marshal: json.Marshal,
	}, nil
}

// PublishStockEvent enqueues a stock movement message on the configured topic.
func (p *PubSubStockEventPublisher) PublishStockEvent(ctx context.Context, event services.StockEvent) error {
	if p == nil || p.topic == nil {
		return errors.New("pubsub stock publisher: not initialised")
	}

	data, err := p.marshal(event)
	if err != nil {
		return fmt.Errorf("marshal stock event: %w", err)
	}

	attrs := make(map[string]string)
	setAttr(attrs, "eventType", string(event.Type))
	setAttr(attrs, "partRef", event.PartRef)
	setAttr(attrs, "sourceRef", event.SourceRef)

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	})

	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish stock event: %w", err)
	}
	return nil
}

func setAttr(attrs map[string]string, key string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}
