package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/pubsub"

	"github.com/vendormart/api/internal/services"
)

// PubSubPublisher publishes domain events to a Pub/Sub topic as JSON with routing attributes.
type PubSubPublisher struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
}

var _ services.EventPublisher = (*PubSubPublisher)(nil)

// NewPubSubPublisher constructs a Pub/Sub backed event publisher.
func NewPubSubPublisher(topic *pubsub.Topic) (*PubSubPublisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub event publisher: topic is required")
	}
	topic.EnableMessageOrdering = true
	return &PubSubPublisher{
		topic:   topic,
		marshal: json.Marshal,
	}, nil
}

// PublishEvent blocks until the server acknowledges the message.
// Events for the same aggregate share an ordering key.
func (p *PubSubPublisher) PublishEvent(ctx context.Context, event services.DomainEvent) error {
	if p == nil || p.topic == nil {
		return errors.New("pubsub event publisher: not initialised")
	}

	data, err := p.marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", event.Type, err)
	}

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:        data,
		Attributes:  eventAttributes(event),
		OrderingKey: strings.TrimSpace(event.AggregateID),
	})
	if _, err := result.Get(ctx); err != nil {
		if key := strings.TrimSpace(event.AggregateID); key != "" {
			p.topic.ResumePublish(key)
		}
		return fmt.Errorf("publish event %s: %w", event.Type, err)
	}
	return nil
}

// Stop flushes pending messages.
func (p *PubSubPublisher) Stop() {
	if p != nil && p.topic != nil {
		p.topic.Stop()
	}
}

func eventAttributes(event services.DomainEvent) map[string]string {
	attrs := make(map[string]string)
	setAttr(attrs, "eventId", event.ID)
	setAttr(attrs, "eventType", event.Type)
	setAttr(attrs, "aggregateId", event.AggregateID)
	setAttr(attrs, "userId", event.UserID)
	return attrs
}

func setAttr(attrs map[string]string, key string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}
