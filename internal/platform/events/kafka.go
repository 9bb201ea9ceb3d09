package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/vendormart/api/internal/services"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes domain events to a Kafka topic keyed by aggregate id.
type KafkaPublisher struct {
	writer  messageWriter
	marshal func(any) ([]byte, error)
}

var _ services.EventPublisher = (*KafkaPublisher)(nil)

// NewKafkaPublisher builds a publisher with a hash-balanced writer so one aggregate stays on one partition.
func NewKafkaPublisher(brokers []string, topic string) (*KafkaPublisher, error) {
	clean := make([]string, 0, len(brokers))
	for _, b := range brokers {
		if b = strings.TrimSpace(b); b != "" {
			clean = append(clean, b)
		}
	}
	if len(clean) == 0 {
		return nil, errors.New("kafka event publisher: brokers are required")
	}
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, errors.New("kafka event publisher: topic is required")
	}
	return newKafkaPublisher(&kafka.Writer{
		Addr:         kafka.TCP(clean...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 10 * time.Millisecond,
	}), nil
}

func newKafkaPublisher(writer messageWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: writer, marshal: json.Marshal}
}

func (p *KafkaPublisher) PublishEvent(ctx context.Context, event services.DomainEvent) error {
	if p == nil || p.writer == nil {
		return errors.New("kafka event publisher: not initialised")
	}
	data, err := p.marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", event.Type, err)
	}

	headers := make([]kafka.Header, 0, 4)
	for key, value := range eventAttributes(event) {
		headers = append(headers, kafka.Header{Key: key, Value: []byte(value)})
	}
	occurred := event.OccurredAt
	if occurred.IsZero() {
		occurred = time.Now()
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:     []byte(event.AggregateID),
		Value:   data,
		Headers: headers,
		Time:    occurred.UTC(),
	})
	if err != nil {
		return fmt.Errorf("publish event %s: %w", event.Type, err)
	}
	return nil
}

// Close flushes and closes the underlying writer.
func (p *KafkaPublisher) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
