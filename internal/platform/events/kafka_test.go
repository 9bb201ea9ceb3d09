package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vendormart/api/internal/services"
)

type stubWriter struct {
	writeFn func(context.Context, ...kafka.Message) error
	written []kafka.Message
	closed  bool
}

func (s *stubWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if s.writeFn != nil {
		if err := s.writeFn(ctx, msgs...); err != nil {
			return err
		}
	}
	s.written = append(s.written, msgs...)
	return nil
}

func (s *stubWriter) Close() error {
	s.closed = true
	return nil
}

func TestKafkaPublisherWritesKeyedMessage(t *testing.T) {
	writer := &stubWriter{}
	publisher := newKafkaPublisher(writer)
	occurred := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	err := publisher.PublishEvent(context.Background(), services.DomainEvent{
		ID:          "evt-1",
		Type:        services.EventStockAdjusted,
		AggregateID: "product-9",
		OccurredAt:  occurred,
		Data:        map[string]any{"stockAfter": 3},
	})
	require.NoError(t, err)
	require.Len(t, writer.written, 1)

	msg := writer.written[0]
	assert.Equal(t, "product-9", string(msg.Key))
	assert.Equal(t, occurred, msg.Time)

	var payload services.DomainEvent
	require.NoError(t, json.Unmarshal(msg.Value, &payload))
	assert.Equal(t, services.EventStockAdjusted, payload.Type)

	headers := map[string]string{}
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, "evt-1", headers["eventId"])
	assert.NotContains(t, headers, "userId")

	require.NoError(t, publisher.Close())
	assert.True(t, writer.closed)
}

func TestKafkaPublisherWrapsWriteErrors(t *testing.T) {
	boom := errors.New("broker down")
	publisher := newKafkaPublisher(&stubWriter{writeFn: func(context.Context, ...kafka.Message) error { return boom }})

	err := publisher.PublishEvent(context.Background(), services.DomainEvent{Type: services.EventOrderCancelled, AggregateID: "o1"})
	assert.ErrorIs(t, err, boom)
}

func TestNewKafkaPublisherValidates(t *testing.T) {
	_, err := NewKafkaPublisher([]string{" "}, "topic")
	assert.Error(t, err)
	_, err = NewKafkaPublisher([]string{"localhost:9092"}, "")
	assert.Error(t, err)

	publisher, err := NewKafkaPublisher([]string{"localhost:9092"}, "vendormart.events")
	require.NoError(t, err)
	require.NoError(t, publisher.Close())
}
