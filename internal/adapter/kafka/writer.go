// Package kafka publishes and tails favorite change events.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/poolpocket-venues/internal/config"
	"github.com/couchcryptid/poolpocket-venues/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// Message headers.
const (
	headerEventType  = "event_type"
	headerOccurredAt = "occurred_at"
)

// EventWriter produces favorite events to a Kafka topic.
// It implements favorites.EventSink.
type EventWriter struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewEventWriter creates a Kafka producer for the favorites topic.
func NewEventWriter(cfg *config.Config, logger *slog.Logger) *EventWriter {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaFavoritesTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &EventWriter{writer: w, logger: logger}
}

// WriteEvents publishes events in one WriteMessages call. Messages are keyed
// by user id so a user's events stay ordered within a partition.
func (w *EventWriter) WriteEvents(ctx context.Context, events ...domain.FavoriteEvent) error {
	if len(events) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(events))
	for i := range events {
		msg, err := serializeToMessage(events[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write favorite events: %w", err)
	}
	w.logger.Debug("favorite events written", "count", len(msgs))
	return nil
}

func (w *EventWriter) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a FavoriteEvent into a Kafka message.
func serializeToMessage(event domain.FavoriteEvent) (kafkago.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize favorite event: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(event.UserID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: headerEventType, Value: []byte(event.Type)},
			{Key: headerOccurredAt, Value: []byte(event.OccurredAt.Format(time.RFC3339))},
		},
	}, nil
}
