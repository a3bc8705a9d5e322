package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/poolpocket-venues/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// EventReader consumes favorite events from the favorites topic.
type EventReader struct {
	reader *kafkago.Reader
	logger *slog.Logger
}

// NewEventReader creates a consumer. An empty groupID reads the topic from
// the first offset without committing.
func NewEventReader(brokers []string, topic, groupID string, logger *slog.Logger) *EventReader {
	r := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     brokers,
		Topic:       topic,
		GroupID:     groupID,
		StartOffset: kafkago.FirstOffset,
	})
	return &EventReader{reader: r, logger: logger}
}

// ReadEvent blocks for the next event. Undecodable messages are logged and
// skipped.
func (r *EventReader) ReadEvent(ctx context.Context) (domain.FavoriteEvent, error) {
	for {
		msg, err := r.reader.ReadMessage(ctx)
		if err != nil {
			return domain.FavoriteEvent{}, fmt.Errorf("read favorite event: %w", err)
		}
		event, err := deserializeMessage(msg)
		if err != nil {
			r.logger.Warn("skipping undecodable favorite event",
				"partition", msg.Partition,
				"offset", msg.Offset,
				"error", err,
			)
			continue
		}
		return event, nil
	}
}

func (r *EventReader) Close() error {
	return r.reader.Close()
}

func deserializeMessage(msg kafkago.Message) (domain.FavoriteEvent, error) {
	var event domain.FavoriteEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return domain.FavoriteEvent{}, fmt.Errorf("deserialize favorite event: %w", err)
	}
	if event.Type == "" {
		for _, h := range msg.Headers {
			if h.Key == headerEventType {
				event.Type = string(h.Value)
			}
		}
	}
	if event.UserID == "" {
		event.UserID = string(msg.Key)
	}
	return event, nil
}
