package favorites

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/poolpocket-venues/internal/domain"
	"github.com/couchcryptid/poolpocket-venues/internal/observability"
	"github.com/jonboulle/clockwork"
)

// EventSink receives favorite change events.
type EventSink interface {
	WriteEvents(ctx context.Context, events ...domain.FavoriteEvent) error
}

// Publishing wraps a store and emits a change event after every write that
// changed the collection. Event delivery is best effort: a failed publish is logged and
// counted but never fails the write that already succeeded.
type Publishing struct {
	domain.FavoritesStore
	sink    EventSink
	clock   clockwork.Clock
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewPublishing creates a Publishing decorator around inner.
func NewPublishing(inner domain.FavoritesStore, sink EventSink, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Publishing {
	return &Publishing{
		FavoritesStore: inner,
		sink:           sink,
		clock:          clock,
		logger:         logger,
		metrics:        metrics,
	}
}

// Add implements domain.FavoritesStore.
func (p *Publishing) Add(ctx context.Context, userID string, venue domain.VenuePlace) (domain.FavoriteEntry, error) {
	entry, err := p.FavoritesStore.Add(ctx, userID, venue)
	if err != nil {
		return entry, err
	}
	p.publish(ctx, domain.FavoriteAdded, userID, entry)
	return entry, nil
}

// Remove implements domain.FavoritesStore. Removing a missing id emits
// nothing.
func (p *Publishing) Remove(ctx context.Context, userID, id string) (bool, error) {
	removed, err := p.FavoritesStore.Remove(ctx, userID, id)
	if err != nil || !removed {
		return removed, err
	}
	p.publish(ctx, domain.FavoriteRemoved, userID, domain.FavoriteEntry{ID: id})
	return true, nil
}

func (p *Publishing) publish(ctx context.Context, eventType, userID string, entry domain.FavoriteEntry) {
	event := domain.FavoriteEvent{
		Type:       eventType,
		UserID:     userID,
		Entry:      entry,
		OccurredAt: p.clock.Now().UTC(),
	}
	if err := p.sink.WriteEvents(ctx, event); err != nil {
		p.metrics.FavoriteEventErrors.Inc()
		p.logger.Warn("publish favorite event failed",
			"event_type", eventType,
			"user_id", userID,
			"entry_id", entry.ID,
			"error", err,
		)
	}
}
