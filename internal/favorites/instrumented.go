package favorites

import (
	"context"
	"log/slog"
	"sync"

	"github.com/couchcryptid/poolpocket-venues/internal/domain"
	"github.com/couchcryptid/poolpocket-venues/internal/observability"
)

// Instrumented records write outcomes and active subscriptions for a store.
type Instrumented struct {
	domain.FavoritesStore
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewInstrumented wraps inner with metrics and logging.
func NewInstrumented(inner domain.FavoritesStore, logger *slog.Logger, metrics *observability.Metrics) *Instrumented {
	return &Instrumented{FavoritesStore: inner, logger: logger, metrics: metrics}
}

func (s *Instrumented) Add(ctx context.Context, userID string, venue domain.VenuePlace) (domain.FavoriteEntry, error) {
	entry, err := s.FavoritesStore.Add(ctx, userID, venue)
	s.observe("add", err)
	if err != nil {
		s.logger.Error("add favorite failed", "user_id", userID, "place_id", venue.PlaceID, "error", err)
		return entry, err
	}
	s.logger.Info("favorite added", "user_id", userID, "entry_id", entry.ID, "name", entry.Name)
	return entry, nil
}

func (s *Instrumented) Remove(ctx context.Context, userID, id string) (bool, error) {
	removed, err := s.FavoritesStore.Remove(ctx, userID, id)
	s.observe("remove", err)
	if err != nil {
		s.logger.Error("remove favorite failed", "user_id", userID, "entry_id", id, "error", err)
		return false, err
	}
	if removed {
		s.logger.Info("favorite removed", "user_id", userID, "entry_id", id)
	} else {
		s.logger.Debug("favorite already absent", "user_id", userID, "entry_id", id)
	}
	return removed, nil
}

func (s *Instrumented) Subscribe(ctx context.Context, userID string, onChange func([]domain.FavoriteEntry)) (domain.Unsubscribe, error) {
	unsubscribe, err := s.FavoritesStore.Subscribe(ctx, userID, onChange)
	if err != nil {
		return nil, err
	}
	s.metrics.FavoritesSubscribers.Inc()
	var once sync.Once
	return func() {
		once.Do(func() {
			unsubscribe()
			s.metrics.FavoritesSubscribers.Dec()
		})
	}, nil
}

func (s *Instrumented) observe(op string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	s.metrics.FavoritesWrites.WithLabelValues(op, outcome).Inc()
}
