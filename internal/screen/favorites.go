package screen

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"

	"github.com/couchcryptid/poolpocket-venues/internal/domain"
)

// ErrNotOpen is returned when the favorites screen has no live subscription.
var ErrNotOpen = errors.New("favorites screen not open")

// FavoritesScreen mirrors a user's favorites through a live subscription.
type FavoritesScreen struct {
	userID string
	store  domain.FavoritesStore
	logger *slog.Logger

	// lifecycle serializes Open and Close so at most one subscription exists.
	lifecycle sync.Mutex

	mu      sync.Mutex
	entries []domain.FavoriteEntry
	unsub   domain.Unsubscribe
}

// NewFavoritesScreen creates the favorites screen for userID.
func NewFavoritesScreen(userID string, store domain.FavoritesStore, logger *slog.Logger) *FavoritesScreen {
	return &FavoritesScreen{userID: userID, store: store, logger: logger}
}

// Open attaches the subscription. Opening an open screen is a no-op.
func (s *FavoritesScreen) Open(ctx context.Context) error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	s.mu.Lock()
	open := s.unsub != nil
	s.mu.Unlock()
	if open {
		return nil
	}

	unsub, err := s.store.Subscribe(ctx, s.userID, func(entries []domain.FavoriteEntry) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.entries = entries
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.unsub = unsub
	s.mu.Unlock()
	return nil
}

// Entries returns the latest pushed snapshot.
func (s *FavoritesScreen) Entries() []domain.FavoriteEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.entries)
}

// Delete removes an entry; the list updates through the subscription.
func (s *FavoritesScreen) Delete(ctx context.Context, id string) error {
	if _, err := s.store.Remove(ctx, s.userID, id); err != nil {
		s.logger.Warn("delete favorite failed", "user_id", s.userID, "id", id, "error", err)
		return err
	}
	return nil
}

// Select returns the focus request used to navigate to a favorite on the map.
func (s *FavoritesScreen) Select(id string) (domain.FocusRequest, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := slices.IndexFunc(s.entries, func(e domain.FavoriteEntry) bool { return e.ID == id })
	if i < 0 {
		return domain.FocusRequest{}, false
	}
	return domain.FocusRequestFor(s.entries[i]), true
}

// Close detaches the subscription. It is safe to call more than once.
func (s *FavoritesScreen) Close() {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	s.mu.Lock()
	unsub := s.unsub
	s.unsub = nil
	s.mu.Unlock()
	if unsub != nil {
		unsub()
	}
}
