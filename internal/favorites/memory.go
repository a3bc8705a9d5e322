// Package favorites holds the in-process favorites store and store
// decorators shared by every backend.
package favorites

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/couchcryptid/poolpocket-venues/internal/domain"
	"github.com/google/uuid"
)

// MemoryStore is a process-local domain.FavoritesStore. Subscribers are
// notified synchronously on the writer's goroutine, one change at a time, so
// onChange callbacks must not write to the same user's favorites or call
// their own Unsubscribe.
type MemoryStore struct {
	mu    sync.Mutex
	users map[string]*collection
}

type collection struct {
	// deliver serializes change+notify so pushes reach subscribers in write order.
	deliver sync.Mutex

	mu      sync.Mutex
	entries []domain.FavoriteEntry
	subs    map[uint64]*subscriber
	nextSub uint64
}

type subscriber struct {
	onChange func([]domain.FavoriteEntry)
	active   atomic.Bool
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{users: make(map[string]*collection)}
}

func (s *MemoryStore) collection(userID string) *collection {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.users[userID]
	if !ok {
		c = &collection{subs: make(map[uint64]*subscriber)}
		s.users[userID] = c
	}
	return c
}

// Add implements domain.FavoritesStore.
func (s *MemoryStore) Add(_ context.Context, userID string, venue domain.VenuePlace) (domain.FavoriteEntry, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return domain.FavoriteEntry{}, fmt.Errorf("%w: generate id: %w", domain.ErrWriteFailed, err)
	}
	entry := domain.FavoriteFromVenue(venue)
	entry.ID = id.String()

	s.collection(userID).change(func(c *collection) bool {
		c.entries = append(c.entries, entry)
		return true
	})
	return entry, nil
}

// Remove implements domain.FavoritesStore.
func (s *MemoryStore) Remove(_ context.Context, userID, id string) (bool, error) {
	removed := s.collection(userID).change(func(c *collection) bool {
		i := slices.IndexFunc(c.entries, func(e domain.FavoriteEntry) bool { return e.ID == id })
		if i < 0 {
			return false
		}
		c.entries = slices.Delete(c.entries, i, i+1)
		return true
	})
	return removed, nil
}

// List implements domain.FavoritesStore.
func (s *MemoryStore) List(_ context.Context, userID string) ([]domain.FavoriteEntry, error) {
	c := s.collection(userID)
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot(), nil
}

// Subscribe implements domain.FavoritesStore.
func (s *MemoryStore) Subscribe(_ context.Context, userID string, onChange func([]domain.FavoriteEntry)) (domain.Unsubscribe, error) {
	c := s.collection(userID)
	sub := &subscriber{onChange: onChange}
	sub.active.Store(true)

	c.deliver.Lock()
	c.mu.Lock()
	key := c.nextSub
	c.nextSub++
	c.subs[key] = sub
	snap := c.snapshot()
	c.mu.Unlock()
	sub.push(snap)
	c.deliver.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.deliver.Lock()
			defer c.deliver.Unlock()
			sub.active.Store(false)
			c.mu.Lock()
			delete(c.subs, key)
			c.mu.Unlock()
		})
	}, nil
}

// change applies fn and, when it reports a change, pushes the new snapshot
// to every subscriber before returning. It returns fn's result.
func (c *collection) change(fn func(c *collection) bool) bool {
	c.deliver.Lock()
	defer c.deliver.Unlock()

	c.mu.Lock()
	if !fn(c) {
		c.mu.Unlock()
		return false
	}
	snap := c.snapshot()
	subs := make([]*subscriber, 0, len(c.subs))
	for _, sub := range c.subs {
		subs = append(subs, sub)
	}
	c.mu.Unlock()

	for _, sub := range subs {
		sub.push(slices.Clone(snap))
	}
	return true
}

func (c *collection) snapshot() []domain.FavoriteEntry {
	return slices.Clone(c.entries)
}

func (s *subscriber) push(entries []domain.FavoriteEntry) {
	if entries == nil {
		entries = []domain.FavoriteEntry{}
	}
	if s.active.Load() {
		s.onChange(entries)
	}
}
