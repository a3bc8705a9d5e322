// Package redis implements the remote favorites store on Redis. Each user's
// collection is a hash at users/{userId}/favorites keyed by entry id; every
// change bumps a per-collection version and publishes it on a channel of the
// same name, so subscribers re-read the snapshot and never push an older one.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/couchcryptid/poolpocket-venues/internal/domain"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// FavoritesStore implements domain.FavoritesStore on Redis.
type FavoritesStore struct {
	client goredis.UniversalClient
	logger *slog.Logger

	mu   sync.Mutex
	subs map[string]map[*subscription]struct{}
}

// NewFavoritesStore creates a store on an existing client.
func NewFavoritesStore(client goredis.UniversalClient, logger *slog.Logger) *FavoritesStore {
	return &FavoritesStore{client: client, logger: logger, subs: make(map[string]map[*subscription]struct{})}
}

// NewClient opens a Redis client and verifies the connection.
func NewClient(ctx context.Context, addr, password string, db int) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", addr, err)
	}
	return client, nil
}

// FavoritesPath is the namespace of a user's favorites collection.
func FavoritesPath(userID string) string {
	return "users/" + userID + "/favorites"
}

// VersionKey holds the collection's change counter. Every write that changes
// the collection increments it and publishes the new value on FavoritesPath.
func VersionKey(userID string) string {
	return FavoritesPath(userID) + ":version"
}

// record is the stored form of an entry; the id is the hash field.
type record struct {
	Name     string                `json:"name"`
	Address  string                `json:"address"`
	Location domain.GeoCoordinates `json:"location"`
}

// addScript stores an entry, bumps the collection version and announces it,
// all in one atomic step. It returns the new version.
var addScript = goredis.NewScript(`
redis.call('HSET', KEYS[1], ARGV[1], ARGV[2])
local v = redis.call('INCR', KEYS[2])
redis.call('PUBLISH', KEYS[1], tostring(v))
return v
`)

// removeScript deletes an entry and, only if it existed, bumps and announces
// the version. It returns the new version or 0 when nothing was deleted.
var removeScript = goredis.NewScript(`
if redis.call('HDEL', KEYS[1], ARGV[1]) == 0 then
	return 0
end
local v = redis.call('INCR', KEYS[2])
redis.call('PUBLISH', KEYS[1], tostring(v))
return v
`)

// Add implements domain.FavoritesStore.
func (s *FavoritesStore) Add(ctx context.Context, userID string, venue domain.VenuePlace) (domain.FavoriteEntry, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return domain.FavoriteEntry{}, fmt.Errorf("%w: generate id: %w", domain.ErrWriteFailed, err)
	}
	entry := domain.FavoriteFromVenue(venue)
	entry.ID = id.String()

	data, err := json.Marshal(record{Name: entry.Name, Address: entry.Address, Location: entry.Coordinates})
	if err != nil {
		return domain.FavoriteEntry{}, fmt.Errorf("%w: encode entry: %w", domain.ErrWriteFailed, err)
	}

	path := FavoritesPath(userID)
	version, err := addScript.Run(ctx, s.client, []string{path, VersionKey(userID)}, entry.ID, data).Int64()
	if err != nil {
		return domain.FavoriteEntry{}, fmt.Errorf("%w: %w", domain.ErrWriteFailed, err)
	}
	s.announce(path, version)
	return entry, nil
}

// Remove implements domain.FavoritesStore. Deleting a missing id succeeds,
// reports false and notifies nobody.
func (s *FavoritesStore) Remove(ctx context.Context, userID, id string) (bool, error) {
	path := FavoritesPath(userID)
	version, err := removeScript.Run(ctx, s.client, []string{path, VersionKey(userID)}, id).Int64()
	if err != nil {
		return false, fmt.Errorf("%w: %w", domain.ErrWriteFailed, err)
	}
	if version == 0 {
		return false, nil
	}
	s.announce(path, version)
	return true, nil
}

// List implements domain.FavoritesStore. Entry ids are UUIDv7, so sorting
// them restores insertion order.
func (s *FavoritesStore) List(ctx context.Context, userID string) ([]domain.FavoriteEntry, error) {
	raw, err := s.client.HGetAll(ctx, FavoritesPath(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("read favorites: %w", err)
	}
	return s.decode(userID, raw), nil
}

// snapshot reads the collection together with the version it reflects.
func (s *FavoritesStore) snapshot(ctx context.Context, userID string) ([]domain.FavoriteEntry, int64, error) {
	var all *goredis.MapStringStringCmd
	var ver *goredis.StringCmd
	_, err := s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		all = pipe.HGetAll(ctx, FavoritesPath(userID))
		ver = pipe.Get(ctx, VersionKey(userID))
		return nil
	})
	if err != nil && !errors.Is(err, goredis.Nil) {
		return nil, 0, fmt.Errorf("read favorites: %w", err)
	}
	version, err := ver.Int64()
	if err != nil && !errors.Is(err, goredis.Nil) {
		return nil, 0, fmt.Errorf("read favorites version: %w", err)
	}
	return s.decode(userID, all.Val()), version, nil
}

func (s *FavoritesStore) decode(userID string, raw map[string]string) []domain.FavoriteEntry {
	entries := make([]domain.FavoriteEntry, 0, len(raw))
	for id, data := range raw {
		var r record
		if err := json.Unmarshal([]byte(data), &r); err != nil {
			s.logger.Warn("skipping unreadable favorite", "user_id", userID, "entry_id", id, "error", err)
			continue
		}
		entries = append(entries, domain.FavoriteEntry{ID: id, Name: r.Name, Address: r.Address, Coordinates: r.Location})
	}
	slices.SortFunc(entries, func(a, b domain.FavoriteEntry) int { return strings.Compare(a.ID, b.ID) })
	return entries
}

// subscription is one attached listener. deliver serializes snapshot reads
// with onChange, so pushes never go backwards and a writer that announces a
// version waits out any push already in flight.
type subscription struct {
	userID   string
	onChange func([]domain.FavoriteEntry)

	deliver   sync.Mutex
	active    bool
	announced int64
	delivered int64
}

// announce records that version exists for path on every local subscription.
// The next push to each of them reflects at least that version.
func (s *FavoritesStore) announce(path string, version int64) {
	s.mu.Lock()
	subs := make([]*subscription, 0, len(s.subs[path]))
	for sub := range s.subs[path] {
		subs = append(subs, sub)
	}
	s.mu.Unlock()

	for _, sub := range subs {
		sub.deliver.Lock()
		sub.announced = max(sub.announced, version)
		sub.deliver.Unlock()
	}
}

// maxSnapshotReads bounds how often refresh re-reads a snapshot that is
// older than the announced version.
const maxSnapshotReads = 3

// refresh reads the collection and pushes it unless it was already
// delivered. A snapshot older than an announced version is re-read.
func (s *FavoritesStore) refresh(ctx context.Context, sub *subscription, version int64) {
	sub.deliver.Lock()
	defer sub.deliver.Unlock()
	if !sub.active {
		return
	}
	sub.announced = max(sub.announced, version)

	for attempt := 1; ; attempt++ {
		entries, current, err := s.snapshot(ctx, sub.userID)
		if err != nil {
			if ctx.Err() == nil {
				s.logger.Warn("favorites snapshot read failed", "user_id", sub.userID, "error", err)
			}
			return
		}
		if current < sub.announced {
			if attempt < maxSnapshotReads {
				continue
			}
			s.logger.Warn("favorites version behind announcement",
				"user_id", sub.userID, "version", current, "announced", sub.announced)
			sub.announced = current
		}
		if current <= sub.delivered {
			return
		}
		sub.delivered = current
		sub.onChange(entries)
		return
	}
}

func (s *FavoritesStore) attach(path string, sub *subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.subs[path] == nil {
		s.subs[path] = make(map[*subscription]struct{})
	}
	s.subs[path][sub] = struct{}{}
}

func (s *FavoritesStore) detach(path string, sub *subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs[path], sub)
	if len(s.subs[path]) == 0 {
		delete(s.subs, path)
	}
}

// Subscribe implements domain.FavoritesStore. The channel subscription is
// confirmed before the initial snapshot is read, so no write after Subscribe
// returns can be missed. Pushes run on a single goroutine in version order.
// onChange must not write to the same user's favorites or call the returned
// Unsubscribe.
func (s *FavoritesStore) Subscribe(ctx context.Context, userID string, onChange func([]domain.FavoriteEntry)) (domain.Unsubscribe, error) {
	path := FavoritesPath(userID)
	pubsub := s.client.Subscribe(ctx, path)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", path, err)
	}

	sub := &subscription{userID: userID, onChange: onChange, active: true}
	sub.deliver.Lock()
	s.attach(path, sub)
	initial, version, err := s.snapshot(ctx, userID)
	if err != nil {
		sub.deliver.Unlock()
		s.detach(path, sub)
		_ = pubsub.Close()
		return nil, err
	}
	sub.announced = max(sub.announced, version)
	sub.delivered = version
	onChange(initial)
	sub.deliver.Unlock()

	// Detached from the caller's ctx: the subscription lives until unsubscribed.
	readCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	go func() {
		defer close(done)
		for msg := range pubsub.Channel() {
			version, err := strconv.ParseInt(msg.Payload, 10, 64)
			if err != nil {
				s.logger.Debug("unversioned favorites notification", "path", path, "payload", msg.Payload)
			}
			s.refresh(readCtx, sub, version)
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			sub.deliver.Lock()
			sub.active = false
			sub.deliver.Unlock()
			s.detach(path, sub)
			cancel()
			if err := pubsub.Close(); err != nil {
				s.logger.Debug("close favorites subscription", "path", path, "error", err)
			}
			<-done
		})
	}, nil
}

// CheckReadiness pings Redis.
func (s *FavoritesStore) CheckReadiness(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
