package redis

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/couchcryptid/poolpocket-venues/internal/domain"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testUser = "uid-42"

func newTestStore(t *testing.T) (*FavoritesStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewFavoritesStore(client, slog.New(slog.NewTextHandler(io.Discard, nil))), mr
}

func testVenue(name string) domain.VenuePlace {
	rating := 3.4
	return domain.VenuePlace{
		PlaceID:     "place-" + name,
		Name:        name,
		Address:     name + " vej 7",
		Coordinates: domain.GeoCoordinates{Latitude: 56.15, Longitude: 10.2},
		Rating:      &rating,
	}
}

type pushes struct {
	mu  sync.Mutex
	all [][]domain.FavoriteEntry
}

func (p *pushes) record(entries []domain.FavoriteEntry) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.all = append(p.all, entries)
}

func (p *pushes) snapshot() [][]domain.FavoriteEntry {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([][]domain.FavoriteEntry(nil), p.all...)
}

func TestFavoritesStore_AddWritesUserNamespace(t *testing.T) {
	store, mr := newTestStore(t)

	entry, err := store.Add(context.Background(), testUser, testVenue("Cue Club"))
	require.NoError(t, err)
	require.NotEmpty(t, entry.ID)

	raw := mr.HGet("users/uid-42/favorites", entry.ID)
	require.NotEmpty(t, raw)

	var r map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &r))
	assert.Equal(t, "Cue Club", r["name"])
	assert.Equal(t, "Cue Club vej 7", r["address"])
	assert.NotContains(t, r, "rating")
	assert.Equal(t, map[string]any{"lat": 56.15, "lng": 10.2}, r["location"])
}

func TestFavoritesStore_ListInInsertionOrder(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	var want []string
	for _, name := range []string{"A", "B", "C", "D"} {
		e, err := store.Add(ctx, testUser, testVenue(name))
		require.NoError(t, err)
		want = append(want, e.ID)
	}

	entries, err := store.List(ctx, testUser)
	require.NoError(t, err)
	require.Len(t, entries, 4)
	for i, e := range entries {
		assert.Equal(t, want[i], e.ID)
	}
	assert.Equal(t, "A", entries[0].Name)
}

func TestFavoritesStore_RemoveMissingIsNoop(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()
	_, err := store.Add(ctx, testUser, testVenue("A"))
	require.NoError(t, err)

	before, err := mr.Get(VersionKey(testUser))
	require.NoError(t, err)
	assert.Equal(t, "1", before)

	removed, err := store.Remove(ctx, testUser, "not-there")
	require.NoError(t, err)
	assert.False(t, removed)

	entries, err := store.List(ctx, testUser)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	after, err := mr.Get(VersionKey(testUser))
	require.NoError(t, err)
	assert.Equal(t, before, after, "a no-op delete leaves the version alone")
}

func TestFavoritesStore_WriteFailsWhenRedisDown(t *testing.T) {
	store, mr := newTestStore(t)
	mr.Close()

	_, err := store.Add(context.Background(), testUser, testVenue("A"))
	require.ErrorIs(t, err, domain.ErrWriteFailed)
	_, err = store.Remove(context.Background(), testUser, "x")
	require.ErrorIs(t, err, domain.ErrWriteFailed)
}

func TestFavoritesStore_SubscribePushesChanges(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	rec := &pushes{}
	unsubscribe, err := store.Subscribe(ctx, testUser, rec.record)
	require.NoError(t, err)
	defer unsubscribe()

	require.Len(t, rec.snapshot(), 1, "initial snapshot is pushed synchronously")
	assert.Empty(t, rec.snapshot()[0])

	entry, err := store.Add(ctx, testUser, testVenue("A"))
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(rec.snapshot()) == 2 }, 2*time.Second, 10*time.Millisecond)
	got := rec.snapshot()[1]
	require.Len(t, got, 1)
	assert.Equal(t, entry, got[0])

	removed, err := store.Remove(ctx, testUser, entry.ID)
	require.NoError(t, err)
	require.True(t, removed)
	require.Eventually(t, func() bool { return len(rec.snapshot()) == 3 }, 2*time.Second, 10*time.Millisecond)
	assert.Empty(t, rec.snapshot()[2])
}

func TestFavoritesStore_SubscribeSeesOtherClients(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	rec := &pushes{}
	unsubscribe, err := store.Subscribe(ctx, testUser, rec.record)
	require.NoError(t, err)
	defer unsubscribe()

	// Another device writes through its own connection.
	other := NewFavoritesStore(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}), store.logger)
	_, err = other.Add(ctx, testUser, testVenue("B"))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		all := rec.snapshot()
		return len(all) >= 2 && len(all[len(all)-1]) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestFavoritesStore_UnsubscribeStopsPushes(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	rec := &pushes{}
	unsubscribe, err := store.Subscribe(ctx, testUser, rec.record)
	require.NoError(t, err)
	unsubscribe()
	unsubscribe()

	_, err = store.Add(ctx, testUser, testVenue("A"))
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)
	assert.Len(t, rec.snapshot(), 1)
}

func containsID(entries []domain.FavoriteEntry, id string) bool {
	for _, e := range entries {
		if e.ID == id {
			return true
		}
	}
	return false
}

func TestFavoritesStore_BackToBackAddsNeverPushStale(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	rec := &pushes{}
	unsubscribe, err := store.Subscribe(ctx, testUser, rec.record)
	require.NoError(t, err)
	defer unsubscribe()

	_, err = store.Add(ctx, testUser, testVenue("A"))
	require.NoError(t, err)
	b, err := store.Add(ctx, testUser, testVenue("B"))
	require.NoError(t, err)
	afterB := len(rec.snapshot())

	require.Eventually(t, func() bool {
		all := rec.snapshot()
		return len(all[len(all)-1]) == 2
	}, 2*time.Second, 10*time.Millisecond)

	all := rec.snapshot()
	for i := afterB; i < len(all); i++ {
		assert.True(t, containsID(all[i], b.ID), "push %d after the second add is missing it", i)
	}
	for i := 1; i < len(all); i++ {
		assert.GreaterOrEqual(t, len(all[i]), len(all[i-1]), "push %d went backwards", i)
	}
}

func TestFavoritesStore_DuplicateNotificationsAreNotRepushed(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	rec := &pushes{}
	unsubscribe, err := store.Subscribe(ctx, testUser, rec.record)
	require.NoError(t, err)
	defer unsubscribe()

	_, err = store.Add(ctx, testUser, testVenue("A"))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(rec.snapshot()) == 2 }, 2*time.Second, 10*time.Millisecond)

	// Replayed and out-of-range announcements carry nothing new.
	mr.Publish(FavoritesPath(testUser), "1")
	mr.Publish(FavoritesPath(testUser), "99")
	assert.Never(t, func() bool { return len(rec.snapshot()) > 2 }, 100*time.Millisecond, 10*time.Millisecond)

	_, err = store.Add(ctx, testUser, testVenue("B"))
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		all := rec.snapshot()
		return len(all) == 3 && len(all[2]) == 2
	}, 2*time.Second, 10*time.Millisecond)
}

func TestFavoritesStore_UnsubscribeWaitsForInFlightPush(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	entered := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	unsubscribe, err := store.Subscribe(ctx, testUser, func([]domain.FavoriteEntry) {
		if calls.Add(1) == 2 {
			close(entered)
			<-release
		}
	})
	require.NoError(t, err)

	go func() { _, _ = store.Add(ctx, testUser, testVenue("A")) }()
	<-entered

	returned := make(chan struct{})
	go func() {
		unsubscribe()
		close(returned)
	}()
	assert.Never(t, func() bool {
		select {
		case <-returned:
			return true
		default:
			return false
		}
	}, 50*time.Millisecond, 5*time.Millisecond)

	close(release)
	require.Eventually(t, func() bool {
		select {
		case <-returned:
			return true
		default:
			return false
		}
	}, 2*time.Second, 5*time.Millisecond)

	_, err = store.Add(ctx, testUser, testVenue("B"))
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(2), calls.Load())
}

func TestFavoritesStore_CheckReadiness(t *testing.T) {
	store, mr := newTestStore(t)
	require.NoError(t, store.CheckReadiness(context.Background()))
	mr.Close()
	assert.Error(t, store.CheckReadiness(context.Background()))
}
