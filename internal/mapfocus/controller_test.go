package mapfocus_test

import (
	"context"
	"io"
	"log/slog"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/couchcryptid/poolpocket-venues/internal/domain"
	"github.com/couchcryptid/poolpocket-venues/internal/mapfocus"
	"github.com/couchcryptid/poolpocket-venues/internal/observability"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingView struct {
	mu      sync.Mutex
	regions []domain.Region
	popups  []string
}

func (v *recordingView) AnimateToRegion(r domain.Region, d time.Duration) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.regions = append(v.regions, r)
}

func (v *recordingView) ShowPopup(key string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.popups = append(v.popups, key)
}

func (v *recordingView) shown() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.popups...)
}

func newController(t *testing.T) (*mapfocus.Controller, *clockwork.FakeClock, *observability.Metrics) {
	t.Helper()
	clock := clockwork.NewFakeClock()
	metrics := observability.NewMetricsForTesting()
	return mapfocus.NewController(clock, slog.New(slog.NewTextHandler(io.Discard, nil)), metrics), clock, metrics
}

func request(lat, lng float64, key string) domain.FocusRequest {
	return domain.FocusRequest{Target: &domain.GeoCoordinates{Latitude: lat, Longitude: lng}, PopupKey: key}
}

func waitForTimer(t *testing.T, clock *clockwork.FakeClock) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
}

func TestController_AnimatesThenReveals(t *testing.T) {
	c, clock, metrics := newController(t)
	view := &recordingView{}
	c.Mount(view)

	assert.Equal(t, mapfocus.Animating, c.Focus(request(10, 20, "fav-1")))
	require.Len(t, view.regions, 1)
	assert.Equal(t, domain.Region{
		Center:         domain.GeoCoordinates{Latitude: 10, Longitude: 20},
		LatitudeDelta:  0.02,
		LongitudeDelta: 0.02,
	}, view.regions[0])

	waitForTimer(t, clock)
	clock.Advance(mapfocus.RevealDelay - time.Millisecond)
	assert.Equal(t, mapfocus.Animating, c.State())
	assert.Empty(t, view.shown())

	clock.Advance(time.Millisecond)
	assert.Eventually(t, func() bool { return c.State() == mapfocus.Revealed }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"fav-1"}, view.shown())
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.FocusRequests.WithLabelValues("animating")), 0)
}

func TestController_IgnoresUnusableRequests(t *testing.T) {
	tests := []struct {
		name string
		req  domain.FocusRequest
	}{
		{"no target", domain.FocusRequest{PopupKey: "fav-1"}},
		{"latitude out of range", request(91, 0, "fav-1")},
		{"not a number", request(math.NaN(), 0, "fav-1")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _, metrics := newController(t)
			view := &recordingView{}
			c.Mount(view)

			assert.Equal(t, mapfocus.Idle, c.Focus(tt.req))
			assert.Empty(t, view.regions)
			assert.InDelta(t, 1, testutil.ToFloat64(metrics.FocusRequests.WithLabelValues("ignored")), 0)
		})
	}
}

func TestController_NoViewMounted(t *testing.T) {
	c, _, _ := newController(t)
	assert.Equal(t, mapfocus.Idle, c.Focus(request(10, 20, "fav-1")))
	assert.Equal(t, mapfocus.Idle, c.State())
}

func TestController_NewRequestCancelsPendingReveal(t *testing.T) {
	c, clock, _ := newController(t)
	view := &recordingView{}
	c.Mount(view)

	c.Focus(request(10, 20, "first"))
	waitForTimer(t, clock)
	clock.Advance(time.Second)

	assert.Equal(t, mapfocus.Animating, c.Focus(request(30, 40, "second")))
	waitForTimer(t, clock)

	// The first reveal would have been due now.
	clock.Advance(500 * time.Millisecond)
	assert.Equal(t, mapfocus.Animating, c.State())

	clock.Advance(time.Second)
	assert.Eventually(t, func() bool { return c.State() == mapfocus.Revealed }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"second"}, view.shown())
}

func TestController_RevealedRestartsOnNextRequest(t *testing.T) {
	c, clock, _ := newController(t)
	view := &recordingView{}
	c.Mount(view)

	c.Focus(request(10, 20, "a"))
	waitForTimer(t, clock)
	clock.Advance(mapfocus.RevealDelay)
	require.Eventually(t, func() bool { return c.State() == mapfocus.Revealed }, time.Second, 5*time.Millisecond)

	assert.Equal(t, mapfocus.Animating, c.Focus(request(11, 21, "b")))
	assert.Len(t, view.regions, 2)
}

func TestController_UnmountDropsPendingReveal(t *testing.T) {
	c, clock, _ := newController(t)
	view := &recordingView{}
	c.Mount(view)

	c.Focus(request(10, 20, "fav-1"))
	waitForTimer(t, clock)
	c.Unmount()
	clock.Advance(2 * mapfocus.RevealDelay)

	assert.Equal(t, mapfocus.Idle, c.State())
	assert.Empty(t, view.shown())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "idle", mapfocus.Idle.String())
	assert.Equal(t, "animating", mapfocus.Animating.String())
	assert.Equal(t, "revealed", mapfocus.Revealed.String())
	assert.Equal(t, "unknown", mapfocus.State(9).String())
}
