// Package screen holds the state containers behind the map and favorites
// screens. Each container owns its state and talks to position, discovery,
// favorites and map focus only through narrow interfaces.
package screen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/couchcryptid/poolpocket-venues/internal/discovery"
	"github.com/couchcryptid/poolpocket-venues/internal/domain"
	"github.com/couchcryptid/poolpocket-venues/internal/mapfocus"
)

// InitialSpan is the viewport span shown around the user's position.
const InitialSpan = 0.05

// Locator acquires the current position.
type Locator interface {
	Acquire(ctx context.Context) (domain.GeoCoordinates, error)
}

// Discoverer runs discovery where only the newest run may apply.
type Discoverer interface {
	Run(ctx context.Context, q discovery.Query, apply func(discovery.Result)) error
	Stop()
}

// Focuser consumes focus requests.
type Focuser interface {
	Focus(req domain.FocusRequest) mapfocus.State
}

// MapState is a snapshot of the map screen.
type MapState struct {
	Location      *domain.GeoCoordinates
	InitialRegion *domain.Region
	Venues        []domain.VenuePlace
	Loading       bool
	// Partial means the venue list may be incomplete.
	Partial bool
	Err     error
}

// MapScreen is the map screen's state container.
type MapScreen struct {
	userID   string
	locator  Locator
	discover Discoverer
	store    domain.FavoritesStore
	focus    Focuser
	radius   int
	keyword  string
	logger   *slog.Logger

	mu    sync.Mutex
	state MapState
}

// MapScreenConfig holds the discovery parameters used on entry.
type MapScreenConfig struct {
	RadiusMeters int
	Keyword      string
}

// NewMapScreen creates the map screen for userID.
func NewMapScreen(userID string, cfg MapScreenConfig, locator Locator, discover Discoverer,
	store domain.FavoritesStore, focus Focuser, logger *slog.Logger,
) *MapScreen {
	return &MapScreen{
		userID:   userID,
		locator:  locator,
		discover: discover,
		store:    store,
		focus:    focus,
		radius:   cfg.RadiusMeters,
		keyword:  cfg.Keyword,
		logger:   logger,
	}
}

// Enter runs the screen-entry flow. A focus request, if any, is handed to the
// focus controller before discovery starts. Position failures are returned
// for a blocking message; discovery failures only mark the venues partial.
func (s *MapScreen) Enter(ctx context.Context, focus *domain.FocusRequest) error {
	if focus != nil {
		s.Focus(*focus)
	}

	s.update(func(st *MapState) {
		st.Loading = true
		st.Err = nil
	})

	loc, err := s.locator.Acquire(ctx)
	if err != nil {
		s.update(func(st *MapState) {
			st.Loading = false
			st.Err = err
		})
		return err
	}
	region := domain.RegionAround(loc, InitialSpan)
	s.update(func(st *MapState) {
		st.Location = &loc
		st.InitialRegion = &region
	})

	q := discovery.Query{Center: loc, RadiusMeters: s.radius, Keyword: s.keyword}
	err = s.discover.Run(ctx, q, func(res discovery.Result) {
		s.update(func(st *MapState) {
			st.Venues = res.Venues
			st.Partial = res.Partial
			st.Err = res.Err
			st.Loading = false
		})
	})
	if errors.Is(err, discovery.ErrSuperseded) {
		s.logger.Debug("map screen discovery superseded", "user_id", s.userID)
		return nil
	}
	return err
}

// Focus forwards a focus request to the map.
func (s *MapScreen) Focus(req domain.FocusRequest) mapfocus.State {
	return s.focus.Focus(req)
}

// SaveFavorite stores v and returns the transient notice to show. A failed
// write leaves the rendered state untouched.
func (s *MapScreen) SaveFavorite(ctx context.Context, v domain.VenuePlace) (string, error) {
	if _, err := s.store.Add(ctx, s.userID, v); err != nil {
		s.logger.Warn("save favorite failed", "user_id", s.userID, "place_id", v.PlaceID, "error", err)
		return fmt.Sprintf("Could not save %s to favorites.", v.Name), err
	}
	return fmt.Sprintf("%s added to favorites.", v.Name), nil
}

// Snapshot returns a copy of the current state.
func (s *MapScreen) Snapshot() MapState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state
	st.Venues = append([]domain.VenuePlace(nil), s.state.Venues...)
	return st
}

// Leave stops any discovery still in flight.
func (s *MapScreen) Leave() {
	s.discover.Stop()
}

func (s *MapScreen) update(fn func(*MapState)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.state)
}
