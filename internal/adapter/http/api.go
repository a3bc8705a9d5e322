package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/poolpocket-venues/internal/discovery"
	"github.com/couchcryptid/poolpocket-venues/internal/domain"
	"github.com/couchcryptid/poolpocket-venues/internal/identity"
	"github.com/couchcryptid/poolpocket-venues/internal/position"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	// maxRadiusMeters is the largest search radius the provider accepts.
	maxRadiusMeters = 50000
	// streamHeartbeat keeps idle favorites streams open through proxies.
	streamHeartbeat = 30 * time.Second
)

// UserIdentity resolves the caller's user id.
type UserIdentity interface {
	UserID(r *http.Request) (string, error)
}

// APIConfig wires the /v1 handlers.
type APIConfig struct {
	Discovery      *discovery.Service
	Favorites      domain.FavoritesStore
	Identity       UserIdentity
	DefaultRadius  int
	DefaultKeyword string
	// MaxSessions bounds how many users keep a supersede slot for discovery.
	MaxSessions int
}

// API serves venue discovery and favorites.
type API struct {
	cfg      APIConfig
	sessions *lru.Cache[string, *discovery.Latest]
	logger   *slog.Logger
}

// NewAPI creates the /v1 handlers.
func NewAPI(cfg APIConfig, logger *slog.Logger) (*API, error) {
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = 1024
	}
	sessions, err := lru.New[string, *discovery.Latest](cfg.MaxSessions)
	if err != nil {
		return nil, fmt.Errorf("create discovery sessions: %w", err)
	}
	return &API{cfg: cfg, sessions: sessions, logger: logger}, nil
}

func (a *API) register(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/venues", a.handleVenues)
	mux.HandleFunc("GET /v1/favorites", a.withUser(a.handleListFavorites))
	mux.HandleFunc("POST /v1/favorites", a.withUser(a.handleAddFavorite))
	mux.HandleFunc("DELETE /v1/favorites/{id}", a.withUser(a.handleRemoveFavorite))
	mux.HandleFunc("GET /v1/favorites/stream", a.withUser(a.handleFavoritesStream))
}

type venueResponse struct {
	domain.VenuePlace
	RatingTier string `json:"rating_tier"`
}

type venuesResponse struct {
	Venues  []venueResponse `json:"venues"`
	Partial bool            `json:"partial"`
	Error   string          `json:"error,omitempty"`
}

func (a *API) handleVenues(w http.ResponseWriter, r *http.Request) {
	q, err := a.parseVenueQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	res, err := a.discover(r, q)
	if errors.Is(err, discovery.ErrSuperseded) {
		writeError(w, http.StatusConflict, err)
		return
	}

	out := venuesResponse{Venues: make([]venueResponse, 0, len(res.Venues)), Partial: res.Partial}
	for _, v := range res.Venues {
		out.Venues = append(out.Venues, venueResponse{VenuePlace: v, RatingTier: domain.RatingTier(v.Rating)})
	}
	if res.Err != nil {
		out.Error = res.Err.Error()
	}
	sharedobs.WriteJSON(w, http.StatusOK, out)
}

// discover routes identified callers through their session so a newer
// request from the same user supersedes an older one.
func (a *API) discover(r *http.Request, q discovery.Query) (discovery.Result, error) {
	userID, err := a.cfg.Identity.UserID(r)
	if err != nil {
		return a.cfg.Discovery.Discover(r.Context(), q), nil
	}
	latest := discovery.NewLatest(a.cfg.Discovery)
	if prev, found, _ := a.sessions.PeekOrAdd(userID, latest); found {
		latest = prev
	}
	return latest.Discover(r.Context(), q)
}

func (a *API) parseVenueQuery(r *http.Request) (discovery.Query, error) {
	params := r.URL.Query()
	lat, err := parseFloatParam(params.Get("lat"), "lat")
	if err != nil {
		return discovery.Query{}, err
	}
	lng, err := parseFloatParam(params.Get("lng"), "lng")
	if err != nil {
		return discovery.Query{}, err
	}
	requested := domain.GeoCoordinates{Latitude: lat, Longitude: lng}
	center, err := position.NewProvider(position.Granted(), position.Fixed(requested), a.logger).Acquire(r.Context())
	if err != nil {
		return discovery.Query{}, err
	}

	q := discovery.Query{Center: center, RadiusMeters: a.cfg.DefaultRadius, Keyword: a.cfg.DefaultKeyword}
	if raw := params.Get("radius"); raw != "" {
		radius, err := strconv.Atoi(raw)
		if err != nil || radius <= 0 || radius > maxRadiusMeters {
			return discovery.Query{}, fmt.Errorf("radius must be between 1 and %d", maxRadiusMeters)
		}
		q.RadiusMeters = radius
	}
	if kw := strings.TrimSpace(params.Get("keyword")); kw != "" {
		q.Keyword = kw
	}
	return q, nil
}

func parseFloatParam(raw, name string) (float64, error) {
	if raw == "" {
		return 0, fmt.Errorf("%s is required", name)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", name, raw)
	}
	return v, nil
}

type userHandler func(w http.ResponseWriter, r *http.Request, userID string)

func (a *API) withUser(next userHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := a.cfg.Identity.UserID(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err)
			return
		}
		next(w, r, userID)
	}
}

func (a *API) handleListFavorites(w http.ResponseWriter, r *http.Request, userID string) {
	entries, err := a.cfg.Favorites.List(r.Context(), userID)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, map[string][]domain.FavoriteEntry{"favorites": entries})
}

func (a *API) handleAddFavorite(w http.ResponseWriter, r *http.Request, userID string) {
	var venue domain.VenuePlace
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&venue); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode venue: %w", err))
		return
	}
	if strings.TrimSpace(venue.Name) == "" || !venue.Coordinates.Valid() {
		writeError(w, http.StatusBadRequest, errors.New("venue needs a name and valid location"))
		return
	}

	entry, err := a.cfg.Favorites.Add(r.Context(), userID, venue)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusCreated, entry)
}

func (a *API) handleRemoveFavorite(w http.ResponseWriter, r *http.Request, userID string) {
	if _, err := a.cfg.Favorites.Remove(r.Context(), userID, r.PathValue("id")); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleFavoritesStream sends every favorites snapshot as a server-sent event
// until the client disconnects.
func (a *API) handleFavoritesStream(w http.ResponseWriter, r *http.Request, userID string) {
	rc := http.NewResponseController(w)
	ctx := r.Context()

	updates := make(chan []domain.FavoriteEntry, 1)
	unsubscribe, err := a.cfg.Favorites.Subscribe(ctx, userID, func(entries []domain.FavoriteEntry) {
		offerLatest(updates, entries)
	})
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	defer unsubscribe()

	_ = rc.SetWriteDeadline(time.Time{})
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		a.logger.Warn("favorites stream unsupported", "error", err)
		return
	}

	a.logger.Debug("favorites stream opened", "user_id", userID)
	heartbeat := time.NewTicker(streamHeartbeat)
	defer heartbeat.Stop()
	for {
		select {
		case <-ctx.Done():
			a.logger.Debug("favorites stream closed", "user_id", userID)
			return
		case <-heartbeat.C:
			if _, err := io.WriteString(w, ": heartbeat\n\n"); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		case entries := <-updates:
			if err := writeEvent(w, "favorites", entries); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}

// offerLatest replaces any undelivered snapshot with entries. Snapshots are
// complete, so a slow client only ever misses intermediate states.
func offerLatest(ch chan []domain.FavoriteEntry, entries []domain.FavoriteEntry) {
	for {
		select {
		case ch <- entries:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

func writeEvent(w http.ResponseWriter, name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data)
	return err
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, identity.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrWriteFailed), errors.Is(err, domain.ErrNetworkFailure):
		return http.StatusBadGateway
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	sharedobs.WriteJSON(w, status, map[string]string{"error": err.Error()})
}
