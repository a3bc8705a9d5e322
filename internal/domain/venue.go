package domain

import (
	"math"
	"time"
)

// GeoCoordinates is a WGS-84 latitude/longitude pair.
type GeoCoordinates struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lng"`
}

// Valid reports whether c is a finite coordinate inside the WGS-84 ranges.
func (c GeoCoordinates) Valid() bool {
	if math.IsNaN(c.Latitude) || math.IsNaN(c.Longitude) ||
		math.IsInf(c.Latitude, 0) || math.IsInf(c.Longitude, 0) {
		return false
	}
	return c.Latitude >= -90 && c.Latitude <= 90 && c.Longitude >= -180 && c.Longitude <= 180
}

// VenuePlace is a venue returned by the places search provider.
type VenuePlace struct {
	PlaceID     string         `json:"place_id"`
	Name        string         `json:"name"`
	Address     string         `json:"address"`
	Coordinates GeoCoordinates `json:"location"`
	Rating      *float64       `json:"rating,omitempty"` // 0–5, nil when the provider has none
}

// FavoriteEntry is a venue snapshot persisted in a user's favorites.
type FavoriteEntry struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Address     string         `json:"address"`
	Coordinates GeoCoordinates `json:"location"`
}

// FavoriteFromVenue builds the stored snapshot of v. The id is left empty for
// the store to assign.
func FavoriteFromVenue(v VenuePlace) FavoriteEntry {
	return FavoriteEntry{
		Name:        v.Name,
		Address:     v.Address,
		Coordinates: v.Coordinates,
	}
}

// Favorite change event types.
const (
	FavoriteAdded   = "favorite.added"
	FavoriteRemoved = "favorite.removed"
)

// FavoriteEvent records a successful write to a user's favorites.
type FavoriteEvent struct {
	Type       string        `json:"event_type"`
	UserID     string        `json:"user_id"`
	Entry      FavoriteEntry `json:"entry"`
	OccurredAt time.Time     `json:"occurred_at"`
}

// FocusRequest asks the map screen to center on a saved venue and reveal its
// popup. Target is nil when the caller had no coordinates to pass.
type FocusRequest struct {
	Target   *GeoCoordinates `json:"target,omitempty"`
	PopupKey string          `json:"popup_key"`
}

// FocusRequestFor builds the request used when navigating to a favorite.
func FocusRequestFor(f FavoriteEntry) FocusRequest {
	target := f.Coordinates
	return FocusRequest{Target: &target, PopupKey: f.ID}
}

// Region is a map viewport: a center plus the visible span in degrees.
type Region struct {
	Center         GeoCoordinates `json:"center"`
	LatitudeDelta  float64        `json:"latitude_delta"`
	LongitudeDelta float64        `json:"longitude_delta"`
}

// RegionAround returns a square region of the given span centered on c.
func RegionAround(c GeoCoordinates, span float64) Region {
	return Region{Center: c, LatitudeDelta: span, LongitudeDelta: span}
}

// Rating tiers used for marker colouring.
const (
	TierUnrated = "unrated"
	TierLow     = "low"
	TierMedium  = "medium"
	TierHigh    = "high"
)

// RatingTier classifies a provider rating.
func RatingTier(rating *float64) string {
	switch {
	case rating == nil || *rating == 0:
		return TierUnrated
	case *rating < 3:
		return TierLow
	case *rating < 4:
		return TierMedium
	default:
		return TierHigh
	}
}
