package domain

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGeoCoordinates_Valid(t *testing.T) {
	tests := []struct {
		name  string
		coord GeoCoordinates
		want  bool
	}{
		{"origin", GeoCoordinates{}, true},
		{"copenhagen", GeoCoordinates{Latitude: 55.6761, Longitude: 12.5683}, true},
		{"poles and antimeridian", GeoCoordinates{Latitude: -90, Longitude: 180}, true},
		{"latitude too large", GeoCoordinates{Latitude: 90.01, Longitude: 0}, false},
		{"longitude too small", GeoCoordinates{Latitude: 0, Longitude: -180.5}, false},
		{"nan", GeoCoordinates{Latitude: math.NaN(), Longitude: 0}, false},
		{"inf", GeoCoordinates{Latitude: 0, Longitude: math.Inf(1)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.coord.Valid())
		})
	}
}

func TestRatingTier(t *testing.T) {
	r := func(v float64) *float64 { return &v }

	assert.Equal(t, TierUnrated, RatingTier(nil))
	assert.Equal(t, TierUnrated, RatingTier(r(0)))
	assert.Equal(t, TierLow, RatingTier(r(2.9)))
	assert.Equal(t, TierMedium, RatingTier(r(3)))
	assert.Equal(t, TierMedium, RatingTier(r(3.99)))
	assert.Equal(t, TierHigh, RatingTier(r(4)))
	assert.Equal(t, TierHigh, RatingTier(r(5)))
}

func TestFavoriteFromVenue_DropsRatingAndID(t *testing.T) {
	rating := 4.6
	v := VenuePlace{
		PlaceID:     "ChIJ-abc",
		Name:        "Corner Pocket",
		Address:     "Nørrebrogade 12",
		Coordinates: GeoCoordinates{Latitude: 55.69, Longitude: 12.55},
		Rating:      &rating,
	}

	f := FavoriteFromVenue(v)
	assert.Empty(t, f.ID)
	assert.Equal(t, v.Name, f.Name)
	assert.Equal(t, v.Address, f.Address)
	assert.Equal(t, v.Coordinates, f.Coordinates)
}

func TestFocusRequestFor(t *testing.T) {
	f := FavoriteEntry{ID: "fav-1", Coordinates: GeoCoordinates{Latitude: 10, Longitude: 20}}
	req := FocusRequestFor(f)

	if assert.NotNil(t, req.Target) {
		assert.Equal(t, f.Coordinates, *req.Target)
	}
	assert.Equal(t, "fav-1", req.PopupKey)

	// The request must not alias the entry.
	f.Coordinates.Latitude = 99
	assert.Equal(t, 10.0, req.Target.Latitude)
}

func TestErrMalformedResponse_IsNetworkFailure(t *testing.T) {
	err := fmt.Errorf("page 2: %w", ErrMalformedResponse)
	assert.ErrorIs(t, err, ErrNetworkFailure)
	assert.ErrorIs(t, err, ErrMalformedResponse)
	assert.NotErrorIs(t, ErrNetworkFailure, ErrMalformedResponse)
}
