package domain

import "context"

// PageQuery describes one places search page request. PageToken is empty for
// the first page.
type PageQuery struct {
	Center       GeoCoordinates
	RadiusMeters int
	PlaceType    string
	Keyword      string
	PageToken    string
}

// Page is one page of provider results. NextPageToken is empty on the last page.
type Page struct {
	Venues        []VenuePlace
	NextPageToken string
}

// PlacesSearcher fetches single pages from the places search provider.
type PlacesSearcher interface {
	SearchPage(ctx context.Context, q PageQuery) (Page, error)
}

// Unsubscribe detaches a favorites subscription.
type Unsubscribe func()

// FavoritesStore is the per-user remote favorites collection.
type FavoritesStore interface {
	// Add stores a snapshot of venue and returns the entry with its new id.
	Add(ctx context.Context, userID string, venue VenuePlace) (FavoriteEntry, error)

	// Remove deletes an entry and reports whether it existed. Removing a
	// missing id is not an error and changes nothing.
	Remove(ctx context.Context, userID, id string) (bool, error)

	// List returns the current entries in insertion order.
	List(ctx context.Context, userID string) ([]FavoriteEntry, error)

	// Subscribe pushes the full snapshot on attach and after every change
	// until the returned Unsubscribe is called.
	Subscribe(ctx context.Context, userID string, onChange func([]FavoriteEntry)) (Unsubscribe, error)
}
