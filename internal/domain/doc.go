// Package domain models venue discovery and saved favorites for the
// PoolPocket map screens.
//
// # Venues
//
// A [VenuePlace] is a point of interest returned by the places search
// provider. Venues are transient: they live only as long as one discovery
// result set and are keyed by the provider-assigned place id, which is unique
// within a result set.
//
// # Favorites
//
// A [FavoriteEntry] is a snapshot of a venue saved by a user. Only name,
// address and coordinates are kept; the provider rating is dropped. Entries
// live under the per-user namespace
//
//	users/{userId}/favorites/{entryId}
//
// and their ids are time-ordered, so sorting by id yields insertion order.
//
// # Coordinates
//
// Coordinates are WGS-84 latitude/longitude pairs. The provider wire format
// uses "lat"/"lng"; the same names are used for persisted favorites so
// records written by the mobile client and this service are interchangeable.
//
// # Rating tiers
//
// Marker colouring uses a coarse rating tier (see [RatingTier]):
//
//	absent  unrated
//	< 3     low
//	< 4     medium
//	>= 4    high
package domain
