package domain

import (
	"context"

	"hotel_search/internal/idset"
)

// SearchStore is the read side consumed by the narrowing stages. Every
// method treats an Unconstrained restriction as "no restriction" and an
// Empty one as "no candidates"; callers never pass Empty.
type SearchStore interface {
	ListingsWithTags(ctx context.Context, tagIDs []int64, match TagMatch, within idset.Set) ([]int64, error)
	ListingsNear(ctx context.Context, g GeoFilter, within idset.Set) ([]int64, error)
	ListingsWithAmenities(ctx context.Context, amenityIDs []int64, match TagMatch, within idset.Set) ([]int64, error)

	UnitsMatching(ctx context.Context, where Predicate, scope UnitScope) ([]int64, error)
	UnitsAvailable(ctx context.Context, stay DateRange, rooms int, scope UnitScope) ([]int64, error)
	UnitsPriced(ctx context.Context, price PriceFilter, stay DateRange, scope UnitScope) ([]int64, error)
	// ListingsOfUnits maps units to their parent listings, restricted to within.
	ListingsOfUnits(ctx context.Context, units idset.Set, within idset.Set) ([]int64, error)

	GetListing(ctx context.Context, id int64) (Listing, error)
	PageListings(ctx context.Context, q ListingPageQuery) (ListingsPage, error)
	PageUnits(ctx context.Context, q UnitPageQuery) (UnitsPage, error)
}

type AttributeKeyStore interface {
	ListAttributeKeys(ctx context.Context) ([]AttributeKey, error)
}

// EnrichmentStore backs the result assembler. Lookups are batched per page.
type EnrichmentStore interface {
	Owners(ctx context.Context, ownerIDs []int64) (map[int64]Owner, error)
	Images(ctx context.Context, listingIDs []int64) (map[int64][]string, error)
	LikedBy(ctx context.Context, viewerID int64, listingIDs []int64) (map[int64]bool, error)
}

// SeedStore holds the write paths used by the fixture seeder.
type SeedStore interface {
	UpsertOwner(ctx context.Context, o Owner) error
	UpsertTag(ctx context.Context, t Tag) error
	UpsertAttributeKey(ctx context.Context, k AttributeKey) error
	UpsertListing(ctx context.Context, l Listing) error
	ReplaceListingImages(ctx context.Context, listingID int64, urls []string) error
	AddLikes(ctx context.Context, likes []Like) error
	UpsertUnit(ctx context.Context, u Unit) error
	UpsertPriceRecords(ctx context.Context, rs []PriceRecord) error
	UpsertReservations(ctx context.Context, ws []ReservationWindow) error
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}
