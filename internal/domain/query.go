package domain

import "hotel_search/internal/idset"

type TagMatch int

const (
	// MatchAll keeps listings carrying every requested tag.
	MatchAll TagMatch = iota
	// MatchAny keeps listings carrying at least one requested tag.
	MatchAny
)

type GeoFilter struct {
	Lat      float64
	Lng      float64
	RadiusKm float64
}

// UnitScope restricts unit queries by parent listing and by unit id.
type UnitScope struct {
	Listings idset.Set
	Units    idset.Set
}

func (s UnitScope) Empty() bool { return s.Listings.IsEmpty() || s.Units.IsEmpty() }

type SortKey string

const (
	SortID          SortKey = "id"
	SortReviewScore SortKey = "review_score"
	SortPopularity  SortKey = "popularity"
)

func (k SortKey) Valid() bool {
	switch k {
	case SortID, SortReviewScore, SortPopularity:
		return true
	}
	return false
}

// ListingPageQuery is the final paged fetch. Page is 1-based. Ties on the
// sort key are broken by id ascending.
type ListingPageQuery struct {
	IDs      idset.Set
	Status   *ListingStatus
	Types    []ListingType
	Where    Predicate
	Sort     SortKey
	Desc     bool
	Page     int
	PageSize int
}

func (q ListingPageQuery) Offset() int { return (q.Page - 1) * q.PageSize }

type ListingsPage struct {
	Total    int
	Page     int
	PageSize int
	Items    []Listing
}

type UnitPageQuery struct {
	ListingID int64
	IDs       idset.Set
	Page      int
	PageSize  int
}

func (q UnitPageQuery) Offset() int { return (q.Page - 1) * q.PageSize }

type UnitsPage struct {
	Total    int
	Page     int
	PageSize int
	Items    []Unit
}
