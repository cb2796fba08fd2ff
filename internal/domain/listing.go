package domain

import (
	"fmt"
	"strings"
	"time"
)

type ListingStatus int

const (
	StatusPending ListingStatus = iota
	StatusOpening
	StatusBanned
	StatusClosed
	StatusRejected
)

var listingStatusNames = map[ListingStatus]string{
	StatusPending:  "pending",
	StatusOpening:  "opening",
	StatusBanned:   "banned",
	StatusClosed:   "closed",
	StatusRejected: "rejected",
}

func (s ListingStatus) String() string {
	if n, ok := listingStatusNames[s]; ok {
		return n
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// ParseListingStatus maps an external status name to its stored value.
func ParseListingStatus(name string) (ListingStatus, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for st, sn := range listingStatusNames {
		if sn == n {
			return st, nil
		}
	}
	return 0, fmt.Errorf("unknown listing status %q", name)
}

type ListingType int

const (
	TypeHotel ListingType = iota
	TypeHomestay
	TypeVilla
	TypeApartment
	TypeResort
)

var listingTypeNames = map[ListingType]string{
	TypeHotel:     "hotel",
	TypeHomestay:  "homestay",
	TypeVilla:     "villa",
	TypeApartment: "apartment",
	TypeResort:    "resort",
}

func (t ListingType) String() string {
	if n, ok := listingTypeNames[t]; ok {
		return n
	}
	return fmt.Sprintf("type(%d)", int(t))
}

func (t ListingType) Valid() bool {
	_, ok := listingTypeNames[t]
	return ok
}

func ParseListingType(name string) (ListingType, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for lt, ln := range listingTypeNames {
		if ln == n {
			return lt, nil
		}
	}
	return 0, fmt.Errorf("unknown listing type %q", name)
}

type Listing struct {
	ID           int64
	OwnerID      int64
	Name         string
	Type         ListingType
	Status       ListingStatus
	Lat, Lng     float64
	Geohash      string
	PriceMin     float64
	PriceMax     float64
	ReviewScore  float64 // average stars, 0..5
	BookingCount int
	CreatedAt    time.Time
	TagIDs       []int64
}

// Popularity is the score used by the "popularity" sort key.
func (l Listing) Popularity() float64 {
	return float64(l.BookingCount) * (1 + l.ReviewScore/5)
}

// Like records that a user saved a listing.
type Like struct {
	UserID    int64
	ListingID int64
}

type TagKind string

const (
	TagKindView    TagKind = "view"
	TagKindAmenity TagKind = "amenity"
)

type Tag struct {
	ID   int64
	Kind TagKind
	Name string
}

type Unit struct {
	ID         int64
	ListingID  int64
	Name       string
	Capacity   int // identical rooms of this unit
	BasePrice  float64
	AmenityIDs []int64
	Attributes []UnitAttribute
}

type AttributeValueType string

const (
	AttrNumber AttributeValueType = "number"
	AttrText   AttributeValueType = "text"
	AttrEnum   AttributeValueType = "enum"
)

// AttributeKey describes one dynamic unit attribute. For enum keys Options
// maps the public option name to the stored external code.
type AttributeKey struct {
	ID        int64
	Code      string
	ValueType AttributeValueType
	Options   map[string]string
}

// UnitAttribute is identified by (UnitID, KeyID).
type UnitAttribute struct {
	UnitID int64
	KeyID  int64
	Text   string
	Number *float64
}
