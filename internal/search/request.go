package search

import (
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"hotel_search/internal/criteria"
	"hotel_search/internal/domain"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ListingQuery is the public listing search request.
type ListingQuery struct {
	ViewTagIDs []int64              `json:"viewTagIds" validate:"omitempty,dive,gt=0"`
	Lat        *float64             `json:"lat" validate:"required_with=Lng RadiusKm,omitempty,gte=-90,lte=90"`
	Lng        *float64             `json:"lng" validate:"required_with=Lat RadiusKm,omitempty,gte=-180,lte=180"`
	RadiusKm   *float64             `json:"radiusKm" validate:"required_with=Lat Lng,omitempty,gt=0,lte=500"`
	AmenityIDs []int64              `json:"amenityIds" validate:"omitempty,dive,gt=0"`
	Criteria   []criteria.Criterion `json:"criteria"`
	Stay
	Types    []string `json:"types" validate:"omitempty,dive,oneof=hotel homestay villa apartment resort"`
	Sort     string   `json:"sort" validate:"omitempty,oneof=id review_score popularity"`
	Order    string   `json:"order" validate:"omitempty,oneof=asc desc"`
	Page     int      `json:"page" validate:"gte=0"`
	PageSize int      `json:"pageSize" validate:"gte=0"`
	ViewerID int64    `json:"-"`
}

// Stay holds the date, room and price part shared by listing and unit search.
type Stay struct {
	CheckIn    string   `json:"checkIn" validate:"required_with=CheckOut,omitempty,datetime=2006-01-02"`
	CheckOut   string   `json:"checkOut" validate:"required_with=CheckIn,omitempty,datetime=2006-01-02"`
	Rooms      int      `json:"rooms" validate:"gte=0,lte=50"`
	PriceMin   *float64 `json:"priceMin" validate:"omitempty,gte=0"`
	PriceMax   *float64 `json:"priceMax" validate:"omitempty,gte=0"`
	TotalPrice bool     `json:"totalPrice"`
}

// UnitQuery searches the units of one listing.
type UnitQuery struct {
	Criteria []criteria.Criterion `json:"criteria"`
	Stay
	Page     int `json:"page" validate:"gte=0"`
	PageSize int `json:"pageSize" validate:"gte=0"`
}

// StayFilter is the resolved date/room/price part. Dates nil means no stay
// was requested, in which case Price is ignored.
type StayFilter struct {
	Dates *domain.DateRange  `json:"dates,omitempty"`
	Rooms int                `json:"rooms"`
	Price domain.PriceFilter `json:"price"`
}

// ListingFilter is a validated ListingQuery with criteria compiled.
type ListingFilter struct {
	ViewTagIDs []int64              `json:"viewTagIds,omitempty"`
	Geo        *domain.GeoFilter    `json:"geo,omitempty"`
	AmenityIDs []int64              `json:"amenityIds,omitempty"`
	Units      domain.Predicate     `json:"units"`
	Stay       StayFilter           `json:"stay"`
	Types      []domain.ListingType `json:"types,omitempty"`
	Sort       domain.SortKey       `json:"sort"`
	Desc       bool                 `json:"desc"`
	Page       int                  `json:"page"`
	PageSize   int                  `json:"pageSize"`
}

type UnitFilter struct {
	Units    domain.Predicate
	Stay     StayFilter
	Page     int
	PageSize int
}

// Resolve validates q and compiles its unit criteria against units.
func (q ListingQuery) Resolve(units *criteria.Whitelist) (ListingFilter, error) {
	if err := structErr(validate.Struct(q)); err != nil {
		return ListingFilter{}, err
	}
	pred, err := units.Compile(q.Criteria)
	if err != nil {
		return ListingFilter{}, err
	}
	stay, err := q.Stay.resolve()
	if err != nil {
		return ListingFilter{}, err
	}
	f := ListingFilter{
		ViewTagIDs: q.ViewTagIDs,
		AmenityIDs: q.AmenityIDs,
		Units:      pred,
		Stay:       stay,
		Sort:       domain.SortKey(q.Sort),
		Desc:       q.Order == "desc",
	}
	if q.Lat != nil && q.Lng != nil && q.RadiusKm != nil {
		f.Geo = &domain.GeoFilter{Lat: *q.Lat, Lng: *q.Lng, RadiusKm: *q.RadiusKm}
	}
	if f.Sort == "" {
		f.Sort = domain.SortID
	}
	for _, name := range q.Types {
		t, err := domain.ParseListingType(name)
		if err != nil {
			return ListingFilter{}, domain.InvalidFilter("types", "%v", err)
		}
		f.Types = append(f.Types, t)
	}
	f.Page, f.PageSize = ClampPage(q.Page, q.PageSize)
	return f, nil
}

func (q UnitQuery) Resolve(units *criteria.Whitelist) (UnitFilter, error) {
	if err := structErr(validate.Struct(q)); err != nil {
		return UnitFilter{}, err
	}
	pred, err := units.Compile(q.Criteria)
	if err != nil {
		return UnitFilter{}, err
	}
	stay, err := q.Stay.resolve()
	if err != nil {
		return UnitFilter{}, err
	}
	f := UnitFilter{Units: pred, Stay: stay}
	f.Page, f.PageSize = ClampPage(q.Page, q.PageSize)
	return f, nil
}

func (s Stay) resolve() (StayFilter, error) {
	out := StayFilter{
		Rooms: s.Rooms,
		Price: domain.PriceFilter{Min: s.PriceMin, Max: s.PriceMax, Mode: domain.PriceEveryDay},
	}
	if s.TotalPrice {
		out.Price.Mode = domain.PriceTotal
	}
	if s.PriceMin != nil && s.PriceMax != nil && *s.PriceMin > *s.PriceMax {
		return StayFilter{}, domain.InvalidFilter("price", "priceMin %.2f exceeds priceMax %.2f", *s.PriceMin, *s.PriceMax)
	}
	if out.Rooms == 0 {
		out.Rooms = 1
	}
	if s.CheckIn == "" {
		return out, nil
	}
	from, err := time.Parse(domain.DateLayout, s.CheckIn)
	if err != nil {
		return StayFilter{}, domain.InvalidFilter("checkIn", "%v", err)
	}
	to, err := time.Parse(domain.DateLayout, s.CheckOut)
	if err != nil {
		return StayFilter{}, domain.InvalidFilter("checkOut", "%v", err)
	}
	r, err := domain.NewDateRange(from, to)
	if err != nil {
		return StayFilter{}, err
	}
	out.Dates = &r
	return out, nil
}

// ClampPage normalises paging: 1-based page, default and maximum size.
func ClampPage(page, size int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	return page, size
}

// ValidateStruct runs the request validator and maps failures to FilterError.
func ValidateStruct(v any) error { return structErr(validate.Struct(v)) }

func structErr(err error) error {
	if err == nil {
		return nil
	}
	var ves validator.ValidationErrors
	if errors.As(err, &ves) && len(ves) > 0 {
		fe := ves[0]
		reason := "failed " + fe.Tag()
		if fe.Param() != "" {
			reason += "=" + fe.Param()
		}
		return domain.InvalidFilter(fe.Field(), "%s", reason)
	}
	return domain.InvalidFilter("", "%v", err)
}
