package search

import (
	"context"
	"fmt"

	"hotel_search/internal/domain"
	"hotel_search/internal/idset"
)

// Tag matching modes of the listing stages.
const (
	ViewTagMatch = domain.MatchAll
	AmenityMatch = domain.MatchAll
)

// Stage names, also used as metric labels.
const (
	StageViewTags     = "view_tags"
	StageGeo          = "geo"
	StageAmenities    = "amenities"
	StageUnits        = "units"
	StageUnitCriteria = "units.criteria"
	StageAvailability = "units.availability"
	StagePrice        = "units.price"
)

// Engine runs listing and unit searches against a SearchStore.
type Engine struct {
	store   domain.SearchStore
	observe StageObserver
}

func NewEngine(store domain.SearchStore, observe StageObserver) *Engine {
	if observe == nil {
		observe = nopObserver
	}
	return &Engine{store: store, observe: observe}
}

// ListingPipeline returns the narrowing stages for f in their fixed order.
func (e *Engine) ListingPipeline(f ListingFilter) *Pipeline {
	return NewPipeline(e.observe,
		narrowing(StageViewTags, len(f.ViewTagIDs) > 0, func(ctx context.Context, in idset.Set) ([]int64, error) {
			return e.store.ListingsWithTags(ctx, f.ViewTagIDs, ViewTagMatch, in)
		}),
		narrowing(StageGeo, f.Geo != nil, func(ctx context.Context, in idset.Set) ([]int64, error) {
			return e.store.ListingsNear(ctx, *f.Geo, in)
		}),
		narrowing(StageAmenities, len(f.AmenityIDs) > 0, func(ctx context.Context, in idset.Set) ([]int64, error) {
			return e.store.ListingsWithAmenities(ctx, f.AmenityIDs, AmenityMatch, in)
		}),
		e.unitStage(f.Units, f.Stay),
	)
}

// unitStage narrows listings to those owning at least one unit that matches
// the unit criteria and, with dates, is available and priced in range.
func (e *Engine) unitStage(where domain.Predicate, stay StayFilter) Stage {
	requested := !where.Unrestricted() || stay.Dates != nil
	return narrowing(StageUnits, requested, func(ctx context.Context, listings idset.Set) ([]int64, error) {
		units, err := e.unitPipeline(where, stay, listings).Run(ctx, idset.Unconstrained())
		if err != nil {
			return nil, err
		}
		if units.IsEmpty() {
			return nil, nil
		}
		return e.store.ListingsOfUnits(ctx, units, listings)
	})
}

// unitPipeline narrows unit ids within the listings set.
func (e *Engine) unitPipeline(where domain.Predicate, stay StayFilter, listings idset.Set) *Pipeline {
	scope := func(units idset.Set) domain.UnitScope {
		return domain.UnitScope{Listings: listings, Units: units}
	}
	withDates := stay.Dates != nil
	return NewPipeline(e.observe,
		narrowing(StageUnitCriteria, !where.Unrestricted(), func(ctx context.Context, in idset.Set) ([]int64, error) {
			return e.store.UnitsMatching(ctx, where, scope(in))
		}),
		narrowing(StageAvailability, withDates, func(ctx context.Context, in idset.Set) ([]int64, error) {
			return e.store.UnitsAvailable(ctx, *stay.Dates, stay.Rooms, scope(in))
		}),
		narrowing(StagePrice, withDates && stay.Price.Requested(), func(ctx context.Context, in idset.Set) ([]int64, error) {
			return e.store.UnitsPriced(ctx, stay.Price, *stay.Dates, scope(in))
		}),
	)
}

// Listings runs the listing pipeline and fetches the requested page of open
// listings. An Empty candidate set yields an empty page without a page query.
func (e *Engine) Listings(ctx context.Context, f ListingFilter) (domain.ListingsPage, error) {
	ids, err := e.ListingPipeline(f).Run(ctx, idset.Unconstrained())
	if err != nil {
		return domain.ListingsPage{}, err
	}
	if ids.IsEmpty() {
		return domain.ListingsPage{Page: f.Page, PageSize: f.PageSize}, nil
	}
	if err := ctx.Err(); err != nil {
		return domain.ListingsPage{}, err
	}
	open := domain.StatusOpening
	page, err := e.store.PageListings(ctx, domain.ListingPageQuery{
		IDs:      ids,
		Status:   &open,
		Types:    f.Types,
		Sort:     f.Sort,
		Desc:     f.Desc,
		Page:     f.Page,
		PageSize: f.PageSize,
	})
	if err != nil {
		return domain.ListingsPage{}, fmt.Errorf("page listings: %w", err)
	}
	return page, nil
}

// Units searches the units of one open listing.
func (e *Engine) Units(ctx context.Context, listingID int64, f UnitFilter) (domain.UnitsPage, error) {
	l, err := e.store.GetListing(ctx, listingID)
	if err != nil {
		return domain.UnitsPage{}, err
	}
	if l.Status != domain.StatusOpening {
		return domain.UnitsPage{}, domain.ErrNotFound
	}

	ids, err := e.unitPipeline(f.Units, f.Stay, idset.Of(listingID)).Run(ctx, idset.Unconstrained())
	if err != nil {
		return domain.UnitsPage{}, err
	}
	if ids.IsEmpty() {
		return domain.UnitsPage{Page: f.Page, PageSize: f.PageSize}, nil
	}
	page, err := e.store.PageUnits(ctx, domain.UnitPageQuery{
		ListingID: listingID,
		IDs:       ids,
		Page:      f.Page,
		PageSize:  f.PageSize,
	})
	if err != nil {
		return domain.UnitsPage{}, fmt.Errorf("page units: %w", err)
	}
	return page, nil
}
