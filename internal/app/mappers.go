package app

import (
	"context"
	"fmt"

	"hotel_search/internal/domain"
)

// Assembler turns a page of listings into client cards, with one batched
// lookup each for owners, images and the viewer's likes.
type Assembler struct {
	enrich domain.EnrichmentStore
}

func NewAssembler(e domain.EnrichmentStore) *Assembler { return &Assembler{enrich: e} }

func (a *Assembler) Listings(ctx context.Context, page domain.ListingsPage, viewerID int64) (domain.ListingCardsPage, error) {
	out := domain.ListingCardsPage{
		Total:    page.Total,
		Page:     page.Page,
		PageSize: page.PageSize,
		Items:    make([]domain.ListingCard, 0, len(page.Items)),
	}
	if len(page.Items) == 0 {
		return out, nil
	}

	ids := make([]int64, len(page.Items))
	ownerIDs := make([]int64, len(page.Items))
	for i, l := range page.Items {
		ids[i] = l.ID
		ownerIDs[i] = l.OwnerID
	}
	owners, err := a.enrich.Owners(ctx, ownerIDs)
	if err != nil {
		return domain.ListingCardsPage{}, fmt.Errorf("owners: %w", err)
	}
	images, err := a.enrich.Images(ctx, ids)
	if err != nil {
		return domain.ListingCardsPage{}, fmt.Errorf("images: %w", err)
	}
	liked := map[int64]bool{}
	if viewerID > 0 {
		if liked, err = a.enrich.LikedBy(ctx, viewerID, ids); err != nil {
			return domain.ListingCardsPage{}, fmt.Errorf("likes: %w", err)
		}
	}

	for _, l := range page.Items {
		card := mapListingCard(l)
		if o, ok := owners[l.OwnerID]; ok {
			o := o
			card.Owner = &o
		}
		if imgs := images[l.ID]; len(imgs) > 0 {
			card.Images = imgs
		}
		card.Liked = liked[l.ID]
		out.Items = append(out.Items, card)
	}
	return out, nil
}

func mapListingCard(l domain.Listing) domain.ListingCard {
	return domain.ListingCard{
		ID:           l.ID,
		Name:         l.Name,
		Type:         l.Type.String(),
		Status:       l.Status.String(),
		Coords:       domain.Coords{Lat: l.Lat, Lng: l.Lng},
		PriceMin:     l.PriceMin,
		PriceMax:     l.PriceMax,
		ReviewScore:  l.ReviewScore,
		BookingCount: l.BookingCount,
		Images:       []string{},
	}
}

func UnitCards(page domain.UnitsPage) domain.UnitCardsPage {
	out := domain.UnitCardsPage{
		Total:    page.Total,
		Page:     page.Page,
		PageSize: page.PageSize,
		Items:    make([]domain.UnitCard, 0, len(page.Items)),
	}
	for _, u := range page.Items {
		out.Items = append(out.Items, domain.UnitCard{
			ID:        u.ID,
			ListingID: u.ListingID,
			Name:      u.Name,
			Capacity:  u.Capacity,
			BasePrice: u.BasePrice,
		})
	}
	return out
}
