package app

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"hotel_search/internal/criteria"
	"hotel_search/internal/domain"
	"hotel_search/internal/idset"
	"hotel_search/internal/search"
)

// GenerationKey holds the search cache generation; bumping it orphans every
// cached page.
const GenerationKey = "search:gen"

type SearchService struct {
	engine    *search.Engine
	store     domain.SearchStore
	assembler *Assembler
	cache     domain.Cache
	cacheTTL  time.Duration
	units     *criteria.Whitelist
}

func NewSearchService(e *search.Engine, s domain.SearchStore, a *Assembler, c domain.Cache, units *criteria.Whitelist, ttl time.Duration) *SearchService {
	return &SearchService{engine: e, store: s, assembler: a, cache: c, cacheTTL: ttl, units: units}
}

// LoadUnitFields builds the unit whitelist from the stored attribute keys.
func LoadUnitFields(ctx context.Context, keys domain.AttributeKeyStore) (*criteria.Whitelist, error) {
	ks, err := keys.ListAttributeKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("load attribute keys: %w", err)
	}
	return criteria.UnitAttributeFields(ks)
}

// Search runs the public listing search. The narrowed page is cached per
// normalised filter; enrichment is per viewer and never cached.
func (s *SearchService) Search(ctx context.Context, q search.ListingQuery) (domain.ListingCardsPage, error) {
	f, err := q.Resolve(s.units)
	if err != nil {
		return domain.ListingCardsPage{}, err
	}

	key, cacheable := s.cacheKey(ctx, "listings", f)
	var page domain.ListingsPage
	if cacheable {
		if ok, err := s.cache.Get(ctx, key, &page); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("search cache get failed")
		} else if ok {
			return s.assembler.Listings(ctx, page, q.ViewerID)
		}
	}

	page, err = s.engine.Listings(ctx, f)
	if err != nil {
		return domain.ListingCardsPage{}, err
	}
	if cacheable {
		if err := s.cache.Set(ctx, key, page, int(s.cacheTTL.Seconds())); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("search cache set failed")
		}
	}
	return s.assembler.Listings(ctx, page, q.ViewerID)
}

func (s *SearchService) SearchUnits(ctx context.Context, listingID int64, q search.UnitQuery) (domain.UnitCardsPage, error) {
	f, err := q.Resolve(s.units)
	if err != nil {
		return domain.UnitCardsPage{}, err
	}
	page, err := s.engine.Units(ctx, listingID, f)
	if err != nil {
		return domain.UnitCardsPage{}, err
	}
	return UnitCards(page), nil
}

// AdminQuery filters listings over a whitelist without the public status rule.
type AdminQuery struct {
	Criteria []criteria.Criterion `json:"criteria"`
	Sort     string               `json:"sort" validate:"omitempty,oneof=id review_score popularity"`
	Order    string               `json:"order" validate:"omitempty,oneof=asc desc"`
	Page     int                  `json:"page" validate:"gte=0"`
	PageSize int                  `json:"pageSize" validate:"gte=0"`
}

func (s *SearchService) AdminSearch(ctx context.Context, q AdminQuery) (domain.ListingCardsPage, error) {
	return s.pageByCriteria(ctx, criteria.AdminListingFields, q, domain.Predicate{})
}

// OwnerSearch is AdminSearch pinned to one owner's listings.
func (s *SearchService) OwnerSearch(ctx context.Context, ownerID int64, q AdminQuery) (domain.ListingCardsPage, error) {
	if ownerID <= 0 {
		return domain.ListingCardsPage{}, domain.InvalidFilter("ownerID", "must be positive")
	}
	pin := domain.Predicate{Conditions: []domain.Condition{
		{Column: "l.owner_id", Op: domain.OpEq, Values: []any{ownerID}},
	}}
	return s.pageByCriteria(ctx, criteria.OwnerListingFields, q, pin)
}

func (s *SearchService) pageByCriteria(ctx context.Context, w *criteria.Whitelist, q AdminQuery, pin domain.Predicate) (domain.ListingCardsPage, error) {
	if err := search.ValidateStruct(q); err != nil {
		return domain.ListingCardsPage{}, err
	}
	where, err := w.Compile(q.Criteria)
	if err != nil {
		return domain.ListingCardsPage{}, err
	}
	sort := domain.SortKey(q.Sort)
	if sort == "" {
		sort = domain.SortID
	}
	pg, size := search.ClampPage(q.Page, q.PageSize)
	page, err := s.store.PageListings(ctx, domain.ListingPageQuery{
		IDs:      idset.Unconstrained(),
		Where:    pin.And(where),
		Sort:     sort,
		Desc:     q.Order == "desc",
		Page:     pg,
		PageSize: size,
	})
	if err != nil {
		return domain.ListingCardsPage{}, fmt.Errorf("%s search: %w", w.Name(), err)
	}
	return s.assembler.Listings(ctx, page, 0)
}

// cacheKey hashes the filter together with the current generation. Without a
// cache or a readable generation the result is not cached.
func (s *SearchService) cacheKey(ctx context.Context, kind string, f any) (string, bool) {
	if s.cache == nil {
		return "", false
	}
	var gen int64
	if _, err := s.cache.Get(ctx, GenerationKey, &gen); err != nil {
		log.Warn().Err(err).Msg("search cache generation unavailable")
		return "", false
	}
	b, err := json.Marshal(f)
	if err != nil {
		return "", false
	}
	sum := sha1.Sum(b)
	return fmt.Sprintf("search:%s:%d:%s", kind, gen, hex.EncodeToString(sum[:])), true
}
