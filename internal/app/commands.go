package app

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"golang.org/x/sync/semaphore"

	"hotel_search/internal/domain"
)

//go:embed fixture.schema.json
var fixtureSchemaJSON []byte

var fixtureSchema = mustCompileSchema()

func mustCompileSchema() *jsonschema.Schema {
	c := jsonschema.NewCompiler()
	if err := c.AddResource("fixture.schema.json", bytes.NewReader(fixtureSchemaJSON)); err != nil {
		panic(err)
	}
	return c.MustCompile("fixture.schema.json")
}

// Fixture is the seed file layout.
type Fixture struct {
	Owners        []domain.Owner   `json:"owners"`
	Tags          []FixtureTag     `json:"tags"`
	AttributeKeys []FixtureAttrKey `json:"attributeKeys"`
	Listings      []FixtureListing `json:"listings"`
	Likes         []FixtureLike    `json:"likes"`
}

type FixtureTag struct {
	ID   int64  `json:"id"`
	Kind string `json:"kind"`
	Name string `json:"name"`
}

type FixtureAttrKey struct {
	ID        int64             `json:"id"`
	Code      string            `json:"code"`
	ValueType string            `json:"valueType"`
	Options   map[string]string `json:"options"`
}

type FixtureListing struct {
	ID           int64         `json:"id"`
	OwnerID      int64         `json:"ownerId"`
	Name         string        `json:"name"`
	Type         string        `json:"type"`
	Status       string        `json:"status"`
	Lat          float64       `json:"lat"`
	Lng          float64       `json:"lng"`
	PriceMin     float64       `json:"priceMin"`
	PriceMax     float64       `json:"priceMax"`
	ReviewScore  float64       `json:"reviewScore"`
	BookingCount int           `json:"bookingCount"`
	CreatedAt    string        `json:"createdAt"`
	TagIDs       []int64       `json:"tagIds"`
	Images       []string      `json:"images"`
	Units        []FixtureUnit `json:"units"`
}

type FixtureUnit struct {
	ID           int64                `json:"id"`
	Name         string               `json:"name"`
	Capacity     int                  `json:"capacity"`
	BasePrice    float64              `json:"basePrice"`
	AmenityIDs   []int64              `json:"amenityIds"`
	Attributes   []FixtureAttribute   `json:"attributes"`
	Prices       []FixturePrice       `json:"prices"`
	Reservations []FixtureReservation `json:"reservations"`
}

type FixtureAttribute struct {
	KeyID  int64    `json:"keyId"`
	Text   string   `json:"text"`
	Number *float64 `json:"number"`
}

type FixturePrice struct {
	Date            string  `json:"date"`
	Price           float64 `json:"price"`
	DiscountPercent float64 `json:"discountPercent"`
}

type FixtureReservation struct {
	ID     int64  `json:"id"`
	From   string `json:"from"`
	To     string `json:"to"`
	Rooms  int    `json:"rooms"`
	Status string `json:"status"`
}

type FixtureLike struct {
	UserID    int64 `json:"userId"`
	ListingID int64 `json:"listingId"`
}

// ParseFixture validates r against the embedded schema and decodes it.
func ParseFixture(r io.Reader) (Fixture, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return Fixture{}, err
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Fixture{}, fmt.Errorf("fixture: %w", err)
	}
	if err := fixtureSchema.Validate(doc); err != nil {
		return Fixture{}, fmt.Errorf("fixture schema: %w", err)
	}
	var fx Fixture
	if err := json.Unmarshal(raw, &fx); err != nil {
		return Fixture{}, fmt.Errorf("fixture: %w", err)
	}
	return fx, nil
}

var reservationStatuses = map[string]domain.ReservationStatus{
	"pending":   domain.ReservationPending,
	"confirmed": domain.ReservationConfirmed,
	"cancelled": domain.ReservationCancelled,
}

type SeedReport struct {
	Listings int
	Units    int
	Failed   int
}

type SeedService struct {
	store   domain.SeedStore
	cache   domain.Cache
	workers int
}

func NewSeedService(s domain.SeedStore, c domain.Cache, workers int) *SeedService {
	if workers < 1 {
		workers = 1
	}
	return &SeedService{store: s, cache: c, workers: workers}
}

// Seed writes the reference data first, then listings with bounded
// concurrency, then likes. It bumps the search cache generation when at least
// one listing was written.
func (s *SeedService) Seed(ctx context.Context, fx Fixture) (SeedReport, error) {
	var rep SeedReport
	for _, o := range fx.Owners {
		if err := s.store.UpsertOwner(ctx, o); err != nil {
			return rep, fmt.Errorf("owner %d: %w", o.ID, err)
		}
	}
	for _, t := range fx.Tags {
		if err := s.store.UpsertTag(ctx, domain.Tag{ID: t.ID, Kind: domain.TagKind(t.Kind), Name: t.Name}); err != nil {
			return rep, fmt.Errorf("tag %d: %w", t.ID, err)
		}
	}
	for _, k := range fx.AttributeKeys {
		key := domain.AttributeKey{ID: k.ID, Code: k.Code, ValueType: domain.AttributeValueType(k.ValueType), Options: k.Options}
		if err := s.store.UpsertAttributeKey(ctx, key); err != nil {
			return rep, fmt.Errorf("attribute key %q: %w", k.Code, err)
		}
	}

	sem := semaphore.NewWeighted(int64(s.workers))
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, fl := range fx.Listings {
		if err := sem.Acquire(ctx, 1); err != nil {
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
			break
		}
		wg.Add(1)
		go func(fl FixtureListing) {
			defer wg.Done()
			defer sem.Release(1)

			err := s.seedListing(ctx, fl)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				log.Warn().Int64("id", fl.ID).Err(err).Msg("seed listing failed")
				rep.Failed++
				errs = append(errs, fmt.Errorf("listing %d: %w", fl.ID, err))
				return
			}
			rep.Listings++
			rep.Units += len(fl.Units)
			log.Debug().Int64("id", fl.ID).Int("units", len(fl.Units)).Msg("seed listing ok")
		}(fl)
	}
	wg.Wait()

	if len(fx.Likes) > 0 {
		likes := make([]domain.Like, len(fx.Likes))
		for i, l := range fx.Likes {
			likes[i] = domain.Like{UserID: l.UserID, ListingID: l.ListingID}
		}
		if err := s.store.AddLikes(ctx, likes); err != nil {
			errs = append(errs, fmt.Errorf("likes: %w", err))
		}
	}

	if rep.Listings > 0 && s.cache != nil {
		if err := s.cache.Set(ctx, GenerationKey, time.Now().UnixNano(), 0); err != nil {
			log.Warn().Err(err).Msg("search cache generation bump failed")
		}
	}
	return rep, errors.Join(errs...)
}

func (s *SeedService) seedListing(ctx context.Context, fl FixtureListing) error {
	l, err := fixtureListing(fl)
	if err != nil {
		return err
	}
	if err := s.store.UpsertListing(ctx, l); err != nil {
		return err
	}
	if err := s.store.ReplaceListingImages(ctx, fl.ID, fl.Images); err != nil {
		return err
	}
	for _, fu := range fl.Units {
		u := domain.Unit{
			ID:         fu.ID,
			ListingID:  fl.ID,
			Name:       fu.Name,
			Capacity:   fu.Capacity,
			BasePrice:  fu.BasePrice,
			AmenityIDs: fu.AmenityIDs,
		}
		for _, a := range fu.Attributes {
			u.Attributes = append(u.Attributes, domain.UnitAttribute{UnitID: fu.ID, KeyID: a.KeyID, Text: a.Text, Number: a.Number})
		}
		if err := s.store.UpsertUnit(ctx, u); err != nil {
			return fmt.Errorf("unit %d: %w", fu.ID, err)
		}

		prices := make([]domain.PriceRecord, 0, len(fu.Prices))
		for _, p := range fu.Prices {
			d, err := time.Parse(domain.DateLayout, p.Date)
			if err != nil {
				return fmt.Errorf("unit %d price date: %w", fu.ID, err)
			}
			prices = append(prices, domain.PriceRecord{UnitID: fu.ID, Date: d, Price: p.Price, DiscountPercent: p.DiscountPercent})
		}
		if err := s.store.UpsertPriceRecords(ctx, prices); err != nil {
			return fmt.Errorf("unit %d prices: %w", fu.ID, err)
		}

		windows := make([]domain.ReservationWindow, 0, len(fu.Reservations))
		for _, r := range fu.Reservations {
			w, err := fixtureWindow(fu.ID, r)
			if err != nil {
				return fmt.Errorf("unit %d reservation %d: %w", fu.ID, r.ID, err)
			}
			windows = append(windows, w)
		}
		if err := s.store.UpsertReservations(ctx, windows); err != nil {
			return fmt.Errorf("unit %d reservations: %w", fu.ID, err)
		}
	}
	return nil
}

func fixtureListing(fl FixtureListing) (domain.Listing, error) {
	typ, err := domain.ParseListingType(fl.Type)
	if err != nil {
		return domain.Listing{}, err
	}
	status, err := domain.ParseListingStatus(fl.Status)
	if err != nil {
		return domain.Listing{}, err
	}
	l := domain.Listing{
		ID:           fl.ID,
		OwnerID:      fl.OwnerID,
		Name:         fl.Name,
		Type:         typ,
		Status:       status,
		Lat:          fl.Lat,
		Lng:          fl.Lng,
		PriceMin:     fl.PriceMin,
		PriceMax:     fl.PriceMax,
		ReviewScore:  fl.ReviewScore,
		BookingCount: fl.BookingCount,
		TagIDs:       fl.TagIDs,
	}
	if fl.CreatedAt != "" {
		if l.CreatedAt, err = time.Parse(domain.DateLayout, fl.CreatedAt); err != nil {
			return domain.Listing{}, err
		}
	}
	return l, nil
}

func fixtureWindow(unitID int64, r FixtureReservation) (domain.ReservationWindow, error) {
	from, err := time.Parse(domain.DateLayout, r.From)
	if err != nil {
		return domain.ReservationWindow{}, err
	}
	to, err := time.Parse(domain.DateLayout, r.To)
	if err != nil {
		return domain.ReservationWindow{}, err
	}
	if _, err := domain.NewDateRange(from, to); err != nil {
		return domain.ReservationWindow{}, err
	}
	st, ok := reservationStatuses[r.Status]
	if !ok {
		return domain.ReservationWindow{}, fmt.Errorf("unknown reservation status %q", r.Status)
	}
	return domain.ReservationWindow{ID: r.ID, UnitID: unitID, From: from, To: to, Rooms: r.Rooms, Status: st}, nil
}
