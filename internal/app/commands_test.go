package app_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"hotel_search/internal/app"
	"hotel_search/internal/domain"
)

type fakeSeedStore struct {
	mu           sync.Mutex
	owners       int
	tags         int
	keys         int
	listings     map[int64]domain.Listing
	units        []domain.Unit
	prices       int
	reservations []domain.ReservationWindow
	images       map[int64][]string
	likes        []domain.Like
	failListing  int64
}

func (f *fakeSeedStore) UpsertOwner(ctx context.Context, o domain.Owner) error {
	f.owners++
	return nil
}
func (f *fakeSeedStore) UpsertTag(ctx context.Context, t domain.Tag) error {
	f.tags++
	return nil
}
func (f *fakeSeedStore) UpsertAttributeKey(ctx context.Context, k domain.AttributeKey) error {
	f.keys++
	return nil
}
func (f *fakeSeedStore) UpsertListing(ctx context.Context, l domain.Listing) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if l.ID == f.failListing {
		return errors.New("disk full")
	}
	if f.listings == nil {
		f.listings = map[int64]domain.Listing{}
	}
	f.listings[l.ID] = l
	return nil
}
func (f *fakeSeedStore) ReplaceListingImages(ctx context.Context, id int64, urls []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.images == nil {
		f.images = map[int64][]string{}
	}
	f.images[id] = urls
	return nil
}
func (f *fakeSeedStore) AddLikes(ctx context.Context, likes []domain.Like) error {
	f.likes = append(f.likes, likes...)
	return nil
}
func (f *fakeSeedStore) UpsertUnit(ctx context.Context, u domain.Unit) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.units = append(f.units, u)
	return nil
}
func (f *fakeSeedStore) UpsertPriceRecords(ctx context.Context, rs []domain.PriceRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prices += len(rs)
	return nil
}
func (f *fakeSeedStore) UpsertReservations(ctx context.Context, ws []domain.ReservationWindow) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reservations = append(f.reservations, ws...)
	return nil
}

const fixtureJSON = `{
  "owners": [{"id": 7, "name": "Linh"}],
  "tags": [{"id": 1, "kind": "view", "name": "Sea view"}, {"id": 5, "kind": "amenity", "name": "Pool"}],
  "attributeKeys": [{"id": 8, "code": "bed", "valueType": "enum", "options": {"King": "BED_K"}}],
  "listings": [
    {
      "id": 1, "ownerId": 7, "name": "Sea Pearl", "type": "hotel", "status": "opening",
      "lat": 16.05, "lng": 108.2, "tagIds": [1], "images": ["a.jpg"], "createdAt": "2026-01-15",
      "units": [{
        "id": 10, "name": "Deluxe", "capacity": 3, "basePrice": 100, "amenityIds": [5],
        "attributes": [{"keyId": 8, "text": "BED_K"}],
        "prices": [{"date": "2026-06-01", "price": 90, "discountPercent": 10}],
        "reservations": [{"id": 1, "from": "2026-06-01", "to": "2026-06-03", "rooms": 2, "status": "confirmed"}]
      }]
    },
    {"id": 2, "ownerId": 7, "name": "Hill Nook", "type": "homestay", "status": "pending", "lat": 21.0, "lng": 105.8}
  ],
  "likes": [{"userId": 99, "listingId": 1}]
}`

func TestParseFixture_Valid(t *testing.T) {
	fx, err := app.ParseFixture(strings.NewReader(fixtureJSON))
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if len(fx.Listings) != 2 || len(fx.Listings[0].Units) != 1 || fx.Listings[0].Units[0].Reservations[0].Rooms != 2 {
		t.Fatalf("decoded: %+v", fx)
	}
}

func TestParseFixture_SchemaRejects(t *testing.T) {
	bad := map[string]string{
		"no listings":     `{"owners": []}`,
		"unknown status":  `{"listings": [{"id": 1, "ownerId": 1, "name": "x", "type": "hotel", "status": "live", "lat": 1, "lng": 1}]}`,
		"latitude range":  `{"listings": [{"id": 1, "ownerId": 1, "name": "x", "type": "hotel", "status": "opening", "lat": 91, "lng": 1}]}`,
		"zero capacity":   `{"listings": [{"id": 1, "ownerId": 1, "name": "x", "type": "hotel", "status": "opening", "lat": 1, "lng": 1, "units": [{"id": 2, "name": "u", "capacity": 0, "basePrice": 1}]}]}`,
		"unknown section": `{"listings": [], "bookings": []}`,
		"not json":        `{listings`,
	}
	for name, doc := range bad {
		if _, err := app.ParseFixture(strings.NewReader(doc)); err == nil {
			t.Fatalf("%s: expected rejection", name)
		}
	}
}

func TestSeed_WritesEverythingAndBumpsGeneration(t *testing.T) {
	fx, err := app.ParseFixture(strings.NewReader(fixtureJSON))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	st := &fakeSeedStore{}
	cache := &fakeCache{}
	rep, err := app.NewSeedService(st, cache, 4).Seed(context.Background(), fx)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if rep.Listings != 2 || rep.Units != 1 || rep.Failed != 0 {
		t.Fatalf("report: %+v", rep)
	}
	if st.owners != 1 || st.tags != 2 || st.keys != 1 || len(st.likes) != 1 || st.prices != 1 {
		t.Fatalf("store: %+v", st)
	}
	l := st.listings[1]
	if l.Status != domain.StatusOpening || l.Type != domain.TypeHotel || l.CreatedAt.IsZero() || len(l.TagIDs) != 1 {
		t.Fatalf("listing: %+v", l)
	}
	if st.listings[2].Status != domain.StatusPending {
		t.Fatalf("second listing status: %v", st.listings[2].Status)
	}
	if w := st.reservations[0]; w.Status != domain.ReservationConfirmed || w.UnitID != 10 || w.Rooms != 2 {
		t.Fatalf("reservation: %+v", w)
	}
	if u := st.units[0]; len(u.Attributes) != 1 || u.Attributes[0].Text != "BED_K" || u.ListingID != 1 {
		t.Fatalf("unit: %+v", u)
	}
	var gen int64
	if ok, _ := cache.Get(context.Background(), app.GenerationKey, &gen); !ok || gen == 0 {
		t.Fatalf("generation not bumped")
	}
}

func TestSeed_ReportsFailedListings(t *testing.T) {
	fx, err := app.ParseFixture(strings.NewReader(fixtureJSON))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	st := &fakeSeedStore{failListing: 2}
	rep, err := app.NewSeedService(st, nil, 2).Seed(context.Background(), fx)
	if err == nil || !strings.Contains(err.Error(), "listing 2") {
		t.Fatalf("expected listing 2 failure, got %v", err)
	}
	if rep.Listings != 1 || rep.Failed != 1 {
		t.Fatalf("report: %+v", rep)
	}
}
