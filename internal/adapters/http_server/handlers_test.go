package httpserver_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	httpserver "hotel_search/internal/adapters/http_server"
	"hotel_search/internal/app"
	"hotel_search/internal/domain"
	"hotel_search/internal/search"
)

type fakeSearcher struct {
	err        error
	lastQuery  search.ListingQuery
	lastUnits  int64
	lastOwner  int64
	adminCalls int
}

func (f *fakeSearcher) Search(ctx context.Context, q search.ListingQuery) (domain.ListingCardsPage, error) {
	f.lastQuery = q
	if f.err != nil {
		return domain.ListingCardsPage{}, f.err
	}
	return domain.ListingCardsPage{Total: 1, Page: 1, PageSize: 20, Items: []domain.ListingCard{{ID: 3, Name: "Sea Pearl", Images: []string{}}}}, nil
}

func (f *fakeSearcher) SearchUnits(ctx context.Context, listingID int64, q search.UnitQuery) (domain.UnitCardsPage, error) {
	f.lastUnits = listingID
	if f.err != nil {
		return domain.UnitCardsPage{}, f.err
	}
	return domain.UnitCardsPage{Total: 1, Page: 1, PageSize: 20, Items: []domain.UnitCard{{ID: 10, ListingID: listingID}}}, nil
}

func (f *fakeSearcher) AdminSearch(ctx context.Context, q app.AdminQuery) (domain.ListingCardsPage, error) {
	f.adminCalls++
	return domain.ListingCardsPage{Items: []domain.ListingCard{}}, f.err
}

func (f *fakeSearcher) OwnerSearch(ctx context.Context, ownerID int64, q app.AdminQuery) (domain.ListingCardsPage, error) {
	f.lastOwner = ownerID
	return domain.ListingCardsPage{Items: []domain.ListingCard{}}, f.err
}

func newServer(s httpserver.Searcher, lim *httpserver.Limiter) http.Handler {
	srv := httpserver.New(5*time.Second, lim, false)
	srv.MountHandlers(&httpserver.Handlers{S: s})
	return srv.Mux()
}

func post(h http.Handler, path, body string, hdr map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

type problemBody struct {
	Title  string `json:"title"`
	Status int    `json:"status"`
	Field  string `json:"field"`
}

func decodeProblem(t *testing.T, rr *httptest.ResponseRecorder) problemBody {
	t.Helper()
	if ct := rr.Header().Get("Content-Type"); ct != "application/problem+json" {
		t.Fatalf("content type: %q", ct)
	}
	var p problemBody
	if err := json.Unmarshal(rr.Body.Bytes(), &p); err != nil {
		t.Fatalf("decode problem: %v", err)
	}
	return p
}

func TestHealthz(t *testing.T) {
	h := newServer(&fakeSearcher{}, nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusOK || rr.Body.String() != "ok" {
		t.Fatalf("healthz: %d %q", rr.Code, rr.Body.String())
	}
}

func TestSearchListings_OK(t *testing.T) {
	fs := &fakeSearcher{}
	h := newServer(fs, nil)

	rr := post(h, "/v1/listings/search", `{"viewTagIds":[1,2],"checkIn":"2026-06-01","checkOut":"2026-06-03","rooms":2}`,
		map[string]string{"X-User-ID": "99"})
	if rr.Code != http.StatusOK {
		t.Fatalf("status: %d body=%s", rr.Code, rr.Body.String())
	}
	if fs.lastQuery.ViewerID != 99 || len(fs.lastQuery.ViewTagIDs) != 2 || fs.lastQuery.Rooms != 2 || fs.lastQuery.CheckIn != "2026-06-01" {
		t.Fatalf("query: %+v", fs.lastQuery)
	}
	var page domain.ListingCardsPage
	if err := json.Unmarshal(rr.Body.Bytes(), &page); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if page.Total != 1 || page.Items[0].ID != 3 {
		t.Fatalf("page: %+v", page)
	}

	etag := rr.Header().Get("ETag")
	if etag == "" {
		t.Fatalf("missing ETag")
	}
	rr = post(h, "/v1/listings/search", `{}`, map[string]string{"If-None-Match": etag})
	if rr.Code != http.StatusNotModified {
		t.Fatalf("If-None-Match should give 304, got %d", rr.Code)
	}
}

func TestSearchListings_CriterionNumbersStayExact(t *testing.T) {
	fs := &fakeSearcher{}
	h := newServer(fs, nil)

	rr := post(h, "/v1/listings/search", `{"criteria":[{"key":"area","op":"eq","values":[9007199254740993]}]}`, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: %d", rr.Code)
	}
	c := fs.lastQuery.Criteria
	if len(c) != 1 || c[0].Values[0] != json.Number("9007199254740993") {
		t.Fatalf("criterion value: %#v", c)
	}
}

func TestSearchListings_EmptyBodyIsUnfiltered(t *testing.T) {
	fs := &fakeSearcher{}
	h := newServer(fs, nil)
	rr := post(h, "/v1/listings/search", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: %d", rr.Code)
	}
	if fs.lastQuery.ViewerID != 0 || fs.lastQuery.ViewTagIDs != nil {
		t.Fatalf("query: %+v", fs.lastQuery)
	}
}

func TestSearchListings_BadRequests(t *testing.T) {
	h := newServer(&fakeSearcher{}, nil)
	cases := map[string]struct {
		body string
		hdr  map[string]string
	}{
		"unknown field": {body: `{"stars": 5}`},
		"not json":      {body: `{"viewTagIds": [`},
		"wrong type":    {body: `{"rooms": "two"}`},
		"bad viewer":    {body: `{}`, hdr: map[string]string{"X-User-ID": "abc"}},
	}
	for name, c := range cases {
		rr := post(h, "/v1/listings/search", c.body, c.hdr)
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("%s: want 400, got %d", name, rr.Code)
		}
		decodeProblem(t, rr)
	}
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		field  string
	}{
		{err: domain.InvalidFilter("rooms", "must be at least 1"), status: http.StatusBadRequest, field: "rooms"},
		{err: domain.ErrNotFound, status: http.StatusNotFound},
		{err: context.DeadlineExceeded, status: http.StatusGatewayTimeout},
		{err: errors.New("connection reset"), status: http.StatusInternalServerError},
	}
	for _, c := range cases {
		h := newServer(&fakeSearcher{err: c.err}, nil)
		rr := post(h, "/v1/listings/search", `{}`, nil)
		if rr.Code != c.status {
			t.Fatalf("%v: want %d, got %d", c.err, c.status, rr.Code)
		}
		p := decodeProblem(t, rr)
		if p.Status != c.status || p.Field != c.field {
			t.Fatalf("%v: problem %+v", c.err, p)
		}
	}
}

func TestSearchUnits_PathID(t *testing.T) {
	fs := &fakeSearcher{}
	h := newServer(fs, nil)

	rr := post(h, "/v1/listings/42/units/search", `{"rooms":1}`, nil)
	if rr.Code != http.StatusOK || fs.lastUnits != 42 {
		t.Fatalf("status %d listing %d", rr.Code, fs.lastUnits)
	}
	for _, bad := range []string{"abc", "0", "-3"} {
		rr = post(h, "/v1/listings/"+bad+"/units/search", `{}`, nil)
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("%s: want 400, got %d", bad, rr.Code)
		}
	}
}

func TestAdminAndOwnerRoutes(t *testing.T) {
	fs := &fakeSearcher{}
	h := newServer(fs, nil)

	rr := post(h, "/v1/admin/listings/search", `{"criteria":[{"key":"status","op":"eq","values":["banned"]}]}`, nil)
	if rr.Code != http.StatusOK || fs.adminCalls != 1 {
		t.Fatalf("admin: %d calls=%d", rr.Code, fs.adminCalls)
	}
	rr = post(h, "/v1/owners/7/listings/search", `{"sort":"popularity"}`, nil)
	if rr.Code != http.StatusOK || fs.lastOwner != 7 {
		t.Fatalf("owner: %d owner=%d", rr.Code, fs.lastOwner)
	}
}
