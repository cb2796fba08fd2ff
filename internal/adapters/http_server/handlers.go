// internal/adapters/http_server/handlers.go
package httpserver

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"hotel_search/internal/app"
	"hotel_search/internal/domain"
	"hotel_search/internal/search"
)

const maxBodyBytes = 1 << 20

// Searcher is the query surface the handlers serve. *app.SearchService implements it.
type Searcher interface {
	Search(ctx context.Context, q search.ListingQuery) (domain.ListingCardsPage, error)
	SearchUnits(ctx context.Context, listingID int64, q search.UnitQuery) (domain.UnitCardsPage, error)
	AdminSearch(ctx context.Context, q app.AdminQuery) (domain.ListingCardsPage, error)
	OwnerSearch(ctx context.Context, ownerID int64, q app.AdminQuery) (domain.ListingCardsPage, error)
}

var _ Searcher = (*app.SearchService)(nil)

type Handlers struct{ S Searcher }

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
	Field  string `json:"field,omitempty"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })
	s.mux.Route("/v1", func(r chi.Router) {
		if s.limiter != nil {
			r.Use(RateLimit(s.limiter))
		}
		r.Post("/listings/search", h.searchListings)
		r.Post("/listings/{id}/units/search", h.searchUnits)
		r.Post("/admin/listings/search", h.adminSearch)
		r.Post("/owners/{ownerID}/listings/search", h.ownerSearch)
	})
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	writeProblemField(w, status, title, detail, "")
}

func writeProblemField(w http.ResponseWriter, status int, title, detail, field string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	p := problem{Type: "about:blank", Title: title, Status: status, Detail: detail, Field: field}
	if err := json.NewEncoder(w).Encode(p); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

// writeError maps service errors onto problem responses.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var fe *domain.FilterError
	switch {
	case errors.As(err, &fe):
		writeProblemField(w, http.StatusBadRequest, "Invalid Filter", fe.Error(), fe.Field)
	case errors.Is(err, domain.ErrInvalidFilter):
		writeProblem(w, http.StatusBadRequest, "Invalid Filter", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeProblem(w, http.StatusNotFound, "Not Found", "listing not found")
	case errors.Is(err, context.DeadlineExceeded):
		writeProblem(w, http.StatusGatewayTimeout, "Timeout", "search took too long")
	case errors.Is(err, context.Canceled):
		// client went away; nobody reads the body
		w.WriteHeader(499)
	default:
		log.Error().Err(err).Str("path", r.URL.Path).Msg("search failed")
		writeProblem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	etag := `W/"` + hex.EncodeToString(sum[:]) + `"`
	return etag, body
}

func writeJSON(w http.ResponseWriter, r *http.Request, v any) {
	etag, body := calcETagAndBody(v)
	if body == nil {
		writeProblem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Str("path", r.URL.Path).Msg("failed to write body")
	}
}

// decodeBody reads a JSON request body into dst. An empty body leaves dst
// at its zero value.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	// criterion values stay exact until the field converter parses them
	dec.UseNumber()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		writeProblem(w, http.StatusBadRequest, "Malformed Body", err.Error())
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		writeProblem(w, http.StatusBadRequest, "Invalid ID", name+" must be a positive number")
		return 0, false
	}
	return id, true
}

// viewerID reads the caller from X-User-ID. Missing means anonymous.
func viewerID(r *http.Request) (int64, error) {
	v := strings.TrimSpace(r.Header.Get("X-User-ID"))
	if v == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("X-User-ID must be a positive number")
	}
	return id, nil
}

func (h *Handlers) searchListings(w http.ResponseWriter, r *http.Request) {
	var q search.ListingQuery
	if !decodeBody(w, r, &q) {
		return
	}
	viewer, err := viewerID(r)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid Viewer", err.Error())
		return
	}
	q.ViewerID = viewer

	out, err := h.S.Search(r.Context(), q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, out)
}

func (h *Handlers) searchUnits(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var q search.UnitQuery
	if !decodeBody(w, r, &q) {
		return
	}
	out, err := h.S.SearchUnits(r.Context(), id, q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, out)
}

func (h *Handlers) adminSearch(w http.ResponseWriter, r *http.Request) {
	var q app.AdminQuery
	if !decodeBody(w, r, &q) {
		return
	}
	out, err := h.S.AdminSearch(r.Context(), q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, out)
}

func (h *Handlers) ownerSearch(w http.ResponseWriter, r *http.Request) {
	owner, ok := pathID(w, r, "ownerID")
	if !ok {
		return
	}
	var q app.AdminQuery
	if !decodeBody(w, r, &q) {
		return
	}
	out, err := h.S.OwnerSearch(r.Context(), owner, q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, out)
}
