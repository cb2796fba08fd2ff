package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mmcloughlin/geohash"

	"hotel_search/internal/criteria"
	"hotel_search/internal/domain"
	"hotel_search/internal/idset"
)

func valStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}
func valF64(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}
func valTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
func dateArg(t time.Time) string { return t.Format(domain.DateLayout) }

type Repo struct{ db *sql.DB }

func New(db *sql.DB) *Repo { return &Repo{db: db} }

var (
	_ domain.SearchStore       = (*Repo)(nil)
	_ domain.AttributeKeyStore = (*Repo)(nil)
	_ domain.EnrichmentStore   = (*Repo)(nil)
	_ domain.SeedStore         = (*Repo)(nil)
)

func (r *Repo) queryIDs(ctx context.Context, query string, args ...any) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// -----------------------------------------------------------------------------
// Narrowing reads
// -----------------------------------------------------------------------------

func (r *Repo) ListingsWithTags(ctx context.Context, tagIDs []int64, match domain.TagMatch, within idset.Set) ([]int64, error) {
	return r.taggedIDs(ctx, listingTagsSelect, "lt.tag_id", "lt.listing_id", tagIDs, match, within)
}

// ListingsWithAmenities matches amenities across all units of a listing.
func (r *Repo) ListingsWithAmenities(ctx context.Context, amenityIDs []int64, match domain.TagMatch, within idset.Set) ([]int64, error) {
	return r.taggedIDs(ctx, unitAmenitiesSelect, "am.tag_id", "u.listing_id", amenityIDs, match, within)
}

func (r *Repo) taggedIDs(ctx context.Context, selectSQL, tagCol, listingCol string, tagIDs []int64, match domain.TagMatch, within idset.Set) ([]int64, error) {
	tags := distinct(tagIDs)
	if len(tags) == 0 || within.IsEmpty() {
		return nil, nil
	}
	qb := newQueryBuilder()
	qb.inList(tagCol, tags)
	qb.inSet(listingCol, within)
	q := selectSQL + qb.where() + "\nGROUP BY " + listingCol
	args := qb.args
	if match == domain.MatchAll {
		q += "\nHAVING COUNT(DISTINCT " + tagCol + ") = ?"
		args = append(args, len(tags))
	}
	ids, err := r.queryIDs(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("tagged listings: %w", err)
	}
	return ids, nil
}

// ListingsNear prefilters on stored geohash prefixes and keeps listings whose
// great-circle distance is within the radius.
func (r *Repo) ListingsNear(ctx context.Context, g domain.GeoFilter, within idset.Set) ([]int64, error) {
	if within.IsEmpty() {
		return nil, nil
	}
	qb := newQueryBuilder()
	if cells := coverCells(g.Lat, g.Lng, g.RadiusKm); len(cells) > 0 {
		ors := make([]string, len(cells))
		args := make([]any, len(cells))
		for i, c := range cells {
			ors[i] = "l.geohash LIKE ?"
			args[i] = escapeLike(c) + "%"
		}
		qb.add("("+strings.Join(ors, " OR ")+")", args...)
	}
	qb.inSet("l.id", within)

	rows, err := r.db.QueryContext(ctx, listingsNearSelect+qb.where(), qb.args...)
	if err != nil {
		return nil, fmt.Errorf("listings near: %w", err)
	}
	defer rows.Close()
	var out []int64
	for rows.Next() {
		var id int64
		var lat, lng float64
		if err := rows.Scan(&id, &lat, &lng); err != nil {
			return nil, fmt.Errorf("listings near: %w", err)
		}
		if haversineKm(g.Lat, g.Lng, lat, lng) <= g.RadiusKm {
			out = append(out, id)
		}
	}
	return out, rows.Err()
}

func (r *Repo) UnitsMatching(ctx context.Context, where domain.Predicate, scope domain.UnitScope) ([]int64, error) {
	if scope.Empty() {
		return nil, nil
	}
	qb := newQueryBuilder()
	qb.scope(scope)
	if err := qb.predicate(where); err != nil {
		return nil, err
	}
	ids, err := r.queryIDs(ctx, unitsSelect+qb.where(), qb.args...)
	if err != nil {
		return nil, fmt.Errorf("units matching: %w", err)
	}
	return ids, nil
}

// UnitsAvailable keeps units with at least rooms free on every night of stay.
func (r *Repo) UnitsAvailable(ctx context.Context, stay domain.DateRange, rooms int, scope domain.UnitScope) ([]int64, error) {
	if scope.Empty() {
		return nil, nil
	}
	qb := newQueryBuilder("u.capacity >= ?")
	qb.args = append(qb.args, rooms)
	qb.scope(scope)

	capacity := map[int64]int{}
	var order []int64
	rows, err := r.db.QueryContext(ctx, unitCapacitySelect+qb.where(), qb.args...)
	if err != nil {
		return nil, fmt.Errorf("unit capacity: %w", err)
	}
	for rows.Next() {
		var id int64
		var c int
		if err := rows.Scan(&id, &c); err != nil {
			rows.Close()
			return nil, fmt.Errorf("unit capacity: %w", err)
		}
		capacity[id] = c
		order = append(order, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("unit capacity: %w", err)
	}
	if len(order) == 0 {
		return nil, nil
	}

	windows, err := r.confirmedWindows(ctx, stay, order)
	if err != nil {
		return nil, err
	}
	var out []int64
	for _, id := range order {
		if domain.HasAvailability(capacity[id], windows[id], stay, rooms) {
			out = append(out, id)
		}
	}
	return out, nil
}

func (r *Repo) confirmedWindows(ctx context.Context, stay domain.DateRange, units []int64) (map[int64][]domain.ReservationWindow, error) {
	qb := newQueryBuilder("r.status = ?", "r.date_from < ?", "r.date_to > ?")
	qb.args = append(qb.args, int(domain.ReservationConfirmed), dateArg(stay.To), dateArg(stay.From))
	qb.inList("u.id", units)

	rows, err := r.db.QueryContext(ctx, reservationsSelect+qb.where(), qb.args...)
	if err != nil {
		return nil, fmt.Errorf("reservations: %w", err)
	}
	defer rows.Close()
	out := map[int64][]domain.ReservationWindow{}
	for rows.Next() {
		w := domain.ReservationWindow{Status: domain.ReservationConfirmed}
		if err := rows.Scan(&w.UnitID, &w.From, &w.To, &w.Rooms); err != nil {
			return nil, fmt.Errorf("reservations: %w", err)
		}
		out[w.UnitID] = append(out[w.UnitID], w)
	}
	return out, rows.Err()
}

// UnitsPriced keeps units whose discounted stay price satisfies the filter.
func (r *Repo) UnitsPriced(ctx context.Context, price domain.PriceFilter, stay domain.DateRange, scope domain.UnitScope) ([]int64, error) {
	if scope.Empty() {
		return nil, nil
	}
	qb := newQueryBuilder()
	qb.scope(scope)

	base := map[int64]float64{}
	var order []int64
	rows, err := r.db.QueryContext(ctx, unitBasePriceSelect+qb.where(), qb.args...)
	if err != nil {
		return nil, fmt.Errorf("unit base price: %w", err)
	}
	for rows.Next() {
		var id int64
		var p float64
		if err := rows.Scan(&id, &p); err != nil {
			rows.Close()
			return nil, fmt.Errorf("unit base price: %w", err)
		}
		base[id] = p
		order = append(order, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("unit base price: %w", err)
	}
	if len(order) == 0 {
		return nil, nil
	}

	records, err := r.priceRecords(ctx, stay, order)
	if err != nil {
		return nil, err
	}
	var out []int64
	for _, id := range order {
		if price.Matches(domain.DailyPrices(base[id], records[id], stay)) {
			out = append(out, id)
		}
	}
	return out, nil
}

func (r *Repo) priceRecords(ctx context.Context, stay domain.DateRange, units []int64) (map[int64][]domain.PriceRecord, error) {
	qb := newQueryBuilder("p.day >= ?", "p.day < ?")
	qb.args = append(qb.args, dateArg(stay.From), dateArg(stay.To))
	qb.inList("u.id", units)

	rows, err := r.db.QueryContext(ctx, pricesSelect+qb.where(), qb.args...)
	if err != nil {
		return nil, fmt.Errorf("unit prices: %w", err)
	}
	defer rows.Close()
	out := map[int64][]domain.PriceRecord{}
	for rows.Next() {
		var p domain.PriceRecord
		if err := rows.Scan(&p.UnitID, &p.Date, &p.Price, &p.DiscountPercent); err != nil {
			return nil, fmt.Errorf("unit prices: %w", err)
		}
		out[p.UnitID] = append(out[p.UnitID], p)
	}
	return out, rows.Err()
}

func (r *Repo) ListingsOfUnits(ctx context.Context, units idset.Set, within idset.Set) ([]int64, error) {
	if units.IsEmpty() || within.IsEmpty() {
		return nil, nil
	}
	qb := newQueryBuilder()
	qb.inSet("u.id", units)
	qb.inSet("u.listing_id", within)
	ids, err := r.queryIDs(ctx, listingsOfUnitsSelect+qb.where(), qb.args...)
	if err != nil {
		return nil, fmt.Errorf("listings of units: %w", err)
	}
	return ids, nil
}

// -----------------------------------------------------------------------------
// Page reads
// -----------------------------------------------------------------------------

func scanListing(sc interface{ Scan(...any) error }) (domain.Listing, error) {
	var l domain.Listing
	var typ, status int
	var created sql.NullTime
	if err := sc.Scan(
		&l.ID, &l.OwnerID, &l.Name, &typ, &status, &l.Lat, &l.Lng, &l.Geohash,
		&l.PriceMin, &l.PriceMax, &l.ReviewScore, &l.BookingCount, &created,
	); err != nil {
		return domain.Listing{}, err
	}
	l.Type = domain.ListingType(typ)
	l.Status = domain.ListingStatus(status)
	if created.Valid {
		l.CreatedAt = created.Time
	}
	return l, nil
}

func (r *Repo) GetListing(ctx context.Context, id int64) (domain.Listing, error) {
	l, err := scanListing(r.db.QueryRowContext(ctx, getListingSQL, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Listing{}, domain.ErrNotFound
		}
		return domain.Listing{}, fmt.Errorf("get listing %d: %w", id, err)
	}
	return l, nil
}

var sortExpr = map[domain.SortKey]string{
	domain.SortID:          "l.id",
	domain.SortReviewScore: "l.review_score",
	domain.SortPopularity:  "(l.booking_count * (1 + l.review_score / 5))",
}

func orderBy(key domain.SortKey, desc bool) string {
	expr, ok := sortExpr[key]
	if !ok {
		expr = sortExpr[domain.SortID]
	}
	dir := "ASC"
	if desc {
		dir = "DESC"
	}
	if expr == "l.id" {
		return "\nORDER BY l.id " + dir
	}
	return "\nORDER BY " + expr + " " + dir + ", l.id ASC"
}

func (r *Repo) PageListings(ctx context.Context, q domain.ListingPageQuery) (domain.ListingsPage, error) {
	page := domain.ListingsPage{Page: q.Page, PageSize: q.PageSize}
	if q.IDs.IsEmpty() {
		return page, nil
	}
	qb := newQueryBuilder()
	qb.inSet("l.id", q.IDs)
	if q.Status != nil {
		qb.add("l.status = ?", int(*q.Status))
	}
	if len(q.Types) > 0 {
		args := make([]any, len(q.Types))
		for i, t := range q.Types {
			args[i] = int(t)
		}
		qb.add("l.type IN ("+placeholders(len(args))+")", args...)
	}
	if err := qb.predicate(q.Where); err != nil {
		return page, err
	}

	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM listings l"+qb.where(), qb.args...).Scan(&page.Total); err != nil {
		return page, fmt.Errorf("count listings: %w", err)
	}
	if page.Total == 0 || q.Offset() >= page.Total {
		return page, nil
	}

	query := "SELECT" + listingColumns + "\nFROM listings l" + qb.where() + orderBy(q.Sort, q.Desc) + "\nLIMIT ? OFFSET ?"
	args := append(append([]any(nil), qb.args...), q.PageSize, q.Offset())
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return page, fmt.Errorf("page listings: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return page, fmt.Errorf("page listings: %w", err)
		}
		page.Items = append(page.Items, l)
	}
	return page, rows.Err()
}

func (r *Repo) PageUnits(ctx context.Context, q domain.UnitPageQuery) (domain.UnitsPage, error) {
	page := domain.UnitsPage{Page: q.Page, PageSize: q.PageSize}
	if q.IDs.IsEmpty() {
		return page, nil
	}
	qb := newQueryBuilder("u.listing_id = ?")
	qb.args = append(qb.args, q.ListingID)
	qb.inSet("u.id", q.IDs)

	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM units u"+qb.where(), qb.args...).Scan(&page.Total); err != nil {
		return page, fmt.Errorf("count units: %w", err)
	}
	if page.Total == 0 || q.Offset() >= page.Total {
		return page, nil
	}

	query := "SELECT " + unitColumns + "\nFROM units u" + qb.where() + "\nORDER BY u.id\nLIMIT ? OFFSET ?"
	args := append(append([]any(nil), qb.args...), q.PageSize, q.Offset())
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return page, fmt.Errorf("page units: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var u domain.Unit
		if err := rows.Scan(&u.ID, &u.ListingID, &u.Name, &u.Capacity, &u.BasePrice); err != nil {
			return page, fmt.Errorf("page units: %w", err)
		}
		page.Items = append(page.Items, u)
	}
	return page, rows.Err()
}

func (r *Repo) ListAttributeKeys(ctx context.Context) ([]domain.AttributeKey, error) {
	rows, err := r.db.QueryContext(ctx, listAttributeKeysSQL)
	if err != nil {
		return nil, fmt.Errorf("attribute keys: %w", err)
	}
	defer rows.Close()
	var out []domain.AttributeKey
	for rows.Next() {
		var k domain.AttributeKey
		var vt string
		var options []byte
		if err := rows.Scan(&k.ID, &k.Code, &vt, &options); err != nil {
			return nil, fmt.Errorf("attribute keys: %w", err)
		}
		k.ValueType = domain.AttributeValueType(vt)
		if len(options) > 0 {
			if err := json.Unmarshal(options, &k.Options); err != nil {
				return nil, fmt.Errorf("attribute key %q options: %w", k.Code, err)
			}
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

// -----------------------------------------------------------------------------
// Enrichment
// -----------------------------------------------------------------------------

func (r *Repo) Owners(ctx context.Context, ownerIDs []int64) (map[int64]domain.Owner, error) {
	out := map[int64]domain.Owner{}
	ids := distinct(ownerIDs)
	if len(ids) == 0 {
		return out, nil
	}
	qb := newQueryBuilder()
	qb.inList("o.id", ids)
	rows, err := r.db.QueryContext(ctx, ownersSelect+qb.where(), qb.args...)
	if err != nil {
		return nil, fmt.Errorf("owners: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var o domain.Owner
		var avatar sql.NullString
		if err := rows.Scan(&o.ID, &o.Name, &avatar); err != nil {
			return nil, fmt.Errorf("owners: %w", err)
		}
		if avatar.Valid {
			o.AvatarURL = avatar.String
		}
		out[o.ID] = o
	}
	return out, rows.Err()
}

func (r *Repo) Images(ctx context.Context, listingIDs []int64) (map[int64][]string, error) {
	out := map[int64][]string{}
	ids := distinct(listingIDs)
	if len(ids) == 0 {
		return out, nil
	}
	qb := newQueryBuilder()
	qb.inList("li.listing_id", ids)
	rows, err := r.db.QueryContext(ctx, imagesSelect+qb.where()+"\nORDER BY li.listing_id, li.position", qb.args...)
	if err != nil {
		return nil, fmt.Errorf("images: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id int64
		var url string
		if err := rows.Scan(&id, &url); err != nil {
			return nil, fmt.Errorf("images: %w", err)
		}
		out[id] = append(out[id], url)
	}
	return out, rows.Err()
}

func (r *Repo) LikedBy(ctx context.Context, viewerID int64, listingIDs []int64) (map[int64]bool, error) {
	out := map[int64]bool{}
	ids := distinct(listingIDs)
	if viewerID == 0 || len(ids) == 0 {
		return out, nil
	}
	qb := newQueryBuilder("lk.user_id = ?")
	qb.args = append(qb.args, viewerID)
	qb.inList("lk.listing_id", ids)
	liked, err := r.queryIDs(ctx, likesSelect+qb.where(), qb.args...)
	if err != nil {
		return nil, fmt.Errorf("likes: %w", err)
	}
	for _, id := range liked {
		out[id] = true
	}
	return out, nil
}

// -----------------------------------------------------------------------------
// Seed writes
// -----------------------------------------------------------------------------

func (r *Repo) UpsertOwner(ctx context.Context, o domain.Owner) error {
	_, err := r.db.ExecContext(ctx, upsertOwnerSQL, o.ID, o.Name, valStr(o.AvatarURL))
	return err
}

func (r *Repo) UpsertTag(ctx context.Context, t domain.Tag) error {
	_, err := r.db.ExecContext(ctx, upsertTagSQL, t.ID, string(t.Kind), t.Name)
	return err
}

func (r *Repo) UpsertAttributeKey(ctx context.Context, k domain.AttributeKey) error {
	var options any
	if len(k.Options) > 0 {
		b, err := json.Marshal(k.Options)
		if err != nil {
			return err
		}
		options = string(b)
	}
	_, err := r.db.ExecContext(ctx, upsertAttributeKeySQL, k.ID, k.Code, string(k.ValueType), options)
	return err
}

// UpsertListing replaces the listing row and its tag links.
func (r *Repo) UpsertListing(ctx context.Context, l domain.Listing) error {
	hash := l.Geohash
	if hash == "" {
		hash = geohash.Encode(l.Lat, l.Lng)
	}
	return r.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, upsertListingSQL,
			l.ID, l.OwnerID, l.Name, criteria.NormalizeName(l.Name), int(l.Type), int(l.Status),
			l.Lat, l.Lng, hash, l.PriceMin, l.PriceMax, l.ReviewScore, l.BookingCount, valTime(l.CreatedAt),
		); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, deleteListingTagsSQL, l.ID); err != nil {
			return err
		}
		tags := distinct(l.TagIDs)
		if len(tags) == 0 {
			return nil
		}
		values := make([]string, 0, len(tags))
		args := make([]any, 0, len(tags)*2)
		for _, tag := range tags {
			values = append(values, "(?,?)")
			args = append(args, l.ID, tag)
		}
		_, err := tx.ExecContext(ctx, insertListingTagsPrefix+strings.Join(values, ","), args...)
		return err
	})
}

func (r *Repo) ReplaceListingImages(ctx context.Context, listingID int64, urls []string) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, deleteListingImagesSQL, listingID); err != nil {
			return err
		}
		if len(urls) == 0 {
			return nil
		}
		values := make([]string, 0, len(urls))
		args := make([]any, 0, len(urls)*3)
		for i, u := range urls {
			values = append(values, "(?,?,?)")
			args = append(args, listingID, i, u)
		}
		_, err := tx.ExecContext(ctx, insertListingImagesPrefix+strings.Join(values, ","), args...)
		return err
	})
}

func (r *Repo) AddLikes(ctx context.Context, likes []domain.Like) error {
	if len(likes) == 0 {
		return nil
	}
	values := make([]string, 0, len(likes))
	args := make([]any, 0, len(likes)*2)
	for _, lk := range likes {
		values = append(values, "(?,?)")
		args = append(args, lk.UserID, lk.ListingID)
	}
	_, err := r.db.ExecContext(ctx, insertLikesPrefix+strings.Join(values, ","), args...)
	return err
}

// UpsertUnit replaces the unit row, its amenity links and its attributes.
func (r *Repo) UpsertUnit(ctx context.Context, u domain.Unit) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, upsertUnitSQL, u.ID, u.ListingID, u.Name, u.Capacity, u.BasePrice); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, deleteUnitAmenitiesSQL, u.ID); err != nil {
			return err
		}
		if tags := distinct(u.AmenityIDs); len(tags) > 0 {
			values := make([]string, 0, len(tags))
			args := make([]any, 0, len(tags)*2)
			for _, tag := range tags {
				values = append(values, "(?,?)")
				args = append(args, u.ID, tag)
			}
			if _, err := tx.ExecContext(ctx, insertUnitAmenitiesPrefix+strings.Join(values, ","), args...); err != nil {
				return err
			}
		}
		if _, err := tx.ExecContext(ctx, deleteUnitAttributesSQL, u.ID); err != nil {
			return err
		}
		if len(u.Attributes) == 0 {
			return nil
		}
		values := make([]string, 0, len(u.Attributes))
		args := make([]any, 0, len(u.Attributes)*4)
		for _, a := range u.Attributes {
			values = append(values, "(?,?,?,?)")
			args = append(args, u.ID, a.KeyID, valStr(a.Text), valF64(a.Number))
		}
		_, err := tx.ExecContext(ctx, insertUnitAttributesPrefix+strings.Join(values, ","), args...)
		return err
	})
}

func (r *Repo) UpsertPriceRecords(ctx context.Context, rs []domain.PriceRecord) error {
	if len(rs) == 0 {
		return nil
	}
	values := make([]string, 0, len(rs))
	args := make([]any, 0, len(rs)*4)
	for _, p := range rs {
		values = append(values, "(?,?,?,?)")
		args = append(args, p.UnitID, dateArg(p.Date), p.Price, p.DiscountPercent)
	}
	_, err := r.db.ExecContext(ctx, insertPricesPrefix+strings.Join(values, ",")+insertPricesOnDup, args...)
	return err
}

func (r *Repo) UpsertReservations(ctx context.Context, ws []domain.ReservationWindow) error {
	if len(ws) == 0 {
		return nil
	}
	values := make([]string, 0, len(ws))
	args := make([]any, 0, len(ws)*6)
	for _, w := range ws {
		values = append(values, "(?,?,?,?,?,?)")
		args = append(args, w.ID, w.UnitID, dateArg(w.From), dateArg(w.To), w.Rooms, int(w.Status))
	}
	_, err := r.db.ExecContext(ctx, insertReservationsPrefix+strings.Join(values, ",")+insertReservationsOnDup, args...)
	return err
}

func (r *Repo) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
