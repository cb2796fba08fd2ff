//go:build integration

package mysql_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"

	"hotel_search/internal/app"
	"hotel_search/internal/criteria"
	"hotel_search/internal/domain"
	"hotel_search/internal/idset"
	mysqlrepo "hotel_search/internal/storage/mysql"
)

// ---------- small helpers ----------
func pfloat(f float64) *float64 { return &f }

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func applyMigrations(t *testing.T, db *sql.DB) {
	t.Helper()
	dir := envOr("MIGRATIONS_DIR", "../../../migrations")

	st, err := os.Stat(dir)
	if err != nil || !st.IsDir() {
		t.Fatalf("MIGRATIONS_DIR=%s is not a directory or missing", dir)
	}

	ents, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read migrations dir: %v", err)
	}
	var files []string
	for _, e := range ents {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".sql" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	if len(files) == 0 {
		t.Fatalf("no .sql files in %s", dir)
	}
	sort.Strings(files)

	for _, f := range files {
		sqlBytes, err := os.ReadFile(f)
		if err != nil {
			t.Fatalf("read %s: %v", f, err)
		}
		if _, err := db.Exec(string(sqlBytes)); err != nil {
			t.Fatalf("exec %s: %v", f, err)
		}
	}
}

func startMySQL(t *testing.T) *sql.DB {
	t.Helper()
	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Fatalf("dockertest: %v", err)
	}
	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "mysql",
		Tag:        "8.0.36",
		Env:        []string{"MYSQL_ROOT_PASSWORD=root", "MYSQL_DATABASE=stays"},
	}, func(hc *docker.HostConfig) {
		hc.AutoRemove = true
		hc.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		t.Fatalf("run mysql: %v", err)
	}
	t.Cleanup(func() { _ = pool.Purge(resource) })

	dsn := fmt.Sprintf("root:root@tcp(127.0.0.1:%s)/stays?parseTime=true&multiStatements=true&charset=utf8mb4,utf8&loc=UTC",
		resource.GetPort("3306/tcp"))
	pool.MaxWait = 2 * time.Minute

	var db *sql.DB
	if err := pool.Retry(func() error {
		var e error
		db, e = sql.Open("mysql", dsn)
		if e != nil {
			return e
		}
		return db.Ping()
	}); err != nil {
		t.Fatalf("connect mysql: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func seedSample(t *testing.T, repo *mysqlrepo.Repo) {
	t.Helper()
	f, err := os.Open(envOr("SEED_FIXTURE", "../../../fixtures/sample.json"))
	if err != nil {
		t.Fatalf("open fixture: %v", err)
	}
	defer f.Close()
	fx, err := app.ParseFixture(f)
	if err != nil {
		t.Fatalf("parse fixture: %v", err)
	}
	rep, err := app.NewSeedService(repo, nil, 4).Seed(context.Background(), fx)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if rep.Listings != 3 || rep.Units != 4 {
		t.Fatalf("seed report: %+v", rep)
	}
}

func sorted(ids []int64) []int64 { return idset.Of(ids...).IDs() }

func wantIDs(t *testing.T, name string, got []int64, err error, want ...int64) {
	t.Helper()
	if err != nil {
		t.Fatalf("%s: %v", name, err)
	}
	g := sorted(got)
	if len(g) == 0 && len(want) == 0 {
		return
	}
	if !reflect.DeepEqual(g, want) {
		t.Fatalf("%s: got %v want %v", name, g, want)
	}
}

func mustStay(t *testing.T, from, to string) domain.DateRange {
	t.Helper()
	f, _ := time.Parse(domain.DateLayout, from)
	tt, _ := time.Parse(domain.DateLayout, to)
	r, err := domain.NewDateRange(f, tt)
	if err != nil {
		t.Fatalf("stay: %v", err)
	}
	return r
}

// ---------- the test ----------
func TestRepo_MySQL_NarrowingAgainstSeed(t *testing.T) {
	db := startMySQL(t)
	applyMigrations(t, db)

	repo := mysqlrepo.New(db)
	seedSample(t, repo)
	// seeding is idempotent
	seedSample(t, repo)

	ctx := context.Background()
	all := idset.Unconstrained()
	anyScope := domain.UnitScope{Listings: all, Units: all}

	t.Run("tags", func(t *testing.T) {
		ids, err := repo.ListingsWithTags(ctx, []int64{1}, domain.MatchAll, all)
		wantIDs(t, "sea view", ids, err, 100, 102)
		ids, err = repo.ListingsWithTags(ctx, []int64{1, 3}, domain.MatchAll, all)
		wantIDs(t, "sea and city", ids, err, 100)
		ids, err = repo.ListingsWithTags(ctx, []int64{2, 3}, domain.MatchAny, all)
		wantIDs(t, "mountain or city", ids, err, 100, 101)
		ids, err = repo.ListingsWithTags(ctx, []int64{1}, domain.MatchAll, idset.Of(102))
		wantIDs(t, "within", ids, err, 102)
	})

	t.Run("amenities span units", func(t *testing.T) {
		ids, err := repo.ListingsWithAmenities(ctx, []int64{10, 12}, domain.MatchAll, all)
		wantIDs(t, "pool and breakfast", ids, err, 100)
		ids, err = repo.ListingsWithAmenities(ctx, []int64{11, 12}, domain.MatchAll, all)
		wantIDs(t, "wifi and breakfast", ids, err, 100, 101)
	})

	t.Run("geo", func(t *testing.T) {
		ids, err := repo.ListingsNear(ctx, domain.GeoFilter{Lat: 16.0544, Lng: 108.2442, RadiusKm: 3}, all)
		wantIDs(t, "da nang", ids, err, 100, 102)
		ids, err = repo.ListingsNear(ctx, domain.GeoFilter{Lat: 16.0544, Lng: 108.2442, RadiusKm: 0.2}, all)
		wantIDs(t, "tight radius", ids, err, 100)
	})

	t.Run("unit criteria", func(t *testing.T) {
		keys, err := repo.ListAttributeKeys(ctx)
		if err != nil || len(keys) != 4 {
			t.Fatalf("attribute keys: %v %v", keys, err)
		}
		w, err := criteria.UnitAttributeFields(keys)
		if err != nil {
			t.Fatalf("whitelist: %v", err)
		}
		cases := []struct {
			name string
			c    criteria.Criterion
			want []int64
		}{
			{"king bed", criteria.Criterion{Key: "bed", Op: "eq", Values: []any{"King"}}, []int64{1001}},
			{"area", criteria.Criterion{Key: "area", Op: "between", Values: []any{20.0, 30.0}}, []int64{1002}},
			{"literal percent", criteria.Criterion{Key: "note", Op: "like", Values: []any{"50%"}}, []int64{1011}},
			{"capacity", criteria.Criterion{Key: "capacity", Op: "gte", Values: []any{6.0}}, []int64{1002, 1021}},
		}
		for _, c := range cases {
			where, err := w.Compile([]criteria.Criterion{c.c})
			if err != nil {
				t.Fatalf("%s: compile: %v", c.name, err)
			}
			ids, err := repo.UnitsMatching(ctx, where, anyScope)
			wantIDs(t, c.name, ids, err, c.want...)
		}
	})

	t.Run("availability", func(t *testing.T) {
		stay := mustStay(t, "2026-06-01", "2026-06-03")
		ids, err := repo.UnitsAvailable(ctx, stay, 2, anyScope)
		wantIDs(t, "two rooms", ids, err, 1002, 1011, 1021)
		ids, err = repo.UnitsAvailable(ctx, stay, 1, anyScope)
		wantIDs(t, "one room", ids, err, 1001, 1002, 1011, 1021)
		// checkout day is free again
		ids, err = repo.UnitsAvailable(ctx, mustStay(t, "2026-06-03", "2026-06-04"), 4, domain.UnitScope{Listings: idset.Of(100), Units: all})
		wantIDs(t, "after checkout", ids, err, 1001, 1002)
	})

	t.Run("price", func(t *testing.T) {
		stay := mustStay(t, "2026-06-01", "2026-06-03")
		total := domain.PriceFilter{Min: pfloat(280), Max: pfloat(290), Mode: domain.PriceTotal}
		ids, err := repo.UnitsPriced(ctx, total, stay, anyScope)
		wantIDs(t, "total", ids, err, 1001)
		daily := domain.PriceFilter{Max: pfloat(140), Mode: domain.PriceEveryDay}
		ids, err = repo.UnitsPriced(ctx, daily, stay, anyScope)
		wantIDs(t, "every day", ids, err, 1002, 1011)
	})

	t.Run("listings of units", func(t *testing.T) {
		ids, err := repo.ListingsOfUnits(ctx, idset.Of(1002, 1011, 1021), idset.Of(100, 101))
		wantIDs(t, "parents", ids, err, 100, 101)
	})

	t.Run("paging", func(t *testing.T) {
		opening := domain.StatusOpening
		page, err := repo.PageListings(ctx, domain.ListingPageQuery{
			IDs: all, Status: &opening, Sort: domain.SortPopularity, Desc: true, Page: 1, PageSize: 1,
		})
		if err != nil {
			t.Fatalf("page: %v", err)
		}
		if page.Total != 2 || len(page.Items) != 1 || page.Items[0].ID != 100 {
			t.Fatalf("popularity page 1: %+v", page)
		}
		if page.Items[0].Name != "Sea Pearl Đà Nẵng" || page.Items[0].Type != domain.TypeHotel {
			t.Fatalf("listing row: %+v", page.Items[0])
		}
		page, err = repo.PageListings(ctx, domain.ListingPageQuery{
			IDs: all, Status: &opening, Sort: domain.SortReviewScore, Desc: true, Page: 1, PageSize: 10,
		})
		if err != nil || len(page.Items) != 2 || page.Items[0].ID != 101 {
			t.Fatalf("review score: %+v %v", page, err)
		}

		where, err := criteria.AdminListingFields.Compile([]criteria.Criterion{{Key: "name", Op: "like", Values: []any{"da nang"}}})
		if err != nil {
			t.Fatalf("compile: %v", err)
		}
		page, err = repo.PageListings(ctx, domain.ListingPageQuery{IDs: all, Where: where, Page: 1, PageSize: 10})
		if err != nil || page.Total != 1 || page.Items[0].ID != 100 {
			t.Fatalf("folded name search: %+v %v", page, err)
		}

		units, err := repo.PageUnits(ctx, domain.UnitPageQuery{ListingID: 100, IDs: idset.Of(1001, 1002, 1011), Page: 1, PageSize: 10})
		if err != nil || units.Total != 2 {
			t.Fatalf("units page: %+v %v", units, err)
		}
	})

	t.Run("lookups", func(t *testing.T) {
		if _, err := repo.GetListing(ctx, 999); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("missing listing: %v", err)
		}
		owners, err := repo.Owners(ctx, []int64{1, 2})
		if err != nil || owners[2].AvatarURL == "" || owners[1].Name != "Linh Tran" {
			t.Fatalf("owners: %+v %v", owners, err)
		}
		imgs, err := repo.Images(ctx, []int64{100, 101})
		if err != nil || len(imgs[100]) != 2 || len(imgs[101]) != 0 {
			t.Fatalf("images: %+v %v", imgs, err)
		}
		liked, err := repo.LikedBy(ctx, 7, []int64{100, 101})
		if err != nil || liked[100] || !liked[101] {
			t.Fatalf("likes: %+v %v", liked, err)
		}
	})
}
