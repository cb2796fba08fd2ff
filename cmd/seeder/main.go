package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	"hotel_search/internal/adapters/observability"
	redisad "hotel_search/internal/adapters/redis"
	"hotel_search/internal/app"
	"hotel_search/internal/shared"
	mysqlrepo "hotel_search/internal/storage/mysql"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := shared.Load()

	// 1) initialize global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel)

	path := cfg.SeedFixture
	if len(os.Args) > 1 {
		path = os.Args[1]
	}
	log.Info().
		Str("fixture", path).
		Int("workers", cfg.SeedWorkers).
		Msg("seeder starting")

	f, err := os.Open(path)
	if err != nil {
		log.Fatal().Err(err).Msg("open fixture failed")
	}
	fx, err := app.ParseFixture(f)
	_ = f.Close()
	if err != nil {
		log.Fatal().Err(err).Msg("fixture rejected")
	}

	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	log.Info().Msg("db ping ok")

	cache := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	defer cache.Close()

	seeder := app.NewSeedService(mysqlrepo.New(db), cache, cfg.SeedWorkers)
	rep, err := seeder.Seed(ctx, fx)
	ev := log.Info()
	if err != nil {
		ev = log.Warn().Err(err)
	}
	ev.Int("listings", rep.Listings).
		Int("units", rep.Units).
		Int("failed", rep.Failed).
		Msg("seeding completed")
	if rep.Failed > 0 {
		os.Exit(1)
	}
}
