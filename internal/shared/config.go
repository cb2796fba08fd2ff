package shared

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	AppEnv        string
	LogLevel      string
	HTTPAddr      string
	MetricsAddr   string
	MySQLDSN      string
	RedisAddr     string
	RedisDB       int
	RedisPass     string
	CacheTTL      time.Duration
	SearchTimeout time.Duration
	RateRPS       float64
	RateBurst     int
	RateIdle      time.Duration
	TrustProxy    bool
	SeedWorkers   int
	SeedFixture   string
}

// Load reads the process environment, after merging a .env file from the
// working directory when one exists. Variables already set win over .env.
func Load() Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn().Err(err).Msg("could not read .env")
	}

	atoi := func(k string, def int) int {
		if v := os.Getenv(k); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
			log.Warn().Str("key", k).Str("value", v).Msg("not an integer, using default")
		}
		return def
	}
	atof := func(k string, def float64) float64 {
		if v := os.Getenv(k); v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				return f
			}
			log.Warn().Str("key", k).Str("value", v).Msg("not a number, using default")
		}
		return def
	}
	c := Config{
		AppEnv:        env("APP_ENV", "prod"),
		LogLevel:      env("LOG_LEVEL", "info"),
		HTTPAddr:      env("HTTP_ADDR", ":8080"),
		MetricsAddr:   env("METRICS_ADDR", ""),
		MySQLDSN:      env("MYSQL_DSN", "root:root@tcp(localhost:3306)/stays?parseTime=true&charset=utf8mb4,utf8&loc=UTC"),
		RedisAddr:     env("REDIS_ADDR", "localhost:6379"),
		RedisPass:     env("REDIS_PASSWORD", ""),
		RedisDB:       atoi("REDIS_DB", 0),
		CacheTTL:      time.Duration(atoi("CACHE_TTL_SECONDS", 300)) * time.Second,
		SearchTimeout: time.Duration(atoi("SEARCH_TIMEOUT_SECONDS", 10)) * time.Second,
		RateRPS:       atof("RATE_LIMIT_RPS", 20),
		RateBurst:     atoi("RATE_LIMIT_BURST", 40),
		RateIdle:      time.Duration(atoi("RATE_LIMIT_IDLE_SECONDS", 300)) * time.Second,
		TrustProxy:    env("TRUST_PROXY_HEADERS", "false") == "true",
		SeedWorkers:   atoi("SEED_WORKERS", 8),
		SeedFixture:   env("SEED_FIXTURE", "fixtures/sample.json"),
	}
	if c.SeedWorkers < 1 {
		c.SeedWorkers = 1
	}
	return c
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
