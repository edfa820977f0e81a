package shared

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	AppEnv         string
	LogLevel       string
	HTTPAddr       string
	MetricsAddr    string
	StorageDriver  string
	MySQLDSN       string
	RedisAddr      string
	RedisDB        int
	RedisPass      string
	CacheTTL       time.Duration
	JWTSecret      string
	JWTTTL         time.Duration
	UsersBase      string
	UsersKey       string
	UsersRPS       int
	SeedFile       string
	SeedWorkers    int
	RateLimitRPS   float64
	RateLimitBurst int
	RequestTimeout time.Duration
	TrustProxy     bool
	CORSOrigins    []string
}

// Load reads the environment, after merging a .env file from the working
// directory when one exists. Variables already set win over the file.
func Load() Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn().Err(err).Msg("could not read .env")
	}
	c := Config{
		AppEnv:         env("APP_ENV", "prod"),
		LogLevel:       env("LOG_LEVEL", "info"),
		HTTPAddr:       env("HTTP_ADDR", ":8080"),
		MetricsAddr:    env("METRICS_ADDR", ":9100"),
		StorageDriver:  env("STORAGE_DRIVER", "mysql"),
		MySQLDSN:       env("MYSQL_DSN", "root:root@tcp(localhost:3306)/hotels?parseTime=true&charset=utf8mb4,utf8&loc=UTC"),
		RedisAddr:      env("REDIS_ADDR", ""),
		RedisPass:      env("REDIS_PASSWORD", ""),
		RedisDB:        atoi("REDIS_DB", 0),
		CacheTTL:       time.Duration(atoi("CACHE_TTL_SECONDS", 60)) * time.Second,
		JWTSecret:      env("JWT_SECRET", ""),
		JWTTTL:         time.Duration(atoi("JWT_TTL_MINUTES", 60)) * time.Minute,
		UsersBase:      env("USERS_BASE_URL", ""),
		UsersKey:       env("USERS_API_KEY", ""),
		UsersRPS:       atoi("USERS_RPS", 5),
		SeedFile:       env("SEED_FILE", "seed.json"),
		SeedWorkers:    atoi("SEED_WORKERS", 4),
		RateLimitRPS:   atof("RATE_LIMIT_RPS", 20),
		RateLimitBurst: atoi("RATE_LIMIT_BURST", 40),
		RequestTimeout: time.Duration(atoi("REQUEST_TIMEOUT_SECONDS", 15)) * time.Second,
		TrustProxy:     atob("TRUST_PROXY", false),
		CORSOrigins:    list("CORS_ALLOWED_ORIGINS"),
	}
	if c.JWTSecret == "" {
		log.Warn().Msg("JWT_SECRET is empty")
	}
	return c
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func atoi(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		log.Warn().Str("key", k).Str("value", v).Msg("not an integer, using default")
	}
	return def
}

func atof(k string, def float64) float64 {
	if v := os.Getenv(k); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
		log.Warn().Str("key", k).Str("value", v).Msg("not a number, using default")
	}
	return def
}

func atob(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
		log.Warn().Str("key", k).Str("value", v).Msg("not a boolean, using default")
	}
	return def
}

// list splits a comma-separated variable, dropping blanks.
func list(k string) []string {
	var out []string
	for _, p := range strings.Split(os.Getenv(k), ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
