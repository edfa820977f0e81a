package main

import (
	"context"
	"database/sql"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	"hotel_booking/internal/adapters/auth"
	server "hotel_booking/internal/adapters/http_server"
	"hotel_booking/internal/adapters/observability"
	redisad "hotel_booking/internal/adapters/redis"
	"hotel_booking/internal/adapters/users"
	"hotel_booking/internal/app"
	"hotel_booking/internal/domain"
	"hotel_booking/internal/shared"
	"hotel_booking/internal/storage/memory"
	mysqlrepo "hotel_booking/internal/storage/mysql"
)

func main() {
	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel)

	reg := observability.InitRegistry()
	observability.Serve(cfg.MetricsAddr, reg)

	var (
		repo      domain.HotelRepository
		directory domain.UserDirectory
	)
	switch cfg.StorageDriver {
	case "memory":
		s := memory.New()
		repo, directory = s, s
		log.Warn().Msg("using in-memory storage; data is lost on exit")
	case "mysql":
		db, err := sql.Open("mysql", cfg.MySQLDSN)
		if err != nil {
			log.Fatal().Err(err).Msg("sql.Open failed")
		}
		defer db.Close()
		if err := db.Ping(); err != nil {
			log.Fatal().Err(err).Msg("db.Ping failed")
		}
		log.Info().Msg("database connection ok")
		r := mysqlrepo.New(db)
		repo, directory = r, r
	default:
		log.Fatal().Str("driver", cfg.StorageDriver).Msg("unknown STORAGE_DRIVER")
	}

	// An external user service, when configured, is authoritative for identities.
	if cfg.UsersBase != "" {
		cl, err := users.New(cfg.UsersBase, cfg.UsersKey, cfg.UsersRPS)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize users client")
		}
		directory = cl
	}

	var cache domain.Cache
	if cfg.RedisAddr != "" {
		rc := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
		defer rc.Close()
		cache = rc
	}

	tokens, err := auth.NewManager(cfg.JWTSecret, cfg.JWTTTL)
	if err != nil {
		log.Fatal().Err(err).Msg("JWT_SECRET must be set")
	}

	engine := app.NewReservationEngine(repo, cache)
	dir := app.NewDirectory(repo, directory, engine, cache)
	q := app.NewQueryService(dir, engine, cache, cfg.CacheTTL)

	// http
	srv := server.New(server.Options{
		RequestTimeout: cfg.RequestTimeout,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
		TrustProxy:     cfg.TrustProxy,
		CORSOrigins:    cfg.CORSOrigins,
	})
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(&server.Handlers{Q: q, Dir: dir, Engine: engine}, server.NewGate(tokens))

	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Mux(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Str("storage", cfg.StorageDriver).Msg("API listening")
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}
