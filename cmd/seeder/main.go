package main

import (
	"context"
	"database/sql"
	"os"
	"sync"
	"sync/atomic"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"hotel_booking/internal/adapters/observability"
	redisad "hotel_booking/internal/adapters/redis"
	"hotel_booking/internal/app"
	"hotel_booking/internal/domain"
	"hotel_booking/internal/shared"
	mysqlrepo "hotel_booking/internal/storage/mysql"
)

func main() {
	ctx := context.Background()
	cfg := shared.Load()

	// 1) initialize global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel)

	log.Info().
		Str("file", cfg.SeedFile).
		Int("workers", cfg.SeedWorkers).
		Msg("seeder starting")

	f, err := os.Open(cfg.SeedFile)
	if err != nil {
		log.Fatal().Err(err).Msg("open seed file failed")
	}
	seed, err := app.ReadSeed(f)
	f.Close()
	if err != nil {
		log.Fatal().Err(err).Msg("seed file is invalid")
	}

	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	log.Info().Msg("db ping ok")

	repo := mysqlrepo.New(db)
	var cache domain.Cache
	if cfg.RedisAddr != "" {
		rc := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
		defer rc.Close()
		cache = rc
	}
	engine := app.NewReservationEngine(repo, cache)
	seeder := app.NewSeeder(app.NewDirectory(repo, repo, engine, cache), repo)

	if err := seeder.LoadUsers(ctx, seed.Users, cfg.SeedWorkers); err != nil {
		log.Fatal().Err(err).Msg("loading users failed")
	}
	log.Info().Int("users", len(seed.Users)).Msg("users loaded")

	sem := semaphore.NewWeighted(int64(max(cfg.SeedWorkers, 1)))
	var (
		wg     sync.WaitGroup
		failed atomic.Int32
	)
	for _, h := range seed.Hotels {
		// acquire before launching the goroutine; release inside it
		if err := sem.Acquire(ctx, 1); err != nil {
			log.Fatal().Err(err).Msg("semaphore acquire failed")
		}

		wg.Add(1)
		go func(h app.SeedHotel) {
			defer wg.Done()
			defer sem.Release(1)

			if _, err := seeder.LoadHotel(ctx, h); err != nil {
				failed.Add(1)
				log.Warn().Str("hotel", h.Name).Err(err).Msg("seed failed")
			}
		}(h)
	}

	wg.Wait()
	if n := failed.Load(); n > 0 {
		log.Error().Int32("failed", n).Int("hotels", len(seed.Hotels)).Msg("seeding finished with failures")
		os.Exit(1)
	}
	log.Info().Int("hotels", len(seed.Hotels)).Msg("seeding completed")
}
