package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"trip-assignment-service/internal/adapters/cache"
	"trip-assignment-service/internal/adapters/distance"
	"trip-assignment-service/internal/adapters/repositories"
	"trip-assignment-service/internal/api"
	"trip-assignment-service/internal/config"
	"trip-assignment-service/internal/domain"
	"trip-assignment-service/internal/platform/db"
	"trip-assignment-service/internal/platform/logger"
	"trip-assignment-service/internal/ports"
	"trip-assignment-service/internal/services"
	"trip-assignment-service/internal/zone"
)

// main is the application composition root.
// It wires concrete adapters (SQLite, Postgres/Redis caches, ORS) behind ports and starts the HTTP server.
func main() {
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger.Init(cfg.Log)
	log := logger.Component("server")
	if envErr != nil {
		log.Info().Msg("no .env file found (using environment variables)")
	}

	if err := run(cfg); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func run(cfg config.Config) error {
	log := logger.Component("server")

	pf, err := config.LoadPlannerFile(cfg.PlannerConfig)
	if err != nil {
		return err
	}
	capacity, err := domain.NewCapacityModel(pf.Capacity)
	if err != nil {
		return err
	}

	sqlite, err := db.OpenSQLite(cfg.DBPath)
	if err != nil {
		return err
	}
	defer sqlite.Close()

	// Initialize schema and seed demo data on startup for local runs.
	if err := initAndSeed(sqlite, cfg.SeedPath); err != nil {
		return err
	}

	store, locations, closeStores, err := openCaches(cfg, sqlite)
	if err != nil {
		return err
	}
	defer closeStores()

	var routing ports.RoutingService
	var geocoder ports.Geocoder
	if cfg.ORS.APIKey != "" {
		client, err := newORSClient(cfg.ORS)
		if err != nil {
			return err
		}
		routing, geocoder = client, client
	} else {
		log.Warn().Msg("ORS_API_KEY not set; distances will be estimated from great-circle distance")
	}

	provider := distance.NewProvider(routing, store, cfg.Distance)

	zones := zone.NewClassifier(pf.Zones, cfg.Depot, pf.Bearing)
	planner := services.NewPlanner(provider, zones, nil, capacity)
	planner.Destinations = repositories.NewSqliteDestinationRepository(sqlite)
	planner.EligibilitySource = repositories.NewSqliteEligibilityRepository(sqlite)
	planner.Locations = &services.LocationResolver{Store: locations, Geocoder: geocoder}

	router := api.NewRouter(planner.Destinations, planner, pf.Planner)

	// Timeouts are tuned for cold-cache planning (external API latency).
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown failed")
	}
	if err := provider.Flush(shutdownCtx); err != nil {
		log.Error().Err(err).Int("pending", provider.Pending()).Msg("final distance cache flush failed")
	}
	return nil
}

// openCaches picks the persistent distance and location caches: Postgres
// when DATABASE_URL is set, Redis for distances when REDIS_URL is set,
// otherwise the local SQLite database.
func openCaches(cfg config.Config, sqlite *sql.DB) (ports.DistanceCache, ports.LocationStore, func(), error) {
	log := logger.Component("server")
	closers := []func(){}
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	var distances ports.DistanceCache = cache.NewSqliteDistanceCache(sqlite)
	var locations ports.LocationStore = cache.NewSqliteLocationCache(sqlite)

	if cfg.DatabaseURL != "" {
		pg, err := db.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, closeAll, err
		}
		closers = append(closers, func() { _ = pg.Close() })

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := repositories.InitPostgresCacheSchema(ctx, pg); err != nil {
			closeAll()
			return nil, nil, func() {}, err
		}

		distances = cache.NewSQLDistanceCache(pg)
		locations = cache.NewSQLLocationCache(pg)
		log.Info().Msg("using postgres distance and location cache")
	}

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			closeAll()
			return nil, nil, func() {}, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		client := redis.NewClient(opts)
		closers = append(closers, func() { _ = client.Close() })

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			closeAll()
			return nil, nil, func() {}, fmt.Errorf("ping redis: %w", err)
		}

		distances = cache.NewRedisDistanceCache(client, cfg.RedisTTL)
		log.Info().Msg("using redis distance cache")
	}

	return distances, locations, closeAll, nil
}

func newORSClient(c config.ORS) (*distance.ORSClient, error) {
	opts := []distance.ORSOption{distance.WithRateLimit(c.RatePerSec)}
	if c.BaseURL != "" {
		opts = append(opts, distance.WithBaseURL(c.BaseURL))
	}
	if c.Profile != "" {
		opts = append(opts, distance.WithProfile(c.Profile))
	}
	if c.Country != "" {
		opts = append(opts, distance.WithCountry(c.Country))
	}
	return distance.NewORSClient(c.APIKey, opts...)
}

func initAndSeed(db *sql.DB, seedPath string) error {
	if err := repositories.InitSchema(db); err != nil {
		return fmt.Errorf("init and seed: %w", err)
	}

	if seedPath == "" {
		return nil
	}
	if _, err := os.Stat(seedPath); errors.Is(err, os.ErrNotExist) {
		logger.Component("server").Warn().Str("path", seedPath).Msg("seed file not found; skipping seed")
		return nil
	}

	if err := repositories.SeedFromJSON(db, seedPath); err != nil {
		return fmt.Errorf("init and seed: %w", err)
	}

	return nil
}
