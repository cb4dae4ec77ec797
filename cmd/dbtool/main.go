package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/joho/godotenv"

	"trip-assignment-service/internal/adapters/repositories"
	"trip-assignment-service/internal/config"
	"trip-assignment-service/internal/platform/db"
	"trip-assignment-service/internal/platform/logger"
)

func main() {
	envErr := godotenv.Load()

	logCfg := logger.DefaultConfig()
	logCfg.Level = config.Get("LOG_LEVEL", logCfg.Level)
	logger.Init(logCfg)
	log := logger.Component("dbtool")
	if envErr != nil {
		log.Info().Msg("no .env file found (using environment variables)")
	}

	dbPath := config.Get("DB_PATH", "data/app.db")
	seedPath := config.Get("SEED_PATH", "data/seeds/seed.json")

	sqlite, err := db.OpenSQLite(dbPath)
	if err != nil {
		log.Fatal().Err(err).Msg("open sqlite")
	}
	defer sqlite.Close()

	if err := initAndSeed(sqlite, seedPath); err != nil {
		log.Fatal().Err(err).Msg("init and seed")
	}

	if databaseURL := config.Get("DATABASE_URL", ""); databaseURL != "" {
		if err := initPostgres(databaseURL); err != nil {
			log.Fatal().Err(err).Msg("init postgres cache schema")
		}
	}
}

func initAndSeed(db *sql.DB, seedPath string) error {
	log := logger.Component("dbtool")

	log.Info().Msg("initializing database schema")
	if err := repositories.InitSchema(db); err != nil {
		return fmt.Errorf("schema initialization failed: %w", err)
	}
	log.Info().Msg("schema ready")

	log.Info().Str("path", seedPath).Msg("seeding database")
	if err := repositories.SeedFromJSON(db, seedPath); err != nil {
		return fmt.Errorf("seeding failed: %w", err)
	}
	log.Info().Msg("seeding complete")

	return nil
}

func initPostgres(databaseURL string) error {
	log := logger.Component("dbtool")

	pg, err := db.Open(databaseURL)
	if err != nil {
		return err
	}
	defer pg.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	log.Info().Msg("creating postgres cache tables")
	if err := repositories.InitPostgresCacheSchema(ctx, pg); err != nil {
		return err
	}
	log.Info().Msg("postgres cache tables ready")

	return nil
}
