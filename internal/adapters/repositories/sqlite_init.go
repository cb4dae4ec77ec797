package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"trip-assignment-service/internal/domain"
)

// Initialize the SQLite database schema.
func InitSchema(db *sql.DB) error {
	if db == nil {
		return errors.New("init schema: DB is nil")
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("init schema: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	createLocationsQuery := `
	CREATE TABLE IF NOT EXISTS locations (
		code TEXT PRIMARY KEY,
		province TEXT NOT NULL DEFAULT '',
		district TEXT NOT NULL DEFAULT '',
		subdistrict TEXT NOT NULL DEFAULT '',
		lat REAL,
		lon REAL
	);
	`

	createDestinationsQuery := `
	CREATE TABLE IF NOT EXISTS destinations (
		destination_id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		weight REAL NOT NULL CHECK (weight >= 0),
		volume REAL NOT NULL CHECK (volume >= 0),
		location_code TEXT NOT NULL DEFAULT '',
		business_type TEXT NOT NULL DEFAULT '',
		ceiling TEXT
	);
	`

	createHistoryQuery := `
	CREATE TABLE IF NOT EXISTS delivery_history (
		destination_id TEXT NOT NULL,
		vehicle_class TEXT NOT NULL,
		delivered_on TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (destination_id, vehicle_class, delivered_on)
	);
	`

	createReferenceQuery := `
	CREATE TABLE IF NOT EXISTS eligibility_reference (
		destination_id TEXT PRIMARY KEY,
		vehicle_class TEXT NOT NULL
	);
	`

	createDistanceCacheQuery := `
	CREATE TABLE IF NOT EXISTS distance_cache (
        from_key TEXT NOT NULL,
        to_key TEXT NOT NULL,
        km REAL NOT NULL,
        provenance TEXT NOT NULL,
        PRIMARY KEY (from_key, to_key)
    );
	`

	createLocationCacheQuery := `
	CREATE TABLE IF NOT EXISTS location_cache (
        code TEXT PRIMARY KEY,
        province TEXT NOT NULL DEFAULT '',
        district TEXT NOT NULL DEFAULT '',
        subdistrict TEXT NOT NULL DEFAULT '',
        lat REAL,
        lon REAL
    );
	`

	createIndexQuery := `
	CREATE INDEX IF NOT EXISTS idx_distance_cache_to_from
    ON distance_cache(to_key, from_key);
	`

	statements := []string{
		createLocationsQuery,
		createDestinationsQuery,
		createHistoryQuery,
		createReferenceQuery,
		createDistanceCacheQuery,
		createLocationCacheQuery,
		createIndexQuery,
	}

	for i, stmt := range statements {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("init schema: exec statement #%d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("init schema: commit tx: %w", err)
	}

	return nil
}

// InitPostgresCacheSchema creates the shared cache tables in Postgres.
func InitPostgresCacheSchema(ctx context.Context, db *sql.DB) error {
	if db == nil {
		return errors.New("init postgres schema: DB is nil")
	}

	statements := []string{
		`
		CREATE TABLE IF NOT EXISTS distance_cache (
			from_key TEXT NOT NULL,
			to_key TEXT NOT NULL,
			km DOUBLE PRECISION NOT NULL,
			provenance TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (from_key, to_key)
		);
		`,
		`
		CREATE TABLE IF NOT EXISTS location_cache (
			code TEXT PRIMARY KEY,
			province TEXT NOT NULL DEFAULT '',
			district TEXT NOT NULL DEFAULT '',
			subdistrict TEXT NOT NULL DEFAULT '',
			lat DOUBLE PRECISION,
			lon DOUBLE PRECISION
		);
		`,
	}

	for i, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init postgres schema: exec statement #%d: %w", i+1, err)
		}
	}
	return nil
}

type LocationSeed struct {
	Code        string   `json:"code"`
	Province    string   `json:"province"`
	District    string   `json:"district"`
	Subdistrict string   `json:"subdistrict"`
	Lat         *float64 `json:"lat,omitempty"`
	Lon         *float64 `json:"lon,omitempty"`
}

type DestinationSeed struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Weight       float64 `json:"weight"`
	Volume       float64 `json:"volume"`
	LocationCode string  `json:"location_code"`
	BusinessType string  `json:"business_type"`
	Ceiling      string  `json:"ceiling,omitempty"`
}

type HistorySeed struct {
	DestinationID string `json:"destination_id"`
	VehicleClass  string `json:"vehicle_class"`
	DeliveredOn   string `json:"delivered_on"`
}

type ReferenceSeed struct {
	DestinationID string `json:"destination_id"`
	VehicleClass  string `json:"vehicle_class"`
}

// Seed is the JSON document loaded by SeedFromJSON.
type Seed struct {
	Locations    []LocationSeed    `json:"locations"`
	Destinations []DestinationSeed `json:"destinations"`
	History      []HistorySeed     `json:"history"`
	Reference    []ReferenceSeed   `json:"reference"`
}

// Populate the database with reference data from a JSON file.
func SeedFromJSON(db *sql.DB, jsonPath string) error {
	bytes, err := os.ReadFile(jsonPath)
	if err != nil {
		return fmt.Errorf("seed: read %q: %w", jsonPath, err)
	}

	var data Seed
	if err := json.Unmarshal(bytes, &data); err != nil {
		return fmt.Errorf("seed: parse json: %w", err)
	}

	return SeedData(db, data)
}

// SeedData validates and inserts a seed document in one transaction.
func SeedData(db *sql.DB, data Seed) error {
	if err := validateSeed(data); err != nil {
		return err
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("seed: begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, l := range data.Locations {
		if _, err := tx.Exec(`
		INSERT OR REPLACE INTO locations (code, province, district, subdistrict, lat, lon)
		VALUES (?, ?, ?, ?, ?, ?);
		`, strings.TrimSpace(l.Code), l.Province, l.District, l.Subdistrict, nullable(l.Lat), nullable(l.Lon)); err != nil {
			return fmt.Errorf("seed: insert location code=%q: %w", l.Code, err)
		}
	}

	for _, d := range data.Destinations {
		var ceiling any
		if strings.TrimSpace(d.Ceiling) != "" {
			ceiling = strings.ToLower(strings.TrimSpace(d.Ceiling))
		}
		if _, err := tx.Exec(`
		INSERT OR REPLACE INTO destinations (
			destination_id, name, weight, volume, location_code, business_type, ceiling
		)
		VALUES (?, ?, ?, ?, ?, ?, ?);
		`, strings.TrimSpace(d.ID), d.Name, d.Weight, d.Volume, strings.TrimSpace(d.LocationCode), d.BusinessType, ceiling); err != nil {
			return fmt.Errorf("seed: insert destination id=%q: %w", d.ID, err)
		}
	}

	for _, h := range data.History {
		if _, err := tx.Exec(`
		INSERT OR IGNORE INTO delivery_history (destination_id, vehicle_class, delivered_on)
		VALUES (?, ?, ?);
		`, strings.TrimSpace(h.DestinationID), strings.ToLower(strings.TrimSpace(h.VehicleClass)), h.DeliveredOn); err != nil {
			return fmt.Errorf("seed: insert history id=%q: %w", h.DestinationID, err)
		}
	}

	for _, r := range data.Reference {
		if _, err := tx.Exec(`
		INSERT OR REPLACE INTO eligibility_reference (destination_id, vehicle_class)
		VALUES (?, ?);
		`, strings.TrimSpace(r.DestinationID), strings.ToLower(strings.TrimSpace(r.VehicleClass))); err != nil {
			return fmt.Errorf("seed: insert reference id=%q: %w", r.DestinationID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("seed: commit tx: %w", err)
	}

	return nil
}

func validateSeed(data Seed) error {
	for i, l := range data.Locations {
		if strings.TrimSpace(l.Code) == "" {
			return fmt.Errorf("seed: location at index %d: code cannot be empty", i+1)
		}
		if (l.Lat == nil) != (l.Lon == nil) {
			return fmt.Errorf("seed: location %q: lat and lon must be given together", l.Code)
		}
	}

	for i, d := range data.Destinations {
		if strings.TrimSpace(d.ID) == "" {
			return fmt.Errorf("seed: destination at index %d: id cannot be empty", i+1)
		}
		if d.Weight < 0 || d.Volume < 0 {
			return fmt.Errorf("seed: destination %q: weight and volume must be >= 0", d.ID)
		}
		if c := strings.TrimSpace(d.Ceiling); c != "" {
			if _, err := domain.ParseVehicleClass(c); err != nil {
				return fmt.Errorf("seed: destination %q: %w", d.ID, err)
			}
		}
	}

	for i, h := range data.History {
		if _, err := domain.ParseVehicleClass(h.VehicleClass); err != nil {
			return fmt.Errorf("seed: history at index %d: %w", i+1, err)
		}
	}

	for i, r := range data.Reference {
		if _, err := domain.ParseVehicleClass(r.VehicleClass); err != nil {
			return fmt.Errorf("seed: reference at index %d: %w", i+1, err)
		}
	}

	return nil
}

func nullable(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}
