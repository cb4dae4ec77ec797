package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"trip-assignment-service/internal/domain"
	"trip-assignment-service/internal/platform/obs"
	"trip-assignment-service/internal/ports"
)

// SQLLocationCache is a Postgres-backed cache of administrative locations
// keyed by location code.
type SQLLocationCache struct {
	DB *sql.DB
}

var _ ports.LocationStore = (*SQLLocationCache)(nil)

func NewSQLLocationCache(db *sql.DB) *SQLLocationCache {
	return &SQLLocationCache{DB: db}
}

// Fetch cached locations for the given codes.
func (s *SQLLocationCache) GetMany(
	ctx context.Context,
	codes []string,
) (_ map[string]domain.Location, err error) {
	defer obs.Time(ctx, "location.cache.GetMany")(&err)

	if s.DB == nil {
		return nil, errors.New("location cache: db is nil")
	}

	uniq := uniqCodes(codes)
	if len(uniq) == 0 {
		return map[string]domain.Location{}, nil
	}

	q := `
	SELECT code, province, district, subdistrict, lat, lon
    FROM location_cache
    WHERE code = ANY($1::text[]);
	`

	rows, err := s.DB.QueryContext(ctx, q, uniq)
	if err != nil {
		return nil, fmt.Errorf("get location cache: query location_cache table: %w", err)
	}
	defer rows.Close()

	out := make(map[string]domain.Location, len(uniq))
	for rows.Next() {
		loc, err := scanLocation(rows)
		if err != nil {
			return nil, fmt.Errorf("get location cache: scan rows: %w", err)
		}
		out[loc.Code] = loc
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get location cache: row iteration: %w", err)
	}

	return out, nil
}

// Store code -> location mappings in the cache.
func (s *SQLLocationCache) PutMany(ctx context.Context, locations map[string]domain.Location) error {
	if s.DB == nil {
		return errors.New("location cache: db is nil")
	}

	if len(locations) == 0 {
		return nil
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("insert location cache: db begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO location_cache (code, province, district, subdistrict, lat, lon)
    VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (code) DO UPDATE
	SET province = EXCLUDED.province,
		district = EXCLUDED.district,
		subdistrict = EXCLUDED.subdistrict,
		lat = EXCLUDED.lat,
		lon = EXCLUDED.lon;
	`)
	if err != nil {
		return fmt.Errorf("insert location cache: db prepare: %w", err)
	}
	defer stmt.Close()

	for code, loc := range locations {
		if strings.TrimSpace(code) == "" {
			return fmt.Errorf("insert location cache: empty code key")
		}

		lat, lon := nullCoords(loc.Coords)
		if _, err := stmt.ExecContext(ctx, code, loc.Province, loc.District, loc.Subdistrict, lat, lon); err != nil {
			return fmt.Errorf("insert location cache code=%q: %w", code, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("insert location cache commit: %w", err)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLocation(r rowScanner) (domain.Location, error) {
	var loc domain.Location
	var lat, lon sql.NullFloat64
	if err := r.Scan(&loc.Code, &loc.Province, &loc.District, &loc.Subdistrict, &lat, &lon); err != nil {
		return domain.Location{}, err
	}
	if lat.Valid && lon.Valid {
		loc.Coords = &domain.Coordinates{Lat: lat.Float64, Lon: lon.Float64}
	}
	return loc, nil
}

func nullCoords(c *domain.Coordinates) (lat, lon sql.NullFloat64) {
	if c == nil {
		return sql.NullFloat64{}, sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: c.Lat, Valid: true}, sql.NullFloat64{Float64: c.Lon, Valid: true}
}
