package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"trip-assignment-service/internal/domain"
	"trip-assignment-service/internal/ports"
)

// SQLite backed cache of administrative locations keyed by location code.
type SqliteLocationCache struct {
	DB *sql.DB
}

var _ ports.LocationStore = (*SqliteLocationCache)(nil)

func NewSqliteLocationCache(db *sql.DB) *SqliteLocationCache {
	return &SqliteLocationCache{DB: db}
}

// Fetch cached locations for the given codes.
func (s *SqliteLocationCache) GetMany(ctx context.Context, codes []string) (map[string]domain.Location, error) {
	if s.DB == nil {
		return nil, errors.New("location cache: db is nil")
	}

	uniq := uniqCodes(codes)
	out := make(map[string]domain.Location, len(uniq))

	for _, part := range chunks(uniq, sqliteChunk) {
		ph := make([]string, len(part))
		args := make([]any, len(part))
		for i, c := range part {
			ph[i] = "?"
			args[i] = c
		}

		q := fmt.Sprintf(`
		SELECT code, province, district, subdistrict, lat, lon
        FROM location_cache
        WHERE code IN (%s);
		`, strings.Join(ph, ","))

		rows, err := s.DB.QueryContext(ctx, q, args...)
		if err != nil {
			return nil, fmt.Errorf("get location cache: query location_cache table: %w", err)
		}

		for rows.Next() {
			loc, err := scanLocation(rows)
			if err != nil {
				rows.Close()
				return nil, fmt.Errorf("get location cache: scan rows: %w", err)
			}
			out[loc.Code] = loc
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, fmt.Errorf("get location cache: row iteration: %w", err)
		}
		rows.Close()
	}

	return out, nil
}

// Store code -> location mappings in the cache.
func (s *SqliteLocationCache) PutMany(ctx context.Context, locations map[string]domain.Location) error {
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
	INSERT OR REPLACE INTO location_cache (
        code,
        province,
        district,
        subdistrict,
        lat,
        lon
    )
    VALUES (?, ?, ?, ?, ?, ?)
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
