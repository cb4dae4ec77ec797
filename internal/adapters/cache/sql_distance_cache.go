package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"trip-assignment-service/internal/domain"
	"trip-assignment-service/internal/platform/obs"
	"trip-assignment-service/internal/ports"
)

// SQLDistanceCache is a Postgres-backed cache of coordinate-pair distances,
// shared between planner processes.
type SQLDistanceCache struct {
	DB *sql.DB
}

var _ ports.DistanceCache = (*SQLDistanceCache)(nil)

func NewSQLDistanceCache(db *sql.DB) *SQLDistanceCache {
	return &SQLDistanceCache{DB: db}
}

// Fetch cached distances for the given canonical pair keys.
func (s *SQLDistanceCache) GetMany(
	ctx context.Context,
	keys []domain.PairKey,
) (_ map[domain.PairKey]ports.DistanceCacheEntry, err error) {
	defer obs.Time(ctx, "distance.cache.GetMany")(&err)

	if s.DB == nil {
		return nil, errors.New("distance cache: db is nil")
	}

	uniq := uniqPairs(keys)
	if len(uniq) == 0 {
		return map[domain.PairKey]ports.DistanceCacheEntry{}, nil
	}

	froms := make([]string, len(uniq))
	tos := make([]string, len(uniq))
	for i, k := range uniq {
		froms[i], tos[i] = k.From, k.To
	}

	q := `
	SELECT c.from_key, c.to_key, c.km, c.provenance
    FROM distance_cache c
    JOIN unnest($1::text[], $2::text[]) AS k(from_key, to_key)
        ON c.from_key = k.from_key AND c.to_key = k.to_key;
	`

	rows, err := s.DB.QueryContext(ctx, q, froms, tos)
	if err != nil {
		return nil, fmt.Errorf("get distance cache: query distance_cache table: %w", err)
	}
	defer rows.Close()

	out := make(map[domain.PairKey]ports.DistanceCacheEntry, len(uniq))
	for rows.Next() {
		var k domain.PairKey
		var e ports.DistanceCacheEntry
		if err := rows.Scan(&k.From, &k.To, &e.Km, &e.Provenance); err != nil {
			return nil, fmt.Errorf("get distance cache: scan rows: %w", err)
		}
		out[k] = e
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get distance cache: row iteration: %w", err)
	}

	return out, nil
}

// Store many distance entries. Existing rows are overwritten.
func (s *SQLDistanceCache) PutMany(
	ctx context.Context,
	entries map[domain.PairKey]ports.DistanceCacheEntry,
) (err error) {
	defer obs.Time(ctx, "distance.cache.PutMany")(&err)

	if s.DB == nil {
		return errors.New("distance cache: db is nil")
	}

	if len(entries) == 0 {
		return nil
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("insert distance cache: db begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO distance_cache (from_key, to_key, km, provenance)
    VALUES ($1, $2, $3, $4)
	ON CONFLICT (from_key, to_key) DO UPDATE
	SET km = EXCLUDED.km,
		provenance = EXCLUDED.provenance;
	`)
	if err != nil {
		return fmt.Errorf("insert distance cache: db prepare: %w", err)
	}
	defer stmt.Close()

	for k, e := range entries {
		if k.From == "" || k.To == "" {
			return fmt.Errorf("insert distance cache: empty pair key")
		}
		if !validProvenance(e.Provenance) {
			return fmt.Errorf("insert distance cache key=%q: invalid provenance %q", k, e.Provenance)
		}

		if _, err := stmt.ExecContext(ctx, k.From, k.To, e.Km, string(e.Provenance)); err != nil {
			return fmt.Errorf("insert distance cache key=%q: %w", k, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("insert distance cache commit: %w", err)
	}

	return nil
}
