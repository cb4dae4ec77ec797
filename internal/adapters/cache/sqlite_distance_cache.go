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

// SQLite backed cache of coordinate-pair distances. Keys are canonical
// pair keys, so either ordering of a pair hits the same row.
type SqliteDistanceCache struct {
	DB *sql.DB
}

var _ ports.DistanceCache = (*SqliteDistanceCache)(nil)

func NewSqliteDistanceCache(db *sql.DB) *SqliteDistanceCache {
	return &SqliteDistanceCache{DB: db}
}

// Fetch cached distances for the given pair keys.
func (s *SqliteDistanceCache) GetMany(
	ctx context.Context,
	keys []domain.PairKey,
) (_ map[domain.PairKey]ports.DistanceCacheEntry, err error) {
	defer obs.Time(ctx, "distance.sqlite.GetMany")(&err)

	if s.DB == nil {
		return nil, errors.New("distance cache: db is nil")
	}

	uniq := uniqPairs(keys)
	out := make(map[domain.PairKey]ports.DistanceCacheEntry, len(uniq))

	for _, part := range chunks(uniq, sqliteChunk) {
		ph := make([]string, 0, len(part))
		args := make([]any, 0, 2*len(part))
		for _, k := range part {
			ph = append(ph, "(?, ?)")
			args = append(args, k.From, k.To)
		}

		// Only the placeholder structure is interpolated; all values remain parameterized.
		q := fmt.Sprintf(`
		SELECT from_key, to_key, km, provenance
        FROM distance_cache
        WHERE (from_key, to_key) IN (VALUES %s);
		`, strings.Join(ph, ","))

		if err := s.scanInto(ctx, out, q, args); err != nil {
			return nil, err
		}
	}

	return out, nil
}

func (s *SqliteDistanceCache) scanInto(
	ctx context.Context,
	out map[domain.PairKey]ports.DistanceCacheEntry,
	q string,
	args []any,
) error {
	rows, err := s.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("get distance cache: query distance_cache table: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var k domain.PairKey
		var km float64
		var prov string
		if err := rows.Scan(&k.From, &k.To, &km, &prov); err != nil {
			return fmt.Errorf("get distance cache: scan rows: %w", err)
		}
		out[k] = ports.DistanceCacheEntry{Km: km, Provenance: domain.Provenance(prov)}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("get distance cache: row iteration: %w", err)
	}
	return nil
}

// Store many distance entries in one transaction.
func (s *SqliteDistanceCache) PutMany(
	ctx context.Context,
	entries map[domain.PairKey]ports.DistanceCacheEntry,
) (err error) {
	defer obs.Time(ctx, "distance.sqlite.PutMany")(&err)

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
	INSERT OR REPLACE INTO distance_cache (
        from_key,
        to_key,
        km,
        provenance
    )
    VALUES (?, ?, ?, ?)
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
