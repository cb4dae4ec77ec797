package ports

import (
	"context"
	"trip-assignment-service/internal/domain"
)

type DistanceCacheEntry struct {
	Km         float64
	Provenance domain.Provenance
}

// Persistent, append-only store of distance results keyed by coordinate pair.
type DistanceCache interface {
	GetMany(ctx context.Context, keys []domain.PairKey) (map[domain.PairKey]DistanceCacheEntry, error)
	PutMany(ctx context.Context, entries map[domain.PairKey]DistanceCacheEntry) error
}
