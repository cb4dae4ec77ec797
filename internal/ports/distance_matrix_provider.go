package ports

import (
	"context"
	"trip-assignment-service/internal/domain"
)

// Optional extension of DistanceProvider that supports batched lookups.
type DistanceMatrixProvider interface {
	DistanceProvider
	// Return a len(origins) x len(destinations) matrix of distances.
	BatchDistance(ctx context.Context, origins, destinations []domain.Coordinates) ([][]DistanceResult, error)
}
