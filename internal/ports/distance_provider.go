package ports

import (
	"context"
	"trip-assignment-service/internal/domain"
)

// Travel distance between two points and whether it was measured or estimated.
type DistanceResult struct {
	Km         float64
	Provenance domain.Provenance
}

// Contract for retrieving travel distance between coordinates.
type DistanceProvider interface {
	// Return travel distance between two points.
	Distance(ctx context.Context, a, b domain.Coordinates) (DistanceResult, error)
}
