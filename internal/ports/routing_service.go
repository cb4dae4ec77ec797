package ports

import (
	"context"
	"trip-assignment-service/internal/domain"
)

// RoutingService is the external road-distance service.
type RoutingService interface {
	// Matrix returns road distances in km. A nil cell means the pair is unroutable.
	Matrix(ctx context.Context, origins, destinations []domain.Coordinates) ([][]*float64, error)
}

// Geocoder resolves a free-text place to coordinates.
type Geocoder interface {
	Geocode(ctx context.Context, query string) (domain.Coordinates, error)
}
