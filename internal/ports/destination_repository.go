package ports

import (
	"context"
	"trip-assignment-service/internal/domain"
)

// Port: a boundary for retrieving normalized destinations from a data source.
type DestinationRepository interface {
	// Retrieve all destinations to plan for this run.
	LoadDestinations(ctx context.Context) ([]*domain.Destination, error)
}

// Reference store of administrative locations keyed by location code.
type LocationStore interface {
	GetMany(ctx context.Context, codes []string) (map[string]domain.Location, error)
	PutMany(ctx context.Context, locations map[string]domain.Location) error
}

// Read-only source of vehicle eligibility data.
type EligibilitySource interface {
	// Classes ever used historically, per destination id.
	HistoricalClasses(ctx context.Context) (map[string][]domain.VehicleClass, error)
	// Reference-plan ceiling per destination id.
	EligibilityTable(ctx context.Context) (map[string]domain.VehicleClass, error)
}
