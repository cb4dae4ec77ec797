package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"trip-assignment-service/internal/domain"
	"trip-assignment-service/internal/platform/obs"
	"trip-assignment-service/internal/ports"
)

// SQLite-backed implementation of the DestinationRepository port.
type SqliteDestinationRepository struct{ DB *sql.DB }

var _ ports.DestinationRepository = (*SqliteDestinationRepository)(nil)

func NewSqliteDestinationRepository(db *sql.DB) *SqliteDestinationRepository {
	return &SqliteDestinationRepository{DB: db}
}

// Return all destinations with their administrative location, ordered by id.
// Destinations whose location code is unknown come back with only the code set.
func (s *SqliteDestinationRepository) LoadDestinations(ctx context.Context) (_ []*domain.Destination, err error) {
	defer obs.Time(ctx, "repo.LoadDestinations")(&err)

	if s.DB == nil {
		return nil, errors.New("sqlite destination repository: DB is nil")
	}

	query := `
	SELECT
		d.destination_id,
		d.name,
		d.weight,
		d.volume,
		d.location_code,
		d.business_type,
		COALESCE(d.ceiling, ''),
		COALESCE(l.province, ''),
		COALESCE(l.district, ''),
		COALESCE(l.subdistrict, ''),
		l.lat,
		l.lon
	FROM destinations d
	LEFT JOIN locations l ON l.code = d.location_code
	ORDER BY d.destination_id;
	`
	rows, err := s.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("load destinations: query destinations table: %w", err)
	}
	defer rows.Close()

	out := make([]*domain.Destination, 0, 64)
	for rows.Next() {
		var d domain.Destination
		var ceiling string
		var lat, lon sql.NullFloat64
		err := rows.Scan(
			&d.ID, &d.Name, &d.Weight, &d.Volume,
			&d.Location.Code, &d.BusinessType, &ceiling,
			&d.Location.Province, &d.Location.District, &d.Location.Subdistrict,
			&lat, &lon,
		)
		if err != nil {
			return nil, fmt.Errorf("load destinations: scan row: %w", err)
		}

		if d.Weight < 0 || d.Volume < 0 {
			return nil, fmt.Errorf("load destinations: destination %q has negative demand", d.ID)
		}
		if ceiling != "" {
			c, err := domain.ParseVehicleClass(ceiling)
			if err != nil {
				return nil, fmt.Errorf("load destinations: destination %q: %w", d.ID, err)
			}
			d.Ceiling = c
		}
		if lat.Valid && lon.Valid {
			d.Location.Coords = &domain.Coordinates{Lat: lat.Float64, Lon: lon.Float64}
		}

		out = append(out, &d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load destinations: row iteration: %w", err)
	}

	return out, nil
}
