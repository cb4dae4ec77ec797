package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"trip-assignment-service/internal/domain"
	"trip-assignment-service/internal/ports"
)

// SQLite-backed implementation of the EligibilitySource port.
type SqliteEligibilityRepository struct{ DB *sql.DB }

var _ ports.EligibilitySource = (*SqliteEligibilityRepository)(nil)

func NewSqliteEligibilityRepository(db *sql.DB) *SqliteEligibilityRepository {
	return &SqliteEligibilityRepository{DB: db}
}

// HistoricalClasses returns the distinct classes each destination was served by.
func (s *SqliteEligibilityRepository) HistoricalClasses(ctx context.Context) (map[string][]domain.VehicleClass, error) {
	if s.DB == nil {
		return nil, errors.New("sqlite eligibility repository: DB is nil")
	}

	rows, err := s.DB.QueryContext(ctx, `
	SELECT DISTINCT destination_id, vehicle_class
	FROM delivery_history
	ORDER BY destination_id, vehicle_class;
	`)
	if err != nil {
		return nil, fmt.Errorf("historical classes: query delivery_history table: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]domain.VehicleClass)
	for rows.Next() {
		var id, class string
		if err := rows.Scan(&id, &class); err != nil {
			return nil, fmt.Errorf("historical classes: scan row: %w", err)
		}
		c, err := domain.ParseVehicleClass(class)
		if err != nil {
			return nil, fmt.Errorf("historical classes: destination %q: %w", id, err)
		}
		out[id] = append(out[id], c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("historical classes: row iteration: %w", err)
	}

	return out, nil
}

// EligibilityTable returns the reference-plan ceiling per destination.
func (s *SqliteEligibilityRepository) EligibilityTable(ctx context.Context) (map[string]domain.VehicleClass, error) {
	if s.DB == nil {
		return nil, errors.New("sqlite eligibility repository: DB is nil")
	}

	rows, err := s.DB.QueryContext(ctx, `
	SELECT destination_id, vehicle_class
	FROM eligibility_reference;
	`)
	if err != nil {
		return nil, fmt.Errorf("eligibility table: query eligibility_reference table: %w", err)
	}
	defer rows.Close()

	out := make(map[string]domain.VehicleClass)
	for rows.Next() {
		var id, class string
		if err := rows.Scan(&id, &class); err != nil {
			return nil, fmt.Errorf("eligibility table: scan row: %w", err)
		}
		c, err := domain.ParseVehicleClass(class)
		if err != nil {
			return nil, fmt.Errorf("eligibility table: destination %q: %w", id, err)
		}
		out[id] = c
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("eligibility table: row iteration: %w", err)
	}

	return out, nil
}
