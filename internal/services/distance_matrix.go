package services

import (
	"context"
	"fmt"

	"trip-assignment-service/internal/domain"
	"trip-assignment-service/internal/ports"
)

// distanceMatrix holds the depot and every located destination of a run.
// Index 0 is the depot.
type distanceMatrix struct {
	index     map[string]int
	km        [][]float64
	estimated int
	pairs     int
}

// buildDistanceMatrix resolves all pairwise distances between the depot and
// the located destinations. Destinations without coordinates are left out;
// lookups involving them report ok=false.
func buildDistanceMatrix(
	ctx context.Context,
	provider ports.DistanceProvider,
	depot domain.Coordinates,
	dests []*domain.Destination,
) (*distanceMatrix, error) {
	points := []domain.Coordinates{depot}
	index := make(map[string]int, len(dests))
	for _, d := range dests {
		if !d.HasCoords() {
			continue
		}
		index[d.ID] = len(points)
		points = append(points, *d.Coords())
	}

	n := len(points)
	m := &distanceMatrix{index: index, km: make([][]float64, n)}
	for i := range m.km {
		m.km[i] = make([]float64, n)
	}
	if n == 1 {
		return m, nil
	}

	// Prefer one batched lookup when supported to reduce external API calls.
	if mp, ok := provider.(ports.DistanceMatrixProvider); ok {
		res, err := mp.BatchDistance(ctx, points, points)
		if err != nil {
			return nil, fmt.Errorf("distance matrix: batch distance: %w", err)
		}
		if len(res) != n {
			return nil, fmt.Errorf("distance matrix: expected %d rows, got %d", n, len(res))
		}
		for i := 0; i < n; i++ {
			if len(res[i]) != n {
				return nil, fmt.Errorf("distance matrix: row %d has %d cells, want %d", i, len(res[i]), n)
			}
			for j := i + 1; j < n; j++ {
				m.set(i, j, res[i][j])
			}
		}
		return m, nil
	}

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			r, err := provider.Distance(ctx, points[i], points[j])
			if err != nil {
				return nil, fmt.Errorf("distance matrix: distance %d -> %d: %w", i, j, err)
			}
			m.set(i, j, r)
		}
	}
	return m, nil
}

func (m *distanceMatrix) set(i, j int, r ports.DistanceResult) {
	m.km[i][j] = r.Km
	m.km[j][i] = r.Km
	m.pairs++
	if r.Provenance == domain.ProvenanceEstimated {
		m.estimated++
	}
}

// FromDepot returns the distance from the depot to d.
func (m *distanceMatrix) FromDepot(d *domain.Destination) (float64, bool) {
	i, ok := m.index[d.ID]
	if !ok {
		return 0, false
	}
	return m.km[0][i], true
}

// Between returns the distance between two destinations.
func (m *distanceMatrix) Between(a, b *domain.Destination) (float64, bool) {
	i, ok := m.index[a.ID]
	if !ok {
		return 0, false
	}
	j, ok := m.index[b.ID]
	if !ok {
		return 0, false
	}
	return m.km[i][j], true
}
