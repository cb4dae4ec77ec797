package services

import (
	"context"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"trip-assignment-service/internal/domain"
	"trip-assignment-service/internal/ports"
	"trip-assignment-service/internal/zone"
)

var depot = domain.Coordinates{Lat: 13.7563, Lon: 100.5018}

// straightLine measures great-circle distance and reports it as measured.
type straightLine struct{}

func (straightLine) Distance(_ context.Context, a, b domain.Coordinates) (ports.DistanceResult, error) {
	return ports.DistanceResult{Km: domain.HaversineKm(a, b), Provenance: domain.ProvenanceMeasured}, nil
}

func testZones() *zone.Classifier {
	return zone.NewClassifier(zone.Table{
		Provinces: map[string]string{
			"Bangkok":       "CENTRAL",
			"Nonthaburi":    "CENTRAL",
			"Chon Buri":     "EAST",
			"Nakhon Pathom": "WEST",
			"Chiang Mai":    "NORTH",
		},
		ForbiddenPairs: [][2]string{{"EAST", "WEST"}},
	}, depot, zone.DefaultSettings())
}

func testPlanner() *Planner {
	return NewPlanner(straightLine{}, testZones(), nil, domain.DefaultCapacityModel())
}

func dest(id, province string, lat, lon, weight, volume float64) *domain.Destination {
	return &domain.Destination{
		ID:     id,
		Name:   "Shop " + id,
		Weight: weight,
		Volume: volume,
		Location: domain.Location{
			Code:     "LOC-" + id,
			Province: province,
			Coords:   &domain.Coordinates{Lat: lat, Lon: lon},
		},
	}
}

// randomDests scatters n destinations around the depot.
func randomDests(n int, seed int64) []*domain.Destination {
	rng := rand.New(rand.NewSource(seed))
	provinces := []string{"Bangkok", "Nonthaburi", "Chon Buri", "Nakhon Pathom", "Chiang Mai"}
	out := make([]*domain.Destination, 0, n)
	for i := 0; i < n; i++ {
		d := dest(
			fmt.Sprintf("D%02d", i),
			provinces[i%len(provinces)],
			depot.Lat+(rng.Float64()*3-1.5),
			depot.Lon+(rng.Float64()*3-1.5),
			50+rng.Float64()*1450,
			0.1+rng.Float64()*3.9,
		)
		switch i % 7 {
		case 0:
			d.Ceiling = domain.ClassSmall
		case 3:
			d.Ceiling = domain.ClassMedium
		}
		out = append(out, d)
	}
	return out
}

// newTestRun prepares dests the way Plan does and returns the run state.
func newTestRun(t *testing.T, p *Planner, dests []*domain.Destination, opts Options) *run {
	t.Helper()
	prepared := p.prepare(dests, p.Eligibility)
	dm, err := p.distances(context.Background(), prepared)
	require.NoError(t, err)
	return newRun(opts, p.Capacity, p.Zones, dm, prepared, p.log)
}

// requirePlanInvariants checks the properties every returned plan holds.
func requirePlanInvariants(t *testing.T, p *Planner, plan *domain.Plan, input []*domain.Destination) {
	t.Helper()

	require.Empty(t, plan.IssuesOf(domain.IssueInvariantViolation))

	seen := make(map[string]int)
	for i, trip := range plan.Trips {
		require.Equal(t, i+1, trip.ID)
		require.NotZero(t, trip.Drops())
		require.True(t, trip.Class.IsValid())
		require.LessOrEqual(t, trip.Class, trip.Ceiling(), "trip %d above its ceiling", trip.ID)

		for _, d := range trip.Stops {
			seen[d.ID]++
		}
		if trip.Infeasible {
			require.Equal(t, 1, trip.Drops())
			continue
		}
		if plan.Resolved {
			require.True(t, p.Capacity.Fits(trip.Totals, trip.Class, 1), "trip %d over capacity", trip.ID)
		}
		for i, a := range trip.Stops {
			for _, b := range trip.Stops[i+1:] {
				require.True(t, p.Zones.Compatible(a, b), "trip %d pairs %s and %s", trip.ID, a.ID, b.ID)
			}
		}
	}

	require.Len(t, seen, len(input))
	for _, d := range input {
		require.Equal(t, 1, seen[d.ID], "destination %s", d.ID)
	}
}

func tripOf(plan *domain.Plan, id string) *domain.Trip {
	for _, t := range plan.Trips {
		if t.Contains(id) {
			return t
		}
	}
	return nil
}

// fixedEligibility serves canned history and reference-table ceilings.
type fixedEligibility struct {
	hist  map[string][]domain.VehicleClass
	table map[string]domain.VehicleClass
	err   error
}

func (f fixedEligibility) HistoricalClasses(context.Context) (map[string][]domain.VehicleClass, error) {
	return f.hist, f.err
}

func (f fixedEligibility) EligibilityTable(context.Context) (map[string]domain.VehicleClass, error) {
	return f.table, f.err
}
