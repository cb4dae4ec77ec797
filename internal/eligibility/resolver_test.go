package eligibility

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trip-assignment-service/internal/domain"
)

type fakeSource struct {
	hist  map[string][]domain.VehicleClass
	table map[string]domain.VehicleClass
	err   error
}

func (f fakeSource) HistoricalClasses(context.Context) (map[string][]domain.VehicleClass, error) {
	return f.hist, f.err
}

func (f fakeSource) EligibilityTable(context.Context) (map[string]domain.VehicleClass, error) {
	return f.table, nil
}

func TestChainPrecedence(t *testing.T) {
	src := fakeSource{
		hist: map[string][]domain.VehicleClass{
			"single": {domain.ClassSmall, domain.ClassSmall},
			"multi":  {domain.ClassSmall, domain.ClassLarge, domain.ClassMedium},
			"both":   {domain.ClassMedium},
		},
		table: map[string]domain.VehicleClass{
			"both":     domain.ClassSmall,
			"ref-only": domain.ClassMedium,
		},
	}

	chain, err := FromSource(context.Background(), src)
	require.NoError(t, err)

	cases := []struct {
		dest *domain.Destination
		want domain.VehicleClass
	}{
		{&domain.Destination{ID: "single"}, domain.ClassSmall},
		{&domain.Destination{ID: "multi"}, domain.ClassLarge},
		{&domain.Destination{ID: "both"}, domain.ClassMedium},
		{&domain.Destination{ID: "ref-only"}, domain.ClassMedium},
		{&domain.Destination{ID: "unknown"}, domain.ClassLarge},
		{&domain.Destination{ID: "single", Ceiling: domain.ClassMedium}, domain.ClassMedium},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, MaxClass(chain, tc.dest, domain.ClassLarge), "destination %s", tc.dest.ID)
	}
}

func TestFromSourceError(t *testing.T) {
	_, err := FromSource(context.Background(), fakeSource{err: errors.New("db down")})
	assert.Error(t, err)
}

func TestMaxClassFallsBack(t *testing.T) {
	none := ResolverFunc(func(*domain.Destination) (domain.VehicleClass, bool) { return domain.ClassNone, false })
	d := &domain.Destination{ID: "x"}

	assert.Equal(t, domain.ClassMedium, MaxClass(none, d, domain.ClassMedium))
	assert.Equal(t, domain.ClassLarge, MaxClass(nil, d, domain.ClassLarge))
	assert.Equal(t, domain.ClassSmall, MaxClass(Explicit, &domain.Destination{Ceiling: domain.ClassSmall}, domain.ClassLarge))
}

func TestCanAdmit(t *testing.T) {
	small := &domain.Destination{ID: "s", Ceiling: domain.ClassSmall}
	large := &domain.Destination{ID: "l", Ceiling: domain.ClassLarge}

	trip := domain.NewTrip(1, domain.ClassMedium)
	trip.Load(large)
	assert.False(t, CanAdmit(trip, small), "a small-only destination would push a medium trip below its class")
	assert.True(t, CanAdmit(trip, large))

	trip.Class = domain.ClassSmall
	assert.True(t, CanAdmit(trip, small))
}
