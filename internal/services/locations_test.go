package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trip-assignment-service/internal/domain"
)

type memLocations struct {
	data   map[string]domain.Location
	puts   int
	getErr error
}

func (m *memLocations) GetMany(_ context.Context, codes []string) (map[string]domain.Location, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	out := make(map[string]domain.Location)
	for _, c := range codes {
		if l, ok := m.data[c]; ok {
			out[c] = l
		}
	}
	return out, nil
}

func (m *memLocations) PutMany(_ context.Context, locs map[string]domain.Location) error {
	m.puts++
	for k, v := range locs {
		m.data[k] = v
	}
	return nil
}

type fakeGeocoder struct {
	results map[string]domain.Coordinates
	queries []string
}

func (g *fakeGeocoder) Geocode(_ context.Context, q string) (domain.Coordinates, error) {
	g.queries = append(g.queries, q)
	c, ok := g.results[q]
	if !ok {
		return domain.Coordinates{}, errors.New("no match")
	}
	return c, nil
}

func unlocated(id, code, province, district, subdistrict string) *domain.Destination {
	return &domain.Destination{
		ID: id,
		Location: domain.Location{
			Code:        code,
			Province:    province,
			District:    district,
			Subdistrict: subdistrict,
		},
	}
}

func TestLocationResolverUsesStoreThenGeocoder(t *testing.T) {
	store := &memLocations{data: map[string]domain.Location{
		"L1": {Code: "L1", Province: "Bangkok", Coords: &domain.Coordinates{Lat: 13.8, Lon: 100.5}},
	}}
	geo := &fakeGeocoder{results: map[string]domain.Coordinates{
		"Bang Rak, Bang Rak, Bangkok": {Lat: 13.72, Lon: 100.52},
	}}
	lr := &LocationResolver{Store: store, Geocoder: geo}

	dests := []*domain.Destination{
		unlocated("D1", "L1", "", "", ""),
		unlocated("D2", "L2", "Bangkok", "Bang Rak", "Bang Rak"),
		unlocated("D3", "L3", "Bangkok", "Bang Rak", "Bang Rak"),
		unlocated("D4", "L4", "Nowhere", "", ""),
	}

	n, err := lr.Resolve(context.Background(), dests)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	require.NotNil(t, dests[0].Location.Coords)
	assert.Equal(t, "Bangkok", dests[0].Location.Province)
	require.NotNil(t, dests[1].Location.Coords)
	assert.Equal(t, 13.72, dests[1].Location.Coords.Lat)
	assert.Nil(t, dests[3].Location.Coords)

	// One query per distinct name.
	assert.Equal(t, []string{"Bang Rak, Bang Rak, Bangkok", "Nowhere"}, geo.queries)

	assert.Equal(t, 1, store.puts)
	assert.Contains(t, store.data, "L2")
	assert.Contains(t, store.data, "L3")
	assert.NotContains(t, store.data, "L4")
}

func TestLocationResolverStoreFailureFallsThrough(t *testing.T) {
	store := &memLocations{data: map[string]domain.Location{}, getErr: errors.New("db down")}
	geo := &fakeGeocoder{results: map[string]domain.Coordinates{"Bangkok": {Lat: 13.75, Lon: 100.5}}}
	lr := &LocationResolver{Store: store, Geocoder: geo}

	dests := []*domain.Destination{unlocated("D1", "L1", "Bangkok", "", "")}

	n, err := lr.Resolve(context.Background(), dests)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestLocationResolverSkipsLocatedDestinations(t *testing.T) {
	geo := &fakeGeocoder{}
	lr := &LocationResolver{Geocoder: geo}

	d := dest("D1", "Bangkok", 13.8, 100.5, 1, 1)
	n, err := lr.Resolve(context.Background(), []*domain.Destination{d})
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, geo.queries)
}
