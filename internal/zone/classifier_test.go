package zone

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trip-assignment-service/internal/domain"
)

var depot = domain.Coordinates{Lat: 13.75, Lon: 100.50}

func testTable() Table {
	return Table{
		Provinces: map[string]string{
			"Chiang Mai":   "NORTH",
			"Lampang":      "NORTH",
			"Chonburi":     "EAST",
			"Nakhon Nayok": "NORTHEAST",
		},
		DistrictOverrides: map[string]map[string]string{
			"Chonburi": {"Sattahip": "EAST_COAST"},
		},
		ForbiddenPairs: [][2]string{{"NORTH", "EAST"}},
	}
}

func TestZoneOf(t *testing.T) {
	c := NewClassifier(testTable(), depot, DefaultSettings())

	assert.Equal(t, "NORTH", c.ZoneOf("Chiang Mai", "Mueang"))
	assert.Equal(t, "NORTH", c.ZoneOf("  chiang   mai ", ""))
	assert.Equal(t, "EAST", c.ZoneOf("Chonburi", "Bang Lamung"))
	assert.Equal(t, "EAST_COAST", c.ZoneOf("Chonburi", "Sattahip"))
	assert.Equal(t, "P:phuket", c.ZoneOf("Phuket", "Kathu"))
	assert.Equal(t, Unknown, c.ZoneOf("", "Kathu"))
}

func TestNoCrossZoneIsSymmetric(t *testing.T) {
	c := NewClassifier(testTable(), depot, DefaultSettings())

	assert.True(t, c.NoCrossZone("NORTH", "EAST"))
	assert.True(t, c.NoCrossZone("EAST", "NORTH"))
	assert.False(t, c.NoCrossZone("NORTH", "NORTH"))
	assert.False(t, c.NoCrossZone("NORTH", "EAST_COAST"))
}

func TestBearingZone(t *testing.T) {
	c := NewClassifier(Table{}, depot, DefaultSettings())

	assert.Equal(t, North, c.BearingZone(domain.Coordinates{Lat: 14.75, Lon: 100.50}))
	assert.Equal(t, East, c.BearingZone(domain.Coordinates{Lat: 13.75, Lon: 101.50}))
	assert.Equal(t, South, c.BearingZone(domain.Coordinates{Lat: 12.75, Lon: 100.50}))
	assert.Equal(t, "SW", c.BearingZone(domain.Coordinates{Lat: 13.0, Lon: 99.75}).String())
}

func TestBearingCompatible(t *testing.T) {
	c := NewClassifier(Table{}, depot, DefaultSettings())

	north := &domain.Coordinates{Lat: 14.5, Lon: 100.5}
	northEast := &domain.Coordinates{Lat: 14.5, Lon: 101.2}
	south := &domain.Coordinates{Lat: 13.0, Lon: 100.5}
	nearDepot := &domain.Coordinates{Lat: 13.76, Lon: 100.50}

	assert.True(t, c.BearingCompatible(north, northEast))
	assert.False(t, c.BearingCompatible(north, south), "opposite directions double back through the depot")
	assert.True(t, c.BearingCompatible(nearDepot, south), "stops next to the depot have no stable bearing")
	assert.True(t, c.BearingCompatible(nil, south))
}

func TestCompatibleCombinesZoneAndBearing(t *testing.T) {
	c := NewClassifier(testTable(), depot, DefaultSettings())

	a := &domain.Destination{ID: "a", Zone: "NORTH", Location: domain.Location{Coords: &domain.Coordinates{Lat: 14.5, Lon: 100.5}}}
	b := &domain.Destination{ID: "b", Zone: "EAST", Location: domain.Location{Coords: &domain.Coordinates{Lat: 14.5, Lon: 100.6}}}
	d := &domain.Destination{ID: "d", Zone: "NORTH"}

	assert.False(t, c.Compatible(a, b), "forbidden zones never share a trip, however close")
	assert.True(t, c.Compatible(a, d))
}

func TestLoadTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zones.yaml")
	doc := `
provinces:
  Chiang Mai: NORTH
  Chonburi: EAST
district_overrides:
  Chonburi:
    Sattahip: EAST_COAST
forbidden_pairs:
  - [NORTH, EAST]
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	table, err := LoadTable(path)
	require.NoError(t, err)
	assert.Equal(t, "NORTH", table.Provinces["Chiang Mai"])
	assert.Equal(t, "EAST_COAST", table.DistrictOverrides["Chonburi"]["Sattahip"])
	require.Len(t, table.ForbiddenPairs, 1)
	assert.Equal(t, [2]string{"NORTH", "EAST"}, table.ForbiddenPairs[0])

	_, err = LoadTable(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
