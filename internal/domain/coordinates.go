package domain

import (
	"fmt"
	"math"
)

const earthRadiusKm = 6371.0

// KeyPrecision is the number of decimals coordinates are rounded to for cache keys.
const KeyPrecision = 4

// Immutable geographic coordinates (longitude, latitude).
type Coordinates struct {
	Lon float64 `json:"lon" yaml:"lon"`
	Lat float64 `json:"lat" yaml:"lat"`
}

// Return coordinates as [lon, lat] for external API compatibility.
func (c Coordinates) CoordsToList() []float64 { return []float64{c.Lon, c.Lat} }

func (c Coordinates) IsZero() bool { return c.Lat == 0 && c.Lon == 0 }

// Key renders the coordinates rounded to KeyPrecision decimals as "lat,lon".
func (c Coordinates) Key() string {
	return fmt.Sprintf("%.*f,%.*f", KeyPrecision, c.Lat, KeyPrecision, c.Lon)
}

// HaversineKm returns the great-circle distance between a and b.
func HaversineKm(a, b Coordinates) float64 {
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// BearingDeg returns the initial compass bearing from a to b in [0, 360).
func BearingDeg(a, b Coordinates) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	y := math.Sin(dLon) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLon)
	deg := math.Atan2(y, x) * 180 / math.Pi
	return math.Mod(deg+360, 360)
}

// AngleDiff returns the smallest absolute difference between two bearings, in [0, 180].
func AngleDiff(a, b float64) float64 {
	d := math.Mod(math.Abs(a-b), 360)
	if d > 180 {
		d = 360 - d
	}
	return d
}

// PairKey identifies an unordered coordinate pair in the distance cache.
// From <= To always holds, so both orderings of a pair share one key.
type PairKey struct {
	From string
	To   string
}

func NewPairKey(a, b Coordinates) PairKey {
	ka, kb := a.Key(), b.Key()
	if kb < ka {
		ka, kb = kb, ka
	}
	return PairKey{From: ka, To: kb}
}

func (k PairKey) String() string { return k.From + "|" + k.To }

// Provenance records whether a distance was measured by the routing service
// or estimated from the great-circle distance.
type Provenance string

const (
	ProvenanceMeasured  Provenance = "measured"
	ProvenanceEstimated Provenance = "estimated"
)
