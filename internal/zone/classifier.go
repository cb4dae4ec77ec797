// Package zone maps destinations to logistics corridors and decides which
// destinations may share a trip.
package zone

import (
	"strings"

	"trip-assignment-service/internal/domain"
)

// Unknown is the zone of destinations without a province.
const Unknown = "UNKNOWN"

// Octant is a compass direction sector of 45 degrees.
type Octant int

const (
	North Octant = iota
	NorthEast
	East
	SouthEast
	South
	SouthWest
	West
	NorthWest
)

var octantNames = [...]string{"N", "NE", "E", "SE", "S", "SW", "W", "NW"}

func (o Octant) String() string {
	if o < 0 || int(o) >= len(octantNames) {
		return "?"
	}
	return octantNames[o]
}

type pair struct{ a, b string }

func newPair(a, b string) pair {
	if b < a {
		a, b = b, a
	}
	return pair{a, b}
}

// Classifier is read-only after construction and safe for concurrent use.
type Classifier struct {
	depot     domain.Coordinates
	settings  Settings
	provinces map[string]string
	districts map[string]map[string]string
	forbidden map[pair]struct{}
}

func NewClassifier(t Table, depot domain.Coordinates, s Settings) *Classifier {
	c := &Classifier{
		depot:     depot,
		settings:  s,
		provinces: make(map[string]string, len(t.Provinces)),
		districts: make(map[string]map[string]string, len(t.DistrictOverrides)),
		forbidden: make(map[pair]struct{}, len(t.ForbiddenPairs)),
	}

	for p, z := range t.Provinces {
		c.provinces[norm(p)] = z
	}
	for p, ds := range t.DistrictOverrides {
		m := make(map[string]string, len(ds))
		for d, z := range ds {
			m[norm(d)] = z
		}
		c.districts[norm(p)] = m
	}
	for _, fp := range t.ForbiddenPairs {
		c.forbidden[newPair(fp[0], fp[1])] = struct{}{}
	}

	return c
}

func norm(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

func (c *Classifier) Depot() domain.Coordinates { return c.depot }

func (c *Classifier) Settings() Settings { return c.settings }

// ZoneOf returns the zone of an administrative location. District overrides
// win over the province mapping; an unmapped province forms its own zone.
func (c *Classifier) ZoneOf(province, district string) string {
	p := norm(province)
	if p == "" {
		return Unknown
	}
	if ds, ok := c.districts[p]; ok {
		if z, ok := ds[norm(district)]; ok {
			return z
		}
	}
	if z, ok := c.provinces[p]; ok {
		return z
	}
	return "P:" + p
}

// NoCrossZone reports whether the two zones are forbidden from sharing a trip.
func (c *Classifier) NoCrossZone(z1, z2 string) bool {
	if z1 == z2 {
		return false
	}
	_, ok := c.forbidden[newPair(z1, z2)]
	return ok
}

// Bearing returns the compass bearing from the depot to p.
func (c *Classifier) Bearing(p domain.Coordinates) float64 {
	return domain.BearingDeg(c.depot, p)
}

// BearingZone returns the direction octant of p as seen from the depot.
func (c *Classifier) BearingZone(p domain.Coordinates) Octant {
	b := c.Bearing(p)
	return Octant(int((b+22.5)/45) % 8)
}

// BearingCompatible reports whether two points lie in compatible directions
// from the depot. Points without coordinates, or within the minimum radius
// of the depot, are always compatible.
func (c *Classifier) BearingCompatible(a, b *domain.Coordinates) bool {
	if a == nil || b == nil || c.settings.BearingThresholdDeg <= 0 {
		return true
	}
	if domain.HaversineKm(c.depot, *a) < c.settings.BearingMinRadiusKm ||
		domain.HaversineKm(c.depot, *b) < c.settings.BearingMinRadiusKm {
		return true
	}
	return domain.AngleDiff(c.Bearing(*a), c.Bearing(*b)) <= c.settings.BearingThresholdDeg
}

// Compatible reports whether two destinations may share a trip.
func (c *Classifier) Compatible(a, b *domain.Destination) bool {
	if c.NoCrossZone(a.Zone, b.Zone) {
		return false
	}
	return c.BearingCompatible(a.Coords(), b.Coords())
}
