package domain

import (
	"slices"
)

// Trip is one vehicle's set of destinations for a dispatch.
type Trip struct {
	ID     int
	Class  VehicleClass
	Stops  []*Destination
	Totals Totals
	// Infeasible marks a single-destination trip whose demand exceeds every
	// class it may use. It is kept in the plan and reported, never truncated.
	Infeasible bool
}

func NewTrip(id int, class VehicleClass) *Trip {
	return &Trip{ID: id, Class: class}
}

// Load a single destination onto the trip.
func (t *Trip) Load(d *Destination) {
	t.Stops = append(t.Stops, d)
	t.Totals = t.Totals.Plus(d.Demand())
}

// Load multiple destinations onto the trip.
func (t *Trip) LoadMultiple(ds []*Destination) {
	for _, d := range ds {
		t.Load(d)
	}
}

// Absorb moves every stop of o onto t.
func (t *Trip) Absorb(o *Trip) {
	t.LoadMultiple(o.Stops)
	o.Clear()
}

// Unload removes the destination with the given id.
func (t *Trip) Unload(id string) bool {
	for i, d := range t.Stops {
		if d.ID == id {
			t.Stops = slices.Delete(t.Stops, i, i+1)
			t.Totals = t.Totals.Minus(d.Demand())
			return true
		}
	}
	return false
}

// Unload all destinations from the trip.
func (t *Trip) Clear() {
	t.Stops = nil
	t.Totals = Totals{}
}

func (t *Trip) Drops() int { return len(t.Stops) }

// Ceiling is the most restrictive eligibility ceiling among the stops.
func (t *Trip) Ceiling() VehicleClass {
	if len(t.Stops) == 0 {
		return ClassLarge
	}
	c := ClassLarge
	for _, d := range t.Stops {
		if d.Ceiling != ClassNone && d.Ceiling < c {
			c = d.Ceiling
		}
	}
	return c
}

// Zones returns the sorted, de-duplicated zones of the stops.
func (t *Trip) Zones() []string {
	seen := make(map[string]struct{}, len(t.Stops))
	out := make([]string, 0, len(t.Stops))
	for _, d := range t.Stops {
		if _, ok := seen[d.Zone]; ok {
			continue
		}
		seen[d.Zone] = struct{}{}
		out = append(out, d.Zone)
	}
	slices.Sort(out)
	return out
}

func (t *Trip) DestinationIDs() []string {
	ids := make([]string, 0, len(t.Stops))
	for _, d := range t.Stops {
		ids = append(ids, d.ID)
	}
	return ids
}

func (t *Trip) Contains(id string) bool {
	for _, d := range t.Stops {
		if d.ID == id {
			return true
		}
	}
	return false
}
