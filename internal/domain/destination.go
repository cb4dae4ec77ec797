package domain

// Location is the administrative location of a destination. Coords is nil
// when no coordinates could be resolved.
type Location struct {
	Code        string
	Province    string
	District    string
	Subdistrict string
	Coords      *Coordinates
}

// Represents one delivery destination and its demand for a dispatch.
//
// Zone and Ceiling are derived by the planner (zone classifier and
// eligibility resolver); a non-zero Ceiling supplied by the caller is treated
// as an explicit restriction.
type Destination struct {
	ID           string
	Name         string
	Weight       float64
	Volume       float64
	Location     Location
	BusinessType string
	Ceiling      VehicleClass
	Zone         string
}

func (d *Destination) Demand() Totals {
	return Totals{Weight: d.Weight, Volume: d.Volume, Drops: 1}
}

func (d *Destination) Coords() *Coordinates { return d.Location.Coords }

func (d *Destination) HasCoords() bool { return d.Location.Coords != nil }
