package domain

import (
	"errors"
	"fmt"
)

// capacityEps absorbs float noise when totals are compared against limits.
const capacityEps = 1e-9

// Totals is the aggregate demand of a set of destinations.
type Totals struct {
	Weight float64
	Volume float64
	Drops  int
}

func (t Totals) Plus(o Totals) Totals {
	return Totals{Weight: t.Weight + o.Weight, Volume: t.Volume + o.Volume, Drops: t.Drops + o.Drops}
}

func (t Totals) Minus(o Totals) Totals {
	return Totals{Weight: t.Weight - o.Weight, Volume: t.Volume - o.Volume, Drops: t.Drops - o.Drops}
}

// Limits are the capacity limits of one vehicle class.
type Limits struct {
	MaxWeight float64 `yaml:"max_weight" json:"max_weight"`
	MaxVolume float64 `yaml:"max_volume" json:"max_volume"`
	MaxDrops  int     `yaml:"max_drops" json:"max_drops"`
}

// CapacityTable is the YAML shape of a CapacityModel.
type CapacityTable struct {
	Small  Limits `yaml:"small" json:"small"`
	Medium Limits `yaml:"medium" json:"medium"`
	Large  Limits `yaml:"large" json:"large"`
}

// CapacityModel holds per-class limits. A buffer multiplier scales weight
// and volume limits; drop limits are never buffered.
type CapacityModel struct {
	limits map[VehicleClass]Limits
}

func DefaultCapacityTable() CapacityTable {
	return CapacityTable{
		Small:  Limits{MaxWeight: 2500, MaxVolume: 5, MaxDrops: 12},
		Medium: Limits{MaxWeight: 3500, MaxVolume: 8, MaxDrops: 12},
		Large:  Limits{MaxWeight: 5800, MaxVolume: 20, MaxDrops: 12},
	}
}

func DefaultCapacityModel() CapacityModel {
	m, _ := NewCapacityModel(DefaultCapacityTable())
	return m
}

// NewCapacityModel validates the table: every limit must be positive and
// limits must not shrink as the class grows.
func NewCapacityModel(t CapacityTable) (CapacityModel, error) {
	limits := map[VehicleClass]Limits{
		ClassSmall:  t.Small,
		ClassMedium: t.Medium,
		ClassLarge:  t.Large,
	}

	var prev Limits
	for i, c := range AllClasses() {
		l := limits[c]
		if l.MaxWeight <= 0 || l.MaxVolume <= 0 || l.MaxDrops <= 0 {
			return CapacityModel{}, fmt.Errorf("capacity model: class %s: limits must be positive", c)
		}
		if i > 0 && (l.MaxWeight < prev.MaxWeight || l.MaxVolume < prev.MaxVolume) {
			return CapacityModel{}, fmt.Errorf("capacity model: class %s is smaller than the class below it", c)
		}
		prev = l
	}

	return CapacityModel{limits: limits}, nil
}

func (m CapacityModel) Limit(c VehicleClass) Limits {
	return m.limits[c]
}

func (m CapacityModel) Largest() VehicleClass { return ClassLarge }

func (m CapacityModel) Smallest() VehicleClass { return ClassSmall }

// Fits reports whether totals fit class c under the given buffer.
func (m CapacityModel) Fits(t Totals, c VehicleClass, buffer float64) bool {
	l, ok := m.limits[c]
	if !ok {
		return false
	}
	if buffer <= 0 {
		buffer = 1
	}
	return t.Weight <= l.MaxWeight*buffer+capacityEps &&
		t.Volume <= l.MaxVolume*buffer+capacityEps &&
		t.Drops <= l.MaxDrops
}

// Utilization returns weight and volume as a percentage of class c's
// unbuffered limits.
func (m CapacityModel) Utilization(t Totals, c VehicleClass) (weightPct, volumePct float64) {
	l, ok := m.limits[c]
	if !ok {
		return 0, 0
	}
	return 100 * t.Weight / l.MaxWeight, 100 * t.Volume / l.MaxVolume
}

// Fill is the larger of the weight and volume utilization ratios (1.0 == full).
func (m CapacityModel) Fill(t Totals, c VehicleClass) float64 {
	w, v := m.Utilization(t, c)
	if w > v {
		return w / 100
	}
	return v / 100
}

// Next returns the class directly above c.
func (m CapacityModel) Next(c VehicleClass) (VehicleClass, bool) {
	if c >= ClassLarge || c < ClassNone {
		return ClassNone, false
	}
	return c + 1, true
}

var ErrNoFittingClass = errors.New("no vehicle class fits the demand")

// SmallestFitting returns the smallest class not above ceiling that fits t.
func (m CapacityModel) SmallestFitting(t Totals, buffer float64, ceiling VehicleClass) (VehicleClass, error) {
	for _, c := range AllClasses() {
		if c > ceiling {
			break
		}
		if m.Fits(t, c, buffer) {
			return c, nil
		}
	}
	return ClassNone, ErrNoFittingClass
}
