package zone

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Table is the static corridor data behind the classifier.
type Table struct {
	// Provinces maps a province to its logistics zone.
	Provinces map[string]string `yaml:"provinces"`
	// DistrictOverrides maps province -> district -> zone for districts that
	// belong to a different corridor than their province.
	DistrictOverrides map[string]map[string]string `yaml:"district_overrides"`
	// ForbiddenPairs lists zone pairs that may never share a trip.
	ForbiddenPairs [][2]string `yaml:"forbidden_pairs"`
}

// Settings tune the bearing check.
type Settings struct {
	// BearingThresholdDeg is the largest bearing difference (seen from the
	// depot) two stops of one trip may have.
	BearingThresholdDeg float64 `yaml:"bearing_threshold_deg"`
	// BearingMinRadiusKm exempts stops this close to the depot, where
	// bearings are unstable.
	BearingMinRadiusKm float64 `yaml:"bearing_min_radius_km"`
}

func DefaultSettings() Settings {
	return Settings{BearingThresholdDeg: 135, BearingMinRadiusKm: 5}
}

// LoadTable reads a zone table from a YAML file.
func LoadTable(path string) (Table, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Table{}, fmt.Errorf("load zone table: read %q: %w", path, err)
	}

	var t Table
	if err := yaml.Unmarshal(b, &t); err != nil {
		return Table{}, fmt.Errorf("load zone table: parse %q: %w", path, err)
	}
	return t, nil
}
