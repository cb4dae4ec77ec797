package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"trip-assignment-service/internal/domain"
)

// Options tune a planning run. Zero values are not defaults: start from
// DefaultOptions and override.
type Options struct {
	Method domain.Method `yaml:"method" json:"method"`

	// DefaultBuffer applies to business types without an entry in Buffers.
	DefaultBuffer float64            `yaml:"default_buffer" json:"default_buffer"`
	Buffers       map[string]float64 `yaml:"buffers" json:"buffers"`

	// MinStopDistanceKm is the nearest-neighbour tie band: candidates whose
	// distance to the last stop is within this of the closest one are tied
	// and resolved farthest-from-depot first.
	MinStopDistanceKm float64 `yaml:"min_stop_distance_km" json:"min_stop_distance_km"`
	// MaxStopDistanceKm is the largest distance from the last admitted stop.
	MaxStopDistanceKm float64 `yaml:"max_stop_distance_km" json:"max_stop_distance_km"`
	// MinDropsBeforeMerge: trips with fewer drops are merge candidates.
	MinDropsBeforeMerge int `yaml:"min_drops_before_merge" json:"min_drops_before_merge"`

	OptimizerTimeLimit time.Duration `yaml:"optimizer_time_limit" json:"optimizer_time_limit"`

	// Seed class distance bands.
	FarDistanceKm  float64 `yaml:"far_distance_km" json:"far_distance_km"`
	MidDistanceKm  float64 `yaml:"mid_distance_km" json:"mid_distance_km"`
	NearbyRadiusKm float64 `yaml:"nearby_radius_km" json:"nearby_radius_km"`

	// DownsizeVolumeRatio: large trips below this share of the large volume
	// limit are re-packed into medium trips.
	DownsizeVolumeRatio float64 `yaml:"downsize_volume_ratio" json:"downsize_volume_ratio"`
	MaxOversizeRounds   int     `yaml:"max_oversize_rounds" json:"max_oversize_rounds"`
	MaxMergeRounds      int     `yaml:"max_merge_rounds" json:"max_merge_rounds"`
	// UpgradeUtilization: single-stop trips filling more than this share of
	// their class are promoted.
	UpgradeUtilization float64 `yaml:"upgrade_utilization" json:"upgrade_utilization"`
	MaxMergeDistanceKm float64 `yaml:"max_merge_distance_km" json:"max_merge_distance_km"`

	// Exact optimizer model.
	MinUtilization    float64 `yaml:"min_utilization" json:"min_utilization"`
	TripPenalty       float64 `yaml:"trip_penalty" json:"trip_penalty"`
	UtilizationReward float64 `yaml:"utilization_reward" json:"utilization_reward"`
	MaxOptimizerNodes int     `yaml:"max_optimizer_nodes" json:"max_optimizer_nodes"`
}

func DefaultOptions() Options {
	return Options{
		Method:              domain.MethodHeuristic,
		DefaultBuffer:       1.0,
		Buffers:             map[string]float64{},
		MinStopDistanceKm:   2,
		MaxStopDistanceKm:   80,
		MinDropsBeforeMerge: 3,
		OptimizerTimeLimit:  30 * time.Second,
		FarDistanceKm:       200,
		MidDistanceKm:       80,
		NearbyRadiusKm:      30,
		DownsizeVolumeRatio: 0.5,
		MaxOversizeRounds:   10,
		MaxMergeRounds:      10,
		UpgradeUtilization:  0.9,
		MaxMergeDistanceKm:  120,
		MinUtilization:      0.7,
		TripPenalty:         1000,
		UtilizationReward:   10,
		MaxOptimizerNodes:   2_000_000,
	}
}

// BufferFor returns the capacity multiplier of a business type.
func (o Options) BufferFor(businessType string) float64 {
	if b, ok := o.Buffers[strings.ToLower(strings.TrimSpace(businessType))]; ok {
		return b
	}
	if b, ok := o.Buffers[businessType]; ok {
		return b
	}
	return o.DefaultBuffer
}

func (o Options) Validate() error {
	var errs []error

	switch o.Method {
	case domain.MethodHeuristic, domain.MethodExact:
	default:
		errs = append(errs, fmt.Errorf("method must be %q or %q, got %q", domain.MethodHeuristic, domain.MethodExact, o.Method))
	}
	if o.DefaultBuffer <= 0 {
		errs = append(errs, errors.New("default_buffer must be > 0"))
	}
	for bt, b := range o.Buffers {
		if b <= 0 {
			errs = append(errs, fmt.Errorf("buffer for %q must be > 0", bt))
		}
	}
	if o.MinStopDistanceKm < 0 {
		errs = append(errs, errors.New("min_stop_distance_km must be >= 0"))
	}
	if o.MaxStopDistanceKm <= 0 {
		errs = append(errs, errors.New("max_stop_distance_km must be > 0"))
	}
	if o.MinStopDistanceKm > o.MaxStopDistanceKm {
		errs = append(errs, errors.New("min_stop_distance_km must not exceed max_stop_distance_km"))
	}
	if o.MinDropsBeforeMerge < 0 {
		errs = append(errs, errors.New("min_drops_before_merge must be >= 0"))
	}
	if o.Method == domain.MethodExact && o.OptimizerTimeLimit <= 0 {
		errs = append(errs, errors.New("optimizer_time_limit must be > 0"))
	}
	if o.MidDistanceKm < 0 || o.FarDistanceKm < o.MidDistanceKm {
		errs = append(errs, errors.New("distance bands must satisfy 0 <= mid_distance_km <= far_distance_km"))
	}
	if o.NearbyRadiusKm < 0 {
		errs = append(errs, errors.New("nearby_radius_km must be >= 0"))
	}
	if o.DownsizeVolumeRatio < 0 || o.DownsizeVolumeRatio > 1 {
		errs = append(errs, errors.New("downsize_volume_ratio must be within [0, 1]"))
	}
	if o.MaxOversizeRounds <= 0 || o.MaxMergeRounds <= 0 {
		errs = append(errs, errors.New("refinement round ceilings must be > 0"))
	}
	if o.UpgradeUtilization <= 0 {
		errs = append(errs, errors.New("upgrade_utilization must be > 0"))
	}
	if o.MaxMergeDistanceKm <= 0 {
		errs = append(errs, errors.New("max_merge_distance_km must be > 0"))
	}
	if o.MinUtilization < 0 || o.MinUtilization > 1 {
		errs = append(errs, errors.New("min_utilization must be within [0, 1]"))
	}
	if o.TripPenalty <= 0 || o.UtilizationReward < 0 {
		errs = append(errs, errors.New("trip_penalty must be > 0 and utilization_reward >= 0"))
	}
	if o.MaxOptimizerNodes <= 0 {
		errs = append(errs, errors.New("max_optimizer_nodes must be > 0"))
	}

	return errors.Join(errs...)
}
