package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// DestinationRequest is an inline destination for planning without the
// repository. Lat and Lon are optional but must be given together.
type DestinationRequest struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Weight       float64  `json:"weight"`
	Volume       float64  `json:"volume"`
	LocationCode string   `json:"location_code"`
	Province     string   `json:"province"`
	District     string   `json:"district"`
	Subdistrict  string   `json:"subdistrict"`
	Lat          *float64 `json:"lat"`
	Lon          *float64 `json:"lon"`
	BusinessType string   `json:"business_type"`
	Ceiling      string   `json:"ceiling"`
}

// PlanRequest selects the method and overrides planner defaults. When
// Destinations is empty the repository is planned.
type PlanRequest struct {
	Method       string               `json:"method"`
	Destinations []DestinationRequest `json:"destinations"`

	Buffers                   map[string]float64 `json:"buffers"`
	MinStopDistanceKm         *float64           `json:"min_stop_distance_km"`
	MaxStopDistanceKm         *float64           `json:"max_stop_distance_km"`
	MinDropsBeforeMerge       *int               `json:"min_drops_before_merge"`
	MinUtilization            *float64           `json:"min_utilization"`
	OptimizerTimeLimitSeconds *float64           `json:"optimizer_time_limit_seconds"`
}

type TripResponse struct {
	TripID               int      `json:"trip_id"`
	VehicleClass         string   `json:"vehicle_class"`
	Drops                int      `json:"drops"`
	TotalWeight          float64  `json:"total_weight"`
	TotalVolume          float64  `json:"total_volume"`
	WeightUtilizationPct float64  `json:"weight_utilization_pct"`
	VolumeUtilizationPct float64  `json:"volume_utilization_pct"`
	Zones                []string `json:"zones"`
	DestinationIDs       []string `json:"destination_ids"`
	Infeasible           bool     `json:"infeasible"`
}

type IssueResponse struct {
	Kind          string `json:"kind"`
	DestinationID string `json:"destination_id,omitempty"`
	TripID        int    `json:"trip_id,omitempty"`
	Detail        string `json:"detail"`
}

type PlanResponse struct {
	PlanID          string          `json:"plan_id"`
	CreatedAt       time.Time       `json:"created_at"`
	Method          string          `json:"method"`
	OptimizerStatus string          `json:"optimizer_status,omitempty"`
	Resolved        bool            `json:"resolved"`
	Trips           []TripResponse  `json:"trips"`
	Issues          []IssueResponse `json:"issues"`
	Assignment      map[string]int  `json:"assignment"`
}

// Round rounds half away from zero to the given number of decimal places.
func Round(v float64, places int32) float64 {
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}
