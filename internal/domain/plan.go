package domain

import "time"

// IssueKind classifies something the planner reports alongside a plan.
type IssueKind string

const (
	IssueMissingLocation     IssueKind = "MISSING_LOCATION"
	IssueInfeasibleDemand    IssueKind = "INFEASIBLE_DEMAND"
	IssueDegradedDistance    IssueKind = "DEGRADED_DISTANCE"
	IssueOptimizerTimeout    IssueKind = "OPTIMIZER_TIMEOUT"
	IssueOptimizerInfeasible IssueKind = "OPTIMIZER_INFEASIBLE"
	IssueUnresolved          IssueKind = "UNRESOLVED"
	IssueInvariantViolation  IssueKind = "INVARIANT_VIOLATION"
)

type Issue struct {
	Kind          IssueKind
	DestinationID string
	TripID        int
	Detail        string
}

type Method string

const (
	MethodHeuristic Method = "heuristic"
	MethodExact     Method = "exact"
)

// OptimizerStatus is the outcome of the exact optimizer.
type OptimizerStatus string

const (
	StatusNotRun     OptimizerStatus = ""
	StatusOptimal    OptimizerStatus = "OPTIMAL"
	StatusFeasible   OptimizerStatus = "FEASIBLE"
	StatusTimeout    OptimizerStatus = "TIMEOUT"
	StatusInfeasible OptimizerStatus = "INFEASIBLE"
)

// TripSummary is the per-trip report exposed to downstream consumers.
type TripSummary struct {
	TripID            int
	Class             VehicleClass
	Drops             int
	TotalWeight       float64
	TotalVolume       float64
	WeightUtilization float64 // percent of the class's unbuffered limit
	VolumeUtilization float64
	Zones             []string
	DestinationIDs    []string
	Infeasible        bool
}

// Plan is a completed assignment of destinations to trips. It is
// immutable once returned by the planner.
type Plan struct {
	ID              string
	CreatedAt       time.Time
	Method          Method
	OptimizerStatus OptimizerStatus
	Trips           []*Trip
	Summaries       []TripSummary
	Issues          []Issue
	// Resolved is false when a refinement pass hit its retry ceiling.
	Resolved bool
}

// Assignment maps destination id to trip id.
func (p *Plan) Assignment() map[string]int {
	out := make(map[string]int)
	for _, t := range p.Trips {
		for _, d := range t.Stops {
			out[d.ID] = t.ID
		}
	}
	return out
}

func (p *Plan) IssuesOf(kind IssueKind) []Issue {
	var out []Issue
	for _, is := range p.Issues {
		if is.Kind == kind {
			out = append(out, is)
		}
	}
	return out
}

// Summarize builds the per-trip summary for a trip under the capacity model.
func Summarize(t *Trip, m CapacityModel) TripSummary {
	wu, vu := m.Utilization(t.Totals, t.Class)
	return TripSummary{
		TripID:            t.ID,
		Class:             t.Class,
		Drops:             t.Drops(),
		TotalWeight:       t.Totals.Weight,
		TotalVolume:       t.Totals.Volume,
		WeightUtilization: wu,
		VolumeUtilization: vu,
		Zones:             t.Zones(),
		DestinationIDs:    t.DestinationIDs(),
		Infeasible:        t.Infeasible,
	}
}
