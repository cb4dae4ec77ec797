package services

import (
	"fmt"

	"trip-assignment-service/internal/domain"
)

// validate checks the plan invariants after the pipeline. Violations are
// pipeline defects: they are logged and reported, never repaired here.
func (r *run) validate(trips []*domain.Trip) {
	seen := make(map[string]int, len(r.dests))

	for _, t := range trips {
		for _, d := range t.Stops {
			if prev, dup := seen[d.ID]; dup {
				r.violation(t.ID, d.ID, fmt.Sprintf("destination also assigned to trip %d", prev))
			}
			seen[d.ID] = t.ID
		}

		if t.Drops() == 0 {
			r.violation(t.ID, "", "trip has no stops")
			continue
		}
		if !t.Class.IsValid() {
			r.violation(t.ID, "", "trip has no vehicle class")
			continue
		}
		if t.Class > t.Ceiling() {
			r.violation(t.ID, "", fmt.Sprintf("class %s above trip eligibility ceiling %s", t.Class, t.Ceiling()))
		}
		if t.Infeasible {
			if t.Drops() != 1 {
				r.violation(t.ID, "", "infeasible flag on a multi-stop trip")
			}
			continue
		}
		if !r.fits(t) && r.resolved {
			r.violation(t.ID, "", fmt.Sprintf("totals %s exceed %s limits %s",
				fmtTotals(t.Totals), t.Class, fmtLimits(r.caps.Limit(t.Class), r.tripBuffer(t))))
		}
		for i, a := range t.Stops {
			for _, b := range t.Stops[i+1:] {
				if r.zones.NoCrossZone(a.Zone, b.Zone) {
					r.violation(t.ID, b.ID, fmt.Sprintf("forbidden zone pair %s/%s with %s", a.Zone, b.Zone, a.ID))
				} else if !r.zones.BearingCompatible(a.Coords(), b.Coords()) {
					r.violation(t.ID, b.ID, "opposite bearing from depot with "+a.ID)
				}
			}
		}
	}

	for _, d := range r.dests {
		if _, ok := seen[d.ID]; !ok {
			r.violation(0, d.ID, "destination not assigned to any trip")
		}
	}
}

func (r *run) violation(tripID int, destID, detail string) {
	r.issue(domain.IssueInvariantViolation, destID, tripID, detail)
	r.log.Error().Int("trip", tripID).Str("destination", destID).Msg("plan invariant violated: " + detail)
}

// renumber gives trips consecutive ids 1..k in slice order and rewrites
// issue references accordingly.
func renumber(trips []*domain.Trip, issues []domain.Issue) {
	ids := make(map[int]int, len(trips))
	for i, t := range trips {
		ids[t.ID] = i + 1
		t.ID = i + 1
	}
	for i := range issues {
		if issues[i].TripID == 0 {
			continue
		}
		if n, ok := ids[issues[i].TripID]; ok {
			issues[i].TripID = n
		} else {
			issues[i].TripID = 0
		}
	}
}

func fmtTotals(t domain.Totals) string {
	return fmt.Sprintf("(%.2f kg, %.3f m3, %d drops)", t.Weight, t.Volume, t.Drops)
}

func fmtLimits(l domain.Limits, buffer float64) string {
	return fmt.Sprintf("(%.2f kg, %.3f m3, %d drops at buffer %.2f)", l.MaxWeight*buffer, l.MaxVolume*buffer, l.MaxDrops, buffer)
}
