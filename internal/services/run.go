package services

import (
	"math"
	"slices"
	"strings"

	"github.com/rs/zerolog"

	"trip-assignment-service/internal/domain"
	"trip-assignment-service/internal/zone"
)

// run is the mutable state of one planning call. It is never shared
// between calls.
type run struct {
	opts  Options
	caps  domain.CapacityModel
	zones *zone.Classifier
	dm    *distanceMatrix
	log   zerolog.Logger

	dests   []*domain.Destination
	rank    map[string]int
	buffers map[string]float64
	// alone marks destinations that fit no class under their own ceiling.
	alone map[string]bool

	issues   []domain.Issue
	resolved bool
	nextID   int
}

func newRun(
	opts Options,
	caps domain.CapacityModel,
	zones *zone.Classifier,
	dm *distanceMatrix,
	dests []*domain.Destination,
	log zerolog.Logger,
) *run {
	r := &run{
		opts:     opts,
		caps:     caps,
		zones:    zones,
		dm:       dm,
		log:      log,
		dests:    dests,
		rank:     make(map[string]int, len(dests)),
		buffers:  make(map[string]float64, len(dests)),
		alone:    make(map[string]bool),
		resolved: true,
	}

	for _, d := range dests {
		r.buffers[d.ID] = opts.BufferFor(d.BusinessType)
	}

	sorted := slices.Clone(dests)
	slices.SortStableFunc(sorted, r.compareFarthestFirst)
	for i, d := range sorted {
		r.rank[d.ID] = i
	}

	for _, d := range dests {
		if _, err := caps.SmallestFitting(d.Demand(), r.buffers[d.ID], d.Ceiling); err != nil {
			r.alone[d.ID] = true
		}
	}

	return r
}

// compareFarthestFirst orders by depot distance descending. Destinations
// without a known distance go last. Ties fall back to name, then the
// administrative hierarchy, then id.
func (r *run) compareFarthestFirst(a, b *domain.Destination) int {
	da, okA := r.dm.FromDepot(a)
	db, okB := r.dm.FromDepot(b)
	switch {
	case okA && !okB:
		return -1
	case !okA && okB:
		return 1
	case okA && okB && da != db:
		if da > db {
			return -1
		}
		return 1
	}

	for _, c := range [][2]string{
		{a.Name, b.Name},
		{a.Location.Province, b.Location.Province},
		{a.Location.District, b.Location.District},
		{a.Location.Subdistrict, b.Location.Subdistrict},
		{a.ID, b.ID},
	} {
		if v := strings.Compare(c[0], c[1]); v != 0 {
			return v
		}
	}
	return 0
}

// byRank sorts destinations farthest first.
func (r *run) byRank(ds []*domain.Destination) {
	slices.SortFunc(ds, func(a, b *domain.Destination) int { return r.rank[a.ID] - r.rank[b.ID] })
}

func (r *run) newTrip(class domain.VehicleClass) *domain.Trip {
	r.nextID++
	return domain.NewTrip(r.nextID, class)
}

// buffer is the most conservative buffer among the given stops.
func (r *run) buffer(stops ...*domain.Destination) float64 {
	b := math.Inf(1)
	for _, d := range stops {
		if v := r.buffers[d.ID]; v < b {
			b = v
		}
	}
	if math.IsInf(b, 1) {
		return r.opts.DefaultBuffer
	}
	return b
}

func (r *run) tripBuffer(trips ...*domain.Trip) float64 {
	var stops []*domain.Destination
	for _, t := range trips {
		stops = append(stops, t.Stops...)
	}
	return r.buffer(stops...)
}

func (r *run) fits(t *domain.Trip) bool {
	return r.caps.Fits(t.Totals, t.Class, r.tripBuffer(t))
}

// compatible reports whether d may share a trip with every stop in stops.
func (r *run) compatible(d *domain.Destination, stops []*domain.Destination) bool {
	for _, s := range stops {
		if !r.zones.Compatible(s, d) {
			return false
		}
	}
	return true
}

func (r *run) issue(kind domain.IssueKind, destID string, tripID int, detail string) {
	r.issues = append(r.issues, domain.Issue{Kind: kind, DestinationID: destID, TripID: tripID, Detail: detail})
}

// markInfeasible flags a single-stop trip whose demand fits no allowed class.
func (r *run) markInfeasible(t *domain.Trip) {
	if t.Infeasible {
		return
	}
	t.Infeasible = true
	d := t.Stops[0]
	t.Class = d.Ceiling
	r.issue(domain.IssueInfeasibleDemand, d.ID, t.ID, r.infeasibleDetail(d))
	r.log.Warn().Str("destination", d.ID).Float64("weight", d.Weight).Float64("volume", d.Volume).
		Str("ceiling", d.Ceiling.String()).Msg("demand exceeds every allowed vehicle class")
}

func (r *run) infeasibleDetail(d *domain.Destination) string {
	l := r.caps.Limit(d.Ceiling)
	buf := r.buffers[d.ID]
	if d.Ceiling < r.caps.Largest() && r.caps.Fits(d.Demand(), r.caps.Largest(), buf) {
		return "demand fits only a class above the destination's eligibility ceiling " + d.Ceiling.String()
	}
	return "demand " + fmtTotals(d.Demand()) + " exceeds " + d.Ceiling.String() + " limits " + fmtLimits(l, buf)
}
