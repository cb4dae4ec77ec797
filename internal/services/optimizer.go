package services

import (
	"context"
	"math"
	"slices"
	"time"

	"trip-assignment-service/internal/domain"
)

// The exact optimizer is a depth-first branch and bound over the
// slot-assignment model: every destination goes to exactly one slot, a slot
// is active iff it holds a destination, its class is the smallest class
// under the slot's ceiling that fits, and every active slot must reach
// MinUtilization of the smallest class. The objective is
//
//	TripPenalty * active - UtilizationReward * sum(fill of assigned class)
//
// Items are placed in descending volume order; a new slot is only ever
// opened after the existing ones, which removes slot-permutation symmetry.

type optResult struct {
	status domain.OptimizerStatus
	trips  []*domain.Trip
	nodes  int
}

type optSlot struct {
	items   []int
	totals  domain.Totals
	buffer  float64
	ceiling domain.VehicleClass
}

type optimizer struct {
	r        *run
	items    []*domain.Destination
	conflict [][]bool

	slots []*optSlot

	best      []optSlot
	bestScore float64
	found     bool

	fillBound float64
	minTrips  int

	nodes     int
	maxNodes  int
	deadline  time.Time
	ctx       context.Context
	stopped   bool
	nodeLimit bool
}

const optCheckEvery = 1024

// optimize runs the exact model over the destinations that fit some class
// on their own. warm is the heuristic solution used as the first incumbent
// when it satisfies the model.
func (r *run) optimize(ctx context.Context, warm []*domain.Trip) optResult {
	items := make([]*domain.Destination, 0, len(r.dests))
	for _, d := range r.dests {
		if !r.alone[d.ID] {
			items = append(items, d)
		}
	}
	slices.SortStableFunc(items, func(a, b *domain.Destination) int {
		if a.Volume != b.Volume {
			if a.Volume > b.Volume {
				return -1
			}
			return 1
		}
		return r.rank[a.ID] - r.rank[b.ID]
	})

	o := &optimizer{
		r:         r,
		items:     items,
		bestScore: math.Inf(1),
		maxNodes:  r.opts.MaxOptimizerNodes,
		deadline:  time.Now().Add(r.opts.OptimizerTimeLimit),
		ctx:       ctx,
	}
	o.prepare()

	if len(items) == 0 {
		return optResult{status: domain.StatusOptimal}
	}

	o.warmStart(warm)
	o.search(0)

	res := optResult{nodes: o.nodes}
	switch {
	case o.stopped && !o.nodeLimit:
		res.status = domain.StatusTimeout
	case o.nodeLimit && o.found:
		res.status = domain.StatusFeasible
	case o.nodeLimit:
		res.status = domain.StatusTimeout
	case o.found:
		res.status = domain.StatusOptimal
	default:
		res.status = domain.StatusInfeasible
	}
	if o.found {
		res.trips = o.materialize()
	}
	return res
}

func (o *optimizer) prepare() {
	n := len(o.items)
	o.conflict = make([][]bool, n)
	for i := range o.conflict {
		o.conflict[i] = make([]bool, n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			c := !o.r.zones.Compatible(o.items[i], o.items[j])
			o.conflict[i][j], o.conflict[j][i] = c, c
		}
	}

	small := o.r.caps.Limit(o.r.caps.Smallest())
	large := o.r.caps.Limit(o.r.caps.Largest())
	maxBuf := 0.0
	var total domain.Totals
	for _, d := range o.items {
		total = total.Plus(d.Demand())
		o.fillBound += d.Weight/small.MaxWeight + d.Volume/small.MaxVolume
		maxBuf = math.Max(maxBuf, o.r.buffers[d.ID])
	}

	o.minTrips = int(math.Ceil(total.Weight / (large.MaxWeight * maxBuf)))
	o.minTrips = max(o.minTrips, int(math.Ceil(total.Volume/(large.MaxVolume*maxBuf))))
	o.minTrips = max(o.minTrips, (total.Drops+large.MaxDrops-1)/large.MaxDrops)
	if o.minTrips < 1 && len(o.items) > 0 {
		o.minTrips = 1
	}
}

// warmStart adopts the heuristic trips as the incumbent when every trip
// satisfies the model's constraints.
func (o *optimizer) warmStart(trips []*domain.Trip) {
	pos := make(map[string]int, len(o.items))
	for i, d := range o.items {
		pos[d.ID] = i
	}

	var slots []optSlot
	covered := 0
	for _, t := range trips {
		if t.Infeasible {
			continue
		}
		s := optSlot{ceiling: domain.ClassLarge, buffer: math.Inf(1)}
		for _, d := range t.Stops {
			i, ok := pos[d.ID]
			if !ok {
				return
			}
			for _, j := range s.items {
				if o.conflict[i][j] {
					return
				}
			}
			s.items = append(s.items, i)
			s.totals = s.totals.Plus(d.Demand())
			s.buffer = math.Min(s.buffer, o.r.buffers[d.ID])
			s.ceiling = domain.MinClass(s.ceiling, d.Ceiling)
		}
		if _, err := o.r.caps.SmallestFitting(s.totals, s.buffer, s.ceiling); err != nil {
			return
		}
		if !o.meetsFloor(&s) {
			return
		}
		covered += len(s.items)
		slots = append(slots, s)
	}
	if covered != len(o.items) {
		return
	}

	o.best = slots
	o.bestScore = o.score(slots)
	o.found = true
}

func (o *optimizer) meetsFloor(s *optSlot) bool {
	return o.r.caps.Fill(s.totals, o.r.caps.Smallest()) >= o.r.opts.MinUtilization-1e-9
}

func (o *optimizer) slotClass(s *optSlot) domain.VehicleClass {
	c, _ := o.r.caps.SmallestFitting(s.totals, s.buffer, s.ceiling)
	return c
}

func (o *optimizer) score(slots []optSlot) float64 {
	fill := 0.0
	for i := range slots {
		fill += o.r.caps.Fill(slots[i].totals, o.slotClass(&slots[i]))
	}
	return o.r.opts.TripPenalty*float64(len(slots)) - o.r.opts.UtilizationReward*fill
}

func (o *optimizer) shouldStop() bool {
	if o.stopped {
		return true
	}
	o.nodes++
	if o.nodes >= o.maxNodes {
		o.stopped, o.nodeLimit = true, true
		return true
	}
	if o.nodes%optCheckEvery == 0 {
		if o.ctx.Err() != nil || time.Now().After(o.deadline) {
			o.stopped = true
			return true
		}
	}
	return false
}

func (o *optimizer) search(i int) {
	if o.shouldStop() {
		return
	}

	// Bound: trips can only grow, total fill never exceeds fillBound.
	k := max(len(o.slots), o.minTrips)
	if o.r.opts.TripPenalty*float64(k)-o.r.opts.UtilizationReward*o.fillBound >= o.bestScore-1e-9 {
		return
	}

	if i == len(o.items) {
		o.leaf()
		return
	}

	d := o.items[i]
	demand := d.Demand()
	buf := o.r.buffers[d.ID]

	for _, s := range o.slots {
		if !o.canPlace(s, i) {
			continue
		}
		totals := s.totals.Plus(demand)
		nb := math.Min(s.buffer, buf)
		nc := domain.MinClass(s.ceiling, d.Ceiling)
		if _, err := o.r.caps.SmallestFitting(totals, nb, nc); err != nil {
			continue
		}

		prevTotals, prevBuf, prevCeil := s.totals, s.buffer, s.ceiling
		s.items = append(s.items, i)
		s.totals, s.buffer, s.ceiling = totals, nb, nc

		o.search(i + 1)

		s.items = s.items[:len(s.items)-1]
		s.totals, s.buffer, s.ceiling = prevTotals, prevBuf, prevCeil
		if o.stopped {
			return
		}
	}

	o.slots = append(o.slots, &optSlot{items: []int{i}, totals: demand, buffer: buf, ceiling: d.Ceiling})
	o.search(i + 1)
	o.slots = o.slots[:len(o.slots)-1]
}

func (o *optimizer) canPlace(s *optSlot, i int) bool {
	for _, j := range s.items {
		if o.conflict[i][j] {
			return false
		}
	}
	return true
}

func (o *optimizer) leaf() {
	snapshot := make([]optSlot, len(o.slots))
	for k, s := range o.slots {
		if !o.meetsFloor(s) {
			return
		}
		snapshot[k] = optSlot{items: slices.Clone(s.items), totals: s.totals, buffer: s.buffer, ceiling: s.ceiling}
	}

	score := o.score(snapshot)
	if score < o.bestScore-1e-9 {
		o.best = snapshot
		o.bestScore = score
		o.found = true
	}
}

func (o *optimizer) materialize() []*domain.Trip {
	trips := make([]*domain.Trip, 0, len(o.best))
	for k := range o.best {
		s := &o.best[k]
		members := make([]*domain.Destination, 0, len(s.items))
		for _, i := range s.items {
			members = append(members, o.items[i])
		}
		o.r.byRank(members)

		t := o.r.newTrip(o.slotClass(s))
		t.LoadMultiple(members)
		trips = append(trips, t)
	}
	slices.SortFunc(trips, func(a, b *domain.Trip) int {
		return o.r.rank[a.Stops[0].ID] - o.r.rank[b.Stops[0].ID]
	})
	return trips
}
