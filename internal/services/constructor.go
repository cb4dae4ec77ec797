package services

import (
	"math"
	"slices"

	"trip-assignment-service/internal/domain"
	"trip-assignment-service/internal/eligibility"
)

// construct builds the initial trips.
//
// Destinations are taken farthest from the depot first. Each unassigned
// destination seeds a trip whose class comes from its distance band; the
// trip then grows by nearest neighbour from the last admitted stop until no
// remaining destination is admissible. Construction is sequential because
// every admission depends on the current trip state.
func (r *run) construct() []*domain.Trip {
	sorted := slices.Clone(r.dests)
	r.byRank(sorted)

	assigned := make(map[string]bool, len(sorted))
	trips := make([]*domain.Trip, 0, len(sorted)/4+1)

	for _, seed := range sorted {
		if assigned[seed.ID] {
			continue
		}
		assigned[seed.ID] = true

		trip := r.seedTrip(seed, sorted, assigned)
		trips = append(trips, trip)
		if trip.Infeasible {
			continue
		}

		last := seed
		for {
			next, class := r.nextStop(trip, seed, last, sorted, assigned)
			if next == nil {
				break
			}
			trip.Load(next)
			trip.Class = class
			assigned[next.ID] = true
			last = next
		}
	}

	return trips
}

// seedTrip opens a trip for seed with a class picked by distance band:
// very far seeds get a large vehicle when enough volume waits nearby,
// mid-distance seeds a medium one, near seeds a small one. The class is
// capped by the seed's ceiling and raised only as far as the seed needs.
func (r *run) seedTrip(seed *domain.Destination, sorted []*domain.Destination, assigned map[string]bool) *domain.Trip {
	buf := r.buffers[seed.ID]
	class := r.bandClass(seed, sorted, assigned)
	class = domain.MinClass(class, seed.Ceiling)

	trip := r.newTrip(class)
	trip.Load(seed)

	if r.alone[seed.ID] {
		r.markInfeasible(trip)
		return trip
	}

	if !r.caps.Fits(trip.Totals, class, buf) {
		c, err := r.caps.SmallestFitting(trip.Totals, buf, seed.Ceiling)
		if err != nil {
			r.markInfeasible(trip)
			return trip
		}
		trip.Class = c
	}
	return trip
}

func (r *run) bandClass(seed *domain.Destination, sorted []*domain.Destination, assigned map[string]bool) domain.VehicleClass {
	km, ok := r.dm.FromDepot(seed)
	if !ok {
		return r.caps.Smallest()
	}

	switch {
	case km >= r.opts.FarDistanceKm:
		// Estimate the volume a far trip could collect around its seed.
		vol := seed.Volume
		for _, d := range sorted {
			if assigned[d.ID] || r.alone[d.ID] || r.zones.NoCrossZone(seed.Zone, d.Zone) {
				continue
			}
			if dist, ok := r.dm.Between(seed, d); ok && dist <= r.opts.NearbyRadiusKm {
				vol += d.Volume
			}
		}
		if vol > r.caps.Limit(domain.ClassMedium).MaxVolume*r.buffers[seed.ID] {
			return domain.ClassLarge
		}
		return domain.ClassMedium
	case km >= r.opts.MidDistanceKm:
		return domain.ClassMedium
	default:
		return domain.ClassSmall
	}
}

// nextStop picks the admissible destination closest to last. Candidates
// within MinStopDistanceKm of the closest distance are tied and resolved
// in farthest-first order. Candidates whose distance to last is unknown are
// considered only when no candidate has a known distance.
func (r *run) nextStop(
	trip *domain.Trip,
	seed, last *domain.Destination,
	sorted []*domain.Destination,
	assigned map[string]bool,
) (*domain.Destination, domain.VehicleClass) {
	type candidate struct {
		d     *domain.Destination
		class domain.VehicleClass
		km    float64
		known bool
	}

	var cands []candidate
	best := math.Inf(1)
	for _, d := range sorted {
		if assigned[d.ID] {
			continue
		}
		class, ok := r.admissible(trip, seed, last, d)
		if !ok {
			continue
		}
		km, known := r.dm.Between(last, d)
		cands = append(cands, candidate{d: d, class: class, km: km, known: known})
		if known && km < best {
			best = km
		}
	}
	if len(cands) == 0 {
		return nil, domain.ClassNone
	}

	// cands is in farthest-first order, so the first tied candidate wins.
	for _, c := range cands {
		if math.IsInf(best, 1) {
			return c.d, c.class
		}
		if c.known && c.km <= best+r.opts.MinStopDistanceKm {
			return c.d, c.class
		}
	}
	return nil, domain.ClassNone
}

// admissible checks every admission rule for d joining trip and returns
// the class the trip would have afterwards.
func (r *run) admissible(trip *domain.Trip, seed, last, d *domain.Destination) (domain.VehicleClass, bool) {
	if r.alone[d.ID] {
		return domain.ClassNone, false
	}

	// Zone: never a forbidden pair with the seed or any zone already on board.
	if r.zones.NoCrossZone(seed.Zone, d.Zone) {
		return domain.ClassNone, false
	}
	for _, z := range trip.Zones() {
		if r.zones.NoCrossZone(z, d.Zone) {
			return domain.ClassNone, false
		}
	}

	// Bearing: compatible with every member, not just the seed.
	for _, s := range trip.Stops {
		if !r.zones.BearingCompatible(s.Coords(), d.Coords()) {
			return domain.ClassNone, false
		}
	}

	if km, ok := r.dm.Between(last, d); ok && km > r.opts.MaxStopDistanceKm {
		return domain.ClassNone, false
	}

	if !eligibility.CanAdmit(trip, d) {
		return domain.ClassNone, false
	}

	totals := trip.Totals.Plus(d.Demand())
	buf := math.Min(r.tripBuffer(trip), r.buffers[d.ID])
	if r.caps.Fits(totals, trip.Class, buf) {
		return trip.Class, true
	}

	// One upward promotion, bounded by the tightest ceiling on board.
	next, ok := r.caps.Next(trip.Class)
	ceiling := domain.MinClass(trip.Ceiling(), d.Ceiling)
	if ok && next <= ceiling && r.caps.Fits(totals, next, buf) {
		return next, true
	}
	return domain.ClassNone, false
}
