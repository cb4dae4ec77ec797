package services

import (
	"fmt"
	"math"
	"slices"

	"trip-assignment-service/internal/domain"
)

// refine runs the ordered repair passes over the full trip set.
// Every destination stays on exactly one trip throughout.
func (r *run) refine(trips []*domain.Trip) []*domain.Trip {
	trips = r.downsize(trips)
	trips = r.oversize(trips)
	trips = r.upgrade(trips)
	trips = r.merge(trips)
	return trips
}

// downsize re-packs large trips carrying little volume into medium trips.
// A trip is left alone when any member would not fit a medium vehicle on
// its own.
func (r *run) downsize(trips []*domain.Trip) []*domain.Trip {
	threshold := r.opts.DownsizeVolumeRatio * r.caps.Limit(domain.ClassLarge).MaxVolume
	out := make([]*domain.Trip, 0, len(trips))

	for _, t := range trips {
		if t.Class != domain.ClassLarge || t.Infeasible || t.Totals.Volume >= threshold {
			out = append(out, t)
			continue
		}

		members := slices.Clone(t.Stops)
		r.byRank(members)

		viable := true
		for _, d := range members {
			if !r.caps.Fits(d.Demand(), domain.ClassMedium, r.buffers[d.ID]) {
				viable = false
				break
			}
		}
		if !viable {
			out = append(out, t)
			continue
		}

		parts := r.greedyPack(members, func(stops []*domain.Destination, totals domain.Totals) (domain.VehicleClass, bool) {
			return domain.ClassMedium, r.caps.Fits(totals, domain.ClassMedium, r.buffer(stops...))
		})
		if len(parts) == 1 {
			t.Class = domain.ClassMedium
			out = append(out, t)
			continue
		}

		r.log.Debug().Int("trip", t.ID).Int("parts", len(parts)).Msg("downsized large trip")
		out = append(out, parts...)
	}
	return out
}

// greedyPack fills trips in the given member order, opening a new trip
// whenever the next member does not fit. classFor reports the class a set of
// stops would use and whether it fits.
func (r *run) greedyPack(
	members []*domain.Destination,
	classFor func(stops []*domain.Destination, totals domain.Totals) (domain.VehicleClass, bool),
) []*domain.Trip {
	var parts []*domain.Trip
	var cur *domain.Trip

	for _, d := range members {
		if cur != nil {
			stops := append(slices.Clone(cur.Stops), d)
			if class, ok := classFor(stops, cur.Totals.Plus(d.Demand())); ok {
				cur.Load(d)
				cur.Class = class
				continue
			}
		}
		class, _ := classFor([]*domain.Destination{d}, d.Demand())
		cur = r.newTrip(class)
		cur.Load(d)
		parts = append(parts, cur)
	}
	return parts
}

// oversize re-grades or splits trips that exceed their class. It loops
// until nothing is over limit or MaxOversizeRounds is reached; anything
// still over limit then is reported as unresolved.
func (r *run) oversize(trips []*domain.Trip) []*domain.Trip {
	for round := 0; round < r.opts.MaxOversizeRounds; round++ {
		changed := false
		out := make([]*domain.Trip, 0, len(trips))

		for _, t := range trips {
			if t.Infeasible || r.fits(t) {
				out = append(out, t)
				continue
			}
			changed = true

			if t.Drops() == 1 {
				if c, err := r.caps.SmallestFitting(t.Totals, r.tripBuffer(t), t.Ceiling()); err == nil {
					t.Class = c
				} else {
					r.markInfeasible(t)
				}
				out = append(out, t)
				continue
			}

			if c, err := r.caps.SmallestFitting(t.Totals, r.tripBuffer(t), t.Ceiling()); err == nil {
				t.Class = c
				out = append(out, t)
				continue
			}

			members := slices.Clone(t.Stops)
			r.byRank(members)
			parts := r.greedyPack(members, func(stops []*domain.Destination, totals domain.Totals) (domain.VehicleClass, bool) {
				ceiling := domain.ClassLarge
				for _, s := range stops {
					ceiling = domain.MinClass(ceiling, s.Ceiling)
				}
				c, err := r.caps.SmallestFitting(totals, r.buffer(stops...), ceiling)
				if err != nil {
					return ceiling, false
				}
				return c, true
			})
			r.log.Debug().Int("trip", t.ID).Int("parts", len(parts)).Msg("split oversize trip")
			out = append(out, parts...)
		}

		trips = out
		if !changed {
			return trips
		}
	}

	for _, t := range trips {
		if !t.Infeasible && !r.fits(t) {
			r.resolved = false
			r.issue(domain.IssueUnresolved, "", t.ID,
				fmt.Sprintf("trip still exceeds %s limits after %d oversize rounds", t.Class, r.opts.MaxOversizeRounds))
		}
	}
	return trips
}

// upgrade promotes single-stop trips that nearly fill their class to the
// smallest larger class the stop may use.
func (r *run) upgrade(trips []*domain.Trip) []*domain.Trip {
	for _, t := range trips {
		if t.Infeasible || t.Drops() != 1 {
			continue
		}
		if r.caps.Fill(t.Totals, t.Class) <= r.opts.UpgradeUtilization {
			continue
		}
		ceiling := t.Ceiling()
		for c, ok := r.caps.Next(t.Class); ok && c <= ceiling; c, ok = r.caps.Next(c) {
			if r.caps.Fits(t.Totals, c, 1) {
				t.Class = c
				break
			}
		}
	}
	return trips
}

// merge absorbs trips with fewer than MinDropsBeforeMerge drops into the
// nearest compatible trip that can take them without changing class.
// Nearness is the average pairwise distance between the two trips' stops;
// equal distances go to the lower trip id. The pass repeats until nothing
// merges or MaxMergeRounds is reached.
func (r *run) merge(trips []*domain.Trip) []*domain.Trip {
	for round := 0; round < r.opts.MaxMergeRounds; round++ {
		small := make([]*domain.Trip, 0)
		for _, t := range trips {
			if !t.Infeasible && t.Drops() > 0 && t.Drops() < r.opts.MinDropsBeforeMerge {
				small = append(small, t)
			}
		}
		slices.SortFunc(small, func(a, b *domain.Trip) int {
			if a.Drops() != b.Drops() {
				return a.Drops() - b.Drops()
			}
			return a.ID - b.ID
		})

		merged := false
		for _, s := range small {
			if s.Drops() == 0 {
				continue
			}
			target := r.mergeTarget(s, trips)
			if target == nil {
				continue
			}
			r.log.Debug().Int("from", s.ID).Int("into", target.ID).Msg("merged trip")
			target.Absorb(s)
			merged = true
		}

		trips = slices.DeleteFunc(trips, func(t *domain.Trip) bool { return t.Drops() == 0 })
		if !merged {
			break
		}
	}
	return trips
}

func (r *run) mergeTarget(s *domain.Trip, trips []*domain.Trip) *domain.Trip {
	var best *domain.Trip
	bestKm := math.Inf(1)

	for _, t := range trips {
		if t == s || t.Infeasible || t.Drops() == 0 {
			continue
		}
		if !r.canMerge(s, t) {
			continue
		}
		km := r.averageDistance(s, t)
		if km > r.opts.MaxMergeDistanceKm {
			continue
		}
		if km < bestKm || (km == bestKm && best != nil && t.ID < best.ID) {
			best, bestKm = t, km
		}
	}
	return best
}

func (r *run) canMerge(s, t *domain.Trip) bool {
	totals := s.Totals.Plus(t.Totals)
	if !r.caps.Fits(totals, t.Class, r.tripBuffer(s, t)) {
		return false
	}
	if domain.MinClass(s.Ceiling(), t.Ceiling()) < t.Class {
		return false
	}
	for _, d := range s.Stops {
		if !r.compatible(d, t.Stops) {
			return false
		}
	}
	return true
}

// averageDistance is the mean distance over stop pairs with a known
// distance. Trips without any located pair sit at the merge distance limit.
func (r *run) averageDistance(a, b *domain.Trip) float64 {
	sum, n := 0.0, 0
	for _, x := range a.Stops {
		for _, y := range b.Stops {
			if km, ok := r.dm.Between(x, y); ok {
				sum += km
				n++
			}
		}
	}
	if n == 0 {
		return r.opts.MaxMergeDistanceKm
	}
	return sum / float64(n)
}
