package services

import (
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trip-assignment-service/internal/domain"
)

func membership(trips []*domain.Trip) []string {
	out := make([]string, 0, len(trips))
	for _, t := range trips {
		ids := t.DestinationIDs()
		slices.Sort(ids)
		out = append(out, strings.Join(ids, ","))
	}
	slices.Sort(out)
	return out
}

func TestMergeReachesFixedPoint(t *testing.T) {
	p := testPlanner()
	for _, seed := range []int64{5, 11, 23} {
		r := newTestRun(t, p, randomDests(35, seed), DefaultOptions())

		trips := r.refine(r.construct())
		before := membership(trips)

		again := r.merge(trips)
		assert.Equal(t, before, membership(again), "seed %d", seed)
	}
}

func TestMergeAbsorbsSmallTripIntoNearestCompatible(t *testing.T) {
	p := testPlanner()
	dests := []*domain.Destination{
		dest("N1", "Bangkok", 13.90, 100.55, 100, 0.5),
		dest("N2", "Bangkok", 13.91, 100.56, 100, 0.5),
		dest("N3", "Bangkok", 13.92, 100.57, 100, 0.5),
		dest("LONE", "Bangkok", 13.93, 100.58, 100, 0.5),
	}
	r := newTestRun(t, p, dests, DefaultOptions())

	host := r.newTrip(domain.ClassSmall)
	host.LoadMultiple(r.dests[:3])
	lone := r.newTrip(domain.ClassSmall)
	lone.Load(r.dests[3])

	out := r.merge([]*domain.Trip{host, lone})
	require.Len(t, out, 1)
	assert.Equal(t, 4, out[0].Drops())
	assert.Equal(t, domain.ClassSmall, out[0].Class)
}

func TestMergeKeepsClassAndForbiddenPairs(t *testing.T) {
	p := testPlanner()
	dests := []*domain.Destination{
		dest("E1", "Chon Buri", 13.60, 100.80, 2000, 1),
		dest("E2", "Chon Buri", 13.61, 100.81, 1000, 1),
		dest("W1", "Nakhon Pathom", 13.62, 100.82, 100, 1),
	}
	r := newTestRun(t, p, dests, DefaultOptions())

	var trips []*domain.Trip
	for _, d := range r.dests {
		tr := r.newTrip(domain.ClassSmall)
		tr.Load(d)
		trips = append(trips, tr)
	}

	out := r.merge(trips)
	// E1 and E2 together exceed the small weight limit; W1 may join neither.
	assert.Len(t, out, 3)
}

func TestOversizeRegradesWhenCeilingAllows(t *testing.T) {
	p := testPlanner()
	dests := []*domain.Destination{
		dest("H1", "Bangkok", 13.80, 100.55, 1500, 1),
		dest("H2", "Bangkok", 13.81, 100.56, 1500, 1),
		dest("H3", "Bangkok", 13.82, 100.57, 1500, 1),
	}
	r := newTestRun(t, p, dests, DefaultOptions())

	tr := r.newTrip(domain.ClassSmall)
	tr.LoadMultiple(r.dests)

	out := r.oversize([]*domain.Trip{tr})
	require.Len(t, out, 1)
	assert.Equal(t, domain.ClassLarge, out[0].Class)
	assert.True(t, r.resolved)
}

func TestOversizeSplitsUnderCeiling(t *testing.T) {
	p := testPlanner()
	dests := []*domain.Destination{
		dest("H1", "Bangkok", 13.80, 100.55, 1500, 1),
		dest("H2", "Bangkok", 13.81, 100.56, 1500, 1),
		dest("H3", "Bangkok", 13.82, 100.57, 1500, 1),
	}
	for _, d := range dests {
		d.Ceiling = domain.ClassMedium
	}
	r := newTestRun(t, p, dests, DefaultOptions())

	tr := r.newTrip(domain.ClassSmall)
	tr.LoadMultiple(r.dests)

	out := r.oversize([]*domain.Trip{tr})
	require.Len(t, out, 2)

	total := 0
	for _, part := range out {
		total += part.Drops()
		assert.True(t, r.fits(part))
		assert.LessOrEqual(t, part.Class, domain.ClassMedium)
	}
	assert.Equal(t, 3, total)
	assert.True(t, r.resolved)
	assert.Empty(t, r.issues)
}

func TestOversizeReportsUnresolvedAfterRoundLimit(t *testing.T) {
	p := testPlanner()
	opts := DefaultOptions()
	opts.MaxOversizeRounds = 1
	dests := []*domain.Destination{
		dest("HUGE", "Bangkok", 13.90, 100.60, 6000, 1),
		dest("TINY", "Bangkok", 13.80, 100.55, 100, 1),
	}
	r := newTestRun(t, p, dests, opts)

	tr := r.newTrip(domain.ClassLarge)
	tr.LoadMultiple(r.dests)

	out := r.oversize([]*domain.Trip{tr})
	require.Len(t, out, 2)
	assert.False(t, r.resolved)

	var unresolved []domain.Issue
	for _, is := range r.issues {
		if is.Kind == domain.IssueUnresolved {
			unresolved = append(unresolved, is)
		}
	}
	assert.Len(t, unresolved, 1)
}

func TestOversizeMarksSingleStopInfeasible(t *testing.T) {
	p := testPlanner()
	r := newTestRun(t, p, []*domain.Destination{dest("HUGE", "Bangkok", 13.90, 100.60, 6000, 1)}, DefaultOptions())

	tr := r.newTrip(domain.ClassSmall)
	tr.Load(r.dests[0])

	out := r.oversize([]*domain.Trip{tr})
	require.Len(t, out, 1)
	assert.True(t, out[0].Infeasible)
	assert.True(t, r.resolved)
	require.Len(t, r.issues, 1)
	assert.Equal(t, domain.IssueInfeasibleDemand, r.issues[0].Kind)
}

func TestDownsizeRepacksLightLargeTrips(t *testing.T) {
	p := testPlanner()
	dests := []*domain.Destination{
		dest("L1", "Bangkok", 13.80, 100.55, 500, 3),
		dest("L2", "Bangkok", 13.81, 100.56, 500, 3),
		dest("L3", "Bangkok", 13.82, 100.57, 500, 3),
	}
	r := newTestRun(t, p, dests, DefaultOptions())

	tr := r.newTrip(domain.ClassLarge)
	tr.LoadMultiple(r.dests)

	out := r.downsize([]*domain.Trip{tr})
	require.Len(t, out, 2)
	for _, part := range out {
		assert.Equal(t, domain.ClassMedium, part.Class)
		assert.True(t, r.fits(part))
	}
}

func TestDownsizeSkipsWhenMemberNeedsLarge(t *testing.T) {
	p := testPlanner()
	dests := []*domain.Destination{
		dest("HEAVY", "Bangkok", 13.80, 100.55, 4000, 1),
		dest("L2", "Bangkok", 13.81, 100.56, 100, 1),
	}
	r := newTestRun(t, p, dests, DefaultOptions())

	tr := r.newTrip(domain.ClassLarge)
	tr.LoadMultiple(r.dests)

	out := r.downsize([]*domain.Trip{tr})
	require.Len(t, out, 1)
	assert.Equal(t, domain.ClassLarge, out[0].Class)
}

func TestUpgradePromotesNearlyFullSingleStop(t *testing.T) {
	p := testPlanner()
	dests := []*domain.Destination{
		dest("FULL", "Bangkok", 13.80, 100.55, 100, 4.8),
		dest("CAPPED", "Bangkok", 13.81, 100.56, 100, 4.8),
	}
	dests[1].Ceiling = domain.ClassSmall
	r := newTestRun(t, p, dests, DefaultOptions())

	full := r.newTrip(domain.ClassSmall)
	full.Load(r.dests[0])
	capped := r.newTrip(domain.ClassSmall)
	capped.Load(r.dests[1])

	r.upgrade([]*domain.Trip{full, capped})
	assert.Equal(t, domain.ClassMedium, full.Class)
	assert.Equal(t, domain.ClassSmall, capped.Class)
}

func TestSeedBandFarSeedWithNearbyVolumeGetsLarge(t *testing.T) {
	p := testPlanner()
	dests := []*domain.Destination{
		dest("CM1", "Chiang Mai", 18.79, 98.98, 500, 5),
		dest("CM2", "Chiang Mai", 18.80, 98.99, 500, 5),
		dest("NEAR", "Bangkok", 13.80, 100.55, 100, 1),
	}
	r := newTestRun(t, p, dests, DefaultOptions())
	sorted := slices.Clone(r.dests)
	r.byRank(sorted)

	assert.Equal(t, domain.ClassLarge, r.bandClass(sorted[0], sorted, map[string]bool{sorted[0].ID: true}))
	assert.Equal(t, domain.ClassSmall, r.bandClass(sorted[2], sorted, map[string]bool{}))
}

func TestFarthestFirstOrderPutsUnlocatedLast(t *testing.T) {
	p := testPlanner()
	lost := dest("LOST", "Bangkok", 0, 0, 1, 1)
	lost.Location.Coords = nil
	dests := []*domain.Destination{
		lost,
		dest("NEAR", "Bangkok", 13.80, 100.55, 1, 1),
		dest("FAR", "Chiang Mai", 18.79, 98.98, 1, 1),
	}
	r := newTestRun(t, p, dests, DefaultOptions())

	sorted := slices.Clone(r.dests)
	r.byRank(sorted)
	ids := []string{sorted[0].ID, sorted[1].ID, sorted[2].ID}
	assert.Equal(t, []string{"FAR", "NEAR", "LOST"}, ids)
}
