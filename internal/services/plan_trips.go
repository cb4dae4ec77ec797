package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"trip-assignment-service/internal/domain"
	"trip-assignment-service/internal/eligibility"
	"trip-assignment-service/internal/platform/apperr"
	"trip-assignment-service/internal/platform/logger"
	"trip-assignment-service/internal/platform/metrics"
	"trip-assignment-service/internal/platform/obs"
	"trip-assignment-service/internal/ports"
	"trip-assignment-service/internal/zone"
)

// Planner assigns destinations to vehicle trips. Its collaborators are
// injected and owned by the caller; a Planner holds no per-run state and is
// safe for concurrent use.
type Planner struct {
	Distances   ports.DistanceProvider
	Zones       *zone.Classifier
	Eligibility eligibility.Resolver
	Capacity    domain.CapacityModel

	// EligibilitySource, when set, replaces Eligibility with a chain
	// rebuilt from history and the reference table on every plan.
	EligibilitySource ports.EligibilitySource

	// Used by PlanFromRepository only.
	Destinations ports.DestinationRepository
	Locations    *LocationResolver

	log zerolog.Logger
}

func NewPlanner(
	distances ports.DistanceProvider,
	zones *zone.Classifier,
	resolver eligibility.Resolver,
	capacity domain.CapacityModel,
) *Planner {
	if resolver == nil {
		resolver = eligibility.NewChain(domain.ClassLarge, eligibility.Explicit)
	}
	if capacity.Limit(domain.ClassLarge).MaxVolume == 0 {
		capacity = domain.DefaultCapacityModel()
	}
	return &Planner{
		Distances:   distances,
		Zones:       zones,
		Eligibility: resolver,
		Capacity:    capacity,
		log:         logger.Component("planner"),
	}
}

// PlanFromRepository loads destinations from the repository, fills missing
// coordinates, refreshes eligibility data and plans.
func (p *Planner) PlanFromRepository(ctx context.Context, opts Options) (_ *domain.Plan, err error) {
	defer obs.Time(ctx, "planner.PlanFromRepository")(&err)

	if p.Destinations == nil {
		return nil, apperr.New(apperr.CodeInternal, "planner has no destination repository")
	}

	dests, err := p.Destinations.LoadDestinations(ctx)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeInternal, "load destinations")
	}

	if p.Locations != nil {
		if _, err := p.Locations.Resolve(ctx, dests); err != nil {
			return nil, fmt.Errorf("plan from repository: resolve locations: %w", err)
		}
	}

	return p.Plan(ctx, dests, opts)
}

// Plan assigns every destination to exactly one trip. Recoverable problems
// are reported as plan issues; only invalid input, an unusable distance
// provider or cancellation before the heuristic completes fail the call.
func (p *Planner) Plan(ctx context.Context, dests []*domain.Destination, opts Options) (*domain.Plan, error) {
	resolver, err := p.resolver(ctx)
	if err != nil {
		return nil, err
	}
	return p.plan(ctx, dests, opts, resolver)
}

// resolver refreshes the eligibility chain from EligibilitySource when one
// is attached, so inline and repository plans see the same history.
func (p *Planner) resolver(ctx context.Context) (eligibility.Resolver, error) {
	if p.EligibilitySource == nil {
		return p.Eligibility, nil
	}
	chain, err := eligibility.FromSource(ctx, p.EligibilitySource)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeInternal, "load eligibility data")
	}
	return chain, nil
}

func (p *Planner) plan(
	ctx context.Context,
	input []*domain.Destination,
	opts Options,
	resolver eligibility.Resolver,
) (_ *domain.Plan, err error) {
	defer obs.Time(ctx, "planner.Plan")(&err)
	start := time.Now()

	if err := opts.Validate(); err != nil {
		return nil, apperr.Wrap(err, apperr.CodeInvalidInput, "invalid planning options")
	}
	if err := validateDestinations(input); err != nil {
		return nil, err
	}
	if p.Zones == nil {
		return nil, apperr.New(apperr.CodeInternal, "planner has no zone classifier")
	}
	if resolver == nil {
		resolver = eligibility.NewChain(domain.ClassLarge, eligibility.Explicit)
	}

	dests := p.prepare(input, resolver)

	var issues []domain.Issue
	for _, d := range dests {
		if !d.HasCoords() {
			issues = append(issues, domain.Issue{
				Kind:          domain.IssueMissingLocation,
				DestinationID: d.ID,
				Detail:        "no coordinates for location " + d.Location.Code + "; planned by zone and eligibility only",
			})
		}
	}

	dm, err := p.distances(ctx, dests)
	if err != nil {
		return nil, err
	}
	if dm.estimated > 0 {
		issues = append(issues, domain.Issue{
			Kind:   domain.IssueDegradedDistance,
			Detail: fmt.Sprintf("%d of %d distance pairs estimated from great-circle distance", dm.estimated, dm.pairs),
		})
		p.log.Warn().Int("estimated", dm.estimated).Int("pairs", dm.pairs).Msg("distance quality degraded")
	}

	r := newRun(opts, p.Capacity, p.Zones, dm, dests, p.log)
	r.issues = issues

	trips := r.construct()
	trips = r.refine(trips)

	plan := &domain.Plan{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		Method:    opts.Method,
	}

	if opts.Method == domain.MethodExact {
		trips = p.exact(ctx, r, plan, trips)
	}

	r.validate(trips)
	renumber(trips, r.issues)

	plan.Trips = trips
	plan.Issues = r.issues
	plan.Resolved = r.resolved
	plan.Summaries = make([]domain.TripSummary, 0, len(trips))
	for _, t := range trips {
		plan.Summaries = append(plan.Summaries, domain.Summarize(t, p.Capacity))
	}

	metrics.PlanRuns.WithLabelValues(string(plan.Method), statusLabel(plan.OptimizerStatus)).Inc()
	metrics.PlanDuration.WithLabelValues(string(plan.Method)).Observe(time.Since(start).Seconds())
	metrics.PlanTrips.Observe(float64(len(trips)))

	p.log.Info().
		Str("plan_id", plan.ID).
		Str("method", string(plan.Method)).
		Str("status", statusLabel(plan.OptimizerStatus)).
		Int("destinations", len(dests)).
		Int("trips", len(trips)).
		Int("issues", len(plan.Issues)).
		Bool("resolved", plan.Resolved).
		Msg("plan complete")

	return plan, nil
}

// exact runs the optimizer after the heuristic. The heuristic trips stay
// the answer whenever the optimizer cannot do better.
func (p *Planner) exact(ctx context.Context, r *run, plan *domain.Plan, heuristic []*domain.Trip) []*domain.Trip {
	optCtx, cancel := context.WithTimeout(ctx, r.opts.OptimizerTimeLimit)
	defer cancel()

	res := r.optimize(optCtx, heuristic)
	plan.OptimizerStatus = res.status
	p.log.Debug().Str("status", string(res.status)).Int("nodes", res.nodes).Msg("optimizer finished")

	switch res.status {
	case domain.StatusTimeout:
		if res.trips == nil {
			r.issue(domain.IssueOptimizerTimeout, "", 0, "optimizer stopped without a feasible solution; heuristic plan returned")
			return heuristic
		}
		r.issue(domain.IssueOptimizerTimeout, "", 0, "optimizer stopped early; best solution found returned")
	case domain.StatusInfeasible:
		r.issue(domain.IssueOptimizerInfeasible, "", 0,
			fmt.Sprintf("no assignment reaches %.0f%% utilization on every trip; heuristic plan returned", r.opts.MinUtilization*100))
		return heuristic
	}

	// The optimizer's trips replace the heuristic ones, including any the
	// oversize pass could not resolve.
	r.resolved = true
	r.issues = slices.DeleteFunc(r.issues, func(is domain.Issue) bool { return is.Kind == domain.IssueUnresolved })

	return append(res.trips, keepInfeasible(heuristic)...)
}

func keepInfeasible(trips []*domain.Trip) []*domain.Trip {
	var out []*domain.Trip
	for _, t := range trips {
		if t.Infeasible {
			out = append(out, t)
		}
	}
	return out
}

// prepare clones the input and derives zone and eligibility ceiling.
func (p *Planner) prepare(input []*domain.Destination, resolver eligibility.Resolver) []*domain.Destination {
	out := make([]*domain.Destination, 0, len(input))
	for _, src := range input {
		d := *src
		if src.Location.Coords != nil {
			c := *src.Location.Coords
			d.Location.Coords = &c
		}
		d.Zone = p.Zones.ZoneOf(d.Location.Province, d.Location.District)
		d.Ceiling = eligibility.MaxClass(resolver, &d, p.Capacity.Largest())
		out = append(out, &d)
	}
	return out
}

func (p *Planner) distances(ctx context.Context, dests []*domain.Destination) (*distanceMatrix, error) {
	if p.Distances == nil {
		return nil, apperr.New(apperr.CodeDistanceUnavailable, "planner has no distance provider")
	}
	dm, err := buildDistanceMatrix(ctx, p.Distances, p.Zones.Depot(), dests)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			if errors.Is(ctxErr, context.DeadlineExceeded) {
				return nil, apperr.Wrap(err, apperr.CodeTimeout, "distance lookup timed out")
			}
			return nil, fmt.Errorf("plan: %w", err)
		}
		return nil, apperr.Wrap(err, apperr.CodeDistanceUnavailable, "build distance matrix")
	}
	return dm, nil
}

func validateDestinations(dests []*domain.Destination) error {
	seen := make(map[string]struct{}, len(dests))
	for i, d := range dests {
		if d == nil {
			return apperr.Newf(apperr.CodeInvalidInput, "destination at index %d is nil", i)
		}
		if d.ID == "" {
			return apperr.Newf(apperr.CodeInvalidInput, "destination at index %d has no id", i)
		}
		if _, dup := seen[d.ID]; dup {
			return apperr.Newf(apperr.CodeInvalidInput, "duplicate destination id %q", d.ID)
		}
		seen[d.ID] = struct{}{}

		if d.Weight < 0 || d.Volume < 0 || math.IsNaN(d.Weight) || math.IsNaN(d.Volume) ||
			math.IsInf(d.Weight, 0) || math.IsInf(d.Volume, 0) {
			return apperr.Newf(apperr.CodeInvalidInput, "destination %q: weight and volume must be finite and >= 0", d.ID)
		}
		if c := d.Location.Coords; c != nil && (c.Lat < -90 || c.Lat > 90 || c.Lon < -180 || c.Lon > 180) {
			return apperr.Newf(apperr.CodeInvalidInput, "destination %q: coordinates out of range", d.ID)
		}
	}
	return nil
}

func statusLabel(s domain.OptimizerStatus) string {
	if s == domain.StatusNotRun {
		return "none"
	}
	return string(s)
}
