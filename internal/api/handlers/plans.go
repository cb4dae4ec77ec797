package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"net/http"
	"strings"
	"time"

	"trip-assignment-service/internal/api/dto"
	"trip-assignment-service/internal/domain"
	"trip-assignment-service/internal/platform/apperr"
	"trip-assignment-service/internal/services"
)

// TripPlanner is the planning surface the handler depends on.
type TripPlanner interface {
	Plan(ctx context.Context, dests []*domain.Destination, opts services.Options) (*domain.Plan, error)
	PlanFromRepository(ctx context.Context, opts services.Options) (*domain.Plan, error)
}

type PlanHandler struct {
	Planner  TripPlanner
	Defaults services.Options
}

// Plan assigns destinations to trips, either the ones in the request body
// or, when none are given, everything in the repository.
func (h *PlanHandler) Plan(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	var req dto.PlanRequest

	dec := json.NewDecoder(r.Body)
	defer r.Body.Close()
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid json body")
		return
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		writeError(w, r, http.StatusBadRequest, "body must contain only one JSON object")
		return
	}

	opts, err := h.options(req)
	if err != nil {
		writeAppError(w, r, "plan", err)
		return
	}

	var plan *domain.Plan
	if len(req.Destinations) > 0 {
		dests, err := toDestinations(req.Destinations)
		if err != nil {
			writeAppError(w, r, "plan", err)
			return
		}
		plan, err = h.Planner.Plan(r.Context(), dests, opts)
		if err != nil {
			writeAppError(w, r, "plan", err)
			return
		}
	} else {
		plan, err = h.Planner.PlanFromRepository(r.Context(), opts)
		if err != nil {
			writeAppError(w, r, "plan", err)
			return
		}
	}

	writeJSON(w, r, http.StatusOK, planResponse(plan))
}

func (h *PlanHandler) options(req dto.PlanRequest) (services.Options, error) {
	opts := h.Defaults
	opts.Buffers = maps.Clone(h.Defaults.Buffers)
	if opts.Buffers == nil {
		opts.Buffers = make(map[string]float64)
	}

	if m := strings.TrimSpace(req.Method); m != "" {
		opts.Method = domain.Method(strings.ToLower(m))
	}
	for bt, b := range req.Buffers {
		opts.Buffers[strings.ToLower(strings.TrimSpace(bt))] = b
	}
	if req.MinStopDistanceKm != nil {
		opts.MinStopDistanceKm = *req.MinStopDistanceKm
	}
	if req.MaxStopDistanceKm != nil {
		opts.MaxStopDistanceKm = *req.MaxStopDistanceKm
	}
	if req.MinDropsBeforeMerge != nil {
		opts.MinDropsBeforeMerge = *req.MinDropsBeforeMerge
	}
	if req.MinUtilization != nil {
		opts.MinUtilization = *req.MinUtilization
	}
	if req.OptimizerTimeLimitSeconds != nil {
		s := *req.OptimizerTimeLimitSeconds
		if s <= 0 || s > 600 {
			return opts, apperr.New(apperr.CodeInvalidInput, "optimizer_time_limit_seconds must be within (0, 600]")
		}
		opts.OptimizerTimeLimit = time.Duration(s * float64(time.Second))
	}

	if err := opts.Validate(); err != nil {
		return opts, apperr.Wrap(err, apperr.CodeInvalidInput, "invalid planning options")
	}
	return opts, nil
}

func toDestinations(in []dto.DestinationRequest) ([]*domain.Destination, error) {
	out := make([]*domain.Destination, 0, len(in))
	for i, d := range in {
		if (d.Lat == nil) != (d.Lon == nil) {
			return nil, apperr.Newf(apperr.CodeInvalidInput, "destination at index %d: lat and lon must be given together", i)
		}

		dest := &domain.Destination{
			ID:           strings.TrimSpace(d.ID),
			Name:         d.Name,
			Weight:       d.Weight,
			Volume:       d.Volume,
			BusinessType: d.BusinessType,
			Location: domain.Location{
				Code:        d.LocationCode,
				Province:    d.Province,
				District:    d.District,
				Subdistrict: d.Subdistrict,
			},
		}
		if d.Lat != nil {
			dest.Location.Coords = &domain.Coordinates{Lat: *d.Lat, Lon: *d.Lon}
		}
		if c := strings.TrimSpace(d.Ceiling); c != "" {
			class, err := domain.ParseVehicleClass(c)
			if err != nil {
				return nil, apperr.Wrap(err, apperr.CodeInvalidInput, fmt.Sprintf("destination %q", dest.ID))
			}
			dest.Ceiling = class
		}
		out = append(out, dest)
	}
	return out, nil
}

func planResponse(p *domain.Plan) dto.PlanResponse {
	res := dto.PlanResponse{
		PlanID:          p.ID,
		CreatedAt:       p.CreatedAt,
		Method:          string(p.Method),
		OptimizerStatus: string(p.OptimizerStatus),
		Resolved:        p.Resolved,
		Trips:           make([]dto.TripResponse, 0, len(p.Summaries)),
		Issues:          make([]dto.IssueResponse, 0, len(p.Issues)),
		Assignment:      p.Assignment(),
	}

	for _, s := range p.Summaries {
		res.Trips = append(res.Trips, dto.TripResponse{
			TripID:               s.TripID,
			VehicleClass:         s.Class.String(),
			Drops:                s.Drops,
			TotalWeight:          dto.Round(s.TotalWeight, 2),
			TotalVolume:          dto.Round(s.TotalVolume, 3),
			WeightUtilizationPct: dto.Round(s.WeightUtilization, 1),
			VolumeUtilizationPct: dto.Round(s.VolumeUtilization, 1),
			Zones:                s.Zones,
			DestinationIDs:       s.DestinationIDs,
			Infeasible:           s.Infeasible,
		})
	}
	for _, is := range p.Issues {
		res.Issues = append(res.Issues, dto.IssueResponse{
			Kind:          string(is.Kind),
			DestinationID: is.DestinationID,
			TripID:        is.TripID,
			Detail:        is.Detail,
		})
	}

	return res
}
