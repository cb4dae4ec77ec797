package handlers

import (
	"net/http"

	"trip-assignment-service/internal/api/dto"
	"trip-assignment-service/internal/domain"
	"trip-assignment-service/internal/platform/apperr"
	"trip-assignment-service/internal/ports"
)

// DestinationHandler exposes the destinations stored for planning.
type DestinationHandler struct {
	Repo ports.DestinationRepository
}

func (h *DestinationHandler) List(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	dests, err := h.Repo.LoadDestinations(r.Context())
	if err != nil {
		writeAppError(w, r, "list destinations", apperr.Wrap(err, apperr.CodeInternal, "load destinations"))
		return
	}

	res := dto.ListDestinationsResponse{
		Destinations: make([]dto.DestinationResponse, 0, len(dests)),
	}
	for _, d := range dests {
		res.Destinations = append(res.Destinations, destinationResponse(d))
	}

	writeJSON(w, r, http.StatusOK, res)
}

func destinationResponse(d *domain.Destination) dto.DestinationResponse {
	out := dto.DestinationResponse{
		ID:           d.ID,
		Name:         d.Name,
		Weight:       d.Weight,
		Volume:       d.Volume,
		LocationCode: d.Location.Code,
		Province:     d.Location.Province,
		District:     d.Location.District,
		Subdistrict:  d.Location.Subdistrict,
		BusinessType: d.BusinessType,
	}
	if c := d.Coords(); c != nil {
		out.Coordinates = &dto.CoordinatesResponse{Lat: c.Lat, Lon: c.Lon}
	}
	if d.Ceiling.IsValid() {
		out.Ceiling = d.Ceiling.String()
	}
	return out
}
