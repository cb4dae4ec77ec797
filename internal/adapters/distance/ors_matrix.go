package distance

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"trip-assignment-service/internal/domain"
	"trip-assignment-service/internal/platform/obs"
)

type matrixRequest struct {
	Locations    [][]float64 `json:"locations"`
	Destinations []int       `json:"destinations"`
	Metrics      []string    `json:"metrics"`
	Sources      []int       `json:"sources"`
	Units        string      `json:"units"`
}

type matrixResponse struct {
	Distances [][]*float64 `json:"distances"`
}

// Matrix retrieves road distances (km) from every origin to every
// destination using the OpenRouteService matrix endpoint. Null cells are
// returned as nil.
func (o *ORSClient) Matrix(
	ctx context.Context,
	origins []domain.Coordinates,
	destinations []domain.Coordinates,
) (_ [][]*float64, err error) {
	defer obs.Time(ctx, "ors.Matrix")(&err)

	if len(origins) == 0 || len(destinations) == 0 {
		return [][]*float64{}, nil
	}

	endpoint := fmt.Sprintf("%s/v2/matrix/%s", o.baseURL, o.profile)

	locations := make([][]float64, 0, len(origins)+len(destinations))
	srcIdx := make([]int, 0, len(origins))
	for _, c := range origins {
		srcIdx = append(srcIdx, len(locations))
		locations = append(locations, c.CoordsToList())
	}
	dstIdx := make([]int, 0, len(destinations))
	for _, c := range destinations {
		dstIdx = append(dstIdx, len(locations))
		locations = append(locations, c.CoordsToList())
	}

	payload, err := json.Marshal(matrixRequest{
		Locations:    locations,
		Destinations: dstIdx,
		Metrics:      []string{"distance"},
		Sources:      srcIdx,
		Units:        "km",
	})
	if err != nil {
		return nil, fmt.Errorf("marshal matrix request: %w", err)
	}

	resp, err := o.doWithRetry(ctx, func() (*http.Request, error) {
		return o.newRequest(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	})
	if err != nil {
		return nil, fmt.Errorf("matrix request failed: %w", err)
	}
	defer resp.Body.Close()

	var mr matrixResponse
	if err := json.NewDecoder(resp.Body).Decode(&mr); err != nil {
		return nil, fmt.Errorf("decode matrix response: %w", err)
	}

	if len(mr.Distances) != len(origins) {
		return nil, fmt.Errorf("expected %d source rows; got %d", len(origins), len(mr.Distances))
	}
	for i, row := range mr.Distances {
		if len(row) != len(destinations) {
			return nil, fmt.Errorf(
				"row %d length does not match destinations: got %d want %d",
				i, len(row), len(destinations),
			)
		}
	}

	return mr.Distances, nil
}
