package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trip-assignment-service/internal/adapters/distance"
	"trip-assignment-service/internal/api/dto"
	"trip-assignment-service/internal/domain"
	"trip-assignment-service/internal/services"
	"trip-assignment-service/internal/zone"
)

type fakeRepo struct {
	dests []*domain.Destination
	err   error
}

func (f *fakeRepo) LoadDestinations(context.Context) ([]*domain.Destination, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]*domain.Destination, 0, len(f.dests))
	for _, d := range f.dests {
		c := *d
		out = append(out, &c)
	}
	return out, nil
}

func coords(lat, lon float64) *domain.Coordinates {
	return &domain.Coordinates{Lat: lat, Lon: lon}
}

func newTestRouter(repo *fakeRepo) http.Handler {
	depot := domain.Coordinates{Lat: 13.7563, Lon: 100.5018}
	zones := zone.NewClassifier(zone.Table{
		Provinces:      map[string]string{"Bangkok": "CENTRAL", "Chon Buri": "EAST", "Nakhon Pathom": "WEST"},
		ForbiddenPairs: [][2]string{{"EAST", "WEST"}},
	}, depot, zone.DefaultSettings())

	prov := distance.NewProvider(nil, nil, distance.DefaultProviderConfig())
	planner := services.NewPlanner(prov, zones, nil, domain.DefaultCapacityModel())
	planner.Destinations = repo

	return NewRouter(repo, planner, services.DefaultOptions())
}

func seededRepo() *fakeRepo {
	return &fakeRepo{dests: []*domain.Destination{
		{ID: "D1", Name: "One", Weight: 100, Volume: 1, Location: domain.Location{Code: "L1", Province: "Bangkok", Coords: coords(13.80, 100.55)}},
		{ID: "D2", Name: "Two", Weight: 100, Volume: 1, Location: domain.Location{Code: "L2", Province: "Bangkok", Coords: coords(13.85, 100.60)}},
		{ID: "D3", Name: "Three", Weight: 100, Volume: 1, Location: domain.Location{Code: "L3", Province: "Bangkok"}, Ceiling: domain.ClassSmall},
	}}
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	h := newTestRouter(seededRepo())

	rec := do(t, h, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = do(t, h, http.MethodPost, "/health", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, http.MethodGet, rec.Header().Get("Allow"))
}

func TestRequestIDIsPropagated(t *testing.T) {
	h := newTestRouter(seededRepo())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))
}

func TestListDestinations(t *testing.T) {
	h := newTestRouter(seededRepo())

	rec := do(t, h, http.MethodGet, "/destinations", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var res dto.ListDestinationsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.Len(t, res.Destinations, 3)
	assert.Equal(t, "D1", res.Destinations[0].ID)
	require.NotNil(t, res.Destinations[0].Coordinates)
	assert.Equal(t, 13.80, res.Destinations[0].Coordinates.Lat)
	assert.Nil(t, res.Destinations[2].Coordinates)
	assert.Equal(t, "small", res.Destinations[2].Ceiling)
}

func TestListDestinationsRepositoryFailure(t *testing.T) {
	h := newTestRouter(&fakeRepo{err: errors.New("disk on fire")})

	rec := do(t, h, http.MethodGet, "/destinations", "")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "disk on fire")
}

func TestPlanFromRepository(t *testing.T) {
	h := newTestRouter(seededRepo())

	rec := do(t, h, http.MethodPost, "/plans", `{}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res dto.PlanResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.NotEmpty(t, res.PlanID)
	assert.Equal(t, "heuristic", res.Method)
	assert.Len(t, res.Assignment, 3)

	kinds := map[string]int{}
	for _, is := range res.Issues {
		kinds[is.Kind]++
	}
	assert.Equal(t, 1, kinds["MISSING_LOCATION"])
	assert.Equal(t, 1, kinds["DEGRADED_DISTANCE"])
}

func TestPlanInlineDestinations(t *testing.T) {
	h := newTestRouter(seededRepo())

	body := `{
		"method": "heuristic",
		"destinations": [
			{"id": "E1", "weight": 100, "volume": 1, "province": "Chon Buri", "lat": 13.60, "lon": 100.80},
			{"id": "W1", "weight": 100, "volume": 1, "province": "Nakhon Pathom", "lat": 13.61, "lon": 100.81},
			{"id": "C1", "weight": 333.333, "volume": 1.23456, "province": "Bangkok", "lat": 13.80, "lon": 100.55, "ceiling": "small"}
		]
	}`
	rec := do(t, h, http.MethodPost, "/plans", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res dto.PlanResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.NotEqual(t, res.Assignment["E1"], res.Assignment["W1"])

	var c1 *dto.TripResponse
	for i := range res.Trips {
		for _, id := range res.Trips[i].DestinationIDs {
			if id == "C1" {
				c1 = &res.Trips[i]
			}
		}
	}
	require.NotNil(t, c1)
	assert.Equal(t, "small", c1.VehicleClass)
	if c1.Drops == 1 {
		assert.Equal(t, 333.33, c1.TotalWeight)
		assert.Equal(t, 1.235, c1.TotalVolume)
	}
}

func TestPlanRejectsBadRequests(t *testing.T) {
	tests := []struct {
		name   string
		method string
		body   string
		status int
	}{
		{"wrong method", http.MethodGet, ``, http.StatusMethodNotAllowed},
		{"malformed json", http.MethodPost, `{"method":`, http.StatusBadRequest},
		{"unknown field", http.MethodPost, `{"trucks": 3}`, http.StatusBadRequest},
		{"two objects", http.MethodPost, `{} {}`, http.StatusBadRequest},
		{"unknown method", http.MethodPost, `{"method": "fastest"}`, http.StatusBadRequest},
		{"bad time limit", http.MethodPost, `{"optimizer_time_limit_seconds": -1}`, http.StatusBadRequest},
		{"bad ceiling", http.MethodPost, `{"destinations": [{"id": "X", "ceiling": "huge"}]}`, http.StatusBadRequest},
		{"half coordinates", http.MethodPost, `{"destinations": [{"id": "X", "lat": 13.1}]}`, http.StatusBadRequest},
		{"duplicate ids", http.MethodPost, `{"destinations": [{"id": "X"}, {"id": "X"}]}`, http.StatusBadRequest},
		{"negative min stop distance", http.MethodPost, `{"min_stop_distance_km": -1}`, http.StatusBadRequest},
		{"min stop distance above max", http.MethodPost, `{"min_stop_distance_km": 50, "max_stop_distance_km": 10}`, http.StatusBadRequest},
		{"negative weight", http.MethodPost, `{"destinations": [{"id": "X", "weight": -5}]}`, http.StatusBadRequest},
	}

	h := newTestRouter(seededRepo())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, tt.method, "/plans", tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}
}

// capturePlanner records the options a handler passes to the planner.
type capturePlanner struct {
	opts services.Options
}

func (c *capturePlanner) Plan(_ context.Context, _ []*domain.Destination, opts services.Options) (*domain.Plan, error) {
	c.opts = opts
	return &domain.Plan{Method: opts.Method}, nil
}

func (c *capturePlanner) PlanFromRepository(_ context.Context, opts services.Options) (*domain.Plan, error) {
	c.opts = opts
	return &domain.Plan{Method: opts.Method}, nil
}

func TestPlanAppliesOptionOverrides(t *testing.T) {
	planner := &capturePlanner{}
	h := NewRouter(seededRepo(), planner, services.DefaultOptions())

	body := `{
		"min_stop_distance_km": 0.5,
		"max_stop_distance_km": 20,
		"min_drops_before_merge": 2,
		"buffers": {" Pharmacy ": 0.8}
	}`
	rec := do(t, h, http.MethodPost, "/plans", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, 0.5, planner.opts.MinStopDistanceKm)
	assert.Equal(t, 20.0, planner.opts.MaxStopDistanceKm)
	assert.Equal(t, 2, planner.opts.MinDropsBeforeMerge)
	assert.Equal(t, 0.8, planner.opts.BufferFor("pharmacy"))
}

func TestPlanExactMethodReportsStatus(t *testing.T) {
	h := newTestRouter(seededRepo())

	body := `{
		"method": "exact",
		"optimizer_time_limit_seconds": 2,
		"destinations": [
			{"id": "B1", "weight": 100, "volume": 1.8, "province": "Bangkok", "lat": 13.80, "lon": 100.55},
			{"id": "B2", "weight": 100, "volume": 1.8, "province": "Bangkok", "lat": 13.81, "lon": 100.56},
			{"id": "B3", "weight": 100, "volume": 1.8, "province": "Bangkok", "lat": 13.82, "lon": 100.57},
			{"id": "B4", "weight": 100, "volume": 1.8, "province": "Bangkok", "lat": 13.83, "lon": 100.58}
		]
	}`
	rec := do(t, h, http.MethodPost, "/plans", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res dto.PlanResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "exact", res.Method)
	assert.Equal(t, "OPTIMAL", res.OptimizerStatus)
	assert.Len(t, res.Trips, 1)
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestRouter(seededRepo())
	do(t, h, http.MethodGet, "/health", "")

	rec := do(t, h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")
}

func TestRoundHalfAwayFromZero(t *testing.T) {
	assert.Equal(t, 60.0, dto.Round(59.99999, 1))
	assert.Equal(t, 1.235, dto.Round(1.2345, 3))
	assert.Equal(t, -0.13, dto.Round(-0.125, 2))
}
