package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry for the service.
	Registry = prometheus.NewRegistry()

	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "path", "status"},
	)
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "path", "status"},
	)

	// DistanceLookups counts resolved distance pairs by where the answer came from.
	DistanceLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "distance_lookups_total", Help: "Distance pairs resolved, by source (memory, store, routing, estimated)."},
		[]string{"source"},
	)
	RoutingRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "routing_requests_total", Help: "Routing service requests by outcome."},
		[]string{"outcome"},
	)
	CacheFlushes = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "distance_cache_flushes_total", Help: "Persistent distance cache flushes by outcome."},
		[]string{"outcome"},
	)

	PlanRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "plan_runs_total", Help: "Planning runs by method and optimizer status."},
		[]string{"method", "status"},
	)
	PlanDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "plan_duration_seconds", Help: "Planning run duration in seconds.", Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60}},
		[]string{"method"},
	)
	PlanTrips = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "plan_trips", Help: "Trips per completed plan.", Buckets: prometheus.ExponentialBuckets(1, 2, 10)},
	)
)

var regOnce sync.Once

// RegisterDefault registers all collectors on Registry.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(HTTPRequests)
		Registry.MustRegister(HTTPDuration)
		Registry.MustRegister(DistanceLookups)
		Registry.MustRegister(RoutingRequests)
		Registry.MustRegister(CacheFlushes)
		Registry.MustRegister(PlanRuns)
		Registry.MustRegister(PlanDuration)
		Registry.MustRegister(PlanTrips)
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}
