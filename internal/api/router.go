package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"trip-assignment-service/internal/api/handlers"
	"trip-assignment-service/internal/platform/metrics"
	"trip-assignment-service/internal/ports"
	"trip-assignment-service/internal/services"
)

// NewRouter wires HTTP handlers with their dependencies and returns an http.Handler.
// This is the API composition root (handlers stay unaware of concrete adapters).
func NewRouter(repo ports.DestinationRepository, planner handlers.TripPlanner, defaults services.Options) http.Handler {
	metrics.RegisterDefault()

	mux := http.NewServeMux()

	destHandler := &handlers.DestinationHandler{Repo: repo}
	planHandler := &handlers.PlanHandler{
		Planner:  planner,
		Defaults: defaults,
	}

	mux.HandleFunc("/health", handlers.Health)
	mux.HandleFunc("/destinations", destHandler.List)
	mux.HandleFunc("/plans", planHandler.Plan)
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	return requestIDMiddleware(loggingMiddleware(mux))
}
