// Package api provides the local HTTP server the crumb UI talks to.
// It exposes the feed, the peer table, network controls, and a live
// event stream.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/crumbnet/crumb/internal/bus"
	"github.com/crumbnet/crumb/internal/domain"
	"github.com/crumbnet/crumb/internal/health"
	"github.com/crumbnet/crumb/internal/p2p"
)

// Server is the crumb HTTP API server.
type Server struct {
	coordinator    *p2p.Coordinator
	bus            *bus.Bus
	checker        *health.Checker
	metricsEnabled bool
}

// NewServer creates a new API server around the network coordinator.
func NewServer(coordinator *p2p.Coordinator, eventBus *bus.Bus) *Server {
	return &Server{coordinator: coordinator, bus: eventBus}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// SetChecker wires the health checker into /health.
func (s *Server) SetChecker(c *health.Checker) { s.checker = c }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(corsMiddleware)

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/version", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{
				"version": "0.1.0",
			})
		})

		r.Get("/posts", s.handleListPosts)
		r.Post("/posts", s.handleCreatePost)

		r.Get("/peers", s.handleListPeers)
		r.Get("/peers/active", s.handleActivePeers)
		r.Get("/history", s.handleScanHistory)

		r.Post("/connect", s.handleConnect)
		r.Post("/discover", s.handleDiscover)
		r.Post("/sync", s.handleSync)

		r.Get("/tor", s.handleTorStatus)
		r.Put("/tor", s.handleTorToggle)

		r.Get("/events", s.handleEvents)
	})

	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	return r
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"message": msg,
			"type":    "error",
		},
	})
}

// writeDomainError maps domain sentinels onto HTTP statuses so the UI
// can phrase its guidance per failure class.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotInitialized):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, domain.ErrMalformedAdvertisement),
		errors.Is(err, domain.ErrStaleAdvertisement),
		errors.Is(err, domain.ErrSelfAdvertised),
		errors.Is(err, domain.ErrEmptyContent):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrConnectFailed):
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// corsMiddleware adds CORS headers for local development.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
