// Package api exposes map sessions over HTTP and websocket.
package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"wandermap/pkg/config"
	"wandermap/pkg/metrics"
	"wandermap/pkg/version"
)

// Handlers bundles everything the router dispatches to.
type Handlers struct {
	Sessions  *SessionHandler
	Stream    *StreamHandler
	Stats     *StatsHandler
	Countries *CountryHandler
	Shutdown  func()
}

// NewRouter wires routes and middleware.
func NewRouter(h Handlers) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(requestMetrics)

	r.Get("/health", handleHealth)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/version", handleVersion)
		r.Get("/log/latest", handleLatestLog)
		r.Get("/stats", h.Stats.ServeHTTP)
		r.Get("/countries", h.Countries.HandleSearch)

		if h.Shutdown != nil {
			r.Post("/shutdown", func(w http.ResponseWriter, r *http.Request) {
				slog.Info("Graceful shutdown initiated via API")
				w.WriteHeader(http.StatusOK)
				if _, err := w.Write([]byte("Shutting down...")); err != nil {
					slog.Error("Failed to write shutdown response", "error", err)
				}
				go func() {
					time.Sleep(100 * time.Millisecond)
					h.Shutdown()
				}()
			})
		}

		r.Post("/sessions", h.Sessions.HandleCreate)
		r.Route("/sessions/{sid}", func(r chi.Router) {
			r.Delete("/", h.Sessions.HandleClose)
			r.Get("/frame", h.Sessions.HandleFrame)
			r.Get("/map.svg", h.Sessions.HandleSVG)
			r.Get("/map.png", h.Sessions.HandlePNG)
			r.Get("/visits", h.Sessions.HandleVisits)
			r.Get("/visits.geojson", h.Sessions.HandleVisitsGeoJSON)
			r.Get("/locate", h.Sessions.HandleLocate)
			r.Post("/visits/toggle", h.Sessions.HandleToggle)
			r.Post("/color", h.Sessions.HandleColor)
			r.Post("/search", h.Sessions.HandleSearch)
			r.Delete("/search", h.Sessions.HandleClearSearch)
			r.Get("/ws", h.Stream.HandleStream)
		})
	})

	return r
}

// NewServer creates the HTTP server for handler.
func NewServer(cfg config.ServerConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         cfg.Address,
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout.D(),
		WriteTimeout: cfg.WriteTimeout.D(),
		IdleTimeout:  cfg.IdleTimeout.D(),
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		slog.Error("Failed to write health response", "error", err)
	}
}

func handleVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if _, err := fmt.Fprintf(w, `{"version": "%s"}`, version.Version); err != nil {
		slog.Error("Failed to write version response", "error", err)
	}
}
