// Package server implements the reference backend HTTP API over the SQLite
// store.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/idro/idro/internal/config"
	"github.com/idro/idro/internal/database"
	"github.com/idro/idro/internal/repository"
	"github.com/idro/idro/internal/services/demand"
)

// requestTimeout bounds every database call made by a handler.
const requestTimeout = 5 * time.Second

// HealthChecker reports whether the store answers queries.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Server serves the alert, camp and analytics endpoints.
type Server struct {
	alerts      *repository.AlertRepository
	camps       *repository.CampRepository
	predictions *repository.PredictionRepository
	estimator   *demand.Estimator
	health      HealthChecker
	origins     []string
	logger      *slog.Logger
}

// New creates a server over db. The estimator computes impact reports.
func New(db *database.DB, estimator *demand.Estimator, cfg config.ServerConfig, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		alerts:      repository.NewAlertRepository(db.DB),
		camps:       repository.NewCampRepository(db.DB),
		predictions: repository.NewPredictionRepository(db.DB),
		estimator:   estimator,
		health:      db,
		origins:     cfg.AllowedOrigins,
		logger:      logger,
	}
}

// Routes wires middlewares and endpoints under /api.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	origins := s.origins
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173", "http://localhost:3000"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Route("/api", func(api chi.Router) {
		api.Get("/health", s.handleHealth)

		api.Route("/alerts", func(ar chi.Router) {
			ar.Get("/", s.handleListAlerts)
			ar.Post("/", s.handleCreateAlert)
			ar.Get("/{id}", s.handleGetAlert)
			ar.Put("/{id}", s.handleUpdateAlert)
			ar.Delete("/{id}", s.handleDeleteAlert)
			ar.Put("/{id}/assign", s.handleAssignAlert)
			ar.Put("/{id}/resolve", s.handleResolveAlert)
		})

		api.Route("/camps", func(cr chi.Router) {
			cr.Get("/", s.handleListCamps)
			cr.Post("/", s.handleCreateCamp)
			cr.Get("/critical", s.handleCriticalCamps)
			cr.Get("/by-alert/{alertId}", s.handleCampsByAlert)
			cr.Get("/{id}", s.handleGetCamp)
		})

		api.Route("/analytics", func(nr chi.Router) {
			nr.Get("/stats", s.handleStats)
			nr.Get("/impact/{id}", s.handleImpact)
		})
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	if err := s.health.HealthCheck(ctx); err != nil {
		s.logger.Error("health check failed", "error", err)
		http.Error(w, "database unavailable", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
		)
	})
}
