package server

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/idro/idro/internal/models"
)

func (s *Server) handleListCamps(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	camps, err := s.camps.List(ctx)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, camps)
}

func (s *Server) handleGetCamp(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	c, err := s.camps.GetByID(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleCampsByAlert(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	camps, err := s.camps.ListByAlert(ctx, chi.URLParam(r, "alertId"))
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, camps)
}

// handleCriticalCamps returns the camps reporting at least one Critical
// stock item.
func (s *Server) handleCriticalCamps(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	camps, err := s.camps.List(ctx)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}

	critical := []models.Camp{}
	for _, c := range camps {
		if c.Stock.Count(models.StockCritical) > 0 {
			critical = append(critical, c)
		}
	}
	writeJSON(w, http.StatusOK, critical)
}

func (s *Server) handleCreateCamp(w http.ResponseWriter, r *http.Request) {
	var c models.Camp
	if err := decodeJSON(r, &c); err != nil {
		writeError(w, s.logger, err)
		return
	}
	c.ID = ""

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	if err := s.camps.Create(ctx, nil, &c); err != nil {
		writeError(w, s.logger, err)
		return
	}
	s.logger.Info("camp created", "camp_id", c.ID, "alert_id", c.AlertID, "population", c.Population)
	writeJSON(w, http.StatusCreated, c)
}
