package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/idro/idro/internal/models"
)

// handleListAlerts returns live alerts, newest first. Optional query
// parameters: status, type, responderName.
func (s *Server) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := models.AlertFilter{
		Type:          models.DisasterType(q.Get("type")),
		ResponderName: q.Get("responderName"),
	}
	if raw := q.Get("status"); raw != "" {
		status := models.MissionStatus(strings.ToUpper(raw))
		if !status.Valid() {
			writeError(w, s.logger, models.NewValidationError("status", "unknown status %q", raw))
			return
		}
		filter.Status = &status
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	alerts, err := s.alerts.List(ctx, filter)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, alerts)
}

func (s *Server) handleGetAlert(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	d, err := s.alerts.GetByID(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// handleCreateAlert stores a new report. New alerts always start OPEN with
// no responder; the lifecycle moves only through assign and resolve.
func (s *Server) handleCreateAlert(w http.ResponseWriter, r *http.Request) {
	var d models.Disaster
	if err := decodeJSON(r, &d); err != nil {
		writeError(w, s.logger, err)
		return
	}
	d.ID = ""
	d.MissionStatus = models.MissionStatusOpen
	d.ResponderName = ""

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	if err := s.alerts.Create(ctx, nil, &d); err != nil {
		writeError(w, s.logger, err)
		return
	}
	s.logger.Info("alert created", "alert_id", d.ID, "type", d.Type, "location", d.Location)
	writeJSON(w, http.StatusCreated, d)
}

func (s *Server) handleUpdateAlert(w http.ResponseWriter, r *http.Request) {
	var d models.Disaster
	if err := decodeJSON(r, &d); err != nil {
		writeError(w, s.logger, err)
		return
	}
	d.ID = chi.URLParam(r, "id")

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	if err := s.alerts.Update(ctx, nil, &d); err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleDeleteAlert(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	if err := s.alerts.SoftDelete(ctx, nil, id); err != nil {
		writeError(w, s.logger, err)
		return
	}
	s.logger.Info("alert deleted", "alert_id", id)
	w.WriteHeader(http.StatusNoContent)
}

// handleAssignAlert claims an OPEN mission. A mission that is no longer
// OPEN answers 409.
func (s *Server) handleAssignAlert(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	responder := r.URL.Query().Get("responderName")

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	d, err := s.alerts.Assign(ctx, id, responder)
	if err != nil {
		if models.IsConflict(err) {
			s.logger.Info("assignment rejected", "mission_id", id, "responder", responder, "error", err)
		}
		writeError(w, s.logger, err)
		return
	}
	s.logger.Info("mission assigned", "mission_id", id, "responder", d.ResponderName)
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleResolveAlert(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	d, err := s.alerts.Resolve(ctx, id)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	s.logger.Info("mission resolved", "mission_id", id, "responder", d.ResponderName)
	writeJSON(w, http.StatusOK, d)
}
