package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/idro/idro/internal/models"
	"github.com/idro/idro/internal/services/demand"
	"github.com/idro/idro/internal/services/impact"
)

// impactTimeout covers the per-camp ML calls of one impact run.
const impactTimeout = 30 * time.Second

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	stats, err := s.alerts.Stats(ctx)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// handleImpact runs the estimator over every camp of a mission, stores the
// predictions and returns the impact report.
func (s *Server) handleImpact(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx, cancel := context.WithTimeout(r.Context(), impactTimeout)
	defer cancel()

	report, err := s.buildImpact(ctx, id)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) buildImpact(ctx context.Context, id string) (*models.ImpactReport, error) {
	mission, err := s.alerts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	camps, err := s.camps.ListByAlert(ctx, id)
	if err != nil {
		return nil, err
	}

	inputs := make([]demand.Input, len(camps))
	for i, c := range camps {
		inputs[i] = demand.InputFromCamp(c, *mission)
	}
	predictions, err := s.estimator.EstimateAll(ctx, inputs)
	if err != nil {
		return nil, err
	}

	analyses := make([]models.CampAnalysis, len(camps))
	for i, c := range camps {
		analyses[i] = models.CampAnalysis{
			CampID:       c.ID,
			CampName:     c.Name,
			Population:   c.Population,
			InjuredCount: c.InjuredCount,
			Prediction:   predictions[i],
		}
	}

	if len(analyses) > 0 {
		if err := s.predictions.SaveAll(ctx, id, analyses); err != nil {
			s.logger.Warn("storing predictions failed", "mission_id", id, "error", err)
		}
	}

	report := &models.ImpactReport{
		MissionID:        mission.ID,
		DisasterType:     string(mission.Type),
		Severity:         mission.Magnitude,
		OverallRiskScore: impact.Aggregate(string(mission.Type), analyses).OverallRiskScore,
		CampAnalysisList: analyses,
	}
	if report.DisasterType == "" {
		report.DisasterType = "Unknown"
	}
	if report.Severity == "" {
		report.Severity = "Unknown"
	}

	s.logger.Info("impact analysis complete",
		"mission_id", id,
		"camps", len(analyses),
		"overall_risk", report.OverallRiskScore,
	)
	return report, nil
}
