package impact

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/idro/idro/internal/models"
	"github.com/idro/idro/internal/services/demand"
)

// ReportFetcher retrieves the backend's impact analysis for a disaster.
type ReportFetcher interface {
	GetImpact(ctx context.Context, disasterID string) (*models.ImpactReport, error)
}

// Service builds impact summaries from the backend report, recomputing any
// camp the report leaves out or underspecifies.
type Service struct {
	fetcher   ReportFetcher
	estimator *demand.Estimator
	logger    *slog.Logger
}

// NewService creates a new impact service.
func NewService(fetcher ReportFetcher, estimator *demand.Estimator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{fetcher: fetcher, estimator: estimator, logger: logger}
}

// Build returns the impact summary of a disaster. camps is the locally known
// camp list for the disaster and is used to recompute missing entries.
func (s *Service) Build(ctx context.Context, disaster models.Disaster, camps []models.Camp) (models.ImpactSummary, error) {
	byID := make(map[string]models.Camp, len(camps))
	for _, c := range camps {
		byID[c.ID] = c
	}

	var reported []models.CampAnalysis
	report, err := s.fetcher.GetImpact(ctx, disaster.ID)
	if err != nil {
		s.logger.Warn("impact report unavailable, recomputing locally",
			"disaster_id", disaster.ID,
			"error", err,
		)
	} else if report != nil {
		reported = report.CampAnalysisList
	}

	entries := make([]models.CampAnalysis, 0, max(len(reported), len(camps)))
	seen := make(map[string]bool, len(camps))

	for _, a := range reported {
		camp, known := byID[a.CampID]
		if known {
			seen[a.CampID] = true
		}

		if err := CheckAnalysis(a); err != nil {
			if !known {
				s.logger.Warn("dropping underspecified camp entry", "camp_id", a.CampID, "error", err)
				continue
			}
			s.logger.Debug("recomputing underspecified camp entry", "camp_id", a.CampID, "error", err)
			fb, err := s.fallback(camp, disaster)
			if err != nil {
				return models.ImpactSummary{}, err
			}
			entries = append(entries, fb)
			continue
		}

		a.Source, _ = models.NormalizePredictionSource(string(a.Source))
		if known {
			if a.Population == 0 {
				a.Population = camp.Population
			}
			if a.InjuredCount == 0 {
				a.InjuredCount = camp.InjuredCount
			}
			if a.CampName == "" {
				a.CampName = camp.Name
			}
		}
		entries = append(entries, a)
	}

	for _, camp := range camps {
		if seen[camp.ID] {
			continue
		}
		fb, err := s.fallback(camp, disaster)
		if err != nil {
			return models.ImpactSummary{}, err
		}
		entries = append(entries, fb)
	}

	summary := Aggregate(string(disaster.Type), entries)
	summary.DisasterID = disaster.ID
	return summary, nil
}

func (s *Service) fallback(camp models.Camp, disaster models.Disaster) (models.CampAnalysis, error) {
	p, err := s.estimator.Fallback(demand.InputFromCamp(camp, disaster))
	if err != nil {
		return models.CampAnalysis{}, fmt.Errorf("estimating camp %s: %w", camp.ID, err)
	}
	return models.CampAnalysis{
		CampID:       camp.ID,
		CampName:     camp.Name,
		Population:   camp.Population,
		InjuredCount: camp.InjuredCount,
		Prediction:   p,
	}, nil
}

// CheckAnalysis reports an UnderspecifiedDataError when a camp entry lacks
// the derived fields consumers rely on.
func CheckAnalysis(a models.CampAnalysis) error {
	var missing []string
	if a.RiskLevel == "" {
		missing = append(missing, "riskLevel")
	}
	if a.Urgency == "" {
		missing = append(missing, "urgency")
	}
	if _, ok := models.NormalizePredictionSource(string(a.Source)); !ok {
		missing = append(missing, "predictionSource")
	}
	if len(missing) > 0 {
		return &models.UnderspecifiedDataError{Entity: "camp", ID: a.CampID, Missing: missing}
	}
	return nil
}
