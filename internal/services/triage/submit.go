package triage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/idro/idro/internal/models"
)

// VolunteerTrustScore is the trust score given to reports filed through the
// volunteer console.
const VolunteerTrustScore = 80

// Severity levels accepted on a field report.
var severityLevels = []string{"Low", "Moderate", "High", "Critical"}

// ReportDraft is a field report as entered by a volunteer. It is preserved
// untouched when submission fails so it can be retried.
type ReportDraft struct {
	AlertID        string      `json:"alertId,omitempty"`
	Location       string      `json:"location"`
	Latitude       *float64    `json:"latitude,omitempty"`
	Longitude      *float64    `json:"longitude,omitempty"`
	Type           string      `json:"type"`
	Severity       string      `json:"severity"`
	Urgency        string      `json:"urgency,omitempty"`
	AffectedCount  int         `json:"affectedCount"`
	InjuredCount   int         `json:"injuredCount"`
	Missing        string      `json:"missing,omitempty"`
	Infrastructure []string    `json:"infrastructure,omitempty"`
	Needs          []string    `json:"needs,omitempty"`
	Camps          []CampDraft `json:"camps,omitempty"`
}

// CampDraft is a camp attached to a field report.
type CampDraft struct {
	Name     string   `json:"name"`
	Location string   `json:"location,omitempty"`
	People   int      `json:"people"`
	Needs    []string `json:"needs,omitempty"`
}

// Validate checks that the draft can be submitted.
func (d *ReportDraft) Validate() error {
	var errs []error

	hasCoords := d.Latitude != nil && d.Longitude != nil
	if strings.TrimSpace(d.Location) == "" && !hasCoords {
		errs = append(errs, models.NewValidationError("location", "location or coordinates are required"))
	}
	if strings.TrimSpace(d.Type) == "" {
		errs = append(errs, models.NewValidationError("type", "is required"))
	}
	if !slices.ContainsFunc(severityLevels, func(s string) bool { return strings.EqualFold(s, strings.TrimSpace(d.Severity)) }) {
		errs = append(errs, models.NewValidationError("severity", "must be one of %s", strings.Join(severityLevels, ", ")))
	}
	if d.AffectedCount < 0 {
		errs = append(errs, models.NewValidationError("affectedCount", "must be non-negative"))
	}
	if d.InjuredCount < 0 {
		errs = append(errs, models.NewValidationError("injuredCount", "must be non-negative"))
	}
	for i, c := range d.Camps {
		if c.People < 0 {
			errs = append(errs, models.NewValidationError(fmt.Sprintf("camps[%d].people", i), "must be non-negative"))
		}
	}

	return errors.Join(errs...)
}

// SubmitError reports a failed submission. Draft is the unchanged input.
// AlertID is set when the alert was stored but a camp failed, so a retry
// can update it instead of filing a duplicate.
type SubmitError struct {
	Draft   ReportDraft
	AlertID string
	Err     error
}

func (e *SubmitError) Error() string {
	return fmt.Sprintf("submitting report: %v", e.Err)
}

func (e *SubmitError) Unwrap() error {
	return e.Err
}

// ReportAPI is the subset of the backend used to file reports.
type ReportAPI interface {
	CreateAlert(ctx context.Context, d models.Disaster) (*models.Disaster, error)
	UpdateAlert(ctx context.Context, id string, d models.Disaster) (*models.Disaster, error)
	CreateCamp(ctx context.Context, c models.Camp) (*models.Camp, error)
}

// SubmitResult is what the backend stored for a report.
type SubmitResult struct {
	Alert models.Disaster
	Camps []models.Camp
}

// Submitter files volunteer reports.
type Submitter struct {
	api    ReportAPI
	logger *slog.Logger
}

// NewSubmitter creates a new submitter.
func NewSubmitter(api ReportAPI, logger *slog.Logger) *Submitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Submitter{api: api, logger: logger}
}

// Submit validates and files a report, then attaches its named camps to the
// resulting alert.
func (s *Submitter) Submit(ctx context.Context, draft ReportDraft) (*SubmitResult, error) {
	if err := draft.Validate(); err != nil {
		return nil, &SubmitError{Draft: draft, Err: err}
	}

	alert := BuildAlert(draft)

	var stored *models.Disaster
	var err error
	if draft.AlertID != "" {
		stored, err = s.api.UpdateAlert(ctx, draft.AlertID, alert)
	} else {
		stored, err = s.api.CreateAlert(ctx, alert)
	}
	if err != nil {
		s.logger.Warn("report submission failed", "location", alert.Location, "error", err)
		return nil, &SubmitError{Draft: draft, Err: err}
	}
	if stored == nil {
		stored = &alert
	}
	if stored.ID == "" {
		stored.ID = draft.AlertID
	}

	result := &SubmitResult{Alert: *stored}
	for _, cd := range draft.Camps {
		if strings.TrimSpace(cd.Name) == "" {
			continue
		}
		camp := BuildCamp(cd, *stored)
		created, err := s.api.CreateCamp(ctx, camp)
		if err != nil {
			s.logger.Warn("camp submission failed",
				"alert_id", stored.ID,
				"camp", cd.Name,
				"error", err,
			)
			return nil, &SubmitError{Draft: draft, AlertID: stored.ID, Err: fmt.Errorf("creating camp %q: %w", cd.Name, err)}
		}
		if created == nil {
			created = &camp
		}
		result.Camps = append(result.Camps, *created)
	}

	s.logger.Info("report submitted", "alert_id", stored.ID, "camps", len(result.Camps))
	return result, nil
}

// BuildAlert maps a draft to the alert payload sent to the backend.
func BuildAlert(d ReportDraft) models.Disaster {
	trust := VolunteerTrustScore
	affected := d.AffectedCount
	injured := d.InjuredCount

	alert := models.Disaster{
		Type:          models.NormalizeDisasterType(d.Type),
		Location:      strings.TrimSpace(d.Location),
		MissionStatus: models.MissionStatusOpen,
		TrustScore:    &trust,
		AffectedCount: &affected,
		InjuredCount:  &injured,
		Magnitude:     canonicalSeverity(d.Severity),
		Color:         models.AlertColorOrange,
		SourceType:    models.SourceVolunteerApp,
		ReporterLevel: "VOLUNTEER",
		Impact:        "Needs: " + strings.Join(d.Needs, ", "),
		Details:       fmt.Sprintf("Infra: %s | Needs: %s", strings.Join(d.Infrastructure, ", "), strings.Join(d.Needs, ", ")),
	}

	if d.Latitude != nil && d.Longitude != nil {
		alert.Latitude = *d.Latitude
		alert.Longitude = *d.Longitude
		if alert.Location == "" {
			alert.Location = models.PlaceholderLocation(alert.Latitude, alert.Longitude)
		}
	}

	switch alert.Magnitude {
	case "High", "Critical":
		alert.Color = models.AlertColorRed
	}

	return alert
}

// BuildCamp maps a camp draft to the camp payload for alert.
func BuildCamp(c CampDraft, alert models.Disaster) models.Camp {
	level := func(need string) string {
		if slices.ContainsFunc(c.Needs, func(n string) bool { return strings.EqualFold(n, need) }) {
			return "Available"
		}
		return string(models.StockLow)
	}

	loc := strings.TrimSpace(c.Location)
	if loc == "" {
		loc = alert.Location
	}

	return models.Camp{
		AlertID:    alert.ID,
		Name:       strings.TrimSpace(c.Name),
		Location:   loc,
		Population: c.People,
		Latitude:   alert.Latitude,
		Longitude:  alert.Longitude,
		Stock: models.Stock{
			"food":     level("Food"),
			"water":    level("Water"),
			"medicine": level("Medicines"),
		},
	}
}

func canonicalSeverity(s string) string {
	for _, lvl := range severityLevels {
		if strings.EqualFold(lvl, strings.TrimSpace(s)) {
			return lvl
		}
	}
	return s
}
