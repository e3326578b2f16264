package testutil

import (
	"github.com/google/uuid"

	"github.com/idro/idro/internal/models"
)

// IntPtr returns a pointer to v.
func IntPtr(v int) *int {
	return &v
}

// FixtureDisaster creates an OPEN flood alert with sensible defaults.
func FixtureDisaster(overrides ...func(*models.Disaster)) *models.Disaster {
	d := &models.Disaster{
		ID:            uuid.New().String(),
		Type:          models.DisasterTypeFlood,
		Location:      "Kochi, Kerala",
		Latitude:      9.9312,
		Longitude:     76.2673,
		MissionStatus: models.MissionStatusOpen,
		TrustScore:    IntPtr(80),
		AffectedCount: IntPtr(1200),
		InjuredCount:  IntPtr(40),
		Magnitude:     "High",
		Color:         models.AlertColorRed,
		SourceType:    models.SourceVolunteerApp,
		ReporterLevel: "VOLUNTEER",
	}

	for _, override := range overrides {
		override(d)
	}
	return d
}

// FixtureAssignedDisaster creates an alert already claimed by responder.
func FixtureAssignedDisaster(responder string, overrides ...func(*models.Disaster)) *models.Disaster {
	return FixtureDisaster(append([]func(*models.Disaster){
		func(d *models.Disaster) {
			d.MissionStatus = models.MissionStatusAssigned
			d.ResponderName = responder
		},
	}, overrides...)...)
}

// FixtureCamp creates a camp of 600 people with stable stock.
func FixtureCamp(alertID string, overrides ...func(*models.Camp)) *models.Camp {
	c := &models.Camp{
		ID:           uuid.New().String(),
		AlertID:      alertID,
		Name:         "Govt School Relief Camp",
		Location:     "Ernakulam",
		Population:   600,
		InjuredCount: 12,
		Latitude:     9.98,
		Longitude:    76.28,
		Stock: models.Stock{
			"food":     string(models.StockStable),
			"water":    string(models.StockStable),
			"medicine": string(models.StockLow),
		},
	}

	for _, override := range overrides {
		override(c)
	}
	return c
}
