package models

import (
	"errors"
	"fmt"
	"strings"
)

// DefaultTrustScore is the score assumed for reports that carry none.
// It is deliberately below the confirmation threshold.
const DefaultTrustScore = 35

// ResolveTrustScore returns the effective trust score of a report.
// Every read of a trust score goes through this function.
func ResolveTrustScore(score *int) int {
	if score == nil {
		return DefaultTrustScore
	}
	return *score
}

// DisasterType is an enum-like incident category. Unknown values are
// tolerated because reports come from several sources.
type DisasterType string

const (
	DisasterTypeEarthquake DisasterType = "EARTHQUAKE"
	DisasterTypeFlood      DisasterType = "FLOOD"
	DisasterTypeFire       DisasterType = "FIRE"
	DisasterTypeCyclone    DisasterType = "CYCLONE"
	DisasterTypeLandslide  DisasterType = "LANDSLIDE"
	DisasterTypeMedical    DisasterType = "MEDICAL"
	DisasterTypeOther      DisasterType = "OTHER"
)

// NormalizeDisasterType upper-cases and trims a raw type string.
func NormalizeDisasterType(s string) DisasterType {
	return DisasterType(strings.ToUpper(strings.TrimSpace(s)))
}

// IsWaterBorne returns true for disaster types that bias urgency toward
// shorter response windows.
func (t DisasterType) IsWaterBorne() bool {
	switch NormalizeDisasterType(string(t)) {
	case DisasterTypeFlood, DisasterTypeCyclone:
		return true
	default:
		return false
	}
}

// MissionStatus is the lifecycle stage of a disaster.
type MissionStatus string

const (
	MissionStatusOpen     MissionStatus = "OPEN"
	MissionStatusAssigned MissionStatus = "ASSIGNED"
	MissionStatusResolved MissionStatus = "RESOLVED"
)

// Valid returns true if the mission status is valid.
func (s MissionStatus) Valid() bool {
	switch s {
	case MissionStatusOpen, MissionStatusAssigned, MissionStatusResolved:
		return true
	default:
		return false
	}
}

func (s MissionStatus) String() string {
	return string(s)
}

func (s MissionStatus) rank() int {
	switch s {
	case MissionStatusOpen:
		return 0
	case MissionStatusAssigned:
		return 1
	case MissionStatusResolved:
		return 2
	default:
		return -1
	}
}

// CanTransitionTo reports whether the lifecycle allows moving from s to next.
// Only single forward steps are allowed: OPEN -> ASSIGNED -> RESOLVED.
func (s MissionStatus) CanTransitionTo(next MissionStatus) bool {
	from, to := s.rank(), next.rank()
	if from < 0 || to < 0 {
		return false
	}
	return to == from+1
}

// HasResponder returns true for statuses that require a responder name.
func (s MissionStatus) HasResponder() bool {
	return s == MissionStatusAssigned || s == MissionStatusResolved
}

// AlertColor is the severity color shown on the map.
type AlertColor string

const (
	AlertColorRed    AlertColor = "RED"
	AlertColorOrange AlertColor = "ORANGE"
	AlertColorGreen  AlertColor = "GREEN"
)

// SourceType identifies where a report came from.
type SourceType string

const (
	SourceVolunteerApp SourceType = "VOLUNTEER-APP"
	SourceSatellite    SourceType = "SATELLITE"
	SourceNGO          SourceType = "NGO"
)

// Disaster is the canonical incident record, also called Alert or Mission.
type Disaster struct {
	ID            string        `json:"id"`
	Type          DisasterType  `json:"type"`
	Location      string        `json:"location"`
	Latitude      float64       `json:"latitude"`
	Longitude     float64       `json:"longitude"`
	MissionStatus MissionStatus `json:"missionStatus"`
	TrustScore    *int          `json:"trustScore,omitempty"`
	ResponderName string        `json:"responderName,omitempty"`
	AffectedCount *int          `json:"affectedCount,omitempty"`
	InjuredCount  *int          `json:"injuredCount,omitempty"`
	Details       string        `json:"details,omitempty"`
	Impact        string        `json:"impact,omitempty"`

	Magnitude     string     `json:"magnitude,omitempty"`
	Color         AlertColor `json:"color,omitempty"`
	SourceType    SourceType `json:"sourceType,omitempty"`
	ReporterLevel string     `json:"reporterLevel,omitempty"`
	CreatedAt     string     `json:"createdAt,omitempty"`
}

// EffectiveTrustScore returns the resolved trust score of the disaster.
func (d *Disaster) EffectiveTrustScore() int {
	return ResolveTrustScore(d.TrustScore)
}

// IsOpen returns true if the mission can still be claimed.
func (d *Disaster) IsOpen() bool {
	return d.MissionStatus == MissionStatusOpen
}

// Injured returns the injured count, treating null as zero.
func (d *Disaster) Injured() int {
	if d.InjuredCount == nil {
		return 0
	}
	return *d.InjuredCount
}

// Validate checks if the disaster data is valid.
func (d *Disaster) Validate() error {
	var errs []error

	if strings.TrimSpace(d.Location) == "" {
		errs = append(errs, NewValidationError("location", "is required"))
	}
	if strings.TrimSpace(string(d.Type)) == "" {
		errs = append(errs, NewValidationError("type", "is required"))
	}
	if d.MissionStatus != "" && !d.MissionStatus.Valid() {
		errs = append(errs, NewValidationError("missionStatus", "unknown status %q", d.MissionStatus))
	}
	if d.TrustScore != nil && (*d.TrustScore < 0 || *d.TrustScore > 100) {
		errs = append(errs, NewValidationError("trustScore", "must be between 0 and 100"))
	}
	if d.AffectedCount != nil && *d.AffectedCount < 0 {
		errs = append(errs, NewValidationError("affectedCount", "must be non-negative"))
	}
	if d.InjuredCount != nil && *d.InjuredCount < 0 {
		errs = append(errs, NewValidationError("injuredCount", "must be non-negative"))
	}
	if d.Latitude < -90 || d.Latitude > 90 {
		errs = append(errs, NewValidationError("latitude", "out of range"))
	}
	if d.Longitude < -180 || d.Longitude > 180 {
		errs = append(errs, NewValidationError("longitude", "out of range"))
	}

	hasResponder := d.ResponderName != ""
	if d.MissionStatus.HasResponder() && !hasResponder {
		errs = append(errs, NewValidationError("responderName", "required once status is %s", d.MissionStatus))
	}
	if !d.MissionStatus.HasResponder() && hasResponder {
		errs = append(errs, NewValidationError("responderName", "must be empty while status is %s", d.MissionStatus))
	}

	return errors.Join(errs...)
}

// PlaceholderLocation formats the location used for reports that only have
// coordinates, pending reverse geocoding.
func PlaceholderLocation(lat, lng float64) string {
	return fmt.Sprintf("Report (%.4f,%.4f)", lat, lng)
}

// DashboardStats summarizes the alert store for the console header.
type DashboardStats struct {
	TotalAlerts    int    `json:"totalAlerts"`
	ActiveAlerts   int    `json:"activeAlerts"`
	CriticalAlerts int    `json:"criticalAlerts"`
	ThreatOutlook  string `json:"threatOutlook"`
}

// AlertFilter narrows alert listings. Zero fields match everything.
type AlertFilter struct {
	Status        *MissionStatus
	Type          DisasterType
	ResponderName string
}

// Threat outlook messages for DashboardStats.
const (
	ThreatOutlookFlood  = "HIGH PROBABILITY: Heavy Rainfall expected in Coastal Areas"
	ThreatOutlookStable = "STABLE: No immediate anomalies detected."
)

// FloodThreatThreshold is the number of RED flood alerts above which the
// flood outlook is raised.
const FloodThreatThreshold = 2

// ThreatOutlookFor returns the outlook for a count of RED flood alerts.
func ThreatOutlookFor(redFloods int) string {
	if redFloods > FloodThreatThreshold {
		return ThreatOutlookFlood
	}
	return ThreatOutlookStable
}
