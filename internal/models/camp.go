package models

import (
	"errors"
	"sort"
	"strings"
)

// StockLevel is the qualitative level of a camp resource.
type StockLevel string

const (
	StockCritical   StockLevel = "Critical"
	StockLow        StockLevel = "Low"
	StockStable     StockLevel = "Stable"
	StockSufficient StockLevel = "Sufficient"
	StockFull       StockLevel = "Full"
)

// ParseStockLevel normalizes a raw level. "Available" is accepted as an alias
// of Stable. Unknown values return false.
func ParseStockLevel(s string) (StockLevel, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "critical":
		return StockCritical, true
	case "low":
		return StockLow, true
	case "stable", "available":
		return StockStable, true
	case "sufficient":
		return StockSufficient, true
	case "full":
		return StockFull, true
	default:
		return "", false
	}
}

// Stock maps resource names (food, water, medicine...) to raw level strings.
type Stock map[string]string

// Resources returns the resource names in sorted order.
func (s Stock) Resources() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns how many resources are at the given level.
func (s Stock) Count(level StockLevel) int {
	n := 0
	for _, raw := range s {
		if l, ok := ParseStockLevel(raw); ok && l == level {
			n++
		}
	}
	return n
}

// Level returns the parsed level of a resource, matched case-insensitively.
func (s Stock) Level(resource string) (StockLevel, bool) {
	for name, raw := range s {
		if strings.EqualFold(name, resource) {
			return ParseStockLevel(raw)
		}
	}
	return "", false
}

// Supplies holds on-hand quantities reported for a camp.
type Supplies struct {
	FoodPackets int `json:"foodPackets"`
	WaterLiters int `json:"waterLiters"`
	Beds        int `json:"beds"`
	MedicalKits int `json:"medicalKits"`
}

// Camp is a relief shelter linked to a disaster.
type Camp struct {
	ID           string    `json:"id"`
	AlertID      string    `json:"alertId,omitempty"`
	Name         string    `json:"name"`
	Location     string    `json:"location"`
	Population   int       `json:"population"`
	InjuredCount int       `json:"injuredCount,omitempty"`
	Latitude     float64   `json:"latitude"`
	Longitude    float64   `json:"longitude"`
	Stock        Stock     `json:"stock,omitempty"`
	Allocated    *Supplies `json:"allocated,omitempty"`
	IncomingAid  string    `json:"incomingAid,omitempty"`
	CreatedAt    string    `json:"createdAt,omitempty"`
	UpdatedAt    string    `json:"updatedAt,omitempty"`
}

// Validate checks if the camp data is valid.
func (c *Camp) Validate() error {
	var errs []error

	if strings.TrimSpace(c.Name) == "" {
		errs = append(errs, NewValidationError("name", "is required"))
	}
	if c.Population < 0 {
		errs = append(errs, NewValidationError("population", "must be non-negative, got %d", c.Population))
	}
	if c.InjuredCount < 0 {
		errs = append(errs, NewValidationError("injuredCount", "must be non-negative, got %d", c.InjuredCount))
	}
	for _, name := range c.Stock.Resources() {
		if _, ok := ParseStockLevel(c.Stock[name]); !ok {
			errs = append(errs, NewValidationError("stock."+name, "unknown level %q", c.Stock[name]))
		}
	}

	return errors.Join(errs...)
}

// RiskLevel buckets a risk score.
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

// Severe returns true for HIGH and CRITICAL.
func (l RiskLevel) Severe() bool {
	return l == RiskHigh || l == RiskCritical
}

// Urgency is the response-time requirement of a camp.
type Urgency string

const (
	UrgencyImmediate Urgency = "IMMEDIATE"
	Urgency6Hours    Urgency = "6 HOURS"
	Urgency12Hours   Urgency = "12 HOURS"
	Urgency24Hours   Urgency = "24 HOURS"
)

// Rank orders urgencies; lower is more urgent.
func (u Urgency) Rank() int {
	switch u {
	case UrgencyImmediate:
		return 0
	case Urgency6Hours:
		return 1
	case Urgency12Hours:
		return 2
	default:
		return 3
	}
}

// PredictionSource distinguishes model-backed from deterministic predictions.
type PredictionSource string

const (
	SourceML       PredictionSource = "ML"
	SourceFallback PredictionSource = "FALLBACK"
)

// NormalizePredictionSource maps the spellings used by the backend
// ("ML", "Fallback") onto the canonical values.
func NormalizePredictionSource(s string) (PredictionSource, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ML":
		return SourceML, true
	case "FALLBACK":
		return SourceFallback, true
	default:
		return "", false
	}
}

// Prediction holds the estimator output for one camp. These fields are
// derived and never hand-entered.
type Prediction struct {
	FoodPackets          int              `json:"predictedFood"`
	WaterLiters          int              `json:"predictedWater"`
	Beds                 int              `json:"predictedBeds"`
	MedicalKits          int              `json:"predictedMedicalKits"`
	Volunteers           int              `json:"predictedVolunteers"`
	Ambulances           int              `json:"predictedAmbulances"`
	RiskScore            float64          `json:"riskScore"`
	RiskLevel            RiskLevel        `json:"riskLevel"`
	Urgency              Urgency          `json:"urgency"`
	SaturationPercentage int              `json:"saturationPercentage"`
	Source               PredictionSource `json:"predictionSource"`
	Explanations         []string         `json:"explanations"`
}

// CampAnalysis is one entry of an impact report: a camp with its prediction.
type CampAnalysis struct {
	CampID       string `json:"campId"`
	CampName     string `json:"campName"`
	Population   int    `json:"population"`
	InjuredCount int    `json:"injuredCount"`
	Prediction
}

// ImpactReport is the backend response for GET /analytics/impact/{id}.
type ImpactReport struct {
	MissionID        string         `json:"missionId"`
	DisasterType     string         `json:"disasterType"`
	Severity         string         `json:"severity,omitempty"`
	OverallRiskScore float64        `json:"overallRiskScore"`
	CampAnalysisList []CampAnalysis `json:"campAnalysisList"`
}

// ResourceTotals sums predicted needs across camps.
type ResourceTotals struct {
	Camps       int `json:"camps"`
	Population  int `json:"population"`
	Injured     int `json:"injured"`
	FoodPackets int `json:"foodPackets"`
	WaterLiters int `json:"waterLiters"`
	Beds        int `json:"beds"`
	MedicalKits int `json:"medicalKits"`
	Volunteers  int `json:"volunteers"`
	Ambulances  int `json:"ambulances"`
}

// ImpactSummary is the disaster-level rollup produced by the aggregation engine.
type ImpactSummary struct {
	DisasterID       string         `json:"disasterId,omitempty"`
	DisasterType     DisasterType   `json:"disasterType"`
	Totals           ResourceTotals `json:"totals"`
	OverallRiskScore float64        `json:"overallRiskScore"`
	Recommendations  []string       `json:"recommendations"`
	Camps            []CampAnalysis `json:"camps"`
	FallbackCamps    int            `json:"fallbackCamps"`
}
