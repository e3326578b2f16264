// Package impact rolls per-camp predictions up into a disaster-level summary
// with ordered recommendations.
package impact

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/idro/idro/internal/models"
)

const (
	peoplePerRescueBoat   = 200
	injuredPerMedicalTeam = 20
	lowSaturationBelow    = 50
)

// MonitorRecommendation is always the last recommendation.
const MonitorRecommendation = "Monitor satellite feed every 4 hours for changes."

// Aggregate sums camp predictions and derives recommendations. It is pure;
// an empty camp list yields zero totals and only the monitor recommendation.
// Negative counts are summed as zero and scores are bounded, so totals and
// the overall risk are never negative.
func Aggregate(disasterType string, camps []models.CampAnalysis) models.ImpactSummary {
	typ := models.NormalizeDisasterType(disasterType)

	camps = bounded(camps)
	summary := models.ImpactSummary{
		DisasterType: typ,
		Camps:        camps,
	}

	var riskSum float64
	for _, c := range camps {
		t := &summary.Totals
		t.Camps++
		t.Population += c.Population
		t.Injured += c.InjuredCount
		t.FoodPackets += c.FoodPackets
		t.WaterLiters += c.WaterLiters
		t.Beds += c.Beds
		t.MedicalKits += c.MedicalKits
		t.Volunteers += c.Volunteers
		t.Ambulances += c.Ambulances

		riskSum += c.RiskScore
		if c.Source == models.SourceFallback {
			summary.FallbackCamps++
		}
	}

	if len(camps) > 0 {
		summary.OverallRiskScore = math.Round(riskSum/float64(len(camps))*100) / 100
	}

	summary.Recommendations = recommend(typ, summary.Totals, camps)
	return summary
}

// bounded copies camps with every count floored at zero, the risk score
// within [0,1] and saturation within [0,100].
func bounded(camps []models.CampAnalysis) []models.CampAnalysis {
	out := make([]models.CampAnalysis, len(camps))
	for i, c := range camps {
		c.Population = max(c.Population, 0)
		c.InjuredCount = max(c.InjuredCount, 0)
		c.FoodPackets = max(c.FoodPackets, 0)
		c.WaterLiters = max(c.WaterLiters, 0)
		c.Beds = max(c.Beds, 0)
		c.MedicalKits = max(c.MedicalKits, 0)
		c.Volunteers = max(c.Volunteers, 0)
		c.Ambulances = max(c.Ambulances, 0)
		switch {
		case math.IsNaN(c.RiskScore) || c.RiskScore < 0:
			c.RiskScore = 0
		case c.RiskScore > 1:
			c.RiskScore = 1
		}
		c.SaturationPercentage = min(max(c.SaturationPercentage, 0), 100)
		out[i] = c
	}
	return out
}

func recommend(typ models.DisasterType, totals models.ResourceTotals, camps []models.CampAnalysis) []string {
	var recs []string

	if typ == models.DisasterTypeFlood && anyCamp(camps, func(c models.CampAnalysis) bool {
		return c.Urgency == models.UrgencyImmediate || c.Urgency == models.Urgency6Hours
	}) {
		boats := max(1, ceilDiv(totals.Population, peoplePerRescueBoat))
		recs = append(recs, fmt.Sprintf("Deploy %d rescue boats immediately to flood zones.", boats))
	}

	if totals.Injured > 0 {
		teams := ceilDiv(totals.Injured, injuredPerMedicalTeam)
		recs = append(recs, fmt.Sprintf("Prioritize medical units (%d teams needed) for injured population.", teams))
	}

	if names := severeCampNames(camps); len(names) > 0 {
		recs = append(recs, fmt.Sprintf("Deploy resources first to high-risk camps: %s.", strings.Join(names, ", ")))
	}

	if anyCamp(camps, func(c models.CampAnalysis) bool {
		return c.Population > 0 && c.SaturationPercentage < lowSaturationBelow
	}) {
		recs = append(recs, "Increase supply rotation frequency in critical zones.")
	}

	return append(recs, MonitorRecommendation)
}

// severeCampNames lists HIGH and CRITICAL camps by risk descending, then name.
func severeCampNames(camps []models.CampAnalysis) []string {
	var severe []models.CampAnalysis
	for _, c := range camps {
		if c.RiskLevel.Severe() {
			severe = append(severe, c)
		}
	}

	sort.SliceStable(severe, func(i, j int) bool {
		if severe[i].RiskScore != severe[j].RiskScore {
			return severe[i].RiskScore > severe[j].RiskScore
		}
		return severe[i].CampName < severe[j].CampName
	})

	names := make([]string, 0, len(severe))
	for _, c := range severe {
		name := c.CampName
		if name == "" {
			name = c.CampID
		}
		names = append(names, name)
	}
	return names
}

func anyCamp(camps []models.CampAnalysis, pred func(models.CampAnalysis) bool) bool {
	for _, c := range camps {
		if pred(c) {
			return true
		}
	}
	return false
}

func ceilDiv(n, d int) int {
	if n <= 0 {
		return 0
	}
	return (n + d - 1) / d
}
