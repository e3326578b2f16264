package demand

import (
	"math"

	"github.com/idro/idro/internal/models"
)

// CriticalStockFloor is the minimum risk score of a populated camp that
// reports any resource at Critical.
const CriticalStockFloor = 0.75

// Risk level thresholds.
const (
	criticalRiskAbove = 0.85
	highRiskAbove     = 0.7
	mediumRiskFrom    = 0.4
)

// Urgency thresholds on the effective score.
const (
	immediateFrom = 0.85
	sixHoursFrom  = 0.7
	twelveFrom    = 0.4

	// waterBorneBias is added to the risk score of FLOOD and CYCLONE camps
	// before bucketing urgency.
	waterBorneBias = 0.1
)

// clampScore bounds a score to [0,1] and maps NaN to 0.
func clampScore(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// RiskLevelFor buckets a risk score.
func RiskLevelFor(score float64) models.RiskLevel {
	switch {
	case score > criticalRiskAbove:
		return models.RiskCritical
	case score > highRiskAbove:
		return models.RiskHigh
	case score >= mediumRiskFrom:
		return models.RiskMedium
	default:
		return models.RiskLow
	}
}

// UrgencyFor buckets a risk score into a response window, biased toward
// shorter windows for water-borne disasters.
func UrgencyFor(score float64, disasterType models.DisasterType) models.Urgency {
	effective := score
	if disasterType.IsWaterBorne() {
		effective += waterBorneBias
	}

	switch {
	case effective >= immediateFrom:
		return models.UrgencyImmediate
	case effective >= sixHoursFrom:
		return models.Urgency6Hours
	case effective >= twelveFrom:
		return models.Urgency12Hours
	default:
		return models.Urgency24Hours
	}
}

// stockCoverage is the assumed fraction of need covered by a stock level
// when no quantities are reported.
var stockCoverage = map[models.StockLevel]float64{
	models.StockCritical:   0.1,
	models.StockLow:        0.35,
	models.StockStable:     0.75,
	models.StockSufficient: 0.9,
	models.StockFull:       1.0,
}

const unknownCoverage = 0.5

// stockAliases maps each predicted resource to the stock keys that report it.
var stockAliases = []struct {
	resource string
	keys     []string
}{
	{"food", []string{"food"}},
	{"water", []string{"water"}},
	{"beds", []string{"beds", "shelter"}},
	{"medicalKits", []string{"medicine", "medical", "medicalKits"}},
}

func coverageFromStock(stock models.Stock) []float64 {
	out := make([]float64, 0, len(stockAliases))
	for _, alias := range stockAliases {
		cov := unknownCoverage
		for _, key := range alias.keys {
			if lvl, ok := stock.Level(key); ok {
				cov = stockCoverage[lvl]
				break
			}
		}
		out = append(out, cov)
	}
	return out
}

func coverageFromAllocation(alloc models.Supplies, p models.Prediction) []float64 {
	ratio := func(have, need int) float64 {
		if need <= 0 {
			return 1
		}
		return math.Min(float64(max(have, 0))/float64(need), 1)
	}
	return []float64{
		ratio(alloc.FoodPackets, p.FoodPackets),
		ratio(alloc.WaterLiters, p.WaterLiters),
		ratio(alloc.Beds, p.Beds),
		ratio(alloc.MedicalKits, p.MedicalKits),
	}
}

// Saturation returns the supply coverage percentage of a camp given its
// predicted needs. Reported allocations take precedence over stock levels.
func Saturation(in Input, p models.Prediction) int {
	if in.Population <= 0 {
		return 0
	}

	var cov []float64
	if in.Allocated != nil {
		cov = coverageFromAllocation(*in.Allocated, p)
	} else {
		cov = coverageFromStock(in.Stock)
	}

	sum := 0.0
	for _, c := range cov {
		sum += c
	}
	pct := int(math.Round(sum / float64(len(cov)) * 100))
	return min(max(pct, 0), 100)
}
