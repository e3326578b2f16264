// Package demand turns a camp's population and stock into predicted resource
// needs, a risk score and an urgency bucket.
package demand

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/idro/idro/internal/config"
	"github.com/idro/idro/internal/models"
)

// Fixed per-capita ratios of the deterministic estimator.
const (
	foodPacketsPerPerson = 3
	waterLitersPerPerson = 4
	peoplePerMedicalKit  = 200
	peoplePerAmbulance   = 150
)

// Input is everything the estimator knows about one camp.
type Input struct {
	CampID       string
	CampName     string
	DisasterType models.DisasterType
	Severity     string
	Population   int
	Injured      int
	Latitude     float64
	Longitude    float64
	Stock        models.Stock
	Allocated    *models.Supplies
}

// InputFromCamp builds an estimator input from a camp and its disaster.
func InputFromCamp(camp models.Camp, disaster models.Disaster) Input {
	return Input{
		CampID:       camp.ID,
		CampName:     camp.Name,
		DisasterType: models.NormalizeDisasterType(string(disaster.Type)),
		Severity:     disaster.Magnitude,
		Population:   camp.Population,
		Injured:      camp.InjuredCount,
		Latitude:     camp.Latitude,
		Longitude:    camp.Longitude,
		Stock:        camp.Stock,
		Allocated:    camp.Allocated,
	}
}

// Validate rejects inputs the estimator cannot reason about.
func (in Input) Validate() error {
	if in.Population < 0 {
		return models.NewValidationError("population", "must be non-negative, got %d", in.Population)
	}
	if in.Injured < 0 {
		return models.NewValidationError("injuredCount", "must be non-negative, got %d", in.Injured)
	}
	return nil
}

// Predictor is an external prediction source. Implementations return raw
// quantities and a risk score; the estimator derives the rest.
type Predictor interface {
	Predict(ctx context.Context, in Input) (models.Prediction, error)
}

// Estimator computes camp predictions, preferring the ML predictor when one
// is configured and degrading to the deterministic formulas otherwise.
type Estimator struct {
	cfg    config.EstimatorConfig
	ml     Predictor
	logger *slog.Logger
}

// NewEstimator creates an estimator. ml may be nil.
func NewEstimator(cfg config.EstimatorConfig, ml Predictor, logger *slog.Logger) *Estimator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.PeoplePerBed < 1 {
		cfg.PeoplePerBed = 1
	}
	if cfg.PeoplePerVolunteer < 1 {
		cfg.PeoplePerVolunteer = 50
	}
	if cfg.MaxConcurrency < 1 {
		cfg.MaxConcurrency = 1
	}
	return &Estimator{cfg: cfg, ml: ml, logger: logger}
}

// Estimate predicts the needs of one camp. It fails only on invalid input;
// ML failures degrade to the fallback estimate.
func (e *Estimator) Estimate(ctx context.Context, in Input) (models.Prediction, error) {
	if err := in.Validate(); err != nil {
		return models.Prediction{}, err
	}

	if in.Population == 0 {
		return emptyPrediction(), nil
	}

	if e.ml != nil {
		p, err := e.ml.Predict(ctx, in)
		if err == nil {
			return e.finalize(in, p), nil
		}
		e.logger.Warn("ML prediction failed, using fallback",
			"camp_id", in.CampID,
			"error", err,
		)
		p = e.fallback(in)
		p.Explanations = append(p.Explanations, "ML service unavailable; deterministic estimate used.")
		return p, nil
	}

	return e.fallback(in), nil
}

// Fallback computes the deterministic estimate without consulting ML.
func (e *Estimator) Fallback(in Input) (models.Prediction, error) {
	if err := in.Validate(); err != nil {
		return models.Prediction{}, err
	}
	if in.Population == 0 {
		return emptyPrediction(), nil
	}
	return e.fallback(in), nil
}

// EstimateAll estimates every input concurrently, bounded by
// max_concurrency, and returns predictions in input order.
func (e *Estimator) EstimateAll(ctx context.Context, inputs []Input) ([]models.Prediction, error) {
	for i, in := range inputs {
		if err := in.Validate(); err != nil {
			return nil, fmt.Errorf("camp %d (%s): %w", i, in.CampID, err)
		}
	}

	out := make([]models.Prediction, len(inputs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.MaxConcurrency)

	for i, in := range inputs {
		g.Go(func() error {
			p, err := e.Estimate(gctx, in)
			if err != nil {
				return fmt.Errorf("estimating camp %s: %w", in.CampID, err)
			}
			out[i] = p
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func emptyPrediction() models.Prediction {
	return models.Prediction{
		RiskLevel:    models.RiskLow,
		Urgency:      models.Urgency24Hours,
		Source:       models.SourceFallback,
		Explanations: []string{"No displaced population reported."},
	}
}

func ceilDiv(n, d int) int {
	return (n + d - 1) / d
}

func (e *Estimator) fallback(in Input) models.Prediction {
	pop := in.Population
	p := models.Prediction{
		FoodPackets: pop * foodPacketsPerPerson,
		WaterLiters: pop * waterLitersPerPerson,
		Beds:        ceilDiv(pop, e.cfg.PeoplePerBed),
		MedicalKits: ceilDiv(pop, peoplePerMedicalKit),
		Volunteers:  ceilDiv(pop, e.cfg.PeoplePerVolunteer),
		Ambulances:  ceilDiv(pop, peoplePerAmbulance),
		Source:      models.SourceFallback,
	}
	p.RiskScore = e.riskScore(in)
	return e.bucket(in, p)
}

// riskScore combines the injury ratio with stock shortages.
func (e *Estimator) riskScore(in Input) float64 {
	ratio := math.Min(float64(in.Injured)/float64(in.Population), 1)
	score := e.cfg.InjuryWeight*ratio +
		e.cfg.LowStockWeight*float64(in.Stock.Count(models.StockLow)) +
		e.cfg.CriticalStockWeight*float64(in.Stock.Count(models.StockCritical))
	return clampScore(score)
}

// finalize post-processes an ML prediction with the same rules as the
// fallback so both sources bucket identically.
func (e *Estimator) finalize(in Input, p models.Prediction) models.Prediction {
	p.Source = models.SourceML
	p.RiskScore = clampScore(p.RiskScore)
	p.FoodPackets = max(p.FoodPackets, 0)
	p.WaterLiters = max(p.WaterLiters, 0)
	p.Beds = max(p.Beds, 0)
	p.MedicalKits = max(p.MedicalKits, 0)
	p.Volunteers = max(p.Volunteers, 0)
	p.Ambulances = max(p.Ambulances, 0)
	return e.bucket(in, p)
}

// bucket applies the Critical floor and derives level, urgency, saturation
// and explanations.
func (e *Estimator) bucket(in Input, p models.Prediction) models.Prediction {
	critical := in.Stock.Count(models.StockCritical)
	if critical > 0 && p.RiskScore < CriticalStockFloor {
		p.RiskScore = CriticalStockFloor
	}
	p.RiskScore = math.Round(p.RiskScore*100) / 100

	p.RiskLevel = RiskLevelFor(p.RiskScore)
	p.Urgency = UrgencyFor(p.RiskScore, in.DisasterType)
	p.SaturationPercentage = Saturation(in, p)
	p.Explanations = append(p.Explanations, explain(in)...)
	return p
}

func explain(in Input) []string {
	var out []string

	if in.Injured > 0 {
		pct := math.Min(float64(in.Injured)/float64(in.Population), 1) * 100
		out = append(out, fmt.Sprintf("%.0f%% of the camp population is injured.", pct))
	}
	for _, name := range in.Stock.Resources() {
		lvl, ok := models.ParseStockLevel(in.Stock[name])
		if !ok {
			continue
		}
		switch lvl {
		case models.StockCritical:
			out = append(out, fmt.Sprintf("%s stock is Critical.", name))
		case models.StockLow:
			out = append(out, fmt.Sprintf("%s stock is Low.", name))
		}
	}
	if in.DisasterType.IsWaterBorne() {
		out = append(out, fmt.Sprintf("%s conditions shorten the response window.", in.DisasterType))
	}
	return out
}
