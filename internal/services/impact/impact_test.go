package impact

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/idro/idro/internal/config"
	"github.com/idro/idro/internal/models"
	"github.com/idro/idro/internal/services/demand"
)

func analysis(id, name string, pop, injured int, p models.Prediction) models.CampAnalysis {
	return models.CampAnalysis{CampID: id, CampName: name, Population: pop, InjuredCount: injured, Prediction: p}
}

func TestAggregate_Empty(t *testing.T) {
	for _, camps := range [][]models.CampAnalysis{nil, {}} {
		s := Aggregate("FLOOD", camps)

		if s.Totals != (models.ResourceTotals{}) {
			t.Errorf("totals = %+v, want zero", s.Totals)
		}
		if s.OverallRiskScore != 0 {
			t.Errorf("overall risk = %v", s.OverallRiskScore)
		}
		if diff := cmp.Diff([]string{MonitorRecommendation}, s.Recommendations); diff != "" {
			t.Errorf("recommendations (-want +got):\n%s", diff)
		}
		if s.Camps == nil {
			t.Error("camps should be an empty list, not nil")
		}
	}
}

func TestAggregate_SumsAndRecommendations(t *testing.T) {
	camps := []models.CampAnalysis{
		analysis("a", "Camp A", 100, 10, models.Prediction{
			FoodPackets: 300, WaterLiters: 400, Beds: 100, MedicalKits: 1, Volunteers: 2, Ambulances: 1,
			RiskScore: 0.8, RiskLevel: models.RiskHigh, Urgency: models.Urgency6Hours,
			SaturationPercentage: 40, Source: models.SourceFallback,
		}),
		analysis("b", "Camp B", 300, 30, models.Prediction{
			FoodPackets: 900, WaterLiters: 1200, Beds: 300, MedicalKits: 2, Volunteers: 6, Ambulances: 2,
			RiskScore: 0.9, RiskLevel: models.RiskCritical, Urgency: models.UrgencyImmediate,
			SaturationPercentage: 70, Source: models.SourceML,
		}),
	}

	s := Aggregate("flood", camps)

	want := models.ResourceTotals{
		Camps: 2, Population: 400, Injured: 40,
		FoodPackets: 1200, WaterLiters: 1600, Beds: 400, MedicalKits: 3, Volunteers: 8, Ambulances: 3,
	}
	if diff := cmp.Diff(want, s.Totals); diff != "" {
		t.Errorf("totals (-want +got):\n%s", diff)
	}
	if s.OverallRiskScore != 0.85 {
		t.Errorf("overall risk = %v, want 0.85", s.OverallRiskScore)
	}
	if s.FallbackCamps != 1 {
		t.Errorf("fallback camps = %d, want 1", s.FallbackCamps)
	}
	if s.DisasterType != models.DisasterTypeFlood {
		t.Errorf("disaster type = %s", s.DisasterType)
	}

	wantRecs := []string{
		"Deploy 2 rescue boats immediately to flood zones.",
		"Prioritize medical units (2 teams needed) for injured population.",
		"Deploy resources first to high-risk camps: Camp B, Camp A.",
		"Increase supply rotation frequency in critical zones.",
		MonitorRecommendation,
	}
	if diff := cmp.Diff(wantRecs, s.Recommendations); diff != "" {
		t.Errorf("recommendations (-want +got):\n%s", diff)
	}
}

func TestAggregate_RecommendationRules(t *testing.T) {
	tests := []struct {
		name  string
		typ   string
		camps []models.CampAnalysis
		want  []string
	}{
		{
			name: "flood without urgent camps has no boats",
			typ:  "FLOOD",
			camps: []models.CampAnalysis{analysis("a", "A", 500, 0, models.Prediction{
				RiskScore: 0.3, RiskLevel: models.RiskLow, Urgency: models.Urgency12Hours, SaturationPercentage: 80,
			})},
			want: []string{MonitorRecommendation},
		},
		{
			name: "urgent empty flood camp still needs one boat",
			typ:  "FLOOD",
			camps: []models.CampAnalysis{analysis("a", "A", 0, 0, models.Prediction{
				Urgency: models.UrgencyImmediate,
			})},
			want: []string{"Deploy 1 rescue boats immediately to flood zones.", MonitorRecommendation},
		},
		{
			name: "earthquake urgent camps get no boats",
			typ:  "EARTHQUAKE",
			camps: []models.CampAnalysis{analysis("a", "A", 400, 0, models.Prediction{
				RiskScore: 0.5, RiskLevel: models.RiskMedium, Urgency: models.UrgencyImmediate, SaturationPercentage: 90,
			})},
			want: []string{MonitorRecommendation},
		},
		{
			name: "equal risk ordered by name",
			typ:  "FIRE",
			camps: []models.CampAnalysis{
				analysis("z", "Zeta", 10, 0, models.Prediction{RiskScore: 0.8, RiskLevel: models.RiskHigh, SaturationPercentage: 75}),
				analysis("a", "Alpha", 10, 0, models.Prediction{RiskScore: 0.8, RiskLevel: models.RiskHigh, SaturationPercentage: 75}),
				analysis("m", "Mid", 10, 0, models.Prediction{RiskScore: 0.5, RiskLevel: models.RiskMedium, SaturationPercentage: 75}),
			},
			want: []string{"Deploy resources first to high-risk camps: Alpha, Zeta.", MonitorRecommendation},
		},
		{
			name: "medical teams rounded up",
			typ:  "EARTHQUAKE",
			camps: []models.CampAnalysis{analysis("a", "A", 100, 21, models.Prediction{
				RiskScore: 0.2, RiskLevel: models.RiskLow, SaturationPercentage: 60,
			})},
			want: []string{"Prioritize medical units (2 teams needed) for injured population.", MonitorRecommendation},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Aggregate(tt.typ, tt.camps).Recommendations
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("recommendations (-want +got):\n%s", diff)
			}
		})
	}
}

type fakeFetcher struct {
	report *models.ImpactReport
	err    error
}

func (f *fakeFetcher) GetImpact(ctx context.Context, id string) (*models.ImpactReport, error) {
	return f.report, f.err
}

func newTestService(f ReportFetcher) *Service {
	return NewService(f, demand.NewEstimator(config.Default().Estimator, nil, nil), nil)
}

func TestService_Build_ReportUnavailable(t *testing.T) {
	disaster := models.Disaster{ID: "D1", Type: models.DisasterTypeEarthquake}
	camps := []models.Camp{
		{ID: "c1", Name: "Camp One", Population: 600, Stock: models.Stock{"food": "Critical"}},
		{ID: "c2", Name: "Camp Two", Population: 100},
	}

	s := newTestService(&fakeFetcher{err: &models.TransientNetworkError{Op: "fetching impact", Err: errors.New("refused")}})
	sum, err := s.Build(context.Background(), disaster, camps)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if sum.DisasterID != "D1" || sum.FallbackCamps != 2 {
		t.Errorf("summary = id %q fallback %d", sum.DisasterID, sum.FallbackCamps)
	}
	if sum.Totals.FoodPackets != 2100 || sum.Totals.Population != 700 {
		t.Errorf("totals = %+v", sum.Totals)
	}
}

func TestService_Build_MergesReport(t *testing.T) {
	disaster := models.Disaster{ID: "D2", Type: models.DisasterTypeFlood}
	camps := []models.Camp{
		{ID: "c1", Name: "Camp One", Population: 200},
		{ID: "c2", Name: "Camp Two", Population: 50},
		{ID: "c3", Name: "Camp Three", Population: 10},
	}
	report := &models.ImpactReport{
		MissionID: "D2",
		CampAnalysisList: []models.CampAnalysis{
			{CampID: "c1", Prediction: models.Prediction{
				FoodPackets: 999, RiskScore: 0.4, RiskLevel: models.RiskMedium,
				Urgency: models.Urgency12Hours, Source: "ML", SaturationPercentage: 80,
			}},
			// Underspecified: no level, urgency or source.
			{CampID: "c2", CampName: "Camp Two", Prediction: models.Prediction{FoodPackets: 1}},
			// Unknown camp without derived fields cannot be recomputed.
			{CampID: "ghost"},
		},
	}

	s := newTestService(&fakeFetcher{report: report})
	sum, err := s.Build(context.Background(), disaster, camps)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	var ids []string
	for _, c := range sum.Camps {
		ids = append(ids, c.CampID)
	}
	if diff := cmp.Diff([]string{"c1", "c2", "c3"}, ids); diff != "" {
		t.Fatalf("camp order (-want +got):\n%s", diff)
	}

	c1 := sum.Camps[0]
	if c1.FoodPackets != 999 || c1.Population != 200 || c1.CampName != "Camp One" {
		t.Errorf("c1 = %+v", c1)
	}
	if sum.Camps[1].FoodPackets != 150 || sum.Camps[1].Source != models.SourceFallback {
		t.Errorf("c2 not recomputed: %+v", sum.Camps[1])
	}
	if sum.FallbackCamps != 2 {
		t.Errorf("fallback camps = %d, want 2", sum.FallbackCamps)
	}
}

func TestService_Build_InvalidCamp(t *testing.T) {
	s := newTestService(&fakeFetcher{})
	_, err := s.Build(context.Background(), models.Disaster{ID: "D3"}, []models.Camp{{ID: "bad", Population: -4}})
	if !models.IsValidation(err) {
		t.Fatalf("Build() error = %v, want ValidationError", err)
	}
}

func TestCheckAnalysis(t *testing.T) {
	err := CheckAnalysis(models.CampAnalysis{CampID: "x", Prediction: models.Prediction{RiskLevel: models.RiskLow}})
	var ue *models.UnderspecifiedDataError
	if !errors.As(err, &ue) {
		t.Fatalf("CheckAnalysis() = %v", err)
	}
	if diff := cmp.Diff([]string{"urgency", "predictionSource"}, ue.Missing); diff != "" {
		t.Errorf("missing (-want +got):\n%s", diff)
	}
}

func TestAggregate_BoundsReportedValues(t *testing.T) {
	camps := []models.CampAnalysis{
		analysis("a", "Camp A", 100, -5, models.Prediction{
			FoodPackets: -500, WaterLiters: 400, Beds: -3, MedicalKits: 1,
			RiskScore: 1.7, RiskLevel: models.RiskCritical, SaturationPercentage: 140,
		}),
		analysis("b", "Camp B", -20, 0, models.Prediction{
			FoodPackets: 60, RiskScore: -0.4, RiskLevel: models.RiskLow, SaturationPercentage: -10,
		}),
	}

	s := Aggregate("EARTHQUAKE", camps)

	want := models.ResourceTotals{Camps: 2, Population: 100, FoodPackets: 60, WaterLiters: 400, MedicalKits: 1}
	if diff := cmp.Diff(want, s.Totals); diff != "" {
		t.Errorf("totals (-want +got):\n%s", diff)
	}
	if s.OverallRiskScore != 0.5 {
		t.Errorf("overall risk = %v, want 0.5", s.OverallRiskScore)
	}
	if s.Camps[0].RiskScore != 1 || s.Camps[0].SaturationPercentage != 100 {
		t.Errorf("camp a not bounded: %+v", s.Camps[0])
	}
	if s.Camps[1].RiskScore != 0 || s.Camps[1].SaturationPercentage != 0 {
		t.Errorf("camp b not bounded: %+v", s.Camps[1])
	}
	if camps[0].FoodPackets != -500 {
		t.Error("Aggregate modified its input")
	}
}

func TestService_Build_NegativeReportedFields(t *testing.T) {
	disaster := models.Disaster{ID: "D4", Type: models.DisasterTypeFlood}
	camps := []models.Camp{{ID: "c1", Name: "Camp One", Population: 300}}
	report := &models.ImpactReport{
		MissionID: "D4",
		CampAnalysisList: []models.CampAnalysis{
			{CampID: "c1", Prediction: models.Prediction{
				FoodPackets: -500, Beds: -3, RiskScore: 0.3, RiskLevel: models.RiskLow,
				Urgency: models.Urgency24Hours, Source: "ML", SaturationPercentage: 60,
			}},
		},
	}

	sum, err := newTestService(&fakeFetcher{report: report}).Build(context.Background(), disaster, camps)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if sum.Totals.FoodPackets < 0 || sum.Totals.Beds < 0 {
		t.Errorf("totals negative: food=%d beds=%d", sum.Totals.FoodPackets, sum.Totals.Beds)
	}
	if sum.Totals.Population != 300 {
		t.Errorf("population = %d, want 300", sum.Totals.Population)
	}
}
