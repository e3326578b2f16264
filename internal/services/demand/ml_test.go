package demand

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/idro/idro/internal/models"
)

func TestMLClient_Predict(t *testing.T) {
	var got mlRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/predict" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"requirements": {
				"foodPacketsPerDay": 900, "waterLitersPerDay": 1200, "medicalKitsRequired": 2,
				"bedsRequired": 300, "ambulancesRequired": 2, "volunteersRequired": 6
			},
			"riskScore": 0.66,
			"predictionSource": "ML",
			"explanations": ["High density camp"]
		}`))
	}))
	defer srv.Close()

	c := NewMLClient(srv.URL+"/", time.Second)
	p, err := c.Predict(context.Background(), Input{
		CampID: "c1", DisasterType: models.DisasterTypeFlood, Population: 300, Injured: 4,
		Latitude: 9.9, Longitude: 76.2,
	})
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}

	if got.DisasterType != "FLOOD" || got.AffectedCount != 300 || got.InjuredCount != 4 || got.Severity != "Moderate" {
		t.Errorf("request = %+v", got)
	}
	if p.FoodPackets != 900 || p.Beds != 300 || p.RiskScore != 0.66 || p.Source != models.SourceML {
		t.Errorf("prediction = %+v", p)
	}
}

func TestMLClient_Underspecified(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"requirements": {"foodPacketsPerDay": 10}}`))
	}))
	defer srv.Close()

	_, err := NewMLClient(srv.URL, time.Second).Predict(context.Background(), Input{CampID: "c9", Population: 5})
	if !models.IsUnderspecified(err) {
		t.Fatalf("Predict() error = %v, want UnderspecifiedDataError", err)
	}
}

func TestMLClient_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	if _, err := NewMLClient(srv.URL, time.Second).Predict(context.Background(), Input{Population: 5}); err == nil {
		t.Fatal("expected error for 503")
	}
}

func TestMLClient_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	_, err := NewMLClient(srv.URL, 50*time.Millisecond).Predict(context.Background(), Input{Population: 5})
	if !models.IsTransient(err) {
		t.Fatalf("Predict() error = %v, want TransientNetworkError", err)
	}
}

func TestEstimator_WithUnreachableML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	e := newTestEstimator(NewMLClient(srv.URL, time.Second))
	p, err := e.Estimate(context.Background(), Input{Population: 150})
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}
	if p.Source != models.SourceFallback || p.FoodPackets != 450 || p.Ambulances != 1 {
		t.Errorf("prediction = %+v", p)
	}
}
