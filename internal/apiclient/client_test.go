package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/idro/idro/internal/models"
	"github.com/idro/idro/internal/poller"
	"github.com/idro/idro/internal/services/impact"
	"github.com/idro/idro/internal/services/missions"
	"github.com/idro/idro/internal/services/triage"
)

var (
	_ poller.Fetcher       = (*Client)(nil)
	_ missions.AssignAPI   = (*Client)(nil)
	_ triage.ReportAPI     = (*Client)(nil)
	_ impact.ReportFetcher = (*Client)(nil)
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(srv.URL+"/api", time.Second, nil)
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Errorf("encoding response: %v", err)
	}
}

func TestListAlerts(t *testing.T) {
	score := 40
	want := []models.Disaster{
		{ID: "D1", Type: models.DisasterTypeFlood, Location: "Pune", MissionStatus: models.MissionStatusOpen, TrustScore: &score},
		{ID: "D2", Type: models.DisasterTypeFire, Location: "Goa", MissionStatus: models.MissionStatusAssigned, ResponderName: "Team-X"},
	}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/api/alerts" {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		writeJSON(t, w, want)
	})

	got, err := c.ListAlerts(context.Background())
	if err != nil {
		t.Fatalf("ListAlerts: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("alerts (-want +got):\n%s", diff)
	}
}

func TestAssignMission(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/api/alerts/D1/assign" {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		name := r.URL.Query().Get("responderName")
		writeJSON(t, w, models.Disaster{ID: "D1", Location: "Pune", MissionStatus: models.MissionStatusAssigned, ResponderName: name})
	})

	got, err := c.AssignMission(context.Background(), "D1", "NDRF Alpha")
	if err != nil {
		t.Fatalf("AssignMission: %v", err)
	}
	if got.ResponderName != "NDRF Alpha" || got.MissionStatus != models.MissionStatusAssigned {
		t.Errorf("got %+v", got)
	}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		call   func(*Client) error
		check  func(error) bool
	}{
		{
			name:   "assign conflict",
			status: http.StatusConflict,
			call: func(c *Client) error {
				_, err := c.AssignMission(context.Background(), "D1", "Team-X")
				return err
			},
			check: models.IsConflict,
		},
		{
			name:   "delete missing",
			status: http.StatusNotFound,
			call:   func(c *Client) error { return c.DeleteAlert(context.Background(), "gone") },
			check:  models.IsConflict,
		},
		{
			name:   "get missing",
			status: http.StatusNotFound,
			call: func(c *Client) error {
				_, err := c.GetAlert(context.Background(), "gone")
				return err
			},
			check: func(err error) bool { return errors.Is(err, models.ErrNotFound) },
		},
		{
			name:   "bad request",
			status: http.StatusBadRequest,
			call: func(c *Client) error {
				_, err := c.CreateAlert(context.Background(), models.Disaster{})
				return err
			},
			check: models.IsValidation,
		},
		{
			name:   "server error",
			status: http.StatusServiceUnavailable,
			call: func(c *Client) error {
				_, err := c.ListCamps(context.Background())
				return err
			},
			check: models.IsTransient,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "nope", tt.status)
			})
			err := tt.call(c)
			if err == nil || !tt.check(err) {
				t.Errorf("error = %v", err)
			}
		})
	}
}

func TestTransportErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := New(url+"/api", 200*time.Millisecond, nil)
	_, err := c.ListAlerts(context.Background())
	if !models.IsTransient(err) {
		t.Fatalf("error = %v, want TransientNetworkError", err)
	}
}

func TestTimeout(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	c.timeout = 50 * time.Millisecond

	_, err := c.GetStats(context.Background())
	if !models.IsTransient(err) {
		t.Fatalf("error = %v, want TransientNetworkError", err)
	}
}

func TestCreateCampSendsBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var in models.Camp
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			t.Fatalf("decoding body: %v", err)
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("content type = %q", r.Header.Get("Content-Type"))
		}
		in.ID = "c-1"
		writeJSON(t, w, in)
	})

	got, err := c.CreateCamp(context.Background(), models.Camp{AlertID: "D1", Name: "School", Population: 120, Stock: models.Stock{"food": "Low"}})
	if err != nil {
		t.Fatalf("CreateCamp: %v", err)
	}
	if got.ID != "c-1" || got.AlertID != "D1" || got.Stock["food"] != "Low" {
		t.Errorf("got %+v", got)
	}
}

func TestGetImpact(t *testing.T) {
	report := models.ImpactReport{
		MissionID:        "D1",
		DisasterType:     "FLOOD",
		OverallRiskScore: 0.62,
		CampAnalysisList: []models.CampAnalysis{{
			CampID: "c1", CampName: "School", Population: 100,
			Prediction: models.Prediction{FoodPackets: 300, RiskLevel: models.RiskMedium, Urgency: models.Urgency12Hours, Source: models.SourceML},
		}},
	}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/analytics/impact/D1" {
			t.Errorf("path = %s", r.URL.Path)
		}
		writeJSON(t, w, report)
	})

	got, err := c.GetImpact(context.Background(), "D1")
	if err != nil {
		t.Fatalf("GetImpact: %v", err)
	}
	if diff := cmp.Diff(&report, got); diff != "" {
		t.Errorf("report (-want +got):\n%s", diff)
	}
}
