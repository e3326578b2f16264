package demand

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/idro/idro/internal/models"
)

// MLClient calls the prediction service over HTTP.
type MLClient struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
}

// NewMLClient creates a client for the prediction service at baseURL.
func NewMLClient(baseURL string, timeout time.Duration) *MLClient {
	return &MLClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		timeout:    timeout,
	}
}

type mlRequest struct {
	DisasterType  string  `json:"disasterType"`
	Severity      string  `json:"severity"`
	Urgency       string  `json:"urgency"`
	AffectedCount int     `json:"affectedCount"`
	InjuredCount  int     `json:"injuredCount"`
	MissingCount  int     `json:"missingCount"`
	Latitude      float64 `json:"latitude"`
	Longitude     float64 `json:"longitude"`
}

type mlRequirements struct {
	FoodPacketsPerDay   *int `json:"foodPacketsPerDay"`
	WaterLitersPerDay   *int `json:"waterLitersPerDay"`
	MedicalKitsRequired *int `json:"medicalKitsRequired"`
	BedsRequired        *int `json:"bedsRequired"`
	AmbulancesRequired  *int `json:"ambulancesRequired"`
	VolunteersRequired  *int `json:"volunteersRequired"`
}

type mlResponse struct {
	Requirements     *mlRequirements `json:"requirements"`
	RiskScore        *float64        `json:"riskScore"`
	PredictionSource string          `json:"predictionSource"`
	Explanations     []string        `json:"explanations"`
}

// Predict implements Predictor.
func (c *MLClient) Predict(ctx context.Context, in Input) (models.Prediction, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	severity := in.Severity
	if severity == "" {
		severity = "Moderate"
	}
	body, err := json.Marshal(mlRequest{
		DisasterType:  string(in.DisasterType),
		Severity:      severity,
		Urgency:       "Medium",
		AffectedCount: in.Population,
		InjuredCount:  in.Injured,
		Latitude:      in.Latitude,
		Longitude:     in.Longitude,
	})
	if err != nil {
		return models.Prediction{}, fmt.Errorf("encoding prediction request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/predict", bytes.NewReader(body))
	if err != nil {
		return models.Prediction{}, fmt.Errorf("building prediction request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return models.Prediction{}, &models.TransientNetworkError{Op: "calling prediction service", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return models.Prediction{}, fmt.Errorf("prediction service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out mlResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return models.Prediction{}, fmt.Errorf("decoding prediction response: %w", err)
	}

	return out.toPrediction(in.CampID)
}

func (r mlResponse) toPrediction(campID string) (models.Prediction, error) {
	var missing []string
	if r.RiskScore == nil {
		missing = append(missing, "riskScore")
	}
	if r.Requirements == nil {
		missing = append(missing, "requirements")
	} else {
		req := r.Requirements
		for name, v := range map[string]*int{
			"foodPacketsPerDay":   req.FoodPacketsPerDay,
			"waterLitersPerDay":   req.WaterLitersPerDay,
			"medicalKitsRequired": req.MedicalKitsRequired,
			"bedsRequired":        req.BedsRequired,
			"ambulancesRequired":  req.AmbulancesRequired,
			"volunteersRequired":  req.VolunteersRequired,
		} {
			if v == nil {
				missing = append(missing, name)
			}
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return models.Prediction{}, &models.UnderspecifiedDataError{Entity: "prediction", ID: campID, Missing: missing}
	}

	req := r.Requirements
	return models.Prediction{
		FoodPackets:  *req.FoodPacketsPerDay,
		WaterLiters:  *req.WaterLitersPerDay,
		Beds:         *req.BedsRequired,
		MedicalKits:  *req.MedicalKitsRequired,
		Volunteers:   *req.VolunteersRequired,
		Ambulances:   *req.AmbulancesRequired,
		RiskScore:    *r.RiskScore,
		Source:       models.SourceML,
		Explanations: append([]string(nil), r.Explanations...),
	}, nil
}
