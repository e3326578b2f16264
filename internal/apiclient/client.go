// Package apiclient talks to the IDRO backend over its JSON REST API.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/idro/idro/internal/models"
)

// DefaultTimeout bounds every request when the caller sets none.
const DefaultTimeout = 5 * time.Second

// Client is a backend API client. It is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	logger     *slog.Logger
}

// New creates a client for the API rooted at baseURL
// (for example http://localhost:8085/api).
func New(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		timeout:    timeout,
		logger:     logger,
	}
}

// BaseURL returns the API root the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ListAlerts returns every non-deleted alert.
func (c *Client) ListAlerts(ctx context.Context) ([]models.Disaster, error) {
	var out []models.Disaster
	if err := c.do(ctx, http.MethodGet, "/alerts", nil, &out); err != nil {
		return nil, fmt.Errorf("fetching alerts: %w", err)
	}
	return out, nil
}

// GetAlert returns one alert by id.
func (c *Client) GetAlert(ctx context.Context, id string) (*models.Disaster, error) {
	var out models.Disaster
	if err := c.do(ctx, http.MethodGet, "/alerts/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, fmt.Errorf("fetching alert %s: %w", id, err)
	}
	return &out, nil
}

// CreateAlert stores a new alert and returns it with its id.
func (c *Client) CreateAlert(ctx context.Context, d models.Disaster) (*models.Disaster, error) {
	var out models.Disaster
	if err := c.do(ctx, http.MethodPost, "/alerts", d, &out); err != nil {
		return nil, fmt.Errorf("creating alert: %w", err)
	}
	return &out, nil
}

// UpdateAlert replaces the editable fields of an alert.
func (c *Client) UpdateAlert(ctx context.Context, id string, d models.Disaster) (*models.Disaster, error) {
	var out models.Disaster
	if err := c.do(ctx, http.MethodPut, "/alerts/"+url.PathEscape(id), d, &out); err != nil {
		return nil, fmt.Errorf("updating alert %s: %w", id, err)
	}
	return &out, nil
}

// DeleteAlert soft-deletes an alert. Deleting an alert that is already gone
// is a ConflictError.
func (c *Client) DeleteAlert(ctx context.Context, id string) error {
	err := c.do(ctx, http.MethodDelete, "/alerts/"+url.PathEscape(id), nil, nil)
	if errors.Is(err, models.ErrNotFound) {
		return &models.ConflictError{Resource: "alert", ID: id, Reason: "already deleted"}
	}
	if err != nil {
		return fmt.Errorf("deleting alert %s: %w", id, err)
	}
	return nil
}

// AssignMission claims an OPEN mission for responderName. The backend answers
// 409 when the mission is no longer OPEN, surfaced as a ConflictError.
func (c *Client) AssignMission(ctx context.Context, id, responderName string) (*models.Disaster, error) {
	path := "/alerts/" + url.PathEscape(id) + "/assign?responderName=" + url.QueryEscape(responderName)

	var out models.Disaster
	err := c.do(ctx, http.MethodPut, path, nil, &out)
	var se *statusError
	if errors.As(err, &se) && se.code == http.StatusConflict {
		return nil, &models.ConflictError{Resource: "mission", ID: id, Reason: se.message()}
	}
	if err != nil {
		return nil, fmt.Errorf("assigning mission %s: %w", id, err)
	}
	return &out, nil
}

// ResolveMission closes an ASSIGNED mission.
func (c *Client) ResolveMission(ctx context.Context, id string) (*models.Disaster, error) {
	var out models.Disaster
	err := c.do(ctx, http.MethodPut, "/alerts/"+url.PathEscape(id)+"/resolve", nil, &out)
	var se *statusError
	if errors.As(err, &se) && se.code == http.StatusConflict {
		return nil, &models.ConflictError{Resource: "mission", ID: id, Reason: se.message()}
	}
	if err != nil {
		return nil, fmt.Errorf("resolving mission %s: %w", id, err)
	}
	return &out, nil
}

// GetImpact fetches the backend impact report of a disaster.
func (c *Client) GetImpact(ctx context.Context, disasterID string) (*models.ImpactReport, error) {
	var out models.ImpactReport
	if err := c.do(ctx, http.MethodGet, "/analytics/impact/"+url.PathEscape(disasterID), nil, &out); err != nil {
		return nil, fmt.Errorf("fetching impact of %s: %w", disasterID, err)
	}
	return &out, nil
}

// GetStats fetches the dashboard counters.
func (c *Client) GetStats(ctx context.Context) (*models.DashboardStats, error) {
	var out models.DashboardStats
	if err := c.do(ctx, http.MethodGet, "/analytics/stats", nil, &out); err != nil {
		return nil, fmt.Errorf("fetching stats: %w", err)
	}
	return &out, nil
}

// ListCamps returns every camp.
func (c *Client) ListCamps(ctx context.Context) ([]models.Camp, error) {
	var out []models.Camp
	if err := c.do(ctx, http.MethodGet, "/camps", nil, &out); err != nil {
		return nil, fmt.Errorf("fetching camps: %w", err)
	}
	return out, nil
}

// CampsByAlert returns the camps attached to an alert.
func (c *Client) CampsByAlert(ctx context.Context, alertID string) ([]models.Camp, error) {
	var out []models.Camp
	if err := c.do(ctx, http.MethodGet, "/camps/by-alert/"+url.PathEscape(alertID), nil, &out); err != nil {
		return nil, fmt.Errorf("fetching camps of %s: %w", alertID, err)
	}
	return out, nil
}

// CreateCamp stores a new camp.
func (c *Client) CreateCamp(ctx context.Context, camp models.Camp) (*models.Camp, error) {
	var out models.Camp
	if err := c.do(ctx, http.MethodPost, "/camps", camp, &out); err != nil {
		return nil, fmt.Errorf("creating camp: %w", err)
	}
	return &out, nil
}

// statusError is a non-2xx response.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	if e.body == "" {
		return fmt.Sprintf("backend returned %d", e.code)
	}
	return fmt.Sprintf("backend returned %d: %s", e.code, e.body)
}

func (e *statusError) message() string {
	if e.body != "" {
		return e.body
	}
	return http.StatusText(e.code)
}

// Unwrap maps well-known statuses onto the shared error taxonomy.
func (e *statusError) Unwrap() error {
	switch e.code {
	case http.StatusNotFound:
		return models.ErrNotFound
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return &models.ValidationError{Message: e.message()}
	}
	return nil
}

// do sends one request and decodes a JSON response into out when non-nil.
// Transport failures and 5xx answers become TransientNetworkError.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &models.TransientNetworkError{Op: method + " " + path, Err: err}
	}
	defer resp.Body.Close()

	c.logger.Debug("api request", "method", method, "path", path, "status", resp.StatusCode, "duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		se := &statusError{code: resp.StatusCode, body: strings.TrimSpace(string(msg))}
		if resp.StatusCode >= 500 {
			return &models.TransientNetworkError{Op: method + " " + path, Err: se}
		}
		return se
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
