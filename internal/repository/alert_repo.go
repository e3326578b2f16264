package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/idro/idro/internal/models"
	"github.com/idro/idro/internal/util"
)

// AlertRepository handles alert data access. Soft-deleted alerts are
// invisible to every read.
type AlertRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewAlertRepository creates a new alert repository.
func NewAlertRepository(db *sql.DB) *AlertRepository {
	return &AlertRepository{db: db, now: time.Now}
}

const alertColumns = `id, type, location, latitude, longitude, mission_status, trust_score,
	responder_name, affected_count, injured_count, details, impact, magnitude, color,
	source_type, reporter_level, created_at`

// Create inserts a new alert. A missing id is generated and a missing
// status defaults to OPEN.
func (r *AlertRepository) Create(ctx context.Context, tx *sql.Tx, d *models.Disaster) error {
	if d.ID == "" {
		d.ID = util.NewID()
	}
	if d.MissionStatus == "" {
		d.MissionStatus = models.MissionStatusOpen
	}
	d.Type = models.NormalizeDisasterType(string(d.Type))
	if err := d.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := util.FormatISO8601(r.now())
	d.CreatedAt = now

	_, err := getExecer(r.db, tx).ExecContext(ctx, `
		INSERT INTO alerts (
			id, type, location, latitude, longitude, mission_status, trust_score,
			responder_name, affected_count, injured_count, details, impact, magnitude, color,
			source_type, reporter_level, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID,
		string(d.Type),
		d.Location,
		d.Latitude,
		d.Longitude,
		string(d.MissionStatus),
		nullableInt(d.TrustScore),
		nullableString(d.ResponderName),
		nullableInt(d.AffectedCount),
		nullableInt(d.InjuredCount),
		d.Details,
		d.Impact,
		d.Magnitude,
		string(d.Color),
		string(d.SourceType),
		d.ReporterLevel,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("inserting alert: %w", err)
	}
	return nil
}

// GetByID retrieves a live alert by id.
func (r *AlertRepository) GetByID(ctx context.Context, id string) (*models.Disaster, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+alertColumns+` FROM alerts WHERE id = ? AND deleted_at IS NULL`, id)
	d, err := scanAlert(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("alert %s: %w", id, models.ErrNotFound)
	}
	return d, err
}

// List returns live alerts matching filter, newest first.
func (r *AlertRepository) List(ctx context.Context, filter models.AlertFilter) ([]models.Disaster, error) {
	conditions := []string{"deleted_at IS NULL"}
	var args []any

	if filter.Status != nil {
		conditions = append(conditions, "mission_status = ?")
		args = append(args, string(*filter.Status))
	}
	if filter.Type != "" {
		conditions = append(conditions, "type = ?")
		args = append(args, string(models.NormalizeDisasterType(string(filter.Type))))
	}
	if filter.ResponderName != "" {
		conditions = append(conditions, "responder_name = ?")
		args = append(args, filter.ResponderName)
	}

	query := fmt.Sprintf(`SELECT %s FROM alerts WHERE %s ORDER BY created_at DESC, id DESC`,
		alertColumns, strings.Join(conditions, " AND "))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying alerts: %w", err)
	}
	defer rows.Close()

	alerts := []models.Disaster{}
	for rows.Next() {
		d, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating alerts: %w", err)
	}
	return alerts, nil
}

// Update replaces the report fields of a live alert. Lifecycle fields
// (status and responder) only change through Assign and Resolve.
func (r *AlertRepository) Update(ctx context.Context, tx *sql.Tx, d *models.Disaster) error {
	d.Type = models.NormalizeDisasterType(string(d.Type))

	// Validate the report fields against the stored lifecycle state.
	current, err := r.GetByID(ctx, d.ID)
	if err != nil {
		return err
	}
	d.MissionStatus = current.MissionStatus
	d.ResponderName = current.ResponderName
	d.CreatedAt = current.CreatedAt
	if err := d.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	result, err := getExecer(r.db, tx).ExecContext(ctx, `
		UPDATE alerts SET
			type = ?, location = ?, latitude = ?, longitude = ?, trust_score = ?,
			affected_count = ?, injured_count = ?, details = ?, impact = ?, magnitude = ?,
			color = ?, source_type = ?, reporter_level = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL`,
		string(d.Type),
		d.Location,
		d.Latitude,
		d.Longitude,
		nullableInt(d.TrustScore),
		nullableInt(d.AffectedCount),
		nullableInt(d.InjuredCount),
		d.Details,
		d.Impact,
		d.Magnitude,
		string(d.Color),
		string(d.SourceType),
		d.ReporterLevel,
		util.FormatISO8601(r.now()),
		d.ID,
	)
	if err != nil {
		return fmt.Errorf("updating alert: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("alert %s: %w", d.ID, models.ErrNotFound)
	}
	return nil
}

// Assign moves an OPEN alert to ASSIGNED for responder. The check and the
// write are one conditional UPDATE, so of two racing callers exactly one
// wins; the loser gets a ConflictError.
func (r *AlertRepository) Assign(ctx context.Context, id, responder string) (*models.Disaster, error) {
	responder = strings.TrimSpace(responder)
	if responder == "" {
		return nil, models.NewValidationError("responderName", "is required")
	}
	return r.transition(ctx, id, models.MissionStatusOpen, models.MissionStatusAssigned, responder)
}

// Resolve moves an ASSIGNED alert to RESOLVED, keeping its responder.
func (r *AlertRepository) Resolve(ctx context.Context, id string) (*models.Disaster, error) {
	return r.transition(ctx, id, models.MissionStatusAssigned, models.MissionStatusResolved, "")
}

func (r *AlertRepository) transition(ctx context.Context, id string, from, to models.MissionStatus, responder string) (*models.Disaster, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE alerts SET
			mission_status = ?,
			responder_name = COALESCE(NULLIF(?, ''), responder_name),
			updated_at = ?
		WHERE id = ? AND mission_status = ? AND deleted_at IS NULL`,
		string(to), responder, util.FormatISO8601(r.now()), id, string(from),
	)
	if err != nil {
		return nil, fmt.Errorf("moving alert %s to %s: %w", id, to, err)
	}

	if n, _ := result.RowsAffected(); n == 0 {
		current, err := r.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		return nil, &models.ConflictError{
			Resource: "mission",
			ID:       id,
			Reason:   fmt.Sprintf("status is %s", current.MissionStatus),
		}
	}

	return r.GetByID(ctx, id)
}

// SoftDelete hides an alert from every read. Deleting a missing or already
// deleted alert returns ErrNotFound.
func (r *AlertRepository) SoftDelete(ctx context.Context, tx *sql.Tx, id string) error {
	result, err := getExecer(r.db, tx).ExecContext(ctx,
		`UPDATE alerts SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`,
		util.FormatISO8601(r.now()), id,
	)
	if err != nil {
		return fmt.Errorf("deleting alert: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("alert %s: %w", id, models.ErrNotFound)
	}
	return nil
}

// Stats computes the dashboard counters over live alerts.
func (r *AlertRepository) Stats(ctx context.Context) (*models.DashboardStats, error) {
	var stats models.DashboardStats
	var redFloods int

	err := r.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN mission_status = 'OPEN' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN color = 'RED' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN color = 'RED' AND type = 'FLOOD' THEN 1 ELSE 0 END), 0)
		FROM alerts
		WHERE deleted_at IS NULL`,
	).Scan(&stats.TotalAlerts, &stats.ActiveAlerts, &stats.CriticalAlerts, &redFloods)
	if err != nil {
		return nil, fmt.Errorf("computing alert stats: %w", err)
	}

	stats.ThreatOutlook = models.ThreatOutlookFor(redFloods)
	return &stats, nil
}

func scanAlert(s scanner) (*models.Disaster, error) {
	var d models.Disaster
	var trust, affected, injured sql.NullInt64
	var responder sql.NullString

	err := s.Scan(
		&d.ID,
		&d.Type,
		&d.Location,
		&d.Latitude,
		&d.Longitude,
		&d.MissionStatus,
		&trust,
		&responder,
		&affected,
		&injured,
		&d.Details,
		&d.Impact,
		&d.Magnitude,
		&d.Color,
		&d.SourceType,
		&d.ReporterLevel,
		&d.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scanning alert: %w", err)
	}

	d.TrustScore = intPtr(trust)
	d.AffectedCount = intPtr(affected)
	d.InjuredCount = intPtr(injured)
	d.ResponderName = responder.String
	return &d, nil
}
