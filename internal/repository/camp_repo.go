package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/idro/idro/internal/models"
	"github.com/idro/idro/internal/util"
)

// CampRepository handles camp data access.
type CampRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewCampRepository creates a new camp repository.
func NewCampRepository(db *sql.DB) *CampRepository {
	return &CampRepository{db: db, now: time.Now}
}

const campColumns = `id, alert_id, name, location, population, injured_count, latitude, longitude,
	stock, allocated, incoming_aid, created_at, updated_at`

// Create inserts a camp. A camp linked to an alert requires that alert to
// exist and not be deleted.
func (r *CampRepository) Create(ctx context.Context, tx *sql.Tx, c *models.Camp) error {
	if c.ID == "" {
		c.ID = util.NewID()
	}
	if err := c.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	if c.AlertID != "" {
		var q interface {
			QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
		} = r.db
		if tx != nil {
			q = tx
		}
		var exists int
		err := q.QueryRowContext(ctx,
			`SELECT 1 FROM alerts WHERE id = ? AND deleted_at IS NULL`, c.AlertID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return models.NewValidationError("alertId", "unknown alert %s", c.AlertID)
		}
		if err != nil {
			return fmt.Errorf("checking alert: %w", err)
		}
	}

	stock := c.Stock
	if stock == nil {
		stock = models.Stock{}
	}
	stockJSON, err := jsonColumn(stock)
	if err != nil {
		return err
	}
	var allocated sql.NullString
	if c.Allocated != nil {
		s, err := jsonColumn(c.Allocated)
		if err != nil {
			return err
		}
		allocated = sql.NullString{String: s, Valid: true}
	}

	now := util.FormatISO8601(r.now())
	c.CreatedAt = now
	c.UpdatedAt = now

	_, err = getExecer(r.db, tx).ExecContext(ctx, `
		INSERT INTO camps (`+campColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID,
		nullableString(c.AlertID),
		c.Name,
		c.Location,
		c.Population,
		c.InjuredCount,
		c.Latitude,
		c.Longitude,
		stockJSON,
		allocated,
		c.IncomingAid,
		c.CreatedAt,
		c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting camp: %w", err)
	}
	return nil
}

// GetByID retrieves a camp by id.
func (r *CampRepository) GetByID(ctx context.Context, id string) (*models.Camp, error) {
	c, err := scanCamp(r.db.QueryRowContext(ctx, `SELECT `+campColumns+` FROM camps WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("camp %s: %w", id, models.ErrNotFound)
	}
	return c, err
}

// List returns every camp, oldest first.
func (r *CampRepository) List(ctx context.Context) ([]models.Camp, error) {
	return r.query(ctx, `SELECT `+campColumns+` FROM camps ORDER BY created_at, id`)
}

// ListByAlert returns the camps linked to an alert, oldest first.
func (r *CampRepository) ListByAlert(ctx context.Context, alertID string) ([]models.Camp, error) {
	return r.query(ctx, `SELECT `+campColumns+` FROM camps WHERE alert_id = ? ORDER BY created_at, id`, alertID)
}

func (r *CampRepository) query(ctx context.Context, query string, args ...any) ([]models.Camp, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying camps: %w", err)
	}
	defer rows.Close()

	camps := []models.Camp{}
	for rows.Next() {
		c, err := scanCamp(rows)
		if err != nil {
			return nil, err
		}
		camps = append(camps, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating camps: %w", err)
	}
	return camps, nil
}

func scanCamp(s scanner) (*models.Camp, error) {
	var c models.Camp
	var alertID, allocated sql.NullString
	var stock string

	err := s.Scan(
		&c.ID,
		&alertID,
		&c.Name,
		&c.Location,
		&c.Population,
		&c.InjuredCount,
		&c.Latitude,
		&c.Longitude,
		&stock,
		&allocated,
		&c.IncomingAid,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scanning camp: %w", err)
	}

	c.AlertID = alertID.String
	if err := json.Unmarshal([]byte(stock), &c.Stock); err != nil {
		return nil, fmt.Errorf("decoding stock of camp %s: %w", c.ID, err)
	}
	if allocated.Valid {
		c.Allocated = &models.Supplies{}
		if err := json.Unmarshal([]byte(allocated.String), c.Allocated); err != nil {
			return nil, fmt.Errorf("decoding allocation of camp %s: %w", c.ID, err)
		}
	}
	return &c, nil
}
