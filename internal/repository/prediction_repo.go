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

// PredictionRepository stores the history of camp predictions.
type PredictionRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewPredictionRepository creates a new prediction repository.
func NewPredictionRepository(db *sql.DB) *PredictionRepository {
	return &PredictionRepository{db: db, now: time.Now}
}

// Save records one prediction run for a camp of alertID.
func (r *PredictionRepository) Save(ctx context.Context, tx *sql.Tx, alertID string, a models.CampAnalysis) error {
	explanations := a.Explanations
	if explanations == nil {
		explanations = []string{}
	}
	expJSON, err := jsonColumn(explanations)
	if err != nil {
		return err
	}

	_, err = getExecer(r.db, tx).ExecContext(ctx, `
		INSERT INTO camp_predictions (
			id, camp_id, alert_id, predicted_food, predicted_water, predicted_beds,
			predicted_medical_kits, predicted_volunteers, predicted_ambulances, risk_score,
			risk_level, urgency, saturation_percentage, prediction_source, explanations, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		util.NewID(),
		a.CampID,
		alertID,
		a.FoodPackets,
		a.WaterLiters,
		a.Beds,
		a.MedicalKits,
		a.Volunteers,
		a.Ambulances,
		a.RiskScore,
		string(a.RiskLevel),
		string(a.Urgency),
		a.SaturationPercentage,
		string(a.Source),
		expJSON,
		util.FormatISO8601(r.now()),
	)
	if err != nil {
		return fmt.Errorf("inserting prediction for camp %s: %w", a.CampID, err)
	}
	return nil
}

// SaveAll records every camp analysis of one impact run in a transaction.
func (r *PredictionRepository) SaveAll(ctx context.Context, alertID string, camps []models.CampAnalysis) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, a := range camps {
		if err := r.Save(ctx, tx, alertID, a); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing predictions: %w", err)
	}
	return nil
}

// Latest returns the most recent prediction of a camp.
func (r *PredictionRepository) Latest(ctx context.Context, campID string) (*models.Prediction, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT predicted_food, predicted_water, predicted_beds, predicted_medical_kits,
			predicted_volunteers, predicted_ambulances, risk_score, risk_level, urgency,
			saturation_percentage, prediction_source, explanations
		FROM camp_predictions
		WHERE camp_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT 1`, campID)

	var p models.Prediction
	var explanations string
	err := row.Scan(
		&p.FoodPackets,
		&p.WaterLiters,
		&p.Beds,
		&p.MedicalKits,
		&p.Volunteers,
		&p.Ambulances,
		&p.RiskScore,
		&p.RiskLevel,
		&p.Urgency,
		&p.SaturationPercentage,
		&p.Source,
		&explanations,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("prediction for camp %s: %w", campID, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scanning prediction: %w", err)
	}
	if err := json.Unmarshal([]byte(explanations), &p.Explanations); err != nil {
		return nil, fmt.Errorf("decoding explanations: %w", err)
	}
	return &p, nil
}

// CountByAlert returns how many predictions were stored for an alert.
func (r *PredictionRepository) CountByAlert(ctx context.Context, alertID string) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM camp_predictions WHERE alert_id = ?`, alertID).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting predictions: %w", err)
	}
	return n, nil
}
