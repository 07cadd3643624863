package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"chargebook/internal/apperrors"
	"chargebook/internal/models"
)

// SessionRepository handles persistence of charging sessions.
type SessionRepository struct {
	db *sql.DB
}

// NewSessionRepository returns repository.
func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// GetByBooking loads the session attached to a booking. Sessions are opened
// by BookingRepository.StartCharging inside the status transition transaction.
func (r *SessionRepository) GetByBooking(ctx context.Context, bookingID string) (*models.ChargingSession, error) {
	const query = `
		SELECT id, booking_id, start_battery_percent, battery_percent, energy_kwh, actual_cost, started_at, ended_at
		FROM charging_sessions
		WHERE booking_id = $1
	`
	var s models.ChargingSession
	err := r.db.QueryRowContext(ctx, query, bookingID).Scan(
		&s.ID,
		&s.BookingID,
		&s.StartBattery,
		&s.BatteryPercent,
		&s.EnergyKWh,
		&s.ActualCost,
		&s.StartedAt,
		&s.EndedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("charging session for booking %s not found", bookingID)
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// UpdateProgress records an accepted telemetry snapshot. The WHERE guards keep
// the stored values monotonic even if an out-of-order write slips past the
// per-booking queue. The first accepted reading seeds start_battery_percent,
// the baseline for charge-rate estimates.
func (r *SessionRepository) UpdateProgress(ctx context.Context, bookingID string, battery int, energyKWh, estimatedCost float64) error {
	const query = `
		UPDATE charging_sessions
		SET battery_percent = $2,
		    energy_kwh = $3,
		    actual_cost = $4,
		    start_battery_percent = COALESCE(start_battery_percent, $2)
		WHERE booking_id = $1
		  AND battery_percent <= $2
		  AND energy_kwh <= $3
		  AND ended_at IS NULL
	`
	result, err := r.db.ExecContext(ctx, query, bookingID, battery, energyKWh, estimatedCost)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return apperrors.Anomaly("telemetry for booking %s regressed or session closed", bookingID)
	}
	return nil
}

// Close finalizes the session when the booking completes or is stopped.
func (r *SessionRepository) Close(ctx context.Context, bookingID string, endedAt time.Time, finalBattery int, finalEnergy, actualCost float64) error {
	const query = `
		UPDATE charging_sessions
		SET ended_at = $2, battery_percent = $3, energy_kwh = $4, actual_cost = $5
		WHERE booking_id = $1 AND ended_at IS NULL
	`
	result, err := r.db.ExecContext(ctx, query, bookingID, endedAt, finalBattery, finalEnergy, actualCost)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
