package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"chargebook/internal/apperrors"
	"chargebook/internal/models"
)

// BookingRepository handles persistence of bookings, including the slot
// arbitration transaction.
type BookingRepository struct {
	db *sql.DB
}

// NewBookingRepository returns repository.
func NewBookingRepository(db *sql.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

const bookingColumns = `
	id, user_id, station_id, vehicle_type, start_time, end_time,
	actual_start, actual_end, status, total_cost, promotion_id, created_at, updated_at
`

// Reserve inserts a pending booking iff the station still has a free slot for
// the requested window. The station row is locked FOR UPDATE first so two
// concurrent reservations cannot both observe a free slot; counting without
// the lock is the classic double-booking race.
func (r *BookingRepository) Reserve(ctx context.Context, booking *models.Booking) (*models.Booking, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	const stationQuery = `
		SELECT total_slots, status, $2 = ANY(supported_vehicles)
		FROM stations
		WHERE id = $1
		FOR UPDATE
	`
	var (
		totalSlots int
		status     string
		supported  bool
	)
	err = tx.QueryRowContext(ctx, stationQuery, booking.StationID, booking.VehicleType).
		Scan(&totalSlots, &status, &supported)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("station %d not found", booking.StationID)
	}
	if err != nil {
		return nil, err
	}
	if status != models.StationStatusActive {
		return nil, apperrors.Conflict("station %d is not operating", booking.StationID)
	}
	if !supported {
		return nil, apperrors.Validation("vehicle type %q not supported at station %d", booking.VehicleType, booking.StationID)
	}

	const overlapQuery = `
		SELECT COUNT(*)
		FROM bookings
		WHERE station_id = $1
		  AND status IN ('pending', 'confirmed', 'charging')
		  AND start_time < $3
		  AND end_time > $2
	`
	var occupied int
	if err := tx.QueryRowContext(ctx, overlapQuery, booking.StationID, booking.StartTime, booking.EndTime).Scan(&occupied); err != nil {
		return nil, err
	}
	if occupied >= totalSlots {
		return nil, apperrors.Conflict("no slot available for requested window")
	}

	const insertQuery = `
		INSERT INTO bookings (id, user_id, station_id, vehicle_type, start_time, end_time, status, promotion_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, 'pending', $7, NOW(), NOW())
		RETURNING created_at, updated_at
	`
	if err := tx.QueryRowContext(ctx, insertQuery,
		booking.ID,
		booking.UserID,
		booking.StationID,
		booking.VehicleType,
		booking.StartTime,
		booking.EndTime,
		booking.PromotionID,
	).Scan(&booking.CreatedAt, &booking.UpdatedAt); err != nil {
		return nil, err
	}
	booking.Status = models.BookingStatusPending

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return booking, nil
}

// GetByID loads a booking.
func (r *BookingRepository) GetByID(ctx context.Context, id string) (*models.Booking, error) {
	const query = `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`
	var b models.Booking
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&b.ID,
		&b.UserID,
		&b.StationID,
		&b.VehicleType,
		&b.StartTime,
		&b.EndTime,
		&b.ActualStart,
		&b.ActualEnd,
		&b.Status,
		&b.TotalCost,
		&b.PromotionID,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("booking %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// UpdateStatus moves a booking from one status to another with a compare-and-set
// on the current status. Zero rows affected means the booking changed underneath
// the caller and the transition must be re-evaluated.
func (r *BookingRepository) UpdateStatus(ctx context.Context, id, from, to string) error {
	const query = `
		UPDATE bookings
		SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2
	`
	return r.execCAS(ctx, query, id, from, to)
}

// StartCharging flips confirmed -> charging, stamps the actual start and opens
// the one-to-one charging session in the same transaction. A failed session
// insert rolls the status back with it, so a charging booking always has a
// session row.
func (r *BookingRepository) StartCharging(ctx context.Context, id string, actualStart time.Time) (*models.ChargingSession, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	const casQuery = `
		UPDATE bookings
		SET status = 'charging', actual_start = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'confirmed'
	`
	result, err := tx.ExecContext(ctx, casQuery, id, actualStart)
	if err != nil {
		return nil, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, ErrStaleStatus
	}

	// start_battery_percent stays NULL until the first accepted telemetry
	// reading seeds the baseline.
	const sessionQuery = `
		INSERT INTO charging_sessions (booking_id, battery_percent, energy_kwh, actual_cost, started_at)
		VALUES ($1, 0, 0, 0, $2)
		RETURNING id
	`
	session := &models.ChargingSession{BookingID: id, StartedAt: actualStart}
	if err := tx.QueryRowContext(ctx, sessionQuery, id, actualStart).Scan(&session.ID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return session, nil
}

// Complete flips charging -> completed and writes the final immutable cost.
func (r *BookingRepository) Complete(ctx context.Context, id string, actualEnd time.Time, totalCost float64) error {
	const query = `
		UPDATE bookings
		SET status = 'completed', actual_end = $2, total_cost = $3, updated_at = NOW()
		WHERE id = $1 AND status = 'charging' AND total_cost IS NULL
	`
	return r.execCAS(ctx, query, id, actualEnd, totalCost)
}

// ExpiredBooking identifies a booking released by the grace-window sweep.
type ExpiredBooking struct {
	ID     string
	UserID int64
}

// ExpireStale cancels pending bookings created before pendingBefore and
// confirmed bookings whose code was never verified before confirmedBefore,
// releasing their slots. Returns the affected bookings.
func (r *BookingRepository) ExpireStale(ctx context.Context, pendingBefore, confirmedBefore time.Time) ([]ExpiredBooking, error) {
	const query = `
		UPDATE bookings
		SET status = 'cancelled', updated_at = NOW()
		WHERE (status = 'pending' AND created_at < $1)
		   OR (status = 'confirmed' AND updated_at < $2)
		RETURNING id, user_id
	`
	rows, err := r.db.QueryContext(ctx, query, pendingBefore, confirmedBefore)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var expired []ExpiredBooking
	for rows.Next() {
		var e ExpiredBooking
		if err := rows.Scan(&e.ID, &e.UserID); err != nil {
			return nil, err
		}
		expired = append(expired, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return expired, nil
}

// ErrStaleStatus indicates a compare-and-set update matched no row.
var ErrStaleStatus = errors.New("booking status changed concurrently")

func (r *BookingRepository) execCAS(ctx context.Context, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrStaleStatus
	}
	return nil
}
