package repository

import (
	"context"
	"database/sql"

	"chargebook/internal/models"
)

// PaymentRepository tracks settlement hand-offs to the external gateway.
type PaymentRepository struct {
	db *sql.DB
}

// NewPaymentRepository returns repository.
func NewPaymentRepository(db *sql.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// Create records an initiated settlement for a completed booking.
func (r *PaymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	const query = `
		INSERT INTO payments (booking_id, amount, status, redirect_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`
	return r.db.QueryRowContext(ctx, query,
		payment.BookingID,
		payment.Amount,
		payment.Status,
		payment.RedirectURL,
	).Scan(&payment.ID, &payment.CreatedAt, &payment.UpdatedAt)
}

// UpdateStatus applies the gateway callback verdict. It only moves forward
// from initiated so replayed callbacks are harmless.
func (r *PaymentRepository) UpdateStatus(ctx context.Context, bookingID, status string) error {
	const query = `
		UPDATE payments
		SET status = $2, updated_at = NOW()
		WHERE booking_id = $1 AND status = 'initiated'
	`
	result, err := r.db.ExecContext(ctx, query, bookingID, status)
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
