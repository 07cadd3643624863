package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"chargebook/internal/apperrors"
	"chargebook/internal/models"
)

// CodeRepository handles persistence of confirmation codes.
type CodeRepository struct {
	db *sql.DB
}

// NewCodeRepository returns repository.
func NewCodeRepository(db *sql.DB) *CodeRepository {
	return &CodeRepository{db: db}
}

// Replace supersedes any live code for the booking and inserts the new one in
// a single transaction, preserving the one-active-code invariant.
func (r *CodeRepository) Replace(ctx context.Context, code *models.ConfirmationCode) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	const supersedeQuery = `
		UPDATE confirmation_codes
		SET superseded = true
		WHERE booking_id = $1 AND used = false AND superseded = false
	`
	if _, err := tx.ExecContext(ctx, supersedeQuery, code.BookingID); err != nil {
		return err
	}

	const insertQuery = `
		INSERT INTO confirmation_codes (booking_id, code, used, superseded, created_at, expires_at)
		VALUES ($1, $2, false, false, $3, $4)
		RETURNING id
	`
	if err := tx.QueryRowContext(ctx, insertQuery, code.BookingID, code.Code, code.CreatedAt, code.ExpiresAt).Scan(&code.ID); err != nil {
		return err
	}

	return tx.Commit()
}

// Consume verifies a candidate against the booking's live code and marks it
// used. The row is locked FOR UPDATE and the used flag is compare-and-set, so
// of two concurrent verifies exactly one succeeds and the other observes
// already_used. An empty reason means success.
func (r *CodeRepository) Consume(ctx context.Context, bookingID, candidate string) (apperrors.CodeReason, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	const lookupQuery = `
		SELECT id, code, used, expires_at
		FROM confirmation_codes
		WHERE booking_id = $1 AND superseded = false
		ORDER BY created_at DESC
		LIMIT 1
		FOR UPDATE
	`
	var (
		id        int64
		stored    string
		used      bool
		expiresAt time.Time
	)
	err = tx.QueryRowContext(ctx, lookupQuery, bookingID).Scan(&id, &stored, &used, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return apperrors.CodeReasonNotFound, nil
	}
	if err != nil {
		return "", err
	}

	switch {
	case used:
		return apperrors.CodeReasonAlreadyUsed, nil
	case time.Now().UTC().After(expiresAt):
		return apperrors.CodeReasonExpired, nil
	case stored != candidate:
		return apperrors.CodeReasonMismatch, nil
	}

	const consumeQuery = `
		UPDATE confirmation_codes
		SET used = true
		WHERE id = $1 AND used = false
	`
	result, err := tx.ExecContext(ctx, consumeQuery, id)
	if err != nil {
		return "", err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return "", err
	}
	if affected == 0 {
		return apperrors.CodeReasonAlreadyUsed, nil
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return "", nil
}
