package repository

import (
	"context"
	"database/sql"
	"errors"

	"chargebook/internal/apperrors"
	"chargebook/internal/models"
)

// PromotionRepository looks up promotions by code or id.
type PromotionRepository struct {
	db *sql.DB
}

// NewPromotionRepository returns repository.
func NewPromotionRepository(db *sql.DB) *PromotionRepository {
	return &PromotionRepository{db: db}
}

const promotionColumns = `
	id, code, discount_percent, max_discount, min_amount, valid_from, valid_until, is_active
`

// GetActiveByCode returns the promotion for a promo code if it is currently valid.
func (r *PromotionRepository) GetActiveByCode(ctx context.Context, code string) (*models.Promotion, error) {
	const query = `
		SELECT ` + promotionColumns + `
		FROM promotions
		WHERE code = $1 AND is_active = true AND valid_from <= NOW() AND valid_until > NOW()
	`
	return r.scanOne(r.db.QueryRowContext(ctx, query, code), "promo code "+code)
}

// GetByID returns a promotion regardless of validity window; completion uses
// the promotion captured at booking time.
func (r *PromotionRepository) GetByID(ctx context.Context, id int64) (*models.Promotion, error) {
	const query = `SELECT ` + promotionColumns + ` FROM promotions WHERE id = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id), "promotion")
}

func (r *PromotionRepository) scanOne(row *sql.Row, what string) (*models.Promotion, error) {
	var p models.Promotion
	err := row.Scan(
		&p.ID,
		&p.Code,
		&p.DiscountPercent,
		&p.MaxDiscount,
		&p.MinAmount,
		&p.ValidFrom,
		&p.ValidUntil,
		&p.IsActive,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("%s not found", what)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}
