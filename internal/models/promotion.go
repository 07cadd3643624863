package models

import "time"

// Promotion discounts a charging cost when the base amount qualifies.
type Promotion struct {
	ID              int64     `json:"id"`
	Code            string    `json:"code"`
	DiscountPercent float64   `json:"discount_percent"`
	MaxDiscount     float64   `json:"max_discount"`
	MinAmount       float64   `json:"min_amount"`
	ValidFrom       time.Time `json:"valid_from"`
	ValidUntil      time.Time `json:"valid_until"`
	IsActive        bool      `json:"is_active"`
}
