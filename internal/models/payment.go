package models

import "time"

// Payment settlement statuses reported by the external gateway.
const (
	PaymentStatusInitiated = "initiated"
	PaymentStatusPaid      = "paid"
	PaymentStatusFailed    = "failed"
)

// Payment tracks the settlement hand-off for a completed booking. Settlement
// is decoupled from the charging lifecycle; a failed payment never rolls a
// booking back.
type Payment struct {
	ID          int64     `json:"id"`
	BookingID   string    `json:"booking_id"`
	Amount      float64   `json:"amount"`
	Status      string    `json:"status"`
	RedirectURL string    `json:"redirect_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
