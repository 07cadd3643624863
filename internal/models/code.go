package models

import "time"

// ConfirmationCode is a single-use numeric secret binding a booking to the act
// of starting a charging session. At most one non-superseded code per booking.
type ConfirmationCode struct {
	ID         int64     `json:"id"`
	BookingID  string    `json:"booking_id"`
	Code       string    `json:"-"`
	Used       bool      `json:"used"`
	Superseded bool      `json:"superseded"`
	CreatedAt  time.Time `json:"created_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}
