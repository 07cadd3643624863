package models

import "time"

// Booking statuses. Transitions between them are owned by the booking service;
// no other code writes the status column.
const (
	BookingStatusPending   = "pending"
	BookingStatusConfirmed = "confirmed"
	BookingStatusCharging  = "charging"
	BookingStatusCompleted = "completed"
	BookingStatusCancelled = "cancelled"
)

// Booking reserves one connector at a station for a time window.
type Booking struct {
	ID          string     `json:"id"`
	UserID      int64      `json:"user_id"`
	StationID   int64      `json:"station_id"`
	VehicleType string     `json:"vehicle_type"`
	StartTime   time.Time  `json:"start_time"`
	EndTime     time.Time  `json:"end_time"`
	ActualStart *time.Time `json:"actual_start,omitempty"`
	ActualEnd   *time.Time `json:"actual_end,omitempty"`
	Status      string     `json:"status"`
	TotalCost   *float64   `json:"total_cost,omitempty"`
	PromotionID *int64     `json:"promotion_id,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}
