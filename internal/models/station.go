package models

// Station operating statuses.
const (
	StationStatusActive      = "active"
	StationStatusMaintenance = "maintenance"
)

// Station metadata consumed by the booking core. This service never writes to
// stations beyond the availability implied by its own bookings.
type Station struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	TotalSlots  int     `json:"total_slots"`
	PricePerKWh float64 `json:"price_per_kwh"`
	Status      string  `json:"status"`
}
