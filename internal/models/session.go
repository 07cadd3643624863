package models

import "time"

// ChargingSession is the telemetry-bearing sub-record of a booking while it is
// actively charging. EnergyKWh and BatteryPercent only ever move forward.
// StartBattery is nil until the first accepted telemetry reading arrives.
type ChargingSession struct {
	ID             int64      `json:"id"`
	BookingID      string     `json:"booking_id"`
	StartBattery   *int       `json:"start_battery_percent,omitempty"`
	BatteryPercent int        `json:"battery_percent"`
	EnergyKWh      float64    `json:"energy_kwh"`
	ActualCost     float64    `json:"actual_cost"`
	StartedAt      time.Time  `json:"started_at"`
	EndedAt        *time.Time `json:"ended_at,omitempty"`
}
