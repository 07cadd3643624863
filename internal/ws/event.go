package ws

// Event types delivered on a booking's realtime channel.
const (
	EventChargingUpdate    = "charging_update"
	EventChargingCompleted = "charging_completed"
	EventChargingStopped   = "charging_stopped"
)

// Event is the wire envelope for room messages.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}
