package ws

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"
)

type outbound struct {
	bookingID string
	payload   []byte
}

// Hub maintains one room per booking and fans events out to its subscribers.
// Delivery is at-most-once with no replay buffer: a viewer that joins after an
// event was published never receives it retroactively. All room state is owned
// by the Run goroutine, so subscribe/unsubscribe/publish are safe to call
// concurrently.
type Hub struct {
	logger     *zap.Logger
	rooms      map[string]map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	events     chan outbound
	done       chan struct{}
}

// NewHub builds the hub.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		logger:     logger,
		rooms:      make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		events:     make(chan outbound, 256),
		done:       make(chan struct{}),
	}
}

// Run owns the room registry until the context is cancelled. Closing done
// releases clients whose register/unregister sends would otherwise block on a
// stopped hub.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for _, room := range h.rooms {
				for client := range room {
					close(client.send)
				}
			}
			h.rooms = make(map[string]map[*Client]struct{})
			return

		case client := <-h.register:
			room := h.rooms[client.bookingID]
			if room == nil {
				room = make(map[*Client]struct{})
				h.rooms[client.bookingID] = room
			}
			room[client] = struct{}{}
			h.logger.Debug("viewer joined booking room",
				zap.String("booking_id", client.bookingID),
				zap.Int("viewers", len(room)),
			)

		case client := <-h.unregister:
			h.drop(client)

		case msg := <-h.events:
			for client := range h.rooms[msg.bookingID] {
				select {
				case client.send <- msg.payload:
				default:
					// slow consumer, evict
					h.drop(client)
				}
			}
		}
	}
}

func (h *Hub) drop(client *Client) {
	room, ok := h.rooms[client.bookingID]
	if !ok {
		return
	}
	if _, ok := room[client]; !ok {
		return
	}
	delete(room, client)
	close(client.send)
	if len(room) == 0 {
		delete(h.rooms, client.bookingID)
	}
}

// Publish fans an event out to the booking's current subscribers.
func (h *Hub) Publish(bookingID string, event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("failed to marshal realtime event", zap.Error(err))
		return
	}
	select {
	case h.events <- outbound{bookingID: bookingID, payload: payload}:
	default:
		h.logger.Warn("dropping realtime event, hub queue full", zap.String("booking_id", bookingID))
	}
}
