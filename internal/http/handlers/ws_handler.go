package handlers

import (
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"chargebook/internal/http/middleware"
	"chargebook/internal/service"
	"chargebook/internal/ws"
)

// WSHandler upgrades viewers into a booking's realtime room. Joining requires
// a token whose subject owns the booking (or an operator token); the room name
// is acked back on connect.
type WSHandler struct {
	hub      *ws.Hub
	bookings *service.BookingService
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewWSHandler builds handler.
func NewWSHandler(hub *ws.Hub, bookings *service.BookingService, logger *zap.Logger) *WSHandler {
	return &WSHandler{
		hub:      hub,
		bookings: bookings,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger: logger,
	}
}

// Join handles GET /ws/bookings/{id}.
func (h *WSHandler) Join(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	booking, err := h.bookings.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	role, _ := middleware.RoleFromContext(r.Context())
	if booking.UserID != userID && role != middleware.RoleOperator {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.String("booking_id", id), zap.Error(err))
		return
	}

	client := ws.NewClient(h.hub, id, conn, h.logger)
	client.Register()

	ack := map[string]string{
		"room":       "booking:" + id,
		"booking_id": id,
	}
	if err := conn.WriteJSON(ack); err != nil {
		h.logger.Warn("failed to ack room join", zap.String("booking_id", id), zap.Error(err))
	}

	client.Start()
}
