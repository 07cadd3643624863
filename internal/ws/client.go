package ws

import (
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeTimeout = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = 30 * time.Second
	readLimit    = 512
)

// Client is one viewer subscribed to a booking's room.
type Client struct {
	hub       *Hub
	bookingID string
	conn      *websocket.Conn
	send      chan []byte
	logger    *zap.Logger
}

// NewClient wraps an upgraded connection for the given booking room.
func NewClient(hub *Hub, bookingID string, conn *websocket.Conn, logger *zap.Logger) *Client {
	return &Client{
		hub:       hub,
		bookingID: bookingID,
		conn:      conn,
		send:      make(chan []byte, 32),
		logger:    logger,
	}
}

// BookingID returns the room key.
func (c *Client) BookingID() string {
	return c.bookingID
}

// Register joins the room. A no-op once the hub has stopped.
func (c *Client) Register() {
	select {
	case c.hub.register <- c:
	case <-c.hub.done:
	}
}

func (c *Client) unregister() {
	select {
	case c.hub.unregister <- c:
	case <-c.hub.done:
	}
}

// Start launches the write pump and blocks reading until the peer disconnects.
func (c *Client) Start() {
	go c.writePump()
	c.readPump()
}

// The channel is subscribe-only: inbound frames are discarded, reads exist to
// detect disconnects and answer pings.
func (c *Client) readPump() {
	defer func() {
		c.unregister()
		c.conn.Close()
	}()
	c.conn.SetReadLimit(readLimit)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			c.logger.Debug("viewer connection closed",
				zap.String("booking_id", c.bookingID),
				zap.Error(err),
			)
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
