package realtime

import (
	"encoding/json"

	"github.com/gofiber/contrib/websocket"
)

// Conn is the part of a websocket connection the realtime layer relies on.
// Tests substitute fakes for it.
type Conn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Frame is the wire envelope of every socket event, in both directions.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type Client struct {
	// UserID is empty for connections whose session did not resolve to a
	// user.
	UserID string

	conn Conn
	send chan []byte
}

func NewClient(conn Conn, userID string) *Client {
	return &Client{
		UserID: userID,
		conn:   conn,
		send:   make(chan []byte, 16),
	}
}

// WritePump drains the send buffer into the connection until the hub
// closes the channel on unregister.
func (c *Client) WritePump() {
	for data := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
	_ = c.conn.Close()
}

func (c *Client) reply(event string, data interface{}) {
	frame, err := json.Marshal(Frame{Event: event, Data: mustRaw(data)})
	if err != nil {
		return
	}
	select {
	case c.send <- frame:
	default:
	}
}
