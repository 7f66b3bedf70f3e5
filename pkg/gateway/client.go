package gateway

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mukuvi/mukuvios/pkg/configuration"
	"github.com/mukuvi/mukuvios/pkg/logger"
	"github.com/mukuvi/mukuvios/pkg/shared"
)

// Client is one WebSocket connection bound to a login session. Writes go
// through the send channel so only writePump touches the connection.
type Client struct {
	id        string
	sessionID string
	conn      *websocket.Conn
	send      chan []byte
	gateway   *Gateway
}

// Send queues a message for delivery. Messages to a congested client are
// dropped rather than blocking the caller.
func (c *Client) Send(message []byte) {
	select {
	case c.send <- message:
	default:
		logger.GatewayWarn("client %s send buffer full, dropping message", c.id)
	}
}

// sendMessage marshals and queues a wire message.
func (c *Client) sendMessage(msg shared.Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		logger.GatewayError("client %s: marshaling message: %v", c.id, err)
		return
	}
	c.Send(data)
}

// readPump reads messages from the connection and dispatches them until
// the connection dies.
func (c *Client) readPump() {
	defer func() {
		c.gateway.removeClient(c)
		c.conn.Close()
	}()

	maxMessageSize := int64(configuration.GetInt("Network", "max_message_size_kb", 64)) * 1024
	pongTimeout := configuration.GetDuration("Network", "pong_timeout", 90*time.Second)

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.GatewayWarn("client %s read error: %v", c.id, err)
			}
			return
		}

		var msg shared.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.sendMessage(shared.Message{Type: shared.MessageTypeError, Error: "malformed message"})
			continue
		}

		c.gateway.handleMessage(c, &msg)
	}
}

// writePump drains the send channel onto the connection and keeps the
// connection alive with periodic pings.
func (c *Client) writePump() {
	writeWait := configuration.GetDuration("Network", "write_wait_timeout", 10*time.Second)
	pongTimeout := configuration.GetDuration("Network", "pong_timeout", 90*time.Second)
	pingPeriod := pongTimeout * 9 / 10

	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
