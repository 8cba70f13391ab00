package websocket

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 256
)

// MessageHandler receives the frames a client sends. Calls for one client
// are made from a single goroutine, in arrival order.
type MessageHandler interface {
	HandleMessage(client *Client, msg Message)
	Close(client *Client)
}

type Client struct {
	ID      string
	hub     *Hub
	conn    *websocket.Conn
	send    chan []byte
	closed  bool
	rooms   map[string]bool
	handler MessageHandler
}

func NewClient(hub *Hub, conn *websocket.Conn, id string, handler MessageHandler) *Client {
	return &Client{
		ID:      id,
		hub:     hub,
		conn:    conn,
		send:    make(chan []byte, sendBuffer),
		rooms:   make(map[string]bool),
		handler: handler,
	}
}

// Send queues a frame for this client only. It reports false when the
// client is gone or cannot keep up.
func (c *Client) Send(msg Message) bool {
	if msg.Timestamp == 0 {
		msg.Timestamp = getCurrentTimestamp()
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return false
	}

	c.hub.mutex.RLock()
	ok := c.enqueue(data)
	c.hub.mutex.RUnlock()
	return ok
}

// Reply encodes data and sends it to this client.
func (c *Client) Reply(messageType string, data interface{}) bool {
	msg, err := NewMessage(messageType, data)
	if err != nil {
		return false
	}
	return c.Send(msg)
}

// Hub returns the hub the client is registered with.
func (c *Client) Hub() *Hub {
	return c.hub
}

// enqueue must be called with the hub mutex held.
func (c *Client) enqueue(data []byte) bool {
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// closeSend must be called with the hub write lock held.
func (c *Client) closeSend() {
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *Client) readPump() {
	defer func() {
		if c.handler != nil {
			c.handler.Close(c)
		}
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.WithError(err).WithField("client_id", c.ID).Warn("WebSocket read error")
			}
			break
		}

		c.handleMessage(message)
	}
}

func (c *Client) writePump() {
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

			// one frame per message; clients parse each frame as JSON
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

func (c *Client) handleMessage(message []byte) {
	var msg Message
	if err := json.Unmarshal(message, &msg); err != nil {
		c.Reply("error", map[string]string{"message": "invalid message format"})
		return
	}
	msg.Timestamp = getCurrentTimestamp()

	switch msg.Type {
	case "join_room":
		if msg.RoomID != "" {
			c.hub.JoinRoom(c, msg.RoomID)
		}

	case "leave_room":
		if msg.RoomID != "" {
			c.hub.LeaveRoom(c, msg.RoomID)
		}

	default:
		if c.handler != nil {
			c.handler.HandleMessage(c, msg)
		}
	}
}
