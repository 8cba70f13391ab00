package websocket

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// SessionFactory creates the message handler of a new connection.
type SessionFactory func(c *gin.Context) MessageHandler

type Handler struct {
	hub        *Hub
	upgrader   websocket.Upgrader
	newSession SessionFactory
}

func NewHandler(hub *Hub, readBufferSize, writeBufferSize int, checkOrigin bool, newSession SessionFactory) *Handler {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  readBufferSize,
		WriteBufferSize: writeBufferSize,
	}
	if !checkOrigin {
		upgrader.CheckOrigin = func(r *http.Request) bool { return true }
	}

	return &Handler{
		hub:        hub,
		upgrader:   upgrader,
		newSession: newSession,
	}
}

func (h *Handler) HandleWebSocket(c *gin.Context) {
	var session MessageHandler
	if h.newSession != nil {
		session = h.newSession(c)
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.hub.logger.WithError(err).Warn("WebSocket upgrade failed")
		return
	}

	client := NewClient(h.hub, conn, uuid.NewString(), session)
	if propertyID := c.Query("property_id"); propertyID != "" {
		client.rooms[PropertyRoom(propertyID)] = true
	}
	if !h.hub.Register(client) {
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}
