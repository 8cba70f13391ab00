package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"staypricing/pkg/logger"
)

// Message is the frame exchanged with browser sessions in both directions.
type Message struct {
	Type      string          `json:"type"`
	RoomID    string          `json:"room_id,omitempty"`
	Timestamp int64           `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewMessage encodes data into a frame of the given type.
func NewMessage(messageType string, data interface{}) (Message, error) {
	msg := Message{Type: messageType, Timestamp: getCurrentTimestamp()}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return Message{}, err
		}
		msg.Data = raw
	}
	return msg, nil
}

type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	rooms      map[string]map[*Client]bool
	mutex      sync.RWMutex
	done       chan struct{}
	logger     *logger.Logger
}

func NewHub(log *logger.Logger) *Hub {
	if log == nil {
		log = logger.NewNop()
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		rooms:      make(map[string]map[*Client]bool),
		done:       make(chan struct{}),
		logger:     log,
	}
}

// Run serves registrations until ctx is done, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case <-ctx.Done():
			h.closeAll()
			return
		}
	}
}

// PropertyRoom is the room of sessions watching a property's calendar.
func PropertyRoom(propertyID string) string {
	return "property_" + propertyID
}

// Register hands a new client to the hub. It reports false once the hub
// has stopped.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mutex.Lock()
	h.clients[client] = true
	for roomID := range client.rooms {
		if h.rooms[roomID] == nil {
			h.rooms[roomID] = make(map[*Client]bool)
		}
		h.rooms[roomID][client] = true
	}
	h.mutex.Unlock()

	h.logger.WithField("client_id", client.ID).Debug("WebSocket client registered")

	welcome, _ := NewMessage("welcome", map[string]interface{}{
		"client_id": client.ID,
		"message":   "Connected successfully",
	})
	client.Send(welcome)
}

func (h *Hub) unregisterClient(client *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.removeLocked(client)
}

func (h *Hub) removeLocked(client *Client) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	client.closeSend()

	for roomID := range client.rooms {
		if room, exists := h.rooms[roomID]; exists {
			delete(room, client)
			if len(room) == 0 {
				delete(h.rooms, roomID)
			}
		}
	}

	h.logger.WithField("client_id", client.ID).Debug("WebSocket client unregistered")
}

func (h *Hub) closeAll() {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	for client := range h.clients {
		h.removeLocked(client)
	}
}

// BroadcastCalendarUpdate sends data to the sessions watching propertyID, or
// to every session when propertyID is empty.
func (h *Hub) BroadcastCalendarUpdate(propertyID, messageType string, data interface{}) error {
	msg, err := NewMessage(messageType, data)
	if err != nil {
		return err
	}
	if propertyID == "" {
		h.sendToAll(msg)
		return nil
	}
	msg.RoomID = PropertyRoom(propertyID)
	h.sendToRoom(msg.RoomID, msg)
	return nil
}

func (h *Hub) sendToAll(message Message) {
	data, _ := json.Marshal(message)

	h.mutex.RLock()
	var slow []*Client
	for client := range h.clients {
		if !client.enqueue(data) {
			slow = append(slow, client)
		}
	}
	h.mutex.RUnlock()

	h.dropSlow(slow)
}

func (h *Hub) sendToRoom(roomID string, message Message) {
	data, _ := json.Marshal(message)

	h.mutex.RLock()
	var slow []*Client
	for client := range h.rooms[roomID] {
		if !client.enqueue(data) {
			slow = append(slow, client)
		}
	}
	h.mutex.RUnlock()

	h.dropSlow(slow)
}

// dropSlow disconnects clients whose send buffer is full.
func (h *Hub) dropSlow(clients []*Client) {
	if len(clients) == 0 {
		return
	}
	h.mutex.Lock()
	defer h.mutex.Unlock()
	for _, client := range clients {
		h.removeLocked(client)
	}
}

func (h *Hub) JoinRoom(client *Client, roomID string) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if _, ok := h.clients[client]; !ok {
		return
	}
	if h.rooms[roomID] == nil {
		h.rooms[roomID] = make(map[*Client]bool)
	}
	h.rooms[roomID][client] = true
	client.rooms[roomID] = true
}

func (h *Hub) LeaveRoom(client *Client, roomID string) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if room, exists := h.rooms[roomID]; exists {
		delete(room, client)
		delete(client.rooms, roomID)

		if len(room) == 0 {
			delete(h.rooms, roomID)
		}
	}
}

// ClientCount reports the number of connected sessions.
func (h *Hub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

func getCurrentTimestamp() int64 {
	return time.Now().Unix()
}
