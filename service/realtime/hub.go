package realtime

import (
	"encoding/json"
	"log"
	"sync"
)

// Topics a client receives on its feed. Everything is scoped to the
// authenticated user; there are no cross-user subscriptions.
const (
	TopicAppointments  = "appointments"
	TopicNotifications = "notifications"
	TopicPayouts       = "payouts"
)

// Event is one push on the subscribe-and-push feed. The mobile client keys its
// cache invalidation off Topic and Action.
type Event struct {
	Topic   string      `json:"topic"`
	Action  string      `json:"action"`
	Payload interface{} `json:"payload"`
}

// Hub fans committed writes out to connected clients. Services publish after
// their transaction commits, so subscribers never observe half-applied state.
type Hub struct {
	mu          sync.RWMutex
	clients     map[*Client]bool
	connections map[uint][]*Client

	Register   chan *Client
	Unregister chan *Client
}

func NewHub() *Hub {
	return &Hub{
		clients:     make(map[*Client]bool),
		connections: make(map[uint][]*Client),
		Register:    make(chan *Client),
		Unregister:  make(chan *Client),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.mu.Lock()
			h.clients[client] = true
			h.connections[client.UserID] = append(h.connections[client.UserID], client)
			h.mu.Unlock()

		case client := <-h.Unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)

				connections := h.connections[client.UserID]
				for i, conn := range connections {
					if conn == client {
						h.connections[client.UserID] = append(connections[:i], connections[i+1:]...)
						break
					}
				}
			}
			h.mu.Unlock()
		}
	}
}

// PublishToUser delivers an event to every connection the user has open.
// Slow consumers are dropped rather than allowed to block the hub.
func (h *Hub) PublishToUser(userID uint, event Event) {
	jsonMsg, err := json.Marshal(event)
	if err != nil {
		log.Printf("Error marshalling realtime event: %v", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	remaining := h.connections[userID][:0]
	for _, client := range h.connections[userID] {
		select {
		case client.Send <- jsonMsg:
			remaining = append(remaining, client)
		default:
			close(client.Send)
			delete(h.clients, client)
		}
	}
	h.connections[userID] = remaining
}
