package game

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
)

type Client struct {
	conn     *websocket.Conn
	playerID string
	mu       sync.Mutex
}

// Hub fans state-change events out to every connected observer. The
// core emits into it; delivery is the hub's problem, not the engines'.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan Event
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Event, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			log.Printf("[WS] Client connected: %s (Total: %d)", client.playerID, h.GetClientCount())

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.conn.Close()
				log.Printf("[WS] Client disconnected: %s (Total: %d)", client.playerID, len(h.clients))
			}
			h.mu.Unlock()

		case event := <-h.broadcast:
			jsonMessage, err := json.Marshal(event)
			if err != nil {
				log.Printf("[WS] Marshal error: %v", err)
				continue
			}

			h.mu.RLock()
			for client := range h.clients {
				go client.send(jsonMessage) // Non-blocking send
			}
			h.mu.RUnlock()
		}
	}
}

// Broadcast queues an event for fan-out without blocking the caller.
func (h *Hub) Broadcast(eventType string, data any) {
	select {
	case h.broadcast <- Event{Type: eventType, Data: data}:
	default:
		log.Println("[WS] Broadcast channel full, dropping event")
	}
}

func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (c *Client) send(message []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
		log.Printf("[WS] Write error for player %s: %v", c.playerID, err)
	}
}

// SendEvent marshals and delivers one event to a single client.
func (c *Client) SendEvent(eventType string, data any) {
	payload, err := json.Marshal(Event{Type: eventType, Data: data})
	if err != nil {
		log.Printf("[WS] Send marshal error: %v", err)
		return
	}
	c.send(payload)
}

func (h *Hub) RegisterClient(conn *websocket.Conn, playerID string) *Client {
	client := &Client{
		conn:     conn,
		playerID: playerID,
	}
	h.register <- client
	return client
}

func (h *Hub) UnregisterClient(conn *websocket.Conn) {
	h.mu.RLock()
	for client := range h.clients {
		if client.conn == conn {
			h.mu.RUnlock()
			h.unregister <- client
			return
		}
	}
	h.mu.RUnlock()
}
