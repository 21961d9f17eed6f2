package backendtest

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/gofiber/contrib/websocket"
)

// Client is a connected realtime client.
type Client struct {
	ID       string
	MemberID string
	Channel  string
	Conn     *websocket.Conn
}

// Envelope is the realtime wire frame.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// delivery is a frame queued for one member, or for everyone when MemberID is empty.
type delivery struct {
	MemberID string
	Channel  string
	Frame    []byte
}

// Hub tracks websocket clients and serializes every write through Run.
type Hub struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	deliver    chan delivery
	drop       chan chan struct{}
	done       chan struct{}
	mu         sync.RWMutex
	accepted   int
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		deliver:    make(chan delivery, 256),
		drop:       make(chan chan struct{}),
		done:       make(chan struct{}),
	}
}

// Run is the hub's main loop. It returns when ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAllClients()
			close(h.done)
			return
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ID] = client
			h.accepted++
			h.mu.Unlock()
			log.Printf("[hub] Client %s (member %s, %s) registered", client.ID, client.MemberID, client.Channel)
		case client := <-h.unregister:
			h.mu.Lock()
			delete(h.clients, client.ID)
			h.mu.Unlock()
		case d := <-h.deliver:
			h.handleDelivery(d)
		case ack := <-h.drop:
			h.closeAllClients()
			close(ack)
		}
	}
}

// Wait blocks until the hub has stopped.
func (h *Hub) Wait() {
	<-h.done
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, client := range h.clients {
		_ = client.Conn.Close()
	}
	h.clients = make(map[string]*Client)
}

func (h *Hub) handleDelivery(d delivery) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.clients {
		if d.MemberID != "" && client.MemberID != d.MemberID {
			continue
		}
		if d.Channel != "" && client.Channel != d.Channel {
			continue
		}
		if err := client.Conn.WriteMessage(websocket.TextMessage, d.Frame); err != nil {
			log.Printf("[hub] Failed to send to client %s: %v", client.ID, err)
		}
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		_ = client.Conn.Close()
	}
}

// Unregister removes a client from the hub.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Send queues an event for every connection of memberID on channel.
// Empty memberID or channel match everything.
func (h *Hub) Send(memberID, channel, event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	frame, err := json.Marshal(Envelope{Event: event, Data: payload})
	if err != nil {
		return err
	}
	h.deliver <- delivery{MemberID: memberID, Channel: channel, Frame: frame}
	return nil
}

// DropAll closes every client connection without stopping the hub.
func (h *Hub) DropAll() {
	ack := make(chan struct{})
	h.drop <- ack
	<-ack
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Accepted returns how many connections were ever registered.
func (h *Hub) Accepted() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.accepted
}
