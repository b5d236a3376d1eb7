package websocket

import (
	"log"
	"sync"
)

type HubInterface interface {
	Deliver(connID string, msg OutgoingMessage) bool
	CloseConnection(connID string)
	Close()
}

type Hub struct {
	clients    map[string]*Client // connection id -> client
	register   chan *Client
	unregister chan *Client
	incoming   chan IncomingMessage

	// OnIncoming receives every client message; OnClosed fires once per
	// connection after it leaves the clients map.
	OnIncoming func(IncomingMessage)
	OnClosed   func(connID string)

	quit chan struct{}
	mu   sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		incoming:   make(chan IncomingMessage),
		quit:       make(chan struct{}),
	}
}

func (h *Hub) Run() {

	log.Println("Hub started")

	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c.ID] = c
			log.Printf("Hub.register -> %s (connections: %d)", c.ID, len(h.clients))
			h.mu.Unlock()

		case c := <-h.unregister:
			h.mu.Lock()
			_, known := h.clients[c.ID]
			if known {
				delete(h.clients, c.ID)
				log.Printf("Hub.unregister -> %s (connections: %d)", c.ID, len(h.clients))
				close(c.Send)
			}
			h.mu.Unlock()
			// both pumps funnel here; only the first removal notifies
			if known && h.OnClosed != nil {
				h.OnClosed(c.ID)
			}

		case req := <-h.incoming:
			if h.OnIncoming != nil {
				h.OnIncoming(req)
			}

		case <-h.quit:
			h.mu.Lock()
			for _, c := range h.clients {
				close(c.Send)
			}
			h.clients = make(map[string]*Client)
			h.mu.Unlock()
		}
	}
}

// Deliver is a best-effort send. It reports false when the connection is no
// longer registered; a slow consumer gets the message dropped rather than
// blocking the caller.
func (h *Hub) Deliver(connID string, msg OutgoingMessage) bool {
	h.mu.RLock()
	client, ok := h.clients[connID]
	h.mu.RUnlock()
	if !ok {
		return false
	}
	select {
	case client.Send <- msg:
	default:
		// buffer full: drop, the signaling protocol tolerates lost frames
	}
	return true
}

// CloseConnection force-closes the underlying socket. The pumps notice and
// unregister, which fires OnClosed like any other disconnect.
func (h *Hub) CloseConnection(connID string) {
	h.mu.RLock()
	c, ok := h.clients[connID]
	h.mu.RUnlock()
	if ok && c.Conn != nil {
		_ = c.Conn.Close()
	}
}

// ClientByID looks up a live connection.
func (h *Hub) ClientByID(connID string) (*Client, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.clients[connID]
	return c, ok
}

func (h *Hub) Close() {
	close(h.quit)
}
