package hub

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"bus-simulator/internal/transit"
)

// Client is one websocket connection. Send is never closed; Done is closed
// once the hub drops the client or shuts down.
type Client struct {
	ID   string
	Send chan []byte

	done      chan struct{}
	closeOnce sync.Once

	routes map[string]struct{}
	mu     sync.RWMutex
}

func NewClient(id string, bufferSize int) *Client {
	return &Client{
		ID:     id,
		Send:   make(chan []byte, bufferSize),
		done:   make(chan struct{}),
		routes: make(map[string]struct{}),
	}
}

func (c *Client) Done() <-chan struct{} { return c.done }

func (c *Client) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// Enqueue queues data without blocking. It returns false if the client is
// gone or its buffer is full.
func (c *Client) Enqueue(data []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.Send <- data:
		return true
	default:
		return false
	}
}

// Follow limits the client's snapshots to the given routes. Following nothing
// means every route.
func (c *Client) Follow(routeIDs []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.routes = make(map[string]struct{}, len(routeIDs))
	for _, id := range routeIDs {
		c.routes[id] = struct{}{}
	}
}

func (c *Client) Follows(routeID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.routes) == 0 {
		return true
	}
	_, ok := c.routes[routeID]
	return ok
}

func (c *Client) following() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.routes) > 0
}

type Metrics interface {
	SetClients(n int)
}

// Hub fans snapshots out to websocket clients. It implements sim.Publisher.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}

	register   chan *Client
	unregister chan *Client
	broadcast  chan transit.Snapshot
	done       chan struct{}

	metrics Metrics
}

func NewHub(m Metrics) *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan transit.Snapshot, 64),
		done:       make(chan struct{}),
		metrics:    m,
	}
}

func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAllClients()
			close(h.done)
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = struct{}{}
			n := len(h.clients)
			h.mu.Unlock()
			h.setClients(n)
			log.Printf("ws client %s registered (%d total)", client.ID, n)

		case client := <-h.unregister:
			h.removeClient(client)

		case snap := <-h.broadcast:
			h.fanout(snap)
		}
	}
}

// Register adds a client. A client registered after shutdown is closed at once.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		client.close()
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// PublishSnapshot queues a snapshot for every client; it drops the snapshot
// when the hub is backed up since the next tick supersedes it.
func (h *Hub) PublishSnapshot(snap transit.Snapshot) error {
	select {
	case h.broadcast <- snap:
	default:
		log.Printf("hub broadcast channel full, dropping snapshot tick=%d", snap.Tick)
	}
	return nil
}

type SnapshotMessage struct {
	Type    string           `json:"type"`
	Payload transit.Snapshot `json:"payload"`
}

// EncodeSnapshot renders the snapshot as the client would see it.
func EncodeSnapshot(c *Client, snap transit.Snapshot) ([]byte, error) {
	if c != nil && c.following() {
		routes := make([]transit.RouteSnapshot, 0, len(snap.Routes))
		for _, r := range snap.Routes {
			if c.Follows(r.RouteID) {
				routes = append(routes, r)
			}
		}
		snap.Routes = routes
	}
	return json.Marshal(SnapshotMessage{Type: "snapshot", Payload: snap})
}

func (h *Hub) fanout(snap transit.Snapshot) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var shared []byte
	for client := range h.clients {
		var data []byte
		var err error
		if client.following() {
			data, err = EncodeSnapshot(client, snap)
		} else {
			if shared == nil {
				shared, err = EncodeSnapshot(nil, snap)
			}
			data = shared
		}
		if err != nil {
			continue
		}

		if !client.Enqueue(data) {
			log.Printf("ws client %s send buffer full", client.ID)
		}
	}
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, client)
	client.close()
	n := len(h.clients)
	h.mu.Unlock()
	h.setClients(n)
	log.Printf("ws client %s unregistered (%d total)", client.ID, n)
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		client.close()
	}
	h.clients = make(map[*Client]struct{})
	h.setClients(0)
}

func (h *Hub) setClients(n int) {
	if h.metrics != nil {
		h.metrics.SetClients(n)
	}
}
