package broadcast

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"sync/atomic"

	"github.com/example/chat-relay-demo/modules/chat"
)

// DefaultSendBuffer is the outbound queue length per client.
const DefaultSendBuffer = 256

const evictQueueSize = 64

// Client is the outbound side of one socket. The socket's write pump drains
// Outbound; the hub never writes to the socket itself.
type Client struct {
	ID         string
	RemoteAddr string

	send      chan []byte
	closeConn func() error
	closeOnce sync.Once
	evicting  atomic.Bool
}

// NewClient creates a client with a queue of buffer frames. closeConn is used
// to drop the socket when the client falls behind or the hub shuts down.
func NewClient(id, remoteAddr string, buffer int, closeConn func() error) *Client {
	if buffer <= 0 {
		buffer = DefaultSendBuffer
	}
	return &Client{
		ID:         id,
		RemoteAddr: remoteAddr,
		send:       make(chan []byte, buffer),
		closeConn:  closeConn,
	}
}

// Outbound returns the frames queued for the socket. It is closed when the
// client is unregistered.
func (c *Client) Outbound() <-chan []byte {
	return c.send
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		if c.closeConn != nil {
			_ = c.closeConn()
		}
	})
}

// Stats are cumulative hub counters.
type Stats struct {
	Clients   int    `json:"clients"`
	Delivered uint64 `json:"delivered"`
	Evicted   uint64 `json:"evicted"`
}

// Hub fans envelopes out to client queues. It implements chat.Transport.
type Hub struct {
	clients map[string]*Client
	evict   chan *Client
	done    chan struct{}
	mu      sync.RWMutex

	delivered atomic.Uint64
	evicted   atomic.Uint64
}

var _ chat.Transport = (*Hub)(nil)

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		evict:   make(chan *Client, evictQueueSize),
		done:    make(chan struct{}),
	}
}

// Start runs the hub in the background. Each call gets a fresh done channel,
// so a hub can be started again after Wait returns.
func (h *Hub) Start(ctx context.Context) {
	h.mu.Lock()
	h.done = make(chan struct{})
	done := h.done
	h.mu.Unlock()
	go h.run(ctx, done)
}

// Run handles evictions until ctx is cancelled, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	h.run(ctx, h.doneCh())
}

func (h *Hub) run(ctx context.Context, done chan struct{}) {
	for {
		select {
		case <-ctx.Done():
			log.Println("[hub] Shutting down...")
			h.CloseAll()
			close(done)
			return
		case client := <-h.evict:
			log.Printf("[hub] Evicting slow client %s (%s)", client.ID, client.RemoteAddr)
			client.close()
		}
	}
}

func (h *Hub) doneCh() chan struct{} {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.done
}

// Wait blocks until the hub has stopped.
func (h *Hub) Wait() {
	<-h.doneCh()
}

// CloseAll closes every client socket and queue. Sessions then run their
// normal disconnect path.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, client := range h.clients {
		client.close()
		close(client.send)
		delete(h.clients, id)
	}
}

// Register adds a client. It must be registered before the relay can
// address it.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client.ID] = client
	log.Printf("[hub] Client %s registered", client.ID)
}

// Unregister removes a client and closes its queue.
func (h *Hub) Unregister(clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	client, ok := h.clients[clientID]
	if !ok {
		return
	}
	delete(h.clients, clientID)
	close(client.send)
	log.Printf("[hub] Client %s unregistered", clientID)
}

// Deliver encodes env once and queues it for every listed client. A client
// whose queue is full is scheduled for eviction instead of blocking.
func (h *Hub) Deliver(clientIDs []string, env chat.Envelope) {
	if len(clientIDs) == 0 {
		return
	}
	data, err := json.Marshal(env)
	if err != nil {
		log.Printf("[hub] Failed to marshal %s envelope: %v", env.Event, err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, id := range clientIDs {
		client, ok := h.clients[id]
		if !ok {
			continue
		}
		select {
		case client.send <- data:
			h.delivered.Add(1)
		default:
			h.scheduleEviction(client)
		}
	}
}

// Send queues a single envelope for one client.
func (h *Hub) Send(clientID string, env chat.Envelope) {
	h.Deliver([]string{clientID}, env)
}

func (h *Hub) scheduleEviction(client *Client) {
	if !client.evicting.CompareAndSwap(false, true) {
		return
	}
	h.evicted.Add(1)
	select {
	case h.evict <- client:
	default:
		go client.close()
	}
}

// ClientCount returns the total number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Stats returns the hub counters.
func (h *Hub) Stats() Stats {
	return Stats{
		Clients:   h.ClientCount(),
		Delivered: h.delivered.Load(),
		Evicted:   h.evicted.Load(),
	}
}
