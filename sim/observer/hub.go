package observer

import (
	"encoding/json"
	"sync"
	"sync/atomic"
)

const clientBuffer = 64

// Hub fans encoded frames out to subscribers. Publish never blocks: a
// subscriber that falls behind loses frames rather than stalling the tick loop.
type Hub struct {
	mu      sync.Mutex
	clients map[uint64]chan []byte
	last    []byte

	nextID  atomic.Uint64
	dropped atomic.Uint64
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[uint64]chan []byte)}
}

// Publish encodes f and offers it to every subscriber.
func (h *Hub) Publish(f Frame) error {
	b, err := json.Marshal(f)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.last = b
	for _, ch := range h.clients {
		select {
		case ch <- b:
		default:
			h.dropped.Add(1)
		}
	}
	return nil
}

// Latest returns the most recently published frame, or nil.
func (h *Hub) Latest() []byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.last
}

// subscribe registers a client. The latest frame, if any, is queued first so
// a new spectator does not wait a tick for something to draw.
func (h *Hub) subscribe() (uint64, <-chan []byte) {
	id := h.nextID.Add(1)
	ch := make(chan []byte, clientBuffer)
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.last != nil {
		ch <- h.last
	}
	h.clients[id] = ch
	return id, ch
}

func (h *Hub) unsubscribe(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, id)
}

// Clients returns the number of connected subscribers.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Dropped counts frames not delivered to slow subscribers.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}
