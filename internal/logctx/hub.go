package logctx

import (
	"sync"
	"time"
)

// Entry is one log line produced during a task execution, tagged with the
// execution that emitted it. Consumers filter on ExecutionID.
type Entry struct {
	ExecutionID uint      `json:"execution_id"`
	TaskName    string    `json:"task_name"`
	Level       string    `json:"level"`
	Message     string    `json:"message"`
	Time        time.Time `json:"time"`
}

// Hub fans log entries out to subscribed viewers in near real time.
type Hub struct {
	clients map[string]chan Entry
	mu      sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]chan Entry),
	}
}

// Subscribe registers a new client and returns a channel for receiving entries.
func (h *Hub) Subscribe(clientID string) <-chan Entry {
	h.mu.Lock()
	defer h.mu.Unlock()

	// Buffered channel to prevent blocking
	ch := make(chan Entry, 100)
	h.clients[clientID] = ch
	return ch
}

// Unsubscribe removes a client from the hub.
func (h *Hub) Unsubscribe(clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if ch, ok := h.clients[clientID]; ok {
		close(ch)
		delete(h.clients, clientID)
	}
}

// Publish broadcasts an entry to all connected clients.
func (h *Hub) Publish(entry Entry) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, ch := range h.clients {
		// Non-blocking send - drop entry if client buffer is full
		select {
		case ch <- entry:
		default:
			// Client is slow, skip this entry
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
