package services

import (
	"sync"

	"github.com/econify/econify/internal/models"
)

type sseClient struct {
	userID uint
	ch     chan models.Notification
}

// SSEHub fans notifications out to the connected browsers of their recipient.
type SSEHub struct {
	clients map[string]*sseClient
	mu      sync.RWMutex
}

func NewSSEHub() *SSEHub {
	return &SSEHub{
		clients: make(map[string]*sseClient),
	}
}

// Subscribe registers a connection for userID and returns its event channel.
func (h *SSEHub) Subscribe(clientID string, userID uint) <-chan models.Notification {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan models.Notification, 100)
	h.clients[clientID] = &sseClient{userID: userID, ch: ch}
	return ch
}

func (h *SSEHub) Unsubscribe(clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if c, ok := h.clients[clientID]; ok {
		close(c.ch)
		delete(h.clients, clientID)
	}
}

// Publish delivers n to every connection of n.UserID. Slow clients whose
// buffer is full miss the event; the notification stays in the database.
func (h *SSEHub) Publish(n models.Notification) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, c := range h.clients {
		if c.userID != n.UserID {
			continue
		}
		select {
		case c.ch <- n:
		default:
		}
	}
}

func (h *SSEHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
