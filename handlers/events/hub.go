package events

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"resumepersona/backend/services/session"
)

const sendBuffer = 16

type client struct {
	userID string
	send   chan []byte
}

// Hub fans session events out to the websocket connections of the identity
// they concern. It is registered as a session.Listener.
type Hub struct {
	logger *zap.Logger

	mu      sync.Mutex
	clients map[string]map[*client]struct{}
}

var _ session.Listener = (*Hub)(nil)

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{logger: logger, clients: make(map[string]map[*client]struct{})}
}

func (h *Hub) register(userID string) *client {
	c := &client{userID: userID, send: make(chan []byte, sendBuffer)}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[userID] == nil {
		h.clients[userID] = make(map[*client]struct{})
	}
	h.clients[userID][c] = struct{}{}
	return c
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[c.userID]
	if !ok {
		return
	}
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	close(c.send)
	if len(set) == 0 {
		delete(h.clients, c.userID)
	}
}

// OnEvent queues e for every connection of e.UserID. Slow connections drop
// events instead of blocking the publisher.
func (h *Hub) OnEvent(e session.Event) {
	data, err := json.Marshal(e)
	if err != nil {
		h.logger.Error("encode event failed", zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients[e.UserID] {
		select {
		case c.send <- data:
		default:
			h.logger.Warn("event dropped for slow connection", zap.String("user_id", e.UserID), zap.String("type", string(e.Type)))
		}
	}
}

// connections reports how many sockets userID has open.
func (h *Hub) connections(userID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients[userID])
}
