package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dukerupert/wadake/internal/events"
)

// Topic names the ledger a client follows.
func GroupTopic(groupID string) string { return "group:" + groupID }
func UserTopic(userID string) string   { return "user:" + userID }

// topicFor picks the ledger an event belongs to.
func topicFor(e events.Event) string {
	if e.GroupID != "" {
		return GroupTopic(e.GroupID)
	}
	return UserTopic(e.UserID)
}

// Hub tracks connected clients by topic and delivers ledger events to the
// clients following the affected ledger.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	logger  *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		logger:  logger,
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

// Unregister removes a client from the hub and closes its send channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// Publish implements events.Publisher. Delivery never blocks: a client whose
// buffer is full misses the event and will catch up on its next refetch.
func (h *Hub) Publish(_ context.Context, e events.Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	topic := topicFor(e)

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		if c.topic != topic {
			continue
		}
		select {
		case c.send <- data:
		default:
			h.logger.Debug("dropped event for slow client", "topic", topic, "type", e.Type)
		}
	}
	return nil
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
