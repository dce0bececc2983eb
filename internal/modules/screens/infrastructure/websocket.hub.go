package infrastructure

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"

	"tripDeskWs/internal/modules/screens/application/handler"
	"tripDeskWs/internal/modules/screens/domain"
)

// Hub tracks connected screen clients and their topic subscriptions.
type Hub struct {
	topics  map[string]map[*Client]struct{}
	clients map[string]*Client
	mu      sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		topics:  make(map[string]map[*Client]struct{}),
		clients: make(map[string]*Client),
	}
}

func (h *Hub) registerClient(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.id] = c
}

func (h *Hub) subscribe(c *Client, topic string) bool {
	if !c.allows(topic) {
		return false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, live := h.clients[c.id]; !live {
		return false
	}
	if h.topics[topic] == nil {
		h.topics[topic] = make(map[*Client]struct{})
	}
	h.topics[topic][c] = struct{}{}
	c.subscribed[topic] = struct{}{}
	return true
}

func (h *Hub) unsubscribe(c *Client, topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeTopicLocked(c, topic)
	slog.Debug("ws client unsubscribed", slog.String("clientId", c.id), slog.String("screen", c.screen), slog.String("topic", topic))
}

func (h *Hub) removeTopicLocked(c *Client, topic string) {
	if subs, ok := h.topics[topic]; ok {
		delete(subs, c)
		if len(subs) == 0 {
			delete(h.topics, topic)
		}
	}
	delete(c.subscribed, topic)
}

// detachClient removes c from every map and then closes it. Close hooks run without the
// hub lock held, so they may call back into the hub.
func (h *Hub) detachClient(c *Client) {
	if c == nil {
		return
	}
	h.mu.Lock()
	_, registered := h.clients[c.id]
	for topic := range c.subscribed {
		h.removeTopicLocked(c, topic)
	}
	delete(h.clients, c.id)
	h.mu.Unlock()

	c.close()
	if registered {
		slog.Info("ws client detached", slog.String("clientId", c.id), slog.String("userId", c.userID), slog.String("screen", c.screen))
	}
}

// Broadcast delivers msg to every client subscribed to its topic. The userId, sessionId and
// screen metadata keys narrow the audience when present.
func (h *Hub) Broadcast(_ context.Context, msg *domain.Message) {
	if msg == nil {
		return
	}
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("broadcast marshal error", slog.Any("error", err))
		return
	}

	h.mu.RLock()
	subs := h.topics[msg.Topic]
	clients := make([]*Client, 0, len(subs))
	for c := range subs {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	var targetUser, targetSession, targetScreen string
	if msg.Metadata != nil {
		targetUser = strings.TrimSpace(msg.Metadata["userId"])
		targetSession = strings.TrimSpace(msg.Metadata["sessionId"])
		targetScreen = strings.TrimSpace(msg.Metadata["screen"])
	}

	delivered := 0
	for _, c := range clients {
		if targetUser != "" && c.userID != targetUser {
			continue
		}
		if targetSession != "" && c.sessionID != targetSession {
			continue
		}
		if targetScreen != "" && !strings.EqualFold(c.screen, targetScreen) {
			continue
		}
		if c.enqueue(data) {
			delivered++
		}
	}
	slog.Debug("ws broadcast", slog.String("topic", msg.Topic), slog.Int("subscribers", len(clients)), slog.Int("delivered", delivered))
}

func (h *Hub) AttachClient(c *Client, topics []string) {
	h.registerClient(c)
	attached := make([]string, 0, len(topics))
	for _, topic := range topics {
		if trimmed := strings.TrimSpace(topic); trimmed != "" && h.subscribe(c, trimmed) {
			attached = append(attached, trimmed)
		}
	}
	slog.Info("ws client attached", slog.String("clientId", c.id), slog.String("userId", c.userID), slog.String("screen", c.screen), slog.Any("topics", attached))
}

// ClientCount reports the number of attached clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Shutdown detaches every client.
func (h *Hub) Shutdown() {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()
	for _, c := range clients {
		h.detachClient(c)
	}
}

var _ handler.Broadcaster = (*Hub)(nil)
