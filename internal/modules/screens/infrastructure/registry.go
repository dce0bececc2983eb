package infrastructure

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"tripDeskWs/internal/modules/screens/application/port"
	"tripDeskWs/internal/modules/screens/domain"
)

// HandlerRegistry routes broker messages to the handler registered for their topic.
// Several handlers may share a topic.
type HandlerRegistry struct {
	mu       sync.RWMutex
	handlers map[string][]port.TopicHandler
}

func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{handlers: make(map[string][]port.TopicHandler)}
}

func (r *HandlerRegistry) Register(h port.TopicHandler) {
	if h == nil {
		return
	}
	topic := strings.TrimSpace(h.Topic())
	if topic == "" {
		return
	}
	r.mu.Lock()
	r.handlers[topic] = append(r.handlers[topic], h)
	r.mu.Unlock()
}

// Topics lists the registered topics.
func (r *HandlerRegistry) Topics() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	topics := make([]string, 0, len(r.handlers))
	for topic := range r.handlers {
		topics = append(topics, topic)
	}
	return topics
}

func (r *HandlerRegistry) Dispatch(ctx context.Context, msg *domain.Message) error {
	if msg == nil {
		return nil
	}
	r.mu.RLock()
	handlers := r.handlers[msg.Topic]
	r.mu.RUnlock()
	if len(handlers) == 0 {
		slog.Debug("broker message without handler", slog.String("topic", msg.Topic))
		return nil
	}
	var errs []error
	for _, h := range handlers {
		if err := h.Handle(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
