package handler

import (
	"context"
	"log/slog"
	"strings"

	"tripDeskWs/internal/modules/screens/application/port"
	"tripDeskWs/internal/modules/screens/domain"
	"tripDeskWs/internal/shared/normalization"
)

// Broadcaster fans a message out to every websocket client subscribed to its topic.
type Broadcaster interface {
	Broadcast(ctx context.Context, msg *domain.Message)
}

// Refresher reloads the live screens showing an entity.
type Refresher interface {
	RefreshEntity(ctx context.Context, entity string) int
}

// EntityStreamHandler reacts to upstream change events for one entity: the event is
// forwarded to subscribed clients and every live screen of that entity reloads.
type EntityStreamHandler struct {
	entity         string
	kafkaTopic     string
	allowedActions map[string]struct{}
	broadcaster    Broadcaster
	refresher      Refresher
}

func NewEntityStreamHandler(entity, kafkaTopic string, allowedActions []string, broadcaster Broadcaster, refresher Refresher) *EntityStreamHandler {
	actionSet := make(map[string]struct{}, len(allowedActions))
	for _, a := range allowedActions {
		if v := strings.TrimSpace(strings.ToLower(a)); v != "" {
			actionSet[v] = struct{}{}
		}
	}
	return &EntityStreamHandler{
		entity:         normalization.NormalizeEntity(entity),
		kafkaTopic:     strings.TrimSpace(kafkaTopic),
		allowedActions: actionSet,
		broadcaster:    broadcaster,
		refresher:      refresher,
	}
}

func (h *EntityStreamHandler) Topic() string { return h.kafkaTopic }

func (h *EntityStreamHandler) Handle(ctx context.Context, msg *domain.Message) error {
	if msg == nil {
		return nil
	}
	if len(h.allowedActions) > 0 {
		if _, ok := h.allowedActions[strings.ToLower(strings.TrimSpace(msg.Action))]; !ok {
			slog.Debug("entity-stream action filtered", slog.String("topic", h.kafkaTopic), slog.String("action", msg.Action))
			return nil
		}
	}

	entity := h.entity
	if entity == "" {
		entity = normalization.NormalizeEntity(msg.Entity)
	}
	if entity == "" {
		slog.Warn("entity-stream event without entity", slog.String("topic", h.kafkaTopic))
		return nil
	}

	// Clients subscribe to "<entity>.<action>", whatever the upstream topic is called.
	forwarded := *msg
	forwarded.Entity = entity
	forwarded.Topic = entity + "." + strings.ToLower(strings.TrimSpace(msg.Action))
	if h.broadcaster != nil {
		h.broadcaster.Broadcast(ctx, &forwarded)
	}

	if h.refresher == nil {
		return nil
	}
	refreshed := h.refresher.RefreshEntity(ctx, entity)
	slog.Info("entity-stream refresh",
		slog.String("entity", entity),
		slog.String("action", msg.Action),
		slog.String("resourceId", msg.ResourceID),
		slog.Int("sessions", refreshed))
	return nil
}

var _ port.TopicHandler = (*EntityStreamHandler)(nil)
