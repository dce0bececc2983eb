package port

import (
	"context"

	"tripDeskWs/internal/modules/screens/domain"
)

// Publisher delivers messages to the websocket client owning a screen session.
type Publisher interface {
	Publish(ctx context.Context, msg *domain.Message)
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, msg *domain.Message)

func (f PublisherFunc) Publish(ctx context.Context, msg *domain.Message) {
	if f != nil {
		f(ctx, msg)
	}
}

// TopicHandler handles upstream change events received on one broker topic.
type TopicHandler interface {
	Topic() string
	Handle(ctx context.Context, msg *domain.Message) error
}
