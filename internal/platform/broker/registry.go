package broker

import (
	"context"
	"log/slog"
	"sync"

	"tripDeskWs/internal/modules/screens/domain"
)

// Dispatcher routes a decoded message to its handlers.
type Dispatcher interface {
	Dispatch(ctx context.Context, msg *domain.Message) error
}

// StartKafkaConsumers starts one consumer per topic and returns a WaitGroup that is done once
// every consumer stopped after ctx ends.
func StartKafkaConsumers(
	ctx context.Context,
	dispatcher Dispatcher,
	brokers []string,
	groupID string,
	topics []string,
) *sync.WaitGroup {
	var wg sync.WaitGroup
	if len(brokers) == 0 || len(topics) == 0 {
		// kafka.NewReader must not be called with an empty broker list.
		slog.Info("kafka consumers disabled", slog.Int("brokers", len(brokers)), slog.Int("topics", len(topics)))
		return &wg
	}
	for _, topic := range topics {
		wg.Add(1)
		go func(tp string) {
			defer wg.Done()
			consumer := NewKafkaConsumer(brokers, groupID, tp)
			_ = consumer.Consume(ctx, func(msg *domain.Message) error {
				return dispatcher.Dispatch(ctx, msg)
			})
			slog.Info("kafka consumer stopped", slog.String("topic", tp))
		}(topic)
	}
	slog.Info("kafka consumers started", slog.Any("topics", topics), slog.String("groupId", groupID))
	return &wg
}
