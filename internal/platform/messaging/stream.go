package messaging

import (
	"context"
	"log/slog"
	"sync"

	"cratewatch/contexts/notifications/notification-service/ports"
)

// Broker fans realtime notification payloads out to a user's live stream
// subscribers. In-process implementation: each SSE connection subscribes a
// buffered channel, the delivery worker publishes into all of them. Slow
// consumers drop messages rather than block delivery.
type Broker struct {
	mu          sync.RWMutex
	subscribers map[string][]chan []byte
	logger      *slog.Logger
}

func NewBroker(logger *slog.Logger) *Broker {
	return &Broker{
		subscribers: make(map[string][]chan []byte),
		logger:      logger,
	}
}

// Subscribe registers a live channel for the user. The returned cancel
// function removes the subscription and must be called when the consumer
// disconnects.
func (b *Broker) Subscribe(userID string) (<-chan []byte, func()) {
	ch := make(chan []byte, 16)

	b.mu.Lock()
	b.subscribers[userID] = append(b.subscribers[userID], ch)
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		items := b.subscribers[userID]
		filtered := make([]chan []byte, 0, len(items))
		for _, item := range items {
			if item != ch {
				filtered = append(filtered, item)
			}
		}
		if len(filtered) == 0 {
			delete(b.subscribers, userID)
		} else {
			b.subscribers[userID] = filtered
		}
	}
	return ch, cancel
}

func (b *Broker) PublishRealtime(ctx context.Context, userID string, payload []byte) error {
	b.mu.RLock()
	subs := append([]chan []byte(nil), b.subscribers[userID]...)
	b.mu.RUnlock()

	for _, sub := range subs {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sub <- payload:
		default:
			if b.logger != nil {
				b.logger.Warn("dropping payload for slow stream subscriber",
					"event", "stream_publish_drop",
					"module", "internal/platform/messaging",
					"layer", "platform",
					"user_id", userID,
				)
			}
		}
	}
	return nil
}

// SubscriberCount reports live channels for the user, used by tests and the
// health endpoint.
func (b *Broker) SubscriberCount(userID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[userID])
}

var _ ports.StreamPublisher = (*Broker)(nil)
