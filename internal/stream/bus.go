package stream

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// InMemoryBus is a simple implementation of the Bus interface that
// keeps per-topic handler registrations in memory and dispatches
// published messages to them.
type InMemoryBus struct {
	mu       sync.RWMutex
	handlers map[string]map[uuid.UUID]Handler
	logger   *slog.Logger
}

// NewInMemoryBus creates a new instance of InMemoryBus.
func NewInMemoryBus(logger *slog.Logger) *InMemoryBus {
	return &InMemoryBus{
		handlers: make(map[string]map[uuid.UUID]Handler),
		logger:   logger.With("component", "in_memory_bus"),
	}
}

// Subscribe registers a handler for the given topic and returns a
// cancellation handle.
func (b *InMemoryBus) Subscribe(topic string, h Handler) Subscription {
	id := uuid.New()

	b.mu.Lock()
	if b.handlers[topic] == nil {
		b.handlers[topic] = make(map[uuid.UUID]Handler)
	}
	b.handlers[topic][id] = h
	count := len(b.handlers[topic])
	b.mu.Unlock()

	b.logger.Debug("registered new subscriber",
		"topic", topic,
		"subscriber_count", count)

	return &busSubscription{bus: b, topic: topic, id: id}
}

// Publish delivers the message to every handler subscribed to its
// topic. If any handler returns an error, the message is still sent to
// all other handlers, and the first error encountered is returned.
func (b *InMemoryBus) Publish(ctx context.Context, msg Message) error {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.handlers[msg.Topic]))
	for _, h := range b.handlers[msg.Topic] {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	if len(handlers) == 0 {
		b.logger.Debug("no subscribers for topic", "topic", msg.Topic)
		return nil
	}

	var firstErr error
	for _, h := range handlers {
		if err := h.HandleMessage(ctx, msg); err != nil {
			b.logger.Error("subscriber failed to process message",
				"error", err,
				"topic", msg.Topic)
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	return firstErr
}

// busSubscription implements Subscription for InMemoryBus.
type busSubscription struct {
	bus   *InMemoryBus
	topic string
	id    uuid.UUID
	once  sync.Once
}

// Cancel removes the handler registration. Safe to call repeatedly.
func (s *busSubscription) Cancel() {
	s.once.Do(func() {
		s.bus.mu.Lock()
		delete(s.bus.handlers[s.topic], s.id)
		s.bus.mu.Unlock()

		s.bus.logger.Debug("cancelled subscription", "topic", s.topic)
	})
}
