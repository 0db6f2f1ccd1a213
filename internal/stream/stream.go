package stream

import (
	"context"
	"encoding/json"
)

// Message is a single frame delivered on a topic. The payload is kept
// as raw JSON; subscribers decode it into whatever shape the topic
// carries.
type Message struct {
	Topic   string          `json:"topic"`
	Payload json.RawMessage `json:"payload"`
}

// Handler defines an interface for components that consume messages
// from a topic. Handlers must tolerate duplicate delivery: the
// underlying transport is at-least-once, not exactly-once.
type Handler interface {
	// HandleMessage processes the given message within the provided
	// context. Returns an error if the message cannot be handled.
	HandleMessage(ctx context.Context, msg Message) error
}

// HandlerFunc adapts a plain function to the Handler interface.
type HandlerFunc func(ctx context.Context, msg Message) error

// HandleMessage implements Handler.
func (f HandlerFunc) HandleMessage(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}

// Subscription is the cancellation handle returned by Bus.Subscribe.
// Cancel stops delivery to the subscribed handler; it is safe to call
// more than once.
type Subscription interface {
	Cancel()
}

// Bus is the transport boundary for lifecycle events. Implementations
// may be backed by anything that can fan frames out by topic; delivery
// order is guaranteed only within a single connection.
type Bus interface {
	// Subscribe registers a handler for a topic and returns a handle
	// that stops delivery when cancelled.
	Subscribe(topic string, h Handler) Subscription

	// Publish delivers a message to every handler subscribed to its
	// topic. Handler errors do not stop delivery to other handlers;
	// the first error encountered is returned.
	Publish(ctx context.Context, msg Message) error
}
