// Package bus is the publish/subscribe client shared by all services.
//
// Delivery is at-least-once per connected subscriber with fan-out semantics:
// every subscriber of a channel receives its own copy. There is no backlog;
// a subscriber that is disconnected when a message is published misses it.
package bus

import (
	"context"
	"errors"
)

var (
	ErrBusUnavailable = errors.New("message bus unavailable")
	ErrClosed         = errors.New("subscription closed")
)

type Message struct {
	Channel string
	Payload []byte
}

// Handler processes a single message. Returned errors are logged by the
// consumer and never stop the receive loop.
type Handler func(ctx context.Context, msg Message) error

type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// Subscription is a lazy, unbounded sequence of messages. Next blocks until a
// message arrives; any error means the stream has terminated and the
// subscription must be discarded.
type Subscription interface {
	Next(ctx context.Context) (Message, error)
	Close() error
}

type Subscriber interface {
	Subscribe(ctx context.Context, channel string) (Subscription, error)
}

type Bus interface {
	Publisher
	Subscriber
	Close() error
}
