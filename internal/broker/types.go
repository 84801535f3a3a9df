package broker

import (
	"context"
)

// Delivery is one attempt at processing a fetched message. Attempt starts
// at 1 and increments on every redelivery of the same message.
type Delivery struct {
	MessageID string
	Topic     string
	Body      []byte
	Attempt   int
	Heartbeat bool
}

// HandlerFunc processes one delivery. Returning a retry.FatalError skips
// remaining attempts and dead-letters immediately; any other error leaves
// the message for redelivery until the attempt budget is exhausted.
type HandlerFunc func(ctx context.Context, delivery Delivery) error

// DeadLetterer receives deliveries that are out of retry budget or
// permanently failed.
type DeadLetterer interface {
	DeadLetter(ctx context.Context, delivery Delivery, reason, description string) error
}

type Producer interface {
	Publish(ctx context.Context, topic, key string, value interface{}) error
	Close() error
}

type Consumer interface {
	Consume(ctx context.Context, topic string, handler HandlerFunc) error
	Close() error
}
