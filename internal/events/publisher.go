package events

import "context"

// Publisher hands an event to the broker. Delivery is asynchronous: a nil
// error means the event was accepted for sending, not that it was stored.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Message is one delivered record as seen by a subscriber.
type Message struct {
	Topic     string
	Key       []byte
	Value     []byte
	Partition int
	Offset    int64
}

// Handler processes one message. It must isolate its own failures.
type Handler func(ctx context.Context, m Message)

// Subscriber delivers messages to h until ctx is cancelled. Handlers may be
// invoked concurrently.
type Subscriber interface {
	Run(ctx context.Context, h Handler) error
}
