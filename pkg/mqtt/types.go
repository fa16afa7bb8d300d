package mqtt

import (
	"context"
)

// MessageHandler is called, on its own goroutine, for every message whose
// topic matches a subscribed filter.
type MessageHandler func(ctx context.Context, topic string, payload []byte)

// Client is the broker connection used by the publishers. NewClient returns
// the autopaho-backed implementation; tests substitute an in-memory one.
type Client interface {
	// Start begins connecting in the background. Use AwaitConnection to wait.
	Start(ctx context.Context) error

	// Disconnect closes the connection without sending the will message.
	Disconnect(ctx context.Context)

	// Publish sends payload to topic. Retained messages replace the broker's
	// last value for the topic; an empty retained payload clears it.
	Publish(ctx context.Context, topic string, qos int, retain bool, payload []byte) error

	// Subscribe routes messages matching topic to handler. Subscriptions are
	// restored after a reconnect.
	Subscribe(ctx context.Context, topic string, qos int, handler MessageHandler) error

	// Unsubscribe drops the handler of topic and tells the broker.
	Unsubscribe(ctx context.Context, topic string) error

	// AwaitConnection blocks until the first connection is up or ctx ends.
	AwaitConnection(ctx context.Context) error

	// IsConnected reports whether the broker connection is currently up.
	IsConnected() bool
}
