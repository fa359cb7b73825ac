package consumer

import (
	"context"
)

// Delivery is one message received from the transport
type Delivery struct {
	Body        []byte
	RoutingKey  string
	DeliveryTag uint64
	Redelivered bool
	Headers     map[string]interface{}
}

// Channel is the per-consumer transport handle. It is not safe for concurrent
// use: the consumer issues every channel operation from its worker goroutine.
type Channel interface {
	// Consume starts delivering messages from queue under the given tag
	Consume(queue, consumerTag string) (<-chan Delivery, error)

	// Ack acknowledges a delivery
	Ack(deliveryTag uint64) error

	// Nack negatively acknowledges a delivery, requeueing it
	Nack(deliveryTag uint64) error

	// Publish sends a message to an exchange
	Publish(ctx context.Context, exchange, routingKey string, body []byte, headers map[string]interface{}) error

	// Cancel stops the consumer registered under tag
	Cancel(consumerTag string) error

	// NotifyClose reports a transport-initiated closure of the channel
	NotifyClose() <-chan error

	// Close releases the channel
	Close() error
}

// ChannelProvider hands out transport channels keyed by an opaque identifier.
// The reconnection supervisor calls OpenChannel again after a disconnect.
type ChannelProvider interface {
	OpenChannel(ctx context.Context, key string) (Channel, error)
}
