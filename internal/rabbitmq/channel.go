package rabbitmq

import (
	"context"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/glimte/redrive-go/consumer"
)

// Channel adapts an AMQP channel to the consumer transport surface. It is
// owned by a single consumer worker goroutine and is not safe for concurrent
// use.
type Channel struct {
	ch     *amqp.Channel
	key    string
	logger *slog.Logger
}

func newChannel(ch *amqp.Channel, key string, logger *slog.Logger) *Channel {
	return &Channel{ch: ch, key: key, logger: logger}
}

// Consume starts delivering messages from queue under the given consumer tag
func (c *Channel) Consume(queue, consumerTag string) (<-chan consumer.Delivery, error) {
	deliveries, err := c.ch.Consume(
		queue,
		consumerTag,
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return nil, &ChannelError{Op: "consume", Key: c.key, Err: err, Timestamp: time.Now()}
	}

	out := make(chan consumer.Delivery)
	go func() {
		defer close(out)
		for d := range deliveries {
			out <- consumer.Delivery{
				Body:        d.Body,
				RoutingKey:  d.RoutingKey,
				DeliveryTag: d.DeliveryTag,
				Redelivered: d.Redelivered,
				Headers:     map[string]interface{}(d.Headers),
			}
		}
	}()
	return out, nil
}

// Ack acknowledges one delivery
func (c *Channel) Ack(deliveryTag uint64) error {
	return c.ch.Ack(deliveryTag, false)
}

// Nack rejects one delivery, requeueing it for broker redelivery
func (c *Channel) Nack(deliveryTag uint64) error {
	return c.ch.Nack(deliveryTag, false, true)
}

// Publish sends a persistent message to an exchange
func (c *Channel) Publish(ctx context.Context, exchange, routingKey string, body []byte, headers map[string]interface{}) error {
	return c.ch.PublishWithContext(
		ctx,
		exchange,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Headers:      amqp.Table(headers),
			Body:         body,
		},
	)
}

// Cancel stops the consumer registered under tag
func (c *Channel) Cancel(consumerTag string) error {
	return c.ch.Cancel(consumerTag, false)
}

// NotifyClose reports a transport-initiated closure. The returned channel is
// closed without a value when the AMQP channel shuts down gracefully.
func (c *Channel) NotifyClose() <-chan error {
	amqpClose := c.ch.NotifyClose(make(chan *amqp.Error, 1))
	out := make(chan error, 1)
	go func() {
		defer close(out)
		if err, ok := <-amqpClose; ok && err != nil {
			out <- err
		}
	}()
	return out
}

// Close releases the channel
func (c *Channel) Close() error {
	if c.ch.IsClosed() {
		return nil
	}
	return c.ch.Close()
}
