package consumer

import (
	"context"
	"fmt"

	"github.com/glimte/redrive-go/contracts"
)

// channelBus publishes messages produced inside a handler on the channel the
// handler's delivery arrived on. A fresh instance is bound before every
// dispatch so handlers always publish through the live channel.
type channelBus struct {
	channel      Channel
	exchangeName string
}

func newChannelBus(channel Channel, exchangeName string) *channelBus {
	return &channelBus{channel: channel, exchangeName: exchangeName}
}

// PublishDomainEvent implements EventBus
func (b *channelBus) PublishDomainEvent(ctx context.Context, event *contracts.DomainEvent) error {
	if event == nil {
		return fmt.Errorf("consumer: cannot publish nil domain event")
	}
	return b.publish(ctx, event)
}

// Dispatch implements CommandBus
func (b *channelBus) Dispatch(ctx context.Context, command *contracts.Command) error {
	if command == nil {
		return fmt.Errorf("consumer: cannot dispatch nil command")
	}
	return b.publish(ctx, command)
}

func (b *channelBus) publish(ctx context.Context, msg contracts.Message) error {
	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("consumer: cannot serialize %s: %w", msg.GetName(), err)
	}
	if err := b.channel.Publish(ctx, b.exchangeName, msg.GetName(), body, nil); err != nil {
		return &PublishError{Exchange: b.exchangeName, RoutingKey: msg.GetName(), Err: err}
	}
	return nil
}
