package consumer

import (
	"context"

	"github.com/glimte/redrive-go/contracts"
)

// SubscriptionInfo declares one queue a subscriber wants to consume from
type SubscriptionInfo struct {
	// QueueSelector is the routing selector part of the queue name,
	// e.g. "user.created". Ignored for store subscriptions.
	QueueSelector string
	// MessageType is the variant the subscriber expects. TypeMessage marks
	// a store subscription receiving every message on the store queue.
	MessageType contracts.MessageType
}

// Subscriber handles messages delivered from a queue
type Subscriber interface {
	// Handle processes one message. Returning nil violates the contract and
	// is escalated as a HandlerContractViolationError.
	Handle(ctx context.Context, msg contracts.Message) *Result

	// SubscriptionInfo declares the queues this subscriber consumes from
	SubscriptionInfo() []SubscriptionInfo

	// Name identifies the subscriber; it is part of the queue name
	Name() string
}

// EventBus publishes domain events. A fresh bus bound to the current
// transport channel is injected before every dispatch.
type EventBus interface {
	PublishDomainEvent(ctx context.Context, event *contracts.DomainEvent) error
}

// CommandBus dispatches commands the same way
type CommandBus interface {
	Dispatch(ctx context.Context, command *contracts.Command) error
}

// EventBusAware subscribers receive an EventBus before each dispatch
type EventBusAware interface {
	SetEventBus(bus EventBus)
}

// CommandBusAware subscribers receive a CommandBus before each dispatch
type CommandBusAware interface {
	SetCommandBus(bus CommandBus)
}
