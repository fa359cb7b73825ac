package consumer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/glimte/redrive-go/contracts"
)

// Environment keys configuring the reconnection supervisor when no explicit
// values are injected.
const (
	EnvMaxReconnectAttempts = "REDRIVE_MAX_ATTEMPTS_TO_RECONNECT_CONSUMER"
	EnvReconnectWaitSeconds = "REDRIVE_WAIT_SECONDS_TO_RECONNECT_CONSUMER"
)

const (
	defaultReconnectMaxAttempts = 30
	defaultReconnectBackoff     = 5 * time.Second
	defaultCommandTimeout       = 2 * time.Second
	defaultKeyPrefix            = "consumer"
)

// Consumer links messages received from the broker with registered
// subscribers, resending failed messages through the retry or dead-letter
// exchanges. One worker goroutine owns the transport channel; every channel
// operation is issued from it.
type Consumer struct {
	organization  string
	service       string
	exchangeName  string
	connectionKey string
	maxRetries    int

	provider ChannelProvider
	channel  Channel

	registry *registry
	router   *Router
	chaos    Chaos
	logger   *slog.Logger

	innerBusExchange string

	commandTimeout       time.Duration
	reconnectMaxAttempts int
	reconnectBackoff     time.Duration

	commands chan command
	inbound  chan inbound

	mu      sync.Mutex
	running bool
	runCtx  context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	err     error

	state   atomic.Int32
	onError func(error)
}

// command is a channel operation marshalled onto the consume loop
type command struct {
	fn   func() error
	done chan error
}

// inbound is one delivery stamped with the queue and channel it arrived on
type inbound struct {
	queueName string
	channel   Channel
	delivery  Delivery
}

// Option configures the Consumer
type Option func(*Consumer)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(c *Consumer) {
		c.logger = logger
	}
}

// WithChaos sets the chaos injector
func WithChaos(chaos Chaos) Option {
	return func(c *Consumer) {
		c.chaos = chaos
	}
}

// WithExchangeNamer overrides the retry/dead-letter exchange naming convention
func WithExchangeNamer(namer ExchangeNamer) Option {
	return func(c *Consumer) {
		c.router = NewRouter(c.exchangeName, FallbackStoreExchangeName(c.organization), namer)
	}
}

// WithCommandTimeout bounds how long external callers wait for the consume
// loop to execute a marshalled operation
func WithCommandTimeout(timeout time.Duration) Option {
	return func(c *Consumer) {
		c.commandTimeout = timeout
	}
}

// WithReconnectMaxAttempts sets the reconnection attempt ceiling
func WithReconnectMaxAttempts(attempts int) Option {
	return func(c *Consumer) {
		c.reconnectMaxAttempts = attempts
	}
}

// WithReconnectBackoff sets the wait between reconnection attempts
func WithReconnectBackoff(backoff time.Duration) Option {
	return func(c *Consumer) {
		c.reconnectBackoff = backoff
	}
}

// WithConnectionKeyPrefix sets the prefix of the opaque connection key
func WithConnectionKeyPrefix(prefix string) Option {
	return func(c *Consumer) {
		c.connectionKey = fmt.Sprintf("%s-%s", prefix, c.exchangeName)
	}
}

// WithErrorCallback registers a hook invoked on escalated errors: handler
// contract violations, failed resend publishes, and reconnect exhaustion
func WithErrorCallback(fn func(error)) Option {
	return func(c *Consumer) {
		c.onError = fn
	}
}

// NewConsumer creates a consumer for the {organization}.{service} exchange.
// maxRetries below 1 dead-letters every failure on first delivery.
func NewConsumer(organization, service string, maxRetries int, provider ChannelProvider, options ...Option) *Consumer {
	exchangeName := ExchangeName(organization, service)
	c := &Consumer{
		organization:         organization,
		service:              service,
		exchangeName:         exchangeName,
		connectionKey:        fmt.Sprintf("%s-%s", defaultKeyPrefix, exchangeName),
		maxRetries:           maxRetries,
		provider:             provider,
		registry:             newRegistry(),
		router:               NewRouter(exchangeName, FallbackStoreExchangeName(organization), nil),
		chaos:                NopChaos{},
		logger:               slog.Default(),
		innerBusExchange:     exchangeName,
		commandTimeout:       defaultCommandTimeout,
		reconnectMaxAttempts: envInt(EnvMaxReconnectAttempts, defaultReconnectMaxAttempts),
		reconnectBackoff:     time.Duration(envInt(EnvReconnectWaitSeconds, 5)) * time.Second,
	}

	for _, opt := range options {
		opt(c)
	}

	return c
}

// SetInnerBusConfig redirects the buses injected into subscribers to another
// organization and service exchange.
func (c *Consumer) SetInnerBusConfig(organization, service string) {
	c.innerBusExchange = ExchangeName(organization, service)
}

// AddSubscribers registers every queue each subscriber declares. A
// subscription expecting the base message variant is bound to the store queue.
func (c *Consumer) AddSubscribers(subscribers []Subscriber) error {
	for _, sub := range subscribers {
		for _, info := range sub.SubscriptionInfo() {
			if info.MessageType == contracts.TypeMessage {
				if err := c.AddSubscriberOnQueue(storeQueueName, sub, true, contracts.TypeMessage); err != nil {
					return err
				}
				continue
			}
			queueName := QueueName(c.exchangeName, info.QueueSelector, sub.Name())
			if err := c.AddSubscriberOnQueue(queueName, sub, false, info.MessageType); err != nil {
				return err
			}
		}
	}
	return nil
}

// AddSubscriberOnDeadLetter registers a subscriber on the dead-letter queues
// derived from its subscription info.
func (c *Consumer) AddSubscriberOnDeadLetter(sub Subscriber) error {
	for _, info := range sub.SubscriptionInfo() {
		queueName := DeadLetterQueueName(c.exchangeName, info.QueueSelector, sub.Name())
		if err := c.AddSubscriberOnQueue(queueName, sub, false, info.MessageType); err != nil {
			return err
		}
	}
	return nil
}

// AddSubscriberOnQueue registers a subscriber on a specific queue. Registering
// on an already used queue name overwrites the prior entry. When the consumer
// is running the subscription starts immediately.
func (c *Consumer) AddSubscriberOnQueue(queueName string, sub Subscriber, isStore bool, expectedType contracts.MessageType) error {
	item := &SubscriberItem{
		QueueName:    queueName,
		Subscriber:   sub,
		IsStore:      isStore,
		ExpectedType: expectedType,
	}
	c.registry.set(item)

	c.mu.Lock()
	running := c.running
	runCtx := c.runCtx
	c.mu.Unlock()
	if !running {
		return nil
	}
	return c.inConsumerLoop(func() error {
		return c.subscribeItem(runCtx, item)
	})
}

// UnsubscribeOnQueue cancels the subscription on a queue. The registry entry
// is kept so the queue can be resumed later.
func (c *Consumer) UnsubscribeOnQueue(queueName string) error {
	item, ok := c.registry.get(queueName)
	if !ok {
		return &NotFoundError{Queue: queueName, Op: "unsubscribe", Registered: c.registry.queueNames()}
	}

	c.mu.Lock()
	running := c.running
	c.mu.Unlock()
	if !running {
		c.registry.setConsumerTag(queueName, "")
		return nil
	}

	return c.inConsumerLoop(func() error {
		if item.ConsumerTag == "" {
			return nil
		}
		if err := c.channel.Cancel(item.ConsumerTag); err != nil {
			return err
		}
		c.registry.setConsumerTag(queueName, "")
		c.logger.Info("unsubscribed from queue", "queue", queueName)
		return nil
	})
}

// ResumeOnQueue restarts consumption on a previously unsubscribed queue,
// replacing its consumer tag.
func (c *Consumer) ResumeOnQueue(queueName string) error {
	item, ok := c.registry.get(queueName)
	if !ok {
		return &NotFoundError{Queue: queueName, Op: "resume", Registered: c.registry.queueNames()}
	}

	c.mu.Lock()
	running := c.running
	runCtx := c.runCtx
	c.mu.Unlock()
	if !running {
		return ErrNotRunning
	}

	return c.inConsumerLoop(func() error {
		return c.subscribeItem(runCtx, item)
	})
}

// Start opens the transport channel, subscribes every registered queue and
// spawns the single consume loop goroutine.
func (c *Consumer) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return ErrAlreadyRunning
	}
	if c.registry.len() == 0 {
		return ErrNoSubscribers
	}

	channel, err := c.provider.OpenChannel(ctx, c.connectionKey)
	if err != nil {
		return err
	}
	c.channel = channel

	runCtx, cancel := context.WithCancel(ctx)
	c.runCtx = runCtx
	c.cancel = cancel
	c.done = make(chan struct{})
	c.commands = make(chan command)
	c.inbound = make(chan inbound)
	c.err = nil

	for _, item := range c.registry.snapshot() {
		if err := c.subscribeItem(runCtx, item); err != nil {
			cancel()
			channel.Close()
			return err
		}
	}

	c.running = true
	c.setState(StateRunning)
	go c.run(runCtx)

	c.logger.Info("consumer started",
		"key", c.connectionKey,
		"queues", c.registry.queueNames(),
		"maxRetries", c.maxRetries,
	)
	return nil
}

// Stop cancels the consume loop and joins it with no forced timeout. Callers
// needing a hard deadline must enforce it externally.
func (c *Consumer) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	cancel := c.cancel
	done := c.done
	c.mu.Unlock()

	cancel()
	<-done

	c.mu.Lock()
	c.running = false
	c.mu.Unlock()
	c.logger.Info("consumer stopped", "key", c.connectionKey)
}

// Done is closed when the consume loop exits, normally or fatally
func (c *Consumer) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

// Err returns the fatal error that terminated the consume loop, if any
func (c *Consumer) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Subscriptions returns a snapshot of the registered items for diagnostics
func (c *Consumer) Subscriptions() []SubscriberItem {
	items := c.registry.snapshot()
	out := make([]SubscriberItem, len(items))
	for i, item := range items {
		out[i] = *item
	}
	return out
}

// run is the single worker goroutine owning the transport channel
func (c *Consumer) run(ctx context.Context) {
	defer close(c.done)

	closeCh := c.channel.NotifyClose()
	for {
		select {
		case <-ctx.Done():
			c.shutdown()
			return

		case cmd := <-c.commands:
			cmd.done <- cmd.fn()

		case in := <-c.inbound:
			c.dispatch(ctx, in)

		case cause, ok := <-closeCh:
			if ctx.Err() != nil {
				c.shutdown()
				return
			}
			if !ok || cause == nil {
				cause = ErrConnectionLost
			}
			c.setState(StateDisconnected)
			c.logger.Error("connection closed by broker", "key", c.connectionKey, "error", cause)

			if err := c.reconnect(ctx, cause); err != nil {
				c.fail(err)
				return
			}
			closeCh = c.channel.NotifyClose()
			c.setState(StateRunning)
		}
	}
}

func (c *Consumer) shutdown() {
	c.setState(StateStopped)
	if err := c.channel.Close(); err != nil {
		c.logger.Warn("error closing channel", "key", c.connectionKey, "error", err)
	}
}

func (c *Consumer) fail(err error) {
	c.mu.Lock()
	c.err = err
	c.mu.Unlock()
	c.setState(StateFailed)
	c.logger.Error("consumer terminated", "key", c.connectionKey, "error", err)
	c.escalate(err)
}

func (c *Consumer) escalate(err error) {
	if c.onError != nil {
		c.onError(err)
	}
}

// subscribeItem starts consumption on one queue and spawns its forwarder.
// It runs on the consume loop goroutine, or before the loop starts.
func (c *Consumer) subscribeItem(ctx context.Context, item *SubscriberItem) error {
	consumerTag := fmt.Sprintf("%s-%s", c.connectionKey, uuid.New().String())
	channel := c.channel
	deliveries, err := channel.Consume(item.QueueName, consumerTag)
	if err != nil {
		return fmt.Errorf("cannot subscribe to queue %q: %w", item.QueueName, err)
	}
	c.registry.setConsumerTag(item.QueueName, consumerTag)
	go c.forward(ctx, item.QueueName, channel, deliveries)

	c.logger.Info("subscribed to queue",
		"queue", item.QueueName,
		"subscriber", item.Subscriber.Name(),
		"consumerTag", consumerTag,
		"isStore", item.IsStore,
	)
	return nil
}

// forward funnels one queue's deliveries into the consume loop, preserving
// per-queue delivery order. The forwarder outlives its channel on reconnect,
// draining deliveries that were in flight when the broker closed it; dispatch
// drops those by comparing the stamped channel against the live one.
func (c *Consumer) forward(ctx context.Context, queueName string, channel Channel, deliveries <-chan Delivery) {
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-deliveries:
			if !ok {
				return
			}
			select {
			case c.inbound <- inbound{queueName: queueName, channel: channel, delivery: d}:
			case <-ctx.Done():
				return
			}
		}
	}
}

// inConsumerLoop marshals fn onto the consume loop and waits bounded for its
// completion signal. On timeout the operation may still complete later.
func (c *Consumer) inConsumerLoop(fn func() error) error {
	cmd := command{fn: fn, done: make(chan error, 1)}
	select {
	case c.commands <- cmd:
	case <-time.After(c.commandTimeout):
		return ErrCommandTimeout
	}
	select {
	case err := <-cmd.done:
		return err
	case <-time.After(c.commandTimeout):
		return ErrCommandTimeout
	}
}

// dispatch processes one delivery. Every branch terminates in exactly one
// acknowledgment of the delivery, ack or nack, never both, never neither.
func (c *Consumer) dispatch(ctx context.Context, in inbound) {
	d := in.delivery

	// Delivery tags are scoped to the channel the delivery arrived on. A
	// delivery funneled by a forwarder of a channel the supervisor has since
	// replaced cannot be acked on the live one; it is dropped unacknowledged
	// and the broker redelivers it.
	if in.channel != c.channel {
		c.logger.Debug("dropping delivery from replaced channel",
			"queue", in.queueName,
			"deliveryTag", d.DeliveryTag,
		)
		return
	}

	c.logger.Debug("received message",
		"queue", in.queueName,
		"routingKey", d.RoutingKey,
		"redelivered", d.Redelivered,
		"size", len(d.Body),
		"headers", d.Headers,
	)

	item, ok := c.registry.get(in.queueName)
	if !ok {
		c.nack(d)
		return
	}

	if c.chaos.ShouldNack() {
		c.nack(d)
		c.logger.Warn("chaos nack simulation",
			"queue", in.queueName,
			"routingKey", d.RoutingKey,
			"subscriber", item.Subscriber.Name(),
		)
		return
	}

	msg, err := contracts.Parse(d.Body, item.ExpectedType)
	if err != nil {
		c.logger.Error("cannot parse message",
			"queue", in.queueName,
			"routingKey", d.RoutingKey,
			"subscriber", item.Subscriber.Name(),
			"error", err,
		)
		c.nack(d)
		return
	}

	c.chaos.Delay(ctx)

	var result *Result
	if c.chaos.ShouldFail() {
		c.logger.Warn("chaos failure simulation",
			"queue", in.queueName,
			"messageId", msg.GetID(),
			"subscriber", item.Subscriber.Name(),
		)
		result = Failure(ErrChaosFailure)
	} else {
		c.bindBuses(item.Subscriber)
		result = item.Subscriber.Handle(ctx, msg)
	}

	if result == nil {
		violation := &HandlerContractViolationError{
			Subscriber: item.Subscriber.Name(),
			Queue:      in.queueName,
		}
		c.logger.Error("handler contract violation", "error", violation, "messageId", msg.GetID())
		c.escalate(violation)
		c.nack(d)
		return
	}

	derived := DerivedAction{Action: ActionNone}
	if result.IsFailure() {
		headers := ensureOriginalQueueHeader(d.Headers, d.RoutingKey, item.Subscriber.Name())
		derived = c.router.Route(d.RoutingKey, headers, c.maxRetries, item.IsStore)

		// Resend-then-ack: the original delivery is acknowledged only after
		// the resend publish succeeds. A crash in between duplicates the
		// message, never drops it.
		if err := c.channel.Publish(ctx, derived.ExchangeName, derived.RoutingKey, d.Body, derived.Headers); err != nil {
			pubErr := &PublishError{Exchange: derived.ExchangeName, RoutingKey: derived.RoutingKey, Err: err}
			c.logger.Error("resend publish failed, leaving delivery unacknowledged",
				"queue", in.queueName,
				"messageId", msg.GetID(),
				"error", pubErr,
			)
			c.escalate(pubErr)
			return
		}
		c.ack(d)
	} else {
		c.ack(d)
	}

	c.logger.Info("computed message",
		"queue", in.queueName,
		"routingKey", d.RoutingKey,
		"messageId", msg.GetID(),
		"subscriber", item.Subscriber.Name(),
		"result", result.String(),
		"action", derived.Action.String(),
		"exchange", derived.ExchangeName,
	)
}

// bindBuses injects fresh bus handles bound to the current channel
func (c *Consumer) bindBuses(sub Subscriber) {
	bus := newChannelBus(c.channel, c.innerBusExchange)
	if aware, ok := sub.(EventBusAware); ok {
		aware.SetEventBus(bus)
	}
	if aware, ok := sub.(CommandBusAware); ok {
		aware.SetCommandBus(bus)
	}
}

// ensureOriginalQueueHeader sets the original-queue marker once, on the first
// failure; it is never overwritten afterwards.
func ensureOriginalQueueHeader(headers map[string]interface{}, routingKey, subscriberName string) map[string]interface{} {
	updated := make(map[string]interface{}, len(headers)+1)
	for k, v := range headers {
		updated[k] = v
	}
	if _, ok := headerString(updated, headerOriginalQueue); !ok {
		updated[headerOriginalQueue] = fmt.Sprintf("%s.%s", routingKey, subscriberName)
	}
	return updated
}

func (c *Consumer) ack(d Delivery) {
	if err := c.channel.Ack(d.DeliveryTag); err != nil {
		c.logger.Error("failed to ack message", "deliveryTag", d.DeliveryTag, "error", err)
	}
}

func (c *Consumer) nack(d Delivery) {
	if err := c.channel.Nack(d.DeliveryTag); err != nil {
		c.logger.Error("failed to nack message", "deliveryTag", d.DeliveryTag, "error", err)
	}
}

func (c *Consumer) setState(s State) {
	c.state.Store(int32(s))
}

// State returns the current supervisor state
func (c *Consumer) State() State {
	return State(c.state.Load())
}

func envInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
