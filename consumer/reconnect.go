package consumer

import (
	"context"
	"time"
)

// State is the reconnection supervisor state
type State int32

const (
	// StateIdle means the consumer was never started
	StateIdle State = iota
	// StateRunning means the consume loop is processing deliveries
	StateRunning
	// StateDisconnected means a broker-initiated closure was observed
	StateDisconnected
	// StateReconnecting means channel acquisition attempts are in progress
	StateReconnecting
	// StateFailed means reconnection attempts were exhausted; terminal
	StateFailed
	// StateStopped means the consumer was stopped by its owner
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateDisconnected:
		return "disconnected"
	case StateReconnecting:
		return "reconnecting"
	case StateFailed:
		return "failed"
	case StateStopped:
		return "stopped"
	default:
		return "idle"
	}
}

// reconnect acquires a fresh channel and re-registers every known subscriber,
// retrying with a fixed backoff up to the configured attempt ceiling. It runs
// on the consume loop goroutine as an explicit bounded loop, never recursion.
func (c *Consumer) reconnect(ctx context.Context, cause error) error {
	c.setState(StateReconnecting)

	for attempt := 1; attempt <= c.reconnectMaxAttempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		c.logger.Info("trying to reconnect consumer",
			"key", c.connectionKey,
			"attempt", attempt,
			"maxAttempts", c.reconnectMaxAttempts,
		)

		channel, err := c.provider.OpenChannel(ctx, c.connectionKey)
		if err != nil {
			cause = err
			if !c.waitBackoff(ctx) {
				return ctx.Err()
			}
			continue
		}

		c.channel = channel
		if err := c.resubscribeAll(ctx); err != nil {
			cause = err
			channel.Close()
			if !c.waitBackoff(ctx) {
				return ctx.Err()
			}
			continue
		}

		c.logger.Info("consumer reconnected",
			"key", c.connectionKey,
			"attempts", attempt,
			"queues", c.registry.queueNames(),
		)
		return nil
	}

	return &ReconnectExhaustedError{
		Key:       c.connectionKey,
		Attempts:  c.reconnectMaxAttempts,
		Err:       cause,
		Timestamp: time.Now(),
	}
}

// resubscribeAll replays the registry onto the fresh channel, replacing every
// consumer tag exactly once.
func (c *Consumer) resubscribeAll(ctx context.Context) error {
	for _, item := range c.registry.snapshot() {
		if err := c.subscribeItem(ctx, item); err != nil {
			return err
		}
	}
	return nil
}

func (c *Consumer) waitBackoff(ctx context.Context) bool {
	select {
	case <-time.After(c.reconnectBackoff):
		return true
	case <-ctx.Done():
		return false
	}
}
