package health

import (
	"context"
	"fmt"
	"time"

	"github.com/glimte/redrive-go/consumer"
)

// BrokerConnection is the connection surface the broker checker needs
type BrokerConnection interface {
	IsConnected() bool
}

// BrokerChecker reports whether the broker connection is usable
type BrokerChecker struct {
	conn BrokerConnection
}

// NewBrokerChecker creates a checker over a broker connection
func NewBrokerChecker(conn BrokerConnection) *BrokerChecker {
	return &BrokerChecker{conn: conn}
}

func (c *BrokerChecker) Name() string {
	return "broker"
}

func (c *BrokerChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	result := CheckResult{
		Name:      c.Name(),
		Timestamp: start,
		Details:   make(map[string]interface{}),
	}

	connected := c.conn.IsConnected()
	result.Details["connected"] = connected
	if connected {
		result.Status = StatusHealthy
		result.Message = "connection is usable"
	} else {
		result.Status = StatusUnhealthy
		result.Message = "connection is down"
	}

	result.Duration = time.Since(start)
	return result
}

// ConsumerChecker reports the consumer supervisor state. A reconnecting
// consumer is degraded, not unhealthy: deliveries resume once the supervisor
// succeeds.
type ConsumerChecker struct {
	consumer *consumer.Consumer
}

// NewConsumerChecker creates a checker over a consumer
func NewConsumerChecker(c *consumer.Consumer) *ConsumerChecker {
	return &ConsumerChecker{consumer: c}
}

func (c *ConsumerChecker) Name() string {
	return "consumer"
}

func (c *ConsumerChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	state := c.consumer.State()

	result := CheckResult{
		Name:      c.Name(),
		Timestamp: start,
		Details: map[string]interface{}{
			"state":         state.String(),
			"subscriptions": len(c.consumer.Subscriptions()),
		},
	}

	switch state {
	case consumer.StateRunning:
		result.Status = StatusHealthy
	case consumer.StateDisconnected, consumer.StateReconnecting:
		result.Status = StatusDegraded
	default:
		result.Status = StatusUnhealthy
	}
	result.Message = fmt.Sprintf("consumer is %s", state)

	if state == consumer.StateFailed {
		if err := c.consumer.Err(); err != nil {
			result.Error = err.Error()
		}
	}

	result.Duration = time.Since(start)
	return result
}
