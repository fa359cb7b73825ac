package consumer

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrNoSubscribers is returned by Start when nothing is registered
	ErrNoSubscribers = errors.New("consumer: cannot start consuming without any subscriber defined")

	// ErrAlreadyRunning is returned by Start when the consumer is running
	ErrAlreadyRunning = errors.New("consumer: already running")

	// ErrNotRunning is returned by operations that need a live consume loop
	ErrNotRunning = errors.New("consumer: not running")

	// ErrCommandTimeout is returned when the consume loop does not pick up a
	// marshalled command within the configured wait
	ErrCommandTimeout = errors.New("consumer: timed out waiting for the consumer loop")

	// ErrChaosFailure is the synthesized handler failure injected by chaos
	ErrChaosFailure = errors.New("consumer: chaos simulated failure")

	// ErrConnectionLost marks a broker-initiated closure observed while
	// consuming; it triggers the reconnection supervisor
	ErrConnectionLost = errors.New("consumer: connection lost")
)

// NotFoundError reports an unsubscribe or resume against a queue that was
// never registered.
type NotFoundError struct {
	Queue      string   // Queue the caller named
	Op         string   // Operation that failed
	Registered []string // Queues currently known to the registry
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("consumer: cannot %s nonexistent queue %q, configured queues: [%s]",
		e.Op, e.Queue, strings.Join(e.Registered, ", "))
}

// HandlerContractViolationError reports a subscriber whose Handle returned a
// nil result. This is a programming defect, not a transient fault.
type HandlerContractViolationError struct {
	Subscriber string // Subscriber name
	Queue      string // Queue the message arrived on
}

func (e *HandlerContractViolationError) Error() string {
	return fmt.Sprintf("consumer: subscriber %q on queue %q returned no result", e.Subscriber, e.Queue)
}

// ReconnectExhaustedError reports that the reconnection supervisor gave up
// after the configured number of attempts. It terminates the consumer.
type ReconnectExhaustedError struct {
	Key       string    // Connection key of the consumer
	Attempts  int       // Attempts made before giving up
	Err       error     // Last underlying error
	Timestamp time.Time // When the supervisor gave up
}

func (e *ReconnectExhaustedError) Error() string {
	return fmt.Sprintf("consumer: impossible to reconnect consumer %q after %d attempts: %v", e.Key, e.Attempts, e.Err)
}

func (e *ReconnectExhaustedError) Unwrap() error {
	return e.Err
}

// PublishError reports a failed resend publish. The original delivery is left
// unacknowledged so the broker redelivers it.
type PublishError struct {
	Exchange   string // Target exchange
	RoutingKey string // Routing key used
	Err        error  // Underlying error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("consumer: failed to publish to %s/%s: %v", e.Exchange, e.RoutingKey, e.Err)
}

func (e *PublishError) Unwrap() error {
	return e.Err
}
