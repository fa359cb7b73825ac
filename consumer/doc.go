// Package consumer implements message consumption with retry and dead-letter
// routing on top of an AMQP-style transport.
//
// The package provides:
//   - Consumer: single-worker consumption engine dispatching deliveries to
//     registered subscribers with at-least-once semantics (resend-then-ack)
//   - Router: computes the derived action (retry or dead letter) for a failed
//     message from its redelivery count and the configured retry ceiling
//   - Chaos: probabilistic fault injection (nack, delay, forced failure) for
//     resilience testing
//   - Reconnection: bounded reconnect loop that re-registers every subscriber
//     after a broker-initiated disconnect
//
// The transport channel is exclusively owned by the consumer's worker
// goroutine. External calls that touch the live channel (unsubscribe, resume,
// stop) are marshalled onto that goroutine and wait a bounded time for
// completion.
package consumer
