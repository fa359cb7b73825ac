// Package rabbitmq implements the AMQP transport the consumer engine runs on:
// a connection pool handing out channels keyed by an opaque identifier, a
// channel adapter exposing the consume/ack/nack/publish/cancel surface, and a
// topology manager declaring the retry and dead-letter exchange graph.
package rabbitmq
