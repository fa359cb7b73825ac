package consumer

import (
	"fmt"
	"strings"
)

const (
	retryPrefix      = "retry."
	deadLetterPrefix = "dead_letter."

	// storeQueueName is the queue receiving every message regardless of type
	storeQueueName = "store"

	// Resend header keys, visible to the next consumption of the message.
	headerRedeliveryCount = "redelivery_count"
	headerOriginalQueue   = "queue"
)

// ExchangeNamer derives the retry and dead-letter destinations from a
// consumer's exchange name. Implementations must be pure.
type ExchangeNamer interface {
	Retry(exchangeName string) string
	DeadLetter(exchangeName string) string
}

// prefixExchangeNamer is the default convention: retry.{exchange} and
// dead_letter.{exchange}.
type prefixExchangeNamer struct{}

func (prefixExchangeNamer) Retry(exchangeName string) string {
	return retryPrefix + exchangeName
}

func (prefixExchangeNamer) DeadLetter(exchangeName string) string {
	return deadLetterPrefix + exchangeName
}

// ExchangeName builds the consumer exchange name from organization and service
func ExchangeName(organization, service string) string {
	return fmt.Sprintf("%s.%s", organization, service)
}

// FallbackStoreExchangeName is the dedicated exchange store-queue failures
// are resent through.
func FallbackStoreExchangeName(organization string) string {
	return fmt.Sprintf("retry.%s.store", organization)
}

// QueueName builds the main queue name for a subscription:
// {exchange}.{selector}.{subscriberName}.
func QueueName(exchangeName, selector, subscriberName string) string {
	return fmt.Sprintf("%s.%s.%s", exchangeName, selector, subscriberName)
}

// DeadLetterQueueName builds the dead-letter queue name for a subscription
func DeadLetterQueueName(exchangeName, selector, subscriberName string) string {
	return deadLetterPrefix + QueueName(exchangeName, selector, subscriberName)
}

// stageRoutingKey swaps the stage prefix of a routing key. A leading retry.
// or dead_letter. prefix is stripped first, so re-routing an already staged
// key never accumulates prefixes.
func stageRoutingKey(routingKey, prefix string) string {
	if strings.HasPrefix(routingKey, retryPrefix) {
		return prefix + strings.TrimPrefix(routingKey, retryPrefix)
	}
	if strings.HasPrefix(routingKey, deadLetterPrefix) {
		return prefix + strings.TrimPrefix(routingKey, deadLetterPrefix)
	}
	return prefix + routingKey
}
