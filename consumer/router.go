package consumer

// Router decides whether a failed message is resent to the retry exchange or
// to the dead-letter exchange, and with which routing key and headers.
type Router struct {
	exchangeName          string
	fallbackStoreExchange string
	namer                 ExchangeNamer
}

// NewRouter creates a router for a consumer exchange. The fallback store
// exchange receives every store-queue failure.
func NewRouter(exchangeName, fallbackStoreExchange string, namer ExchangeNamer) *Router {
	if namer == nil {
		namer = prefixExchangeNamer{}
	}
	return &Router{
		exchangeName:          exchangeName,
		fallbackStoreExchange: fallbackStoreExchange,
		namer:                 namer,
	}
}

// Route computes the derived action for a failed message. The returned
// headers are a copy of the input with redelivery_count incremented exactly
// once (created at 1 when absent); the input map is never mutated.
//
// Store failures are asymmetric: retries go to the fallback store exchange
// under the literal "store" key, bypassing the prefix rule, while exhausted
// store messages take the normal dead-letter transform.
func (r *Router) Route(routingKey string, headers map[string]interface{}, maxRetries int, isStore bool) DerivedAction {
	if r.redeliveredTooMuch(headers, maxRetries) {
		return r.sendToDeadLetter(routingKey, headers)
	}
	return r.sendToRetry(routingKey, headers, isStore)
}

// redeliveredTooMuch applies the redelivery accounting: an absent
// redelivery_count header counts as zero, and maxRetries below 1 dead-letters
// on the first failure.
func (r *Router) redeliveredTooMuch(headers map[string]interface{}, maxRetries int) bool {
	count, ok := headerInt(headers, headerRedeliveryCount)
	if !ok {
		return maxRetries < 1
	}
	return count >= maxRetries
}

func (r *Router) sendToRetry(routingKey string, headers map[string]interface{}, isStore bool) DerivedAction {
	exchangeName := r.namer.Retry(r.exchangeName)

	// The original queue marker, set on first failure, wins over the
	// current routing key so retries keep targeting the failing queue.
	if queue, ok := headerString(headers, headerOriginalQueue); ok {
		routingKey = queue
	}
	routingKey = stageRoutingKey(routingKey, retryPrefix)

	if isStore {
		exchangeName = r.fallbackStoreExchange
		routingKey = storeQueueName
	}

	return DerivedAction{
		Action:       ActionSendToRetry,
		ExchangeName: exchangeName,
		RoutingKey:   routingKey,
		Headers:      incrementRedeliveryCount(headers),
	}
}

// sendToDeadLetter stages the delivery routing key onto the dead-letter
// exchange. Store messages take the same transform: only the retry leg uses
// the fallback store exchange with its literal key.
func (r *Router) sendToDeadLetter(routingKey string, headers map[string]interface{}) DerivedAction {
	exchangeName := r.namer.DeadLetter(r.exchangeName)
	routingKey = stageRoutingKey(routingKey, deadLetterPrefix)

	return DerivedAction{
		Action:       ActionSendToDeadLetter,
		ExchangeName: exchangeName,
		RoutingKey:   routingKey,
		Headers:      incrementRedeliveryCount(headers),
	}
}

// incrementRedeliveryCount copies headers with redelivery_count bumped by one
func incrementRedeliveryCount(headers map[string]interface{}) map[string]interface{} {
	updated := make(map[string]interface{}, len(headers)+1)
	for k, v := range headers {
		updated[k] = v
	}
	count, _ := headerInt(headers, headerRedeliveryCount)
	updated[headerRedeliveryCount] = count + 1
	return updated
}

// headerInt extracts an integer header across the numeric types AMQP tables
// carry.
func headerInt(headers map[string]interface{}, key string) (int, bool) {
	if headers == nil {
		return 0, false
	}
	switch v := headers[key].(type) {
	case int:
		return v, true
	case int8:
		return int(v), true
	case int16:
		return int(v), true
	case int32:
		return int(v), true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	}
	return 0, false
}

func headerString(headers map[string]interface{}, key string) (string, bool) {
	if headers == nil {
		return "", false
	}
	v, ok := headers[key].(string)
	return v, ok
}
