package rabbitmq

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/glimte/redrive-go/consumer"
)

// TopologyManager declares the exchange and queue graph a consumer runs on
type TopologyManager struct {
	pool *ConnectionPool
}

// ExchangeDeclaration defines an exchange to be declared
type ExchangeDeclaration struct {
	Name       string
	Type       string
	Durable    bool
	AutoDelete bool
	Arguments  amqp.Table
}

// QueueDeclaration defines a queue to be declared
type QueueDeclaration struct {
	Name       string
	Durable    bool
	AutoDelete bool
	Exclusive  bool
	Arguments  amqp.Table
}

// Binding defines a queue-to-exchange binding
type Binding struct {
	Queue      string
	Exchange   string
	RoutingKey string
	Arguments  amqp.Table
}

// Topology represents the complete messaging topology
type Topology struct {
	Exchanges []ExchangeDeclaration
	Queues    []QueueDeclaration
	Bindings  []Binding
}

// NewTopologyManager creates a topology manager on a connection pool
func NewTopologyManager(pool *ConnectionPool) *TopologyManager {
	return &TopologyManager{pool: pool}
}

// ConsumerTopology builds the exchange graph for one consumer: the main
// exchange, its retry and dead-letter stages, and the fallback store exchange.
func ConsumerTopology(organization, service string) Topology {
	exchangeName := consumer.ExchangeName(organization, service)
	return Topology{
		Exchanges: []ExchangeDeclaration{
			{Name: exchangeName, Type: "topic", Durable: true},
			{Name: "retry." + exchangeName, Type: "topic", Durable: true},
			{Name: "dead_letter." + exchangeName, Type: "topic", Durable: true},
			{Name: consumer.FallbackStoreExchangeName(organization), Type: "topic", Durable: true},
		},
	}
}

// DeclareTopology declares the complete topology
func (tm *TopologyManager) DeclareTopology(ctx context.Context, topology Topology) error {
	return tm.pool.Execute(ctx, func(ch *amqp.Channel) error {
		for _, exchange := range topology.Exchanges {
			if err := declareExchange(ch, exchange); err != nil {
				return &TopologyError{Component: "exchange", Name: exchange.Name, Op: "declare", Err: err, Timestamp: time.Now()}
			}
		}
		for _, queue := range topology.Queues {
			if _, err := declareQueue(ch, queue); err != nil {
				return &TopologyError{Component: "queue", Name: queue.Name, Op: "declare", Err: err, Timestamp: time.Now()}
			}
		}
		for _, binding := range topology.Bindings {
			if err := bindQueue(ch, binding); err != nil {
				return &TopologyError{Component: "binding", Name: binding.Queue, Op: "declare", Err: err, Timestamp: time.Now()}
			}
		}
		return nil
	})
}

// DeclareSubscriberQueues declares the three queues one subscription needs:
// the main queue on the consumer exchange, its retry queue whose messages
// flow back to the main exchange after retryTTL, and its dead-letter queue.
func (tm *TopologyManager) DeclareSubscriberQueues(ctx context.Context, organization, service, queueName, routingKey string, retryTTL time.Duration) error {
	exchangeName := consumer.ExchangeName(organization, service)
	topology := Topology{
		Queues: []QueueDeclaration{
			{Name: queueName, Durable: true},
			{
				Name:    "retry." + queueName,
				Durable: true,
				Arguments: amqp.Table{
					"x-dead-letter-exchange": exchangeName,
					"x-message-ttl":          retryTTL.Milliseconds(),
				},
			},
			{Name: "dead_letter." + queueName, Durable: true},
		},
		Bindings: []Binding{
			{Queue: queueName, Exchange: exchangeName, RoutingKey: routingKey},
			{Queue: "retry." + queueName, Exchange: "retry." + exchangeName, RoutingKey: "retry." + routingKey},
			{Queue: "dead_letter." + queueName, Exchange: "dead_letter." + exchangeName, RoutingKey: "dead_letter." + routingKey},
		},
	}
	return tm.DeclareTopology(ctx, topology)
}

// DeclareStoreQueue declares the store queue receiving every message on the
// consumer exchange and its fallback retry path.
func (tm *TopologyManager) DeclareStoreQueue(ctx context.Context, organization, service string, retryTTL time.Duration) error {
	exchangeName := consumer.ExchangeName(organization, service)
	storeExchange := consumer.FallbackStoreExchangeName(organization)
	topology := Topology{
		Queues: []QueueDeclaration{
			{Name: "store", Durable: true},
			{
				Name:    "retry.store",
				Durable: true,
				Arguments: amqp.Table{
					"x-dead-letter-exchange": exchangeName,
					"x-message-ttl":          retryTTL.Milliseconds(),
				},
			},
		},
		Bindings: []Binding{
			{Queue: "store", Exchange: exchangeName, RoutingKey: "#"},
			{Queue: "retry.store", Exchange: storeExchange, RoutingKey: "store"},
		},
	}
	return tm.DeclareTopology(ctx, topology)
}

// DeleteQueue deletes a queue
func (tm *TopologyManager) DeleteQueue(ctx context.Context, name string) error {
	return tm.pool.Execute(ctx, func(ch *amqp.Channel) error {
		_, err := ch.QueueDelete(name, false, false, false)
		if err != nil {
			return &TopologyError{Component: "queue", Name: name, Op: "delete", Err: err, Timestamp: time.Now()}
		}
		return nil
	})
}

// GetQueueInfo retrieves queue information for diagnostics
func (tm *TopologyManager) GetQueueInfo(ctx context.Context, name string) (amqp.Queue, error) {
	var q amqp.Queue
	err := tm.pool.Execute(ctx, func(ch *amqp.Channel) error {
		var err error
		q, err = ch.QueueInspect(name)
		if err != nil {
			return fmt.Errorf("cannot inspect queue %q: %w", name, err)
		}
		return nil
	})
	return q, err
}

func declareExchange(ch *amqp.Channel, exchange ExchangeDeclaration) error {
	return ch.ExchangeDeclare(
		exchange.Name,
		exchange.Type,
		exchange.Durable,
		exchange.AutoDelete,
		false, // internal
		false, // no-wait
		exchange.Arguments,
	)
}

func declareQueue(ch *amqp.Channel, queue QueueDeclaration) (amqp.Queue, error) {
	return ch.QueueDeclare(
		queue.Name,
		queue.Durable,
		queue.AutoDelete,
		queue.Exclusive,
		false, // no-wait
		queue.Arguments,
	)
}

func bindQueue(ch *amqp.Channel, binding Binding) error {
	return ch.QueueBind(
		binding.Queue,
		binding.RoutingKey,
		binding.Exchange,
		false, // no-wait
		binding.Arguments,
	)
}
