package consumer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glimte/redrive-go/contracts"
)

func TestRegistry(t *testing.T) {
	t.Run("last registration on a queue wins", func(t *testing.T) {
		r := newRegistry()
		first := newStubSubscriber("first")
		second := newStubSubscriber("second")

		r.set(&SubscriberItem{QueueName: "q", Subscriber: first})
		r.set(&SubscriberItem{QueueName: "q", Subscriber: second})

		require.Equal(t, 1, r.len())
		item, ok := r.get("q")
		require.True(t, ok)
		assert.Equal(t, "second", item.Subscriber.Name())
	})

	t.Run("snapshot preserves registration order", func(t *testing.T) {
		r := newRegistry()
		for _, name := range []string{"c", "a", "b"} {
			r.set(&SubscriberItem{QueueName: name, Subscriber: newStubSubscriber(name)})
		}

		assert.Equal(t, []string{"c", "a", "b"}, r.queueNames())

		items := r.snapshot()
		require.Len(t, items, 3)
		assert.Equal(t, "c", items[0].QueueName)
		assert.Equal(t, "b", items[2].QueueName)
	})

	t.Run("re-registering keeps the original position", func(t *testing.T) {
		r := newRegistry()
		r.set(&SubscriberItem{QueueName: "a", Subscriber: newStubSubscriber("a")})
		r.set(&SubscriberItem{QueueName: "b", Subscriber: newStubSubscriber("b")})
		r.set(&SubscriberItem{QueueName: "a", Subscriber: newStubSubscriber("a2")})

		assert.Equal(t, []string{"a", "b"}, r.queueNames())
	})

	t.Run("consumer tag updates in place", func(t *testing.T) {
		r := newRegistry()
		r.set(&SubscriberItem{
			QueueName:    "q",
			Subscriber:   newStubSubscriber("s"),
			ExpectedType: contracts.TypeDomainEvent,
		})

		r.setConsumerTag("q", "tag-1")
		item, _ := r.get("q")
		assert.Equal(t, "tag-1", item.ConsumerTag)

		r.setConsumerTag("unknown", "tag-2") // no-op
		assert.Equal(t, 1, r.len())
	})
}
