package consumer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glimte/redrive-go/contracts"
)

func TestChannelBus(t *testing.T) {
	t.Run("publishes domain events on the bound exchange", func(t *testing.T) {
		channel := newFakeChannel()
		bus := newChannelBus(channel, "acme.ordering")

		event := contracts.NewDomainEvent("user.created", map[string]interface{}{"user_id": "1234"})
		require.NoError(t, bus.PublishDomainEvent(context.Background(), event))

		published := channel.publishedMessages()
		require.Len(t, published, 1)
		assert.Equal(t, "acme.ordering", published[0].exchange)
		assert.Equal(t, "user.created", published[0].routingKey)

		parsed, err := contracts.Parse(published[0].body, contracts.TypeDomainEvent)
		require.NoError(t, err)
		assert.Equal(t, event.GetID(), parsed.GetID())
	})

	t.Run("dispatches commands by name", func(t *testing.T) {
		channel := newFakeChannel()
		bus := newChannelBus(channel, "acme.ordering")

		cmd := contracts.NewCommand("order.cancel", nil)
		require.NoError(t, bus.Dispatch(context.Background(), cmd))

		published := channel.publishedMessages()
		require.Len(t, published, 1)
		assert.Equal(t, "order.cancel", published[0].routingKey)
	})

	t.Run("rejects nil messages", func(t *testing.T) {
		bus := newChannelBus(newFakeChannel(), "acme.ordering")
		assert.Error(t, bus.PublishDomainEvent(context.Background(), nil))
		assert.Error(t, bus.Dispatch(context.Background(), nil))
	})

	t.Run("wraps transport failures", func(t *testing.T) {
		channel := newFakeChannel()
		channel.setPublishErr(errors.New("channel write failed"))
		bus := newChannelBus(channel, "acme.ordering")

		err := bus.PublishDomainEvent(context.Background(), contracts.NewDomainEvent("user.created", nil))
		var pubErr *PublishError
		require.ErrorAs(t, err, &pubErr)
		assert.Equal(t, "acme.ordering", pubErr.Exchange)
	})
}
