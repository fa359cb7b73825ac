package contracts

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMessages(t *testing.T) {
	t.Run("NewBaseMessage generates ID and timestamp", func(t *testing.T) {
		msg := NewBaseMessage("user.created", map[string]interface{}{"user_id": "42"})

		assert.NotEmpty(t, msg.GetID())
		assert.Equal(t, "user.created", msg.GetName())
		assert.Equal(t, TypeMessage, msg.GetMessageType())
		assert.Equal(t, 1, msg.GetVersion())
		assert.WithinDuration(t, time.Now().UTC(), msg.GetOccurredOn(), time.Minute)
		assert.Equal(t, "42", msg.GetAttributes()["user_id"])
	})

	t.Run("NewDomainEvent carries the domain_event variant", func(t *testing.T) {
		event := NewDomainEvent("user.created", nil)
		assert.Equal(t, TypeDomainEvent, event.GetMessageType())
	})

	t.Run("NewCommand carries the command variant", func(t *testing.T) {
		command := NewCommand("user.create", nil)
		assert.Equal(t, TypeCommand, command.GetMessageType())
	})

	t.Run("distinct messages get distinct IDs", func(t *testing.T) {
		first := NewDomainEvent("user.created", nil)
		second := NewDomainEvent("user.created", nil)
		assert.NotEqual(t, first.GetID(), second.GetID())
	})
}

func TestParse(t *testing.T) {
	t.Run("round trips a domain event", func(t *testing.T) {
		event := NewDomainEvent("user.created", map[string]interface{}{"user_id": "42"})
		body, err := event.ToJSON()
		require.NoError(t, err)

		parsed, err := Parse(body, TypeDomainEvent)
		require.NoError(t, err)

		assert.Equal(t, event.GetID(), parsed.GetID())
		assert.Equal(t, "user.created", parsed.GetName())
		assert.Equal(t, TypeDomainEvent, parsed.GetMessageType())
		assert.Equal(t, 1, parsed.GetVersion())
		assert.Equal(t, "42", parsed.GetAttributes()["user_id"])
		assert.IsType(t, &DomainEvent{}, parsed)
	})

	t.Run("round trips a command", func(t *testing.T) {
		command := NewCommand("user.create", nil)
		body, err := command.ToJSON()
		require.NoError(t, err)

		parsed, err := Parse(body, TypeCommand)
		require.NoError(t, err)
		assert.IsType(t, &Command{}, parsed)
	})

	t.Run("store subscription accepts any variant", func(t *testing.T) {
		event := NewDomainEvent("user.created", nil)
		body, err := event.ToJSON()
		require.NoError(t, err)

		parsed, err := Parse(body, TypeMessage)
		require.NoError(t, err)
		assert.Equal(t, TypeDomainEvent, parsed.GetMessageType())
	})

	t.Run("variant mismatch is a ParseError", func(t *testing.T) {
		event := NewDomainEvent("user.created", nil)
		body, err := event.ToJSON()
		require.NoError(t, err)

		_, err = Parse(body, TypeCommand)
		require.Error(t, err)
		var parseErr *ParseError
		require.ErrorAs(t, err, &parseErr)
		assert.Equal(t, TypeCommand, parseErr.Expected)
	})

	t.Run("invalid JSON is a ParseError", func(t *testing.T) {
		_, err := Parse([]byte("not json"), TypeMessage)
		var parseErr *ParseError
		require.ErrorAs(t, err, &parseErr)
	})

	t.Run("missing data.id is a ParseError", func(t *testing.T) {
		_, err := Parse([]byte(`{"data":{"type":"user.created"}}`), TypeMessage)
		var parseErr *ParseError
		require.ErrorAs(t, err, &parseErr)
	})

	t.Run("unknown type_message is a ParseError", func(t *testing.T) {
		_, err := Parse([]byte(`{"data":{"id":"1","type_message":"banana"}}`), TypeMessage)
		var parseErr *ParseError
		require.ErrorAs(t, err, &parseErr)
	})

	t.Run("missing type_message and version fall back to defaults", func(t *testing.T) {
		parsed, err := Parse([]byte(`{"data":{"id":"1","type":"user.created"}}`), TypeMessage)
		require.NoError(t, err)
		assert.Equal(t, TypeMessage, parsed.GetMessageType())
		assert.Equal(t, 1, parsed.GetVersion())
	})

	t.Run("accepts RFC 3339 occurred_on", func(t *testing.T) {
		parsed, err := Parse([]byte(`{"data":{"id":"1","type":"x","occurred_on":"2026-08-30T10:00:00Z"}}`), TypeMessage)
		require.NoError(t, err)
		assert.Equal(t, 2026, parsed.GetOccurredOn().Year())
	})

	t.Run("rejects malformed occurred_on", func(t *testing.T) {
		_, err := Parse([]byte(`{"data":{"id":"1","type":"x","occurred_on":"yesterday"}}`), TypeMessage)
		var parseErr *ParseError
		require.ErrorAs(t, err, &parseErr)
	})
}

func TestToJSONEnvelope(t *testing.T) {
	t.Run("serializes the wire envelope", func(t *testing.T) {
		event := NewDomainEvent("user.created", map[string]interface{}{"user_id": "42"})
		body, err := event.ToJSON()
		require.NoError(t, err)

		var raw map[string]map[string]interface{}
		require.NoError(t, json.Unmarshal(body, &raw))

		data := raw["data"]
		assert.Equal(t, event.GetID(), data["id"])
		assert.Equal(t, "user.created", data["type"])
		assert.Equal(t, "domain_event", data["type_message"])
		assert.Equal(t, float64(1), data["version"])
		assert.NotEmpty(t, data["occurred_on"])
	})
}
