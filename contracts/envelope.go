package contracts

import (
	"encoding/json"
	"fmt"
	"time"
)

// envelope is the wire format wrapping every message
type envelope struct {
	Data wireMessage `json:"data"`
}

type wireMessage struct {
	ID         string                 `json:"id"`
	Name       string                 `json:"type"`
	Type       string                 `json:"type_message"`
	Version    int                    `json:"version"`
	OccurredOn string                 `json:"occurred_on"`
	Attributes map[string]interface{} `json:"attributes,omitempty"`
	Meta       map[string]interface{} `json:"meta,omitempty"`
}

// occurredOnLayout is the timestamp format used on the wire.
const occurredOnLayout = "2006-01-02 15:04:05.999999"

func marshalEnvelope(m BaseMessage) ([]byte, error) {
	msgType := m.Type
	if msgType == "" {
		msgType = TypeMessage
	}
	version := m.Version
	if version == 0 {
		version = 1
	}
	return json.Marshal(envelope{
		Data: wireMessage{
			ID:         m.ID,
			Name:       m.Name,
			Type:       string(msgType),
			Version:    version,
			OccurredOn: m.OccurredOn.UTC().Format(occurredOnLayout),
			Attributes: m.Attributes,
			Meta:       m.Meta,
		},
	})
}

// Parse deserializes a wire envelope into the message variant selected by
// expected. A store subscription declares TypeMessage and accepts any variant;
// TypeDomainEvent and TypeCommand require a matching type_message field.
func Parse(body []byte, expected MessageType) (Message, error) {
	if !expected.IsValid() {
		return nil, &ParseError{Expected: expected, Err: fmt.Errorf("unknown expected message type %q", expected)}
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, &ParseError{Expected: expected, Err: err}
	}
	if env.Data.ID == "" {
		return nil, &ParseError{Expected: expected, Err: fmt.Errorf("envelope has no data.id")}
	}

	msgType := MessageType(env.Data.Type)
	if msgType == "" {
		msgType = TypeMessage
	}
	if !msgType.IsValid() {
		return nil, &ParseError{Expected: expected, Err: fmt.Errorf("unknown type_message %q", env.Data.Type)}
	}
	if expected != TypeMessage && msgType != expected {
		return nil, &ParseError{Expected: expected, Err: fmt.Errorf("expected %s but envelope carries %s", expected, msgType)}
	}

	occurredOn, err := parseOccurredOn(env.Data.OccurredOn)
	if err != nil {
		return nil, &ParseError{Expected: expected, Err: err}
	}

	version := env.Data.Version
	if version == 0 {
		version = 1
	}

	base := BaseMessage{
		ID:         env.Data.ID,
		Name:       env.Data.Name,
		Type:       msgType,
		Version:    version,
		OccurredOn: occurredOn,
		Attributes: env.Data.Attributes,
		Meta:       env.Data.Meta,
	}

	switch msgType {
	case TypeDomainEvent:
		return &DomainEvent{BaseMessage: base}, nil
	case TypeCommand:
		return &Command{BaseMessage: base}, nil
	default:
		return &base, nil
	}
}

func parseOccurredOn(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(occurredOnLayout, value); err == nil {
		return t, nil
	}
	// Producers in other stacks emit RFC 3339.
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid occurred_on %q: %w", value, err)
	}
	return t, nil
}
