package contracts

import (
	"time"

	"github.com/google/uuid"
)

// BaseMessage provides common fields for all message variants
type BaseMessage struct {
	ID         string                 `json:"id"`
	Name       string                 `json:"type"`
	Type       MessageType            `json:"type_message"`
	Version    int                    `json:"version"`
	OccurredOn time.Time              `json:"occurred_on"`
	Attributes map[string]interface{} `json:"attributes,omitempty"`
	Meta       map[string]interface{} `json:"meta,omitempty"`
}

// NewBaseMessage creates a base message with a generated ID and current timestamp
func NewBaseMessage(name string, attributes map[string]interface{}) BaseMessage {
	return BaseMessage{
		ID:         uuid.New().String(),
		Name:       name,
		Type:       TypeMessage,
		Version:    1,
		OccurredOn: time.Now().UTC(),
		Attributes: attributes,
	}
}

// GetID returns the message ID
func (m BaseMessage) GetID() string {
	return m.ID
}

// GetName returns the message name, e.g. "user.created"
func (m BaseMessage) GetName() string {
	return m.Name
}

// GetMessageType returns the wire variant of the message
func (m BaseMessage) GetMessageType() MessageType {
	return m.Type
}

// GetVersion returns the envelope format version
func (m BaseMessage) GetVersion() int {
	return m.Version
}

// GetOccurredOn returns when the message was created
func (m BaseMessage) GetOccurredOn() time.Time {
	return m.OccurredOn
}

// GetAttributes returns the message payload attributes
func (m BaseMessage) GetAttributes() map[string]interface{} {
	return m.Attributes
}

// GetMeta returns the message metadata
func (m BaseMessage) GetMeta() map[string]interface{} {
	return m.Meta
}

// ToJSON serializes the message to its wire envelope
func (m BaseMessage) ToJSON() ([]byte, error) {
	return marshalEnvelope(m)
}

// DomainEvent represents something that has happened in a domain
type DomainEvent struct {
	BaseMessage
}

// NewDomainEvent creates a domain event with a generated ID and current timestamp
func NewDomainEvent(name string, attributes map[string]interface{}) *DomainEvent {
	base := NewBaseMessage(name, attributes)
	base.Type = TypeDomainEvent
	return &DomainEvent{BaseMessage: base}
}

// Command represents an action requested from a service
type Command struct {
	BaseMessage
}

// NewCommand creates a command with a generated ID and current timestamp
func NewCommand(name string, attributes map[string]interface{}) *Command {
	base := NewBaseMessage(name, attributes)
	base.Type = TypeCommand
	return &Command{BaseMessage: base}
}
