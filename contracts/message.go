package contracts

import (
	"time"
)

// MessageType discriminates the message variants on the wire.
type MessageType string

const (
	// TypeMessage is the base variant, accepted by store subscribers.
	TypeMessage MessageType = "message"
	// TypeDomainEvent marks a fact that already happened in a domain.
	TypeDomainEvent MessageType = "domain_event"
	// TypeCommand marks an action requested from a service.
	TypeCommand MessageType = "command"
)

// IsValid reports whether t is one of the known message variants.
func (t MessageType) IsValid() bool {
	switch t {
	case TypeMessage, TypeDomainEvent, TypeCommand:
		return true
	}
	return false
}

// Message is the base interface for all messages
type Message interface {
	GetID() string
	GetName() string
	GetMessageType() MessageType
	GetVersion() int
	GetOccurredOn() time.Time
	GetAttributes() map[string]interface{}
	GetMeta() map[string]interface{}
	ToJSON() ([]byte, error)
}
